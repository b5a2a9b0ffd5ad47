// Package main provides the admin CLI entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"

	apiconnect "github.com/osa030/19cast/internal/api/connect"
)

var (
	app     = kingpin.New("19cast-admincli", "19cast broadcast admin client")
	server  = app.Flag("server", "Server address").Default("http://localhost:8080").String()
	token   = app.Flag("token", "Admin token (or set ADMIN_TOKEN env)").Envar("ADMIN_TOKEN").String()
	timeout = app.Flag("timeout", "Request timeout").Default("10s").Duration()

	// status command
	statusCmd = app.Command("status", "Show playback status")

	// play command
	playCmd = app.Command("play", "Start or resume playback")

	// pause command
	pauseCmd = app.Command("pause", "Pause playback")

	// schedule command
	scheduleCmd   = app.Command("schedule", "Append a track to the playlist")
	scheduleTrack = scheduleCmd.Arg("track", "Track file name").Required().String()

	// list command
	listCmd = app.Command("list", "List available tracks")

	// history command
	historyCmd   = app.Command("history", "Show recently played tracks")
	historyLimit = historyCmd.Flag("limit", "Number of plays").Short('n').Default("20").Int()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	// Parse command
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	// Check admin token
	if *token == "" {
		fmt.Println("Error: admin token is required (use --token or ADMIN_TOKEN env)")
		os.Exit(1)
	}

	// Create client
	client := apiconnect.NewControlClient(
		http.DefaultClient,
		*server,
		connect.WithInterceptors(apiconnect.NewTokenInterceptor(*token)),
	)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	// Execute command
	switch command {
	case statusCmd.FullCommand():
		status(ctx, client)
	case playCmd.FullCommand():
		play(ctx, client)
	case pauseCmd.FullCommand():
		pause(ctx, client)
	case scheduleCmd.FullCommand():
		schedule(ctx, client, *scheduleTrack)
	case listCmd.FullCommand():
		list(ctx, client)
	case historyCmd.FullCommand():
		showHistory(ctx, client, *historyLimit)
	}
}

func fail(err error) {
	fmt.Printf("Error: %v\n", err)
	os.Exit(1)
}

func status(ctx context.Context, client *apiconnect.ControlClient) {
	s, err := client.Status(ctx)
	if err != nil {
		fail(err)
	}

	fmt.Println("\n=== PLAYBACK STATUS ===")
	fmt.Printf("State: %v\n", s["state"])

	if name, _ := s["track"].(string); name != "" {
		fmt.Printf("\nCurrently Playing:\n")
		fmt.Printf("  Name: %s\n", name)
		fmt.Printf("  Offset: %.0f / %.0f bytes\n", number(s["offset"]), number(s["size"]))
		fmt.Printf("  Position: %s", formatMillis(s["position_ms"]))
		if d := number(s["duration_ms"]); d > 0 {
			fmt.Printf(" / %s", formatMillis(d))
		}
		fmt.Println()
	} else {
		fmt.Println("\nNo track currently playing")
	}

	queue, _ := s["queue"].([]any)
	fmt.Printf("\nQueue (%d):\n", len(queue))
	for i, name := range queue {
		fmt.Printf("  %d. %v\n", i+1, name)
	}

	listeners, _ := s["listeners"].([]any)
	fmt.Printf("\nListeners (%d):\n", len(listeners))
	for _, l := range listeners {
		m, _ := l.(map[string]any)
		fmt.Printf("  %v [%v] from %v: sent=%.0f dropped=%.0f\n",
			m["id"], m["transport"], m["remote_addr"], number(m["chunks_sent"]), number(m["chunks_dropped"]))
	}
	fmt.Println()
}

func play(ctx context.Context, client *apiconnect.ControlClient) {
	if err := client.Play(ctx); err != nil {
		fail(err)
	}
	fmt.Println("Playback started")
}

func pause(ctx context.Context, client *apiconnect.ControlClient) {
	if err := client.Pause(ctx); err != nil {
		fail(err)
	}
	fmt.Println("Playback paused")
}

func schedule(ctx context.Context, client *apiconnect.ControlClient, name string) {
	if err := client.Schedule(ctx, name); err != nil {
		if code := apiconnect.RejectCode(err); code != "" {
			fmt.Printf("Rejected: %s\n", code)
			os.Exit(1)
		}
		fail(err)
	}
	fmt.Printf("Scheduled: %s\n", name)
}

func list(ctx context.Context, client *apiconnect.ControlClient) {
	tracks, err := client.List(ctx)
	if err != nil {
		fail(err)
	}
	for _, name := range tracks {
		fmt.Println(name)
	}
}

func showHistory(ctx context.Context, client *apiconnect.ControlClient, limit int) {
	plays, err := client.History(ctx, limit)
	if err != nil {
		fail(err)
	}
	if len(plays) == 0 {
		fmt.Println("No plays recorded")
		return
	}
	for _, p := range plays {
		line := fmt.Sprintf("%v  %-9v %v (%.0f bytes)", p["started_at"], p["outcome"], p["track"], number(p["bytes"]))
		if msg, _ := p["error"].(string); msg != "" {
			line += ": " + msg
		}
		fmt.Println(line)
	}
}

// number reads a numeric Struct value, which decodes as float64.
func number(v any) float64 {
	f, _ := v.(float64)
	return f
}

func formatMillis(v any) string {
	ms := number(v)
	return (time.Duration(ms) * time.Millisecond).Truncate(time.Second).String()
}
