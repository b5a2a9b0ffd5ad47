// Package main provides the user CLI entry point for testing.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"

	"github.com/osa030/19cast/internal/app/control"
	"github.com/osa030/19cast/internal/app/playback"
	"github.com/osa030/19cast/internal/infra/discovery"
)

const replyWait = 500 * time.Millisecond

var (
	app = kingpin.New("19cast-usercli", "19cast broadcast client for testing")

	// send command
	sendCmd     = app.Command("send", "Send one control line, e.g. \"/schedule song.mp3\"")
	sendControl = sendCmd.Flag("control", "Control server address").Default("localhost:3000").String()
	sendLine    = sendCmd.Arg("line", "Control line").Required().Strings()

	// listen command
	listenCmd      = app.Command("listen", "Receive the broadcast")
	listenURL      = listenCmd.Flag("url", "Stream URL (http:// or ws://)").Default("http://localhost:8080/").String()
	listenOutput   = listenCmd.Flag("output", "Write received audio to this file").Short('o').String()
	listenDuration = listenCmd.Flag("duration", "Stop after this long (0 = until Ctrl+C)").Default("0s").Duration()

	// discover command
	discoverCmd     = app.Command("discover", "Find broadcast servers on the local network")
	discoverTimeout = discoverCmd.Flag("timeout", "Browse timeout").Default("3s").Duration()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	// Parse command
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	// Handle shutdown signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch command {
	case sendCmd.FullCommand():
		err = send(ctx, *sendControl, strings.Join(*sendLine, " "))
	case listenCmd.FullCommand():
		err = listen(ctx, *listenURL, *listenOutput, *listenDuration)
	case discoverCmd.FullCommand():
		err = discover(ctx, *discoverTimeout)
	}
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}

func send(ctx context.Context, addr, line string) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "connect to %s", addr)
	}
	defer conn.Close()

	if _, err := io.WriteString(conn, line+"\n"); err != nil {
		return errors.Wrap(err, "send line")
	}

	// /play and /pause have no reply; a list ends with the terminator line
	cmd, parseErr := control.Parse(line)
	isList := parseErr == nil && cmd.Kind == playback.CommandList

	reader := bufio.NewReader(conn)
	for {
		_ = conn.SetReadDeadline(time.Now().Add(replyWait))
		reply, err := reader.ReadString('\n')
		if err != nil {
			var ne net.Error
			if (errors.As(err, &ne) && ne.Timeout()) || errors.Is(err, io.EOF) {
				return nil
			}
			return errors.Wrap(err, "read reply")
		}
		reply = strings.TrimRight(reply, "\r\n")
		if isList && reply == control.ListTerminator {
			return nil
		}
		fmt.Println(reply)
		if !isList {
			return nil
		}
	}
}

func listen(ctx context.Context, url, output string, duration time.Duration) error {
	if duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, duration)
		defer cancel()
	}

	out := io.Discard
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return errors.Wrap(err, "create output file")
		}
		defer f.Close()
		out = f
	}

	counter := &countingWriter{w: out}
	started := time.Now()
	fmt.Printf("Listening on %s. Press Ctrl+C to exit.\n", url)

	var err error
	if strings.HasPrefix(url, "ws://") || strings.HasPrefix(url, "wss://") {
		err = listenWebSocket(ctx, url, counter)
	} else {
		err = listenHTTP(ctx, url, counter)
	}

	fmt.Printf("\nReceived %d bytes in %s\n", counter.n, time.Since(started).Truncate(time.Millisecond))
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func listenHTTP(ctx context.Context, url string, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "connect")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Newf("unexpected status: %s", resp.Status)
	}
	fmt.Printf("Connected: content-type=%s\n", resp.Header.Get("Content-Type"))

	_, err = io.Copy(w, resp.Body)
	return err
}

func listenWebSocket(ctx context.Context, url string, w io.Writer) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return errors.Wrap(err, "connect")
	}
	defer conn.Close()
	fmt.Println("Connected")

	go func() {
		<-ctx.Done()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
	}()

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		if kind != websocket.BinaryMessage {
			continue
		}
		if _, err := w.Write(data); err != nil {
			return err
		}
	}
}

func discover(ctx context.Context, timeout time.Duration) error {
	servers, err := discovery.Browse(ctx, timeout)
	if err != nil {
		return err
	}
	if len(servers) == 0 {
		fmt.Println("No servers found")
		return nil
	}
	for _, s := range servers {
		ctl := "-"
		if s.ControlPort > 0 {
			ctl = net.JoinHostPort(s.Host, strconv.Itoa(s.ControlPort))
		}
		fmt.Printf("%-20s stream=%s control=%s\n", s.Instance, s.StreamURL(), ctl)
	}
	return nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
