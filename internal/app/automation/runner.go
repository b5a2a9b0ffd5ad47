// Package automation submits control commands on cron schedules.
package automation

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/osa030/19cast/internal/app/control"
	"github.com/osa030/19cast/internal/app/playback"
	"github.com/osa030/19cast/internal/infra/logger"
)

const commandTimeout = 10 * time.Second

// Entry is one timed command.
type Entry struct {
	Schedule string // Standard 5-field cron expression
	Command  string // Control protocol line, e.g. "/schedule intro.mp3"
}

// Runner fires entries through the scheduler's command surface.
type Runner struct {
	cron   *cron.Cron
	player control.Player
	log    zerolog.Logger
	ctx    context.Context
}

// New validates entries and registers them. Nothing fires until Run.
func New(entries []Entry, player control.Player) (*Runner, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	r := &Runner{
		cron:   cron.New(cron.WithParser(parser)),
		player: player,
		log:    logger.Component("automation"),
		ctx:    context.Background(),
	}

	for i, entry := range entries {
		schedule, err := parser.Parse(entry.Schedule)
		if err != nil {
			return nil, errors.Wrapf(err, "automation[%d]: invalid schedule %q", i, entry.Schedule)
		}
		cmd, err := control.Parse(entry.Command)
		if err != nil {
			return nil, errors.Wrapf(err, "automation[%d]: invalid command %q", i, entry.Command)
		}
		r.cron.Schedule(schedule, cron.FuncJob(func() {
			r.fire(r.ctx, cmd)
		}))
	}
	return r, nil
}

// Len returns the number of registered entries.
func (r *Runner) Len() int {
	return len(r.cron.Entries())
}

// Run fires entries until ctx is cancelled and waits for running jobs.
func (r *Runner) Run(ctx context.Context) {
	r.ctx = ctx
	r.cron.Start()
	r.log.Info().Msgf("automation started: entries=%d", r.Len())

	<-ctx.Done()
	<-r.cron.Stop().Done()
	r.log.Info().Msg("automation stopped")
}

func (r *Runner) fire(ctx context.Context, cmd playback.Command) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	line := control.Format(cmd)
	res, err := r.player.Do(ctx, cmd)
	if err != nil {
		r.log.Error().Err(err).Msgf("automation command failed: command=%s", line)
		return
	}

	ev := r.log.Info().Str("command", line)
	switch cmd.Kind {
	case playback.CommandList:
		ev = ev.Int("tracks", len(res.Tracks))
	case playback.CommandStatus:
		ev = ev.Str("state", res.Status.State.String()).Str("track", res.Status.Track)
	}
	ev.Msg("automation command applied")
}
