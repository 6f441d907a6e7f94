package reconcile

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// nextCronDuration parses a 5-field cron expression and returns the
// duration until the next fire time. Returns 0 on parse error.
func nextCronDuration(expr string) time.Duration {
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return 0
	}
	next := sched.Next(time.Now())
	d := time.Until(next)
	if d < 0 {
		return 0
	}
	return d
}

// RunScheduled triggers cycle on the given cron schedule until ctx is
// cancelled. This is a safety net on top of event-driven rebuilds: a
// scheduled rebuild is a no-op publish when nothing drifted. An invalid
// expression returns immediately.
func RunScheduled(ctx context.Context, expr string, cycle func(context.Context) error) error {
	for {
		d := nextCronDuration(expr)
		if d <= 0 {
			return nil
		}
		if !sleep(ctx, d) {
			return nil
		}
		if err := cycle(context.WithoutCancel(ctx)); err != nil {
			// Same policy as the event loop: log and keep the schedule alive.
			log.Printf("reconcile: scheduled cycle: %v", err)
		}
	}
}
