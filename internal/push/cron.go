package push

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/haneul-labs/saju-engine/internal/db"
	"github.com/haneul-labs/saju-engine/internal/kst"
	"github.com/haneul-labs/saju-engine/internal/pending"
)

// runTimeout bounds one scheduled fan-out; a wedged platform API must
// not bleed into the next day's run.
const runTimeout = 30 * time.Minute

// staleInterestAge is how old an interest's last ask must be before the
// decay pass shrinks it.
const staleInterestAge = 7 * 24 * time.Hour

// Scheduler owns the in-process cron entries: the daily KST fan-out
// (08:00 by default) and the early-morning maintenance sweep. The HTTP cron endpoints trigger
// the same job and sweep for platforms with an external scheduler.
type Scheduler struct {
	c *cron.Cron
}

// NewScheduler registers the entries. The fan-out time is configurable
// because staging pushes off-hours; the sweep closure comes from the
// caller because it spans stores the push job does not own.
func NewScheduler(job *Job, sweep func(context.Context), hour, minute int) (*Scheduler, error) {
	c := cron.New(cron.WithLocation(kst.Location()))

	_, err := c.AddFunc(fmt.Sprintf("%d %d * * *", minute, hour), func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()
		if _, err := job.Run(ctx); err != nil {
			log.Error().Err(err).Msg("scheduled push run failed")
		}
	})
	if err != nil {
		return nil, err
	}

	_, err = c.AddFunc("30 4 * * *", func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		sweep(ctx)
	})
	if err != nil {
		return nil, err
	}

	return &Scheduler{c: c}, nil
}

// Start launches the cron loop in its own goroutine.
func (s *Scheduler) Start() { s.c.Start() }

// Stop halts scheduling and waits for running entries.
func (s *Scheduler) Stop() {
	<-s.c.Stop().Done()
}

// RunSweep drops expired pending actions and decays stale interest
// weights. Shared by the cron entry, the HTTP trigger and `engine sweep`.
func RunSweep(ctx context.Context, store db.Store, pend *pending.Manager, now func() time.Time) (expired, decayed int) {
	if now == nil {
		now = kst.Now
	}

	expired, err := pend.Sweep(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("pending sweep failed")
	}

	decayed, err = store.DecayInterests(ctx, now().Add(-staleInterestAge), now())
	if err != nil {
		log.Warn().Err(err).Msg("interest decay failed")
	}

	log.Info().Int("expired_pending", expired).Int("decayed_interests", decayed).Msg("maintenance sweep finished")
	return expired, decayed
}
