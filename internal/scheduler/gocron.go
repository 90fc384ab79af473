package scheduler

import (
	"context"
	"fmt"
	"time"

	"tournament_market/internal/logger"

	"github.com/go-co-op/gocron/v2"
)

// Gocron runs jobs on a gocron scheduler. Each job is a singleton: a slow tick delays the
// next one instead of overlapping it.
type Gocron struct {
	sched  gocron.Scheduler
	ctx    context.Context
	cancel context.CancelFunc
}

func NewGocron() (*Gocron, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Gocron{sched: sched, ctx: ctx, cancel: cancel}, nil
}

func (g *Gocron) Every(name string, interval time.Duration, job Job) (func(), error) {
	j, err := g.sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			if g.ctx.Err() != nil {
				return
			}
			job(g.ctx)
		}),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return nil, fmt.Errorf("schedule %s: %w", name, err)
	}
	id := j.ID()
	// removal may be requested from inside the job itself, so it must not wait on the executor
	return func() {
		go func() {
			if err := g.sched.RemoveJob(id); err != nil {
				logger.Debug("remove job", "job", name, "error", err)
			}
		}()
	}, nil
}

func (g *Gocron) Start() {
	g.sched.Start()
}

// Stop cancels running jobs' context and waits for them to return.
func (g *Gocron) Stop() error {
	g.cancel()
	return g.sched.Shutdown()
}
