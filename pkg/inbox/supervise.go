package inbox

import (
	"context"
	"time"

	"github.com/aretw0/lifecycle/pkg/core/supervisor"
	"github.com/aretw0/lifecycle/pkg/core/worker"
)

// Runner is a started-and-stopped background unit.
type Runner interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Supervise wraps the watcher in a one-for-one supervisor that recreates it
// when it fails. onCreate, when set, observes every new instance.
func Supervise(cfg Config, onCreate func(*Watcher)) Runner {
	spec := supervisor.Spec{
		Name: "inbox-watcher",
		Type: string(worker.TypeGoroutine),
		Factory: func() (worker.Worker, error) {
			w, err := New(cfg)
			if err != nil {
				return nil, err
			}
			if onCreate != nil {
				onCreate(w)
			}
			return w, nil
		},
		Backoff: supervisor.Backoff{
			InitialInterval: 100 * time.Millisecond,
			MaxInterval:     5 * time.Second,
			Multiplier:      2,
			ResetDuration:   time.Minute,
			MaxRestarts:     10,
			MaxDuration:     10 * time.Minute,
		},
		RestartPolicy: supervisor.RestartOnFailure,
	}
	return supervisor.New("inbox", supervisor.StrategyOneForOne, spec)
}
