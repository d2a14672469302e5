package liveness

import (
	"context"
	"sync/atomic"
	"time"
)

// Liveness is implemented by services able to report their own health.
type Liveness interface {
	IsAlive(ctx context.Context) bool
}

type Prober interface {
	Watch(svc Liveness)
	IsAlive() bool
}

// Probe polls a service and caches the verdict for cheap handler reads.
type Probe struct {
	timeout time.Duration
	alive   atomic.Bool
}

func NewProbe(timeout time.Duration) *Probe {
	if timeout <= 0 {
		timeout = time.Second
	}
	return &Probe{timeout: timeout}
}

// Watch starts polling the service at the probe timeout cadence. It returns
// immediately.
func (p *Probe) Watch(svc Liveness) {
	go func() {
		t := time.NewTicker(p.timeout)
		defer t.Stop()
		for range t.C {
			ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
			p.alive.Store(svc.IsAlive(ctx))
			cancel()
		}
	}()
}

func (p *Probe) IsAlive() bool { return p.alive.Load() }
