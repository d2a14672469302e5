package guard

import (
	"context"

	"github.com/Borislavv/traffic-guard/internal/guard/server"
	"github.com/Borislavv/traffic-guard/pkg/config"
	"github.com/Borislavv/traffic-guard/pkg/degrade"
	"github.com/Borislavv/traffic-guard/pkg/flow"
	"github.com/Borislavv/traffic-guard/pkg/guard"
	"github.com/Borislavv/traffic-guard/pkg/k8s/probe/liveness"
	"github.com/Borislavv/traffic-guard/pkg/prometheus/metrics"
	"github.com/Borislavv/traffic-guard/pkg/rules"
	"github.com/Borislavv/traffic-guard/pkg/shutdown"
	"github.com/rs/zerolog/log"
)

// App defines the application lifecycle interface.
type App interface {
	Start(gc shutdown.Gracefuller)
}

// Guard encapsulates the demo service state: the governance engine, rule
// managers, HTTP server and probes.
type Guard struct {
	cfg     *config.Guard
	ctx     context.Context
	cancel  context.CancelFunc
	probe   liveness.Prober
	engine  *guard.Guard
	flowMgr *flow.Manager
	degMgr  *degrade.Manager
	server  server.Http
	loadgen *loadgen
}

// NewApp builds the app: managers, engine, observers, rules and server.
func NewApp(ctx context.Context, cfg *config.Guard, probe liveness.Prober) (*Guard, error) {
	ctx, cancel := context.WithCancel(ctx)

	if err := config.ApplyStatFromYaml(cfg.Guard.Stats); err != nil {
		cancel()
		return nil, err
	}
	if err := config.ApplyStatFromEnv(); err != nil {
		cancel()
		return nil, err
	}

	meter := metrics.New()
	flowMgr := flow.NewManager()
	degMgr := degrade.NewManager()

	engine := guard.New(
		guard.WithDegradeChecker(degMgr),
		guard.WithMeter(meter),
	)
	// The checker resolves RELATE strategies through the engine's registry,
	// so it is wired after construction.
	engine.SetFlowChecker(flow.NewChecker(flowMgr, engine))

	degMgr.RegisterStateChangeObserver(func(prev, cur degrade.State, rule *degrade.Rule, snapshot float64) {
		log.Info().Msgf("[degrade] breaker on %q: %s -> %s (snapshot=%v)", rule.Resource, prev, cur, snapshot)
		meter.SetBreakerState(rule.Resource, int(cur))
	})

	if path := cfg.Guard.Rules.Path; path != "" {
		file, err := rules.Load(path)
		if err != nil {
			cancel()
			return nil, err
		}
		file.Apply(flowMgr, degMgr)
	}

	app := &Guard{
		ctx:     ctx,
		cancel:  cancel,
		cfg:     cfg,
		probe:   probe,
		engine:  engine,
		flowMgr: flowMgr,
		degMgr:  degMgr,
	}

	srv, err := server.New(ctx, cfg, engine, probe)
	if err != nil {
		cancel()
		return nil, err
	}
	app.server = srv

	if cfg.Guard.Demo.SelfTraffic.Enabled {
		app.loadgen = newLoadgen(cfg)
	}

	return app, nil
}

// Start runs the server, probe and optional self traffic, then blocks until
// shutdown.
func (g *Guard) Start(gc shutdown.Gracefuller) {
	defer func() {
		g.stop()
		gc.Done()
	}()

	log.Info().Msg("[app] starting traffic guard")

	waitCh := make(chan struct{})
	go func() {
		defer close(waitCh)
		g.probe.Watch(g)
		g.server.Start()
	}()

	if g.loadgen != nil {
		go g.loadgen.run(g.ctx)
	}

	log.Info().Msg("[app] traffic guard has been started")

	<-waitCh
}

func (g *Guard) stop() {
	log.Info().Msg("[app] stopping traffic guard")
	defer g.cancel()
	log.Info().Msg("[app] traffic guard has been stopped")
}

// IsAlive is called by liveness probes to check app health.
func (g *Guard) IsAlive(_ context.Context) bool {
	if !g.server.IsAlive() {
		log.Info().Msg("[app] http server has gone away")
		return false
	}
	return true
}

// Engine exposes the governance engine for embedding callers.
func (g *Guard) Engine() *guard.Guard { return g.engine }
