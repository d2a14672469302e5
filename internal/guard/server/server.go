package server

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/Borislavv/traffic-guard/internal/guard/api"
	"github.com/Borislavv/traffic-guard/pkg/config"
	"github.com/Borislavv/traffic-guard/pkg/guard"
	httpserver "github.com/Borislavv/traffic-guard/pkg/http/server"
	"github.com/Borislavv/traffic-guard/pkg/http/server/controller"
	"github.com/Borislavv/traffic-guard/pkg/http/server/middleware"
	"github.com/Borislavv/traffic-guard/pkg/k8s/probe/liveness"
	"github.com/rs/zerolog/log"
)

var InitFailedErrorMessage = "[server] init. failed"

// Http interface exposes methods for starting and liveness probing.
type Http interface {
	Start()
	IsAlive() bool
}

// HttpServer wires the demo API behind the guard middleware.
type HttpServer struct {
	ctx           context.Context
	cfg           *config.Guard
	engine        *guard.Guard
	probe         liveness.Prober
	server        *httpserver.HTTP
	isServerAlive *atomic.Bool
}

func New(
	ctx context.Context,
	cfg *config.Guard,
	engine *guard.Guard,
	probe liveness.Prober,
) (*HttpServer, error) {
	srv := &HttpServer{
		ctx:           ctx,
		cfg:           cfg,
		engine:        engine,
		probe:         probe,
		isServerAlive: &atomic.Bool{},
	}

	if err := srv.initServer(); err != nil {
		log.Err(err).Msg(InitFailedErrorMessage)
		return nil, errors.New(InitFailedErrorMessage)
	}

	return srv, nil
}

func (s *HttpServer) initServer() error {
	users, err := api.NewUserController(s.cfg)
	if err != nil {
		return err
	}

	controllers := []controller.HttpController{
		users,
		api.NewMetricsController(),
		api.NewProbeController(s.probe),
	}
	middlewares := []middleware.HttpMiddleware{
		middleware.NewRateLimitMiddleware(1000, 100),
		middleware.NewGuardMiddleware(s.engine, s.cfg.Guard.Api.Name),
	}

	s.server, err = httpserver.New(s.ctx, s.cfg, controllers, middlewares)
	return err
}

// Start runs the HTTP server and blocks until it exits.
func (s *HttpServer) Start() {
	s.isServerAlive.Store(true)
	defer s.isServerAlive.Store(false)
	s.server.ListenAndServe()
}

// IsAlive returns true if the server is marked as alive.
func (s *HttpServer) IsAlive() bool {
	return s.isServerAlive.Load()
}
