package guard

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/Borislavv/traffic-guard/pkg/config"
	"github.com/Borislavv/traffic-guard/pkg/rate"
	"github.com/rs/zerolog/log"
	"github.com/valyala/fasthttp"
)

// loadgen drives paced self-traffic against the demo endpoint so a freshly
// started instance has live statistics to look at.
type loadgen struct {
	cfg    *config.Guard
	client *fasthttp.Client
}

func newLoadgen(cfg *config.Guard) *loadgen {
	return &loadgen{
		cfg: cfg,
		client: &fasthttp.Client{
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
		},
	}
}

func (l *loadgen) run(ctx context.Context) {
	rps := l.cfg.Guard.Demo.SelfTraffic.Rps
	if rps <= 0 {
		rps = 1
	}

	port := l.cfg.Guard.Api.Port
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}
	base := "http://127.0.0.1" + port + "/api/v1/users/"

	limiter := rate.NewLimiter(ctx, rps)
	defer limiter.Stop()

	log.Info().Msgf("[loadgen] self traffic started at %d rps", rps)
	defer log.Info().Msg("[loadgen] self traffic stopped")

	var i int
	for {
		select {
		case <-ctx.Done():
			return
		case <-limiter.Chan():
			i++
			status, _, err := l.client.Get(nil, base+strconv.Itoa(i%100))
			if err != nil {
				log.Debug().Err(err).Msg("[loadgen] request failed")
				continue
			}
			if status >= fasthttp.StatusInternalServerError {
				log.Debug().Msgf("[loadgen] upstream answered %d", status)
			}
		}
	}
}
