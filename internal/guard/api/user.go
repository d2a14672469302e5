package api

import (
	"fmt"

	"github.com/Borislavv/traffic-guard/pkg/config"
	"github.com/dgraph-io/ristretto"
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"
)

// UserController is the demo protected endpoint: a user lookup backed by a
// ristretto cache, governed by the guard middleware above it.
type UserController struct {
	cache *ristretto.Cache
}

func NewUserController(cfg *config.Guard) (*UserController, error) {
	counters := cfg.Guard.Demo.Users.CacheCounters
	if counters <= 0 {
		counters = 1e5
	}
	maxCost := cfg.Guard.Demo.Users.CacheMaxCost
	if maxCost <= 0 {
		maxCost = 1 << 20
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: counters,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("init user cache: %w", err)
	}
	return &UserController{cache: cache}, nil
}

func (c *UserController) AddRoute(r *router.Router) {
	r.GET("/api/v1/users/{id}", c.getUser)
}

func (c *UserController) getUser(ctx *fasthttp.RequestCtx) {
	id, ok := ctx.UserValue("id").(string)
	if !ok || id == "" {
		ctx.SetStatusCode(fasthttp.StatusBadRequest)
		return
	}

	if cached, hit := c.cache.Get(id); hit {
		ctx.SetContentType("application/json")
		ctx.SetBody(cached.([]byte))
		return
	}

	body := []byte(fmt.Sprintf(`{"id":%q,"name":"user-%s"}`, id, id))
	c.cache.Set(id, body, int64(len(body)))

	ctx.SetContentType("application/json")
	ctx.SetBody(body)
}
