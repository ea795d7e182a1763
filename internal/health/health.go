package health

import (
	"context"
	"time"

	iRedis "github.com/polygonid/launchpad-identity/internal/redis"
	"github.com/polygonid/launchpad-identity/pkg/blockchain/eth"
)

const (
	redis    = "redis"
	valkey   = "valkey"
	ethereum = "ethereum"

	pingTimeout = 5 * time.Second
)

// Status struct
type Status struct {
	pingers map[string]Ping
}

// Ping interface
type Ping interface {
	Ping(ctx context.Context) error
}

// New returns a Health instance. Unknown pingers are ignored.
func New(pingers ...Ping) *Status {
	m := make(map[string]Ping)

	for _, p := range pingers {
		switch t := p.(type) {
		case *eth.Client:
			m[ethereum] = t
		case iRedis.Wrapper:
			m[redis] = t
		case iRedis.ValkeyWrapper:
			m[valkey] = t
		}
	}

	return &Status{m}
}

// Status returns whether the chain node and the cache are reachable
func (h *Status) Status(ctx context.Context) map[string]bool {
	m := make(map[string]bool)

	for key, val := range h.pingers {
		m[key] = true
		pctx, cancel := context.WithTimeout(ctx, pingTimeout)
		if err := val.Ping(pctx); err != nil {
			m[key] = false
		}
		cancel()
	}

	return m
}
