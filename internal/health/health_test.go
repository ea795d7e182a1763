package health

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"

	iRedis "github.com/polygonid/launchpad-identity/internal/redis"
)

type unknownPinger struct{}

func (unknownPinger) Ping(context.Context) error { return nil }

func TestStatus(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	h := New(iRedis.Wrapper{Client: rdb}, unknownPinger{})
	assert.Equal(t, map[string]bool{"redis": true}, h.Status(context.Background()))

	mr.Close()
	assert.Equal(t, map[string]bool{"redis": false}, h.Status(context.Background()))
}
