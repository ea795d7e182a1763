package redis

import (
	"context"
	"strings"

	"github.com/go-redis/redis/v8"
	"github.com/valkey-io/valkey-go"
)

// Open opens a connection to redis and returns it
func Open(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := Status(ctx, rdb); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}

// Status returns nil of redis status is ok. Otherwise a redis status err
func Status(ctx context.Context, rdb *redis.Client) error {
	if pingCmd := rdb.Ping(ctx); pingCmd.Err() != nil {
		return pingCmd.Err()
	}
	return nil
}

// OpenValkey opens a valkey client. url can be a redis:// url or a bare host:port address.
// Server assisted client side caching is disabled, entries are always read from the server.
func OpenValkey(ctx context.Context, url string) (valkey.Client, error) {
	opts := valkey.ClientOption{InitAddress: []string{url}}
	if strings.Contains(url, "://") {
		var err error
		if opts, err = valkey.ParseURL(url); err != nil {
			return nil, err
		}
	}
	opts.DisableCache = true
	client, err := valkey.NewClient(opts)
	if err != nil {
		return nil, err
	}
	if err := ValkeyStatus(ctx, client); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

// ValkeyStatus returns nil if the valkey server answers a ping
func ValkeyStatus(ctx context.Context, client valkey.Client) error {
	return client.Do(ctx, client.B().Ping().Build()).Error()
}

// Wrapper adapts a redis client to the health checker
type Wrapper struct {
	*redis.Client
}

// Ping returns nil when redis answers
func (w Wrapper) Ping(ctx context.Context) error {
	return Status(ctx, w.Client)
}

// ValkeyWrapper adapts a valkey client to the health checker
type ValkeyWrapper struct {
	Client valkey.Client
}

// Ping returns nil when valkey answers
func (w ValkeyWrapper) Ping(ctx context.Context) error {
	return ValkeyStatus(ctx, w.Client)
}
