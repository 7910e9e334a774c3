package cmd

import (
	"context"
	"fmt"

	"github.com/telekom/azure-vminfo/pkg/ratelimit"
	"github.com/telekom/azure-vminfo/pkg/vminfo/auth"
	"github.com/telekom/azure-vminfo/pkg/vminfo/cache"
	"github.com/telekom/azure-vminfo/pkg/vminfo/client"
	"github.com/telekom/azure-vminfo/pkg/vminfo/config"
)

func (rt *runtimeState) tokenStore() (auth.TokenStore, error) {
	return auth.NewTokenStore(rt.TokenStorage(), rt.Paths().TokenFile)
}

func (rt *runtimeState) engine() (*auth.Engine, error) {
	store, err := rt.tokenStore()
	if err != nil {
		return nil, err
	}
	engine := auth.NewEngine(store, rt.Log())
	engine.NonInteractive = rt.nonInteractive
	engine.Prompt = func(dc auth.DeviceCode) {
		if dc.Message != "" {
			_, _ = fmt.Fprintln(rt.ErrWriter(), dc.Message)
			return
		}
		_, _ = fmt.Fprintf(rt.ErrWriter(), "To sign in, open %s and enter the code %s\n", dc.VerificationURI, dc.UserCode)
	}
	return engine, nil
}

// resultCache opens the configured backend. The caller closes it.
func (rt *runtimeState) resultCache(ctx context.Context) (cache.ResultCache, func(), error) {
	switch rt.cfg.CacheBackend() {
	case config.CacheBackendRedis:
		r := rt.cfg.Cache.Redis
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     r.Addr,
			Username: r.Username,
			Password: r.Password,
			DB:       r.DB,
			Prefix:   r.Prefix,
			TLS:      r.TLS,
		})
		if err != nil {
			return nil, nil, err
		}
		return rc, func() { _ = rc.Close() }, nil
	default:
		return cache.NewFileCache(rt.Paths().CacheFile), func() {}, nil
	}
}

func (rt *runtimeState) queryClient(tokens client.TokenSource, rc cache.ResultCache) (*client.Client, error) {
	limit := ratelimit.DefaultQueryConfig()
	if rps := rt.cfg.Settings.RequestsPerSecond; rps > 0 {
		limit = ratelimit.Config{Rate: rps, Burst: max(1, int(rps))}
	}
	return client.New(tokens,
		client.WithEndpoint(rt.cfg.Endpoint),
		client.WithCache(rc),
		client.WithLogger(rt.Log()),
		client.WithRateLimit(limit),
	)
}
