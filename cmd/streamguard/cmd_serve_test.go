package main

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hed1ad/streamguard/internal/cache"
	"github.com/hed1ad/streamguard/internal/config"
)

func TestOpenStore(t *testing.T) {
	t.Run("memory when no redis address", func(t *testing.T) {
		a := &app{cfg: &config.Config{}, logger: zap.NewNop()}

		store, err := a.openStore(context.Background())
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &cache.Memory{}, store)
	})

	t.Run("unreachable redis", func(t *testing.T) {
		a := &app{
			cfg:    &config.Config{Redis: config.RedisConfig{Addr: "127.0.0.1:1", TTL: time.Minute}},
			logger: zap.NewNop(),
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		_, err := a.openStore(ctx)
		require.Error(t, err)
		assert.Equal(t, 1, strings.Count(err.Error(), "connecting to redis at 127.0.0.1:1"), err.Error())
	})
}
