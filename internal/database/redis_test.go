package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisConfig_Options(t *testing.T) {
	t.Run("host and port", func(t *testing.T) {
		cfg := &RedisConfig{Host: "cache", Port: "6380", Password: "pw", DB: 2, PoolSize: 5}
		opts, err := cfg.Options()
		require.NoError(t, err)
		assert.Equal(t, "cache:6380", opts.Addr)
		assert.Equal(t, "pw", opts.Password)
		assert.Equal(t, 2, opts.DB)
		assert.Equal(t, 5, opts.PoolSize)
	})

	t.Run("url wins", func(t *testing.T) {
		cfg := &RedisConfig{URL: "redis://:secret@redis.internal:6379/3", Host: "ignored", Port: "1", PoolSize: 20}
		opts, err := cfg.Options()
		require.NoError(t, err)
		assert.Equal(t, "redis.internal:6379", opts.Addr)
		assert.Equal(t, "secret", opts.Password)
		assert.Equal(t, 3, opts.DB)
		assert.Equal(t, 20, opts.PoolSize)
	})

	t.Run("bad url", func(t *testing.T) {
		_, err := (&RedisConfig{URL: "http://nope"}).Options()
		assert.Error(t, err)
	})
}
