package utils

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresPoolConfig_Defaults(t *testing.T) {
	got := PostgresPoolConfig{MaxOpenConns: 5, MaxIdleConns: 10}.withDefaults()

	assert.Equal(t, 5, got.MaxOpenConns)
	assert.Equal(t, 5, got.MaxIdleConns, "idle capped at open")
	assert.Equal(t, 30*time.Minute, got.ConnMaxLifetime)
	assert.Equal(t, 5*time.Minute, got.ConnMaxIdleTime)
	assert.Equal(t, 5*time.Second, got.PingTimeout)
	assert.Equal(t, "authguard", got.ApplicationName)
}

func TestOpenPostgres_RejectsBadDSN(t *testing.T) {
	_, err := OpenPostgres(context.Background(), "host=localhost port=notaport", PostgresPoolConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse postgres dsn")
}
