//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onboard/internal/platform/config"
	"onboard/pkg/testutil/containers"
)

func TestOpenAndHealth(t *testing.T) {
	pc := containers.NewPostgresContainer(t)
	ctx := context.Background()

	db, err := Open(ctx, config.PostgresConfig{DSN: pc.DSN, MaxOpenConns: 2, MaxIdleConns: 1, ConnMaxLifetime: time.Minute})
	require.NoError(t, err)
	defer db.Close()
	assert.NoError(t, db.Health(ctx))
}
