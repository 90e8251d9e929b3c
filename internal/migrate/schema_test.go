package migrate

import (
	"io"
	"testing"

	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrations(t *testing.T) {
	src, err := iofs.New(migrations, "migrations")
	require.NoError(t, err)
	defer src.Close()

	v, err := src.First()
	require.NoError(t, err)
	assert.Equal(t, uint(1), v)

	r, id, err := src.ReadUp(v)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, "relay_stats", id)
	b, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Contains(t, string(b), "_relay_stats_total")
	assert.Contains(t, string(b), "_relay_stats_daily")

	_, err = src.Next(v)
	assert.Error(t, err, "single migration")
}
