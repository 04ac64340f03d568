package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIngestRegistersOnGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewIngest(reg)

	m.BlocksTotal.WithLabelValues("mainnet", "extend").Inc()
	m.TipHeight.WithLabelValues("mainnet").Set(42)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.BlocksTotal.WithLabelValues("mainnet", "extend")))
	assert.Equal(t, float64(42), testutil.ToFloat64(m.TipHeight.WithLabelValues("mainnet")))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, families, 2)

	// a second set on another registry must not collide
	assert.NotPanics(t, func() { NewIngest(prometheus.NewRegistry()) })
}
