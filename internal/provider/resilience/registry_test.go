package resilience_test

import (
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courierfee/courierfee/internal/provider/resilience"
)

type stubBreaker struct {
	state gobreaker.State
}

func (b stubBreaker) State() gobreaker.State   { return b.state }
func (b stubBreaker) Counts() gobreaker.Counts { return gobreaker.Counts{Requests: 4} }

func TestRegistry_Health(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 14, 12, 15, 0, 0, time.UTC))
	registry := resilience.NewRegistry(clock)
	registry.Register("ilmateenistus", resilience.NewClient(fastConfig("ilmateenistus")))

	health, ok := registry.Health("ilmateenistus")
	require.True(t, ok)
	assert.Equal(t, gobreaker.StateClosed, health.CircuitState)
	assert.True(t, health.IsHealthy())
	assert.Nil(t, health.LastSuccessAt)

	registry.RecordSuccess("ilmateenistus")
	clock.Advance(time.Hour)
	registry.RecordFailure("ilmateenistus", errors.New("timeout"))

	health, _ = registry.Health("ilmateenistus")
	require.NotNil(t, health.LastSuccessAt)
	require.NotNil(t, health.LastFailureAt)
	assert.Equal(t, time.Date(2024, 3, 14, 12, 15, 0, 0, time.UTC), *health.LastSuccessAt)
	assert.Equal(t, time.Date(2024, 3, 14, 13, 15, 0, 0, time.UTC), *health.LastFailureAt)
	assert.Equal(t, "timeout", health.LastError)
}

func TestRegistry_Unknown(t *testing.T) {
	registry := resilience.NewRegistry(nil)

	registry.RecordSuccess("missing")
	_, ok := registry.Health("missing")
	assert.False(t, ok)
	assert.Empty(t, registry.All())
}

func TestRegistry_All(t *testing.T) {
	registry := resilience.NewRegistry(nil)
	registry.Register("zeta", stubBreaker{state: gobreaker.StateOpen})
	registry.Register("alpha", stubBreaker{state: gobreaker.StateHalfOpen})

	all := registry.All()
	require.Len(t, all, 2)
	assert.Equal(t, "alpha", all[0].Name)
	assert.True(t, all[0].IsDegraded())
	assert.Equal(t, "zeta", all[1].Name)
	assert.False(t, all[1].IsHealthy())
	assert.Equal(t, uint32(4), all[1].Counts.Requests)
}
