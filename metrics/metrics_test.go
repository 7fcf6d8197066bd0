package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestMustRegisterRegistersEveryCollectorExactlyOnce(t *testing.T) {
	var registry = prometheus.NewRegistry()
	require.NotPanics(t, func() { MustRegister(registry) })

	var families, err = registry.Gather()
	require.NoError(t, err)
	require.Len(t, families, 11)
}

func TestCountersIncrementIndependently(t *testing.T) {
	var registry = prometheus.NewRegistry()
	registry.MustRegister(EventsEmittedTotal, ListensOpenedTotal)

	EventsEmittedTotal.Add(3)
	ListensOpenedTotal.Inc()

	var families, err = registry.Gather()
	require.NoError(t, err)
	require.Len(t, families, 2)
}
