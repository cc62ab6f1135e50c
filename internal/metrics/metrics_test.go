package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry_CollectorsGatherWithoutError(t *testing.T) {
	m := NewRegistry()
	m.ProjectsIndexed.Set(3)
	m.IndexJobsTotal.WithLabelValues("success").Inc()
	m.ParseErrorsTotal.Add(2)

	families, err := m.Gatherer().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)

	assert.Equal(t, float64(3), testutil.ToFloat64(m.ProjectsIndexed))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.ParseErrorsTotal))
}
