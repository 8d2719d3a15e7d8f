package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	require.NotNil(t, r.GenerationsTotal)
	require.NotNil(t, r.CapabilityWarningsTotal)
	require.NotNil(t, r.RecordsTotal)
	require.NotNil(t, r.GenerationDuration)
	require.NotNil(t, r.GetPrometheusRegistry())
}

func TestRecordGeneration(t *testing.T) {
	r := NewRegistry()

	r.RecordGeneration("helm", nil, 10*time.Millisecond)
	r.RecordGeneration("helm", nil, 20*time.Millisecond)
	r.RecordGeneration("terraform", errors.New("boom"), time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.GenerationsTotal.WithLabelValues("helm", StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.GenerationsTotal.WithLabelValues("terraform", StatusFailure)))
	assert.Equal(t, 2, testutil.CollectAndCount(r.GenerationDuration))
}

func TestRecordCounters(t *testing.T) {
	r := NewRegistry()

	r.RecordWarnings("docker-compose", 3)
	r.RecordRecord("Workload")
	r.RecordRecord("Workload")
	r.RecordFilesWritten("kubernetes", 5)

	assert.Equal(t, 3.0, testutil.ToFloat64(r.CapabilityWarningsTotal.WithLabelValues("docker-compose")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.RecordsTotal.WithLabelValues("Workload")))
	assert.Equal(t, 5.0, testutil.ToFloat64(r.FilesWrittenTotal.WithLabelValues("kubernetes")))
}

func TestWriteTextfile(t *testing.T) {
	r := NewRegistry()
	r.RecordGeneration("kubernetes", nil, time.Millisecond)

	path := filepath.Join(t.TempDir(), "textfile", "stackctl.prom")
	require.NoError(t, r.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `stackctl_generations_total{format="kubernetes",status="success"} 1`))
}
