package telemetry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScopedAPI(t *testing.T) {
	rec := &Recorder{}
	scoped := NewScopedAPI("pipeline", NewScopedAPI("tcaqs", rec))

	err := errors.New("disk full")
	scoped.ReportBroken("ingest.chunk", err, 3)
	scoped.ReportWarning("ingest.document", "1002.html")
	scoped.ReportDebug("progress", 10)
	scoped.ReportCount("ingest.chunk", 42)

	broken := rec.Reports("broken", "")
	require.Len(t, broken, 1)
	require.Equal(t, "tcaqs: pipeline: ingest.chunk", broken[0].ID)
	require.Equal(t, []any{err, 3}, broken[0].Params)

	require.Len(t, rec.Reports("warning", "ingest.document"), 1)
	require.Len(t, rec.Reports("debug", "progress"), 1)

	counts := rec.Reports("count", "ingest.chunk")
	require.Len(t, counts, 1)
	require.Equal(t, []any{int64(42)}, counts[0].Params)
	require.Equal(t, "count tcaqs: pipeline: ingest.chunk [42]", counts[0].String())

	require.Empty(t, rec.Reports("broken", "reconcile"))
}

func TestCPUCount(t *testing.T) {
	require.GreaterOrEqual(t, CPUCount(), 1)
}
