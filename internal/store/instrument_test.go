package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/WaterlinePL/hmse-projects/internal/observability"
	"github.com/WaterlinePL/hmse-projects/internal/store"
	"github.com/WaterlinePL/hmse-projects/internal/store/memory"
	"github.com/WaterlinePL/hmse-projects/pkg/domain"
)

func TestInstrumentRecordsOutcomes(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	s := store.Instrument(memory.New(), metrics)
	ctx := context.Background()

	if err := s.WriteMetadata(ctx, domain.NewProjectMetadata("demo")); err != nil {
		t.Fatalf("WriteMetadata: %v", err)
	}
	if _, err := s.ReadMetadata(ctx, "demo"); err != nil {
		t.Fatalf("ReadMetadata: %v", err)
	}
	if _, err := s.ReadMetadata(ctx, "ghost"); !errors.Is(err, domain.ErrProjectNotFound) {
		t.Fatalf("ReadMetadata(ghost) = %v, want ErrProjectNotFound", err)
	}

	if got := testutil.ToFloat64(metrics.StoreOps.WithLabelValues("write_metadata", "success")); got != 1 {
		t.Fatalf("write_metadata success count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.StoreOps.WithLabelValues("read_metadata", "success")); got != 1 {
		t.Fatalf("read_metadata success count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.StoreOps.WithLabelValues("read_metadata", "error")); got != 1 {
		t.Fatalf("read_metadata error count = %v, want 1", got)
	}
}

func TestInstrumentDelegatesDriver(t *testing.T) {
	s := store.Instrument(memory.New(), observability.NewMetricsForTesting())
	if s.Driver() != store.DriverMemory {
		t.Fatalf("Driver() = %s, want memory", s.Driver())
	}
}
