package store

import (
	"context"
	"io"
	"time"

	"github.com/WaterlinePL/hmse-projects/internal/observability"
	"github.com/WaterlinePL/hmse-projects/internal/raster"
	"github.com/WaterlinePL/hmse-projects/pkg/domain"
)

// Instrument wraps a backend so every operation records a count, an outcome,
// and a latency observation.
func Instrument(next Store, metrics *observability.Metrics) Store {
	return &instrumented{next: next, metrics: metrics}
}

type instrumented struct {
	next    Store
	metrics *observability.Metrics
}

func (s *instrumented) observe(op string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	s.metrics.StoreOps.WithLabelValues(op, outcome).Inc()
	s.metrics.StoreOpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (s *instrumented) ReadMetadata(ctx context.Context, projectID string) (domain.ProjectMetadata, error) {
	start := time.Now()
	meta, err := s.next.ReadMetadata(ctx, projectID)
	s.observe("read_metadata", start, err)
	return meta, err
}

func (s *instrumented) WriteMetadata(ctx context.Context, meta domain.ProjectMetadata) error {
	start := time.Now()
	err := s.next.WriteMetadata(ctx, meta)
	s.observe("write_metadata", start, err)
	return err
}

func (s *instrumented) ListProjectIDs(ctx context.Context) ([]string, error) {
	start := time.Now()
	ids, err := s.next.ListProjectIDs(ctx)
	s.observe("list_projects", start, err)
	return ids, err
}

func (s *instrumented) DeleteProject(ctx context.Context, projectID string) error {
	start := time.Now()
	err := s.next.DeleteProject(ctx, projectID)
	s.observe("delete_project", start, err)
	return err
}

func (s *instrumented) AddModelDirectory(ctx context.Context, projectID string, kind ModelKind, modelID, sourceDir string) error {
	start := time.Now()
	err := s.next.AddModelDirectory(ctx, projectID, kind, modelID, sourceDir)
	s.observe("add_model_directory", start, err)
	return err
}

func (s *instrumented) DeleteModelDirectory(ctx context.Context, projectID string, kind ModelKind, modelID string) error {
	start := time.Now()
	err := s.next.DeleteModelDirectory(ctx, projectID, kind, modelID)
	s.observe("delete_model_directory", start, err)
	return err
}

func (s *instrumented) PutWeatherFile(ctx context.Context, projectID, weatherID string, r io.Reader) error {
	start := time.Now()
	err := s.next.PutWeatherFile(ctx, projectID, weatherID, r)
	s.observe("put_weather_file", start, err)
	return err
}

func (s *instrumented) DeleteWeatherFile(ctx context.Context, projectID, weatherID string) error {
	start := time.Now()
	err := s.next.DeleteWeatherFile(ctx, projectID, weatherID)
	s.observe("delete_weather_file", start, err)
	return err
}

func (s *instrumented) PutShapeMask(ctx context.Context, projectID, shapeID string, mask *raster.Mask, recharge bool) error {
	start := time.Now()
	err := s.next.PutShapeMask(ctx, projectID, shapeID, mask, recharge)
	s.observe("put_shape_mask", start, err)
	return err
}

func (s *instrumented) GetShapeMask(ctx context.Context, projectID, shapeID string, recharge bool) (*raster.Mask, error) {
	start := time.Now()
	mask, err := s.next.GetShapeMask(ctx, projectID, shapeID, recharge)
	s.observe("get_shape_mask", start, err)
	return mask, err
}

func (s *instrumented) DeleteShapeMask(ctx context.Context, projectID, shapeID string, recharge bool) error {
	start := time.Now()
	err := s.next.DeleteShapeMask(ctx, projectID, shapeID, recharge)
	s.observe("delete_shape_mask", start, err)
	return err
}

func (s *instrumented) ListRechargeShapes(ctx context.Context, projectID string) (map[string]*raster.Mask, error) {
	start := time.Now()
	masks, err := s.next.ListRechargeShapes(ctx, projectID)
	s.observe("list_recharge_shapes", start, err)
	return masks, err
}

func (s *instrumented) ArchiveProject(ctx context.Context, projectID string) (io.ReadCloser, error) {
	start := time.Now()
	rc, err := s.next.ArchiveProject(ctx, projectID)
	s.observe("archive_project", start, err)
	return rc, err
}

func (s *instrumented) Driver() Driver { return s.next.Driver() }
