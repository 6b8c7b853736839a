// Package project orchestrates the metadata record and the artifact store
// into project lifecycle operations. Every public operation is a
// read-modify-write sequence: load metadata, mutate it through the record's
// own invariant checks, perform the store artifact operation, persist the
// record. Additions write the artifact before the record so a crash leaves an
// orphaned artifact rather than a reference to nothing; deletions persist the
// record first, then remove artifacts.
//
// Calls touching the same project are expected not to run concurrently;
// concurrent writers race and the last metadata write wins. This is an
// accepted limitation of the storage model, not something the service papers
// over.
package project

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/WaterlinePL/hmse-projects/internal/raster"
	"github.com/WaterlinePL/hmse-projects/internal/store"
	"github.com/WaterlinePL/hmse-projects/pkg/domain"
)

// Service implements the project lifecycle operations on top of an artifact
// store.
type Service struct {
	store store.Store
	log   *slog.Logger
}

// NewService constructs a service backed by the supplied store.
func NewService(s store.Store, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: s, log: log}
}

// Create persists a new, empty project record. Fails with ErrConflict when
// the identifier is taken.
func (s *Service) Create(ctx context.Context, meta domain.ProjectMetadata) error {
	_, err := s.store.ReadMetadata(ctx, meta.ProjectID)
	switch {
	case err == nil:
		return fmt.Errorf("%w: project %s", domain.ErrConflict, meta.ProjectID)
	case !errors.Is(err, domain.ErrProjectNotFound):
		return err
	}
	meta.Normalize()
	return s.store.WriteMetadata(ctx, meta)
}

// Get returns the project record.
func (s *Service) Get(ctx context.Context, projectID string) (domain.ProjectMetadata, error) {
	return s.store.ReadMetadata(ctx, projectID)
}

// List enumerates project identifiers.
func (s *Service) List(ctx context.Context) ([]string, error) {
	return s.store.ListProjectIDs(ctx)
}

// SaveOrUpdate overwrites the project record as-is. Used for plain attribute
// edits (coordinates, dates, spin-up, finished flag, simulation mode).
func (s *Service) SaveOrUpdate(ctx context.Context, meta domain.ProjectMetadata) error {
	return s.store.WriteMetadata(ctx, meta)
}

// Delete removes the project and all of its artifacts. Best effort.
func (s *Service) Delete(ctx context.Context, projectID string) error {
	return s.store.DeleteProject(ctx, projectID)
}

// IsFinished reports the project's finished flag.
func (s *Service) IsFinished(ctx context.Context, projectID string) (bool, error) {
	meta, err := s.store.ReadMetadata(ctx, projectID)
	if err != nil {
		return false, err
	}
	return meta.Finished, nil
}

// Archive streams a zip snapshot of the simulation output. Fails with
// ErrNotReady until the simulation finished.
func (s *Service) Archive(ctx context.Context, projectID string) (io.ReadCloser, error) {
	meta, err := s.store.ReadMetadata(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !meta.Finished {
		return nil, fmt.Errorf("%w: simulation of %s not finished", domain.ErrNotReady, projectID)
	}
	return s.store.ArchiveProject(ctx, projectID)
}

// SetSimulationMode updates the coupling mode.
func (s *Service) SetSimulationMode(ctx context.Context, projectID string, mode domain.SimulationMode) error {
	meta, err := s.store.ReadMetadata(ctx, projectID)
	if err != nil {
		return err
	}
	meta.SimulationMode = mode
	return s.store.WriteMetadata(ctx, meta)
}

// AddSoilModel registers a soil-column model and moves its validated staging
// directory into the store.
func (s *Service) AddSoilModel(ctx context.Context, projectID, modelID, stagingDir string) error {
	meta, err := s.store.ReadMetadata(ctx, projectID)
	if err != nil {
		return err
	}
	if err := meta.AddSoilModel(modelID); err != nil {
		return err
	}
	if err := s.store.AddModelDirectory(ctx, projectID, store.ModelSoil, modelID, stagingDir); err != nil {
		return err
	}
	return s.store.WriteMetadata(ctx, meta)
}

// DeleteSoilModel removes a soil-column model, its artifacts, and every
// cross-reference pointing at it.
func (s *Service) DeleteSoilModel(ctx context.Context, projectID, modelID string) error {
	meta, err := s.store.ReadMetadata(ctx, projectID)
	if err != nil {
		return err
	}
	if err := meta.RemoveSoilModel(modelID); err != nil {
		return err
	}
	if err := s.store.WriteMetadata(ctx, meta); err != nil {
		return err
	}
	return s.store.DeleteModelDirectory(ctx, projectID, store.ModelSoil, modelID)
}

// AddWeatherFile registers a weather time series and stores its content.
func (s *Service) AddWeatherFile(ctx context.Context, projectID, weatherID string, r io.Reader) error {
	meta, err := s.store.ReadMetadata(ctx, projectID)
	if err != nil {
		return err
	}
	if err := meta.AddWeatherFile(weatherID); err != nil {
		return err
	}
	if err := s.store.PutWeatherFile(ctx, projectID, weatherID, r); err != nil {
		return err
	}
	return s.store.WriteMetadata(ctx, meta)
}

// DeleteWeatherFile removes a weather time series and every soil-model
// mapping driven by it.
func (s *Service) DeleteWeatherFile(ctx context.Context, projectID, weatherID string) error {
	meta, err := s.store.ReadMetadata(ctx, projectID)
	if err != nil {
		return err
	}
	if err := meta.RemoveWeatherFile(weatherID); err != nil {
		return err
	}
	if err := s.store.WriteMetadata(ctx, meta); err != nil {
		return err
	}
	return s.store.DeleteWeatherFile(ctx, projectID, weatherID)
}

// SetGroundwaterModel installs a validated groundwater model. A previous
// model is torn down first, together with its derived shapes. The derived
// state is then recomputed: the inactive-cells shape under its reserved
// identifier, and one recharge shape per recharge zone in package-file order.
func (s *Service) SetGroundwaterModel(ctx context.Context, projectID string, upload GroundwaterUpload) error {
	meta, err := s.store.ReadMetadata(ctx, projectID)
	if err != nil {
		return err
	}
	if prev := meta.Groundwater; prev != nil {
		s.removeDerivedShapes(ctx, projectID, &meta)
		meta.ClearGroundwaterModel()
		if err := s.store.DeleteModelDirectory(ctx, projectID, store.ModelGroundwater, prev.ModelID); err != nil {
			return err
		}
	}
	if err := s.store.AddModelDirectory(ctx, projectID, store.ModelGroundwater, upload.Model.ModelID, upload.StagingDir); err != nil {
		return err
	}
	if upload.InactiveCells != nil {
		if err := s.store.PutShapeMask(ctx, projectID, domain.InactiveCellsShapeID, upload.InactiveCells, false); err != nil {
			return err
		}
		meta.AddShape(domain.InactiveCellsShapeID, domain.InactiveCellsShapeColor)
	}
	for i, zone := range upload.RechargeZones {
		shapeID := domain.RechargeShapePrefix + strconv.Itoa(i+1)
		if err := s.store.PutShapeMask(ctx, projectID, shapeID, zone, true); err != nil {
			return err
		}
		meta.AddShape(shapeID, domain.RandomShapeColor())
	}
	meta.SetGroundwaterModel(upload.Model)
	if upload.StartDate != "" {
		meta.StartDate = upload.StartDate
	}
	return s.store.WriteMetadata(ctx, meta)
}

// DeleteGroundwaterModel removes the groundwater model, its artifacts, and
// every shape derived from it.
func (s *Service) DeleteGroundwaterModel(ctx context.Context, projectID string) error {
	meta, err := s.store.ReadMetadata(ctx, projectID)
	if err != nil {
		return err
	}
	if meta.Groundwater == nil {
		return fmt.Errorf("%w: project %s", domain.ErrNoGroundwaterModel, projectID)
	}
	modelID := meta.Groundwater.ModelID
	s.removeDerivedShapes(ctx, projectID, &meta)
	meta.ClearGroundwaterModel()
	if err := s.store.WriteMetadata(ctx, meta); err != nil {
		return err
	}
	// Recharge masks disappear with the model directory.
	return s.store.DeleteModelDirectory(ctx, projectID, store.ModelGroundwater, modelID)
}

// removeDerivedShapes drops the groundwater-derived shapes from the record
// and removes the inactive-cells mask. Recharge masks live in the recharge
// partition and are cleared by the store when the model directory goes away.
func (s *Service) removeDerivedShapes(ctx context.Context, projectID string, meta *domain.ProjectMetadata) {
	for shapeID := range meta.Shapes {
		if shapeID != domain.InactiveCellsShapeID && !domain.IsRechargeShapeID(shapeID) {
			continue
		}
		if err := meta.RemoveShape(shapeID); err != nil {
			continue
		}
		if shapeID == domain.InactiveCellsShapeID {
			if err := s.store.DeleteShapeMask(ctx, projectID, shapeID, false); err != nil {
				s.log.Warn("inactive-cells mask cleanup failed", "project", projectID, "error", err)
			}
		}
	}
}

// SaveOrUpdateShape upserts a shape's mask and color. When previousID names a
// different shape, the operation is a rename: the old mask is deleted, the
// color and any mapping carry over to the new identifier, the old record
// entry is dropped, the new one inserted, and the new mask written. Every
// step is attempted even if an earlier one fails, so the record converges to
// the most consistent reachable state; re-issuing the operation is safe.
func (s *Service) SaveOrUpdateShape(ctx context.Context, projectID, previousID, shapeID string, mask *raster.Mask, color string) error {
	meta, err := s.store.ReadMetadata(ctx, projectID)
	if err != nil {
		return err
	}
	var errs []error
	if previousID != "" && previousID != shapeID && meta.HasShape(previousID) {
		if err := s.store.DeleteShapeMask(ctx, projectID, previousID, domain.IsRechargeShapeID(previousID)); err != nil {
			errs = append(errs, fmt.Errorf("delete mask %s: %w", previousID, err))
		}
		if color == "" {
			color = meta.Shapes[previousID]
		}
		if target, ok := meta.ShapesToSoil[previousID]; ok {
			meta.AddShape(shapeID, color)
			meta.ShapesToSoil[shapeID] = target
		}
		if err := meta.RemoveShape(previousID); err != nil {
			errs = append(errs, err)
		}
	}
	if color == "" {
		if existing, ok := meta.Shapes[shapeID]; ok {
			color = existing
		} else {
			color = domain.RandomShapeColor()
		}
	}
	meta.AddShape(shapeID, color)
	if mask != nil {
		if err := s.store.PutShapeMask(ctx, projectID, shapeID, mask, domain.IsRechargeShapeID(shapeID)); err != nil {
			errs = append(errs, fmt.Errorf("write mask %s: %w", shapeID, err))
		}
	}
	if err := s.store.WriteMetadata(ctx, meta); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// DeleteShape removes a shape, its mapping, and its mask.
func (s *Service) DeleteShape(ctx context.Context, projectID, shapeID string) error {
	meta, err := s.store.ReadMetadata(ctx, projectID)
	if err != nil {
		return err
	}
	if err := meta.RemoveShape(shapeID); err != nil {
		return err
	}
	if err := s.store.WriteMetadata(ctx, meta); err != nil {
		return err
	}
	return s.store.DeleteShapeMask(ctx, projectID, shapeID, domain.IsRechargeShapeID(shapeID))
}

// WipeAllShapes removes every shape, mapping, and mask of the project.
func (s *Service) WipeAllShapes(ctx context.Context, projectID string) error {
	meta, err := s.store.ReadMetadata(ctx, projectID)
	if err != nil {
		return err
	}
	shapeIDs := make([]string, 0, len(meta.Shapes))
	for shapeID := range meta.Shapes {
		shapeIDs = append(shapeIDs, shapeID)
	}
	for _, shapeID := range shapeIDs {
		_ = meta.RemoveShape(shapeID)
	}
	if err := s.store.WriteMetadata(ctx, meta); err != nil {
		return err
	}
	var errs []error
	for _, shapeID := range shapeIDs {
		if err := s.store.DeleteShapeMask(ctx, projectID, shapeID, domain.IsRechargeShapeID(shapeID)); err != nil {
			s.log.Warn("shape mask cleanup failed", "project", projectID, "shape", shapeID, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// GetAllShapes loads every shape mask of the project, keyed by shape id.
func (s *Service) GetAllShapes(ctx context.Context, projectID string) (map[string]*raster.Mask, error) {
	meta, err := s.store.ReadMetadata(ctx, projectID)
	if err != nil {
		return nil, err
	}
	masks := make(map[string]*raster.Mask, len(meta.Shapes))
	for shapeID := range meta.Shapes {
		mask, err := s.store.GetShapeMask(ctx, projectID, shapeID, domain.IsRechargeShapeID(shapeID))
		if err != nil {
			return nil, err
		}
		masks[shapeID] = mask
	}
	return masks, nil
}

// GetShapePolygon converts a stored mask back to display coordinates: the
// outer contour is traced and rescaled to the simulation grid defined by the
// groundwater model.
func (s *Service) GetShapePolygon(ctx context.Context, projectID, shapeID string) ([]raster.Point, error) {
	meta, err := s.store.ReadMetadata(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !meta.HasShape(shapeID) {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownShape, shapeID)
	}
	if meta.Groundwater == nil {
		return nil, fmt.Errorf("%w: project %s has no simulation grid", domain.ErrNoGroundwaterModel, projectID)
	}
	mask, err := s.store.GetShapeMask(ctx, projectID, shapeID, domain.IsRechargeShapeID(shapeID))
	if err != nil {
		return nil, err
	}
	outer := raster.OuterPolygon(mask)
	if outer == nil {
		return nil, nil
	}
	return raster.ScalePolygon(outer, mask.Rows(), mask.Cols(), meta.Groundwater.Rows, meta.Groundwater.Cols), nil
}

// MapShapeToSoilModel points a shape at a soil-column model.
func (s *Service) MapShapeToSoilModel(ctx context.Context, projectID, shapeID, soilModelID string) error {
	return s.updateMetadata(ctx, projectID, func(meta *domain.ProjectMetadata) error {
		return meta.MapShapeToSoilModel(shapeID, soilModelID)
	})
}

// MapShapeToManualValue points a shape at a literal numeric value.
func (s *Service) MapShapeToManualValue(ctx context.Context, projectID, shapeID string, value float64) error {
	return s.updateMetadata(ctx, projectID, func(meta *domain.ProjectMetadata) error {
		return meta.MapShapeToManualValue(shapeID, value)
	})
}

// MapSoilModelToWeather points a soil-column model at a weather file.
func (s *Service) MapSoilModelToWeather(ctx context.Context, projectID, soilModelID, weatherID string) error {
	return s.updateMetadata(ctx, projectID, func(meta *domain.ProjectMetadata) error {
		return meta.MapSoilModelToWeather(soilModelID, weatherID)
	})
}

// RemoveShapeMapping clears a shape's mapping.
func (s *Service) RemoveShapeMapping(ctx context.Context, projectID, shapeID string) error {
	return s.updateMetadata(ctx, projectID, func(meta *domain.ProjectMetadata) error {
		return meta.RemoveShapeMapping(shapeID)
	})
}

// RemoveSoilWeatherMapping clears a soil model's weather mapping.
func (s *Service) RemoveSoilWeatherMapping(ctx context.Context, projectID, soilModelID string) error {
	return s.updateMetadata(ctx, projectID, func(meta *domain.ProjectMetadata) error {
		return meta.RemoveSoilWeatherMapping(soilModelID)
	})
}

// updateMetadata is the read-modify-write helper for pure record mutations.
func (s *Service) updateMetadata(ctx context.Context, projectID string, mutate func(*domain.ProjectMetadata) error) error {
	meta, err := s.store.ReadMetadata(ctx, projectID)
	if err != nil {
		return err
	}
	if err := mutate(&meta); err != nil {
		return err
	}
	return s.store.WriteMetadata(ctx, meta)
}
