package project

import (
	"context"
	"io"

	"github.com/WaterlinePL/hmse-projects/internal/raster"
	"github.com/WaterlinePL/hmse-projects/pkg/domain"
)

// GroundwaterUpload is the outcome of validating a groundwater model archive:
// a staging directory holding the unpacked files plus everything parsed out
// of the package that the project record needs.
type GroundwaterUpload struct {
	// StagingDir holds the validated, unpacked model files ready to move
	// into the store.
	StagingDir string
	Model      domain.GroundwaterModel
	// StartDate is the simulation start date encoded in the package
	// (YYYY-MM-DD).
	StartDate string
	// InactiveCells flags grid cells the model excludes from simulation.
	InactiveCells *raster.Mask
	// RechargeZones are the recharge-package zone masks in package-file
	// order; they become rch_shape_1, rch_shape_2, ...
	RechargeZones []*raster.Mask
}

// ModelValidator unpacks and validates an uploaded groundwater model archive.
// Format internals are the validator's concern; the service only consumes the
// parsed result.
type ModelValidator interface {
	ValidateGroundwater(ctx context.Context, archive io.Reader) (GroundwaterUpload, error)
}

// ZoneFileParser turns a budget-zone definition file into raw masks, one per
// zone, in file order.
type ZoneFileParser interface {
	ParseZones(ctx context.Context, r io.Reader) ([]*raster.Mask, error)
}
