// Package store defines the artifact store capability interface the project
// service persists through, together with the project namespace layout shared
// by every backend. Concrete backends live in the fs, s3, and memory
// subpackages; namespace construction never leaks to callers.
package store

import (
	"context"
	"io"

	"github.com/WaterlinePL/hmse-projects/internal/raster"
	"github.com/WaterlinePL/hmse-projects/pkg/domain"
)

// Driver identifies a concrete artifact store backend implementation.
type Driver string

const (
	// DriverFilesystem is the local directory-tree backend (default, dev).
	DriverFilesystem Driver = "fs"
	// DriverS3 is the S3 / MinIO compatible bucket backend.
	DriverS3 Driver = "s3"
	// DriverMemory is the in-memory backend used in tests.
	DriverMemory Driver = "memory"
)

// ModelKind selects a model artifact partition under models/.
type ModelKind string

const (
	// ModelSoil marks a soil-column model directory.
	ModelSoil ModelKind = "soil"
	// ModelGroundwater marks the groundwater model directory. Deleting it
	// also clears the derived recharge-shapes partition.
	ModelGroundwater ModelKind = "groundwater"
)

// Store persists a project's metadata record and binary artifacts under a
// project-scoped hierarchical namespace. Both persisted halves are updated as
// separate steps with no shared transaction; the caller sequences them.
// Operations on distinct projects are independent; concurrent writers to the
// same project race and the last writer wins.
type Store interface {
	// ReadMetadata fetches the project's metadata record.
	// Returns domain.ErrProjectNotFound when no record exists.
	ReadMetadata(ctx context.Context, projectID string) (domain.ProjectMetadata, error)
	// WriteMetadata overwrites the metadata record and ensures the project's
	// artifact sub-namespaces exist. Idempotent.
	WriteMetadata(ctx context.Context, meta domain.ProjectMetadata) error
	// ListProjectIDs enumerates immediate child namespaces under the root.
	// Order is not guaranteed.
	ListProjectIDs(ctx context.Context) ([]string, error)
	// DeleteProject removes the whole namespace subtree. Best effort: already
	// missing sub-paths are logged and skipped, never an error.
	DeleteProject(ctx context.Context, projectID string) error

	// AddModelDirectory copies every file of a validated staging directory
	// into models/<kind>/<modelID>/. Duplicate-id rejection is the caller's
	// responsibility and is not re-validated here.
	AddModelDirectory(ctx context.Context, projectID string, kind ModelKind, modelID, sourceDir string) error
	// DeleteModelDirectory removes models/<kind>/<modelID>/ recursively. For
	// the groundwater kind it also clears the recharge-shapes partition.
	DeleteModelDirectory(ctx context.Context, projectID string, kind ModelKind, modelID string) error

	PutWeatherFile(ctx context.Context, projectID, weatherID string, r io.Reader) error
	DeleteWeatherFile(ctx context.Context, projectID, weatherID string) error

	// PutShapeMask stores a serialized mask under shapes/ or, when recharge
	// is set, recharge-shapes/.
	PutShapeMask(ctx context.Context, projectID, shapeID string, mask *raster.Mask, recharge bool) error
	// GetShapeMask fetches a mask. Returns domain.ErrUnknownShape when the
	// blob is absent.
	GetShapeMask(ctx context.Context, projectID, shapeID string, recharge bool) (*raster.Mask, error)
	DeleteShapeMask(ctx context.Context, projectID, shapeID string, recharge bool) error
	// ListRechargeShapes fetches every mask in the recharge partition.
	ListRechargeShapes(ctx context.Context, projectID string) (map[string]*raster.Mask, error)

	// ArchiveProject streams a zip snapshot of the project's simulation
	// output subtree. The finished-simulation precondition is enforced by the
	// project service, not here.
	ArchiveProject(ctx context.Context, projectID string) (io.ReadCloser, error)

	// Driver reports the configured backend.
	Driver() Driver
}
