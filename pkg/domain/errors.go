package domain

import "errors"

// Error taxonomy for project operations. Domain validation errors are raised
// before any storage side effect, so a failed mutation leaves artifacts
// untouched. Storage transport failures are wrapped with %w at the call site
// and propagate unretried.
var (
	// ErrProjectNotFound indicates no metadata record exists under the
	// project's namespace.
	ErrProjectNotFound = errors.New("project not found")

	// ErrDuplicateSoilModel indicates an attempted re-add of an existing
	// soil-column model identifier.
	ErrDuplicateSoilModel = errors.New("soil model already exists")

	// ErrUnknownSoilModel indicates the soil-column model identifier is not
	// part of the project.
	ErrUnknownSoilModel = errors.New("unknown soil model")

	// ErrDuplicateWeatherFile indicates an attempted re-add of an existing
	// weather file identifier.
	ErrDuplicateWeatherFile = errors.New("weather file already exists")

	// ErrUnknownWeatherFile indicates the weather file identifier is not part
	// of the project.
	ErrUnknownWeatherFile = errors.New("unknown weather file")

	// ErrUnknownShape indicates the shape identifier is not part of the
	// project.
	ErrUnknownShape = errors.New("unknown shape")

	// ErrNoGroundwaterModel indicates the project has no groundwater model
	// reference.
	ErrNoGroundwaterModel = errors.New("no groundwater model")

	// ErrConflict indicates a store-level namespace already has content for
	// the identifier being added.
	ErrConflict = errors.New("namespace conflict")

	// ErrNotReady indicates an operation precondition (such as a finished
	// simulation) is not met.
	ErrNotReady = errors.New("project not ready")
)
