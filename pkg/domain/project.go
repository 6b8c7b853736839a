// Package domain defines the project metadata record, its referential
// integrity invariants, and the error taxonomy shared by the storage engine
// and its callers.
package domain

import (
	"slices"
	"strings"
)

// SimulationMode selects how the soil-column and groundwater simulations are
// coupled.
type SimulationMode string

// Supported coupling modes.
const (
	SimulationSimpleCoupling SimulationMode = "SIMPLE_COUPLING"
	SimulationWithFeedback   SimulationMode = "WITH_FEEDBACK"
)

// Reserved shape identifiers. Shapes derived from the groundwater model are
// created and destroyed with it.
const (
	// InactiveCellsShapeID names the auto-derived shape marking grid cells
	// the groundwater model declares inactive.
	InactiveCellsShapeID = "inactive_modflow_cells"
	// InactiveCellsShapeColor is the fixed display color of the
	// inactive-cells shape.
	InactiveCellsShapeColor = "#999999"
	// RechargeShapePrefix prefixes the identifiers of recharge-zone shapes
	// (rch_shape_1, rch_shape_2, ...).
	RechargeShapePrefix = "rch_shape_"
)

// IsRechargeShapeID reports whether the identifier names an auto-derived
// recharge shape.
func IsRechargeShapeID(shapeID string) bool {
	return strings.HasPrefix(shapeID, RechargeShapePrefix)
}

// GroundwaterModel describes the single project-wide areal grid model.
type GroundwaterModel struct {
	ModelID  string    `json:"model_id"`
	Rows     int       `json:"rows"`
	Cols     int       `json:"cols"`
	RowCells []float64 `json:"row_cells"` // heights of consecutive rows
	ColCells []float64 `json:"col_cells"` // widths of consecutive columns
	GridUnit string    `json:"grid_unit"` // feet / meters / centimeters
	Duration int       `json:"duration"`  // run duration in days
}

// ProjectMetadata is the persisted record of a project's composition and
// cross-references. It is the single source of truth for what the artifact
// store should contain. All mutating methods validate synchronously; no
// invariant is violated even transiently within a single call.
type ProjectMetadata struct {
	ProjectID      string         `json:"project_id"`
	Lat            float64        `json:"lat,omitempty"`
	Lon            float64        `json:"long,omitempty"`
	StartDate      string         `json:"start_date,omitempty"` // YYYY-MM-DD
	EndDate        string         `json:"end_date,omitempty"`   // YYYY-MM-DD
	SpinUp         int            `json:"spin_up"`              // soil-model output days to discard
	Finished       bool           `json:"finished"`
	SimulationMode SimulationMode `json:"simulation_mode,omitempty"`

	Groundwater *GroundwaterModel `json:"groundwater_model,omitempty"`

	// Identifier sets, kept sorted so the record serializes stably.
	SoilModels   []string `json:"soil_models"`
	WeatherFiles []string `json:"weather_files"`

	// Shapes maps shape id to display color. Recharge shapes share this
	// identifier space; their masks live in a separate store partition.
	Shapes map[string]string `json:"shapes"`

	// ShapesToSoil maps a shape to the soil model (or manual value) feeding
	// it. SoilToWeather maps a soil model to the weather file driving it.
	// Absence means unmapped.
	ShapesToSoil  map[string]MappingTarget `json:"shapes_to_soil"`
	SoilToWeather map[string]string        `json:"soil_to_weather"`
}

// NewProjectMetadata returns an empty record for a freshly created project.
func NewProjectMetadata(projectID string) ProjectMetadata {
	return ProjectMetadata{
		ProjectID:     projectID,
		SoilModels:    []string{},
		WeatherFiles:  []string{},
		Shapes:        map[string]string{},
		ShapesToSoil:  map[string]MappingTarget{},
		SoilToWeather: map[string]string{},
	}
}

// Normalize makes sure collections deserialized from JSON null are usable.
// Store backends call it after unmarshaling a metadata record.
func (m *ProjectMetadata) Normalize() {
	if m.SoilModels == nil {
		m.SoilModels = []string{}
	}
	if m.WeatherFiles == nil {
		m.WeatherFiles = []string{}
	}
	m.normalize()
}

func (m *ProjectMetadata) normalize() {
	if m.Shapes == nil {
		m.Shapes = map[string]string{}
	}
	if m.ShapesToSoil == nil {
		m.ShapesToSoil = map[string]MappingTarget{}
	}
	if m.SoilToWeather == nil {
		m.SoilToWeather = map[string]string{}
	}
}

// HasSoilModel reports soil-model membership.
func (m *ProjectMetadata) HasSoilModel(id string) bool {
	return slices.Contains(m.SoilModels, id)
}

// HasWeatherFile reports weather-file membership.
func (m *ProjectMetadata) HasWeatherFile(id string) bool {
	return slices.Contains(m.WeatherFiles, id)
}

// HasShape reports shape membership.
func (m *ProjectMetadata) HasShape(id string) bool {
	_, ok := m.Shapes[id]
	return ok
}

// AddSoilModel registers a soil-column model identifier.
func (m *ProjectMetadata) AddSoilModel(id string) error {
	if m.HasSoilModel(id) {
		return ErrDuplicateSoilModel
	}
	m.SoilModels = insertSorted(m.SoilModels, id)
	return nil
}

// RemoveSoilModel drops a soil-column model and purges every cross-reference
// pointing at it: shape mappings targeting the model and its weather mapping.
func (m *ProjectMetadata) RemoveSoilModel(id string) error {
	i := slices.Index(m.SoilModels, id)
	if i < 0 {
		return ErrUnknownSoilModel
	}
	m.normalize()
	m.SoilModels = slices.Delete(m.SoilModels, i, i+1)
	var stale []string
	for shapeID, target := range m.ShapesToSoil {
		if soil, ok := target.SoilModel(); ok && soil == id {
			stale = append(stale, shapeID)
		}
	}
	for _, shapeID := range stale {
		delete(m.ShapesToSoil, shapeID)
	}
	delete(m.SoilToWeather, id)
	return nil
}

// AddWeatherFile registers a weather file identifier.
func (m *ProjectMetadata) AddWeatherFile(id string) error {
	if m.HasWeatherFile(id) {
		return ErrDuplicateWeatherFile
	}
	m.WeatherFiles = insertSorted(m.WeatherFiles, id)
	return nil
}

// RemoveWeatherFile drops a weather file and purges every soil-model mapping
// pointing at it. Matching keys are collected first, then deleted.
func (m *ProjectMetadata) RemoveWeatherFile(id string) error {
	i := slices.Index(m.WeatherFiles, id)
	if i < 0 {
		return ErrUnknownWeatherFile
	}
	m.normalize()
	m.WeatherFiles = slices.Delete(m.WeatherFiles, i, i+1)
	var stale []string
	for soilID, weatherID := range m.SoilToWeather {
		if weatherID == id {
			stale = append(stale, soilID)
		}
	}
	for _, soilID := range stale {
		delete(m.SoilToWeather, soilID)
	}
	return nil
}

// AddShape registers or recolors a shape. Overwriting is allowed; the mask
// itself lives in the artifact store.
func (m *ProjectMetadata) AddShape(id, color string) {
	m.normalize()
	m.Shapes[id] = color
}

// RemoveShape drops a shape and its outgoing mapping.
func (m *ProjectMetadata) RemoveShape(id string) error {
	if !m.HasShape(id) {
		return ErrUnknownShape
	}
	delete(m.Shapes, id)
	delete(m.ShapesToSoil, id)
	return nil
}

// MapShapeToSoilModel points a shape at a soil-column model. Both endpoints
// must exist; an existing mapping for the shape is overwritten.
func (m *ProjectMetadata) MapShapeToSoilModel(shapeID, soilModelID string) error {
	if !m.HasShape(shapeID) {
		return ErrUnknownShape
	}
	if !m.HasSoilModel(soilModelID) {
		return ErrUnknownSoilModel
	}
	m.normalize()
	m.ShapesToSoil[shapeID] = SoilTarget(soilModelID)
	return nil
}

// MapShapeToManualValue points a shape at a literal numeric value.
func (m *ProjectMetadata) MapShapeToManualValue(shapeID string, value float64) error {
	if !m.HasShape(shapeID) {
		return ErrUnknownShape
	}
	m.normalize()
	m.ShapesToSoil[shapeID] = ManualTarget(value)
	return nil
}

// MapSoilModelToWeather points a soil-column model at a weather file.
func (m *ProjectMetadata) MapSoilModelToWeather(soilModelID, weatherID string) error {
	if !m.HasSoilModel(soilModelID) {
		return ErrUnknownSoilModel
	}
	if !m.HasWeatherFile(weatherID) {
		return ErrUnknownWeatherFile
	}
	m.normalize()
	m.SoilToWeather[soilModelID] = weatherID
	return nil
}

// RemoveShapeMapping clears the shape's mapping. Fails when the shape itself
// is unknown; clearing an already-unmapped shape is a no-op.
func (m *ProjectMetadata) RemoveShapeMapping(shapeID string) error {
	if !m.HasShape(shapeID) {
		return ErrUnknownShape
	}
	delete(m.ShapesToSoil, shapeID)
	return nil
}

// RemoveSoilWeatherMapping clears the soil model's weather mapping. Fails when
// the soil model itself is unknown; clearing an unmapped model is a no-op.
func (m *ProjectMetadata) RemoveSoilWeatherMapping(soilModelID string) error {
	if !m.HasSoilModel(soilModelID) {
		return ErrUnknownSoilModel
	}
	delete(m.SoilToWeather, soilModelID)
	return nil
}

// SetGroundwaterModel replaces the single groundwater reference.
func (m *ProjectMetadata) SetGroundwaterModel(gw GroundwaterModel) {
	m.Groundwater = &gw
}

// ClearGroundwaterModel drops the groundwater reference.
func (m *ProjectMetadata) ClearGroundwaterModel() {
	m.Groundwater = nil
}

func insertSorted(set []string, id string) []string {
	i, _ := slices.BinarySearch(set, id)
	return slices.Insert(set, i, id)
}
