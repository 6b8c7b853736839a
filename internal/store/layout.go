package store

import "path"

// Namespace layout under a project root. Identical for every backend; the
// filesystem backend maps entries to directories, the object backend to key
// prefixes.
const (
	// MetadataFile is the project metadata record.
	MetadataFile = "metadata.json"
	// WeatherExt is the weather time-series file extension.
	WeatherExt = ".csv"
	// MaskExt is the serialized zone mask extension.
	MaskExt = ".mask"
	// OutputDir holds simulation results written by the external engines;
	// ArchiveProject snapshots only this subtree.
	OutputDir = "output"

	shapesDir         = "shapes"
	rechargeShapesDir = "recharge-shapes"
	modelsDir         = "models"
	weatherDir        = "weather"
)

// SubNamespaces are the artifact partitions WriteMetadata guarantees to
// exist under a project root.
var SubNamespaces = []string{
	modelsDir + "/" + string(ModelGroundwater),
	modelsDir + "/" + string(ModelSoil),
	weatherDir,
	shapesDir,
	rechargeShapesDir,
}

// ModelPath returns the project-relative path of a model directory.
func ModelPath(kind ModelKind, modelID string) string {
	return path.Join(modelsDir, string(kind), modelID)
}

// WeatherPath returns the project-relative path of a weather file.
func WeatherPath(weatherID string) string {
	return path.Join(weatherDir, weatherID+WeatherExt)
}

// ShapePath returns the project-relative path of a mask blob.
func ShapePath(shapeID string, recharge bool) string {
	return path.Join(ShapeDir(recharge), shapeID+MaskExt)
}

// ShapeDir returns the mask partition for the shape family.
func ShapeDir(recharge bool) string {
	if recharge {
		return rechargeShapesDir
	}
	return shapesDir
}

// RechargeDir returns the recharge mask partition.
func RechargeDir() string { return rechargeShapesDir }
