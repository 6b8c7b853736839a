package raster

// ScalePolygon maps polygon vertices from raw raster coordinates to the
// project's simulation grid: x' = x * gridCols / maskCols and
// y' = y * gridRows / maskRows, truncated to integers. The input is not
// modified.
func ScalePolygon(poly []Point, maskRows, maskCols, gridRows, gridCols int) []Point {
	scaled := make([]Point, len(poly))
	for i, p := range poly {
		scaled[i] = Point{
			X: p.X * gridCols / maskCols,
			Y: p.Y * gridRows / maskRows,
		}
	}
	return scaled
}
