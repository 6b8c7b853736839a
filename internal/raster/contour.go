package raster

// Point is a polygon vertex. X is the column coordinate, Y the row
// coordinate, matching the display convention of the zone editor.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Moore neighborhood in clockwise order starting north, as (dRow, dCol).
var moore = [8][2]int{
	{-1, 0}, {-1, 1}, {0, 1}, {1, 1},
	{1, 0}, {1, -1}, {0, -1}, {-1, -1},
}

// TracePolygons extracts the boundary polygon of every 4-connected component
// of set cells, in row-major discovery order. Vertices are raw cell
// coordinates. The outermost contour of interest is by convention the last
// polygon returned.
func TracePolygons(m *Mask) [][]Point {
	visited := make([]bool, m.rows*m.cols)
	var polygons [][]Point
	for r := 0; r < m.rows; r++ {
		for c := 0; c < m.cols; c++ {
			if !m.At(r, c) || visited[r*m.cols+c] {
				continue
			}
			polygons = append(polygons, traceBoundary(m, r, c))
			fillComponent(m, r, c, visited)
		}
	}
	return polygons
}

// OuterPolygon returns the deterministically selected outer contour, or nil
// for an empty mask.
func OuterPolygon(m *Mask) []Point {
	polygons := TracePolygons(m)
	if len(polygons) == 0 {
		return nil
	}
	return polygons[len(polygons)-1]
}

// traceBoundary walks the component boundary with Moore-neighbor tracing.
// (startRow, startCol) is the topmost-leftmost cell of the component, so the
// tracer enters it from the west.
func traceBoundary(m *Mask, startRow, startCol int) []Point {
	start := [2]int{startRow, startCol}
	cur := start
	prev := [2]int{startRow, startCol - 1}
	poly := []Point{{X: startCol, Y: startRow}}
	for {
		entry := neighborIndex(cur, prev)
		next := cur
		found := false
		for step := 1; step <= 8; step++ {
			i := (entry + step) % 8
			nr, nc := cur[0]+moore[i][0], cur[1]+moore[i][1]
			if m.At(nr, nc) {
				// Backtrack position is the neighbor checked just before the
				// hit; the next scan resumes from there.
				pi := (i + 7) % 8
				prev = [2]int{cur[0] + moore[pi][0], cur[1] + moore[pi][1]}
				next = [2]int{nr, nc}
				found = true
				break
			}
		}
		if !found {
			// Isolated cell.
			return poly
		}
		cur = next
		if cur == start {
			return poly
		}
		poly = append(poly, Point{X: cur[1], Y: cur[0]})
	}
}

func neighborIndex(center, neighbor [2]int) int {
	d := [2]int{neighbor[0] - center[0], neighbor[1] - center[1]}
	for i, off := range moore {
		if off == d {
			return i
		}
	}
	// neighbor is not Moore-adjacent; resume the scan from the west.
	return 6
}

// fillComponent marks the 4-connected component of (r, c) visited.
func fillComponent(m *Mask, r, c int, visited []bool) {
	stack := [][2]int{{r, c}}
	visited[r*m.cols+c] = true
	for len(stack) > 0 {
		cell := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, d := range [4][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
			nr, nc := cell[0]+d[0], cell[1]+d[1]
			if nr < 0 || nr >= m.rows || nc < 0 || nc >= m.cols {
				continue
			}
			if !m.At(nr, nc) || visited[nr*m.cols+nc] {
				continue
			}
			visited[nr*m.cols+nc] = true
			stack = append(stack, [2]int{nr, nc})
		}
	}
}
