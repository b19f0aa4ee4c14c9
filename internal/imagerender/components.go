package imagerender

import (
	"image"
	"image/color"
)

// Component represents a connected component
type Component struct {
	MinX, MinY int
	MaxX, MaxY int
	PixelCount int
}

// applyThreshold converts grayscale to binary: 0 for content, 255 for background.
func applyThreshold(img *image.Gray, threshold uint8) *image.Gray {
	bounds := img.Bounds()
	binary := image.NewGray(bounds)

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if img.GrayAt(x, y).Y < threshold {
				binary.SetGray(x, y, color.Gray{Y: 0})
			} else {
				binary.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}

	return binary
}

// findConnectedComponents finds 4-connected dark regions of at least
// minPixels pixels.
func findConnectedComponents(img *image.Gray, minPixels int) []Component {
	bounds := img.Bounds()
	w := bounds.Dx()
	visited := make([]bool, w*bounds.Dy())

	var components []Component
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			i := (y-bounds.Min.Y)*w + (x - bounds.Min.X)
			if visited[i] || img.GrayAt(x, y).Y == 255 {
				continue
			}
			comp := floodFill(img, visited, x, y)
			if comp.PixelCount >= minPixels {
				components = append(components, comp)
			}
		}
	}
	return components
}

// floodFill marks the component containing (startX, startY) as visited.
func floodFill(img *image.Gray, visited []bool, startX, startY int) Component {
	bounds := img.Bounds()
	w := bounds.Dx()
	comp := Component{MinX: startX, MinY: startY, MaxX: startX, MaxY: startY}

	// iterative, pages are too large for recursion
	stack := []image.Point{{X: startX, Y: startY}}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if !p.In(bounds) {
			continue
		}
		i := (p.Y-bounds.Min.Y)*w + (p.X - bounds.Min.X)
		if visited[i] || img.GrayAt(p.X, p.Y).Y == 255 {
			continue
		}
		visited[i] = true
		comp.PixelCount++

		comp.MinX = min(comp.MinX, p.X)
		comp.MaxX = max(comp.MaxX, p.X)
		comp.MinY = min(comp.MinY, p.Y)
		comp.MaxY = max(comp.MaxY, p.Y)

		stack = append(stack,
			image.Point{X: p.X + 1, Y: p.Y},
			image.Point{X: p.X - 1, Y: p.Y},
			image.Point{X: p.X, Y: p.Y + 1},
			image.Point{X: p.X, Y: p.Y - 1},
		)
	}
	return comp
}
