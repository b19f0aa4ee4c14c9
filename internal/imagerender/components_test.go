package imagerender

import (
	"image"
	"image/color"
	"testing"
)

// canvas returns a white w x h grayscale image.
func canvas(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	return img
}

func fill(img *image.Gray, r image.Rectangle, v uint8) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
}

func TestFindConnectedComponents(t *testing.T) {
	t.Parallel()

	img := canvas(100, 80)
	fill(img, image.Rect(10, 10, 30, 20), 0)
	fill(img, image.Rect(50, 40, 60, 70), 30)
	fill(img, image.Rect(90, 5, 91, 6), 0)    // one pixel of noise
	fill(img, image.Rect(70, 10, 80, 20), 230) // too light to count

	bin := applyThreshold(img, BinaryThreshold)
	comps := findConnectedComponents(bin, MinComponentPixels)
	if len(comps) != 2 {
		t.Fatalf("components = %+v, want 2", comps)
	}
	want := []Component{
		{MinX: 10, MinY: 10, MaxX: 29, MaxY: 19, PixelCount: 200},
		{MinX: 50, MinY: 40, MaxX: 59, MaxY: 69, PixelCount: 300},
	}
	for i, w := range want {
		if comps[i] != w {
			t.Errorf("component %d = %+v, want %+v", i, comps[i], w)
		}
	}
}

func TestRuns(t *testing.T) {
	t.Parallel()

	img := canvas(50, 50)
	fill(img, image.Rect(5, 0, 6, 40), 0)  // vertical rule
	fill(img, image.Rect(0, 45, 50, 46), 0) // horizontal rule

	if n := verticalRun(img, 5, 20); n != 40 {
		t.Errorf("verticalRun = %d, want 40", n)
	}
	if n := horizontalRun(img, 10, 45); n != 50 {
		t.Errorf("horizontalRun = %d, want 50", n)
	}
	if n := horizontalRun(img, 5, 20); n != 1 {
		t.Errorf("horizontalRun across rule = %d, want 1", n)
	}
}
