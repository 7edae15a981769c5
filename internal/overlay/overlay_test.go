package overlay

import (
	"bytes"
	"image"
	"image/png"
	"testing"
	"time"
)

func TestRender_SizedToFrame(t *testing.T) {
	img := Render(640, 480, image.Rectangle{}, nil)
	if img.Bounds().Dx() != 640 || img.Bounds().Dy() != 480 {
		t.Errorf("overlay size = %v, want 640x480", img.Bounds())
	}
	if _, _, _, a := img.At(10, 10).RGBA(); a != 0 {
		t.Error("empty overlay should be transparent")
	}
}

func TestRender_DrawsGeometry(t *testing.T) {
	box := image.Rect(10, 10, 50, 60)
	landmarks := []image.Point{{30, 30}}
	img := Render(100, 100, box, landmarks)

	tests := []struct {
		name  string
		point image.Point
		want  bool
	}{
		{"box top edge", image.Pt(20, 10), true},
		{"box left edge", image.Pt(10, 40), true},
		{"box bottom edge", image.Pt(20, 60), true},
		{"landmark center", image.Pt(30, 30), true},
		{"landmark neighbour", image.Pt(31, 31), true},
		{"inside box", image.Pt(20, 40), false},
		{"outside box", image.Pt(80, 80), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, _, a := img.At(tt.point.X, tt.point.Y).RGBA()
			if got := a != 0; got != tt.want {
				t.Errorf("pixel %v drawn = %v, want %v", tt.point, got, tt.want)
			}
		})
	}
}

func TestRender_ClipsOutOfBounds(t *testing.T) {
	// Should not panic on geometry past the canvas edges.
	img := Render(20, 20, image.Rect(-10, -10, 100, 100), []image.Point{{-5, -5}, {50, 50}})
	if img.Bounds().Dx() != 20 {
		t.Errorf("unexpected width %d", img.Bounds().Dx())
	}
}

func TestEncodePNG_HugeBoxIsBounded(t *testing.T) {
	done := make(chan error, 1)
	go func() {
		_, err := EncodePNG(64, 48, image.Rect(-1<<40, 0, 1<<40, 1<<40), nil)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("EncodePNG() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("drawing a box far outside the canvas did not finish")
	}
}

func TestEncodePNG(t *testing.T) {
	data, err := EncodePNG(32, 24, image.Rect(2, 2, 20, 20), []image.Point{{10, 10}})
	if err != nil {
		t.Fatalf("EncodePNG() error = %v", err)
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("result is not PNG: %v", err)
	}
	if cfg.Width != 32 || cfg.Height != 24 {
		t.Errorf("png size = %dx%d, want 32x24", cfg.Width, cfg.Height)
	}
}
