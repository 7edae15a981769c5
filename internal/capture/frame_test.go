package capture

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding png: %v", err)
	}
	return buf.Bytes()
}

func TestNewFrame(t *testing.T) {
	tests := []struct {
		name       string
		width      int
		height     int
		maxSize    int
		wantWidth  int
		wantHeight int
	}{
		{"small image untouched", 64, 48, 1280, 64, 48},
		{"landscape downscaled", 400, 200, 100, 100, 50},
		{"portrait downscaled", 200, 400, 100, 50, 100},
		{"scaling disabled", 400, 200, 0, 400, 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := NewFrame(encodePNG(t, tt.width, tt.height), tt.maxSize)
			if err != nil {
				t.Fatalf("NewFrame() error = %v", err)
			}
			if frame.Width != tt.wantWidth || frame.Height != tt.wantHeight {
				t.Errorf("size = %dx%d, want %dx%d", frame.Width, frame.Height, tt.wantWidth, tt.wantHeight)
			}

			cfg, err := jpeg.DecodeConfig(bytes.NewReader(frame.Data))
			if err != nil {
				t.Fatalf("frame data is not JPEG: %v", err)
			}
			if cfg.Width != tt.wantWidth || cfg.Height != tt.wantHeight {
				t.Errorf("encoded size = %dx%d, want %dx%d", cfg.Width, cfg.Height, tt.wantWidth, tt.wantHeight)
			}
			if frame.CapturedAt.IsZero() {
				t.Error("expected CapturedAt to be set")
			}
		})
	}
}

func TestNewFrame_InvalidImage(t *testing.T) {
	if _, err := NewFrame([]byte("not an image"), 1280); err == nil {
		t.Error("expected error for invalid image data")
	}
}

// withDeclaredSize rewrites the IHDR chunk of a PNG so its header claims
// width x height while the pixel data stays tiny.
func withDeclaredSize(t *testing.T, data []byte, width, height uint32) []byte {
	t.Helper()
	out := bytes.Clone(data)
	// 8 byte signature, 4 byte length, "IHDR", then width and height
	if string(out[12:16]) != "IHDR" {
		t.Fatal("unexpected PNG layout")
	}
	binary.BigEndian.PutUint32(out[16:20], width)
	binary.BigEndian.PutUint32(out[20:24], height)
	binary.BigEndian.PutUint32(out[29:33], crc32.ChecksumIEEE(out[12:29]))
	return out
}

func TestCheckFrame(t *testing.T) {
	small := encodePNG(t, 8, 8)

	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{"small frame", small, nil},
		{"webcam 4k", withDeclaredSize(t, small, 3840, 2160), nil},
		{"declared 12000x12000", withDeclaredSize(t, small, 12000, 12000), ErrFrameTooLarge},
		{"declared 1x20000000", withDeclaredSize(t, small, 1, 20_000_000), ErrFrameTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckFrame(tt.data)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("CheckFrame() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if err := CheckFrame([]byte("not an image")); err == nil {
		t.Error("expected error for data without an image header")
	}
}

func TestNewFrame_RejectsOversizedBeforeDecoding(t *testing.T) {
	data := withDeclaredSize(t, encodePNG(t, 8, 8), 12000, 12000)
	if _, err := NewFrame(data, 1280); !errors.Is(err, ErrFrameTooLarge) {
		t.Errorf("NewFrame() error = %v, want ErrFrameTooLarge", err)
	}
}

func TestDecodeDataURL(t *testing.T) {
	payload := []byte{0xff, 0xd8, 0xff}
	encoded := base64.StdEncoding.EncodeToString(payload)

	tests := []struct {
		name    string
		input   string
		want    []byte
		wantErr bool
	}{
		{"jpeg data url", "data:image/jpeg;base64," + encoded, payload, false},
		{"png with whitespace", "  data:image/png;base64," + encoded + "\n", payload, false},
		{"missing comma", "data:image/jpeg;base64", nil, true},
		{"not an image", "data:text/plain;base64," + encoded, nil, true},
		{"not base64 encoded", "data:image/jpeg," + encoded, nil, true},
		{"broken payload", "data:image/jpeg;base64,!!!", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeDataURL(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidDataURL) {
					t.Errorf("expected ErrInvalidDataURL, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("DecodeDataURL() = %v, want %v", got, tt.want)
			}
		})
	}
}
