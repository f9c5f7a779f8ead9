package sequence_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gwlsn/encbench/internal/sequence"
)

// writeRaw creates a file with width*height*1.5*bytes per frame worth of
// data so the frame count can be derived from the size.
func writeRaw(t *testing.T, name string, frames, width, height, bytesPerPixel int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	size := frames * width * height * 3 / 2 * bytesPerPixel
	if err := os.WriteFile(path, make([]byte, size), 0644); err != nil {
		t.Fatalf("write test file: %v", err)
	}
	return path
}

func TestInferFromFilename(t *testing.T) {
	path := writeRaw(t, "Kimono_1920x1080_24fps_8bit_420.yuv", 10, 1920, 1080, 1)

	seq, err := sequence.New(path, sequence.Attrs{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if seq.Width != 1920 || seq.Height != 1080 {
		t.Errorf("expected 1920x1080, got %dx%d", seq.Width, seq.Height)
	}
	if seq.Framerate != 24 {
		t.Errorf("expected framerate 24, got %d", seq.Framerate)
	}
	if seq.BitDepth != 8 {
		t.Errorf("expected bit depth 8, got %d", seq.BitDepth)
	}
	if seq.Chroma != 420 {
		t.Errorf("expected chroma 420, got %d", seq.Chroma)
	}
	if seq.FrameCount != 10 {
		t.Errorf("expected 10 frames from file size, got %d", seq.FrameCount)
	}
}

func TestExplicitOverridesFilename(t *testing.T) {
	path := writeRaw(t, "Kimono_1920x1080_24fps_8bit_420.yuv", 10, 1920, 1080, 1)

	seq, err := sequence.New(path, sequence.Attrs{Framerate: 50, FrameCount: 5})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if seq.Framerate != 50 {
		t.Errorf("explicit framerate should win, got %d", seq.Framerate)
	}
	if seq.FrameCount != 5 {
		t.Errorf("explicit frame count should win, got %d", seq.FrameCount)
	}
}

func TestDefaultsWhenFilenameSilent(t *testing.T) {
	path := writeRaw(t, "clip_352x288.yuv", 4, 352, 288, 1)

	seq, err := sequence.New(path, sequence.Attrs{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if seq.Framerate != 25 {
		t.Errorf("expected default framerate 25, got %d", seq.Framerate)
	}
	if seq.BitDepth != 8 || seq.Chroma != 420 {
		t.Errorf("expected 8-bit 4:2:0 defaults, got %d-bit %d", seq.BitDepth, seq.Chroma)
	}
}

func TestResolutionRequired(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.yuv")
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := sequence.New(path, sequence.Attrs{}); err == nil {
		t.Error("expected error when resolution is not determinable")
	}
}

func TestTenBitFrameCount(t *testing.T) {
	// 10-bit content uses two bytes per sample.
	path := writeRaw(t, "clip_64x64_30fps_10bit_420.yuv", 6, 64, 64, 2)

	seq, err := sequence.New(path, sequence.Attrs{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if seq.BitDepth != 10 {
		t.Errorf("expected 10-bit, got %d", seq.BitDepth)
	}
	if seq.FrameCount != 6 {
		t.Errorf("expected 6 frames, got %d", seq.FrameCount)
	}
	if seq.PixelFormat() != "yuv420p10le" {
		t.Errorf("expected yuv420p10le, got %s", seq.PixelFormat())
	}
}

func TestSequenceClassFromPath(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "hevc-B")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "clip_64x64_30fps_8bit_420.yuv")
	if err := os.WriteFile(path, make([]byte, 64*64*3/2), 0644); err != nil {
		t.Fatal(err)
	}

	seq, err := sequence.New(path, sequence.Attrs{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if seq.Class != "B" {
		t.Errorf("expected class B, got %q", seq.Class)
	}
}

func TestDerivedValues(t *testing.T) {
	path := writeRaw(t, "clip_64x32_16fps_8bit_420.yuv", 32, 64, 32, 1)

	seq, err := sequence.New(path, sequence.Attrs{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if got := seq.PixelsPerFrame(); got != 64*32*3/2 {
		t.Errorf("PixelsPerFrame = %d", got)
	}
	if got := seq.FrameBytes(); got != 64*32*3/2 {
		t.Errorf("FrameBytes = %d", got)
	}
	if got := seq.DurationSeconds(); got != 2.0 {
		t.Errorf("DurationSeconds = %f, want 2", got)
	}
	if got := seq.FramesFrom(8); got != 24 {
		t.Errorf("FramesFrom(8) = %d, want 24", got)
	}
	if got := seq.Stem(); got != "clip_64x32_16fps_8bit_420" {
		t.Errorf("Stem = %s", got)
	}
}
