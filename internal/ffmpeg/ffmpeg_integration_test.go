package ffmpeg

import (
	"context"
	"image"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/kartoza/kartoza-overlay-renderer/internal/encoder"
)

func skipIfNoFFmpeg(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not found in PATH")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not found in PATH")
	}
}

func makeTestVideo(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.mp4")
	cmd := exec.Command("ffmpeg", "-hide_banner", "-loglevel", "error",
		"-f", "lavfi", "-i", "testsrc=size=64x48:rate=10:duration=1",
		"-pix_fmt", "yuv420p", "-y", path)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Skipf("could not create test video: %v: %s", err, out)
	}
	return path
}

func TestIntegration_DecodeEncodeRoundTrip(t *testing.T) {
	skipIfNoFFmpeg(t)
	src := makeTestVideo(t)
	tk := New("ffmpeg", zerolog.Nop())
	ctx := context.Background()

	info, err := tk.Probe(ctx, src)
	if err != nil {
		t.Fatalf("probe failed: %v", err)
	}
	if info.Width != 64 || info.Height != 48 {
		t.Fatalf("expected 64x48, got %dx%d", info.Width, info.Height)
	}

	dec, err := tk.OpenDecoder(ctx, src, info)
	if err != nil {
		t.Fatalf("open decoder: %v", err)
	}
	defer dec.Close()

	out := filepath.Join(t.TempDir(), "out.partial")
	enc, err := tk.OpenEncoder(ctx, EncodeRequest{
		SourcePath: src,
		OutputPath: out,
		Format:     "mp4",
		Info:       info,
		Params:     encoder.Software(),
	})
	if err != nil {
		t.Fatalf("open encoder: %v", err)
	}

	frame := image.NewRGBA(image.Rect(0, 0, info.Width, info.Height))
	count := 0
	for {
		err := dec.Next(frame)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if err := enc.WriteFrame(frame); err != nil {
			t.Fatalf("encode: %v", err)
		}
		count++
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	if count < 9 || count > 11 {
		t.Errorf("expected about 10 frames, got %d", count)
	}
	if st, err := os.Stat(out); err != nil || st.Size() == 0 {
		t.Errorf("expected non-empty output, got %v", err)
	}
}
