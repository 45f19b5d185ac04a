// Package ffmpeg runs ffmpeg as a raw RGBA frame decoder and encoder.
//
// Argument graphs are built with ffmpeg-go; the processes themselves are
// started here so that cancellation and the pipes stay under our control.
package ffmpeg

import (
	"context"
	"fmt"
	"image"
	"io"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	ffmpeggo "github.com/u2takey/ffmpeg-go"

	"github.com/kartoza/kartoza-overlay-renderer/internal/encoder"
)

// stderrTail is how much ffmpeg stderr is kept for error messages
const stderrTail = 2048

// FrameReader yields decoded frames in presentation order
type FrameReader interface {
	// Next fills dst with the next frame; io.EOF after the last one
	Next(dst *image.RGBA) error
	// Err reports why the stream ended. It is nil after a clean end and
	// only meaningful once Next has returned io.EOF.
	Err() error
	Close() error
}

// FrameWriter accepts composited frames
type FrameWriter interface {
	WriteFrame(img *image.RGBA) error
	// Close flushes and finalizes the output file
	Close() error
	// Abort stops the encoder without finalizing
	Abort()
}

// EncodeRequest describes an output file
type EncodeRequest struct {
	SourcePath string // audio is taken from here when present
	OutputPath string
	Format     string // muxer name; required when OutputPath has no usable extension
	Info       *VideoInfo
	Params     encoder.Params
}

// Toolkit starts ffmpeg processes
type Toolkit struct {
	Binary       string
	ProbeBinary  string        // ffprobe matching Binary
	ProbeTimeout time.Duration // 0 means DefaultProbeTimeout
	logger       zerolog.Logger
}

// New creates a toolkit for the given ffmpeg binary. The ffprobe next to it
// is used for probing.
func New(binary string, logger zerolog.Logger) *Toolkit {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &Toolkit{
		Binary:       binary,
		ProbeBinary:  ProbeBinaryFor(binary),
		ProbeTimeout: DefaultProbeTimeout,
		logger:       logger.With().Str("component", "ffmpeg").Logger(),
	}
}

// Probe reads stream information from a video file
func (t *Toolkit) Probe(ctx context.Context, path string) (*VideoInfo, error) {
	t.logger.Debug().Str("ffprobe", t.ProbeBinary).Str("path", path).Msg("probing")
	return Probe(ctx, t.ProbeBinary, path, t.ProbeTimeout)
}

// MuxerFor maps an output extension to an ffmpeg muxer name
func MuxerFor(path string) string {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "mov":
		return "mov"
	case "mkv":
		return "matroska"
	case "m4v":
		return "ipod"
	default:
		return "mp4"
	}
}

func frameSize(info *VideoInfo) string {
	return fmt.Sprintf("%dx%d", info.Width, info.Height)
}

func frameRate(info *VideoInfo) string {
	if info.FrameRate != "" && ParseFrameRate(info.FrameRate) > 0 {
		return info.FrameRate
	}
	if info.FPS > 0 {
		return fmt.Sprintf("%g", info.FPS)
	}
	return "25"
}

// DecodeArgs builds the arguments for a raw RGBA decode of path. The fps
// filter resamples variable frame rate sources onto the probed constant rate,
// so frame n is shown at n/fps.
func DecodeArgs(path string, info *VideoInfo, inputArgs ffmpeggo.KwArgs) []string {
	if inputArgs == nil {
		inputArgs = ffmpeggo.KwArgs{}
	}
	stream := ffmpeggo.Input(path, inputArgs).
		Output("pipe:", ffmpeggo.KwArgs{
			"vf":      "fps=" + frameRate(info),
			"f":       "rawvideo",
			"pix_fmt": "rgba",
			"s":       frameSize(info),
			"an":      "",
		})
	return append([]string{"-hide_banner", "-loglevel", "error", "-nostdin"}, stream.GetArgs()...)
}

// EncodeArgs builds the arguments for encoding raw RGBA frames read from stdin
func EncodeArgs(req EncodeRequest) []string {
	video := ffmpeggo.Input("pipe:", ffmpeggo.KwArgs{
		"f":       "rawvideo",
		"pix_fmt": "rgba",
		"s":       frameSize(req.Info),
		"r":       frameRate(req.Info),
	})
	streams := []*ffmpeggo.Stream{video}

	extra := ffmpeggo.KwArgs{
		"pix_fmt":  "yuv420p",
		"movflags": "+faststart",
	}
	if req.Info.HasAudio && req.SourcePath != "" {
		streams = append(streams, ffmpeggo.Input(req.SourcePath).Audio())
		extra["c:a"] = "aac"
		extra["shortest"] = ""
	}
	format := req.Format
	if format == "" {
		format = MuxerFor(req.OutputPath)
	}
	extra["f"] = format

	out := ffmpeggo.Output(streams, req.OutputPath, req.Params.OutputArgs(extra)).OverWriteOutput()
	return append([]string{"-hide_banner", "-loglevel", "error"}, out.GetArgs()...)
}

// tailWriter keeps the last stderrTail bytes written to it
type tailWriter struct {
	mu  sync.Mutex
	buf []byte
}

func (w *tailWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf = append(w.buf, p...)
	if len(w.buf) > stderrTail {
		w.buf = w.buf[len(w.buf)-stderrTail:]
	}
	return len(p), nil
}

func (w *tailWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return strings.TrimSpace(string(w.buf))
}

// Decoder streams raw frames out of an ffmpeg process
type Decoder struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr *tailWriter
	size   int
	closed bool
	exited bool
	err    error // exit status once exited
}

// OpenDecoder starts decoding path at its native resolution
func (t *Toolkit) OpenDecoder(ctx context.Context, path string, info *VideoInfo) (FrameReader, error) {
	return t.openDecoder(ctx, path, info, nil)
}

func (t *Toolkit) openDecoder(ctx context.Context, path string, info *VideoInfo, inputArgs ffmpeggo.KwArgs) (*Decoder, error) {
	args := DecodeArgs(path, info, inputArgs)
	t.logger.Debug().Strs("args", args).Msg("starting decoder")

	cmd := exec.CommandContext(ctx, t.Binary, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr := &tailWriter{}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	return &Decoder{
		cmd:    cmd,
		stdout: stdout,
		stderr: stderr,
		size:   info.Width * info.Height * 4,
	}, nil
}

// Next reads one frame into dst, which must match the probed size
func (d *Decoder) Next(dst *image.RGBA) error {
	if len(dst.Pix) != d.size {
		return fmt.Errorf("frame buffer is %d bytes, expected %d", len(dst.Pix), d.size)
	}
	n, err := io.ReadFull(d.stdout, dst.Pix)
	switch err {
	case nil:
		return nil
	case io.EOF:
		d.wait()
		return io.EOF
	case io.ErrUnexpectedEOF:
		d.wait()
		if d.err != nil {
			return fmt.Errorf("truncated frame (%d of %d bytes): %w", n, d.size, d.err)
		}
		return fmt.Errorf("truncated frame (%d of %d bytes)", n, d.size)
	default:
		return err
	}
}

// wait reaps the process after stdout reached EOF and records its exit status
func (d *Decoder) wait() {
	if d.exited {
		return
	}
	d.exited = true
	if err := d.cmd.Wait(); err != nil {
		d.err = fmt.Errorf("ffmpeg failed: %w, stderr: %s", err, d.stderr.String())
	}
}

// Err returns the decoder's exit error after Next returned io.EOF
func (d *Decoder) Err() error {
	return d.err
}

// Close stops the decoder and waits for it to exit
func (d *Decoder) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	_ = d.stdout.Close()
	if d.exited {
		return nil
	}
	d.exited = true
	if d.cmd.Process != nil {
		_ = d.cmd.Process.Kill()
	}
	_ = d.cmd.Wait()
	return nil
}

// FrameAt decodes the single frame shown at t seconds
func (t *Toolkit) FrameAt(ctx context.Context, path string, info *VideoInfo, at float64) (*image.RGBA, error) {
	d, err := t.openDecoder(ctx, path, info, ffmpeggo.KwArgs{"ss": fmt.Sprintf("%.3f", at)})
	if err != nil {
		return nil, err
	}
	defer d.Close()

	img := image.NewRGBA(image.Rect(0, 0, info.Width, info.Height))
	if err := d.Next(img); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("no frame at %.3fs: %s", at, d.stderr.String())
		}
		return nil, fmt.Errorf("failed to read frame: %w", err)
	}
	return img, nil
}

// Encoder writes raw frames into an ffmpeg process
type Encoder struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr *tailWriter
	size   int
	done   bool
}

// OpenEncoder starts an encoder for req
func (t *Toolkit) OpenEncoder(ctx context.Context, req EncodeRequest) (FrameWriter, error) {
	args := EncodeArgs(req)
	t.logger.Debug().Strs("args", args).Str("codec", req.Params.Codec).Msg("starting encoder")

	cmd := exec.CommandContext(ctx, t.Binary, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stderr := &tailWriter{}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	return &Encoder{
		cmd:    cmd,
		stdin:  stdin,
		stderr: stderr,
		size:   req.Info.Width * req.Info.Height * 4,
	}, nil
}

// WriteFrame sends one composited frame
func (e *Encoder) WriteFrame(img *image.RGBA) error {
	if len(img.Pix) != e.size {
		return fmt.Errorf("frame is %d bytes, expected %d", len(img.Pix), e.size)
	}
	if _, err := e.stdin.Write(img.Pix); err != nil {
		return fmt.Errorf("ffmpeg failed: %w, stderr: %s", err, e.stderr.String())
	}
	return nil
}

// Close ends the input stream and waits for ffmpeg to finish the file
func (e *Encoder) Close() error {
	if e.done {
		return nil
	}
	e.done = true
	_ = e.stdin.Close()
	if err := e.cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg failed: %w, stderr: %s", err, e.stderr.String())
	}
	return nil
}

// Abort kills the encoder
func (e *Encoder) Abort() {
	if e.done {
		return
	}
	e.done = true
	_ = e.stdin.Close()
	if e.cmd.Process != nil {
		_ = e.cmd.Process.Kill()
	}
	_ = e.cmd.Wait()
}
