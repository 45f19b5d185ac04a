// Package encoder picks the H.264 encoder and its parameters for a render.
//
// Hardware support is probed once per process: the encoder must be compiled
// into ffmpeg and a one-frame trial encode with it must succeed. The result is
// cached until Reset is called.
package encoder

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

const (
	// HardwareCodec is the NVIDIA H.264 encoder
	HardwareCodec = "h264_nvenc"
	// SoftwareCodec is the CPU H.264 encoder
	SoftwareCodec = "libx264"

	// DefaultProbeTimeout bounds the encoder listing
	DefaultProbeTimeout = 10 * time.Second
)

// Params is a codec plus the output options handed to ffmpeg
type Params struct {
	Codec    string
	Hardware bool
	Options  ffmpeg.KwArgs
}

// Hardware returns the NVENC parameter set
func Hardware() Params {
	return Params{
		Codec:    HardwareCodec,
		Hardware: true,
		Options: ffmpeg.KwArgs{
			"c:v":    HardwareCodec,
			"rc":     "vbr",
			"cq":     "23",
			"preset": "p4",
			"gpu":    "0",
		},
	}
}

// Software returns the libx264 parameter set
func Software() Params {
	return Params{
		Codec: SoftwareCodec,
		Options: ffmpeg.KwArgs{
			"c:v":    SoftwareCodec,
			"preset": "medium",
			"crf":    "23",
		},
	}
}

// OutputArgs returns a copy of the options merged with extra output arguments
func (p Params) OutputArgs(extra ffmpeg.KwArgs) ffmpeg.KwArgs {
	out := ffmpeg.KwArgs{}
	for k, v := range p.Options {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// String describes the parameter set for logs
func (p Params) String() string {
	if p.Hardware {
		return fmt.Sprintf("%s (hardware)", p.Codec)
	}
	return fmt.Sprintf("%s (software)", p.Codec)
}

// ProbeFunc reports whether the hardware encoder can be used
type ProbeFunc func(ctx context.Context) (bool, error)

// Decision is the outcome of a selection
type Decision struct {
	Params Params
	// Fallback is set when hardware was requested but is unavailable
	Fallback bool
	// ProbeErr is the error from the probe, if it failed
	ProbeErr error
}

// Selector caches the hardware probe result
type Selector struct {
	probe ProbeFunc

	mu        sync.Mutex
	probed    bool
	available bool
	probeErr  error
}

// NewSelector creates a selector with a custom probe
func NewSelector(probe ProbeFunc) *Selector {
	return &Selector{probe: probe}
}

// NewFFmpegSelector creates a selector that probes the given ffmpeg binary
func NewFFmpegSelector(ffmpegBin string, timeout time.Duration) *Selector {
	return NewSelector(func(ctx context.Context) (bool, error) {
		listed, err := HasEncoder(ctx, ffmpegBin, HardwareCodec, timeout)
		if err != nil || !listed {
			return false, err
		}
		// distro builds list nvenc without a usable GPU
		if err := TrialEncode(ctx, ffmpegBin, Hardware(), timeout); err != nil {
			return false, err
		}
		return true, nil
	})
}

// Available runs the probe on first use and returns the cached answer after that.
// A failing probe counts as unavailable.
func (s *Selector) Available(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.probed {
		s.available, s.probeErr = s.probe(ctx)
		if s.probeErr != nil {
			s.available = false
		}
		s.probed = true
	}
	return s.available, s.probeErr
}

// Disable records that hardware encoding failed at runtime, so later selections
// fall back without probing again
func (s *Selector) Disable(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.probed = true
	s.available = false
	s.probeErr = err
}

// Reset forgets the cached probe result
func (s *Selector) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.probed = false
	s.available = false
	s.probeErr = nil
}

// Select returns the parameter set for a render.
// The probe only runs when hardware encoding is requested.
func (s *Selector) Select(ctx context.Context, preferHardware bool) Decision {
	if !preferHardware {
		return Decision{Params: Software()}
	}
	ok, err := s.Available(ctx)
	if ok {
		return Decision{Params: Hardware()}
	}
	return Decision{Params: Software(), Fallback: true, ProbeErr: err}
}

var (
	defaultMu       sync.Mutex
	defaultSelector = NewFFmpegSelector("ffmpeg", DefaultProbeTimeout)
)

// Default returns the process-wide selector
func Default() *Selector {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultSelector
}

// SetDefault replaces the process-wide selector (for a configured binary or tests)
func SetDefault(s *Selector) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultSelector = s
}

// HasEncoder runs `ffmpeg -hide_banner -encoders` and looks for name
func HasEncoder(ctx context.Context, ffmpegBin, name string, timeout time.Duration) (bool, error) {
	names, err := ListEncoders(ctx, ffmpegBin, timeout)
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

// TrialArgs builds a one-frame encode of a synthetic source into the null muxer
func TrialArgs(p Params) []string {
	out := ffmpeg.Input("color=c=black:s=256x256:d=1", ffmpeg.KwArgs{"f": "lavfi"}).
		Output("-", p.OutputArgs(ffmpeg.KwArgs{
			"frames:v": "1",
			"pix_fmt":  "yuv420p",
			"f":        "null",
		}))
	return append([]string{"-hide_banner", "-loglevel", "error", "-nostdin"}, out.GetArgs()...)
}

// TrialEncode encodes one frame with p and reports why it failed, if it did
func TrialEncode(ctx context.Context, ffmpegBin string, p Params, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, ffmpegBin, TrialArgs(p)...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("trial encode with %s failed: %w, stderr: %s", p.Codec, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// ListEncoders returns the encoder names compiled into ffmpeg
func ListEncoders(ctx context.Context, ffmpegBin string, timeout time.Duration) ([]string, error) {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, ffmpegBin, "-hide_banner", "-encoders")
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("failed to list encoders: %w", err)
	}
	return ParseEncoders(output), nil
}

// ParseEncoders extracts encoder names from `ffmpeg -encoders` output.
// Each entry line is a six character capability field followed by the name.
func ParseEncoders(output []byte) []string {
	var names []string
	pastHeader := false

	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !pastHeader {
			if strings.HasPrefix(line, "------") {
				pastHeader = true
			}
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 || len(fields[0]) != 6 {
			continue
		}
		names = append(names, fields[1])
	}
	return names
}
