package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	ffmpeggo "github.com/u2takey/ffmpeg-go"
)

// DefaultProbeTimeout bounds a single ffprobe run
const DefaultProbeTimeout = 30 * time.Second

// VideoInfo is the subset of ffprobe output the renderer needs
type VideoInfo struct {
	Width     int
	Height    int
	FPS       float64
	FrameRate string // as reported, e.g. "30000/1001"
	Duration  float64
	Frames    int
	HasAudio  bool
}

// TotalFrames returns the frame count, estimated from duration when ffprobe
// does not report one
func (v VideoInfo) TotalFrames() int {
	if v.Frames > 0 {
		return v.Frames
	}
	if v.FPS <= 0 || v.Duration <= 0 {
		return 0
	}
	return int(math.Round(v.Duration * v.FPS))
}

type probeResult struct {
	Streams []struct {
		CodecType  string `json:"codec_type"`
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		RFrameRate string `json:"r_frame_rate"`
		NbFrames   string `json:"nb_frames"`
		Duration   string `json:"duration"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// ProbeBinaryFor returns the ffprobe that ships with an ffmpeg binary:
// "/opt/ff/bin/ffmpeg" gives "/opt/ff/bin/ffprobe", a bare name gives "ffprobe".
func ProbeBinaryFor(ffmpegBin string) string {
	dir, base := filepath.Split(ffmpegBin)
	if !strings.Contains(base, "ffmpeg") {
		return "ffprobe"
	}
	return dir + strings.Replace(base, "ffmpeg", "ffprobe", 1)
}

// ProbeArgs builds the ffprobe arguments for path
func ProbeArgs(path string) []string {
	args := ffmpeggo.ConvertKwargsToCmdLineArgs(ffmpeggo.KwArgs{
		"v":            "error",
		"show_format":  "",
		"show_streams": "",
		"of":           "json",
	})
	return append(args, path)
}

// Probe runs ffprobe on a video file. It stops when ctx is done or after
// timeout (DefaultProbeTimeout when zero).
func Probe(ctx context.Context, ffprobeBin, path string, timeout time.Duration) (*VideoInfo, error) {
	if ffprobeBin == "" {
		ffprobeBin = "ffprobe"
	}
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stderr := &tailWriter{}
	cmd := exec.CommandContext(ctx, ffprobeBin, ProbeArgs(path)...)
	cmd.Stderr = stderr
	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("failed to probe %s: %w", path, ctx.Err())
		}
		return nil, fmt.Errorf("failed to probe %s: %w, stderr: %s", path, err, stderr.String())
	}
	return ParseProbe(out)
}

// ParseProbe decodes ffprobe JSON output
func ParseProbe(data []byte) (*VideoInfo, error) {
	var result probeResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	info := &VideoInfo{}
	foundVideo := false
	for _, s := range result.Streams {
		switch s.CodecType {
		case "video":
			if foundVideo {
				continue
			}
			foundVideo = true
			info.Width = s.Width
			info.Height = s.Height
			info.FrameRate = s.RFrameRate
			info.FPS = ParseFrameRate(s.RFrameRate)
			if n, err := strconv.Atoi(s.NbFrames); err == nil {
				info.Frames = n
			}
			if d, err := strconv.ParseFloat(s.Duration, 64); err == nil {
				info.Duration = d
			}
		case "audio":
			info.HasAudio = true
		}
	}

	if !foundVideo {
		return nil, fmt.Errorf("no video streams found")
	}
	if info.Width <= 0 || info.Height <= 0 {
		return nil, fmt.Errorf("invalid video dimensions %dx%d", info.Width, info.Height)
	}

	if d, err := strconv.ParseFloat(result.Format.Duration, 64); err == nil && d > 0 {
		info.Duration = d
	}
	return info, nil
}

// ParseFrameRate parses "num/den" or a plain number
func ParseFrameRate(rate string) float64 {
	var num, den int
	if _, err := fmt.Sscanf(rate, "%d/%d", &num, &den); err == nil {
		if den <= 0 {
			return 0
		}
		return float64(num) / float64(den)
	}
	f, err := strconv.ParseFloat(rate, 64)
	if err != nil {
		return 0
	}
	return f
}
