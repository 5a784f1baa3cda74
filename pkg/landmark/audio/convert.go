package audio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/himanishpuri/landmark/pkg/utils"
)

// ErrToolMissing is returned when ffmpeg or ffprobe is not on PATH.
var ErrToolMissing = errors.New("external audio tool not found")

// Convert transcodes inputPath to 16-bit mono PCM WAV at sampleRate with
// ffmpeg and writes it to outputDir. The returned path keeps the input's
// base name with a .wav extension.
func Convert(ctx context.Context, inputPath, outputDir string, sampleRate int) (string, error) {
	if sampleRate <= 0 {
		return "", fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}
	bin, err := exec.LookPath("ffmpeg")
	if err != nil {
		return "", fmt.Errorf("ffmpeg: %w", ErrToolMissing)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Minute)
		defer cancel()
	}

	if err := utils.MakeDir(outputDir); err != nil {
		return "", err
	}

	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	outputPath := filepath.Join(outputDir, base+".wav")
	tmpPath := utils.TempName(outputDir, "convert_", ".wav")
	defer os.Remove(tmpPath)

	cmd := exec.CommandContext(ctx, bin,
		"-y",
		"-v", "quiet",
		"-i", inputPath,
		"-ac", "1",
		"-ar", strconv.Itoa(sampleRate),
		"-c:a", "pcm_s16le",
		tmpPath,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("ffmpeg failed on %s: %v (%s)", filepath.Base(inputPath), err, out)
	}

	if err := utils.MoveFile(tmpPath, outputPath); err != nil {
		return "", err
	}
	return outputPath, nil
}

// Metadata describes an audio file as reported by ffprobe.
type Metadata struct {
	Filename    string  `json:"filename"`
	Title       string  `json:"title,omitempty"`
	Artist      string  `json:"artist,omitempty"`
	Album       string  `json:"album,omitempty"`
	DurationSec float64 `json:"duration_sec"`
	SampleRate  int     `json:"sample_rate"`
	Channels    int     `json:"channels"`
	BitDepth    int     `json:"bit_depth,omitempty"`
	Format      string  `json:"format"`
}

type mediaInfo struct {
	Format struct {
		Duration string            `json:"duration"`
		Format   string            `json:"format_name"`
		Tags     map[string]string `json:"tags"`
	} `json:"format"`
	Streams []struct {
		CodecType     string `json:"codec_type"`
		SampleRate    string `json:"sample_rate"`
		Channels      int    `json:"channels"`
		BitsPerSample int    `json:"bits_per_sample"`
	} `json:"streams"`
}

// ReadMetadata reads container and stream metadata with ffprobe.
func ReadMetadata(ctx context.Context, path string) (*Metadata, error) {
	bin, err := exec.LookPath("ffprobe")
	if err != nil {
		return nil, fmt.Errorf("ffprobe: %w", ErrToolMissing)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
	}

	out, err := exec.CommandContext(ctx, bin,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	).Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("ffprobe failed on %s: %w", filepath.Base(path), err)
	}
	return parseMetadata(path, out)
}

func parseMetadata(path string, out []byte) (*Metadata, error) {
	var info mediaInfo
	if err := json.Unmarshal(out, &info); err != nil {
		return nil, fmt.Errorf("parsing ffprobe output: %w", err)
	}

	for _, s := range info.Streams {
		if s.CodecType != "audio" {
			continue
		}
		duration, _ := strconv.ParseFloat(info.Format.Duration, 64)
		rate, _ := strconv.Atoi(s.SampleRate)
		return &Metadata{
			Filename:    filepath.Base(path),
			Title:       info.Format.Tags["title"],
			Artist:      info.Format.Tags["artist"],
			Album:       info.Format.Tags["album"],
			DurationSec: duration,
			SampleRate:  rate,
			Channels:    s.Channels,
			BitDepth:    s.BitsPerSample,
			Format:      info.Format.Format,
		}, nil
	}
	return nil, fmt.Errorf("%s has no audio stream", filepath.Base(path))
}
