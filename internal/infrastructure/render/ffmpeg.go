// Package render turns an aligned clip timeline plus narration into an MP4
// by driving ffmpeg.
package render

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Haik11kashiyani/news-auto/internal/domain"
	"github.com/Haik11kashiyani/news-auto/internal/ports"
)

const (
	frameWidth  = 1080
	frameHeight = 1920
)

// FFmpegRenderer downloads the matched clips, cuts each timeline window to
// its allocated duration and muxes the narration track on top.
type FFmpegRenderer struct {
	outputDir  string
	logger     *slog.Logger
	httpClient *http.Client
}

var _ ports.Renderer = (*FFmpegRenderer)(nil)

// NewFFmpegRenderer writes final videos under outputDir.
func NewFFmpegRenderer(outputDir string, log *slog.Logger) *FFmpegRenderer {
	return &FFmpegRenderer{
		outputDir:  outputDir,
		logger:     log,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

// Render executes the cut/loop/concat/mux sequence. The returned path points
// at the finished MP4 inside the output directory.
func (r *FFmpegRenderer) Render(ctx context.Context, item domain.NarratedItem, windows []domain.ClipWindow) (string, error) {
	if len(windows) == 0 {
		return "", fmt.Errorf("timeline has no clip windows")
	}

	workDir, err := os.MkdirTemp("", "newsauto-render-*")
	if err != nil {
		return "", fmt.Errorf("create workdir: %w", err)
	}
	defer os.RemoveAll(workDir)

	audioPath := filepath.Join(workDir, "narration."+item.Audio.Format)
	if err := os.WriteFile(audioPath, item.Audio.Data, 0o644); err != nil {
		return "", fmt.Errorf("write narration: %w", err)
	}

	parts := make([]string, 0, len(windows))
	for i, window := range windows {
		part, err := r.cutWindow(ctx, workDir, i, window)
		if err != nil {
			return "", fmt.Errorf("window %d: %w", i, err)
		}
		parts = append(parts, part)
	}

	silent, err := r.concatParts(ctx, workDir, parts)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	outPath := filepath.Join(r.outputDir, fmt.Sprintf("%s_%s.mp4", item.Fingerprint[:12], uuid.NewString()[:8]))
	if err := r.muxAudio(ctx, silent, audioPath, outPath); err != nil {
		return "", err
	}

	r.debug("rendered video", "path", outPath, "windows", len(windows),
		"duration_s", item.Audio.DurationSeconds)
	return outPath, nil
}

// cutWindow downloads the window's clip and trims it to the allocated share,
// looping the source when the share exceeds the available footage.
func (r *FFmpegRenderer) cutWindow(ctx context.Context, workDir string, idx int, window domain.ClipWindow) (string, error) {
	src := filepath.Join(workDir, fmt.Sprintf("clip_%02d.mp4", idx))
	if err := r.download(ctx, window.Clip.URL, src); err != nil {
		return "", fmt.Errorf("download clip %s: %w", window.Clip.ID, err)
	}

	out := filepath.Join(workDir, fmt.Sprintf("part_%02d.mp4", idx))
	args := []string{"-y"}
	if window.Loops > 1 {
		args = append(args, "-stream_loop", fmt.Sprintf("%d", window.Loops-1))
	}
	args = append(args,
		"-ss", fmt.Sprintf("%.2f", window.StartOffset),
		"-i", src,
		"-t", fmt.Sprintf("%.2f", window.Seconds),
		"-vf", fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d,setsar=1",
			frameWidth, frameHeight, frameWidth, frameHeight),
		"-r", "30",
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "23",
		"-pix_fmt", "yuv420p",
		"-an",
		out,
	)
	if err := r.run(ctx, args...); err != nil {
		return "", err
	}
	return out, nil
}

func (r *FFmpegRenderer) concatParts(ctx context.Context, workDir string, parts []string) (string, error) {
	listFile := filepath.Join(workDir, "concat.txt")
	lines := make([]string, 0, len(parts))
	for _, p := range parts {
		lines = append(lines, fmt.Sprintf("file '%s'", p))
	}
	if err := os.WriteFile(listFile, []byte(strings.Join(lines, "\n")), 0o644); err != nil {
		return "", fmt.Errorf("write concat list: %w", err)
	}

	out := filepath.Join(workDir, "silent.mp4")
	err := r.run(ctx, "-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
		"-c", "copy",
		out,
	)
	if err != nil {
		return "", fmt.Errorf("concat parts: %w", err)
	}
	return out, nil
}

func (r *FFmpegRenderer) muxAudio(ctx context.Context, videoFile, audioFile, outFile string) error {
	err := r.run(ctx, "-y",
		"-i", videoFile,
		"-i", audioFile,
		"-c:v", "copy",
		"-c:a", "aac",
		"-b:a", "192k",
		"-shortest",
		"-movflags", "+faststart",
		outFile,
	)
	if err != nil {
		return fmt.Errorf("mux audio: %w", err)
	}
	return nil
}

func (r *FFmpegRenderer) run(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		tail := string(output)
		if len(tail) > 400 {
			tail = tail[len(tail)-400:]
		}
		return fmt.Errorf("ffmpeg %s: %w: %s", args[0], err, strings.TrimSpace(tail))
	}
	return nil
}

func (r *FFmpegRenderer) download(ctx context.Context, clipURL, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, clipURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request clip: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("clip host returned %s", resp.Status)
	}

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create clip file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return fmt.Errorf("save clip: %w", err)
	}
	return nil
}

func (r *FFmpegRenderer) debug(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Debug(msg, args...)
	}
}
