package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

// tail length kept from ffmpeg stderr when a command fails.
const stderrTailBytes = 512

// Options configures a Tool.
type Options struct {
	// BinaryPath is the ffmpeg executable. Defaults to "ffmpeg" on PATH.
	BinaryPath string

	// WorkDir holds extracted frames and concat list files. Defaults to a
	// directory under the system temp dir.
	WorkDir string

	// FrameWidth and FrameHeight, when both positive, normalize extracted
	// frames to exactly that size.
	FrameWidth  int
	FrameHeight int

	Logger *slog.Logger
}

// Tool runs ffmpeg for frame extraction and clip concatenation.
type Tool struct {
	binary      string
	workDir     string
	frameWidth  int
	frameHeight int
	logger      *slog.Logger

	// run is swapped out in tests.
	run func(ctx context.Context, binary string, args []string) ([]byte, error)
}

// NewTool creates a Tool, applying defaults for unset options. A missing
// ffmpeg binary is reported at first use, not here; construction only warns
// so environments without media support can still boot.
func NewTool(opts Options) *Tool {
	binary := opts.BinaryPath
	if binary == "" {
		binary = "ffmpeg"
	}
	workDir := opts.WorkDir
	if workDir == "" {
		workDir = filepath.Join(os.TempDir(), "storyreel")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "ffmpeg")

	if _, err := exec.LookPath(binary); err != nil {
		logger.Warn("ffmpeg binary not found, media operations will fail",
			"binary", binary)
	}

	return &Tool{
		binary:      binary,
		workDir:     workDir,
		frameWidth:  opts.FrameWidth,
		frameHeight: opts.FrameHeight,
		logger:      logger,
		run:         runCommand,
	}
}

// ExtractFrame pulls a single frame out of the clip at artifactPath and
// returns the path of the written image. frameIndex counts from the start
// of the clip; a negative index counts from the end, so -1 is the final
// frame.
func (t *Tool) ExtractFrame(ctx context.Context, artifactPath string, frameIndex int) (string, error) {
	if err := os.MkdirAll(t.workDir, 0o750); err != nil {
		return "", fmt.Errorf("create work dir: %w", err)
	}
	framePath := filepath.Join(t.workDir, fmt.Sprintf("frame-%s.png", uuid.NewString()))

	args := frameArgs(artifactPath, frameIndex, framePath)
	stderr, err := t.run(ctx, t.binary, args)
	if err != nil {
		return "", fmt.Errorf("extract frame %d from %s: %w: %s",
			frameIndex, filepath.Base(artifactPath), err, stderrTail(stderr))
	}
	if _, err := os.Stat(framePath); err != nil {
		return "", fmt.Errorf("extract frame %d from %s: no frame produced",
			frameIndex, filepath.Base(artifactPath))
	}

	if t.frameWidth > 0 && t.frameHeight > 0 {
		if err := normalizeFrame(framePath, t.frameWidth, t.frameHeight); err != nil {
			return "", fmt.Errorf("normalize frame: %w", err)
		}
	}

	t.logger.Debug("frame extracted",
		"artifact", filepath.Base(artifactPath),
		"frame_index", frameIndex,
		"frame", framePath)
	return framePath, nil
}

// Concatenate stitches the clips at orderedPaths into outputPath using the
// concat demuxer, preserving input order. Streams are copied, not
// re-encoded.
func (t *Tool) Concatenate(ctx context.Context, orderedPaths []string, outputPath string) (string, error) {
	if len(orderedPaths) == 0 {
		return "", errors.New("no input clips to concatenate")
	}
	if err := os.MkdirAll(t.workDir, 0o750); err != nil {
		return "", fmt.Errorf("create work dir: %w", err)
	}
	if dir := filepath.Dir(outputPath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return "", fmt.Errorf("create output dir: %w", err)
		}
	}

	listPath := filepath.Join(t.workDir, fmt.Sprintf("concat-%s.txt", uuid.NewString()))
	if err := os.WriteFile(listPath, concatList(orderedPaths), 0o600); err != nil {
		return "", fmt.Errorf("write concat list: %w", err)
	}
	defer func() { _ = os.Remove(listPath) }()

	args := []string{
		"-y", "-loglevel", "error",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy",
		outputPath,
	}
	stderr, err := t.run(ctx, t.binary, args)
	if err != nil {
		return "", fmt.Errorf("concatenate %d clips: %w: %s",
			len(orderedPaths), err, stderrTail(stderr))
	}
	if _, err := os.Stat(outputPath); err != nil {
		return "", fmt.Errorf("concatenate %d clips: no output produced", len(orderedPaths))
	}

	t.logger.Debug("clips concatenated",
		"count", len(orderedPaths),
		"output", outputPath)
	return outputPath, nil
}

// frameArgs builds the ffmpeg argument list for a single-frame grab. For
// negative indices the tail of the clip is decoded and reversed so the
// select filter can address frames from the end without counting the whole
// stream.
func frameArgs(artifactPath string, frameIndex int, outPath string) []string {
	if frameIndex >= 0 {
		return []string{
			"-y", "-loglevel", "error",
			"-i", artifactPath,
			"-vf", fmt.Sprintf("select=eq(n\\,%d)", frameIndex),
			"-frames:v", "1",
			outPath,
		}
	}
	return []string{
		"-y", "-loglevel", "error",
		"-sseof", "-3",
		"-i", artifactPath,
		"-vf", fmt.Sprintf("reverse,select=eq(n\\,%d)", -frameIndex-1),
		"-frames:v", "1",
		outPath,
	}
}

// concatList renders the concat demuxer input file. Single quotes in paths
// are escaped per the demuxer's quoting rules.
func concatList(paths []string) []byte {
	var b strings.Builder
	for _, p := range paths {
		escaped := strings.ReplaceAll(p, "'", `'\''`)
		fmt.Fprintf(&b, "file '%s'\n", escaped)
	}
	return []byte(b.String())
}

// normalizeFrame resizes the image at path to exactly width x height,
// cropping from the center when the aspect ratio differs.
func normalizeFrame(path string, width, height int) error {
	src, err := imaging.Open(path)
	if err != nil {
		return fmt.Errorf("open frame: %w", err)
	}
	if src.Bounds().Dx() == width && src.Bounds().Dy() == height {
		return nil
	}
	resized := imaging.Fill(src, width, height, imaging.Center, imaging.Lanczos)
	if err := imaging.Save(resized, path); err != nil {
		return fmt.Errorf("save frame: %w", err)
	}
	return nil
}

func runCommand(ctx context.Context, binary string, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stderr.Bytes(), err
}

func stderrTail(stderr []byte) string {
	s := strings.TrimSpace(string(stderr))
	if len(s) <= stderrTailBytes {
		return s
	}
	return s[len(s)-stderrTailBytes:]
}
