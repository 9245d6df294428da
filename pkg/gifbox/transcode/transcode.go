// Package transcode converts uploads to animated WebP by running an external
// converter (ffmpeg by default) in a private temporary directory.
package transcode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/gifbox/api/pkg/gifbox"
	"golang.org/x/sync/semaphore"
)

const (
	// InputPlaceholder and OutputPlaceholder are replaced in Config.Args with
	// the workspace file paths.
	InputPlaceholder  = "{input}"
	OutputPlaceholder = "{output}"

	maxStderr = 4 << 10
)

// DefaultArgs converts to looping WebP, keeping alpha.
var DefaultArgs = []string{
	"-hide_banner", "-loglevel", "error", "-y",
	"-i", InputPlaceholder,
	"-c:v", "libwebp",
	"-loop", "0",
	"-pix_fmt", "yuva420p",
	"-f", "webp",
	OutputPlaceholder,
}

// Config options for the transcoder
type Config struct {
	Command      string        // Converter executable (default: ffmpeg)
	Args         []string      // Arguments with placeholders (default: DefaultArgs)
	Concurrency  int           // Max concurrent processes (default: runtime.NumCPU())
	QueueTimeout time.Duration // Max wait for a slot; zero rejects immediately when full
	Timeout      time.Duration // Max process run time; zero means no limit
	TempDir      string        // Parent for workspaces (default: os.TempDir())
	Logger       *slog.Logger
}

// Transcoder runs the converter with bounded concurrency
type Transcoder struct {
	cfg Config
	sem *semaphore.Weighted
}

// New creates a transcoder
func New(cfg Config) (*Transcoder, error) {
	if cfg.Command == "" {
		cfg.Command = "ffmpeg"
	}
	if len(cfg.Args) == 0 {
		cfg.Args = DefaultArgs
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = runtime.NumCPU()
	}
	if cfg.QueueTimeout < 0 {
		return nil, errors.New("queue timeout cannot be negative")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	if !hasPlaceholder(cfg.Args, InputPlaceholder) || !hasPlaceholder(cfg.Args, OutputPlaceholder) {
		return nil, fmt.Errorf("args must reference %s and %s", InputPlaceholder, OutputPlaceholder)
	}

	return &Transcoder{
		cfg: cfg,
		sem: semaphore.NewWeighted(int64(cfg.Concurrency)),
	}, nil
}

func hasPlaceholder(args []string, placeholder string) bool {
	for _, a := range args {
		if strings.Contains(a, placeholder) {
			return true
		}
	}
	return false
}

// Transcode converts data and returns the canonical bytes. The workspace is
// removed on every return path. Cancelling ctx kills the process and returns
// ctx.Err().
func (t *Transcoder) Transcode(ctx context.Context, data []byte) ([]byte, error) {
	if err := t.acquire(ctx); err != nil {
		return nil, err
	}
	defer t.sem.Release(1)

	gifbox.TranscodesInFlight.Inc()
	defer gifbox.TranscodesInFlight.Dec()

	start := time.Now()
	out, err := t.run(ctx, data)
	gifbox.TranscodeDuration.WithLabelValues(outcome(err)).Observe(time.Since(start).Seconds())

	return out, err
}

func (t *Transcoder) acquire(ctx context.Context) error {
	if t.cfg.QueueTimeout == 0 {
		if !t.sem.TryAcquire(1) {
			gifbox.TranscodeRejections.Inc()
			return gifbox.ErrTranscoderBusy
		}
		return nil
	}

	waitCtx, cancel := context.WithTimeout(ctx, t.cfg.QueueTimeout)
	defer cancel()

	if err := t.sem.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		gifbox.TranscodeRejections.Inc()
		return gifbox.ErrTranscoderBusy
	}
	return nil
}

func (t *Transcoder) run(ctx context.Context, data []byte) ([]byte, error) {
	dir, err := os.MkdirTemp(t.cfg.TempDir, "gifbox-transcode-")
	if err != nil {
		return nil, fmt.Errorf("create transcode workspace: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			t.cfg.Logger.Warn("failed to remove transcode workspace", "dir", dir, "error", err)
		}
	}()

	input := filepath.Join(dir, "input")
	output := filepath.Join(dir, "output.webp")

	if err := os.WriteFile(input, data, 0o600); err != nil {
		return nil, fmt.Errorf("write transcode input: %w", err)
	}

	runCtx := ctx
	if t.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, t.cfg.Timeout)
		defer cancel()
	}

	stderr := &cappedBuffer{limit: maxStderr}
	cmd := exec.CommandContext(runCtx, t.cfg.Command, t.expandArgs(input, output)...)
	cmd.Dir = dir
	cmd.Stderr = stderr
	cmd.WaitDelay = time.Second

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: killed after %s", gifbox.ErrTranscodeTimeout, t.cfg.Timeout)
		}
		return nil, fmt.Errorf("%w: %v: %s", gifbox.ErrTranscodeFailure, err, strings.TrimSpace(stderr.String()))
	}

	out, err := os.ReadFile(output)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: converter exited cleanly but wrote no output", gifbox.ErrTranscodeFailure)
	}
	if err != nil {
		return nil, fmt.Errorf("read transcode output: %w", err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: converter produced an empty file", gifbox.ErrTranscodeFailure)
	}

	return out, nil
}

func (t *Transcoder) expandArgs(input, output string) []string {
	args := make([]string, len(t.cfg.Args))
	for i, a := range t.cfg.Args {
		a = strings.ReplaceAll(a, InputPlaceholder, input)
		args[i] = strings.ReplaceAll(a, OutputPlaceholder, output)
	}
	return args
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, gifbox.ErrTranscodeFailure):
		return "failed"
	case errors.Is(err, gifbox.ErrTranscodeTimeout):
		return "timeout"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}

// cappedBuffer keeps the first limit bytes written and drops the rest.
type cappedBuffer struct {
	limit int
	buf   []byte
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	if room := b.limit - len(b.buf); room > 0 {
		if len(p) > room {
			b.buf = append(b.buf, p[:room]...)
		} else {
			b.buf = append(b.buf, p...)
		}
	}
	return len(p), nil
}

func (b *cappedBuffer) String() string {
	return string(b.buf)
}
