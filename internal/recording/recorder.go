// Package recording captures one frame per action of a scenario run, marks
// the element acted on, and writes the frames as an animated GIF so a
// failing verdict can be inspected after the fact.
package recording

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/v0xg/formprobe/internal/action"
	"github.com/v0xg/formprobe/internal/browser"
	"github.com/v0xg/formprobe/internal/scenario"
)

// Mode selects which runs keep their recording.
type Mode string

const (
	// KeepFailures keeps recordings of fail and inconclusive verdicts.
	KeepFailures Mode = "failures"
	KeepAll      Mode = "all"
)

var (
	verdictPass  = color.RGBA{R: 31, G: 136, B: 61, A: 255}
	verdictFail  = color.RGBA{R: 207, G: 34, B: 46, A: 255}
	verdictOther = color.RGBA{R: 191, G: 135, B: 0, A: 255}
)

// Options configures a Recorder.
type Options struct {
	Dir      string
	MaxWidth uint
	Mode     Mode
	// FrameDelay is how long each frame is shown.
	FrameDelay time.Duration
}

// Recorder writes per-scenario GIF recordings into a directory.
type Recorder struct {
	opts   Options
	logger *zap.Logger
}

// New returns a recorder. The directory is created on first write.
func New(opts Options, logger *zap.Logger) *Recorder {
	if opts.Mode == "" {
		opts.Mode = KeepFailures
	}
	if opts.FrameDelay <= 0 {
		opts.FrameDelay = 800 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{opts: opts, logger: logger.Named("recording")}
}

// Begin implements scenario.Recorder.
func (r *Recorder) Begin(sc scenario.Scenario) scenario.Recording {
	return &session{rec: r, id: sc.ID, title: sc.Title()}
}

type session struct {
	rec   *Recorder
	id    string
	title string

	mu     sync.Mutex
	frames []image.Image
}

// ObserveAction captures the page after an action, marking the element.
// Capture problems are logged, never surfaced: a recording must not change
// the verdict.
func (s *session) ObserveAction(ctx context.Context, page browser.Page, e action.Entry, el browser.Element) {
	frame, err := s.capture(ctx, page)
	if err != nil {
		s.rec.logger.Debug("Frame capture failed", zap.String("scenario", s.title), zap.Error(err))
		return
	}
	if el != nil {
		if p, err := el.Center(ctx); err == nil {
			frame = mark(frame, p, e.Success, e.Action == action.ActionSubmit)
		}
	}
	s.mu.Lock()
	s.frames = append(s.frames, frame)
	s.mu.Unlock()
}

// Finish implements scenario.Recording.
func (s *session) Finish(ctx context.Context, page browser.Page, v scenario.Verdict) (string, error) {
	if s.rec.opts.Mode != KeepAll && v.Passed() {
		return "", nil
	}

	s.mu.Lock()
	frames := append([]image.Image(nil), s.frames...)
	s.mu.Unlock()

	if last, err := s.capture(ctx, page); err == nil {
		frames = append(frames, banner(last, verdictColor(v)))
	} else {
		s.rec.logger.Debug("Final frame capture failed", zap.String("scenario", s.title), zap.Error(err))
	}
	if len(frames) == 0 {
		return "", nil
	}

	if err := os.MkdirAll(s.rec.opts.Dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create recording directory: %w", err)
	}
	path := filepath.Join(s.rec.opts.Dir, fileName(s.id, s.title, v.Status))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create recording: %w", err)
	}
	delay := int(s.rec.opts.FrameDelay / (10 * time.Millisecond))
	if err := encodeGIF(f, frames, max(delay, 1), s.rec.opts.MaxWidth); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to encode recording: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	s.rec.logger.Info("Recording written",
		zap.String("scenario", s.title),
		zap.String("path", path),
		zap.Int("frames", len(frames)),
	)
	return path, nil
}

func (s *session) capture(ctx context.Context, page browser.Page) (image.Image, error) {
	data, err := page.Screenshot(ctx)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode screenshot: %w", err)
	}
	return img, nil
}

func verdictColor(v scenario.Verdict) color.RGBA {
	switch v.Status {
	case scenario.StatusPass:
		return verdictPass
	case scenario.StatusFail:
		return verdictFail
	}
	return verdictOther
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func fileName(id, title string, status scenario.Status) string {
	base := id
	if base == "" {
		base = title
	}
	base = strings.Trim(unsafeName.ReplaceAllString(base, "_"), "_")
	if base == "" {
		base = "scenario"
	}
	return fmt.Sprintf("%s-%s-%d.gif", base, status, time.Now().UnixNano())
}
