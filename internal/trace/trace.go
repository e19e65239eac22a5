// Package trace records a frame of the page after every session step and
// writes the run as an animated GIF, with the acted-on elements marked.
package trace

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/v0xg/formpilot/internal/driver"
)

// Mark is the centre of an element a primitive acted on, in viewport pixels
type Mark struct {
	Action string
	X, Y   float64
}

// Frame is one captured step
type Frame struct {
	Label string
	OK    bool
	Marks []Mark
	Image image.Image
}

// Recorder collects frames for one page. Observe may be called from the
// executor while Capture runs on the session goroutine.
type Recorder struct {
	page driver.Page
	log  *zap.Logger

	mu      sync.Mutex
	pending []Mark
	frames  []Frame
}

// NewRecorder creates a Recorder for page
func NewRecorder(page driver.Page, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{page: page, log: logger}
}

// Observe remembers where a primitive acted; the mark is drawn on the next
// captured frame. Its signature matches executor.Observer.
func (r *Recorder) Observe(action string, box driver.Rect) {
	x, y := box.Center()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = append(r.pending, Mark{Action: action, X: x, Y: y})
}

// Capture screenshots the page and stores it with the pending marks.
// Capture failures are logged and never fail the step.
func (r *Recorder) Capture(ctx context.Context, label string, ok bool) {
	r.mu.Lock()
	marks := r.pending
	r.pending = nil
	r.mu.Unlock()

	raw, err := r.page.Screenshot(ctx)
	if err != nil {
		r.log.Debug("trace frame skipped", zap.String("step", label), zap.Error(err))
		return
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		r.log.Debug("trace frame undecodable", zap.String("step", label), zap.Error(err))
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, Frame{Label: label, OK: ok, Marks: marks, Image: img})
}

// Frames returns a copy of the captured frames
func (r *Recorder) Frames() []Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Frame(nil), r.frames...)
}

// Images renders every frame with its marks drawn
func (r *Recorder) Images() []image.Image {
	frames := r.Frames()
	out := make([]image.Image, len(frames))
	for i, f := range frames {
		out[i] = annotate(f.Image, f.Marks, f.OK)
	}
	return out
}

// WriteGIF encodes the trace to path and returns the file size
func (r *Recorder) WriteGIF(path string, opts GIFOptions) (int64, error) {
	images := r.Images()
	if len(images) == 0 {
		return 0, fmt.Errorf("trace has no frames")
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if err := EncodeGIF(f, images, opts); err != nil {
		return 0, err
	}
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
