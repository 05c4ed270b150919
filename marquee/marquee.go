// Package marquee scrolls text that does not fit on a display line.
//
// Each line has at most one scroll session. A session is a goroutine that
// slides a window the width of the line over the text followed by a line of
// blanks, so the tail of the text leaves the display before the next pass.
// Stopping a session waits for its goroutine to exit; no frame of a stopped
// session reaches the display after Stop returns.
package marquee

import (
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Display is the part of charlcd.Dev the engine draws through.
type Display interface {
	Validate(line, column int) error
	WriteAt(text string, line, column int) error
	ClearLine(line int) error
	Cols() int
}

// Opts is the configuration for an Engine.
type Opts struct {
	// Interval between frames (default: 300ms).
	Interval time.Duration
	// Loops is the number of passes over the text; 0 scrolls until stopped.
	Loops int

	Logger logrus.FieldLogger
}

// DefaultOpts scrolls continuously at about three characters per second.
var DefaultOpts = Opts{
	Interval: 300 * time.Millisecond,
}

// Engine runs the scroll sessions of one display.
type Engine struct {
	d   Display
	opt Opts
	log logrus.FieldLogger

	mu       sync.Mutex
	sessions map[int]*session
}

// session is one scrolling line. stop is closed to ask the worker to exit,
// done is closed by the worker when it has.
type session struct {
	text   []rune
	line   int
	column int

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	err      error
}

func (s *session) requestStop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// New returns an engine drawing on d.
//
// opts can be nil to use DefaultOpts.
func New(d Display, opts *Opts) (*Engine, error) {
	if opts == nil {
		opts = &DefaultOpts
	}
	if opts.Interval < 0 {
		return nil, errors.New("marquee: interval must not be negative")
	}
	if opts.Loops < 0 {
		return nil, errors.New("marquee: loops must not be negative")
	}
	e := &Engine{
		d:        d,
		opt:      *opts,
		log:      opts.Logger,
		sessions: map[int]*session{},
	}
	if e.opt.Interval == 0 {
		e.opt.Interval = DefaultOpts.Interval
	}
	if e.log == nil {
		e.log = logrus.StandardLogger()
	}
	e.log = e.log.WithField("pkg", "marquee")
	return e, nil
}

// Frames returns the windows shown for text on a line width characters wide,
// in order, for one pass.
func Frames(text string, width int) []string {
	if width <= 0 {
		return nil
	}
	padded := append([]rune(text), []rune(blank(width))...)
	frames := make([]string, 0, len(padded)-width+1)
	for i := 0; i+width <= len(padded); i++ {
		frames = append(frames, string(padded[i:i+width]))
	}
	return frames
}

func blank(n int) string {
	b := make([]rune, n)
	for i := range b {
		b[i] = ' '
	}
	return string(b)
}

// Start shows text on line from column onwards.
//
// Text that fits in the remaining width is written once and no session is
// created. Longer text starts a session. An existing session on the same
// line is stopped and the line cleared first; its goroutine has exited by the
// time anything new is drawn.
func (e *Engine) Start(text string, line, column int) error {
	if err := e.d.Validate(line, column); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if old, ok := e.sessions[line]; ok {
		e.log.WithField("line", line).Debug("replacing active scroll")
		e.halt(old)
		delete(e.sessions, line)
		if err := e.d.ClearLine(line); err != nil {
			return err
		}
	}

	width := e.d.Cols() - column
	runes := []rune(text)
	if len(runes) <= width {
		return e.d.WriteAt(text, line, column)
	}

	s := &session{
		text:   runes,
		line:   line,
		column: column,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	e.sessions[line] = s
	e.log.WithFields(logrus.Fields{"line": line, "length": len(runes)}).Debug("scroll started")
	go e.run(s, width)
	return nil
}

// run is the session worker.
func (e *Engine) run(s *session, width int) {
	defer close(s.done)

	frames := Frames(string(s.text), width)
	t := time.NewTimer(e.opt.Interval)
	defer t.Stop()

	for pass := 0; e.opt.Loops == 0 || pass < e.opt.Loops; pass++ {
		for _, frame := range frames {
			select {
			case <-s.stop:
				return
			default:
			}
			if err := e.d.WriteAt(frame, s.line, s.column); err != nil {
				e.log.WithError(err).WithField("line", s.line).Error("scroll aborted")
				s.err = err
				return
			}
			t.Reset(e.opt.Interval)
			select {
			case <-s.stop:
				return
			case <-t.C:
			}
		}
	}
	e.log.WithField("line", s.line).Debug("scroll finished")
}

// halt stops s and waits for its worker. Must be called with mu held.
func (e *Engine) halt(s *session) {
	s.requestStop()
	<-s.done
}

// Stop ends the session on line, waits for its goroutine and clears the line.
// Stopping a line without a session does nothing.
func (e *Engine) Stop(line int) error {
	if !e.Cancel(line) {
		return nil
	}
	return e.d.ClearLine(line)
}

// Cancel ends the session on line and waits for its goroutine, leaving the
// last frame on the display. It reports whether line had a session.
func (e *Engine) Cancel(line int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.sessions[line]
	if !ok {
		return false
	}
	e.halt(s)
	delete(e.sessions, line)
	e.log.WithField("line", line).Debug("scroll stopped")
	return true
}

// StopAll stops every session. Lines are cleared as in Stop; the first error
// is returned after all sessions are stopped.
func (e *Engine) StopAll() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var first error
	for line, s := range e.sessions {
		e.halt(s)
		delete(e.sessions, line)
		if err := e.d.ClearLine(line); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Active reports whether a session is still running on line.
func (e *Engine) Active(line int) bool {
	e.mu.Lock()
	s, ok := e.sessions[line]
	e.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// Wait blocks until the session on line finishes on its own and returns the
// error that ended it, if any. It returns immediately when line has no
// session. With continuous scrolling Wait only returns once the session is
// stopped from another goroutine.
func (e *Engine) Wait(line int) error {
	e.mu.Lock()
	s, ok := e.sessions[line]
	e.mu.Unlock()
	if !ok {
		return nil
	}
	<-s.done
	return s.err
}
