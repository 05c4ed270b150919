// Package render is the entry point for code that decides what the display
// shows.
//
// A Coordinator takes whole lines of content. Lines that fit are written
// once; longer lines scroll. Whatever a line showed before, including an
// active scroll, is removed before the new content is drawn.
package render

import (
	"errors"
	"sync"
	"unicode/utf8"

	"github.com/flavioheleno/charlcd"
	"github.com/flavioheleno/charlcd/marquee"
	"github.com/sirupsen/logrus"
)

// Display is the part of charlcd.Dev the coordinator needs.
type Display interface {
	marquee.Display
	Rows() int
	Clear() error
}

// Opts is the configuration for a Coordinator.
type Opts struct {
	// Scroll configures the scroll engine; nil uses marquee.DefaultOpts.
	Scroll *marquee.Opts

	Logger logrus.FieldLogger
}

// Coordinator serializes display requests and owns the scroll engine.
type Coordinator struct {
	d      Display
	scroll *marquee.Engine
	log    logrus.FieldLogger

	mu sync.Mutex
}

// New returns a coordinator drawing on d.
//
// opts can be nil to use defaults.
func New(d Display, opts *Opts) (*Coordinator, error) {
	if d == nil {
		return nil, errors.New("render: display is required")
	}
	if opts == nil {
		opts = &Opts{}
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	so := marquee.DefaultOpts
	if opts.Scroll != nil {
		so = *opts.Scroll
	}
	if so.Logger == nil {
		so.Logger = log
	}
	scroll, err := marquee.New(d, &so)
	if err != nil {
		return nil, err
	}
	return &Coordinator{
		d:      d,
		scroll: scroll,
		log:    log.WithField("pkg", "render"),
	}, nil
}

// Show replaces the content of line with text.
func (c *Coordinator) Show(line int, text string) error {
	if err := c.d.Validate(line, 0); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.show(line, text)
}

// show must be called with mu held and line validated.
func (c *Coordinator) show(line int, text string) error {
	c.scroll.Cancel(line)
	if err := c.d.ClearLine(line); err != nil {
		return err
	}
	if text == "" {
		return nil
	}
	if utf8.RuneCountInString(text) <= c.d.Cols() {
		return c.d.WriteAt(text, line, 0)
	}
	c.log.WithField("line", line).Debug("content overflows, scrolling")
	return c.scroll.Start(text, line, 0)
}

// ShowAll replaces the whole display, one text per line from line 1. Lines
// past the end of texts are cleared. More texts than lines is an error and
// nothing is drawn.
func (c *Coordinator) ShowAll(texts []string) error {
	rows := c.d.Rows()
	if len(texts) > rows {
		err := &charlcd.RangeError{Field: "lines", Value: len(texts), Min: 0, Max: rows}
		c.log.Warn(err)
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for line := 1; line <= rows; line++ {
		text := ""
		if line <= len(texts) {
			text = texts[line-1]
		}
		if err := c.show(line, text); err != nil {
			return err
		}
	}
	return nil
}

// ClearAll stops every scroll and blanks the display.
func (c *Coordinator) ClearAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for line := 1; line <= c.d.Rows(); line++ {
		c.scroll.Cancel(line)
	}
	return c.d.Clear()
}

// Scrolling reports whether line is showing scrolling content.
func (c *Coordinator) Scrolling(line int) bool {
	return c.scroll.Active(line)
}

// Close stops every scroll and blanks the display. The display itself is
// left open.
func (c *Coordinator) Close() error {
	return c.ClearAll()
}

var _ Display = &charlcd.Dev{}
