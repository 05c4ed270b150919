// Package button polls a push button wired to a GPIO input.
//
// The poller samples the pin at a fixed interval and calls a function once
// per press, on the transition from released to pressed. Holding the button
// down does not repeat the call.
package button

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/gpio"
)

// Opts is the configuration for a Poller.
type Opts struct {
	// Interval between samples (default: 200ms).
	Interval time.Duration

	// ActiveHigh is true when a pressed button drives the pin high. The usual
	// wiring shorts the pin to ground, so the default is active low.
	ActiveHigh bool

	// Pull applied to the pin. PullNoChange picks a pull-up for active low
	// buttons and a pull-down for active high ones.
	Pull gpio.Pull

	Logger logrus.FieldLogger
}

// DefaultOpts polls an active low button five times a second.
var DefaultOpts = Opts{
	Interval: 200 * time.Millisecond,
	Pull:     gpio.PullNoChange,
}

// Poller watches one button.
type Poller struct {
	pin     gpio.PinIn
	onPress func()
	opt     Opts
	log     logrus.FieldLogger

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}

	calling atomic.Bool // onPress is running
}

// New configures pin as an input and returns a stopped poller calling
// onPress for every press. onPress runs on the poller goroutine and should
// return quickly. It may call Stop.
//
// opts can be nil to use DefaultOpts.
func New(pin gpio.PinIn, onPress func(), opts *Opts) (*Poller, error) {
	if pin == nil {
		return nil, errors.New("button: pin is required")
	}
	if onPress == nil {
		return nil, errors.New("button: press callback is required")
	}
	if opts == nil {
		opts = &DefaultOpts
	}
	if opts.Interval < 0 {
		return nil, errors.New("button: interval must not be negative")
	}
	p := &Poller{
		pin:     pin,
		onPress: onPress,
		opt:     *opts,
		log:     opts.Logger,
	}
	if p.opt.Interval == 0 {
		p.opt.Interval = DefaultOpts.Interval
	}
	if p.opt.Pull == gpio.PullNoChange {
		if p.opt.ActiveHigh {
			p.opt.Pull = gpio.PullDown
		} else {
			p.opt.Pull = gpio.PullUp
		}
	}
	if p.log == nil {
		p.log = logrus.StandardLogger()
	}
	p.log = p.log.WithFields(logrus.Fields{"pkg": "button", "pin": pin.Name()})

	if err := pin.In(p.opt.Pull, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("button: failed to configure %s: %w", pin, err)
	}
	return p, nil
}

// pressed maps a pin level to the button state.
func (p *Poller) pressed(l gpio.Level) bool {
	return l == gpio.Level(p.opt.ActiveHigh)
}

// Start launches the polling goroutine. Starting a running poller does
// nothing.
func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop != nil {
		return
	}
	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	p.log.Info("button polling started")
	go p.run(p.stop, p.done)
}

// run samples the pin until stop is closed. The first sample only sets the
// starting state, so a button already held when polling starts is not a press.
func (p *Poller) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	t := time.NewTicker(p.opt.Interval)
	defer t.Stop()

	last := p.pressed(p.pin.Read())
	for {
		select {
		case <-stop:
			return
		case <-t.C:
		}
		select {
		case <-stop:
			return
		default:
		}

		down := p.pressed(p.pin.Read())
		if down && !last {
			p.log.Info("button pressed")
			p.calling.Store(true)
			p.onPress()
			p.calling.Store(false)
		}
		last = down
	}
}

// Stop ends polling and waits for the goroutine to exit. Stopping a stopped
// poller does nothing.
//
// Called from onPress, Stop returns without waiting; the goroutine exits as
// soon as onPress returns.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop == nil {
		return
	}
	close(p.stop)
	if !p.calling.Load() {
		<-p.done
	}
	p.stop, p.done = nil, nil
	p.log.Info("button polling stopped")
}

// Running reports whether the polling goroutine is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stop != nil
}

// String returns a string representation of the poller.
func (p *Poller) String() string {
	return fmt.Sprintf("button.Poller{%s}", p.pin)
}
