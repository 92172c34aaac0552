package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner shows an animated message while an operation of unknown length runs
type Spinner struct {
	writer   io.Writer
	interval time.Duration
	noColor  bool

	mu      sync.Mutex
	message string
	stop    chan struct{}
	stopped chan struct{}
}

// NewSpinner creates a spinner. interval defaults to 100ms.
func NewSpinner(w io.Writer, message string, interval time.Duration, noColor bool) *Spinner {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &Spinner{
		writer:   w,
		interval: interval,
		noColor:  noColor,
		message:  message,
	}
}

// Start begins the animation. Starting a running spinner does nothing.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return
	}
	s.stop = make(chan struct{})
	s.stopped = make(chan struct{})
	go s.animate(s.stop, s.stopped)
}

// Stop ends the animation and clears the line. It returns once the animation goroutine
// has exited.
func (s *Spinner) Stop() {
	s.mu.Lock()
	stop, stopped := s.stop, s.stopped
	s.stop, s.stopped = nil, nil
	s.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-stopped

	s.mu.Lock()
	fmt.Fprint(s.writer, "\r\033[K")
	s.mu.Unlock()
}

// Success stops the spinner and prints a success line
func (s *Spinner) Success(message string) {
	s.Stop()
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.writer, FormatSuccess(message, s.noColor))
}

// Error stops the spinner and prints a failure line
func (s *Spinner) Error(message string) {
	s.Stop()
	red := color.New(color.FgRed, color.Bold)
	if s.noColor {
		red.DisableColor()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	red.Fprintf(s.writer, "✗ %s\n", message)
}

// UpdateMessage changes the spinner message
func (s *Spinner) UpdateMessage(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.message = message
}

func (s *Spinner) animate(stop <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	cyan := color.New(color.FgCyan)
	if s.noColor {
		cyan.DisableColor()
	}

	for frame := 0; ; frame = (frame + 1) % len(spinnerFrames) {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			cyan.Fprintf(s.writer, "\r%s %s", spinnerFrames[frame], s.message)
			s.mu.Unlock()
		}
	}
}

// ProgressBar renders the progress of an operation over a known number of steps
type ProgressBar struct {
	writer  io.Writer
	total   int
	current int
	width   int
	message string
	noColor bool
}

// NewProgressBar creates a bar of 40 cells
func NewProgressBar(w io.Writer, total int, message string, noColor bool) *ProgressBar {
	return &ProgressBar{
		writer:  w,
		total:   total,
		width:   40,
		message: message,
		noColor: noColor,
	}
}

// Increment advances the bar by one step
func (p *ProgressBar) Increment() {
	p.current = min(p.current+1, p.total)
	p.render()
}

// Finish fills the bar and ends the line
func (p *ProgressBar) Finish() {
	p.current = p.total
	p.render()
	fmt.Fprintln(p.writer)
}

func (p *ProgressBar) render() {
	if p.total <= 0 {
		return
	}
	filled := p.width * p.current / p.total

	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)
	if p.noColor {
		cyan.DisableColor()
		gray.DisableColor()
	}

	bar := "[" + cyan.Sprint(strings.Repeat("█", filled)) + gray.Sprint(strings.Repeat("░", p.width-filled)) + "]"
	fmt.Fprintf(p.writer, "\r%s %d/%d %s", bar, p.current, p.total, p.message)
}

// WithSpinner runs fn while a spinner shows message
func WithSpinner(w io.Writer, message string, noColor bool, fn func() error) error {
	spinner := NewSpinner(w, message, 0, noColor)
	spinner.Start()

	if err := fn(); err != nil {
		spinner.Error(message + " failed")
		return err
	}
	spinner.Success(message)
	return nil
}
