package ui

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// syncBuffer guards a buffer written by the spinner goroutine
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSpinnerLifecycle(t *testing.T) {
	var buf syncBuffer
	spinner := NewSpinner(&buf, "Loading workspace", 10*time.Millisecond, true)

	spinner.Start()
	spinner.Start()
	assert.Eventually(t, func() bool {
		return strings.Contains(buf.String(), "Loading workspace")
	}, time.Second, 5*time.Millisecond)

	spinner.UpdateMessage("Building registry")
	assert.Eventually(t, func() bool {
		return strings.Contains(buf.String(), "Building registry")
	}, time.Second, 5*time.Millisecond)

	spinner.Stop()
	assert.True(t, strings.HasSuffix(buf.String(), "\r\033[K"))

	// stopping twice is harmless
	spinner.Stop()
}

func TestSpinnerOutcome(t *testing.T) {
	var buf syncBuffer
	spinner := NewSpinner(&buf, "Loading", time.Hour, true)
	spinner.Start()
	spinner.Success("Loaded 3 files")
	assert.Contains(t, buf.String(), "✓ Loaded 3 files\n")

	spinner = NewSpinner(&buf, "Loading", time.Hour, true)
	spinner.Start()
	spinner.Error("Loading failed")
	assert.Contains(t, buf.String(), "✗ Loading failed\n")
}

func TestWithSpinner(t *testing.T) {
	var buf syncBuffer
	err := WithSpinner(&buf, "Loading", true, func() error { return nil })
	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "✓ Loading")

	boom := errors.New("boom")
	err = WithSpinner(&buf, "Parsing", true, func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, buf.String(), "✗ Parsing failed")
}

func TestProgressBar(t *testing.T) {
	var buf bytes.Buffer
	bar := NewProgressBar(&buf, 4, "inspecting", true)
	bar.width = 8

	bar.Increment()
	assert.Contains(t, buf.String(), "[██░░░░░░] 1/4 inspecting")

	for i := 0; i < 10; i++ {
		bar.Increment()
	}
	bar.Finish()
	assert.Contains(t, buf.String(), "[████████] 4/4 inspecting\n")
}

func TestProgressBarWithoutSteps(t *testing.T) {
	var buf bytes.Buffer
	bar := NewProgressBar(&buf, 0, "nothing", true)
	bar.Increment()
	assert.Empty(t, buf.String())
}
