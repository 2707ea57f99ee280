// ABOUTME: Device-less audio output
// ABOUTME: Accepts and counts buffers without producing sound
package output

import (
	"sync"

	"github.com/harperreed/tempostream/pkg/audio"
)

// Discard is an Output that drops every buffer
type Discard struct {
	mu      sync.Mutex
	format  audio.Format
	open    bool
	buffers int64
	frames  int64
}

// NewDiscard creates a discarding output
func NewDiscard() *Discard {
	return &Discard{}
}

// Open records the format
func (d *Discard) Open(format audio.Format) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.format = format
	d.open = true
	return nil
}

// Play counts buf
func (d *Discard) Play(buf audio.Buffer) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.open {
		return ErrNotOpen
	}
	if err := checkShape(buf, d.format.Channels); err != nil {
		return err
	}
	d.buffers++
	d.frames += int64(buf.Frames())
	return nil
}

// Close marks the output closed
func (d *Discard) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open = false
	return nil
}

// Counts returns how many buffers and frames were played
func (d *Discard) Counts() (buffers, frames int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.buffers, d.frames
}
