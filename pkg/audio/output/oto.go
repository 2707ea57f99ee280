// ABOUTME: Oto-based audio output implementation
// ABOUTME: Plays each decoded buffer on its own oto player with software volume
package output

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/ebitengine/oto/v3"
	"go.uber.org/zap"

	"github.com/harperreed/tempostream/pkg/audio"
	"github.com/harperreed/tempostream/pkg/audio/resample"
)

// Oto output implementation using oto library.
//
// oto allows a single device context per process, so the context is created
// at the first Open's rate and channel count. Later Opens keep the context and
// convert buffers from the newly negotiated format to the context's.
type Oto struct {
	mu         sync.Mutex
	log        *zap.SugaredLogger
	latency    Latency
	otoCtx     *oto.Context
	players    []*oto.Player
	sampleRate int // device context
	channels   int // device context
	format     audio.Format
	resampler  *resample.Resampler
	volume     int
	muted      bool
	ready      bool
}

// NewOto creates a new Oto output
func NewOto(latency Latency, logger *zap.Logger) *Oto {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Oto{
		log:     logger.Sugar(),
		latency: latency,
		volume:  100,
	}
}

// Open creates the device context, or reuses it and converts from format when
// the rate or channel count differs. Players still sounding from a previous
// format are stopped.
func (o *Oto) Open(format audio.Format) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	o.stopPlayers()

	if o.otoCtx != nil {
		o.setFormat(format)
		o.ready = true
		if o.resampler != nil || format.Channels != o.channels {
			o.log.Infof("Audio output converting %dHz %dch to device %dHz %dch",
				format.SampleRate, format.Channels, o.sampleRate, o.channels)
		} else {
			o.log.Infof("Audio output resumed: %dHz, %d channels", format.SampleRate, format.Channels)
		}
		return nil
	}

	op := &oto.NewContextOptions{
		SampleRate:   format.SampleRate,
		ChannelCount: format.Channels,
		Format:       oto.FormatFloat32LE,
		BufferSize:   o.latency.BufferSize(),
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return fmt.Errorf("failed to create oto context: %w", err)
	}

	<-readyChan

	o.otoCtx = ctx
	o.sampleRate = format.SampleRate
	o.channels = format.Channels
	o.setFormat(format)
	o.ready = true

	o.log.Infof("Audio output initialized: %dHz, %d channels, latency=%s",
		format.SampleRate, format.Channels, o.latency)

	return nil
}

// Play starts buf on a fresh player and returns immediately
func (o *Oto) Play(buf audio.Buffer) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.ready {
		return ErrNotOpen
	}
	if err := checkShape(buf, o.format.Channels); err != nil {
		return err
	}
	if err := o.otoCtx.Err(); err != nil {
		return fmt.Errorf("oto context failed: %w", err)
	}

	o.reapPlayers()

	buf = o.convert(buf)
	if buf.Frames() == 0 {
		return nil
	}

	samples := buf.Interleave()
	data := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(s))
	}

	player := o.otoCtx.NewPlayer(bytes.NewReader(data))
	player.SetVolume(getVolumeMultiplier(o.volume, o.muted))
	player.Play()
	o.players = append(o.players, player)

	return nil
}

// Close stops accepting buffers. Players already started drain on their own;
// oto cannot release its context, so the device stays allocated for the
// next Open.
func (o *Oto) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.ready {
		o.ready = false
		o.log.Infof("Audio output closed with %d players draining", len(o.players))
	}
	return nil
}

// setFormat records the negotiated format and prepares rate conversion
func (o *Oto) setFormat(format audio.Format) {
	o.format = format
	o.resampler = nil
	if format.SampleRate != o.sampleRate {
		o.resampler = resample.New(format.SampleRate, o.sampleRate, o.channels)
	}
}

// convert maps buf from the negotiated format to the device context
func (o *Oto) convert(buf audio.Buffer) audio.Buffer {
	buf = resample.Remap(buf, o.channels)
	if o.resampler != nil {
		buf = o.resampler.Resample(buf)
	}
	return buf
}

// SetVolume sets the volume (0-100)
func (o *Oto) SetVolume(volume int) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.volume = clampVolume(volume)
	o.applyVolume()
	o.log.Infof("Volume set to %d", o.volume)
}

// SetMuted sets mute state
func (o *Oto) SetMuted(muted bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.muted = muted
	o.applyVolume()
	o.log.Infof("Muted: %v", muted)
}

// GetVolume returns current volume
func (o *Oto) GetVolume() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.volume
}

// IsMuted returns mute state
func (o *Oto) IsMuted() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.muted
}

// applyVolume updates players that are still sounding
func (o *Oto) applyVolume() {
	multiplier := getVolumeMultiplier(o.volume, o.muted)
	for _, p := range o.players {
		p.SetVolume(multiplier)
	}
}

// reapPlayers closes players that have drained their buffer
func (o *Oto) reapPlayers() {
	active := o.players[:0]
	for _, p := range o.players {
		if p.IsPlaying() {
			active = append(active, p)
			continue
		}
		if err := p.Close(); err != nil {
			o.log.Debugf("Closing finished player: %v", err)
		}
	}
	o.players = active
}

func (o *Oto) stopPlayers() {
	for _, p := range o.players {
		p.Pause()
		if err := p.Close(); err != nil {
			o.log.Debugf("Closing player: %v", err)
		}
	}
	o.players = nil
}

func clampVolume(volume int) int {
	if volume < 0 {
		return 0
	}
	if volume > 100 {
		return 100
	}
	return volume
}

// getVolumeMultiplier calculates volume multiplier
func getVolumeMultiplier(volume int, muted bool) float64 {
	if muted {
		return 0.0
	}
	return float64(volume) / 100.0
}
