// ABOUTME: Frame pacing for outgoing streams
// ABOUTME: Sends a pre-roll burst, holds until real time catches up, then paces frames
package server

import (
	"context"
	"fmt"
	"time"
)

// DelayFlag is the pacing phase of one stream
type DelayFlag int

const (
	// DelayInitialized: streaming has started, pre-roll frames go out unpaced
	DelayInitialized DelayFlag = iota
	// DelayEnabled: the threshold was reached, the next frame is held until
	// the wall clock catches up with the audio already sent
	DelayEnabled
	// DelayDisabled: more than the threshold was sent, no extra delay;
	// frames follow the real-time cadence
	DelayDisabled
)

func (f DelayFlag) String() string {
	switch f {
	case DelayInitialized:
		return "initialized"
	case DelayEnabled:
		return "enabled"
	case DelayDisabled:
		return "disabled"
	}
	return fmt.Sprintf("delay(%d)", int(f))
}

// pacer decides when the next frame may be written
type pacer struct {
	flag      DelayFlag
	threshold int
	interval  time.Duration
	sent      int
	start     time.Time // wall clock of the first frame
}

// newPacer sends threshold frames unpaced, then one frame per interval.
// A threshold of zero or less skips the pre-roll; a zero interval never waits.
func newPacer(threshold int, interval time.Duration) *pacer {
	flag := DelayInitialized
	if threshold <= 0 {
		flag = DelayDisabled
	}
	return &pacer{
		flag:      flag,
		threshold: threshold,
		interval:  interval,
	}
}

// due is when the next frame starts in real time
func (p *pacer) due() time.Time {
	return p.start.Add(time.Duration(p.sent) * p.interval)
}

// wait blocks until the next frame is due
func (p *pacer) wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.flag == DelayInitialized || p.interval <= 0 || p.sent == 0 {
		return nil
	}

	d := time.Until(p.due())
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// advance records a written frame
func (p *pacer) advance() {
	if p.sent == 0 {
		p.start = time.Now()
	}
	p.sent++

	switch p.flag {
	case DelayInitialized:
		if p.sent >= p.threshold {
			p.flag = DelayEnabled
		}
	case DelayEnabled:
		p.flag = DelayDisabled
	case DelayDisabled:
		// After a stall, resume from now instead of bursting to catch up
		if now := time.Now(); p.interval > 0 && p.due().Before(now.Add(-p.interval)) {
			p.start = now.Add(-time.Duration(p.sent) * p.interval)
		}
	}
}
