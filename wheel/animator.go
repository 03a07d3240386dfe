package wheel

import (
	"math"
	"sync"
	"time"
)

const (
	// DefaultAnimationDuration is how long a spin animates before it resolves.
	DefaultAnimationDuration = 5 * time.Second
	// DefaultMinTurns is the number of full turns added to every spin.
	DefaultMinTurns = 5
)

// SpinEvent describes one spin animation, from start to target rotation.
type SpinEvent struct {
	Index     int           `json:"index"`
	Segments  int           `json:"segments"`
	From      float64       `json:"from"`
	Target    float64       `json:"target"`
	Duration  time.Duration `json:"duration"`
	StartedAt time.Time     `json:"started_at"`
}

// Animator drives one spin at a time. The animation window is also the
// re-entrancy lock: Spin while animating does nothing.
type Animator struct {
	mu        sync.Mutex
	rotation  float64
	animating bool
	duration  time.Duration
	minTurns  int
}

// NewAnimator creates an animator with the given window and minimum turns.
func NewAnimator(duration time.Duration, minTurns int) *Animator {
	if duration <= 0 {
		duration = DefaultAnimationDuration
	}
	if minTurns <= 0 {
		minTurns = DefaultMinTurns
	}
	return &Animator{duration: duration, minTurns: minTurns}
}

// TargetRotation returns the rotation, in degrees, that leaves the pointer at
// the center of segment index. The result is at least current + minTurns
// full turns.
func TargetRotation(current float64, index, segments, minTurns int) float64 {
	slice := 360.0 / float64(segments)
	// Pointer sits at 0°; segment i spans [i*slice, (i+1)*slice) clockwise.
	landing := math.Mod(360-(float64(index)+0.5)*slice, 360)
	offset := math.Mod(landing-math.Mod(current, 360)+360, 360)
	return current + float64(minTurns)*360 + offset
}

// Spin starts animating towards index and calls onEnd once the window has
// elapsed. It returns false, and does nothing, while a spin is animating.
func (a *Animator) Spin(index, segments int, onEnd func(SpinEvent)) (SpinEvent, bool) {
	a.mu.Lock()
	if a.animating || segments < MinSegments || index < 0 || index >= segments {
		a.mu.Unlock()
		return SpinEvent{}, false
	}
	event := SpinEvent{
		Index:     index,
		Segments:  segments,
		From:      a.rotation,
		Target:    TargetRotation(a.rotation, index, segments, a.minTurns),
		Duration:  a.duration,
		StartedAt: time.Now(),
	}
	a.animating = true
	a.rotation = event.Target
	a.mu.Unlock()

	time.AfterFunc(a.duration, func() {
		a.mu.Lock()
		a.animating = false
		a.mu.Unlock()
		if onEnd != nil {
			onEnd(event)
		}
	})

	return event, true
}

// Animating reports whether a spin is in progress.
func (a *Animator) Animating() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.animating
}

// Rotation returns the wheel's resting rotation in degrees.
func (a *Animator) Rotation() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rotation
}

// Duration returns the animation window.
func (a *Animator) Duration() time.Duration {
	return a.duration
}
