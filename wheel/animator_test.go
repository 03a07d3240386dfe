package wheel

import (
	"math"
	"testing"
	"time"
)

func TestTargetRotation(t *testing.T) {
	tests := []struct {
		name     string
		current  float64
		index    int
		segments int
	}{
		{"first segment from rest", 0, 0, 4},
		{"last segment from rest", 0, 3, 4},
		{"from partial rotation", 1845, 2, 3},
		{"many segments", 90, 7, 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := TargetRotation(tt.current, tt.index, tt.segments, 5)
			if target < tt.current+5*360 {
				t.Fatalf("target %v is less than 5 turns past %v", target, tt.current)
			}
			if target >= tt.current+6*360 {
				t.Fatalf("target %v adds more than one extra turn", target)
			}
			slice := 360.0 / float64(tt.segments)
			// The segment under the pointer is found by undoing the rotation.
			pointer := math.Mod(360-math.Mod(target, 360), 360)
			landed := int(pointer / slice)
			if landed != tt.index {
				t.Errorf("landed on %d, want %d", landed, tt.index)
			}
			center := (float64(tt.index) + 0.5) * slice
			if math.Abs(pointer-center) > 1e-9 {
				t.Errorf("pointer at %v, want segment center %v", pointer, center)
			}
		})
	}
}

func TestAnimatorLocksDuringWindow(t *testing.T) {
	a := NewAnimator(50*time.Millisecond, 5)
	ended := make(chan SpinEvent, 2)

	first, ok := a.Spin(1, 3, func(e SpinEvent) { ended <- e })
	if !ok {
		t.Fatalf("first spin should start")
	}
	if !a.Animating() {
		t.Fatalf("animator should be animating")
	}

	if _, ok := a.Spin(2, 3, func(e SpinEvent) { ended <- e }); ok {
		t.Fatalf("spin while animating must be a no-op")
	}

	select {
	case e := <-ended:
		if e.Index != 1 || e.Target != first.Target {
			t.Errorf("unexpected end event %+v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("spin never ended")
	}

	if a.Animating() {
		t.Errorf("animator should be idle after the window")
	}
	if a.Rotation() != first.Target {
		t.Errorf("rotation %v, want %v", a.Rotation(), first.Target)
	}

	select {
	case e := <-ended:
		t.Fatalf("second spin must not have been queued, got %+v", e)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestAnimatorDoesNotEndEarly(t *testing.T) {
	a := NewAnimator(200*time.Millisecond, 5)
	ended := make(chan struct{}, 1)
	start := time.Now()
	if _, ok := a.Spin(0, 2, func(SpinEvent) { ended <- struct{}{} }); !ok {
		t.Fatal("spin should start")
	}
	<-ended
	if elapsed := time.Since(start); elapsed < 200*time.Millisecond {
		t.Errorf("spin ended after %v, before the animation window", elapsed)
	}
}

func TestAnimatorRejectsOutOfRangeIndex(t *testing.T) {
	a := NewAnimator(10*time.Millisecond, 5)
	if _, ok := a.Spin(3, 3, nil); ok {
		t.Errorf("out of range index must not spin")
	}
	if _, ok := a.Spin(0, 1, nil); ok {
		t.Errorf("single segment wheel must not spin")
	}
}
