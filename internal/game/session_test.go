package game

import (
	"math"
	"testing"
	"time"
)

func TestHasMovedBeyondIsComponentwise(t *testing.T) {
	s := NewSession("s", "test", 0, Vec3{X: 1, Y: 0, Z: 1})

	tests := []struct {
		name      string
		candidate Vec3
		want      bool
	}{
		{"identical", Vec3{X: 1, Y: 0, Z: 1}, false},
		{"below threshold on all axes", Vec3{X: 1.005, Y: 0.005, Z: 1.005}, false},
		{"single axis crosses", Vec3{X: 1, Y: 0, Z: 1.02}, true},
		{"large diagonal", Vec3{X: 2, Y: 1, Z: 2}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.HasMovedBeyond(tt.candidate, PositionEpsilon); got != tt.want {
				t.Fatalf("HasMovedBeyond(%+v) = %v, want %v", tt.candidate, got, tt.want)
			}
		})
	}
}

func TestHasRotatedBeyondHandlesWrapAround(t *testing.T) {
	s := NewSession("s", "test", 0, Vec3{})
	s.UpdateTransform(s.Position, math.Pi-0.001)

	// Just across the pi boundary: the angular distance is tiny even
	// though the raw difference is nearly 2*pi.
	if s.HasRotatedBeyond(-math.Pi+0.001, YawEpsilon) {
		t.Fatal("wrap-around neighbor treated as a significant rotation")
	}
	if !s.HasRotatedBeyond(0, YawEpsilon) {
		t.Fatal("half-turn not treated as significant")
	}
}

func TestNormalizeYaw(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0, 0},
		{math.Pi, math.Pi},
		{-math.Pi, math.Pi},
		{3 * math.Pi, math.Pi},
		{2 * math.Pi, 0},
		{-math.Pi / 2, -math.Pi / 2},
	}
	for _, tt := range tests {
		if got := NormalizeYaw(tt.in); math.Abs(got-tt.want) > 1e-9 {
			t.Fatalf("NormalizeYaw(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestClampPosition(t *testing.T) {
	clamped := ClampPosition(Vec3{X: 1000, Y: -5, Z: WorldMinZ - 1})
	want := Vec3{X: WorldMaxX, Y: WorldMinY, Z: WorldMinZ}
	if clamped != want {
		t.Fatalf("ClampPosition = %+v, want %+v", clamped, want)
	}

	inside := Vec3{X: 3, Y: 1, Z: -4}
	if got := ClampPosition(inside); got != inside {
		t.Fatalf("in-bounds position changed: %+v", got)
	}
}

func TestConsumeDirtyClearsFlag(t *testing.T) {
	s := NewSession("s", "test", 0, Vec3{})

	if s.ConsumeDirty() {
		t.Fatal("fresh session reported dirty")
	}
	s.MarkDirty()
	if !s.ConsumeDirty() {
		t.Fatal("dirty flag lost")
	}
	if s.ConsumeDirty() {
		t.Fatal("dirty flag not cleared by consume")
	}
}

func TestHeartbeatDerivesRTT(t *testing.T) {
	s := NewSession("s", "test", 0, Vec3{})
	now := time.Now()

	rtt := s.Heartbeat(now, now.Add(-40*time.Millisecond).UnixMilli())
	if rtt <= 0 || rtt > time.Second {
		t.Fatalf("implausible rtt %v", rtt)
	}
	if !s.LastHeartbeat().Equal(now) {
		t.Fatalf("last heartbeat not recorded")
	}

	// Missing client timestamp keeps the previous estimate.
	if got := s.Heartbeat(now.Add(time.Second), 0); got != rtt {
		t.Fatalf("rtt changed without client timestamp: %v != %v", got, rtt)
	}
}
