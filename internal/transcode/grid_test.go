package transcode

import (
	"testing"

	"github.com/l2fetch/l2fetch/internal/level2"
)

// gateBoundarySweep builds a single-bin sweep at the given range, using the
// first_gate=500/gate_spacing=250 fixture from the boundary table.
func gateBoundarySweep(rangeM float32) *level2.Sweep {
	return &level2.Sweep{
		RayCount:     360,
		GateSpacingM: 250,
		FirstGateM:   500,
		NumGates:     4,
		Bins: []level2.Bin{
			{AzimuthDeg: 0, RangeM: rangeM, Value: 30.0},
		},
	}
}

func TestBuildGrid2DGateBoundaries(t *testing.T) {
	r := ProductRange{Min: -32.0, Max: 94.5}
	cases := []struct {
		rangeM   float32
		wantGate int // -1 means the bin must be dropped entirely
	}{
		{499.0, -1},
		{500.0, 0},
		{749.9, 0},
		{750.0, 1},
		{1000.0, 2},
	}

	for _, c := range cases {
		sweep := gateBoundarySweep(c.rangeM)
		g := BuildGrid2D(sweep, r)

		nonZero := -1
		for gate := 0; gate < g.NumGates; gate++ {
			if g.Cells[gate] != 0 {
				nonZero = gate
				break
			}
		}
		if c.wantGate == -1 {
			if nonZero != -1 {
				t.Errorf("range=%v: expected bin rejected, landed in gate %d", c.rangeM, nonZero)
			}
			continue
		}
		if nonZero != c.wantGate {
			t.Errorf("range=%v: got gate %d, want gate %d", c.rangeM, nonZero, c.wantGate)
		}
	}
}

func TestBuildGrid3DGateBoundaries(t *testing.T) {
	r := ProductRange{Min: -32.0, Max: 94.5}
	cases := []struct {
		rangeM   float32
		wantGate int
	}{
		{499.0, -1},
		{500.0, 0},
		{750.0, 1},
	}

	for _, c := range cases {
		sweep := gateBoundarySweep(c.rangeM)
		f := &level2.RadarFrame{Sweeps: []level2.Sweep{*sweep}}

		g, ok := BuildGrid3D(f, r)
		if !ok {
			t.Fatalf("range=%v: BuildGrid3D reported ok=false", c.rangeM)
		}

		nonZero := -1
		for gate := 0; gate < g.NumGates; gate++ {
			if g.Cells[gate] != 0 {
				nonZero = gate
				break
			}
		}
		if c.wantGate == -1 {
			if nonZero != -1 {
				t.Errorf("range=%v: expected bin rejected, landed in gate %d", c.rangeM, nonZero)
			}
			continue
		}
		if nonZero != c.wantGate {
			t.Errorf("range=%v: got gate %d, want gate %d", c.rangeM, nonZero, c.wantGate)
		}
	}
}
