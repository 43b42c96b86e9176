package transcode

import (
	"math"

	"github.com/l2fetch/l2fetch/internal/level2"
)

// maxVoxels bounds the volumetric grid; frames whose sorted-tilt count times
// 720 times gate count would exceed this are skipped, not errored.
const maxVoxels = 200_000_000

// Grid2D is one tilt's quantized byte grid, row-major [ray][gate].
type Grid2D struct {
	NumRays  int
	NumGates int
	Cells    []uint8
}

// rayCountFor picks 720 or 360 rays for a tilt based on its logged ray
// count, per spec: more than 400 logged rays implies a 720-ray sweep.
func rayCountFor(sweep *level2.Sweep) int {
	if sweep.RayCount > 400 {
		return 720
	}
	return 360
}

// BuildGrid2D packs one sweep into its 2D per-tilt grid, quantizing each bin
// and keeping the maximum value on any ray/gate collision.
func BuildGrid2D(sweep *level2.Sweep, r ProductRange) *Grid2D {
	numRays := rayCountFor(sweep)
	numGates := sweep.NumGates
	g := &Grid2D{NumRays: numRays, NumGates: numGates, Cells: make([]uint8, numRays*numGates)}
	if numGates <= 0 {
		return g
	}
	resFactor := float32(numRays) / 360.0

	for _, bin := range sweep.Bins {
		gateIdx := int(math.Floor(float64((bin.RangeM - sweep.FirstGateM) / sweep.GateSpacingM)))
		if gateIdx < 0 || gateIdx >= numGates {
			continue
		}
		rayIdx := int(bin.AzimuthDeg*resFactor + 0.01)
		if rayIdx < 0 {
			continue
		}
		rayIdx %= numRays

		q := Quantize(bin.Value, r)
		idx := rayIdx*numGates + gateIdx
		if q > g.Cells[idx] {
			g.Cells[idx] = q
		}
	}
	return g
}

// Grid3D is the always-720-ray volumetric grid across sorted tilts.
type Grid3D struct {
	Tilts    []float32
	NumGates int
	Cells    []uint8 // [tiltIdx][ray][gate], row-major
}

const volumetricRays = 720

// BuildGrid3D assembles the volumetric grid for an entire frame. It returns
// ok=false when the voxel cap would be exceeded; the caller must then skip
// writing the volumetric artifact while still writing per-tilt ones.
func BuildGrid3D(f *level2.RadarFrame, r ProductRange) (*Grid3D, bool) {
	tilts := f.AvailableTilts()
	numGates := 0
	for i := range f.Sweeps {
		if f.Sweeps[i].NumGates > numGates {
			numGates = f.Sweeps[i].NumGates
		}
	}
	if numGates <= 0 || len(tilts) == 0 {
		return nil, false
	}

	totalVoxels := len(tilts) * volumetricRays * numGates
	if totalVoxels > maxVoxels {
		return nil, false
	}

	g := &Grid3D{Tilts: tilts, NumGates: numGates, Cells: make([]uint8, totalVoxels)}
	tiltIndex := make(map[int]int, len(tilts))
	for i, t := range tilts {
		tiltIndex[level2.GetTiltKey(t)] = i
	}

	planeSize := volumetricRays * numGates
	for i := range f.Sweeps {
		sweep := &f.Sweeps[i]
		tIdx, ok := tiltIndex[level2.GetTiltKey(sweep.ElevationDeg)]
		if !ok {
			continue
		}
		doubled := rayCountFor(sweep) == 360

		for _, bin := range sweep.Bins {
			gateIdx := int(math.Floor(float64((bin.RangeM - sweep.FirstGateM) / sweep.GateSpacingM)))
			if gateIdx < 0 || gateIdx >= numGates {
				continue
			}
			rayIdx := int(bin.AzimuthDeg*2.0 + 0.01)
			if rayIdx < 0 {
				continue
			}
			rayIdx %= volumetricRays

			q := Quantize(bin.Value, r)
			base := tIdx*planeSize + rayIdx*numGates + gateIdx
			if q > g.Cells[base] {
				g.Cells[base] = q
			}
			if doubled {
				nextRay := (rayIdx + 1) % volumetricRays
				nbase := tIdx*planeSize + nextRay*numGates + gateIdx
				if q > g.Cells[nbase] {
					g.Cells[nbase] = q
				}
			}
		}
	}

	return g, true
}

// HasNonZero reports whether a 3D grid has at least one populated voxel;
// an all-zero volumetric artifact is not persisted.
func (g *Grid3D) HasNonZero() bool {
	for _, v := range g.Cells {
		if v != 0 {
			return true
		}
	}
	return false
}
