package transcode

// Metadata is the compact key set written ahead of the bitmask and values
// in every .RDA artifact (spec field names kept short on purpose).
type Metadata struct {
	Station     string    `json:"s"`
	Product     string    `json:"p"`
	Timestamp   string    `json:"t"`
	Tilt        *float32  `json:"e,omitempty"`
	Format      string    `json:"f"`
	Rays        int       `json:"r"`
	Gates       int       `json:"g"`
	GateSpacing float32   `json:"gs"`
	FirstGate   float32   `json:"fg"`
	ValueCount  int       `json:"v"`
	Tilts       []float32 `json:"tilts,omitempty"`
	MaxHeightM  float32   `json:"zmax,omitempty"`
}

// Artifact is the in-memory form of one .RDA file: metadata plus the packed
// bitmask and parallel value stream produced by EncodeBitmask.
type Artifact struct {
	Metadata Metadata
	Bitmask  []byte
	Values   []byte
}

// TiltArtifact packs one 2D per-tilt grid into its storage artifact.
func TiltArtifact(station, product, timestamp string, tiltDeg float32, gateSpacing, firstGate float32, g *Grid2D) Artifact {
	bitmask, values := EncodeBitmask(g.Cells)
	tilt := tiltDeg
	return Artifact{
		Metadata: Metadata{
			Station:     station,
			Product:     product,
			Timestamp:   timestamp,
			Tilt:        &tilt,
			Format:      "b",
			Rays:        g.NumRays,
			Gates:       g.NumGates,
			GateSpacing: gateSpacing,
			FirstGate:   firstGate,
			ValueCount:  len(values),
		},
		Bitmask: bitmask,
		Values:  values,
	}
}

// VolumeArtifact packs the 3D grid into its storage artifact. maxHeightM is
// the frame's highest earth-relative bin height (internal/level2.MaxBinHeightM),
// recorded alongside the grid for downstream consumers that need a quick
// vertical-extent sanity figure without re-deriving it from raw bins.
func VolumeArtifact(station, product, timestamp string, g *Grid3D, maxHeightM float32) Artifact {
	bitmask, values := EncodeBitmask(g.Cells)
	return Artifact{
		Metadata: Metadata{
			Station:    station,
			Product:    product,
			Timestamp:  timestamp,
			Format:     "b",
			Rays:       volumetricRays,
			Gates:      g.NumGates,
			ValueCount: len(values),
			Tilts:      g.Tilts,
			MaxHeightM: maxHeightM,
		},
		Bitmask: bitmask,
		Values:  values,
	}
}
