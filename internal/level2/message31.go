package level2

const (
	dataBlockHeaderSize = 4
	dataBlockVolumeSize = 44
	dataBlockRadialSize = 20
	dataBlockMomentSize = 28
	maxBlockCount       = 100
)

// handleMessage31 decodes a Generic Digital Radar Data radial: the fixed
// Message31Header, followed by a table of block pointers dereferenced
// through safePointerDereference before any field access.
func (d *decodeState) handleMessage31(payload []byte) {
	r := &byteReader{buf: payload}
	if r.len() < message31FixedHeaderSize {
		return
	}

	azimuth, ok := r.beFloat32(12)
	if !ok {
		return
	}
	elevation, ok := r.beFloat32(24)
	if !ok {
		return
	}
	if azimuth < -0.1 || azimuth > 360.1 || elevation < -5.0 || elevation > 90.0 {
		return
	}

	blockCount, ok := r.beU16(30)
	if !ok || blockCount > maxBlockCount {
		return
	}
	radialStatus, _ := r.u8(21)
	elevNum, _ := r.u8(22)

	d.beginRadial(radialStatus, elevNum, elevation)
	if radialStatus == StatusStartVolume {
		d.seg.clear()
	}
	if d.currentSweepIdx < 0 {
		return
	}
	d.countRay()

	for b := 0; b < int(blockCount); b++ {
		ptrOffset := message31FixedHeaderSize + b*4
		bOff32, ok := r.beU32(ptrOffset)
		if !ok {
			continue
		}
		bOff := int(bOff32)
		if !safePointerDereference(bOff, dataBlockHeaderSize, r.len()) {
			continue
		}

		tag, _ := r.u8(bOff)
		name, ok := r.slice(bOff+1, 3)
		if !ok {
			continue
		}

		switch {
		case string(name) == nameVOL:
			d.applyVolumeBlock(r, bOff)
		case string(name) == nameRAD:
			d.applyRadialBlock(r, bOff)
		case tag == blockTagGeneric:
			d.applyMomentBlock(r, bOff, azimuth)
		}
	}
}

func (d *decodeState) applyVolumeBlock(r *byteReader, bOff int) {
	if !safePointerDereference(bOff, dataBlockVolumeSize, r.len()) {
		return
	}
	vcp, ok := r.beU16(bOff + 40)
	if !ok {
		return
	}
	lat, latOK := r.beFloat32(bOff + 8)
	lon, lonOK := r.beFloat32(bOff + 12)
	siteHeight, heightOK := r.beI16(bOff + 16)

	for _, f := range d.frames {
		f.VCPNumber = vcp
		if latOK {
			f.SiteLat = float64(lat)
		}
		if lonOK {
			f.SiteLon = float64(lon)
		}
		if heightOK {
			f.SiteHeightASL = float32(siteHeight)
		}
	}
}

func (d *decodeState) applyRadialBlock(r *byteReader, bOff int) {
	if !safePointerDereference(bOff, dataBlockRadialSize, r.len()) {
		return
	}
	nyqRaw, ok := r.beU16(bOff + 16)
	if !ok {
		return
	}
	urRaw, ok := r.beU16(bOff + 6)
	if !ok {
		return
	}
	nyq := float32(nyqRaw) * 0.01
	for _, f := range d.frames {
		if nyq > 0 {
			f.NyquistByTiltKey[d.activeKey] = nyq
			f.Sweeps[d.currentSweepIdx].Nyquist = nyq
		}
		if urRaw > 0 {
			ur := float32(urRaw) * 100.0
			f.UnambiguousRangeM = ur
		}
	}
}

func (d *decodeState) applyMomentBlock(r *byteReader, bOff int, azimuth float32) {
	if !safePointerDereference(bOff, dataBlockMomentSize, r.len()) {
		return
	}
	name, ok := r.slice(bOff+1, 3)
	if !ok {
		return
	}
	product, tracked := momentBlockToProduct[string(name)]
	f, tracking := d.frames[product]
	if !tracked || !tracking {
		return
	}

	numGates, ok := r.beU16(bOff + 8)
	if !ok {
		return
	}
	firstGateM := float32(mustU16(r, bOff+10))
	gateSpacingM := float32(mustU16(r, bOff+12))
	scale, ok := r.beFloat32(bOff + 20)
	if !ok {
		return
	}
	offset, ok := r.beFloat32(bOff + 24)
	if !ok {
		return
	}
	wordSize, _ := r.u8(bOff + 18)
	if wordSize == 0 {
		wordSize = 8
	}
	if numGates == 0 || numGates > 8000 || gateSpacingM == 0 || (wordSize != 8 && wordSize != 16) {
		return
	}

	dataBytes := int(numGates) * (int(wordSize) / 8)
	dataStart := bOff + dataBlockMomentSize
	if !safePointerDereference(bOff, dataBlockMomentSize+dataBytes, r.len()) {
		return
	}

	sw := &f.Sweeps[d.currentSweepIdx]
	if sw.NumGates == 0 && numGates > 10 {
		sw.NumGates = int(numGates)
		sw.GateSpacingM = gateSpacingM
		sw.FirstGateM = firstGateM
	}

	isReflectivity := product == ProductReflectivity
	for g := 0; g < int(numGates); g++ {
		var raw uint16
		if wordSize == 16 {
			raw = mustU16(r, dataStart+g*2)
		} else {
			v, _ := r.u8(dataStart + g)
			raw = uint16(v)
		}
		if raw <= 1 {
			continue
		}
		value := roundToTenth((float32(raw) - offset) / scale)
		if isReflectivity && value < -32.0 {
			continue
		}
		rangeM := firstGateM + float32(g)*gateSpacingM
		sw.Bins = append(sw.Bins, Bin{AzimuthDeg: azimuth, RangeM: rangeM, Value: value})
	}
}
