package level2

// handleMessage1 decodes a Legacy Digital Radar Data radial (reflectivity
// only) into whichever frames are tracking ProductReflectivity.
func (d *decodeState) handleMessage1(payload []byte) {
	r := &byteReader{buf: payload}
	if r.len() < 32 {
		return
	}

	azRaw, ok := r.beU16(8)
	if !ok {
		return
	}
	elRaw, ok := r.beU16(16)
	if !ok {
		return
	}
	azimuth := float32(azRaw) * (360.0 / 65536.0)
	elevation := float32(elRaw) * (360.0 / 65536.0)
	if azimuth < -0.1 || azimuth > 360.1 || elevation < -5.0 || elevation > 90.0 {
		return
	}

	radialStatus, _ := r.u8(1)
	d.beginRadial(radialStatus, 0, elevation)

	if d.currentSweepIdx < 0 {
		return
	}
	d.countRay()

	f, tracking := d.frames[ProductReflectivity]
	if !tracking || r.len() < 46 {
		return
	}

	if unamRaw, ok := r.beU16(26); ok && unamRaw > 0 {
		rangeM := float32(unamRaw) * 100.0
		f.UnambiguousRangeM = rangeM
	}
	if nyqRaw, ok := r.beU16(28); ok && nyqRaw > 0 {
		nyq := float32(nyqRaw) * 0.1
		f.NyquistByTiltKey[d.activeKey] = nyq
		f.Sweeps[d.currentSweepIdx].Nyquist = nyq
	}

	numGates, ok := r.beU16(24)
	if !ok || numGates == 0 || r.len() < 46+int(numGates) {
		return
	}
	firstGateM := float32(mustU16(r, 20))
	gateSpacingM := float32(mustU16(r, 22))

	sw := &f.Sweeps[d.currentSweepIdx]
	if sw.NumGates == 0 && numGates > 10 {
		sw.NumGates = int(numGates)
		sw.GateSpacingM = gateSpacingM
		sw.FirstGateM = firstGateM
	}

	for g := 0; g < int(numGates); g++ {
		raw, ok := r.u8(46 + g)
		if !ok || raw <= 1 {
			continue
		}
		value := roundToTenth((float32(raw) - 66.0) * 0.5)
		if value < -32.0 {
			continue
		}
		rangeM := firstGateM + float32(g)*gateSpacingM
		sw.Bins = append(sw.Bins, Bin{AzimuthDeg: azimuth, RangeM: rangeM, Value: value})
	}
}

func mustU16(r *byteReader, offset int) uint16 {
	v, _ := r.beU16(offset)
	return v
}
