package gamepad

import "math"

// mulDiv computes v*num/den in 64-bit and rounds to nearest, ties away from
// zero. Every call site in this package passes den > 0.
func mulDiv(v, num, den int32) int32 {
	p := int64(v) * int64(num)
	d := int64(den)
	if p < 0 {
		return int32((p - d/2) / d)
	}
	return int32((p + d/2) / d)
}

// ScaleValue maps v from the logical domain of props into its physical range
// with a plain affine transform.
func ScaleValue(v int32, props *ObjectProperties) int32 {
	logMin, logMax := props.LogicalMin, props.LogicalMax
	phyMin, phyMax := props.RangeMin, props.RangeMax
	return phyMin + mulDiv(v-logMin, phyMax-phyMin, logMax-logMin)
}

// ScaleAxisValue maps a joystick axis sample through the center-relative
// nonlinear calibration: a dead zone around rest, a hard clamp past the
// saturation threshold, and linear interpolation between the two edges.
// Each signed half of the axis is handled independently.
func ScaleAxisValue(v int32, props *ObjectProperties) int32 {
	logMin, logMax := props.LogicalMin, props.LogicalMax
	phyMin, phyMax := props.RangeMin, props.RangeMax

	var phyCtr, logCtr int32
	if phyMin == 0 {
		phyCtr = phyMax >> 1
	} else {
		phyCtr = int32(math.Round(float64(phyMin+phyMax) / 2))
	}
	if logMin == 0 {
		logCtr = logMax >> 1
	} else {
		logCtr = int32(math.Round(float64(logMin+logMax) / 2))
	}

	v -= logCtr
	if v <= 0 {
		logMax = mulDiv(logMin-logCtr, props.Deadzone, 10000)
		logMin = mulDiv(logMin-logCtr, props.Saturation, 10000)
		phyMax = phyCtr
	} else {
		logMin = mulDiv(logMax-logCtr, props.Deadzone, 10000)
		logMax = mulDiv(logMax-logCtr, props.Saturation, 10000)
		phyMin = phyCtr
	}

	if v <= logMin {
		return phyMin
	}
	if v >= logMax {
		return phyMax
	}
	return phyMin + mulDiv(v-logMin, phyMax-phyMin, logMax-logMin)
}
