package dualbeam

import "math"

// Result is a dual-beam wind speed estimate with its propagated error
// (spec §4.10 step 6's final output).
type Result struct {
	WindSpeed      float64 // m/s
	WindSpeedError float64 // m/s, one standard deviation
	Delay          DelayStats
	Distance       float64 // metres, the ground separation of the two viewing directions at PlumeHeight
}

// Compute runs the full dual-beam pipeline: binomial smoothing, bidirectional
// delay search with post-filtering, and conversion to wind speed using the
// known plume height and the angular separation between the two viewing
// directions (spec §4.10).
//
// plumeHeight and plumeHeightError are metres above the scanners (not above
// sea level); deltaThetaDeg is the angle between the two instruments'
// viewing directions at the plume crossing.
func Compute(upwind, downwind Series, settings Settings, vg ViewingGeometry, deltaThetaDeg, plumeHeight, plumeHeightError float64) (Result, error) {
	delay, err := solveDelay(upwind, downwind, settings)
	if err != nil {
		return Result{}, err
	}

	d, err := groundDistance(vg, plumeHeight, deltaThetaDeg)
	if err != nil {
		return Result{}, err
	}

	speed := d / delay.MeanSeconds

	// Error propagation: plume-height error carries through linearly since
	// groundDistance is linear in h; delay error uses the standard error of
	// the mean delay. The two components combine in quadrature.
	dUpper, err := groundDistance(vg, plumeHeight+plumeHeightError, deltaThetaDeg)
	if err != nil {
		return Result{}, err
	}
	heightComponent := math.Abs(dUpper/delay.MeanSeconds - speed)

	delayStdErr := delay.StdDevSeconds / math.Sqrt(float64(delay.SampleCount))
	delayComponent := speed * (delayStdErr / delay.MeanSeconds)

	return Result{
		WindSpeed:      speed,
		WindSpeedError: math.Hypot(heightComponent, delayComponent),
		Delay:          delay,
		Distance:       d,
	}, nil
}
