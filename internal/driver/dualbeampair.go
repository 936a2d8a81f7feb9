package driver

import (
	"github.com/novacgo/ppp/internal/dualbeam"
	"github.com/novacgo/ppp/internal/metdb"
	"github.com/novacgo/ppp/internal/novaserr"
	"github.com/novacgo/ppp/internal/novaslog"
)

// buildColumnSeries turns one instrument's chronological scan results into
// the column-vs-time series C10 consumes. Each scan's own flux-windowed
// plume strength (its largest fitted column) stands in for the
// fixed-viewing-direction column dual-beam normally reads continuously;
// the driver only has one column-per-scan to offer C10, so it treats
// consecutive scans as the time series (documented simplification, see
// DESIGN.md).
func buildColumnSeries(scans []*evaluatedScan) dualbeam.Series {
	var s dualbeam.Series
	for _, es := range scans {
		if es.Result.Rejected != nil || len(es.Result.FitResults) == 0 {
			continue
		}
		s.Times = append(s.Times, es.Identity.StartTime)
		s.Columns = append(s.Columns, es.Result.LargestColumn)
	}
	return s
}

// runDualBeamPairs solves wind speed for every configured dual-beam pair
// and inserts accepted results into the wind database (spec §4.12
// "dual-beam pairs feed C10").
func runDualBeamPairs(cfg Config, scans []*evaluatedScan, tally *Tally) {
	bySerial := groupScansBySerial(scans)

	for _, pc := range cfg.DualBeamPairs {
		upInstr := instrumentBySerial(cfg, pc.Upwind)
		if upInstr == nil {
			continue
		}
		upwind := buildColumnSeries(bySerial[pc.Upwind])
		downwind := buildColumnSeries(bySerial[pc.Downwind])
		if len(upwind.Times) == 0 || len(downwind.Times) == 0 {
			continue
		}

		plume, err := cfg.PlumeDB.GetPlumeHeight(upwind.Times[0], upwind.Times[len(upwind.Times)-1])
		if err != nil {
			novaslog.Tracef("driver: dual-beam pair %s/%s: no plume height: %v", pc.Upwind, pc.Downwind, err)
			continue
		}
		result, err := dualbeam.Compute(upwind, downwind, pc.Settings, upInstr.ViewingGeom, pc.DeltaThetaDeg, plume.Altitude-upInstr.Geometry.Altitude, plume.AltitudeError)
		if err != nil {
			tally.RecordSkip(pc.Upwind, novaserr.InsufficientGoodSamples)
			novaslog.Tracef("driver: dual-beam pair %s/%s: %v", pc.Upwind, pc.Downwind, err)
			continue
		}
		if result.WindSpeedError > pc.MaxWindSpeedError && pc.MaxWindSpeedError > 0 {
			continue
		}

		from := upwind.Times[0]
		to := upwind.Times[len(upwind.Times)-1]
		if pc.ValidTime > 0 && to.Sub(from) > pc.ValidTime {
			to = from.Add(pc.ValidTime)
		}
		insertErr := cfg.WindDB.InsertWindField(metdb.WindField{
			Speed: result.WindSpeed, SpeedError: result.WindSpeedError,
			Source: metdb.SourceDualBeam, IsGlobal: true,
			ValidFrom: from, ValidTo: to,
		})
		if insertErr != nil {
			novaslog.Tracef("driver: insert dual-beam wind field: %v", insertErr)
		}
	}
}
