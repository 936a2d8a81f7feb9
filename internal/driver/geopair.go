package driver

import (
	"math"
	"time"

	"github.com/novacgo/ppp/internal/geometry"
	"github.com/novacgo/ppp/internal/metdb"
	"github.com/novacgo/ppp/internal/novaserr"
	"github.com/novacgo/ppp/internal/novaslog"
	"github.com/novacgo/ppp/internal/scaneval"
)

const earthRadiusM = 6371000.0

// groundDistance is a plain haversine distance between two scanners'
// GPS positions, duplicated locally the way geometry.go duplicates it from
// metdb rather than introducing a cross-package dependency for one
// formula.
func groundDistance(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLon := (lon2 - lon1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusM * c
}

// centreAngleError derives a plume-centre angular error from plumeprops'
// centroid/peak disagreement (the package has no dedicated error field;
// its doc comment calls Centroid a "centre-error indicator").
func centreAngleError(result *scaneval.ScanResult) float64 {
	return math.Abs(result.PlumeProperties.Centre - result.PlumeProperties.Centroid)
}

// runGeometryPairs solves two-instrument plume altitude for every
// configured pair and inserts accepted results into the plume database
// (spec §4.12 "geometry-eligible pairs... fed to C9 and their results
// inserted into the plume database").
func runGeometryPairs(cfg Config, scans []*evaluatedScan, tally *Tally) {
	bySerial := groupScansBySerial(scans)

	for _, pc := range cfg.GeometryPairs {
		lowerInstr, upperInstr := instrumentBySerial(cfg, pc.Lower), instrumentBySerial(cfg, pc.Upper)
		if lowerInstr == nil || upperInstr == nil {
			continue
		}
		dist := groundDistance(lowerInstr.Geometry.Lat, lowerInstr.Geometry.Lon, upperInstr.Geometry.Lat, upperInstr.Geometry.Lon)
		if dist < pc.MinDistance || dist > pc.MaxDistance {
			continue
		}

		for _, lo := range bySerial[pc.Lower] {
			if !eligibleForGeometry(lo, pc) {
				continue
			}
			for _, up := range bySerial[pc.Upper] {
				if !eligibleForGeometry(up, pc) {
					continue
				}
				dt := up.Identity.StartTime.Sub(lo.Identity.StartTime)
				if dt < 0 {
					dt = -dt
				}
				if dt > pc.MaxTimeDifference {
					continue
				}

				result, err := geometry.Intersect(
					geometry.TwoInstrumentInput{
						Geometry: lowerInstr.Geometry, Alpha: lo.Result.PlumeProperties.Centre,
						AlphaError: centreAngleError(lo.Result), Time: lo.Identity.StartTime,
					},
					geometry.TwoInstrumentInput{
						Geometry: upperInstr.Geometry, Alpha: up.Result.PlumeProperties.Centre,
						AlphaError: centreAngleError(up.Result), Time: up.Identity.StartTime,
					},
				)
				if err != nil {
					if cfg.SourceLat == 0 && cfg.SourceLon == 0 {
						tally.RecordSkip(pc.Lower, novaserr.GeometryAmbiguous)
						continue
					}
					runFuzzyFallback(cfg, lowerInstr, upperInstr, lo, up, pc, tally)
					continue
				}
				if result.AltitudeError > pc.MaxPlumeAltError {
					novaslog.Tracef("driver: geometry pair %s/%s altitude error %.1fm exceeds limit", pc.Lower, pc.Upper, result.AltitudeError)
					continue
				}

				from := lo.Identity.StartTime
				if up.Identity.StartTime.Before(from) {
					from = up.Identity.StartTime
				}
				to := from
				if pc.ValidTime > 0 {
					to = from.Add(pc.ValidTime)
				}
				err = cfg.PlumeDB.InsertPlumeHeight(metdb.PlumeHeightRecord{
					Altitude: result.Altitude, AltitudeError: result.AltitudeError,
					Source: metdb.PlumeSourceGeometryTwoInstruments, IsGlobal: true,
					ValidFrom: from, ValidTo: to,
				})
				if err != nil {
					novaslog.Tracef("driver: insert plume height: %v", err)
				}
			}
		}
	}
}

// runFuzzyFallback retries a pair geometry.Intersect rejected as
// ill-conditioned with geometry.FuzzyIntersect, which relaxes the direct
// triangulation into a wind-direction-disagreement minimisation (spec §4.9's
// fuzzy dual). Accepted only when the two scanners' wind-direction implied
// by the solved altitude still agree within MaxWindDirectionError; otherwise
// the pair is left unresolved, same as a hard Intersect failure.
func runFuzzyFallback(cfg Config, lowerInstr, upperInstr *Instrument, lo, up *evaluatedScan, pc GeometryPairConfig, tally *Tally) {
	seed := lowerInstr.Geometry.Altitude
	if seed <= 0 {
		seed = upperInstr.Geometry.Altitude
	}
	if seed <= 0 {
		seed = 1000
	}

	altitude, err := geometry.FuzzyIntersect(
		geometry.FuzzyInput{Geometry: lowerInstr.Geometry, Alpha: lo.Result.PlumeProperties.Centre, Phi: 0},
		geometry.FuzzyInput{Geometry: upperInstr.Geometry, Alpha: up.Result.PlumeProperties.Centre, Phi: 0},
		seed, cfg.SourceLat, cfg.SourceLon,
	)
	if err != nil {
		tally.RecordSkip(pc.Lower, novaserr.GeometryAmbiguous)
		return
	}

	dirLower, errLo := geometry.WindDirectionGivenAltitude(lowerInstr.Geometry, lo.Result.PlumeProperties.Centre, 0, altitude, cfg.SourceLat, cfg.SourceLon)
	dirUpper, errUp := geometry.WindDirectionGivenAltitude(upperInstr.Geometry, up.Result.PlumeProperties.Centre, 0, altitude, cfg.SourceLat, cfg.SourceLon)
	if errLo != nil || errUp != nil {
		tally.RecordSkip(pc.Lower, novaserr.GeometryAmbiguous)
		return
	}
	disagreementDeg := math.Abs(dirLower - dirUpper)
	if disagreementDeg > 180 {
		disagreementDeg = 360 - disagreementDeg
	}
	if disagreementDeg > pc.MaxWindDirectionError {
		novaslog.Tracef("driver: fuzzy geometry pair %s/%s wind direction disagreement %.1f deg exceeds limit", pc.Lower, pc.Upper, disagreementDeg)
		tally.RecordSkip(pc.Lower, novaserr.GeometryAmbiguous)
		return
	}

	from := lo.Identity.StartTime
	if up.Identity.StartTime.Before(from) {
		from = up.Identity.StartTime
	}
	to := from
	if pc.ValidTime > 0 {
		to = from.Add(pc.ValidTime)
	}
	if err := cfg.PlumeDB.InsertPlumeHeight(metdb.PlumeHeightRecord{
		Altitude: altitude, AltitudeError: disagreementDeg,
		Source: metdb.PlumeSourceGeometryTwoInstruments, IsGlobal: true,
		ValidFrom: from, ValidTo: to,
	}); err != nil {
		novaslog.Tracef("driver: insert fuzzy plume height: %v", err)
	}
}

func eligibleForGeometry(es *evaluatedScan, pc GeometryPairConfig) bool {
	if es.Result.Rejected != nil || es.Result.PlumeProperties == nil {
		return false
	}
	return es.Result.PlumeProperties.Visible && es.Result.PlumeProperties.Completeness >= pc.CompletenessLimit
}

func groupScansBySerial(scans []*evaluatedScan) map[string][]*evaluatedScan {
	out := make(map[string][]*evaluatedScan)
	for _, es := range scans {
		out[es.Identity.Serial] = append(out[es.Identity.Serial], es)
	}
	return out
}

func instrumentBySerial(cfg Config, serial string) *Instrument {
	for i := range cfg.Instruments {
		if cfg.Instruments[i].Serial == serial {
			return &cfg.Instruments[i]
		}
	}
	return nil
}

// runSingleInstrumentWind derives a wind direction for any visible scan
// whose instrument is not party to a two-instrument pair this run, using
// the plume altitude already on record (spec §4.9's "single-instrument...
// wind direction given altitude" dual). Runs after runGeometryPairs so the
// plume database holds the freshest altitude.
func runSingleInstrumentWind(cfg Config, scans []*evaluatedScan, tally *Tally) {
	paired := make(map[string]bool)
	for _, pc := range cfg.GeometryPairs {
		paired[pc.Lower] = true
		paired[pc.Upper] = true
	}
	for _, es := range scans {
		if paired[es.Identity.Serial] {
			continue
		}
		if es.Result.Rejected != nil || es.Result.PlumeProperties == nil || !es.Result.PlumeProperties.Visible {
			continue
		}
		plume, err := cfg.PlumeDB.GetPlumeHeight(es.Identity.StartTime, es.Identity.StartTime)
		if err != nil {
			continue
		}
		direction, err := geometry.WindDirectionGivenAltitude(
			es.Instrument.Geometry, es.Result.PlumeProperties.Centre, 0,
			plume.Altitude, cfg.SourceLat, cfg.SourceLon,
		)
		if err != nil {
			tally.RecordSkip(es.Identity.Serial, novaserr.GeometryAmbiguous)
			continue
		}
		insertErr := cfg.WindDB.InsertWindField(metdb.WindField{
			Speed: 0, SpeedError: 0, Direction: direction, DirectionError: centreAngleError(es.Result),
			Source: metdb.SourceGeometrySingleInstrument, IsGlobal: true,
			ValidFrom: es.Identity.StartTime, ValidTo: es.Identity.StartTime.Add(time.Minute),
		})
		if insertErr != nil {
			novaslog.Tracef("driver: insert wind field: %v", insertErr)
		}
	}
}
