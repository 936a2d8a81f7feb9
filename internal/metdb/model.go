package metdb

import "time"

// WindSource enumerates a wind datum's provenance (spec §3 "Wind field":
// "Source is an enum whose values carry a quality rank").
type WindSource int

const (
	SourceDefault WindSource = iota
	SourceUser
	SourceGeometrySingleInstrument
	SourceGeometryTwoInstruments
	SourceDualBeam
	SourceNOAA
	SourceECMWF
)

// qualityRank returns the ordinal used for tie-breaking database lookups
// (spec §4.8 "pick the one with the highest source-quality"). NOAA, ECMWF,
// and dual-beam share the top rank per spec §3's "ECMWF/NOAA/dual-beam =
// higher" — none is privileged over the others.
func (s WindSource) qualityRank() int {
	switch s {
	case SourceDefault:
		return 0
	case SourceUser:
		return 1
	case SourceGeometrySingleInstrument:
		return 2
	case SourceGeometryTwoInstruments:
		return 3
	case SourceDualBeam, SourceNOAA, SourceECMWF:
		return 4
	}
	return -1
}

// PlumeHeightSource enumerates a plume-height datum's provenance (spec
// §4.8 "Plume-height lookup prefers geometry-two-instruments records, then
// geometry-single-instrument, then other sources").
type PlumeHeightSource int

const (
	PlumeSourceDefault PlumeHeightSource = iota
	PlumeSourceUser
	PlumeSourceOther
	PlumeSourceGeometrySingleInstrument
	PlumeSourceGeometryTwoInstruments
)

func (s PlumeHeightSource) qualityRank() int { return int(s) }

// GlobalLocation is the sentinel location id meaning "valid everywhere"
// (spec §4.8 "or is 'global', indexed as -1").
const GlobalLocation int64 = -1

// Location is a GPS point in the deduplicated location table.
type Location struct {
	Lat, Lon float64
}

// WindField is one wind datum (spec §3 "Wind field").
type WindField struct {
	Speed          float64
	SpeedError     float64
	Direction      float64 // degrees clockwise from north
	DirectionError float64
	Source         WindSource
	ValidFrom      time.Time
	ValidTo        time.Time
	Location       Location
	IsGlobal       bool
}

// PlumeHeightRecord is one plume-altitude datum.
type PlumeHeightRecord struct {
	Altitude      float64
	AltitudeError float64
	Source        PlumeHeightSource
	ValidFrom     time.Time
	ValidTo       time.Time
	Location      Location
	IsGlobal      bool
}

// LookupMethod selects the spatial interpolation mode for GetWindField
// (spec §4.8).
type LookupMethod int

const (
	MethodExact LookupMethod = iota
	MethodNearest
	MethodBilinear
)
