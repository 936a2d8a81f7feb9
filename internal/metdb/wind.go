package metdb

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/novacgo/ppp/internal/novaserr"
)

// InsertWindField appends a wind datum into its time bucket, creating the
// bucket lazily if no exact [validFrom, validTo] match exists (spec §4.8
// "Insertion is append-only into the appropriate time bucket").
func (s *Store) InsertWindField(wf WindField) error {
	bucketID, err := s.windBucket(wf.ValidFrom, wf.ValidTo)
	if err != nil {
		return err
	}
	locID := GlobalLocation
	if !wf.IsGlobal {
		locID, err = s.internLocation(wf.Location.Lat, wf.Location.Lon)
		if err != nil {
			return err
		}
	}
	_, err = s.db.Exec(
		`INSERT INTO wind_records(bucket_id, location_id, speed, speed_error, direction, direction_error, source)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		bucketID, locID, wf.Speed, wf.SpeedError, wf.Direction, wf.DirectionError, int(wf.Source),
	)
	if err != nil {
		return fmt.Errorf("metdb: insert wind record: %w", err)
	}
	return nil
}

func (s *Store) windBucket(from, to time.Time) (int64, error) {
	var id int64
	err := s.db.QueryRow(`SELECT id FROM wind_buckets WHERE valid_from = ? AND valid_to = ?`, from.Unix(), to.Unix()).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("metdb: lookup wind bucket: %w", err)
	}
	res, err := s.db.Exec(`INSERT INTO wind_buckets(valid_from, valid_to) VALUES (?, ?)`, from.Unix(), to.Unix())
	if err != nil {
		return 0, fmt.Errorf("metdb: insert wind bucket: %w", err)
	}
	return res.LastInsertId()
}

type windCandidate struct {
	WindField
	qualityRank int
}

// GetWindField resolves the wind field at (t, loc) under method (spec §4.8
// "getWindField(time, location, method)"). isGlobal requests the global
// sentinel location directly rather than a specific GPS point.
func (s *Store) GetWindField(t time.Time, loc Location, isGlobal bool, method LookupMethod) (WindField, error) {
	switch method {
	case MethodExact:
		return s.windExact(t, loc, isGlobal)
	case MethodNearest:
		resolved, err := s.nearestLocation(loc)
		if err != nil {
			return WindField{}, err
		}
		return s.windExact(t, resolved, false)
	case MethodBilinear:
		wf, err := s.windBilinear(t, loc)
		if err == nil {
			return wf, nil
		}
		resolved, rerr := s.nearestLocation(loc)
		if rerr != nil {
			return WindField{}, rerr
		}
		return s.windExact(t, resolved, false)
	}
	return WindField{}, novaserr.New(novaserr.ConfigurationInvalid, "metdb: unknown lookup method")
}

func (s *Store) windExact(t time.Time, loc Location, isGlobal bool) (WindField, error) {
	rows, err := s.db.Query(
		`SELECT wr.speed, wr.speed_error, wr.direction, wr.direction_error, wr.source, wr.location_id,
		        wb.valid_from, wb.valid_to
		 FROM wind_records wr JOIN wind_buckets wb ON wr.bucket_id = wb.id
		 WHERE wb.valid_from <= ? AND wb.valid_to >= ?`, t.Unix(), t.Unix())
	if err != nil {
		return WindField{}, fmt.Errorf("metdb: query wind buckets: %w", err)
	}
	defer rows.Close()

	requestedID := GlobalLocation
	if !isGlobal {
		id, found, err := s.findLocationID(loc.Lat, loc.Lon)
		if err != nil {
			return WindField{}, err
		}
		if found {
			requestedID = id
		} else {
			requestedID = -2 // sentinel that matches nothing but global rows
		}
	}

	var candidates []windCandidate
	for rows.Next() {
		var speed, speedErr, direction, directionErr float64
		var source int
		var locationID int64
		var validFrom, validTo int64
		if err := rows.Scan(&speed, &speedErr, &direction, &directionErr, &source, &locationID, &validFrom, &validTo); err != nil {
			return WindField{}, fmt.Errorf("metdb: scan wind record: %w", err)
		}
		if locationID != requestedID && locationID != GlobalLocation {
			continue
		}
		src := WindSource(source)
		candidates = append(candidates, windCandidate{
			WindField: WindField{
				Speed: speed, SpeedError: speedErr, Direction: direction, DirectionError: directionErr,
				Source: src, ValidFrom: time.Unix(validFrom, 0).UTC(), ValidTo: time.Unix(validTo, 0).UTC(),
			},
			qualityRank: src.qualityRank(),
		})
	}
	if err := rows.Err(); err != nil {
		return WindField{}, err
	}
	if len(candidates) == 0 {
		return WindField{}, novaserr.New(novaserr.ConfigurationInvalid, "metdb: no wind field valid at requested time/location")
	}
	return averageWindCandidates(candidates), nil
}

func averageWindCandidates(candidates []windCandidate) WindField {
	best := candidates[0].qualityRank
	for _, c := range candidates {
		if c.qualityRank > best {
			best = c.qualityRank
		}
	}
	var tied []windCandidate
	for _, c := range candidates {
		if c.qualityRank == best {
			tied = append(tied, c)
		}
	}

	var speedSum, dirSum, sqErrSpeed, sqErrDir float64
	validFrom, validTo := tied[0].ValidFrom, tied[0].ValidTo
	for _, c := range tied {
		speedSum += c.Speed
		dirSum += c.Direction
		sqErrSpeed += c.SpeedError * c.SpeedError
		sqErrDir += c.DirectionError * c.DirectionError
		if c.ValidFrom.Before(validFrom) {
			validFrom = c.ValidFrom
		}
		if c.ValidTo.After(validTo) {
			validTo = c.ValidTo
		}
	}
	n := float64(len(tied))
	return WindField{
		Speed:          speedSum / n,
		SpeedError:     math.Sqrt(sqErrSpeed) / n,
		Direction:      dirSum / n,
		DirectionError: math.Sqrt(sqErrDir) / n,
		Source:         tied[0].Source,
		ValidFrom:      validFrom,
		ValidTo:        validTo,
	}
}

func (s *Store) findLocationID(lat, lon float64) (int64, bool, error) {
	var id int64
	err := s.db.QueryRow(`SELECT id FROM locations WHERE lat = ? AND lon = ?`, lat, lon).Scan(&id)
	if err == nil {
		return id, true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	return 0, false, fmt.Errorf("metdb: find location: %w", err)
}

func (s *Store) nearestLocation(loc Location) (Location, error) {
	rows, err := s.db.Query(`SELECT lat, lon FROM locations`)
	if err != nil {
		return Location{}, fmt.Errorf("metdb: list locations: %w", err)
	}
	defer rows.Close()

	var best Location
	bestDist := math.Inf(1)
	found := false
	for rows.Next() {
		var lat, lon float64
		if err := rows.Scan(&lat, &lon); err != nil {
			return Location{}, err
		}
		d := greatCircleDistance(loc.Lat, loc.Lon, lat, lon)
		if d < bestDist {
			bestDist, best, found = d, Location{Lat: lat, Lon: lon}, true
		}
	}
	if err := rows.Err(); err != nil {
		return Location{}, err
	}
	if !found {
		return Location{}, novaserr.New(novaserr.ConfigurationInvalid, "metdb: location table is empty")
	}
	return best, nil
}

// greatCircleDistance returns the haversine distance in metres between two
// GPS points (spec §4.8 "resolve the closest location ... by great-circle
// distance").
func greatCircleDistance(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusM = 6371000.0
	rad := math.Pi / 180
	phi1, phi2 := lat1*rad, lat2*rad
	dPhi := (lat2 - lat1) * rad
	dLambda := (lon2 - lon1) * rad
	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) + math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusM * c
}

// windBilinear implements spec §4.8's regular-grid bilinear interpolation:
// decompose (speed, direction) into (u, v), interpolate each component
// separately across the four surrounding grid points, and recompose.
func (s *Store) windBilinear(t time.Time, loc Location) (WindField, error) {
	var bucketID int64
	var validFrom, validTo int64
	err := s.db.QueryRow(
		`SELECT id, valid_from, valid_to FROM wind_buckets WHERE valid_from <= ? AND valid_to >= ? LIMIT 1`,
		t.Unix(), t.Unix(),
	).Scan(&bucketID, &validFrom, &validTo)
	if err != nil {
		return WindField{}, fmt.Errorf("metdb: no wind bucket at requested time: %w", err)
	}

	rows, err := s.db.Query(
		`SELECT l.lat, l.lon, wr.speed, wr.direction, wr.speed_error, wr.direction_error, wr.source
		 FROM wind_records wr JOIN locations l ON wr.location_id = l.id
		 WHERE wr.bucket_id = ?`, bucketID)
	if err != nil {
		return WindField{}, err
	}
	defer rows.Close()

	var cells []windGridCell
	for rows.Next() {
		var c windGridCell
		var source int
		if err := rows.Scan(&c.lat, &c.lon, &c.speed, &c.direction, &c.speedErr, &c.dirErr, &source); err != nil {
			return WindField{}, err
		}
		c.source = WindSource(source)
		cells = append(cells, c)
	}
	if err := rows.Err(); err != nil {
		return WindField{}, err
	}

	lat1, lat2, lon1, lon2 := gridBounds(loc, cells)
	if math.IsNaN(lat1) {
		return WindField{}, fmt.Errorf("metdb: no enclosing grid rectangle")
	}

	find := func(lat, lon float64) (windGridCell, bool) {
		for _, c := range cells {
			if c.lat == lat && c.lon == lon {
				return c, true
			}
		}
		return windGridCell{}, false
	}
	c11, ok11 := find(lat1, lon1)
	c12, ok12 := find(lat1, lon2)
	c21, ok21 := find(lat2, lon1)
	c22, ok22 := find(lat2, lon2)
	if !ok11 || !ok12 || !ok21 || !ok22 {
		return WindField{}, fmt.Errorf("metdb: grid is irregular at requested point")
	}

	toUV := func(c windGridCell) (u, v float64) {
		rad := c.direction * math.Pi / 180
		return c.speed * math.Sin(rad), c.speed * math.Cos(rad)
	}
	u11, v11 := toUV(c11)
	u12, v12 := toUV(c12)
	u21, v21 := toUV(c21)
	u22, v22 := toUV(c22)

	tx := 0.5
	ty := 0.5
	if lon2 != lon1 {
		tx = (loc.Lon - lon1) / (lon2 - lon1)
	}
	if lat2 != lat1 {
		ty = (loc.Lat - lat1) / (lat2 - lat1)
	}

	bilerp := func(v11, v12, v21, v22 float64) float64 {
		top := v11 + (v12-v11)*tx
		bottom := v21 + (v22-v21)*tx
		return top + (bottom-top)*ty
	}
	u := bilerp(u11, u12, u21, u22)
	v := bilerp(v11, v12, v21, v22)

	speed := math.Hypot(u, v)
	direction := math.Atan2(u, v) * 180 / math.Pi
	if direction < 0 {
		direction += 360
	}

	return WindField{
		Speed: speed, Direction: direction,
		SpeedError:     bilerp(c11.speedErr, c12.speedErr, c21.speedErr, c22.speedErr),
		DirectionError: bilerp(c11.dirErr, c12.dirErr, c21.dirErr, c22.dirErr),
		Source:         c11.source,
		ValidFrom:      time.Unix(validFrom, 0).UTC(),
		ValidTo:        time.Unix(validTo, 0).UTC(),
	}, nil
}

// windGridCell is one resolved grid point used by the bilinear lookup.
type windGridCell struct {
	lat, lon, speed, direction, speedErr, dirErr float64
	source                                       WindSource
}

// gridBounds finds the tightest enclosing rectangle of distinct lat/lon
// grid lines present in cells, or NaN bounds if loc falls outside the
// grid's convex extent.
func gridBounds(loc Location, cells []windGridCell) (lat1, lat2, lon1, lon2 float64) {
	lat1, lat2 = math.NaN(), math.NaN()
	lon1, lon2 = math.NaN(), math.NaN()
	for _, c := range cells {
		if c.lat <= loc.Lat && (math.IsNaN(lat1) || c.lat > lat1) {
			lat1 = c.lat
		}
		if c.lat >= loc.Lat && (math.IsNaN(lat2) || c.lat < lat2) {
			lat2 = c.lat
		}
		if c.lon <= loc.Lon && (math.IsNaN(lon1) || c.lon > lon1) {
			lon1 = c.lon
		}
		if c.lon >= loc.Lon && (math.IsNaN(lon2) || c.lon < lon2) {
			lon2 = c.lon
		}
	}
	return lat1, lat2, lon1, lon2
}
