package metdb

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/novacgo/ppp/internal/novaserr"
)

// InsertPlumeHeight appends a plume-altitude datum into its time bucket,
// mirroring InsertWindField's lazy-bucket-creation behaviour (spec §4.8).
func (s *Store) InsertPlumeHeight(p PlumeHeightRecord) error {
	bucketID, err := s.plumeBucket(p.ValidFrom, p.ValidTo)
	if err != nil {
		return err
	}
	locID := GlobalLocation
	if !p.IsGlobal {
		locID, err = s.internLocation(p.Location.Lat, p.Location.Lon)
		if err != nil {
			return err
		}
	}
	_, err = s.db.Exec(
		`INSERT INTO plume_records(bucket_id, location_id, altitude, altitude_error, source) VALUES (?, ?, ?, ?, ?)`,
		bucketID, locID, p.Altitude, p.AltitudeError, int(p.Source),
	)
	if err != nil {
		return fmt.Errorf("metdb: insert plume record: %w", err)
	}
	return nil
}

func (s *Store) plumeBucket(from, to time.Time) (int64, error) {
	var id int64
	err := s.db.QueryRow(`SELECT id FROM plume_buckets WHERE valid_from = ? AND valid_to = ?`, from.Unix(), to.Unix()).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("metdb: lookup plume bucket: %w", err)
	}
	res, err := s.db.Exec(`INSERT INTO plume_buckets(valid_from, valid_to) VALUES (?, ?)`, from.Unix(), to.Unix())
	if err != nil {
		return 0, fmt.Errorf("metdb: insert plume bucket: %w", err)
	}
	return res.LastInsertId()
}

type plumeCandidate struct {
	PlumeHeightRecord
	qualityRank int
}

// GetPlumeHeight resolves the plume altitude overlapping [scanStart,
// scanEnd], preferring geometry-two-instruments, then
// geometry-single-instrument, then other sources, averaging within the
// winning tier (spec §4.8 "Plume-height lookup"). The returned record's
// validity interval is intersected with [scanStart, scanEnd].
func (s *Store) GetPlumeHeight(scanStart, scanEnd time.Time) (PlumeHeightRecord, error) {
	rows, err := s.db.Query(
		`SELECT pr.altitude, pr.altitude_error, pr.source, pb.valid_from, pb.valid_to
		 FROM plume_records pr JOIN plume_buckets pb ON pr.bucket_id = pb.id
		 WHERE pb.valid_from <= ? AND pb.valid_to >= ?`, scanEnd.Unix(), scanStart.Unix())
	if err != nil {
		return PlumeHeightRecord{}, fmt.Errorf("metdb: query plume buckets: %w", err)
	}
	defer rows.Close()

	var candidates []plumeCandidate
	for rows.Next() {
		var altitude, altitudeErr float64
		var source int
		var validFrom, validTo int64
		if err := rows.Scan(&altitude, &altitudeErr, &source, &validFrom, &validTo); err != nil {
			return PlumeHeightRecord{}, fmt.Errorf("metdb: scan plume record: %w", err)
		}
		src := PlumeHeightSource(source)
		candidates = append(candidates, plumeCandidate{
			PlumeHeightRecord: PlumeHeightRecord{
				Altitude: altitude, AltitudeError: altitudeErr, Source: src,
				ValidFrom: time.Unix(validFrom, 0).UTC(), ValidTo: time.Unix(validTo, 0).UTC(),
			},
			qualityRank: src.qualityRank(),
		})
	}
	if err := rows.Err(); err != nil {
		return PlumeHeightRecord{}, err
	}
	if len(candidates) == 0 {
		return PlumeHeightRecord{}, novaserr.New(novaserr.GeometryAmbiguous, "metdb: no plume height valid for requested interval")
	}

	best := candidates[0].qualityRank
	for _, c := range candidates {
		if c.qualityRank > best {
			best = c.qualityRank
		}
	}
	var tied []plumeCandidate
	for _, c := range candidates {
		if c.qualityRank == best {
			tied = append(tied, c)
		}
	}

	var altSum, sqErr float64
	validFrom, validTo := tied[0].ValidFrom, tied[0].ValidTo
	for _, c := range tied {
		altSum += c.Altitude
		sqErr += c.AltitudeError * c.AltitudeError
		if c.ValidFrom.Before(validFrom) {
			validFrom = c.ValidFrom
		}
		if c.ValidTo.After(validTo) {
			validTo = c.ValidTo
		}
	}
	n := float64(len(tied))

	if validFrom.Before(scanStart) {
		validFrom = scanStart
	}
	if validTo.After(scanEnd) {
		validTo = scanEnd
	}

	return PlumeHeightRecord{
		Altitude:      altSum / n,
		AltitudeError: math.Sqrt(sqErr) / n,
		Source:        tied[0].Source,
		ValidFrom:     validFrom,
		ValidTo:       validTo,
	}, nil
}
