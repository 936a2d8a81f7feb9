package metdb

import (
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"time"
)

// windDoc mirrors spec §6's wind-field XML: a <Wind volcano="..."> root
// containing one <windfield> block per (source, validity, reference
// altitude) grouping, each with a flat list of <item> grid points.
type windDoc struct {
	XMLName xml.Name       `xml:"Wind"`
	Volcano string         `xml:"volcano,attr"`
	Fields  []windFieldXML `xml:"windfield"`
}

type windFieldXML struct {
	Source    string        `xml:"source"`
	Altitude  float64       `xml:"altitude"`
	ValidFrom string        `xml:"valid_from"`
	ValidTo   string        `xml:"valid_to"`
	Items     []windItemXML `xml:"item"`
}

type windItemXML struct {
	Lat float64 `xml:"lat,attr"`
	Lon float64 `xml:"lon,attr"`
	WS  float64 `xml:"ws,attr"`
	WSE float64 `xml:"wse,attr"`
	WD  float64 `xml:"wd,attr"`
	WDE float64 `xml:"wde,attr"`
}

const windTimeLayout = "2006.01.02T15:04:05"

var todayExpr = regexp.MustCompile(`^TODAY\(([+-]?\d+)\)$`)

func formatWindTime(t time.Time) string {
	return t.UTC().Format(windTimeLayout)
}

// parseWindTime parses an ISO-ish "YYYY.MM.DDTHH:MM:SS" timestamp, or the
// functional expression "TODAY(n)" which resolves to today at midnight UTC
// plus n days (spec §6 "functional expression TODAY(n) resolves to today
// ± n days").
func parseWindTime(s string) (time.Time, error) {
	if m := todayExpr.FindStringSubmatch(s); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return time.Time{}, fmt.Errorf("metdb: bad TODAY() offset %q: %w", s, err)
		}
		now := time.Now().UTC()
		midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		return midnight.AddDate(0, 0, n), nil
	}
	t, err := time.Parse(windTimeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("metdb: bad wind-field timestamp %q: %w", s, err)
	}
	return t, nil
}

func windSourceName(s WindSource) string {
	switch s {
	case SourceDefault:
		return "default"
	case SourceUser:
		return "user"
	case SourceGeometrySingleInstrument:
		return "geometry_single"
	case SourceGeometryTwoInstruments:
		return "geometry_two"
	case SourceDualBeam:
		return "dualbeam"
	case SourceNOAA:
		return "noaa"
	case SourceECMWF:
		return "ecmwf"
	}
	return "default"
}

func parseWindSourceName(s string) WindSource {
	switch s {
	case "user":
		return SourceUser
	case "geometry_single":
		return SourceGeometrySingleInstrument
	case "geometry_two":
		return SourceGeometryTwoInstruments
	case "dualbeam":
		return SourceDualBeam
	case "noaa":
		return SourceNOAA
	case "ecmwf":
		return SourceECMWF
	}
	return SourceDefault
}

// ExportWindXML writes every wind record in the store as a spec §6 wind
// document, one <windfield> block per (source, validFrom, validTo) group.
func (s *Store) ExportWindXML(w io.Writer, volcano string) error {
	rows, err := s.db.Query(
		`SELECT l.lat, l.lon, wr.speed, wr.speed_error, wr.direction, wr.direction_error, wr.source,
		        wb.valid_from, wb.valid_to
		 FROM wind_records wr
		 JOIN wind_buckets wb ON wr.bucket_id = wb.id
		 LEFT JOIN locations l ON wr.location_id = l.id
		 ORDER BY wb.valid_from, wb.valid_to, wr.source`)
	if err != nil {
		return fmt.Errorf("metdb: query wind export: %w", err)
	}
	defer rows.Close()

	type key struct {
		source             int
		validFrom, validTo int64
	}
	groups := make(map[key]*windFieldXML)
	var order []key
	for rows.Next() {
		var lat, lon sqlNullFloat
		var speed, speedErr, direction, directionErr float64
		var source int
		var validFrom, validTo int64
		if err := rows.Scan(&lat, &lon, &speed, &speedErr, &direction, &directionErr, &source, &validFrom, &validTo); err != nil {
			return fmt.Errorf("metdb: scan wind export row: %w", err)
		}
		k := key{source, validFrom, validTo}
		g, ok := groups[k]
		if !ok {
			g = &windFieldXML{
				Source:    windSourceName(WindSource(source)),
				ValidFrom: formatWindTime(time.Unix(validFrom, 0).UTC()),
				ValidTo:   formatWindTime(time.Unix(validTo, 0).UTC()),
			}
			groups[k] = g
			order = append(order, k)
		}
		g.Items = append(g.Items, windItemXML{Lat: lat.value, Lon: lon.value, WS: speed, WSE: speedErr, WD: direction, WDE: directionErr})
	}
	if err := rows.Err(); err != nil {
		return err
	}

	doc := windDoc{Volcano: volcano}
	for _, k := range order {
		doc.Fields = append(doc.Fields, *groups[k])
	}

	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if _, err := w.Write([]byte(xml.Header)); err != nil {
		return err
	}
	return enc.Encode(doc)
}

// ImportWindXML parses a spec §6 wind document and inserts every item as a
// wind record (spec §4.8/§6: "on load the database is rebuilt identically").
func (s *Store) ImportWindXML(r io.Reader) error {
	var doc windDoc
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return fmt.Errorf("metdb: decode wind XML: %w", err)
	}
	for _, field := range doc.Fields {
		validFrom, err := parseWindTime(field.ValidFrom)
		if err != nil {
			return err
		}
		validTo, err := parseWindTime(field.ValidTo)
		if err != nil {
			return err
		}
		source := parseWindSourceName(field.Source)
		for _, item := range field.Items {
			wf := WindField{
				Speed: item.WS, SpeedError: item.WSE, Direction: item.WD, DirectionError: item.WDE,
				Source: source, ValidFrom: validFrom, ValidTo: validTo,
				Location: Location{Lat: item.Lat, Lon: item.Lon},
			}
			if err := s.InsertWindField(wf); err != nil {
				return err
			}
		}
	}
	return nil
}

// sqlNullFloat scans a nullable REAL column (the global sentinel location
// has no lat/lon row to join against).
type sqlNullFloat struct {
	value float64
	valid bool
}

func (n *sqlNullFloat) Scan(src interface{}) error {
	if src == nil {
		n.value, n.valid = 0, false
		return nil
	}
	switch v := src.(type) {
	case float64:
		n.value, n.valid = v, true
	case int64:
		n.value, n.valid = float64(v), true
	default:
		return fmt.Errorf("metdb: unsupported scan type %T for nullable float", src)
	}
	return nil
}
