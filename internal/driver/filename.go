package driver

import (
	"regexp"
	"strconv"
	"time"

	"github.com/novacgo/ppp/internal/novaserr"
	"github.com/novacgo/ppp/internal/scanreader"
)

// scanIdentity is what the driver needs to know about a .pak file before it
// can be grouped and scheduled (spec §4.12 "infer (serial, channel, start
// time, mode) from filename pattern").
type scanIdentity struct {
	Serial    string
	Channel   int
	StartTime time.Time
}

// filenamePattern matches the convention seen throughout the seed fixtures:
// SERIAL_YYMMDD_HHMM_CHANNEL.pak (e.g. "2002128M1_230120_0148_0.pak").
var filenamePattern = regexp.MustCompile(`^([A-Za-z0-9]+)_(\d{6})_(\d{3,4})_(\d+)(?:\.pak)?$`)

// identifyFromFilename parses the filename convention, returning ok=false
// when it doesn't match (the caller falls back to the sky spectrum header).
func identifyFromFilename(base string) (scanIdentity, bool) {
	m := filenamePattern.FindStringSubmatch(base)
	if m == nil {
		return scanIdentity{}, false
	}
	serial, dateStr, timeStr, channelStr := m[1], m[2], m[3], m[4]

	channel, err := strconv.Atoi(channelStr)
	if err != nil {
		return scanIdentity{}, false
	}
	for len(timeStr) < 4 {
		timeStr = "0" + timeStr
	}
	yy, err1 := strconv.Atoi(dateStr[0:2])
	mm, err2 := strconv.Atoi(dateStr[2:4])
	dd, err3 := strconv.Atoi(dateStr[4:6])
	hh, err4 := strconv.Atoi(timeStr[0:2])
	mi, err5 := strconv.Atoi(timeStr[2:4])
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
		return scanIdentity{}, false
	}
	year := 2000 + yy
	start := time.Date(year, time.Month(mm), dd, hh, mi, 0, 0, time.UTC)
	return scanIdentity{Serial: serial, Channel: channel, StartTime: start}, true
}

// identifyFromHeader opens the scan and reads its sky spectrum's header,
// the spec §4.12 fallback when the filename doesn't parse.
func identifyFromHeader(reader *scanreader.Reader) (scanIdentity, error) {
	sky, err := reader.GetSky()
	if err != nil {
		return scanIdentity{}, novaserr.Wrap(novaserr.InputUnreachable, "driver: identify scan from header", err)
	}
	return scanIdentity{Serial: sky.DeviceSerial, Channel: sky.Channel, StartTime: sky.StartTime}, nil
}

// identifyScan tries the filename first and only opens the file (an extra
// read-ahead pass) when the pattern doesn't match.
func identifyScan(base string, open func() (*scanreader.Reader, func() error, error)) (scanIdentity, error) {
	if id, ok := identifyFromFilename(base); ok {
		return id, nil
	}
	reader, closeFn, err := open()
	if err != nil {
		return scanIdentity{}, err
	}
	defer closeFn()
	id, err := identifyFromHeader(reader)
	if err != nil {
		return scanIdentity{}, err
	}
	return id, nil
}
