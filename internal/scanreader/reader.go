package scanreader

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/novacgo/ppp/internal/novaserr"
	"github.com/novacgo/ppp/internal/spectrum"
)

// LastErrorKind enumerates the reader's sticky last-error state (C2: "last
// error (enum)").
type LastErrorKind int

const (
	LastErrorNone LastErrorKind = iota
	LastErrorEOF
	LastErrorCorrupt
	LastErrorIO
)

// Reader streams the spectra of one scan file in acquisition order. A
// Reader owns its file handle and decompression buffer exclusively; it is
// not safe for concurrent use by more than one evaluation task (spec §3
// "Lifetimes").
type Reader struct {
	src          io.ReadSeeker
	br           *bufio.Reader
	decompressor Decompressor

	records []*Record // populated lazily by a full first pass, for rewind/index access
	pos     int        // read cursor into records
	loaded  bool

	skyIndex         int
	darkIndex        int
	haveSky          bool
	haveDark         bool
	corruptedIndices map[int]bool

	lastError LastErrorKind
}

// Open wraps src as a scan reader. Decompressor may be nil to use
// DefaultDecompressor.
func Open(src io.ReadSeeker, decompressor Decompressor) *Reader {
	if decompressor == nil {
		decompressor = DefaultDecompressor{}
	}
	return &Reader{
		src:              src,
		decompressor:     decompressor,
		corruptedIndices: make(map[int]bool),
		skyIndex:         -1,
		darkIndex:        -1,
	}
}

// Close releases the reader's resources. The underlying io.ReadSeeker is
// closed if it implements io.Closer.
func (r *Reader) Close() error {
	if c, ok := r.src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Reset rewinds the read cursor to the first spectrum (spec §4.2 "reset").
func (r *Reader) Reset() error {
	if err := r.ensureLoaded(); err != nil {
		return err
	}
	r.pos = 0
	r.lastError = LastErrorNone
	return nil
}

// LastError returns the sticky last-error state.
func (r *Reader) LastError() LastErrorKind { return r.lastError }

// CorruptedIndices returns the set of spectrum indices (0-based, in
// acquisition order) that failed checksum or decompression.
func (r *Reader) CorruptedIndices() map[int]bool { return r.corruptedIndices }

// ensureLoaded performs one full pass over the byte stream, decoding every
// record (so that indexed access, rewind, and sky/dark lookups can work
// without re-reading the file). Decompression/checksum failures are
// recorded as SpectrumCorrupt and do not abort the pass (spec §4.2:
// "Decompression errors surface as corrupt-spectrum events that the
// evaluator records but does not treat as fatal").
func (r *Reader) ensureLoaded() error {
	if r.loaded {
		return nil
	}
	if _, err := r.src.Seek(0, io.SeekStart); err != nil {
		return novaserr.Wrap(novaserr.InputUnreachable, "scanreader: seek to start", err)
	}
	r.br = bufio.NewReader(r.src)

	idx := 0
	for {
		rec, err := r.readOneRecord(idx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return novaserr.Wrap(novaserr.InputUnreachable, "scanreader: read record", err)
		}
		if !rec.ChecksumOK {
			r.corruptedIndices[idx] = true
		}
		switch rec.Kind {
		case KindSky:
			if !r.haveSky {
				r.skyIndex, r.haveSky = idx, true
			}
		case KindDark:
			if !r.haveDark {
				r.darkIndex, r.haveDark = idx, true
			}
		}
		r.records = append(r.records, rec)
		idx++
	}
	r.loaded = true
	return nil
}

func (r *Reader) readOneRecord(idx int) (*Record, error) {
	var tag [4]byte
	if _, err := io.ReadFull(r.br, tag[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, io.EOF
		}
		return nil, err
	}
	if string(tag[:]) != RecordTag {
		return nil, fmt.Errorf("scanreader: record %d: bad tag %q", idx, tag[:])
	}
	var sizeBuf [2]byte
	if _, err := io.ReadFull(r.br, sizeBuf[:]); err != nil {
		return nil, fmt.Errorf("scanreader: record %d: header size: %w", idx, err)
	}
	headerSize := int(binary.LittleEndian.Uint16(sizeBuf[:]))
	headerBuf := make([]byte, headerSize)
	if _, err := io.ReadFull(r.br, headerBuf); err != nil {
		return nil, fmt.Errorf("scanreader: record %d: header body: %w", idx, err)
	}
	h, err := decodeHeader(headerBuf)
	if err != nil {
		return nil, fmt.Errorf("scanreader: record %d: %w", idx, err)
	}

	payload := make([]byte, h.CompressedSize)
	if _, err := io.ReadFull(r.br, payload); err != nil {
		return nil, fmt.Errorf("scanreader: record %d: payload: %w", idx, err)
	}

	rec := &Record{
		DeviceSerial:       trimNulls(h.SerialNumber[:]),
		SpectrumName:       trimNulls(h.SpectrumName[:]),
		Channel:            int(h.Channel),
		StartChannel:       int(h.StartChannel),
		Coadds:             int(h.Coadds),
		Kind:               kindFromFlags(h.Flags),
		ScanAngle:          float64(h.ScanAngle),
		SecondaryScanAngle: float64(h.SecondaryAngle),
		ConeAngle:          float64(h.ConeAngle),
		Tilt:               float64(h.Tilt),
		Compass:            float64(h.CompassTenths) / 10.0,
		ExposureTimeMS:     int(h.ExposureTimeMS),
		Latitude:           float64(h.Latitude),
		Longitude:          float64(h.Longitude),
		Altitude:           float64(h.Altitude),
		Temperature:        float64(h.Temperature),
		BatteryVoltage:     float64(h.BatteryVoltage),
		ScanIndex:          int(h.ScanIndex),
		ScanCount:          int(h.ScanCount),
		InterlaceStep:      1,
	}

	startHH, startMM, startSS, startMS := unpackHHMMSSms(h.StartTimePacked)
	stopHH, stopMM, stopSS, stopMS := unpackHHMMSSms(h.StopTimePacked)
	rec.StartTime = parseDDMMYY(h.DateDDMMYY, startHH, startMM, startSS, startMS)
	rec.StopTime = parseDDMMYY(h.DateDDMMYY, stopHH, stopMM, stopSS, stopMS)

	samples, decErr := r.decompressor.Decompress(payload, int(h.PixelCount))
	if decErr != nil {
		rec.ChecksumOK = false
		rec.Samples = make([]float64, h.PixelCount)
		return rec, nil
	}
	rec.Samples = make([]float64, len(samples))
	for i, v := range samples {
		rec.Samples[i] = float64(v)
	}
	rec.ChecksumOK = Checksum(samples) == h.Checksum
	return rec, nil
}

func trimNulls(b []byte) string {
	n := len(b)
	for n > 0 && b[n-1] == 0 {
		n--
	}
	return string(b[:n])
}

// ToSpectrum converts a decoded Record into a *spectrum.Spectrum.
func (rec *Record) ToSpectrum() *spectrum.Spectrum {
	s := &spectrum.Spectrum{
		Intensity: append([]float64(nil), rec.Samples...),
		Meta: spectrum.Meta{
			DeviceSerial:       rec.DeviceSerial,
			Channel:            rec.Channel,
			InterlaceStep:      rec.InterlaceStep,
			StartChannel:       rec.StartChannel,
			ExposureTimeMS:     rec.ExposureTimeMS,
			Coadds:             rec.Coadds,
			StartTime:          rec.StartTime,
			StopTime:           rec.StopTime,
			ScanAngle:          rec.ScanAngle,
			SecondaryScanAngle: rec.SecondaryScanAngle,
			ScanIndex:          rec.ScanIndex,
			ScanCount:          rec.ScanCount,
		},
	}
	return s
}

// GetNextMeasurementSpectrum advances the cursor and returns the next
// measurement spectrum, skipping any record whose Kind is non-measurement
// or whose ScanIndex matches the recorded sky/dark slot (spec §4.2). It
// returns io.EOF cleanly at the end of the scan.
func (r *Reader) GetNextMeasurementSpectrum() (*Record, error) {
	if err := r.ensureLoaded(); err != nil {
		return nil, err
	}
	for r.pos < len(r.records) {
		rec := r.records[r.pos]
		r.pos++
		if rec.Kind != KindMeasurement {
			continue
		}
		if r.haveSky && rec.ScanIndex == r.records[r.skyIndex].ScanIndex {
			continue
		}
		if r.haveDark && rec.ScanIndex == r.records[r.darkIndex].ScanIndex {
			continue
		}
		return rec, nil
	}
	r.lastError = LastErrorEOF
	return nil, io.EOF
}

// GetSky returns the scan's sky spectrum.
func (r *Reader) GetSky() (*Record, error) {
	if err := r.ensureLoaded(); err != nil {
		return nil, err
	}
	if !r.haveSky {
		return nil, novaserr.New(novaserr.SkyUnusable, "scanreader: no sky spectrum in scan")
	}
	return r.records[r.skyIndex], nil
}

// GetDark returns the scan's measured-in-scan dark spectrum, if any.
func (r *Reader) GetDark() (*Record, error) {
	if err := r.ensureLoaded(); err != nil {
		return nil, err
	}
	if !r.haveDark {
		return nil, novaserr.New(novaserr.DarkUnavailable, "scanreader: no dark spectrum in scan")
	}
	return r.records[r.darkIndex], nil
}

// GetOffset returns the scan's offset spectrum, if any.
func (r *Reader) GetOffset() (*Record, error) {
	return r.findKind(KindOffset, "offset")
}

// GetDarkCurrent returns the scan's dark-current spectrum, if any.
func (r *Reader) GetDarkCurrent() (*Record, error) {
	return r.findKind(KindDarkCurrent, "dark-current")
}

func (r *Reader) findKind(kind Kind, name string) (*Record, error) {
	if err := r.ensureLoaded(); err != nil {
		return nil, err
	}
	for _, rec := range r.records {
		if rec.Kind == kind {
			return rec, nil
		}
	}
	return nil, novaserr.New(novaserr.DarkUnavailable, fmt.Sprintf("scanreader: no %s spectrum in scan", name))
}

// GetSpectrumByIndex returns the i-th record in acquisition order
// (0-based), regardless of kind.
func (r *Reader) GetSpectrumByIndex(i int) (*Record, error) {
	if err := r.ensureLoaded(); err != nil {
		return nil, err
	}
	if i < 0 || i >= len(r.records) {
		return nil, fmt.Errorf("scanreader: index %d out of range [0,%d)", i, len(r.records))
	}
	return r.records[i], nil
}

// Count returns the total number of records in the scan.
func (r *Reader) Count() (int, error) {
	if err := r.ensureLoaded(); err != nil {
		return 0, err
	}
	return len(r.records), nil
}

// InterlaceStep, StartChannel, and SpectrumLength report the scan's
// observed values, taken from the first measurement record — the scan
// evaluator rebinds its fit window's defaults from these (spec §4.6).
func (r *Reader) InterlaceStep() (int, error) {
	rec, err := r.firstMeasurement()
	if err != nil {
		return 0, err
	}
	return rec.InterlaceStep, nil
}

func (r *Reader) StartChannel() (int, error) {
	rec, err := r.firstMeasurement()
	if err != nil {
		return 0, err
	}
	return rec.StartChannel, nil
}

func (r *Reader) SpectrumLength() (int, error) {
	rec, err := r.firstMeasurement()
	if err != nil {
		return 0, err
	}
	return len(rec.Samples), nil
}

func (r *Reader) firstMeasurement() (*Record, error) {
	if err := r.ensureLoaded(); err != nil {
		return nil, err
	}
	for _, rec := range r.records {
		if rec.Kind == KindMeasurement {
			return rec, nil
		}
	}
	return nil, fmt.Errorf("scanreader: scan has no measurement spectra")
}
