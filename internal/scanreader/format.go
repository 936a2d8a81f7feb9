// Package scanreader streams the spectra of one scan (.pak) file in
// acquisition order (C2), classifying each as sky / dark / offset /
// dark-current / measurement and supporting rewind and indexed access.
//
// The on-disk record format (spec §6 "Scan binary format") is: a 4-byte
// tag "MKZY", a 16-bit header size, a versioned fixed-layout header, then
// a compressed delta-encoded sample stream. The MKPack compression scheme
// itself is an external black box per spec.md §1 ("the .pak binary codec
// itself ... treated as a byte-level black box; its data contract is
// specified") — this package depends on it only through the Decompressor
// interface, so a production build can inject the real NOVAC codec while
// this module ships a documented reference codec for tests and tooling.
//
// Grounded on internal/lidar/l1packets/network/listener.go's framed,
// single-owner sequential reader shape (see .teacher-seed/extract.go.seed
// for the sibling packet-parsing idiom this mirrors).
package scanreader

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"time"
)

// RecordTag is the fixed 4-byte tag that opens every record.
const RecordTag = "MKZY"

// HeaderSize is the fixed-layout header size (bytes), excluding the tag and
// the 16-bit size field that precede it.
const HeaderSize = 98

// rawHeader mirrors the on-disk fixed layout (spec §6). All multi-byte
// integers are little-endian.
type rawHeader struct {
	SerialNumber       [16]byte
	SpectrumName       [12]byte
	DateDDMMYY         [3]byte
	StartTimePacked    uint32 // hhmmssms packed
	StopTimePacked     uint32
	Channel            uint8
	StartChannel       uint16
	Coadds             uint16
	PixelCount         uint16
	CompressedSize     uint16
	ScanAngle          float32
	SecondaryAngle     float32
	ConeAngle          float32
	Tilt               float32
	CompassTenths      uint16
	ExposureTimeMS     uint16
	Latitude           float32
	Longitude          float32
	Altitude           float32
	Checksum           uint16
	Temperature        float32
	BatteryVoltage     float32
	ScanIndex          uint16
	ScanCount          uint16
	Flags              uint32
}

// Flag bits classifying a spectrum's role within the scan (spec §3/§4.2).
// These live in rawHeader.Flags / Record.Flags, distinct from ScanIndex,
// which is the ordinal used to recognise "the sky slot" / "the dark slot"
// on repeat encounters (spec §4.2: "skips any spectrum whose scan index
// matches the sky or dark slot").
const (
	FlagMeasurement = uint32(0)
	FlagSky         = uint32(1) << 0
	FlagDark        = uint32(1) << 1
	FlagOffset      = uint32(1) << 2
	FlagDarkCurrent = uint32(1) << 3
	FlagCorrupt     = uint32(1) << 4 // set locally on checksum/decompress failure, never on disk
)

// Kind is the decoded classification of a Record.
type Kind int

const (
	KindMeasurement Kind = iota
	KindSky
	KindDark
	KindOffset
	KindDarkCurrent
)

func kindFromFlags(flags uint32) Kind {
	switch {
	case flags&FlagSky != 0:
		return KindSky
	case flags&FlagDark != 0:
		return KindDark
	case flags&FlagOffset != 0:
		return KindOffset
	case flags&FlagDarkCurrent != 0:
		return KindDarkCurrent
	default:
		return KindMeasurement
	}
}

// Record is one decoded .pak record: header fields plus decompressed
// intensity samples (still in raw instrument units; callers convert to a
// spectrum.Spectrum).
type Record struct {
	DeviceSerial       string
	SpectrumName       string
	StartTime          time.Time
	StopTime           time.Time
	Channel            int
	StartChannel       int
	Coadds             int
	Kind               Kind
	InterlaceStep      int
	ScanAngle          float64
	SecondaryScanAngle float64
	ConeAngle          float64
	Tilt               float64
	Compass            float64
	ExposureTimeMS     int
	Latitude           float64
	Longitude          float64
	Altitude           float64
	Temperature        float64
	BatteryVoltage     float64
	ScanIndex          int
	ScanCount          int
	Samples            []float64
	ChecksumOK         bool
}

func parseDDMMYY(b [3]byte, hh, mm, ss, ms int) time.Time {
	day, month, year := int(b[0]), int(b[1]), int(b[2])
	if year < 70 {
		year += 2000
	} else if year < 100 {
		year += 1900
	}
	return time.Date(year, time.Month(month), day, hh, mm, ss, ms*int(time.Millisecond), time.UTC)
}

func unpackHHMMSSms(packed uint32) (hh, mm, ss, ms int) {
	ms = int(packed % 1000)
	packed /= 1000
	ss = int(packed % 100)
	packed /= 100
	mm = int(packed % 100)
	packed /= 100
	hh = int(packed % 100)
	return
}

func decodeHeader(buf []byte) (*rawHeader, error) {
	if len(buf) < HeaderSize {
		return nil, fmt.Errorf("scanreader: header too short: %d < %d", len(buf), HeaderSize)
	}
	h := &rawHeader{}
	r := byteReader{buf: buf}
	r.read(h.SerialNumber[:])
	r.read(h.SpectrumName[:])
	r.read(h.DateDDMMYY[:])
	h.StartTimePacked = r.u32()
	h.StopTimePacked = r.u32()
	h.Channel = r.u8()
	h.StartChannel = r.u16()
	h.Coadds = r.u16()
	h.PixelCount = r.u16()
	h.CompressedSize = r.u16()
	h.ScanAngle = r.f32()
	h.SecondaryAngle = r.f32()
	h.ConeAngle = r.f32()
	h.Tilt = r.f32()
	h.CompassTenths = r.u16()
	h.ExposureTimeMS = r.u16()
	h.Latitude = r.f32()
	h.Longitude = r.f32()
	h.Altitude = r.f32()
	h.Checksum = r.u16()
	h.Temperature = r.f32()
	h.BatteryVoltage = r.f32()
	h.ScanIndex = r.u16()
	h.ScanCount = r.u16()
	h.Flags = r.u32()
	if r.err != nil {
		return nil, r.err
	}
	return h, nil
}

// byteReader is a tiny little-endian cursor over a fixed buffer.
type byteReader struct {
	buf []byte
	pos int
	err error
}

func (r *byteReader) read(dst []byte) {
	if r.err != nil {
		return
	}
	if r.pos+len(dst) > len(r.buf) {
		r.err = io.ErrUnexpectedEOF
		return
	}
	copy(dst, r.buf[r.pos:r.pos+len(dst)])
	r.pos += len(dst)
}

func (r *byteReader) u8() uint8 {
	var b [1]byte
	r.read(b[:])
	return b[0]
}

func (r *byteReader) u16() uint16 {
	var b [2]byte
	r.read(b[:])
	return binary.LittleEndian.Uint16(b[:])
}

func (r *byteReader) u32() uint32 {
	var b [4]byte
	r.read(b[:])
	return binary.LittleEndian.Uint32(b[:])
}

func (r *byteReader) f32() float64 {
	bits := r.u32()
	return float64(math.Float32frombits(bits))
}
