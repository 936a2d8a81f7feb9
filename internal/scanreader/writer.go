package scanreader

import (
	"bytes"
	"encoding/binary"
)

// RecordSpec describes one synthetic record for WriteRecord/tests and for
// cmd/tools/pak2csv's fixture generation.
type RecordSpec struct {
	DeviceSerial  string
	ScanAngle     float32
	Channel       uint8
	StartChannel  uint16
	Coadds        uint16
	Compass       float32
	ExposureMS    uint16
	ScanIndex     uint16
	ScanCount     uint16
	Flags         uint32
	Day, Month, Year int
	Hour, Min, Sec   int
	Samples       []int32
	CorruptChecksum bool // when true, write a deliberately wrong checksum
}

// WriteRecord appends one encoded MKZY record to buf.
func WriteRecord(buf *bytes.Buffer, spec RecordSpec) {
	payload := CompressPayload(spec.Samples)

	var hdr bytes.Buffer
	putFixed(&hdr, []byte(spec.DeviceSerial), 16)
	putFixed(&hdr, []byte("spec"), 12)
	hdr.Write([]byte{byte(spec.Day), byte(spec.Month), byte(spec.Year % 100)})
	binary.Write(&hdr, binary.LittleEndian, packHHMMSSms(spec.Hour, spec.Min, spec.Sec, 0))
	binary.Write(&hdr, binary.LittleEndian, packHHMMSSms(spec.Hour, spec.Min, spec.Sec, 0))
	hdr.WriteByte(spec.Channel)
	binary.Write(&hdr, binary.LittleEndian, spec.StartChannel)
	binary.Write(&hdr, binary.LittleEndian, spec.Coadds)
	binary.Write(&hdr, binary.LittleEndian, uint16(len(spec.Samples)))
	binary.Write(&hdr, binary.LittleEndian, uint16(len(payload)))
	binary.Write(&hdr, binary.LittleEndian, spec.ScanAngle)
	binary.Write(&hdr, binary.LittleEndian, float32(0)) // secondary angle
	binary.Write(&hdr, binary.LittleEndian, float32(60)) // cone angle
	binary.Write(&hdr, binary.LittleEndian, float32(0)) // tilt
	binary.Write(&hdr, binary.LittleEndian, uint16(spec.Compass*10))
	binary.Write(&hdr, binary.LittleEndian, spec.ExposureMS)
	binary.Write(&hdr, binary.LittleEndian, float32(0)) // lat
	binary.Write(&hdr, binary.LittleEndian, float32(0)) // lon
	binary.Write(&hdr, binary.LittleEndian, float32(0)) // alt
	checksum := Checksum(spec.Samples)
	if spec.CorruptChecksum {
		checksum++
	}
	binary.Write(&hdr, binary.LittleEndian, checksum)
	binary.Write(&hdr, binary.LittleEndian, float32(20)) // temperature
	binary.Write(&hdr, binary.LittleEndian, float32(12)) // battery
	binary.Write(&hdr, binary.LittleEndian, spec.ScanIndex)
	binary.Write(&hdr, binary.LittleEndian, spec.ScanCount)
	binary.Write(&hdr, binary.LittleEndian, spec.Flags)

	buf.WriteString(RecordTag)
	binary.Write(buf, binary.LittleEndian, uint16(hdr.Len()))
	buf.Write(hdr.Bytes())
	buf.Write(payload)
}

func putFixed(buf *bytes.Buffer, s []byte, n int) {
	out := make([]byte, n)
	copy(out, s)
	buf.Write(out)
}

func packHHMMSSms(hh, mm, ss, ms int) uint32 {
	return uint32(hh)*100*100*1000 + uint32(mm)*100*1000 + uint32(ss)*1000 + uint32(ms)
}
