package scanreader

import (
	"encoding/binary"
	"fmt"
)

// Decompressor expands the compressed, delta-encoded sample stream of one
// record into nSamples raw 32-bit sample values (first sample raw,
// successors are differences, per spec §6). The real NOVAC MKPack bit
// format is an external black box (spec.md §1); production deployments
// inject their own Decompressor. DefaultDecompressor below is a documented
// reference scheme used by this module's own tooling and tests.
type Decompressor interface {
	Decompress(payload []byte, nSamples int) ([]int32, error)
}

// DefaultDecompressor implements a simple, self-consistent reference codec:
// each delta is a little-endian zig-zag varint, mirroring the "first
// sample raw, successors differences" contract without needing the real
// MKPack bit-packing tables. CompressPayload below is its encoder,
// exercised by this package's round-trip tests and by cmd/tools/pak2csv
// when synthesising fixtures.
type DefaultDecompressor struct{}

func zigzagDecode(u uint64) int64 {
	return int64(u>>1) ^ -int64(u&1)
}

func zigzagEncode(v int64) uint64 {
	return uint64((v << 1) ^ (v >> 63))
}

func (DefaultDecompressor) Decompress(payload []byte, nSamples int) ([]int32, error) {
	samples := make([]int32, 0, nSamples)
	pos := 0
	var prev int64
	for i := 0; i < nSamples; i++ {
		u, n, err := readUvarint(payload[pos:])
		if err != nil {
			return nil, fmt.Errorf("scanreader: decompress sample %d: %w", i, err)
		}
		pos += n
		delta := zigzagDecode(u)
		var value int64
		if i == 0 {
			value = delta // first sample is raw, not a delta
		} else {
			value = prev + delta
		}
		samples = append(samples, int32(value))
		prev = value
	}
	return samples, nil
}

// CompressPayload is the DefaultDecompressor's matching encoder.
func CompressPayload(samples []int32) []byte {
	buf := make([]byte, 0, len(samples)*2)
	var prev int64
	for i, s := range samples {
		v := int64(s)
		var delta int64
		if i == 0 {
			delta = v
		} else {
			delta = v - prev
		}
		buf = appendUvarint(buf, zigzagEncode(delta))
		prev = v
	}
	return buf
}

func readUvarint(b []byte) (uint64, int, error) {
	var x uint64
	var shift uint
	for i, c := range b {
		if i >= binary.MaxVarintLen64 {
			return 0, 0, fmt.Errorf("scanreader: varint too long")
		}
		x |= uint64(c&0x7f) << shift
		if c < 0x80 {
			return x, i + 1, nil
		}
		shift += 7
	}
	return 0, 0, fmt.Errorf("scanreader: truncated varint")
}

func appendUvarint(buf []byte, x uint64) []byte {
	for x >= 0x80 {
		buf = append(buf, byte(x)|0x80)
		x >>= 7
	}
	return append(buf, byte(x))
}

// Checksum computes the 16-bit truncated sum of samples, matching spec
// §6's "checksum (16-bit sum of unpacked 32-bit samples, truncated)".
func Checksum(samples []int32) uint16 {
	var sum int64
	for _, s := range samples {
		sum += int64(s)
	}
	return uint16(sum & 0xFFFF)
}
