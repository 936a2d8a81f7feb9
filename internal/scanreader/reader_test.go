package scanreader

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

type memReadSeeker struct {
	*bytes.Reader
}

func (m *memReadSeeker) Close() error { return nil }

func newFixture(t *testing.T) *Reader {
	t.Helper()
	var buf bytes.Buffer

	WriteRecord(&buf, RecordSpec{
		DeviceSerial: "2002128M1", Channel: 0, Coadds: 1, ScanIndex: 0,
		Flags: FlagSky, ScanAngle: 0, Compass: 90, ExposureMS: 100,
		Day: 20, Month: 1, Year: 2023, Hour: 19, Min: 7, Sec: 0,
		Samples: []int32{1000, 1010, 1020, 1030},
	})
	WriteRecord(&buf, RecordSpec{
		DeviceSerial: "2002128M1", Channel: 0, Coadds: 1, ScanIndex: 1,
		Flags: FlagDark, Compass: 90, ExposureMS: 100,
		Day: 20, Month: 1, Year: 2023, Hour: 19, Min: 7, Sec: 1,
		Samples: []int32{10, 12, 11, 13},
	})
	for i := 0; i < 3; i++ {
		WriteRecord(&buf, RecordSpec{
			DeviceSerial: "2002128M1", Channel: 0, Coadds: 1, ScanIndex: uint16(2 + i),
			Flags: FlagMeasurement, ScanAngle: float32(-90 + 10*i), Compass: 90, ExposureMS: 100,
			Day: 20, Month: 1, Year: 2023, Hour: 19, Min: 7, Sec: 2 + i,
			Samples: []int32{500, 505, 510, 515},
		})
	}

	r := bytes.NewReader(buf.Bytes())
	return Open(&memReadSeeker{r}, nil)
}

func TestReaderClassifiesAndStreamsMeasurements(t *testing.T) {
	r := newFixture(t)
	defer r.Close()

	sky, err := r.GetSky()
	require.NoError(t, err)
	require.Equal(t, KindSky, sky.Kind)
	require.Equal(t, []float64{1000, 1010, 1020, 1030}, sky.Samples)

	dark, err := r.GetDark()
	require.NoError(t, err)
	require.Equal(t, KindDark, dark.Kind)

	var angles []float64
	for {
		rec, err := r.GetNextMeasurementSpectrum()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		angles = append(angles, rec.ScanAngle)
	}
	require.Equal(t, []float64{-90, -80, -70}, angles)
	require.Equal(t, LastErrorEOF, r.LastError())
}

func TestReaderResetRewinds(t *testing.T) {
	r := newFixture(t)
	defer r.Close()

	first, err := r.GetNextMeasurementSpectrum()
	require.NoError(t, err)

	require.NoError(t, r.Reset())
	again, err := r.GetNextMeasurementSpectrum()
	require.NoError(t, err)
	require.Equal(t, first.ScanAngle, again.ScanAngle)
}

func TestReaderIndexedAccessAndCounts(t *testing.T) {
	r := newFixture(t)
	defer r.Close()

	n, err := r.Count()
	require.NoError(t, err)
	require.Equal(t, 5, n)

	rec, err := r.GetSpectrumByIndex(0)
	require.NoError(t, err)
	require.Equal(t, KindSky, rec.Kind)

	_, err = r.GetSpectrumByIndex(99)
	require.Error(t, err)

	length, err := r.SpectrumLength()
	require.NoError(t, err)
	require.Equal(t, 4, length)
}

func TestReaderFlagsCorruptSpectraNonFatally(t *testing.T) {
	var buf bytes.Buffer
	WriteRecord(&buf, RecordSpec{
		DeviceSerial: "S1", Flags: FlagSky, Compass: 0,
		Day: 1, Month: 1, Year: 2024,
		Samples: []int32{1, 2, 3},
	})
	WriteRecord(&buf, RecordSpec{
		DeviceSerial: "S1", Flags: FlagDark, Compass: 0,
		Day: 1, Month: 1, Year: 2024,
		Samples: []int32{1, 1, 1},
	})
	WriteRecord(&buf, RecordSpec{
		DeviceSerial: "S1", Flags: FlagMeasurement, Compass: 0, ScanIndex: 2,
		Day: 1, Month: 1, Year: 2024,
		Samples: []int32{9, 9, 9}, CorruptChecksum: true,
	})

	r := Open(&memReadSeeker{bytes.NewReader(buf.Bytes())}, nil)
	defer r.Close()

	n, err := r.Count()
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.True(t, r.CorruptedIndices()[2])

	// The corrupt measurement is still returned, not dropped.
	rec, err := r.GetNextMeasurementSpectrum()
	require.NoError(t, err)
	require.False(t, rec.ChecksumOK)
}

func TestCodecRoundTrip(t *testing.T) {
	samples := []int32{0, 5, -3, 1000, -1000, 42}
	payload := CompressPayload(samples)
	got, err := DefaultDecompressor{}.Decompress(payload, len(samples))
	require.NoError(t, err)
	require.Equal(t, samples, got)
}
