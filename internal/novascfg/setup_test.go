package novascfg

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const setupXML = `<Setup>
  <instrument serial="D2J123">
    <location validFrom="2024.01.01T00:00:00" validTo="2024.06.01T00:00:00"
              lat="19.4" lon="-155.6" compass="120" cone="90" tilt="0"
              scannerType="flat" model="Gothenburg"/>
    <location validFrom="2024.06.01T00:00:00" validTo=""
              lat="19.4" lon="-155.6" compass="125" cone="90" tilt="0"
              scannerType="flat" model="Gothenburg"/>
    <initialCalibrationFile>cal/D2J123.clb</initialCalibrationFile>
    <lineShapeFile>slf/D2J123.slf</lineShapeFile>
  </instrument>
</Setup>`

func TestLoadSetupParsesInstrumentLocationHistory(t *testing.T) {
	doc, err := LoadSetup(strings.NewReader(setupXML))
	require.NoError(t, err)
	require.Len(t, doc.Instruments, 1)

	instr := doc.Instruments[0]
	require.Equal(t, "D2J123", instr.Serial)
	require.Len(t, instr.Locations, 2)
	require.Equal(t, "cal/D2J123.clb", instr.InitialCalibrationFile)

	loc, ok := instr.LocationAt(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	require.True(t, ok)
	require.Equal(t, 120.0, loc.Compass)

	loc, ok = instr.LocationAt(time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC))
	require.True(t, ok)
	require.Equal(t, 125.0, loc.Compass)

	_, ok = instr.LocationAt(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC))
	require.False(t, ok)
}

func TestLoadSetupRejectsOverlappingLocationPeriods(t *testing.T) {
	overlapping := `<Setup>
  <instrument serial="D2J123">
    <location validFrom="2024.01.01T00:00:00" validTo="2024.06.01T00:00:00" lat="0" lon="0" compass="0" cone="90" tilt="0"/>
    <location validFrom="2024.05.01T00:00:00" validTo="" lat="0" lon="0" compass="0" cone="90" tilt="0"/>
  </instrument>
</Setup>`

	_, err := LoadSetup(strings.NewReader(overlapping))
	require.Error(t, err)
}
