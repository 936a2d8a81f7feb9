package novascfg

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const processingXML = `<Processing>
  <maxThreadNum>4</maxThreadNum>
  <outputDirectory>/out</outputDirectory>
  <fromDate>2005-10-01</fromDate>
  <toDate>2005-12-31</toDate>
  <volcano>Masaya</volcano>
  <molecule>SO2</molecule>
  <processingMode>Flux</processingMode>
  <fitWindows>
    <name>main</name>
    <main>main</main>
  </fitWindows>
  <geometryCalc>
    <sourceLat>11.98</sourceLat>
    <sourceLon>-86.16</sourceLon>
    <pair lower="D2J123" upper="D2J124" validTime="1800" completenessLimit="0.7"/>
  </geometryCalc>
  <dualBeam>
    <pair upwind="D2J123" downwind="D2J124" validTime="300" maxWindSpeedError="5"/>
  </dualBeam>
  <discarding>
    <completenessLimitFlux>0.7</completenessLimitFlux>
  </discarding>
</Processing>`

func TestLoadProcessingParsesGlobalOptionsAndBlocks(t *testing.T) {
	doc, err := LoadProcessing(strings.NewReader(processingXML))
	require.NoError(t, err)

	require.Equal(t, 4, doc.MaxThreadNum)
	require.Equal(t, "/out", doc.OutputDirectory)
	require.Equal(t, "2005-10-01", doc.FromDate)
	require.Equal(t, "SO2", doc.Molecule)
	require.Equal(t, "Flux", doc.ProcessingMode)
	require.Equal(t, []string{"main"}, doc.FitWindows)
	require.Equal(t, "main", doc.MainWindow)

	require.Len(t, doc.GeometryCalc.Pairs, 1)
	require.Equal(t, "D2J123", doc.GeometryCalc.Pairs[0].Lower)
	require.Equal(t, 0.7, doc.GeometryCalc.Pairs[0].CompletenessLimit)

	require.Len(t, doc.DualBeam.Pairs, 1)
	require.Equal(t, 5.0, doc.DualBeam.Pairs[0].MaxWindSpeedError)

	require.Equal(t, 0.7, doc.Discarding.CompletenessLimitFlux)
}
