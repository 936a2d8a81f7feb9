package novascfg

import (
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/novacgo/ppp/internal/darkresolver"
)

type fakeFile struct {
	io.Reader
}

func (fakeFile) Close() error { return nil }

func fakeLoader(files map[string]string) ReferenceLoader {
	return func(path string) (io.ReadCloser, error) {
		body, ok := files[path]
		if !ok {
			return nil, &pathNotFoundError{path}
		}
		return fakeFile{strings.NewReader(body)}, nil
	}
}

type pathNotFoundError struct{ path string }

func (e *pathNotFoundError) Error() string { return "no such reference: " + e.path }

func TestResolveBuildsDriverConfigFromDocuments(t *testing.T) {
	setup, err := LoadSetup(strings.NewReader(setupXML))
	require.NoError(t, err)

	evaluation, err := LoadEvaluation(strings.NewReader(evaluationXML))
	require.NoError(t, err)

	processing, err := LoadProcessing(strings.NewReader(`<Processing>
  <maxThreadNum>4</maxThreadNum>
  <molecule>SO2</molecule>
  <processingMode>Flux</processingMode>
  <geometryCalc><sourceLat>19.4</sourceLat><sourceLon>-155.6</sourceLon></geometryCalc>
</Processing>`))
	require.NoError(t, err)

	loader := fakeLoader(map[string]string{
		"SO2.txt":         "1.0\n2.0\n3.0\n",
		"O3.txt":          "0.1\n0.2\n0.3\n",
		"fraunhofer.txt": "10\n20\n30\n",
	})

	cfg, molecule, err := Resolve(Documents{Setup: setup, Evaluation: evaluation, Processing: processing}, loader, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, "SO2", molecule.Name)

	require.Len(t, cfg.Instruments, 1)
	instr := cfg.Instruments[0]
	require.Equal(t, "D2J123", instr.Serial)
	require.Equal(t, 120.0, instr.Geometry.Compass)
	require.Len(t, instr.FitWindows, 1)
	require.Len(t, instr.FitWindows[0].References, 2)
	require.Equal(t, 0, instr.MainSpeciesIndex)
	require.NotNil(t, instr.FitWindows[0].Fraunhofer)

	require.Equal(t, 4, cfg.MaxThreads)
	require.Equal(t, 19.4, cfg.SourceLat)
}

func TestResolveFailsWhenInstrumentHasNoLocationAtGivenTime(t *testing.T) {
	setup, err := LoadSetup(strings.NewReader(setupXML))
	require.NoError(t, err)
	evaluation, err := LoadEvaluation(strings.NewReader(evaluationXML))
	require.NoError(t, err)
	processing, err := LoadProcessing(strings.NewReader(`<Processing><molecule>SO2</molecule></Processing>`))
	require.NoError(t, err)

	_, _, err = Resolve(Documents{Setup: setup, Evaluation: evaluation, Processing: processing}, fakeLoader(nil), time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	require.Error(t, err)
}

func TestResolveDarkSettingsLoaderReadsUserSuppliedSpectrum(t *testing.T) {
	setup, err := LoadSetup(strings.NewReader(setupXML))
	require.NoError(t, err)

	evalXML := `<Evaluation>
  <instrument serial="D2J123">
    <fitWindow name="main" fitLow="320" fitHigh="460" polyOrder="3">
      <reference path="SO2.txt" species="SO2" shiftOption="free" columnOption="free" mainSpecies="true"/>
    </fitWindow>
    <dark darkOption="userSupplied" offsetOption="measured" darkCurrentOption="measured">
      <userDarkPath>dark.txt</userDarkPath>
    </dark>
  </instrument>
</Evaluation>`
	evaluation, err := LoadEvaluation(strings.NewReader(evalXML))
	require.NoError(t, err)

	processing, err := LoadProcessing(strings.NewReader(`<Processing><molecule>SO2</molecule></Processing>`))
	require.NoError(t, err)

	loader := fakeLoader(map[string]string{
		"SO2.txt":  "1.0\n2.0\n",
		"dark.txt": "5\n6\n7\n",
	})

	cfg, _, err := Resolve(Documents{Setup: setup, Evaluation: evaluation, Processing: processing}, loader, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	settings := cfg.Instruments[0].DarkSettings
	require.Equal(t, darkresolver.UserSupplied, settings.DarkSpecOption)
	require.Equal(t, "dark.txt", settings.UserDarkPath)

	sp, err := settings.Loader("dark.txt")
	require.NoError(t, err)
	require.Equal(t, []float64{5, 6, 7}, sp.Intensity)
}
