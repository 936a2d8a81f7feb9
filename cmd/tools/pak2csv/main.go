// Command pak2csv dumps every spectrum in a .pak scan file to CSV, for
// inspecting a scan's raw content without running the full evaluator.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/novacgo/ppp/internal/scanreader"
)

func main() {
	input := flag.String("i", "", "path to the .pak scan file")
	output := flag.String("o", "", "output CSV path (defaults to stdout)")
	flag.Parse()

	if *input == "" {
		log.Fatalf("pak2csv: -i is required")
	}

	if err := run(*input, *output); err != nil {
		log.Fatalf("pak2csv: %v", err)
	}
}

func run(inputPath, outputPath string) error {
	f, err := os.Open(inputPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", inputPath, err)
	}
	defer f.Close()

	reader := scanreader.Open(f, scanreader.DefaultDecompressor{})
	defer reader.Close()

	out := os.Stdout
	if outputPath != "" {
		created, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("create %s: %w", outputPath, err)
		}
		defer created.Close()
		out = created
	}

	return dumpSpectra(reader, out)
}

func dumpSpectra(reader *scanreader.Reader, out *os.File) error {
	count, err := reader.Count()
	if err != nil {
		return fmt.Errorf("read record count: %w", err)
	}

	w := csv.NewWriter(out)
	defer w.Flush()

	if err := w.Write([]string{"index", "kind", "scanangle", "exposuretimems", "coadds", "checksumok", "samples"}); err != nil {
		return err
	}

	for i := 0; i < count; i++ {
		rec, err := reader.GetSpectrumByIndex(i)
		if err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		row := []string{
			strconv.Itoa(i),
			kindName(rec.Kind),
			strconv.FormatFloat(rec.ScanAngle, 'f', 2, 64),
			strconv.Itoa(rec.ExposureTimeMS),
			strconv.Itoa(rec.Coadds),
			strconv.FormatBool(rec.ChecksumOK),
			formatSamples(rec.Samples),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write record %d: %w", i, err)
		}
	}
	return nil
}

func kindName(k scanreader.Kind) string {
	switch k {
	case scanreader.KindMeasurement:
		return "measurement"
	case scanreader.KindSky:
		return "sky"
	case scanreader.KindDark:
		return "dark"
	case scanreader.KindOffset:
		return "offset"
	case scanreader.KindDarkCurrent:
		return "darkcurrent"
	default:
		return "unknown"
	}
}

func formatSamples(samples []float64) string {
	buf := make([]byte, 0, len(samples)*8)
	for i, s := range samples {
		if i > 0 {
			buf = append(buf, ';')
		}
		buf = strconv.AppendFloat(buf, s, 'f', 3, 64)
	}
	return string(buf)
}
