package driver

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// ScanFile names one discovered .pak file, independent of where it lives.
type ScanFile struct {
	Path     string
	ModTime  time.Time
}

// Fetcher discovers and opens scan files, abstracting over a local
// directory tree versus a remote FTP drop (spec §6 "LocalDirectory" /
// "FTPDirectory"). The driver skips a scan file that cannot be opened
// within its retry budget, logging it at trace level.
type Fetcher interface {
	Discover(ctx context.Context) ([]ScanFile, error)
	Open(ctx context.Context, f ScanFile) (io.ReadSeeker, func() error, error)
}

// LocalFetcher walks a local directory tree for .pak files, grounded on
// the plain os.ReadDir-based directory walk the teacher's deploy/monitor
// tooling uses for local file discovery.
type LocalFetcher struct {
	Root          string
	IncludeSubDirs bool
	Pattern       string // glob matched against the base filename; empty means "*.pak"
}

// Discover walks Root (recursively if IncludeSubDirs) and returns every
// file matching Pattern.
func (f LocalFetcher) Discover(ctx context.Context) ([]ScanFile, error) {
	pattern := f.Pattern
	if pattern == "" {
		pattern = "*.pak"
	}
	var out []ScanFile
	walk := func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if !f.IncludeSubDirs && path != f.Root {
				return filepath.SkipDir
			}
			return nil
		}
		ok, matchErr := filepath.Match(pattern, filepath.Base(path))
		if matchErr != nil {
			return matchErr
		}
		if !ok {
			return nil
		}
		info, statErr := d.Info()
		if statErr != nil {
			return statErr
		}
		out = append(out, ScanFile{Path: path, ModTime: info.ModTime()})
		return nil
	}
	if err := filepath.WalkDir(f.Root, walk); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// Open opens a local scan file for reading.
func (f LocalFetcher) Open(ctx context.Context, sf ScanFile) (io.ReadSeeker, func() error, error) {
	file, err := os.Open(sf.Path)
	if err != nil {
		return nil, nil, err
	}
	return file, file.Close, nil
}
