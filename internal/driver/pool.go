package driver

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/novacgo/ppp/internal/novaserr"
	"github.com/novacgo/ppp/internal/novaslog"
	"github.com/novacgo/ppp/internal/plumeprops"
	"github.com/novacgo/ppp/internal/scaneval"
	"github.com/novacgo/ppp/internal/scanreader"
)

// evaluatedScan is one scan's C6+C7 output plus the identity it was
// scheduled under.
type evaluatedScan struct {
	Instrument *Instrument
	Identity   scanIdentity
	Result     *scaneval.ScanResult
}

// scanGroup is one (serial, channel)'s discovered files, in acquisition
// order (spec §4.12 "group by (serial, channel) and... sort by start
// time").
type scanGroup struct {
	Serial    string
	Channel   int
	Files     []ScanFile
	Identities []scanIdentity
}

// discoverAndGroup opens every discovered file far enough to learn its
// identity, tallies it as seen, and groups by (serial, channel) sorted by
// start time. Files the fetcher can't open within the retry budget are
// logged at trace level and dropped; they are not tallied, since their
// instrument serial is not known.
func discoverAndGroup(ctx context.Context, cfg Config, tally *Tally) (map[string]*scanGroup, error) {
	files, err := cfg.Fetcher.Discover(ctx)
	if err != nil {
		return nil, novaserr.Wrap(novaserr.InputUnreachable, "driver: discover scan files", err)
	}

	groups := make(map[string]*scanGroup)
	for _, f := range files {
		id, openErr := identifyWithRetry(ctx, cfg, f)
		if openErr != nil {
			novaslog.Tracef("driver: skip unreadable scan %s: %v", f.Path, openErr)
			continue
		}
		tally.RecordSeen(id.Serial)
		key := groupKey(id.Serial, id.Channel)
		g, ok := groups[key]
		if !ok {
			g = &scanGroup{Serial: id.Serial, Channel: id.Channel}
			groups[key] = g
		}
		g.Files = append(g.Files, f)
		g.Identities = append(g.Identities, id)
	}
	for _, g := range groups {
		sortGroupByStartTime(g)
	}
	return groups, nil
}

func groupKey(serial string, channel int) string {
	return serial + "\x00" + itoa(channel)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

func sortGroupByStartTime(g *scanGroup) {
	type pair struct {
		file ScanFile
		id   scanIdentity
	}
	pairs := make([]pair, len(g.Files))
	for i := range g.Files {
		pairs[i] = pair{g.Files[i], g.Identities[i]}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].id.StartTime.Before(pairs[j].id.StartTime) })
	for i, p := range pairs {
		g.Files[i], g.Identities[i] = p.file, p.id
	}
}

// identifyWithRetry bounds scanreader open/header-fallback attempts by
// cfg.RetryBudget (spec §5 "a scan that cannot be read within the retry
// budget is marked corrupted and skipped").
func identifyWithRetry(ctx context.Context, cfg Config, f ScanFile) (scanIdentity, error) {
	attempts := cfg.RetryBudget
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		id, err := identifyScan(baseName(f.Path), func() (*scanreader.Reader, func() error, error) {
			return openReader(ctx, cfg, f)
		})
		if err == nil {
			return id, nil
		}
		lastErr = err
		if cfg.RetryDelay > 0 && i < attempts-1 {
			select {
			case <-time.After(cfg.RetryDelay):
			case <-ctx.Done():
				return scanIdentity{}, ctx.Err()
			}
		}
	}
	return scanIdentity{}, lastErr
}

func openReader(ctx context.Context, cfg Config, f ScanFile) (*scanreader.Reader, func() error, error) {
	src, closeFn, err := cfg.Fetcher.Open(ctx, f)
	if err != nil {
		return nil, nil, novaserr.Wrap(novaserr.InputUnreachable, "driver: open scan file", err)
	}
	return scanreader.Open(src, nil), closeFn, nil
}

func baseName(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' || path[i] == '\\' {
			return path[i+1:]
		}
	}
	return path
}

// evaluateAll runs the worker-pool phase: one goroutine per scan group
// (so a group's scans dispatch in strictly increasing start-time order,
// spec §5's "Ordering guarantees"), gated by a shared semaphore of size
// cfg.MaxThreads so at most MaxThreads scans are being evaluated across
// all groups at once (spec §4.12 "worker pool of size maxThreads").
func evaluateAll(ctx context.Context, cfg Config, groups map[string]*scanGroup, tally *Tally) []*evaluatedScan {
	maxThreads := cfg.MaxThreads
	if maxThreads <= 0 {
		maxThreads = 1
	}
	sem := make(chan struct{}, maxThreads)

	instrumentsBySerial := make(map[string]*Instrument, len(cfg.Instruments))
	for i := range cfg.Instruments {
		instrumentsBySerial[cfg.Instruments[i].Serial] = &cfg.Instruments[i]
	}

	var mu sync.Mutex
	var results []*evaluatedScan

	var wg sync.WaitGroup
	for _, g := range groups {
		instr, ok := instrumentsBySerial[g.Serial]
		if !ok {
			novaslog.Tracef("driver: no instrument configured for serial %s, skipping group", g.Serial)
			continue
		}
		wg.Add(1)
		go func(g *scanGroup, instr *Instrument) {
			defer wg.Done()
			for i, f := range g.Files {
				if ctx.Err() != nil {
					return
				}
				select {
				case sem <- struct{}{}:
				case <-ctx.Done():
					return
				}
				res, err := evaluateOne(ctx, cfg, instr, f)
				<-sem
				if err != nil {
					tally.RecordSkip(g.Serial, kindOf(err))
					novaslog.Tracef("driver: scan %s: %v", f.Path, err)
					continue
				}
				tally.RecordEvaluated(g.Serial)
				res.Mode = cfg.Mode
				if res.Rejected != nil {
					tally.RecordSkip(g.Serial, kindOf(res.Rejected))
				}
				es := &evaluatedScan{Instrument: instr, Identity: g.Identities[i], Result: res}
				attachPlumeProperties(es)

				mu.Lock()
				results = append(results, es)
				mu.Unlock()
			}
		}(g, instr)
	}
	wg.Wait()
	return results
}

func kindOf(err error) novaserr.Kind {
	for _, k := range []novaserr.Kind{
		novaserr.ConfigurationInvalid, novaserr.InputUnreachable, novaserr.SpectrumCorrupt,
		novaserr.SkyUnusable, novaserr.DarkUnavailable, novaserr.FitDidNotConverge,
		novaserr.IllConditioned, novaserr.CompletenessTooLow, novaserr.PlumeNotSeen,
		novaserr.GeometryAmbiguous, novaserr.InsufficientGoodSamples,
	} {
		if novaserr.Is(err, k) {
			return k
		}
	}
	return novaserr.InputUnreachable
}

func evaluateOne(ctx context.Context, cfg Config, instr *Instrument, f ScanFile) (*scaneval.ScanResult, error) {
	src, closeFn, err := cfg.Fetcher.Open(ctx, f)
	if err != nil {
		return nil, novaserr.Wrap(novaserr.InputUnreachable, "driver: open scan file", err)
	}
	defer closeFn()

	reader := scanreader.Open(src, nil)
	defer reader.Close()

	window := instr.FitWindows[0]
	return scaneval.Evaluate(reader, window, instr.Model, instr.DarkSettings)
}

// attachPlumeProperties runs C7 on a freshly evaluated scan (spec §4.12
// "each completed scan result passes through C7").
func attachPlumeProperties(es *evaluatedScan) {
	if es.Result.Rejected != nil {
		return
	}
	angles, _, columns, exclude := goodSeries(es.Result, es.Instrument.MainSpeciesIndex)
	props, err := plumeprops.Extract(angles, columns, exclude, plumeprops.Options{})
	if err != nil {
		novaslog.Tracef("driver: plume properties for %s: %v", es.Identity.Serial, err)
		return
	}
	es.Result.PlumeProperties = props
}
