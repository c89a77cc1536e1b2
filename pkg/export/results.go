// Package export persists and formats simulation results: the merged JSON
// results file, CSV tables and LaTeX/pgfplots sources.
package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	cerrors "github.com/r3d91ll/consensus/pkg/errors"
	"github.com/r3d91ll/consensus/pkg/simulation"
)

// PlotAverage is the mean interaction count for one K over Samples phases.
type PlotAverage struct {
	K            uint16  `json:"k"`
	Interactions float64 `json:"interactions"`
	Samples      int     `json:"samples"`
}

// EntropyAverage is the mean entropy at one checkpoint over Samples runs.
type EntropyAverage struct {
	Interactions uint64  `json:"interactions"`
	Entropy      float64 `json:"entropy"`
	Samples      int     `json:"samples"`
}

// Record aggregates every finished run that shares a fingerprint.
type Record struct {
	Fingerprint string            `json:"fingerprint"`
	Config      simulation.Config `json:"config"`
	Runs        int               `json:"runs"`
	Plot        []PlotAverage     `json:"plot"`
	Entropy     []EntropyAverage  `json:"entropy"`
	Updated     time.Time         `json:"updated"`
}

// Mean returns the averaged interaction count for k.
func (r *Record) Mean(k uint16) (float64, bool) {
	for _, p := range r.Plot {
		if p.K == k {
			return p.Interactions, true
		}
	}
	return 0, false
}

// add folds one run into the record. Every point is a running mean weighted
// by its own sample count, so runs of different length combine correctly.
func (r *Record) add(res simulation.Result) {
	r.Runs++

	for _, pt := range res.Plot.Points {
		i := sort.Search(len(r.Plot), func(i int) bool { return r.Plot[i].K >= pt.K })
		if i == len(r.Plot) || r.Plot[i].K != pt.K {
			r.Plot = append(r.Plot, PlotAverage{})
			copy(r.Plot[i+1:], r.Plot[i:])
			r.Plot[i] = PlotAverage{K: pt.K}
		}
		p := &r.Plot[i]
		p.Interactions = runningMean(p.Interactions, p.Samples, float64(pt.Interactions))
		p.Samples++
	}

	for _, pt := range res.Entropy.Points {
		i := sort.Search(len(r.Entropy), func(i int) bool { return r.Entropy[i].Interactions >= pt.Interactions })
		if i == len(r.Entropy) || r.Entropy[i].Interactions != pt.Interactions {
			r.Entropy = append(r.Entropy, EntropyAverage{})
			copy(r.Entropy[i+1:], r.Entropy[i:])
			r.Entropy[i] = EntropyAverage{Interactions: pt.Interactions}
		}
		e := &r.Entropy[i]
		e.Entropy = runningMean(e.Entropy, e.Samples, pt.Entropy)
		e.Samples++
	}
}

// merge folds another record with the same fingerprint into r.
func (r *Record) merge(o Record) {
	r.Runs += o.Runs
	for _, op := range o.Plot {
		i := sort.Search(len(r.Plot), func(i int) bool { return r.Plot[i].K >= op.K })
		if i == len(r.Plot) || r.Plot[i].K != op.K {
			r.Plot = append(r.Plot, PlotAverage{})
			copy(r.Plot[i+1:], r.Plot[i:])
			r.Plot[i] = op
			continue
		}
		p := &r.Plot[i]
		p.Interactions = weightedMean(p.Interactions, p.Samples, op.Interactions, op.Samples)
		p.Samples += op.Samples
	}
	for _, oe := range o.Entropy {
		i := sort.Search(len(r.Entropy), func(i int) bool { return r.Entropy[i].Interactions >= oe.Interactions })
		if i == len(r.Entropy) || r.Entropy[i].Interactions != oe.Interactions {
			r.Entropy = append(r.Entropy, EntropyAverage{})
			copy(r.Entropy[i+1:], r.Entropy[i:])
			r.Entropy[i] = oe
			continue
		}
		e := &r.Entropy[i]
		e.Entropy = weightedMean(e.Entropy, e.Samples, oe.Entropy, oe.Samples)
		e.Samples += oe.Samples
	}
	if o.Updated.After(r.Updated) {
		r.Updated = o.Updated
	}
}

func runningMean(mean float64, n int, x float64) float64 {
	return mean + (x-mean)/float64(n+1)
}

func weightedMean(a float64, na int, b float64, nb int) float64 {
	if na+nb == 0 {
		return 0
	}
	return (a*float64(na) + b*float64(nb)) / float64(na+nb)
}

// Average groups results by fingerprint and averages each group. Aborted
// runs are skipped. Records are ordered by agent count, then sample size.
func Average(results []simulation.Result) []Record {
	byFP := make(map[string]*Record)
	for _, res := range results {
		if res.Aborted {
			continue
		}
		fp := Fingerprint(res.Config)
		rec, ok := byFP[fp]
		if !ok {
			cfg := res.Config
			cfg.Seed = 0
			rec = &Record{Fingerprint: fp, Config: cfg}
			byFP[fp] = rec
		}
		rec.add(res)
		if res.Finished.After(rec.Updated) {
			rec.Updated = res.Finished
		}
	}

	records := make([]Record, 0, len(byFP))
	for _, rec := range byFP {
		records = append(records, *rec)
	}
	sortRecords(records)
	return records
}

func sortRecords(records []Record) {
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i].Config, records[j].Config
		if a.AgentCount != b.AgentCount {
			return a.AgentCount < b.AgentCount
		}
		if a.SampleSize != b.SampleSize {
			return a.SampleSize < b.SampleSize
		}
		if a.Model != b.Model {
			return a.Model < b.Model
		}
		return records[i].Fingerprint < records[j].Fingerprint
	})
}

// ResultsFile is the on-disk JSON collection of averaged records. New runs
// are merged into existing records, so repeated sweeps refine the averages.
type ResultsFile struct {
	Version int      `json:"version"`
	Records []Record `json:"records"`
}

const resultsVersion = 1

// LoadResults reads a results file. A missing file yields an empty one.
func LoadResults(path string) (*ResultsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &ResultsFile{Version: resultsVersion}, nil
		}
		return nil, cerrors.IOWrap(err, cerrors.ErrIOReadFailed, "failed to read results file").
			WithContext("path", path)
	}

	var f ResultsFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, cerrors.IOWrap(err, cerrors.ErrIOParseFailed, "failed to parse results file").
			WithContext("path", path)
	}
	if f.Version == 0 {
		f.Version = resultsVersion
	}
	return &f, nil
}

// Merge averages results and folds them into the file. It returns the
// records touched.
func (f *ResultsFile) Merge(results []simulation.Result) []Record {
	fresh := Average(results)
	for _, rec := range fresh {
		if existing := f.find(rec.Fingerprint); existing != nil {
			existing.merge(rec)
			continue
		}
		f.Records = append(f.Records, rec)
	}
	sortRecords(f.Records)
	return fresh
}

// Find returns the record for cfg.
func (f *ResultsFile) Find(cfg simulation.Config) (*Record, bool) {
	rec := f.find(Fingerprint(cfg))
	return rec, rec != nil
}

func (f *ResultsFile) find(fp string) *Record {
	for i := range f.Records {
		if f.Records[i].Fingerprint == fp {
			return &f.Records[i]
		}
	}
	return nil
}

// Save writes the file atomically, creating parent directories.
func (f *ResultsFile) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return cerrors.IOWrap(err, cerrors.ErrIOWriteFailed, "failed to create output directory").
			WithContext("path", filepath.Dir(path))
	}

	if f.Version == 0 {
		f.Version = resultsVersion
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return cerrors.IOWrap(err, cerrors.ErrIOWriteFailed, "failed to encode results")
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return cerrors.IOWrap(err, cerrors.ErrIOWriteFailed, "failed to write results file").
			WithContext("path", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return cerrors.IOWrap(err, cerrors.ErrIOWriteFailed, "failed to replace results file").
			WithContext("path", path)
	}
	return nil
}
