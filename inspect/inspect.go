/*******************************************************************************
 * Copyright (c) 2026 Genome Research Ltd.
 *
 * Permission is hereby granted, free of charge, to any person obtaining
 * a copy of this software and associated documentation files (the
 * "Software"), to deal in the Software without restriction, including
 * without limitation the rights to use, copy, modify, merge, publish,
 * distribute, sublicense, and/or sell copies of the Software, and to
 * permit persons to whom the Software is furnished to do so, subject to
 * the following conditions:
 *
 * The above copyright notice and this permission notice shall be included
 * in all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND,
 * EXPRESS OR IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF
 * MERCHANTABILITY, FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.
 * IN NO EVENT SHALL THE AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY
 * CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER IN AN ACTION OF CONTRACT,
 * TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN CONNECTION WITH THE
 * SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
 ******************************************************************************/

// Package inspect classifies observation files and extracts their schema,
// spatiotemporal domain and per-variable statistics. Files whose modification
// time has not changed since a previous inspection are not re-opened; their
// prior classification is carried forward.
package inspect

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/wtsi-hgi/obsmon/obsfile"
)

// Status classifies the integrity of one observation file.
type Status string

const (
	StatusOK      Status = "OK"
	StatusMissing Status = "MISSING"
	StatusEmpty   Status = "EMPTY"
	StatusCorrupt Status = "CORRUPT"
	StatusWarning Status = "WARNING"
	StatusFail    Status = "FAIL"

	// StatusUnchanged is a sentinel meaning the file was not re-inspected
	// because its modification time matched the previous scan; the prior
	// status applies. It is never persisted.
	StatusUnchanged Status = "UNCHANGED"
)

// FillThreshold is the magnitude at or above which a value is treated as an
// unmasked fill value and excluded from statistics.
const FillThreshold = 1e30

// MetaGroup and the value groups define the expected file structure: position
// and time variables live under MetaData, physical observations under the
// value groups.
const MetaGroup = "MetaData"

// ValueGroups are the group names whose variables carry observed quantities,
// in the order their lengths are consulted when no count dimension exists.
var ValueGroups = []string{"ObsValue", "ObsError", "PreQC"} //nolint:gochecknoglobals

// countDimensions are the dimension names checked, in order, for the file's
// observation count.
var countDimensions = []string{"Location", "nlocs", "Observations"} //nolint:gochecknoglobals

// PrevFile is what a previous scan recorded about a file, as supplied by the
// store's state snapshot.
type PrevFile struct {
	MTime    int64
	Status   Status
	ObsCount int64
}

// VarStats holds the statistics computed for one physical variable.
type VarStats struct {
	Name  string
	Group string
	Min   float64
	Max   float64
	Mean  float64
	Std   float64
}

// Result is the outcome of inspecting one file.
type Result struct {
	Status     Status
	Size       int64
	MTime      int64
	ObsCount   int64
	Schema     obsfile.Schema
	Properties map[string]string
	Stats      []VarStats
	Domain     *Domain
	Anomalies  []string
	Err        string
}

// Inspector classifies files using the given scientific file reader.
type Inspector struct {
	reader obsfile.Reader
}

// New returns an Inspector that opens datasets with the given reader. A nil
// reader downgrades every inspection to the shallow stat-only form.
func New(reader obsfile.Reader) *Inspector {
	return &Inspector{reader: reader}
}

// Inspect classifies the file at the given path. prev may be nil if the file
// has never been seen before; when prev records the same modification time as
// the file currently has, the file is not opened and the previous status and
// observation count are carried forward under the StatusUnchanged sentinel.
//
// Deep inspection failures are converted to StatusCorrupt with the error text
// preserved; Inspect itself never returns an error.
func (i *Inspector) Inspect(path string, prev *PrevFile) Result {
	r, done := statFile(path, prev)
	if done {
		return r
	}

	if i.reader == nil {
		r.Status = StatusOK

		return r
	}

	if err := i.deepInspect(path, &r); err != nil {
		return Result{
			Status: StatusCorrupt,
			Size:   r.Size,
			MTime:  r.MTime,
			Err:    err.Error(),
		}
	}

	r.Status = StatusOK

	return r
}

// InspectShallow classifies the file at the given path by presence, size and
// modification time alone, never opening it. It exists for exchange-format
// files the reader cannot parse; a present, non-empty, unchanged-aware file is
// simply OK.
func (i *Inspector) InspectShallow(path string, prev *PrevFile) Result {
	r, done := statFile(path, prev)
	if done {
		return r
	}

	r.Status = StatusOK

	return r
}

// statFile handles the classifications decidable from the stat call alone,
// reporting done when the caller should not read the file's content.
func statFile(path string, prev *PrevFile) (Result, bool) {
	fi, err := os.Stat(path)
	if err != nil {
		return Result{Status: StatusMissing}, true
	}

	r := Result{
		Size:  fi.Size(),
		MTime: fi.ModTime().UnixNano(),
	}

	if r.Size == 0 {
		r.Status = StatusEmpty

		return r, true
	}

	if prev != nil && prev.MTime == r.MTime {
		r.Status = StatusUnchanged
		r.ObsCount = prev.ObsCount

		return r, true
	}

	return r, false
}

func (i *Inspector) deepInspect(path string, r *Result) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic during inspection: %v", p)
		}
	}()

	d, err := i.reader.Open(path)
	if err != nil {
		return err
	}

	defer d.Close()

	count, countSource := observationCount(d)
	r.ObsCount = int64(count)

	if r.Schema, err = extractSchema(d); err != nil {
		return err
	}

	r.Properties = map[string]string{
		"variables":    strconv.Itoa(len(r.Schema)),
		"count_source": countSource,
	}

	if r.Domain, err = extractDomain(d); err != nil {
		return err
	}

	r.Stats, r.Anomalies, err = extractStatistics(d, r.Schema)

	return err
}

// observationCount finds the file's observation count by checking a fixed
// ordered list of candidate dimension names, falling back to the longest
// variable in the value groups. The expected miss of a candidate is not an
// error.
func observationCount(d obsfile.Dataset) (int, string) {
	for _, name := range countDimensions {
		if l, ok := d.DimensionLen(name); ok {
			return l, "dimension:" + name
		}
	}

	longest := 0

	d.Walk(func(path string, v obsfile.Variable) error { //nolint:errcheck
		if group(path) != ValueGroups[0] {
			return nil
		}

		if shape := v.Shape(); len(shape) > 0 && shape[0] > longest {
			longest = shape[0]
		}

		return nil
	})

	return longest, "group:" + ValueGroups[0]
}

func extractSchema(d obsfile.Dataset) (obsfile.Schema, error) {
	schema := make(obsfile.Schema)
	hasVertical := hasVerticalCoordinate(d)

	err := d.Walk(func(path string, v obsfile.Variable) error {
		schema[path] = obsfile.Entry{
			Type: v.Type(),
			Dims: v.Dims(),
			Rank: inferRank(path, v.Dims(), hasVertical),
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return schema, nil
}

// inferRank refines a variable's dimensionality by naming convention:
// metadata variables are rank 1, natively multi-dimensioned variables rank 3,
// and single-dimensioned value variables rank 2, or 3 when a sibling
// vertical or spectral coordinate means each location is really a profile.
func inferRank(path string, dims []string, hasVertical bool) int {
	if group(path) == MetaGroup {
		return 1
	}

	if len(dims) > 1 {
		return 3
	}

	if isValueGroup(group(path)) {
		if hasVertical {
			return 3
		}

		return 2
	}

	return 1
}

func hasVerticalCoordinate(d obsfile.Dataset) bool {
	for _, path := range []string{"MetaData/depth", "MetaData/pressure", "MetaData/height"} {
		if _, ok := d.Variable(path); ok {
			return true
		}
	}

	_, ok := d.DimensionLen("Channel")

	return ok
}

func group(path string) string {
	g, _, found := strings.Cut(path, "/")
	if !found {
		return ""
	}

	return g
}

func isValueGroup(g string) bool {
	for _, vg := range ValueGroups {
		if g == vg {
			return true
		}
	}

	return false
}
