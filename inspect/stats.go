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

package inspect

import (
	"math"
	"strings"

	"golang.org/x/exp/slices"

	"github.com/wtsi-hgi/obsmon/obsfile"
)

// statGroups are the groups whose variables get per-variable statistics.
var statGroups = []string{"ObsValue", "ObsError", "MetaData"} //nolint:gochecknoglobals

var nonStatTypes = []string{"string", "char"} //nolint:gochecknoglobals

// extractStatistics computes min/max/mean/std for every numeric variable in
// the statistics groups, excluding time-like variables. Unmasked fill values
// (magnitude at or above FillThreshold) are excluded from the statistics and
// reported as anomalies; a variable that is entirely fill produces an anomaly
// instead of a degenerate statistics row.
func extractStatistics(d obsfile.Dataset, schema obsfile.Schema) ([]VarStats, []string, error) {
	var (
		stats     []VarStats
		anomalies []string
	)

	paths := make([]string, 0, len(schema))

	for path := range schema {
		if wantStatistics(path, schema[path]) {
			paths = append(paths, path)
		}
	}

	slices.Sort(paths)

	for _, path := range paths {
		v, ok := d.Variable(path)
		if !ok {
			continue
		}

		vs, anoms, err := variableStatistics(path, v)
		if err != nil {
			return nil, nil, err
		}

		if vs != nil {
			stats = append(stats, *vs)
		}

		anomalies = append(anomalies, anoms...)
	}

	return stats, anomalies, nil
}

func wantStatistics(path string, entry obsfile.Entry) bool {
	if !slices.Contains(statGroups, group(path)) {
		return false
	}

	if slices.Contains(nonStatTypes, entry.Type) {
		return false
	}

	return !isTimeLike(basename(path))
}

func isTimeLike(name string) bool {
	return strings.Contains(strings.ToLower(name), "time")
}

func basename(path string) string {
	if _, name, found := strings.Cut(path, "/"); found {
		return name
	}

	return path
}

func variableStatistics(path string, v obsfile.Variable) (*VarStats, []string, error) {
	values, mask, err := v.ReadMasked()
	if err != nil {
		return nil, nil, err
	}

	var (
		valid    stat
		haveFill bool
		total    int
	)

	for n, val := range values {
		if mask[n] {
			continue
		}

		total++

		if math.Abs(val) >= FillThreshold {
			haveFill = true

			continue
		}

		valid.add(val)
	}

	name := basename(path)

	if total > 0 && valid.n == 0 {
		return nil, []string{"Contains 100% Fill Values in " + name}, nil
	}

	var anomalies []string

	if haveFill {
		anomalies = append(anomalies, "Contains Fill Values in "+name)
	}

	if valid.n == 0 {
		return nil, anomalies, nil
	}

	return &VarStats{
		Name:  name,
		Group: group(path),
		Min:   valid.min,
		Max:   valid.max,
		Mean:  valid.mean(),
		Std:   valid.std(),
	}, anomalies, nil
}

// stat accumulates running statistics over valid values.
type stat struct {
	n        int
	min, max float64
	sum      float64
	sumSq    float64
}

func (s *stat) add(v float64) {
	if s.n == 0 {
		s.min, s.max = v, v
	} else {
		s.min = math.Min(s.min, v)
		s.max = math.Max(s.max, v)
	}

	s.n++
	s.sum += v
	s.sumSq += v * v
}

func (s *stat) mean() float64 {
	return s.sum / float64(s.n)
}

func (s *stat) std() float64 {
	mean := s.mean()

	variance := s.sumSq/float64(s.n) - mean*mean
	if variance < 0 {
		variance = 0
	}

	return math.Sqrt(variance)
}
