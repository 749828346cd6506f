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

package store

import (
	"time"
)

const baselineWindow = 30 * 24 * time.Hour

// BaselineKey identifies a historical volume baseline.
type BaselineKey struct {
	ObsSpace string
	RunType  string
}

// VolumeBaselines computes, for every (obs_space, run_type) with OK files
// produced in the 30 days before now, half of the average observation count.
// A file below its baseline is anomalously small. Empty files are excluded
// from the average so a bad cycle cannot drag the baseline towards zero.
func (s *Store) VolumeBaselines(now time.Time) (map[BaselineKey]float64, error) {
	rows, err := s.q.Query(`SELECT [o].[name], [tr].[run_type], AVG([fi].[obs_count]) / 2
		FROM [file_inventory] AS [fi]
		JOIN [task_runs] AS [tr] ON [tr].[id] = [fi].[task_run_id]
		JOIN [obs_spaces] AS [o] ON [o].[id] = [fi].[obs_space_id]
		WHERE [fi].[status] = 'OK' AND [fi].[obs_count] > 0 AND [fi].[mtime_ns] >= ?
		GROUP BY [o].[name], [tr].[run_type]`,
		now.Add(-baselineWindow).UnixNano())
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	baselines := make(map[BaselineKey]float64)

	for rows.Next() {
		var (
			key      BaselineKey
			baseline float64
		)

		if err := rows.Scan(&key.ObsSpace, &key.RunType, &baseline); err != nil {
			return nil, err
		}

		baselines[key] = baseline
	}

	return baselines, rows.Err()
}

// InspectionFile is one file record as seen by the rule engine.
type InspectionFile struct {
	ID        int64
	Path      string
	ObsSpace  string
	RunType   string
	Date      string
	Cycle     int
	Status    string
	ObsCount  int64
	TimeStart time.Time
	HasTime   bool
}

// FilesForInspection returns the OK files ingested at or after since, joined
// with their cycle identity and extracted start time, oldest first. These are
// the candidates for rule-engine reclassification. Selection is on the ingest
// timestamp, not the file's mtime, so a backfill of an old archive is still
// evaluated.
func (s *Store) FilesForInspection(since time.Time) ([]InspectionFile, error) {
	rows, err := s.q.Query(`SELECT [fi].[id], [fi].[file_path], COALESCE([o].[name], ''),
		 [tr].[run_type], [tr].[run_date], [tr].[cycle], [fi].[status], [fi].[obs_count],
		 [fdd].[time_start]
		FROM [file_inventory] AS [fi]
		JOIN [task_runs] AS [tr] ON [tr].[id] = [fi].[task_run_id]
		LEFT JOIN [obs_spaces] AS [o] ON [o].[id] = [fi].[obs_space_id]
		LEFT JOIN [file_data_domain] AS [fdd] ON [fdd].[file_id] = [fi].[id]
		WHERE [fi].[status] = 'OK' AND [fi].[ingested_at] >= ?
		ORDER BY [fi].[id]`, since.UnixNano())
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	var files []InspectionFile

	for rows.Next() {
		var (
			f         InspectionFile
			timeStart *int64
		)

		if err := rows.Scan(&f.ID, &f.Path, &f.ObsSpace, &f.RunType, &f.Date, &f.Cycle,
			&f.Status, &f.ObsCount, &timeStart); err != nil {
			return nil, err
		}

		if timeStart != nil {
			f.TimeStart = time.Unix(*timeStart, 0).UTC()
			f.HasTime = true
		}

		files = append(files, f)
	}

	return files, rows.Err()
}

// StatWithBounds is one statistics row joined against its variable's
// registered physical bounds.
type StatWithBounds struct {
	Variable     string
	Units        string
	Min          float64
	Max          float64
	Mean         float64
	Std          float64
	ValidMin     *float64
	ValidMax     *float64
	MinVariation *float64
}

// FileStatistics returns the file's per-variable statistics joined with each
// variable's registered units and bounds; variables never curated have nil
// bounds.
func (s *Store) FileStatistics(fileID int64) ([]StatWithBounds, error) {
	rows, err := s.q.Query(`SELECT [v].[name], COALESCE([v].[units], ''),
		 [fvs].[min], [fvs].[max], [fvs].[mean], [fvs].[std],
		 [v].[valid_min], [v].[valid_max], [v].[min_variation]
		FROM [file_variable_statistics] AS [fvs]
		JOIN [variables] AS [v] ON [v].[id] = [fvs].[variable_id]
		WHERE [fvs].[file_id] = ?
		ORDER BY [v].[name]`, fileID)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	var stats []StatWithBounds

	for rows.Next() {
		var st StatWithBounds

		if err := rows.Scan(&st.Variable, &st.Units, &st.Min, &st.Max, &st.Mean, &st.Std,
			&st.ValidMin, &st.ValidMax, &st.MinVariation); err != nil {
			return nil, err
		}

		stats = append(stats, st)
	}

	return stats, rows.Err()
}
