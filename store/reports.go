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

import "time"

// CycleSummary is one (date, cycle, run_type) with its task run and file
// outcome counts, for reporting.
type CycleSummary struct {
	Date     string `json:"date"`
	Cycle    int    `json:"cycle"`
	RunType  string `json:"runType"`
	TaskRuns int    `json:"taskRuns"`
	Files    int    `json:"files"`
	Failed   int    `json:"failed"`
}

// Cycles lists every ingested cycle, newest first. These queries are
// read-only; running them during a scan never blocks either side.
func (s *Store) Cycles() ([]CycleSummary, error) {
	rows, err := s.q.Query(`SELECT [tr].[run_date], [tr].[cycle], [tr].[run_type],
		 COUNT(DISTINCT [tr].[id]),
		 COUNT([fi].[id]),
		 COUNT(CASE WHEN [fi].[status] IN ('FAIL', 'CORRUPT') THEN 1 END)
		FROM [task_runs] AS [tr]
		LEFT JOIN [file_inventory] AS [fi] ON [fi].[task_run_id] = [tr].[id]
		GROUP BY [tr].[run_date], [tr].[cycle], [tr].[run_type]
		ORDER BY [tr].[run_date] DESC, [tr].[cycle] DESC, [tr].[run_type]`)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	var cycles []CycleSummary

	for rows.Next() {
		var c CycleSummary

		if err := rows.Scan(&c.Date, &c.Cycle, &c.RunType, &c.TaskRuns, &c.Files, &c.Failed); err != nil {
			return nil, err
		}

		cycles = append(cycles, c)
	}

	return cycles, rows.Err()
}

// TaskRunSummary is one task run for reporting.
type TaskRunSummary struct {
	ID      int64   `json:"id"`
	Task    string  `json:"task"`
	Date    string  `json:"date"`
	Cycle   int     `json:"cycle"`
	RunType string  `json:"runType"`
	JobID   string  `json:"jobId"`
	Status  string  `json:"status"`
	Attempt int     `json:"attempt"`
	Host    string  `json:"host"`
	Runtime float64 `json:"runtimeSeconds"`
}

// TaskRuns lists the task runs for the given date and cycle; an empty date
// means all dates, a negative cycle means all cycles.
func (s *Store) TaskRuns(date string, cycle int) ([]TaskRunSummary, error) {
	rows, err := s.q.Query(`SELECT [tr].[id], [t].[name], [tr].[run_date], [tr].[cycle],
		 [tr].[run_type], [tr].[job_id], [tr].[status], [tr].[attempt], [tr].[host],
		 [tr].[runtime_seconds]
		FROM [task_runs] AS [tr]
		JOIN [tasks] AS [t] ON [t].[id] = [tr].[task_id]
		WHERE (? = '' OR [tr].[run_date] = ?) AND (? < 0 OR [tr].[cycle] = ?)
		ORDER BY [tr].[run_date] DESC, [tr].[cycle] DESC, [t].[name]`,
		date, date, cycle, cycle)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	var trs []TaskRunSummary

	for rows.Next() {
		var tr TaskRunSummary

		if err := rows.Scan(&tr.ID, &tr.Task, &tr.Date, &tr.Cycle, &tr.RunType, &tr.JobID,
			&tr.Status, &tr.Attempt, &tr.Host, &tr.Runtime); err != nil {
			return nil, err
		}

		trs = append(trs, tr)
	}

	return trs, rows.Err()
}

// FileSummary is one inventory row for reporting.
type FileSummary struct {
	ID       int64  `json:"id"`
	Task     string `json:"task"`
	Date     string `json:"date"`
	Cycle    int    `json:"cycle"`
	RunType  string `json:"runType"`
	ObsSpace string `json:"obsSpace"`
	Path     string `json:"path"`
	Status   string `json:"status"`
	Size     int64  `json:"sizeBytes"`
	ObsCount int64  `json:"obsCount"`
	Error    string `json:"error"`
}

// Files lists inventory rows, optionally filtered by status, newest first.
func (s *Store) Files(status string) ([]FileSummary, error) {
	rows, err := s.q.Query(`SELECT [fi].[id], [t].[name], [tr].[run_date], [tr].[cycle],
		 [tr].[run_type], COALESCE([o].[name], ''), [fi].[file_path], [fi].[status],
		 [fi].[size_bytes], [fi].[obs_count], [fi].[error_message]
		FROM [file_inventory] AS [fi]
		JOIN [task_runs] AS [tr] ON [tr].[id] = [fi].[task_run_id]
		JOIN [tasks] AS [t] ON [t].[id] = [tr].[task_id]
		LEFT JOIN [obs_spaces] AS [o] ON [o].[id] = [fi].[obs_space_id]
		WHERE (? = '' OR [fi].[status] = ?)
		ORDER BY [fi].[id] DESC`, status, status)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	var files []FileSummary

	for rows.Next() {
		var f FileSummary

		if err := rows.Scan(&f.ID, &f.Task, &f.Date, &f.Cycle, &f.RunType, &f.ObsSpace,
			&f.Path, &f.Status, &f.Size, &f.ObsCount, &f.Error); err != nil {
			return nil, err
		}

		files = append(files, f)
	}

	return files, rows.Err()
}

// FileDomain is a file's persisted bounding box for reporting.
type FileDomain struct {
	TimeStart *time.Time `json:"timeStart,omitempty"`
	TimeEnd   *time.Time `json:"timeEnd,omitempty"`
	LatMin    *float64   `json:"latMin,omitempty"`
	LatMax    *float64   `json:"latMax,omitempty"`
	LonMin    *float64   `json:"lonMin,omitempty"`
	LonMax    *float64   `json:"lonMax,omitempty"`
	DepthMin  *float64   `json:"depthMin,omitempty"`
	DepthMax  *float64   `json:"depthMax,omitempty"`
}

// FileDetail is the full picture of one inventory row.
type FileDetail struct {
	FileSummary
	Sources    []string         `json:"sources,omitempty"`
	Domain     *FileDomain      `json:"domain,omitempty"`
	Statistics []StatWithBounds `json:"statistics,omitempty"`
	Anomalies  []string         `json:"anomalies,omitempty"`
}

// FileByID returns the full detail of one inventory row, or ok false if the
// id is unknown.
func (s *Store) FileByID(id int64) (*FileDetail, bool, error) {
	files, err := s.filesByID(id)
	if err != nil || len(files) == 0 {
		return nil, false, err
	}

	detail := &FileDetail{FileSummary: files[0]}

	if detail.Sources, err = s.fileSources(id); err != nil {
		return nil, false, err
	}

	if detail.Domain, err = s.fileDomain(id); err != nil {
		return nil, false, err
	}

	if detail.Statistics, err = s.FileStatistics(id); err != nil {
		return nil, false, err
	}

	extras, err := s.FileExtrasFor(id)
	if err != nil {
		return nil, false, err
	}

	detail.Anomalies = extras.Anomalies

	return detail, true, nil
}

func (s *Store) filesByID(id int64) ([]FileSummary, error) {
	rows, err := s.q.Query(`SELECT [fi].[id], [t].[name], [tr].[run_date], [tr].[cycle],
		 [tr].[run_type], COALESCE([o].[name], ''), [fi].[file_path], [fi].[status],
		 [fi].[size_bytes], [fi].[obs_count], [fi].[error_message]
		FROM [file_inventory] AS [fi]
		JOIN [task_runs] AS [tr] ON [tr].[id] = [fi].[task_run_id]
		JOIN [tasks] AS [t] ON [t].[id] = [tr].[task_id]
		LEFT JOIN [obs_spaces] AS [o] ON [o].[id] = [fi].[obs_space_id]
		WHERE [fi].[id] = ?`, id)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	var files []FileSummary

	for rows.Next() {
		var f FileSummary

		if err := rows.Scan(&f.ID, &f.Task, &f.Date, &f.Cycle, &f.RunType, &f.ObsSpace,
			&f.Path, &f.Status, &f.Size, &f.ObsCount, &f.Error); err != nil {
			return nil, err
		}

		files = append(files, f)
	}

	return files, rows.Err()
}

func (s *Store) fileSources(id int64) ([]string, error) {
	rows, err := s.q.Query(
		"SELECT [source_path] FROM [file_source_inputs] WHERE [file_id] = ? ORDER BY [rowid]", id)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	var sources []string

	for rows.Next() {
		var src string

		if err := rows.Scan(&src); err != nil {
			return nil, err
		}

		sources = append(sources, src)
	}

	return sources, rows.Err()
}

func (s *Store) fileDomain(id int64) (*FileDomain, error) {
	var (
		d                  FileDomain
		timeStart, timeEnd *int64
	)

	err := s.q.QueryRow(`SELECT [time_start], [time_end], [lat_min], [lat_max], [lon_min],
		 [lon_max], [depth_min], [depth_max] FROM [file_data_domain] WHERE [file_id] = ?`, id).
		Scan(&timeStart, &timeEnd, &d.LatMin, &d.LatMax, &d.LonMin, &d.LonMax,
			&d.DepthMin, &d.DepthMax)
	if err != nil {
		return nil, ignoreNoRows(err)
	}

	if timeStart != nil {
		t := time.Unix(*timeStart, 0).UTC()
		d.TimeStart = &t
	}

	if timeEnd != nil {
		t := time.Unix(*timeEnd, 0).UTC()
		d.TimeEnd = &t
	}

	return &d, nil
}
