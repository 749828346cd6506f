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
	"database/sql"
	"errors"
	"time"
)

// TaskRun is one execution of a task for a (date, cycle, run-type) triple.
type TaskRun struct {
	TaskID   int64
	Date     string // YYYYMMDD
	Cycle    int    // hour of day
	RunType  string
	JobID    string
	Status   string
	ExitCode int
	Attempt  int
	Host     string
	Logfile  string
	Start    time.Time
	End      time.Time
	Runtime  float64
}

// LogTaskRun upserts a task run on its (task, date, cycle, run_type) natural
// key. Re-discovering the same key updates the scheduler and timing fields in
// place; a second row is never created.
func (s *Store) LogTaskRun(tr TaskRun) (int64, UpsertOutcome, error) {
	outcome, err := s.upsertOutcome(
		"SELECT [id] FROM [task_runs] WHERE [task_id] = ? AND [run_date] = ? AND [cycle] = ? AND [run_type] = ?",
		tr.TaskID, tr.Date, tr.Cycle, tr.RunType)
	if err != nil {
		return 0, outcome, err
	}

	_, err = s.q.Exec(`INSERT INTO [task_runs]
		([task_id], [run_date], [cycle], [run_type], [job_id], [status], [exit_code], [attempt],
		 [host], [logfile], [started_at], [finished_at], [runtime_seconds], [updated_at])
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT([task_id], [run_date], [cycle], [run_type]) DO UPDATE SET
		 [job_id] = excluded.[job_id],
		 [status] = excluded.[status],
		 [exit_code] = excluded.[exit_code],
		 [attempt] = excluded.[attempt],
		 [host] = excluded.[host],
		 [logfile] = excluded.[logfile],
		 [started_at] = excluded.[started_at],
		 [finished_at] = excluded.[finished_at],
		 [runtime_seconds] = excluded.[runtime_seconds],
		 [updated_at] = excluded.[updated_at]`,
		tr.TaskID, tr.Date, tr.Cycle, tr.RunType, tr.JobID, tr.Status, tr.ExitCode, tr.Attempt,
		tr.Host, tr.Logfile, nullTime(tr.Start), nullTime(tr.End), tr.Runtime, time.Now().Unix())
	if err != nil {
		return 0, outcome, err
	}

	var id int64

	err = s.q.QueryRow(
		"SELECT [id] FROM [task_runs] WHERE [task_id] = ? AND [run_date] = ? AND [cycle] = ? AND [run_type] = ?",
		tr.TaskID, tr.Date, tr.Cycle, tr.RunType).Scan(&id)

	return id, outcome, err
}

func (s *Store) upsertOutcome(sel string, args ...any) (UpsertOutcome, error) {
	var id int64

	err := s.q.QueryRow(sel, args...).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return Inserted, nil
	} else if err != nil {
		return Inserted, err
	}

	return Updated, nil
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}

	return t.Unix()
}
