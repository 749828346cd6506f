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

	"github.com/google/uuid"
)

// ScanCounts are the per-scan outcome counters.
type ScanCounts struct {
	Processed int
	Changed   int
	Skipped   int
	Failed    int
}

// RecordScan appends one scan audit row and returns its generated id.
func (s *Store) RecordScan(started, finished time.Time, counts ScanCounts) (string, error) {
	id := uuid.NewString()

	_, err := s.q.Exec(`INSERT INTO [scans]
		([id], [started_at], [finished_at], [processed], [changed], [skipped], [failed])
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, started.Unix(), finished.Unix(), counts.Processed, counts.Changed,
		counts.Skipped, counts.Failed)

	return id, err
}

// LastScan returns the most recent scan audit row, or ok false if no scan has
// been recorded.
func (s *Store) LastScan() (ScanCounts, time.Time, bool, error) {
	var (
		counts   ScanCounts
		finished int64
	)

	err := s.q.QueryRow(`SELECT [finished_at], [processed], [changed], [skipped], [failed]
		FROM [scans] ORDER BY [finished_at] DESC, [rowid] DESC LIMIT 1`).
		Scan(&finished, &counts.Processed, &counts.Changed, &counts.Skipped, &counts.Failed)
	if err != nil {
		return counts, time.Time{}, false, ignoreNoRows(err)
	}

	return counts, time.Unix(finished, 0).UTC(), true, nil
}
