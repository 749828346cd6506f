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

import "github.com/wtsi-hgi/obsmon/inspect"

// PrevState is a read-only snapshot of what the previous scan recorded per
// root-relative file path, used by the scanner to decide what to re-inspect.
type PrevState map[string]inspect.PrevFile

// State bulk-reads the previous scan's per-file modification times,
// integrity statuses and observation counts in a single query. It is a
// snapshot, never a lock: a scan using it and a concurrent reporting query
// never block each other.
func (s *Store) State() (PrevState, error) {
	rows, err := s.q.Query(
		"SELECT [file_path], [mtime_ns], [status], [obs_count] FROM [file_inventory] ORDER BY [id]")
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	state := make(PrevState)

	for rows.Next() {
		var (
			path   string
			prev   inspect.PrevFile
			status string
		)

		if err := rows.Scan(&path, &prev.MTime, &status, &prev.ObsCount); err != nil {
			return nil, err
		}

		prev.Status = inspect.Status(status)
		state[path] = prev
	}

	return state, rows.Err()
}
