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
	"strings"
	"time"

	"github.com/ugorji/go/codec"

	"github.com/wtsi-hgi/obsmon/inspect"
	"github.com/wtsi-hgi/obsmon/obsfile"
)

var jsonHandle codec.JsonHandle //nolint:gochecknoglobals

// FileExtras is the opaque per-file payload stored in the inventory's
// properties column: the free-form property map, the extracted schema, and
// the anomaly strings the inspector attached during extraction.
type FileExtras struct {
	Properties map[string]string
	Schema     obsfile.Schema
	Anomalies  []string
}

// File is one physical output file of a task run.
type File struct {
	TaskRunID  int64
	ObsSpaceID int64 // 0 means no observation space
	Path       string
	Status     string
	Size       int64
	MTime      int64
	ObsCount   int64
	Error      string
	Extras     *FileExtras
}

// LogFileInventory upserts a file on its (task_run, path) natural key,
// refreshing size, mtime, status, observation count, error message and ingest
// timestamp, and returns the row id used as the join key for the file's
// children.
func (s *Store) LogFileInventory(f File) (int64, UpsertOutcome, error) {
	outcome, err := s.upsertOutcome(
		"SELECT [id] FROM [file_inventory] WHERE [task_run_id] = ? AND [file_path] = ?",
		f.TaskRunID, f.Path)
	if err != nil {
		return 0, outcome, err
	}

	var blob []byte

	if f.Extras != nil {
		if err = codec.NewEncoderBytes(&blob, &jsonHandle).Encode(f.Extras); err != nil {
			return 0, outcome, err
		}
	}

	_, err = s.q.Exec(`INSERT INTO [file_inventory]
		([task_run_id], [obs_space_id], [file_path], [status], [size_bytes], [mtime_ns],
		 [obs_count], [error_message], [ingested_at], [properties])
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT([task_run_id], [file_path]) DO UPDATE SET
		 [obs_space_id] = COALESCE(excluded.[obs_space_id], [obs_space_id]),
		 [status] = excluded.[status],
		 [size_bytes] = excluded.[size_bytes],
		 [mtime_ns] = excluded.[mtime_ns],
		 [obs_count] = excluded.[obs_count],
		 [error_message] = excluded.[error_message],
		 [ingested_at] = excluded.[ingested_at],
		 [properties] = COALESCE(excluded.[properties], [properties])`,
		f.TaskRunID, nullID(f.ObsSpaceID), f.Path, f.Status, f.Size, f.MTime,
		f.ObsCount, f.Error, time.Now().UnixNano(), nullBlob(blob))
	if err != nil {
		return 0, outcome, err
	}

	var id int64

	err = s.q.QueryRow("SELECT [id] FROM [file_inventory] WHERE [task_run_id] = ? AND [file_path] = ?",
		f.TaskRunID, f.Path).Scan(&id)

	return id, outcome, err
}

// FileExtrasFor decodes the opaque properties payload of the given file, or
// returns an empty FileExtras if none was stored.
func (s *Store) FileExtrasFor(fileID int64) (*FileExtras, error) {
	var blob []byte

	if err := s.q.QueryRow("SELECT [properties] FROM [file_inventory] WHERE [id] = ?",
		fileID).Scan(&blob); err != nil {
		return nil, err
	}

	extras := &FileExtras{}

	if len(blob) == 0 {
		return extras, nil
	}

	return extras, codec.NewDecoderBytes(blob, &jsonHandle).Decode(extras)
}

// dimensionPlaceholders are schema paths that describe file structure, not
// physical or metadata fields, and so are never registered as variables.
var dimensionPlaceholders = map[string]bool{ //nolint:gochecknoglobals
	"Location":     true,
	"nlocs":        true,
	"Channel":      true,
	"Observations": true,
}

// RegisterFileSchema upserts a Variable row for every group-scoped schema
// entry that is not a structural placeholder, and links each into the given
// observation space's contents. Existing variable type and rank survive
// unless the incoming entry supplies a value.
func (s *Store) RegisterFileSchema(obsSpaceID int64, schema obsfile.Schema) error {
	for path, entry := range schema {
		group, name, found := strings.Cut(path, "/")
		if !found || dimensionPlaceholders[name] || dimensionPlaceholders[path] {
			continue
		}

		varID, err := s.upsertVariable(name, entry)
		if err != nil {
			return err
		}

		if _, err := s.q.Exec(`INSERT OR IGNORE INTO [obs_space_contents]
			([obs_space_id], [variable_id], [group_name]) VALUES (?, ?, ?)`,
			obsSpaceID, varID, group); err != nil {
			return err
		}
	}

	return nil
}

// upsertVariable inserts or updates the global variable registry entry for
// name, coalescing so that a previously known type or rank is never
// overwritten by an absent one.
func (s *Store) upsertVariable(name string, entry obsfile.Entry) (int64, error) {
	if _, err := s.q.Exec(`INSERT INTO [variables] ([name], [data_type], [rank]) VALUES (?, ?, ?)
		ON CONFLICT([name]) DO UPDATE SET
		 [data_type] = COALESCE(excluded.[data_type], [data_type]),
		 [rank] = COALESCE(excluded.[rank], [rank])`,
		name, nullString(entry.Type), nullRank(entry.Rank)); err != nil {
		return 0, err
	}

	var id int64

	err := s.q.QueryRow("SELECT [id] FROM [variables] WHERE [name] = ?", name).Scan(&id)

	return id, err
}

// LogFileSourceInputs replaces the file's lineage rows with the given
// upstream source paths.
func (s *Store) LogFileSourceInputs(fileID int64, sources []string) error {
	if _, err := s.q.Exec("DELETE FROM [file_source_inputs] WHERE [file_id] = ?", fileID); err != nil {
		return err
	}

	for _, src := range sources {
		if _, err := s.q.Exec("INSERT INTO [file_source_inputs] ([file_id], [source_path]) VALUES (?, ?)",
			fileID, src); err != nil {
			return err
		}
	}

	return nil
}

// LogFileDomain replaces the file's 4-D bounding box.
func (s *Store) LogFileDomain(fileID int64, d *inspect.Domain) error {
	if _, err := s.q.Exec("DELETE FROM [file_data_domain] WHERE [file_id] = ?", fileID); err != nil {
		return err
	}

	if d == nil {
		return nil
	}

	var timeStart, timeEnd any

	if d.HasTime() {
		timeStart, timeEnd = d.TimeStart.Unix(), d.TimeEnd.Unix()
	}

	var latMin, latMax, lonMin, lonMax any

	if d.HasPosition() {
		latMin, latMax, lonMin, lonMax = d.LatMin, d.LatMax, d.LonMin, d.LonMax
	}

	_, err := s.q.Exec(`INSERT INTO [file_data_domain]
		([file_id], [time_start], [time_end], [lat_min], [lat_max], [lon_min], [lon_max],
		 [depth_min], [depth_max])
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		fileID, timeStart, timeEnd, latMin, latMax, lonMin, lonMax,
		nullFloatPtr(d.DepthMin), nullFloatPtr(d.DepthMax))

	return err
}

// LogVariableStatistics replaces the file's per-variable statistics rows.
// Statistics whose variable name is not registered are silently dropped.
func (s *Store) LogVariableStatistics(fileID int64, stats []inspect.VarStats) error {
	if _, err := s.q.Exec("DELETE FROM [file_variable_statistics] WHERE [file_id] = ?", fileID); err != nil {
		return err
	}

	for _, st := range stats {
		var varID int64

		err := s.q.QueryRow("SELECT [id] FROM [variables] WHERE [name] = ?", st.Name).Scan(&varID)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		} else if err != nil {
			return err
		}

		if _, err := s.q.Exec(`INSERT INTO [file_variable_statistics]
			([file_id], [variable_id], [min], [max], [mean], [std]) VALUES (?, ?, ?, ?, ?, ?)`,
			fileID, varID, st.Min, st.Max, st.Mean, st.Std); err != nil {
			return err
		}
	}

	return nil
}

// UpdateFileStatus sets the file's status and error message, touching nothing
// else. This is the rule engine's sole write path.
func (s *Store) UpdateFileStatus(fileID int64, status, message string) error {
	_, err := s.q.Exec("UPDATE [file_inventory] SET [status] = ?, [error_message] = ? WHERE [id] = ?",
		status, message, fileID)

	return err
}

func nullID(id int64) any {
	if id == 0 {
		return nil
	}

	return id
}

func nullString(s string) any {
	if s == "" {
		return nil
	}

	return s
}

func nullRank(r int) any {
	if r == 0 {
		return nil
	}

	return r
}

func nullBlob(b []byte) any {
	if len(b) == 0 {
		return nil
	}

	return b
}

func nullFloatPtr(f *float64) any {
	if f == nil {
		return nil
	}

	return *f
}
