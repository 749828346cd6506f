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
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/wtsi-hgi/obsmon/inspect"
	"github.com/wtsi-hgi/obsmon/obsfile"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "inventory.db"))
	if err != nil {
		t.Fatal(err)
	}

	t.Cleanup(func() { s.Close() })

	return s
}

func TestEntities(t *testing.T) {
	Convey("Given a store", t, func() {
		s := openTestStore(t)

		Convey("GetOrCreateTask creates once and returns the same id after", func() {
			id, err := s.GetOrCreateTask("marine_dump")
			So(err, ShouldBeNil)
			So(id, ShouldBeGreaterThan, 0)

			id2, err := s.GetOrCreateTask("marine_dump")
			So(err, ShouldBeNil)
			So(id2, ShouldEqual, id)

			id3, err := s.GetOrCreateTask("snow_prep")
			So(err, ShouldBeNil)
			So(id3, ShouldNotEqual, id)
		})

		Convey("obs spaces are unique on (name, category)", func() {
			marine, err := s.GetOrCreateCategory("insitu")
			So(err, ShouldBeNil)

			satellite, err := s.GetOrCreateCategory("sst")
			So(err, ShouldBeNil)

			a, err := s.GetOrCreateObsSpace("profile_argo", marine)
			So(err, ShouldBeNil)

			b, err := s.GetOrCreateObsSpace("profile_argo", marine)
			So(err, ShouldBeNil)
			So(b, ShouldEqual, a)

			c, err := s.GetOrCreateObsSpace("profile_argo", satellite)
			So(err, ShouldBeNil)
			So(c, ShouldNotEqual, a)
		})
	})
}

func TestLogTaskRun(t *testing.T) {
	Convey("Given a store with a task", t, func() {
		s := openTestStore(t)

		taskID, err := s.GetOrCreateTask("marine_dump")
		So(err, ShouldBeNil)

		tr := TaskRun{
			TaskID: taskID, Date: "20251027", Cycle: 0, RunType: "gdas",
			JobID: "123", Status: "SUCCEEDED", Attempt: 1, Host: "host01", Runtime: 42,
		}

		Convey("LogTaskRun inserts on first sight", func() {
			id, outcome, err := s.LogTaskRun(tr)
			So(err, ShouldBeNil)
			So(outcome, ShouldEqual, Inserted)
			So(id, ShouldBeGreaterThan, 0)

			Convey("and updates in place on re-discovery, last values winning", func() {
				tr.JobID = "129"
				tr.Attempt = 2
				tr.Runtime = 17

				id2, outcome, err := s.LogTaskRun(tr)
				So(err, ShouldBeNil)
				So(outcome, ShouldEqual, Updated)
				So(id2, ShouldEqual, id)

				trs, err := s.TaskRuns("20251027", 0)
				So(err, ShouldBeNil)
				So(len(trs), ShouldEqual, 1)
				So(trs[0].JobID, ShouldEqual, "129")
				So(trs[0].Attempt, ShouldEqual, 2)
				So(trs[0].Runtime, ShouldEqual, 17)
			})

			Convey("while a different run_type gets its own row", func() {
				tr.RunType = "gfs"

				_, outcome, err := s.LogTaskRun(tr)
				So(err, ShouldBeNil)
				So(outcome, ShouldEqual, Inserted)

				trs, err := s.TaskRuns("20251027", 0)
				So(err, ShouldBeNil)
				So(len(trs), ShouldEqual, 2)
			})
		})
	})
}

func TestFileInventory(t *testing.T) { //nolint:funlen
	Convey("Given a store with a task run and an obs space", t, func() {
		s := openTestStore(t)

		taskID, err := s.GetOrCreateTask("marine_dump")
		So(err, ShouldBeNil)

		runID, _, err := s.LogTaskRun(TaskRun{TaskID: taskID, Date: "20251027", RunType: "gdas"})
		So(err, ShouldBeNil)

		catID, err := s.GetOrCreateCategory("insitu")
		So(err, ShouldBeNil)

		spaceID, err := s.GetOrCreateObsSpace("profile_argo", catID)
		So(err, ShouldBeNil)

		file := File{
			TaskRunID:  runID,
			ObsSpaceID: spaceID,
			Path:       "gdas.20251027/00/insitu_profile_argo.nc",
			Status:     "OK",
			Size:       1024,
			MTime:      1000,
			ObsCount:   100,
			Extras: &FileExtras{
				Properties: map[string]string{"count_source": "dimension:Location"},
				Schema: obsfile.Schema{
					"ObsValue/seaSurfaceTemperature": {Type: "float32", Dims: []string{"Location"}, Rank: 2},
				},
				Anomalies: []string{"Contains Fill Values in seaSurfaceTemperature"},
			},
		}

		Convey("LogFileInventory upserts on (task_run, path)", func() {
			id, outcome, err := s.LogFileInventory(file)
			So(err, ShouldBeNil)
			So(outcome, ShouldEqual, Inserted)

			file.Size = 2048
			file.MTime = 2000

			id2, outcome, err := s.LogFileInventory(file)
			So(err, ShouldBeNil)
			So(outcome, ShouldEqual, Updated)
			So(id2, ShouldEqual, id)

			files, err := s.Files("")
			So(err, ShouldBeNil)
			So(len(files), ShouldEqual, 1)
			So(files[0].Size, ShouldEqual, 2048)

			Convey("round-tripping the opaque extras payload", func() {
				extras, err := s.FileExtrasFor(id)
				So(err, ShouldBeNil)
				So(extras.Properties["count_source"], ShouldEqual, "dimension:Location")
				So(extras.Schema["ObsValue/seaSurfaceTemperature"].Rank, ShouldEqual, 2)
				So(extras.Anomalies, ShouldResemble, []string{"Contains Fill Values in seaSurfaceTemperature"})
			})

			Convey("and UpdateFileStatus touches only status and message", func() {
				So(s.UpdateFileStatus(id, "FAIL", "Zero Observations"), ShouldBeNil)

				files, err := s.Files("FAIL")
				So(err, ShouldBeNil)
				So(len(files), ShouldEqual, 1)
				So(files[0].Error, ShouldEqual, "Zero Observations")
				So(files[0].Size, ShouldEqual, 2048)
			})

			Convey("children use replace semantics", func() {
				So(s.RegisterFileSchema(spaceID, file.Extras.Schema), ShouldBeNil)

				stats := []inspect.VarStats{
					{Name: "seaSurfaceTemperature", Min: 274, Max: 293, Mean: 283, Std: 5},
					{Name: "neverRegistered", Min: 0, Max: 1, Mean: 0.5, Std: 0.1},
				}
				So(s.LogVariableStatistics(id, stats), ShouldBeNil)
				So(s.LogVariableStatistics(id, stats), ShouldBeNil)

				got, err := s.FileStatistics(id)
				So(err, ShouldBeNil)
				So(len(got), ShouldEqual, 1)
				So(got[0].Variable, ShouldEqual, "seaSurfaceTemperature")
				So(got[0].Min, ShouldEqual, 274)

				So(s.LogFileSourceInputs(id, []string{"/dump/a.bufr", "/dump/b.bufr"}), ShouldBeNil)
				So(s.LogFileSourceInputs(id, []string{"/dump/c.bufr"}), ShouldBeNil)

				detail, ok, err := s.FileByID(id)
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
				So(detail.Sources, ShouldResemble, []string{"/dump/c.bufr"})
			})
		})

		Convey("State returns the previous scan's snapshot", func() {
			_, _, err := s.LogFileInventory(file)
			So(err, ShouldBeNil)

			state, err := s.State()
			So(err, ShouldBeNil)

			prev, ok := state[file.Path]
			So(ok, ShouldBeTrue)
			So(prev.MTime, ShouldEqual, 1000)
			So(prev.Status, ShouldEqual, inspect.StatusOK)
			So(prev.ObsCount, ShouldEqual, 100)
		})
	})
}

func TestVariableCoalesce(t *testing.T) {
	Convey("Variable upserts never overwrite known values with nulls", t, func() {
		s := openTestStore(t)

		catID, err := s.GetOrCreateCategory("insitu")
		So(err, ShouldBeNil)

		spaceID, err := s.GetOrCreateObsSpace("profile_argo", catID)
		So(err, ShouldBeNil)

		full := obsfile.Schema{"ObsValue/salinity": {Type: "float32", Rank: 2}}
		sparse := obsfile.Schema{"ObsValue/salinity": {}}

		So(s.RegisterFileSchema(spaceID, full), ShouldBeNil)
		So(s.RegisterFileSchema(spaceID, sparse), ShouldBeNil)

		var (
			dataType *string
			rank     *int
		)

		err = s.q.QueryRow("SELECT [data_type], [rank] FROM [variables] WHERE [name] = 'salinity'").
			Scan(&dataType, &rank)
		So(err, ShouldBeNil)
		So(dataType, ShouldNotBeNil)
		So(*dataType, ShouldEqual, "float32")
		So(rank, ShouldNotBeNil)
		So(*rank, ShouldEqual, 2)

		Convey("and content links are never duplicated", func() {
			var n int

			err := s.q.QueryRow("SELECT COUNT(*) FROM [obs_space_contents]").Scan(&n)
			So(err, ShouldBeNil)
			So(n, ShouldEqual, 1)
		})
	})
}

func TestBounds(t *testing.T) {
	Convey("Bounds load from YAML and register against variables", t, func() {
		s := openTestStore(t)

		path := filepath.Join(t.TempDir(), "bounds.yml")
		So(os.WriteFile(path, []byte(`variables:
  - name: seaSurfaceTemperature
    units: K
    valid_min: 200
    valid_max: 350
    min_variation: 0.001
  - name: stationIdentification
`), 0600), ShouldBeNil)

		bounds, err := LoadBounds(path)
		So(err, ShouldBeNil)
		So(len(bounds), ShouldEqual, 2)
		So(s.RegisterBounds(bounds), ShouldBeNil)

		catID, err := s.GetOrCreateCategory("sst")
		So(err, ShouldBeNil)

		spaceID, err := s.GetOrCreateObsSpace("sst_viirs", catID)
		So(err, ShouldBeNil)

		taskID, err := s.GetOrCreateTask("marine_dump")
		So(err, ShouldBeNil)

		runID, _, err := s.LogTaskRun(TaskRun{TaskID: taskID, Date: "20251027", RunType: "gdas"})
		So(err, ShouldBeNil)

		fileID, _, err := s.LogFileInventory(File{
			TaskRunID: runID, ObsSpaceID: spaceID, Path: "a.nc", Status: "OK",
		})
		So(err, ShouldBeNil)

		So(s.RegisterFileSchema(spaceID, obsfile.Schema{
			"ObsValue/seaSurfaceTemperature": {Type: "float32", Rank: 2},
		}), ShouldBeNil)
		So(s.LogVariableStatistics(fileID, []inspect.VarStats{
			{Name: "seaSurfaceTemperature", Min: 5, Max: 28, Mean: 15, Std: 3},
		}), ShouldBeNil)

		stats, err := s.FileStatistics(fileID)
		So(err, ShouldBeNil)
		So(len(stats), ShouldEqual, 1)
		So(stats[0].Units, ShouldEqual, "K")
		So(stats[0].ValidMin, ShouldNotBeNil)
		So(*stats[0].ValidMin, ShouldEqual, 200)
		So(*stats[0].ValidMax, ShouldEqual, 350)
	})
}

func TestBaselines(t *testing.T) {
	Convey("VolumeBaselines halves the 30-day average per (obs_space, run_type)", t, func() {
		s := openTestStore(t)
		now := time.Now()

		catID, err := s.GetOrCreateCategory("insitu")
		So(err, ShouldBeNil)

		spaceID, err := s.GetOrCreateObsSpace("profile_argo", catID)
		So(err, ShouldBeNil)

		taskID, err := s.GetOrCreateTask("marine_dump")
		So(err, ShouldBeNil)

		runID, _, err := s.LogTaskRun(TaskRun{TaskID: taskID, Date: "20251027", RunType: "gdas"})
		So(err, ShouldBeNil)

		for n, count := range []int64{100, 200, 300} {
			_, _, err := s.LogFileInventory(File{
				TaskRunID: runID, ObsSpaceID: spaceID,
				Path: "f" + string(rune('a'+n)) + ".nc", Status: "OK",
				ObsCount: count, MTime: now.UnixNano(),
			})
			So(err, ShouldBeNil)
		}

		_, _, err = s.LogFileInventory(File{
			TaskRunID: runID, ObsSpaceID: spaceID, Path: "old.nc", Status: "OK",
			ObsCount: 100000, MTime: now.Add(-40 * 24 * time.Hour).UnixNano(),
		})
		So(err, ShouldBeNil)

		baselines, err := s.VolumeBaselines(now)
		So(err, ShouldBeNil)
		So(baselines[BaselineKey{ObsSpace: "profile_argo", RunType: "gdas"}], ShouldEqual, 100)

		Convey("and an empty file never drags the baseline down", func() {
			_, _, err := s.LogFileInventory(File{
				TaskRunID: runID, ObsSpaceID: spaceID, Path: "empty.nc", Status: "OK",
				ObsCount: 0, MTime: now.UnixNano(),
			})
			So(err, ShouldBeNil)

			baselines, err := s.VolumeBaselines(now)
			So(err, ShouldBeNil)
			So(baselines[BaselineKey{ObsSpace: "profile_argo", RunType: "gdas"}], ShouldEqual, 100)
		})
	})
}

func TestFilesForInspection(t *testing.T) {
	Convey("FilesForInspection selects on ingest time, not file mtime", t, func() {
		s := openTestStore(t)
		now := time.Now()

		taskID, err := s.GetOrCreateTask("marine_dump")
		So(err, ShouldBeNil)

		runID, _, err := s.LogTaskRun(TaskRun{TaskID: taskID, Date: "20251027", RunType: "gdas"})
		So(err, ShouldBeNil)

		_, _, err = s.LogFileInventory(File{
			TaskRunID: runID, Path: "backfill.nc", Status: "OK",
			ObsCount: 100, MTime: now.Add(-90 * 24 * time.Hour).UnixNano(),
		})
		So(err, ShouldBeNil)

		_, _, err = s.LogFileInventory(File{
			TaskRunID: runID, Path: "broken.nc", Status: "CORRUPT",
			MTime: now.UnixNano(),
		})
		So(err, ShouldBeNil)

		Convey("so a backfilled archive is still evaluated", func() {
			files, err := s.FilesForInspection(now.Add(-time.Hour))
			So(err, ShouldBeNil)
			So(len(files), ShouldEqual, 1)
			So(files[0].Path, ShouldEqual, "backfill.nc")
		})

		Convey("while files ingested before the window are not", func() {
			files, err := s.FilesForInspection(now.Add(time.Hour))
			So(err, ShouldBeNil)
			So(files, ShouldBeEmpty)
		})
	})
}

func TestScans(t *testing.T) {
	Convey("Scan audit rows record counters", t, func() {
		s := openTestStore(t)

		_, _, ok, err := s.LastScan()
		So(err, ShouldBeNil)
		So(ok, ShouldBeFalse)

		counts := ScanCounts{Processed: 10, Changed: 3, Skipped: 6, Failed: 1}

		id, err := s.RecordScan(time.Now().Add(-time.Minute), time.Now(), counts)
		So(err, ShouldBeNil)
		So(id, ShouldNotBeBlank)

		got, _, ok, err := s.LastScan()
		So(err, ShouldBeNil)
		So(ok, ShouldBeTrue)
		So(got, ShouldResemble, counts)
	})
}

func TestTransaction(t *testing.T) {
	Convey("Transaction commits on success and rolls back on error", t, func() {
		s := openTestStore(t)

		err := s.Transaction(func(tx *Store) error {
			_, err := tx.GetOrCreateTask("committed")

			return err
		})
		So(err, ShouldBeNil)

		err = s.Transaction(func(tx *Store) error {
			if _, err := tx.GetOrCreateTask("rolled_back"); err != nil {
				return err
			}

			return Error("boom")
		})
		So(err, ShouldNotBeNil)

		var n int

		So(s.q.QueryRow("SELECT COUNT(*) FROM [tasks]").Scan(&n), ShouldBeNil)
		So(n, ShouldEqual, 1)

		Convey("and refuses to nest", func() {
			err := s.Transaction(func(tx *Store) error {
				return tx.Transaction(func(*Store) error { return nil })
			})
			So(err, ShouldEqual, ErrInTransaction)
		})
	})
}
