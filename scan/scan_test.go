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

package scan

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/inconshreveable/log15"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/wtsi-hgi/obsmon/inspect"
	"github.com/wtsi-hgi/obsmon/internal/obsdata"
	"github.com/wtsi-hgi/obsmon/store"
)

const (
	argoRel = "gdas.20251027/00/gdas.t00z.insitu_profile_argo.nc4"
	bufrRel = "gdas.20251027/00/bufr/gdas.t00z.adpupa.bufr_d"
)

func discardLogger() log15.Logger {
	l := log15.New()
	l.SetHandler(log15.DiscardHandler())

	return l
}

// writeCycleRoot fabricates a data root with one cycle containing a gdas dump
// task that claims an observation file and a bufr directory, plus a startup
// task with no log of its own. It returns the root and the absolute path of
// the claimed observation file.
func writeCycleRoot(t *testing.T) (string, string) {
	t.Helper()

	root := t.TempDir()

	master := obsdata.MasterLine("2025-10-27T00:12:03", "host01", "gdas_marine_dump",
		"123", "SUCCEEDED", 42, 0, 1) +
		obsdata.MasterLine("2025-10-27T00:00:05", "host01", "startup", "120", "SUCCEEDED", 2, 0, 1)

	taskLog := obsdata.CopyLine("2025-10-27T00:11:58", "/stage/argo.nc", filepath.Join(root, argoRel)) +
		obsdata.MkdirLine("2025-10-27T00:12:00", filepath.Join(root, "gdas.20251027/00/bufr"))

	err := obsdata.WriteLogs(root, obsdata.Cycle{
		ID:       "2025102700",
		Master:   master,
		TaskLogs: map[string]string{"marine_dump.log": taskLog},
	})
	if err != nil {
		t.Fatal(err)
	}

	argoPath, err := obsdata.WriteDataFile(root, argoRel, 2048)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := obsdata.WriteDataFile(root, bufrRel, 512); err != nil {
		t.Fatal(err)
	}

	// not a recognized data extension, must be ignored during expansion
	if _, err := obsdata.WriteDataFile(root, "gdas.20251027/00/bufr/notes.txt", 16); err != nil {
		t.Fatal(err)
	}

	return root, argoPath
}

func TestTaskNames(t *testing.T) {
	Convey("Task names split into run-type and canonical name", t, func() {
		for _, test := range [...]struct {
			raw, runType, name string
		}{
			{"gdas_marine_dump", "gdas", "marine_dump"},
			{"gfs_atmos_prep", "gfs", "atmos_prep"},
			{"enkf_update", "enkf", "update"},
			{"startup", RunTypeUnknown, "startup"},
			{"cleanup_tmp", RunTypeUnknown, "cleanup_tmp"},
		} {
			runType, name := SplitTaskName(test.raw)
			So(runType, ShouldEqual, test.runType)
			So(name, ShouldEqual, test.name)
		}
	})
}

func TestClassifyFile(t *testing.T) {
	Convey("Files classify into observation space and category", t, func() {
		Convey("dump-style names take the third dot segment", func() {
			space, category := classifyFile("gdas.20251027/00/gdas.t00z.insitu_profile_argo.nc4")
			So(space, ShouldEqual, "insitu_profile_argo")
			So(category, ShouldEqual, "insitu")
		})

		Convey("plain names take their stem", func() {
			space, category := classifyFile("obs/sst_avhrr.nc")
			So(space, ShouldEqual, "sst_avhrr")
			So(category, ShouldEqual, "sst")

			space, category = classifyFile("obs/adpupa.nc")
			So(space, ShouldEqual, "adpupa")
			So(category, ShouldEqual, RunTypeUnknown)
		})

		Convey("exchange-format files belong to no observation space", func() {
			space, category := classifyFile("gdas.20251027/00/bufr/gdas.t00z.adpupa.bufr_d")
			So(space, ShouldBeEmpty)
			So(category, ShouldBeEmpty)
		})
	})
}

func TestScanner(t *testing.T) {
	Convey("Given a data root with one cycle", t, func() {
		root, argoPath := writeCycleRoot(t)

		reader := obsdata.NewReader()
		reader.Add(argoPath, obsdata.SSTDataset(50, 1761523200))

		s := New(root, inspect.New(reader), nil)

		Convey("CycleLogs finds only well-formed master logs", func() {
			err := os.WriteFile(filepath.Join(root, "logs", "scheduler.log"), []byte("x"), 0600)
			So(err, ShouldBeNil)

			logs, err := s.CycleLogs()
			So(err, ShouldBeNil)
			So(logs, ShouldResemble, []string{filepath.Join(root, "logs", "2025102700.log")})
		})

		Convey("ScanCycle discovers the cycle's tasks and files", func() {
			rec, err := s.ScanCycle(filepath.Join(root, "logs", "2025102700.log"))
			So(err, ShouldBeNil)
			So(rec, ShouldNotBeNil)
			So(rec.Date, ShouldEqual, "20251027")
			So(rec.Hour, ShouldEqual, 0)
			So(len(rec.Tasks), ShouldEqual, 2)

			dump := rec.Tasks[0]
			So(dump.Name, ShouldEqual, "marine_dump")
			So(dump.RunType, ShouldEqual, "gdas")
			So(dump.Exec.JobID, ShouldEqual, "123")
			So(dump.Logfile, ShouldEqual, filepath.Join(root, "logs", "2025102700", "marine_dump.log"))
			So(len(dump.Files), ShouldEqual, 2)

			argo := dump.Files[0]
			So(argo.RelPath, ShouldEqual, argoRel)
			So(argo.ObsSpace, ShouldEqual, "insitu_profile_argo")
			So(argo.Category, ShouldEqual, "insitu")
			So(argo.Sources, ShouldResemble, []string{"/stage/argo.nc"})
			So(argo.Result.Status, ShouldEqual, inspect.StatusOK)
			So(argo.Result.ObsCount, ShouldEqual, 50)

			bufr := dump.Files[1]
			So(bufr.RelPath, ShouldEqual, bufrRel)
			So(bufr.ObsSpace, ShouldBeEmpty)
			So(bufr.Result.Status, ShouldEqual, inspect.StatusOK)
			So(bufr.Result.Size, ShouldEqual, 512)

			startup := rec.Tasks[1]
			So(startup.Name, ShouldEqual, "startup")
			So(startup.RunType, ShouldEqual, RunTypeUnknown)
			So(startup.Logfile, ShouldBeEmpty)
			So(startup.Files, ShouldBeEmpty)
		})

		Convey("exchange-format files are never opened by the reader", func() {
			_, err := s.ScanCycle(filepath.Join(root, "logs", "2025102700.log"))
			So(err, ShouldBeNil)
			So(reader.Opens(filepath.Join(root, bufrRel)), ShouldEqual, 0)
			So(reader.Opens(argoPath), ShouldEqual, 1)
		})
	})
}

func TestUpdate(t *testing.T) {
	Convey("Given a data root and an empty inventory", t, func() {
		root, argoPath := writeCycleRoot(t)

		reader := obsdata.NewReader()
		reader.Add(argoPath, obsdata.SSTDataset(50, 1761523200))

		inspector := inspect.New(reader)

		db, err := store.Open(filepath.Join(t.TempDir(), "inventory.db"))
		So(err, ShouldBeNil)

		defer db.Close()

		logger := discardLogger()

		Convey("Update persists everything the scan discovers", func() {
			counts, err := Update(db, root, inspector, logger)
			So(err, ShouldBeNil)
			So(counts, ShouldResemble, store.ScanCounts{Processed: 2, Changed: 2})

			cycles, err := db.Cycles()
			So(err, ShouldBeNil)
			So(len(cycles), ShouldEqual, 2)
			So(cycles[0].RunType, ShouldEqual, "gdas")
			So(cycles[0].TaskRuns, ShouldEqual, 1)
			So(cycles[0].Files, ShouldEqual, 2)
			So(cycles[1].RunType, ShouldEqual, RunTypeUnknown)
			So(cycles[1].Files, ShouldEqual, 0)

			files, err := db.Files("")
			So(err, ShouldBeNil)
			So(len(files), ShouldEqual, 2)

			var argoID int64

			for _, f := range files {
				if f.Path == argoRel {
					argoID = f.ID

					So(f.ObsSpace, ShouldEqual, "insitu_profile_argo")
					So(f.Status, ShouldEqual, string(inspect.StatusOK))
					So(f.ObsCount, ShouldEqual, 50)
				}
			}

			So(argoID, ShouldBeGreaterThan, 0)

			detail, ok, err := db.FileByID(argoID)
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			So(detail.Sources, ShouldResemble, []string{"/stage/argo.nc"})
			So(detail.Domain, ShouldNotBeNil)
			So(len(detail.Statistics), ShouldEqual, 3) // latitude, longitude, SST

			Convey("a second scan of an unchanged root skips every file", func() {
				counts, err := Update(db, root, inspector, logger)
				So(err, ShouldBeNil)
				So(counts, ShouldResemble, store.ScanCounts{Processed: 2, Skipped: 2})
				So(reader.Opens(argoPath), ShouldEqual, 1)

				files, err := db.Files("")
				So(err, ShouldBeNil)
				So(len(files), ShouldEqual, 2)
			})

			Convey("a touched file is re-inspected, the rest stay cached", func() {
				future := time.Now().Add(time.Hour)
				So(os.Chtimes(argoPath, future, future), ShouldBeNil)

				counts, err := Update(db, root, inspector, logger)
				So(err, ShouldBeNil)
				So(counts, ShouldResemble, store.ScanCounts{Processed: 2, Changed: 1, Skipped: 1})
				So(reader.Opens(argoPath), ShouldEqual, 2)
			})

			Convey("the scan is recorded in the audit log", func() {
				recorded, _, ok, err := db.LastScan()
				So(err, ShouldBeNil)
				So(ok, ShouldBeTrue)
				So(recorded, ShouldResemble, counts)
			})
		})

		Convey("a file that fails inspection is counted and kept", func() {
			_, err := obsdata.WriteDataFile(root, argoRel, 0)
			So(err, ShouldBeNil)

			counts, err := Update(db, root, inspector, logger)
			So(err, ShouldBeNil)
			So(counts.Failed, ShouldEqual, 1)

			empty, err := db.Files(string(inspect.StatusEmpty))
			So(err, ShouldBeNil)
			So(len(empty), ShouldEqual, 1)
			So(empty[0].Path, ShouldEqual, argoRel)
		})
	})
}
