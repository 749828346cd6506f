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

package rules

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/inconshreveable/log15"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/wtsi-hgi/obsmon/inspect"
	"github.com/wtsi-hgi/obsmon/obsfile"
	"github.com/wtsi-hgi/obsmon/store"
)

func floatPtr(v float64) *float64 { return &v }

func okRecord() *Record {
	return &Record{
		InspectionFile: store.InspectionFile{
			ID:       1,
			Path:     "gdas.20251027/00/gdas.t00z.insitu_profile_argo.nc4",
			ObsSpace: "insitu_profile_argo",
			RunType:  "gdas",
			Date:     "20251027",
			Cycle:    0,
			Status:   string(inspect.StatusOK),
			ObsCount: 500,
		},
		Schema: obsfile.Schema{
			"MetaData/latitude":              {Type: "float32", Rank: 1},
			"ObsValue/seaSurfaceTemperature": {Type: "float32", Rank: 2},
		},
	}
}

func TestRules(t *testing.T) {
	ctx := &Context{Baselines: map[store.BaselineKey]float64{}}

	Convey("A clean record passes every rule", t, func() {
		So(Evaluate(okRecord(), ctx), ShouldBeEmpty)
	})

	Convey("The structural rule", t, func() {
		Convey("flags observations without recognised groups", func() {
			rec := okRecord()
			rec.Schema = obsfile.Schema{"wholesale/stuff": {Type: "float32"}}

			msgs := Evaluate(rec, ctx)
			So(len(msgs), ShouldEqual, 1)
			So(msgs[0].Text, ShouldContainSubstring, "Structural Failure")

			status, _ := Classify(msgs)
			So(status, ShouldEqual, inspect.StatusFail)
		})

		Convey("ignores files with no observations", func() {
			rec := okRecord()
			rec.Schema = nil
			rec.ObsCount = 0

			for _, msg := range Evaluate(rec, ctx) {
				So(msg.Text, ShouldNotContainSubstring, "Structural Failure")
			}
		})
	})

	Convey("A file with zero observations fails", t, func() {
		rec := okRecord()
		rec.ObsCount = 0

		msgs := Evaluate(rec, ctx)
		So(len(msgs), ShouldEqual, 1)
		So(msgs[0].Text, ShouldEqual, "Zero Observations")

		status, message := Classify(msgs)
		So(status, ShouldEqual, inspect.StatusFail)
		So(message, ShouldEqual, "Zero Observations")
	})

	Convey("The time-consistency rule", t, func() {
		Convey("accepts a start time inside the cycle window", func() {
			rec := okRecord()
			rec.HasTime = true
			rec.TimeStart = time.Date(2025, 10, 27, 8, 30, 0, 0, time.UTC)

			So(Evaluate(rec, ctx), ShouldBeEmpty)
		})

		Convey("fails a start time outside the cycle window", func() {
			rec := okRecord()
			rec.HasTime = true
			rec.TimeStart = time.Date(2025, 10, 27, 10, 0, 0, 0, time.UTC)

			msgs := Evaluate(rec, ctx)
			So(len(msgs), ShouldEqual, 1)
			So(msgs[0].Text, ShouldContainSubstring, "Time Mismatch")

			status, _ := Classify(msgs)
			So(status, ShouldEqual, inspect.StatusFail)
		})
	})

	Convey("A file below its volume baseline only warns", t, func() {
		rec := okRecord()
		rec.ObsCount = 40

		low := &Context{Baselines: map[store.BaselineKey]float64{
			{ObsSpace: "insitu_profile_argo", RunType: "gdas"}: 100,
		}}

		msgs := Evaluate(rec, low)
		So(len(msgs), ShouldEqual, 1)
		So(msgs[0].Text, ShouldContainSubstring, "Low Observation Count")

		status, _ := Classify(msgs)
		So(status, ShouldEqual, inspect.StatusWarning)

		Convey("but an empty file is only ever Zero Observations", func() {
			rec.ObsCount = 0

			status, message := Classify(Evaluate(rec, low))
			So(status, ShouldEqual, inspect.StatusFail)
			So(message, ShouldEqual, "Zero Observations")
		})
	})

	Convey("The physical-range rule", t, func() {
		bounded := func(min, max, std float64) store.StatWithBounds {
			return store.StatWithBounds{
				Variable: "seaSurfaceTemperature",
				Units:    "K",
				Min:      min,
				Max:      max,
				Mean:     (min + max) / 2,
				Std:      std,
				ValidMin: floatPtr(200),
				ValidMax: floatPtr(350),
			}
		}

		Convey("accepts statistics within bounds", func() {
			rec := okRecord()
			rec.Stats = []store.StatWithBounds{bounded(274, 293, 4)}

			So(Evaluate(rec, ctx), ShouldBeEmpty)
		})

		Convey("flags underflow and overflow", func() {
			rec := okRecord()
			rec.Stats = []store.StatWithBounds{bounded(150, 360, 40)}

			msgs := Evaluate(rec, ctx)
			So(len(msgs), ShouldEqual, 2)
			So(msgs[0].Text, ShouldContainSubstring, "Underflow")
			So(msgs[1].Text, ShouldContainSubstring, "Overflow")

			status, _ := Classify(msgs)
			So(status, ShouldEqual, inspect.StatusFail)
		})

		Convey("reinterprets Celsius values under Kelvin bounds as a note", func() {
			rec := okRecord()
			rec.Stats = []store.StatWithBounds{bounded(5, 28, 4)}

			msgs := Evaluate(rec, ctx)
			So(len(msgs), ShouldEqual, 1)
			So(msgs[0].Text, ShouldContainSubstring, "Celsius")
			So(msgs[0].Informational, ShouldBeTrue)

			status, message := Classify(msgs)
			So(status, ShouldEqual, inspect.StatusOK)
			So(message, ShouldContainSubstring, "Celsius")
		})

		Convey("never reinterprets a variable whose unit is not Kelvin", func() {
			rec := okRecord()
			rec.Stats = []store.StatWithBounds{{
				Variable: "salinity",
				Units:    "psu",
				Min:      -260,
				Max:      -240,
				Mean:     -250,
				Std:      5,
				ValidMin: floatPtr(0),
				ValidMax: floatPtr(45),
			}}

			msgs := Evaluate(rec, ctx)
			So(len(msgs), ShouldEqual, 1)
			So(msgs[0].Text, ShouldContainSubstring, "Underflow")
			So(msgs[0].Informational, ShouldBeFalse)

			status, _ := Classify(msgs)
			So(status, ShouldEqual, inspect.StatusFail)
		})

		Convey("nor a Kelvin variable whose mean is not believable as Celsius", func() {
			st := bounded(150, 170, 5)
			st.ValidMin = floatPtr(400)
			st.ValidMax = floatPtr(460)

			rec := okRecord()
			rec.Stats = []store.StatWithBounds{st}

			msgs := Evaluate(rec, ctx)
			So(len(msgs), ShouldEqual, 1)
			So(msgs[0].Text, ShouldContainSubstring, "Underflow")

			status, _ := Classify(msgs)
			So(status, ShouldEqual, inspect.StatusFail)
		})

		Convey("suspects a frozen sensor when the spread collapses", func() {
			st := bounded(280, 280.001, 0.0001)
			st.MinVariation = floatPtr(0.01)

			rec := okRecord()
			rec.Stats = []store.StatWithBounds{st}

			msgs := Evaluate(rec, ctx)
			So(len(msgs), ShouldEqual, 1)
			So(msgs[0].Text, ShouldContainSubstring, "Frozen Sensor")

			status, _ := Classify(msgs)
			So(status, ShouldEqual, inspect.StatusWarning)
		})

		Convey("needs more than a handful of observations to call a sensor frozen", func() {
			st := bounded(280, 280.001, 0.0001)
			st.MinVariation = floatPtr(0.01)

			rec := okRecord()
			rec.ObsCount = 5
			rec.Stats = []store.StatWithBounds{st}

			So(Evaluate(rec, ctx), ShouldBeEmpty)
		})

		Convey("leaves un-curated variables alone", func() {
			rec := okRecord()
			rec.Stats = []store.StatWithBounds{{Variable: "sequenceNumber", Min: -5, Max: 1e6, Std: 0}}

			So(Evaluate(rec, ctx), ShouldBeEmpty)
		})
	})

	Convey("Extraction anomalies are surfaced verbatim and warn", t, func() {
		rec := okRecord()
		rec.Anomalies = []string{"Contains Fill Values in airTemperature"}

		msgs := Evaluate(rec, ctx)
		So(len(msgs), ShouldEqual, 1)
		So(msgs[0].Text, ShouldEqual, rec.Anomalies[0])

		status, message := Classify(msgs)
		So(status, ShouldEqual, inspect.StatusWarning)
		So(message, ShouldEqual, rec.Anomalies[0])
	})

	Convey("Findings combine with semicolons and the worst severity wins", t, func() {
		rec := okRecord()
		rec.ObsCount = 0
		rec.Anomalies = []string{"Contains Fill Values in airTemperature"}

		status, message := Classify(Evaluate(rec, ctx))
		So(status, ShouldEqual, inspect.StatusFail)
		So(message, ShouldEqual, "Zero Observations; Contains Fill Values in airTemperature")
	})
}

func TestInspect(t *testing.T) {
	Convey("Given a store with freshly-ingested files", t, func() {
		db, err := store.Open(filepath.Join(t.TempDir(), "inventory.db"))
		So(err, ShouldBeNil)

		defer db.Close()

		taskID, err := db.GetOrCreateTask("marine_dump")
		So(err, ShouldBeNil)

		categoryID, err := db.GetOrCreateCategory("insitu")
		So(err, ShouldBeNil)

		spaceID, err := db.GetOrCreateObsSpace("insitu_profile_argo", categoryID)
		So(err, ShouldBeNil)

		runID, _, err := db.LogTaskRun(store.TaskRun{
			TaskID: taskID, Date: "20251027", Cycle: 0, RunType: "gdas", Status: "SUCCEEDED",
		})
		So(err, ShouldBeNil)

		now := time.Now().UnixNano()
		schema := obsfile.Schema{"ObsValue/seaSurfaceTemperature": {Type: "float32", Rank: 2}}

		newFile := func(path string, count int64) int64 {
			id, _, err := db.LogFileInventory(store.File{
				TaskRunID: runID, ObsSpaceID: spaceID, Path: path,
				Status: string(inspect.StatusOK), Size: 1024, MTime: now, ObsCount: count,
				Extras: &store.FileExtras{Schema: schema},
			})
			So(err, ShouldBeNil)

			return id
		}

		emptyID := newFile("gdas.20251027/00/gdas.t00z.insitu_profile_argo.nc4", 0)
		cleanID := newFile("gdas.20251027/06/gdas.t06z.insitu_profile_argo.nc4", 500)

		bufrID, _, err := db.LogFileInventory(store.File{
			TaskRunID: runID, Path: "gdas.20251027/00/bufr/gdas.t00z.adpupa.bufr_d",
			Status: string(inspect.StatusOK), Size: 512, MTime: now,
		})
		So(err, ShouldBeNil)

		logger := log15.New()
		logger.SetHandler(log15.DiscardHandler())

		Convey("Inspect reclassifies only the files the rules flag", func() {
			counts, err := Inspect(db, time.Unix(0, 0), logger)
			So(err, ShouldBeNil)
			So(counts, ShouldResemble, Counts{Evaluated: 2, Failed: 1})

			failed, err := db.Files(string(inspect.StatusFail))
			So(err, ShouldBeNil)
			So(len(failed), ShouldEqual, 1)
			So(failed[0].ID, ShouldEqual, emptyID)
			So(failed[0].Error, ShouldEqual, "Zero Observations")

			ok, err := db.Files(string(inspect.StatusOK))
			So(err, ShouldBeNil)
			So(len(ok), ShouldEqual, 2)

			for _, f := range ok {
				So(f.ID, ShouldBeIn, []int64{cleanID, bufrID})
				So(f.Error, ShouldBeEmpty)
			}
		})
	})
}
