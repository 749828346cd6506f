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
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/inconshreveable/log15"

	"github.com/wtsi-hgi/obsmon/inspect"
	"github.com/wtsi-hgi/obsmon/store"
)

// Update runs a full discovery scan of the data root and persists everything
// found, one transaction per cycle. A failing cycle is logged and skipped so
// the remaining cycles still land; the per-cycle errors are combined into the
// returned error alongside the counts of the work that did complete. A scan
// audit row is recorded even when some cycles failed.
func Update(db *store.Store, root string, inspector *inspect.Inspector, logger log15.Logger) (store.ScanCounts, error) {
	started := time.Now()

	state, err := db.State()
	if err != nil {
		return store.ScanCounts{}, err
	}

	s := New(root, inspector, state)

	logs, err := s.CycleLogs()
	if err != nil {
		return store.ScanCounts{}, err
	}

	var (
		counts store.ScanCounts
		merr   *multierror.Error
	)

	for _, masterPath := range logs {
		rec, err := s.ScanCycle(masterPath)
		if err != nil {
			logger.Error("cycle scan failed", "log", masterPath, "err", err)
			merr = multierror.Append(merr, err)

			continue
		}

		if rec == nil {
			logger.Warn("cycle resolved no tasks", "log", masterPath)

			continue
		}

		if err := persistCycle(db, rec, state, &counts, logger); err != nil {
			logger.Error("cycle persist failed", "log", masterPath, "err", err)
			merr = multierror.Append(merr, err)
		}
	}

	if _, err := db.RecordScan(started, time.Now(), counts); err != nil {
		merr = multierror.Append(merr, err)
	}

	logger.Info("scan complete", "cycles", len(logs), "processed", counts.Processed,
		"changed", counts.Changed, "skipped", counts.Skipped, "failed", counts.Failed)

	return counts, merr.ErrorOrNil()
}

// persistCycle writes one cycle's tasks and files in a single transaction: a
// mid-cycle failure rolls the whole cycle back rather than leaving task runs
// without their files.
func persistCycle(db *store.Store, rec *CycleRecord, state store.PrevState,
	counts *store.ScanCounts, logger log15.Logger) error {
	return db.Transaction(func(tx *store.Store) error {
		for _, task := range rec.Tasks {
			taskID, err := tx.GetOrCreateTask(task.Name)
			if err != nil {
				return err
			}

			runID, _, err := tx.LogTaskRun(store.TaskRun{
				TaskID:   taskID,
				Date:     rec.Date,
				Cycle:    rec.Hour,
				RunType:  task.RunType,
				JobID:    task.Exec.JobID,
				Status:   task.Exec.State,
				ExitCode: task.Exec.ExitCode,
				Attempt:  task.Exec.Attempt,
				Host:     task.Exec.Host,
				Logfile:  task.Logfile,
				Start:    task.Exec.Start,
				End:      task.Exec.End,
				Runtime:  task.Exec.Runtime,
			})
			if err != nil {
				return err
			}

			for _, file := range task.Files {
				if err := persistFile(tx, runID, file, state, counts, logger); err != nil {
					return err
				}
			}
		}

		return nil
	})
}

func persistFile(tx *store.Store, runID int64, file FileRecord, state store.PrevState,
	counts *store.ScanCounts, logger log15.Logger) error {
	counts.Processed++

	status := file.Result.Status
	if status == inspect.StatusUnchanged {
		counts.Skipped++

		// the previous status stands; only the task-run link is refreshed
		status = state[file.RelPath].Status
	} else {
		counts.Changed++

		if status != inspect.StatusOK {
			counts.Failed++

			logger.Warn("file inspection flagged", "path", file.RelPath,
				"status", status, "err", file.Result.Err)
		}
	}

	obsSpaceID, err := resolveObsSpace(tx, file)
	if err != nil {
		return err
	}

	fileID, _, err := tx.LogFileInventory(store.File{
		TaskRunID:  runID,
		ObsSpaceID: obsSpaceID,
		Path:       file.RelPath,
		Status:     string(status),
		Size:       file.Result.Size,
		MTime:      file.Result.MTime,
		ObsCount:   file.Result.ObsCount,
		Error:      file.Result.Err,
		Extras:     fileExtras(file.Result),
	})
	if err != nil {
		return err
	}

	if file.Result.Status == inspect.StatusUnchanged {
		return nil
	}

	return persistFileDetail(tx, fileID, obsSpaceID, file)
}

func resolveObsSpace(tx *store.Store, file FileRecord) (int64, error) {
	if file.ObsSpace == "" {
		return 0, nil
	}

	categoryID, err := tx.GetOrCreateCategory(file.Category)
	if err != nil {
		return 0, err
	}

	return tx.GetOrCreateObsSpace(file.ObsSpace, categoryID)
}

func fileExtras(r inspect.Result) *store.FileExtras {
	if len(r.Properties) == 0 && len(r.Schema) == 0 && len(r.Anomalies) == 0 {
		return nil
	}

	return &store.FileExtras{
		Properties: r.Properties,
		Schema:     r.Schema,
		Anomalies:  r.Anomalies,
	}
}

func persistFileDetail(tx *store.Store, fileID, obsSpaceID int64, file FileRecord) error {
	if err := tx.LogFileSourceInputs(fileID, file.Sources); err != nil {
		return err
	}

	if file.Result.Status != inspect.StatusOK {
		return nil
	}

	if obsSpaceID != 0 && len(file.Result.Schema) > 0 {
		if err := tx.RegisterFileSchema(obsSpaceID, file.Result.Schema); err != nil {
			return err
		}
	}

	if err := tx.LogFileDomain(fileID, file.Result.Domain); err != nil {
		return err
	}

	return tx.LogVariableStatistics(fileID, file.Result.Stats)
}
