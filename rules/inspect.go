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
	"time"

	"github.com/inconshreveable/log15"

	"github.com/wtsi-hgi/obsmon/inspect"
	"github.com/wtsi-hgi/obsmon/store"
)

// Counts summarises one inspection batch.
type Counts struct {
	Evaluated int
	Warned    int
	Failed    int
}

// Inspect runs the rule registry over every OK file ingested at or after
// since and writes the reclassifications back, all in one transaction.
// Exchange-format files carry no observation space and are left alone.
func Inspect(db *store.Store, since time.Time, logger log15.Logger) (Counts, error) {
	baselines, err := db.VolumeBaselines(time.Now())
	if err != nil {
		return Counts{}, err
	}

	files, err := db.FilesForInspection(since)
	if err != nil {
		return Counts{}, err
	}

	ctx := &Context{Baselines: baselines}

	var counts Counts

	err = db.Transaction(func(tx *store.Store) error {
		for _, f := range files {
			if f.ObsSpace == "" {
				continue
			}

			counts.Evaluated++

			if err := inspectFile(tx, f, ctx, &counts, logger); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return counts, err
	}

	logger.Info("inspection complete", "evaluated", counts.Evaluated,
		"warned", counts.Warned, "failed", counts.Failed)

	return counts, nil
}

func inspectFile(tx *store.Store, f store.InspectionFile, ctx *Context,
	counts *Counts, logger log15.Logger) error {
	extras, err := tx.FileExtrasFor(f.ID)
	if err != nil {
		return err
	}

	stats, err := tx.FileStatistics(f.ID)
	if err != nil {
		return err
	}

	rec := &Record{
		InspectionFile: f,
		Schema:         extras.Schema,
		Anomalies:      extras.Anomalies,
		Stats:          stats,
	}

	msgs := Evaluate(rec, ctx)
	if len(msgs) == 0 {
		return nil
	}

	status, message := Classify(msgs)

	switch status {
	case inspect.StatusWarning:
		counts.Warned++

		logger.Warn("file flagged", "path", f.Path, "status", status, "msg", message)
	case inspect.StatusFail:
		counts.Failed++

		logger.Warn("file flagged", "path", f.Path, "status", status, "msg", message)
	default:
	}

	return tx.UpdateFileStatus(f.ID, string(status), message)
}
