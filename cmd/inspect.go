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

package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/wtsi-hgi/obsmon/rules"
	"github.com/wtsi-hgi/obsmon/store"
)

var (
	inspectDB    string
	inspectHours int
)

// inspectCmd represents the inspect command.
var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Run the anomaly rules over recently-ingested files.",
	Long: `Run the anomaly rules over recently-ingested files.

Loads historical volume baselines from the inventory, then evaluates every
OK file ingested within the last --hours against the anomaly rules
(structure, observation count, time window, volume, physical ranges, data
quality) and reclassifies each as OK, WARNING or FAIL. All statuses are
written back in one transaction.`,
	Run: func(_ *cobra.Command, _ []string) {
		loadDotEnv()

		dbPath := flagOrEnv(inspectDB, envDB)
		if dbPath == "" {
			die("a database path is required")
		}

		db, err := store.Open(dbPath)
		if err != nil {
			die("could not open database: %s", err)
		}

		defer db.Close()

		since := time.Now().Add(-time.Duration(inspectHours) * time.Hour)

		counts, err := rules.Inspect(db, since, appLogger)
		if err != nil {
			die("inspection failed: %s", err)
		}

		info("evaluated %d files: %d warned, %d failed",
			counts.Evaluated, counts.Warned, counts.Failed)
	},
}

func init() {
	RootCmd.AddCommand(inspectCmd)

	inspectCmd.Flags().StringVarP(&inspectDB, "db", "d", "", "path to the inventory database")
	inspectCmd.Flags().IntVar(&inspectHours, "hours", 24, "evaluate files ingested within this many hours")
}
