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
	"github.com/inconshreveable/log15"
	"github.com/spf13/cobra"

	"github.com/wtsi-hgi/obsmon/inspect"
	"github.com/wtsi-hgi/obsmon/obsfile"
	"github.com/wtsi-hgi/obsmon/scan"
	"github.com/wtsi-hgi/obsmon/store"
)

var (
	scanDB      string
	scanRoot    string
	scanBounds  string
	scanLogfile string
	scanDebug   bool
)

// scanCmd represents the scan command.
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the pipeline logs and ingest what each cycle produced.",
	Long: `Scan the pipeline logs and ingest what each cycle produced.

Reads the master log of every cycle under the data root's logs directory,
resolves each task's own log to find the output files it claims, inspects
each file's content, and upserts everything into the inventory database.
Files whose modification time is unchanged since the last scan are not
re-read.

With --bounds, first registers variable physical bounds from the given YAML
curation file; the inspect subcommand's range checks use them.

The data root and database path may also be supplied via the OBSMON_ROOT and
OBSMON_DB environment variables (or a .env file).`,
	Run: func(_ *cobra.Command, _ []string) {
		loadDotEnv()

		if scanDebug {
			appLogger.SetHandler(log15.LvlFilterHandler(log15.LvlDebug, log15.StderrHandler))
		}

		if scanLogfile != "" {
			logToFile(scanLogfile)
		}

		dbPath := flagOrEnv(scanDB, envDB)
		root := flagOrEnv(scanRoot, envRoot)

		if dbPath == "" || root == "" {
			die("both a database path and a data root are required")
		}

		db, err := store.Open(dbPath)
		if err != nil {
			die("could not open database: %s", err)
		}

		defer db.Close()

		if scanBounds != "" {
			registerBounds(db, scanBounds)
		}

		reader := obsfile.DefaultReader()
		if reader == nil {
			warn("no observation file reader registered; deep content inspection disabled")
		}

		counts, err := scan.Update(db, root, inspect.New(reader), appLogger)
		if err != nil {
			die("scan failed: %s", err)
		}

		info("scanned %d files: %d changed, %d skipped, %d failed",
			counts.Processed, counts.Changed, counts.Skipped, counts.Failed)
	},
}

func init() {
	RootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringVarP(&scanDB, "db", "d", "", "path to the inventory database")
	scanCmd.Flags().StringVarP(&scanRoot, "root", "r", "", "path to the pipeline data root")
	scanCmd.Flags().StringVarP(&scanBounds, "bounds", "b", "", "path to a variable bounds YAML file")
	scanCmd.Flags().StringVarP(&scanLogfile, "logfile", "l", "", "log to this file instead of stderr")
	scanCmd.Flags().BoolVar(&scanDebug, "debug", false, "include debug messages in the log")
}

func registerBounds(db *store.Store, path string) {
	bounds, err := store.LoadBounds(path)
	if err != nil {
		die("could not load bounds file: %s", err)
	}

	if err := db.RegisterBounds(bounds); err != nil {
		die("could not register bounds: %s", err)
	}

	info("registered bounds for %d variables", len(bounds))
}
