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
	"fmt"
	"os"
	"strconv"

	"code.cloudfoundry.org/bytefmt"
	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/wtsi-hgi/obsmon/store"
)

var (
	reportDB     string
	reportStatus string
)

// reportCmd represents the report command.
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the ingested cycles and file statuses.",
	Long: `Print the ingested cycles and file statuses.

Shows a table of every ingested (date, cycle, run-type) with its task run
and file counts, followed by the file inventory with humanized sizes and
observation counts. Use --status to only list files in a given state, e.g.
FAIL or WARNING.`,
	Run: func(_ *cobra.Command, _ []string) {
		loadDotEnv()
		setCLIFormat()

		dbPath := flagOrEnv(reportDB, envDB)
		if dbPath == "" {
			die("a database path is required")
		}

		db, err := store.Open(dbPath)
		if err != nil {
			die("could not open database: %s", err)
		}

		defer db.Close()

		if err := report(db); err != nil {
			die("report failed: %s", err)
		}
	},
}

func init() {
	RootCmd.AddCommand(reportCmd)

	reportCmd.Flags().StringVarP(&reportDB, "db", "d", "", "path to the inventory database")
	reportCmd.Flags().StringVarP(&reportStatus, "status", "s", "", "only list files with this status")
}

func report(db *store.Store) error {
	if err := reportCycles(db); err != nil {
		return err
	}

	if err := reportFiles(db); err != nil {
		return err
	}

	return reportLastScan(db)
}

func reportCycles(db *store.Store) error {
	cycles, err := db.Cycles()
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Date", "Cycle", "Run Type", "Task Runs", "Files", "Failed"})

	for _, c := range cycles {
		table.Append([]string{
			c.Date,
			fmt.Sprintf("%02d", c.Cycle),
			c.RunType,
			strconv.Itoa(c.TaskRuns),
			strconv.Itoa(c.Files),
			strconv.Itoa(c.Failed),
		})
	}

	table.Render()

	return nil
}

func reportFiles(db *store.Store) error {
	files, err := db.Files(reportStatus)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Task", "Path", "Status", "Size", "Obs", "Message"})

	var totalSize, totalObs int64

	for _, f := range files {
		totalSize += f.Size
		totalObs += f.ObsCount

		table.Append([]string{
			f.Task,
			f.Path,
			f.Status,
			bytefmt.ByteSize(uint64(f.Size)),
			humanize.Comma(f.ObsCount),
			f.Error,
		})
	}

	table.SetFooter([]string{"", "", "total",
		bytefmt.ByteSize(uint64(totalSize)), humanize.Comma(totalObs), ""})
	table.Render()

	return nil
}

func reportLastScan(db *store.Store) error {
	counts, finished, ok, err := db.LastScan()
	if err != nil {
		return err
	}

	if !ok {
		cliPrint("no scans recorded\n")

		return nil
	}

	cliPrint("last scan %s: %d files processed, %d changed, %d skipped, %d failed\n",
		humanize.Time(finished), counts.Processed, counts.Changed, counts.Skipped, counts.Failed)

	return nil
}
