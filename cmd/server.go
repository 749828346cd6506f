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
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wtsi-hgi/obsmon/server"
	"github.com/wtsi-hgi/obsmon/store"
)

var (
	serverDB   string
	serverBind string
)

// serverCmd represents the server command.
var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Serve the inventory over a read-only JSON API.",
	Long: `Serve the inventory over a read-only JSON API.

Endpoints:
  GET /rest/v1/cycles
  GET /rest/v1/taskruns?date=YYYYMMDD&cycle=H
  GET /rest/v1/files?status=STATUS
  GET /rest/v1/files/<id>

Nothing served here ever writes, so it is safe to run alongside scans.`,
	Run: func(_ *cobra.Command, _ []string) {
		loadDotEnv()

		dbPath := flagOrEnv(serverDB, envDB)
		if dbPath == "" {
			die("a database path is required")
		}

		bind := flagOrEnv(serverBind, envBind)
		if bind == "" {
			bind = ":8080"
		}

		db, err := store.Open(dbPath)
		if err != nil {
			die("could not open database: %s", err)
		}

		defer db.Close()

		s := server.New(db, appLogger)

		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

		go func() {
			<-sigs

			if err := s.Stop(); err != nil {
				warn("shutdown error: %s", err)
			}
		}()

		if err := s.Start(bind); err != nil {
			die("server failed: %s", err)
		}
	},
}

func init() {
	RootCmd.AddCommand(serverCmd)

	serverCmd.Flags().StringVarP(&serverDB, "db", "d", "", "path to the inventory database")
	serverCmd.Flags().StringVarP(&serverBind, "bind", "b", "", "address to listen on (default :8080)")
}
