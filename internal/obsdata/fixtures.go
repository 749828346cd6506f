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

package obsdata

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	logDirPerms  = 0755
	logFilePerms = 0600
)

// MasterLine formats one master log task line as the pipeline scheduler
// writes it.
func MasterLine(ts, host, task, jobid, state string, runtime float64, exit, try int) string {
	return fmt.Sprintf("%s :: %s :: Task %s, jobid=%s, in state %s (logged), "+
		"ran for %.1f seconds, exit status=%d, try=%d\n", ts, host, task, jobid, state, runtime, exit, try)
}

// CopyLine formats one per-task log trace line claiming an output file.
func CopyLine(ts, src, dest string) string {
	return fmt.Sprintf("%s :: copy %s to %s\n", ts, src, dest)
}

// MkdirLine formats one per-task log trace line claiming an output directory.
func MkdirLine(ts, dest string) string {
	return fmt.Sprintf("%s :: create directory %s\n", ts, dest)
}

// Cycle describes one fabricated pipeline cycle: its YYYYMMDDHH id, the
// content of its master log, and the content of each per-task log by task log
// basename (e.g. "marine_dump.log").
type Cycle struct {
	ID       string
	Master   string
	TaskLogs map[string]string
}

// WriteLogs fabricates a logs/ directory under root containing the given
// cycles.
func WriteLogs(root string, cycles ...Cycle) error {
	for _, c := range cycles {
		dir := filepath.Join(root, "logs", c.ID)

		if err := os.MkdirAll(dir, logDirPerms); err != nil {
			return err
		}

		path := filepath.Join(root, "logs", c.ID+".log")

		if err := os.WriteFile(path, []byte(c.Master), logFilePerms); err != nil {
			return err
		}

		for base, content := range c.TaskLogs {
			if err := os.WriteFile(filepath.Join(dir, base), []byte(content), logFilePerms); err != nil {
				return err
			}
		}
	}

	return nil
}

// WriteDataFile creates a placeholder data file of the given size at the
// given root-relative path, creating parent directories as needed.
func WriteDataFile(root, rel string, size int) (string, error) {
	path := filepath.Join(root, rel)

	if err := os.MkdirAll(filepath.Dir(path), logDirPerms); err != nil {
		return "", err
	}

	return path, os.WriteFile(path, make([]byte, size), logFilePerms)
}

// SSTDataset builds a typical marine observation dataset with n locations,
// carrying MetaData time/position variables and an ObsValue sea surface
// temperature, with observation times spaced a minute apart from startEpoch.
func SSTDataset(n int, startEpoch int64) *Dataset {
	times := make([]float64, n)
	lats := make([]float64, n)
	lons := make([]float64, n)
	ssts := make([]float64, n)

	for i := range n {
		times[i] = float64(startEpoch + int64(i*60))
		lats[i] = -60 + float64(i%120)
		lons[i] = -179 + float64(i%358)
		ssts[i] = 274 + float64(i%20)
	}

	d := NewDataset(map[string]int{"Location": n})

	d.Set("MetaData/dateTime", &Var{
		DataType: "int64",
		DimNames: []string{"Location"},
		VarAttrs: map[string]string{"units": "seconds since 1970-01-01T00:00:00Z"},
		Values:   times,
	})
	d.Set("MetaData/latitude", FloatVar(lats, "Location"))
	d.Set("MetaData/longitude", FloatVar(lons, "Location"))
	d.Set("ObsValue/seaSurfaceTemperature", &Var{
		DataType: "float32",
		DimNames: []string{"Location"},
		VarAttrs: map[string]string{"units": "K"},
		Values:   ssts,
	})

	return d
}
