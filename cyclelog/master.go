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

package cyclelog

import (
	"bufio"
	"io"
	"regexp"
	"strconv"
	"time"
)

const maxLineLength = 64 * 1024

// TaskExecution holds the scheduler metadata recorded for one task in a
// cycle's master log.
type TaskExecution struct {
	Name     string
	JobID    string
	State    string
	ExitCode int
	Attempt  int
	Host     string
	Runtime  float64
	Start    time.Time
	End      time.Time
}

// taskLineRE matches master log lines of the form:
//
//	2025-10-27T00:12:03 :: host01 :: Task gdas_marine_dump, jobid=123,
//	in state SUCCEEDED (complete), ran for 42.0 seconds, exit status=0, try=1
var taskLineRE = regexp.MustCompile(`^(\S+) :: (\S+) :: Task (\S+), jobid=(\S+), ` +
	`in state (\S+).*ran for ([0-9.]+) seconds, exit status=(-?\d+), try=(\d+)`)

// ansiRE matches terminal colour escape sequences, which schedulers like to
// embed in their state tokens.
var ansiRE = regexp.MustCompile(`\x1b\[[0-9;]*[A-Za-z]`)

var timestampFormats = []string{ //nolint:gochecknoglobals
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseMaster reads a cycle's master log and returns one TaskExecution per
// task named in it, in order of first appearance. A task retried within the
// cycle appears twice in the log; only its last state is returned. Lines that
// do not match the expected pattern are skipped, so a log with no matching
// lines yields an empty slice, never an error.
func ParseMaster(r io.Reader) ([]TaskExecution, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, maxLineLength), maxLineLength)

	var (
		order []string
		seen  = make(map[string]TaskExecution)
	)

	for scanner.Scan() {
		te, ok := parseTaskLine(ansiRE.ReplaceAllString(scanner.Text(), ""))
		if !ok {
			continue
		}

		if _, exists := seen[te.Name]; !exists {
			order = append(order, te.Name)
		}

		seen[te.Name] = te
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	tes := make([]TaskExecution, len(order))

	for n, name := range order {
		tes[n] = seen[name]
	}

	return tes, nil
}

func parseTaskLine(line string) (TaskExecution, bool) {
	m := taskLineRE.FindStringSubmatch(line)
	if m == nil {
		return TaskExecution{}, false
	}

	runtime, err := strconv.ParseFloat(m[6], 64)
	if err != nil {
		return TaskExecution{}, false
	}

	exitCode, err := strconv.Atoi(m[7])
	if err != nil {
		return TaskExecution{}, false
	}

	attempt, err := strconv.Atoi(m[8])
	if err != nil {
		return TaskExecution{}, false
	}

	te := TaskExecution{
		Name:     m[3],
		JobID:    m[4],
		State:    m[5],
		ExitCode: exitCode,
		Attempt:  attempt,
		Host:     m[2],
		Runtime:  runtime,
	}

	if end, ok := parseTimestamp(m[1]); ok {
		te.End = end
		te.Start = end.Add(-time.Duration(runtime * float64(time.Second)))
	}

	return te, true
}

func parseTimestamp(s string) (time.Time, bool) {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}
