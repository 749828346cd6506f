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

// Package scan discovers what each pipeline cycle ran and produced, by
// walking the master and per-task logs under a data root and running every
// claimed output file through the content inspector. Files unchanged since
// the previous scan are not deeply re-inspected.
package scan

import (
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/exp/slices"

	"github.com/wtsi-hgi/obsmon/cyclelog"
	"github.com/wtsi-hgi/obsmon/inspect"
	"github.com/wtsi-hgi/obsmon/store"
)

const logsDir = "logs"

// cycleLogRE matches master log names of the strict YYYYMMDDHH form.
var cycleLogRE = regexp.MustCompile(`^(\d{8})(\d{2})\.log(\.gz)?$`)

// runTypes are the recognized workflow prefixes; a task name starting with
// one of these (underscore-delimited) belongs to that run-type, letting one
// physical task log serve multiple logical streams.
var runTypes = []string{"gdas", "gfs", "enkf"} //nolint:gochecknoglobals

// RunTypeUnknown is assigned to tasks whose name carries no recognized
// workflow prefix.
const RunTypeUnknown = "unknown"

var (
	obsExtensions      = []string{".nc", ".nc4"}                   //nolint:gochecknoglobals
	exchangeExtensions = []string{".bufr", ".bufr_d", ".prepbufr"} //nolint:gochecknoglobals
)

// TaskRecord is one discovered task execution and the files it produced.
type TaskRecord struct {
	Name    string // canonical name, workflow prefix removed
	RunType string
	Exec    cyclelog.TaskExecution
	Logfile string
	Files   []FileRecord
}

// FileRecord is one discovered output file.
type FileRecord struct {
	RelPath  string
	ObsSpace string
	Category string
	Sources  []string
	Result   inspect.Result
}

// CycleRecord is everything discovered for one cycle.
type CycleRecord struct {
	Date  string // YYYYMMDD
	Hour  int
	Logs  string // path of the master log
	Tasks []TaskRecord
}

// Scanner discovers cycles under a data root.
type Scanner struct {
	root      string
	inspector *inspect.Inspector
	state     store.PrevState
}

// New returns a Scanner over the given data root, classifying files with the
// given inspector against the given read-only snapshot of the previous scan's
// state. The snapshot is read, never mutated.
func New(root string, inspector *inspect.Inspector, state store.PrevState) *Scanner {
	return &Scanner{root: filepath.Clean(root), inspector: inspector, state: state}
}

// CycleLogs returns the master log paths found under the root's logs
// directory, sorted by cycle id.
func (s *Scanner) CycleLogs() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, logsDir))
	if err != nil {
		return nil, err
	}

	var paths []string

	for _, entry := range entries {
		if !entry.IsDir() && cycleLogRE.MatchString(entry.Name()) {
			paths = append(paths, filepath.Join(s.root, logsDir, entry.Name()))
		}
	}

	slices.Sort(paths)

	return paths, nil
}

// ScanCycle parses the given master log and discovers every task and output
// file of its cycle. It returns nil if the cycle resolved zero tasks; a cycle
// with tasks but no files is a legitimate result. Per-file inspection
// failures become file statuses, never errors.
func (s *Scanner) ScanCycle(masterPath string) (*CycleRecord, error) {
	m := cycleLogRE.FindStringSubmatch(filepath.Base(masterPath))
	if m == nil {
		return nil, cyclelog.ErrNotALog
	}

	r, err := cyclelog.Open(masterPath)
	if err != nil {
		return nil, err
	}

	tes, err := cyclelog.ParseMaster(r)
	r.Close()

	if err != nil {
		return nil, err
	}

	hour, _ := strconv.Atoi(m[2])

	rec := &CycleRecord{
		Date: m[1],
		Hour: hour,
		Logs: masterPath,
	}

	cycleID := m[1] + m[2]

	for _, te := range tes {
		rec.Tasks = append(rec.Tasks, s.scanTask(cycleID, te))
	}

	if len(rec.Tasks) == 0 {
		return nil, nil //nolint:nilnil
	}

	return rec, nil
}

func (s *Scanner) scanTask(cycleID string, te cyclelog.TaskExecution) TaskRecord {
	runType, name := SplitTaskName(te.Name)

	tr := TaskRecord{
		Name:    name,
		RunType: runType,
		Exec:    te,
	}

	logfile, ok := s.findTaskLog(cycleID, te.Name, name)
	if !ok {
		return tr
	}

	tr.Logfile = logfile

	claims, err := s.parseClaims(logfile)
	if err != nil {
		return tr
	}

	for _, claim := range claims {
		for _, file := range s.expandClaim(claim) {
			tr.Files = append(tr.Files, s.inspectFile(file))
		}
	}

	return tr
}

// inspectFile classifies one discovered file: exchange-format files are only
// checked for presence and size, observation files are read in full.
func (s *Scanner) inspectFile(file FileRecord) FileRecord {
	abs := filepath.Join(s.root, file.RelPath)
	prev := s.prev(file.RelPath)

	if slices.Contains(exchangeExtensions, filepath.Ext(file.RelPath)) {
		file.Result = s.inspector.InspectShallow(abs, prev)
	} else {
		file.Result = s.inspector.Inspect(abs, prev)
	}

	file.ObsSpace, file.Category = classifyFile(file.RelPath)

	return file
}

// SplitTaskName splits a raw task name into its run-type and canonical name.
// Names whose first underscore-delimited segment is not a recognized workflow
// prefix keep their full raw name under RunTypeUnknown.
func SplitTaskName(raw string) (runType, name string) {
	prefix, rest, found := strings.Cut(raw, "_")
	if found && slices.Contains(runTypes, prefix) {
		return prefix, rest
	}

	return RunTypeUnknown, raw
}

// findTaskLog tries a small ordered list of per-task log name candidates
// under the cycle's log directory; an absent log is a normal outcome, not an
// error.
func (s *Scanner) findTaskLog(cycleID, rawName, name string) (string, bool) {
	for _, base := range []string{rawName, name, name + "_prep"} {
		for _, suffix := range []string{".log", ".log.gz"} {
			path := filepath.Join(s.root, logsDir, cycleID, base+suffix)
			if _, err := os.Stat(path); err == nil {
				return path, true
			}
		}
	}

	return "", false
}

func (s *Scanner) parseClaims(logfile string) ([]cyclelog.Claim, error) {
	r, err := cyclelog.Open(logfile)
	if err != nil {
		return nil, err
	}

	defer r.Close()

	return cyclelog.ParseTaskOutputs(r, s.root)
}

// expandClaim turns a claim into concrete file records: a claim naming a
// directory is walked for every regular file with a recognized extension,
// while a claim naming a file is kept as-is.
func (s *Scanner) expandClaim(claim cyclelog.Claim) []FileRecord {
	abs := filepath.Join(s.root, claim.Path)

	fi, err := os.Stat(abs)
	if err != nil || !fi.IsDir() {
		return []FileRecord{{RelPath: claim.Path, Sources: claim.Sources}}
	}

	var files []FileRecord

	filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error { //nolint:errcheck
		if err != nil || d.IsDir() || !recognizedExtension(path) {
			return nil //nolint:nilerr
		}

		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return nil //nolint:nilerr
		}

		files = append(files, FileRecord{RelPath: rel})

		return nil
	})

	return files
}

func recognizedExtension(path string) bool {
	ext := filepath.Ext(path)

	return slices.Contains(obsExtensions, ext) || slices.Contains(exchangeExtensions, ext)
}

// classifyFile maps a file to its observation space and category from its
// basename. Dump files named <stream>.t<HH>z.<obsspace>.<...> take the third
// dot-segment; anything else takes its extension-less stem. Exchange-format
// files belong to no observation space.
func classifyFile(rel string) (obsSpace, category string) {
	base := filepath.Base(rel)
	ext := filepath.Ext(base)

	if slices.Contains(exchangeExtensions, ext) {
		return "", ""
	}

	stem := strings.TrimSuffix(base, ext)

	if parts := strings.Split(stem, "."); len(parts) >= 3 {
		obsSpace = parts[2]
	} else {
		obsSpace = stem
	}

	if prefix, _, found := strings.Cut(obsSpace, "_"); found {
		return obsSpace, prefix
	}

	return obsSpace, RunTypeUnknown
}

func (s *Scanner) prev(rel string) *inspect.PrevFile {
	if s.state == nil {
		return nil
	}

	prev, ok := s.state[rel]
	if !ok {
		return nil
	}

	return &prev
}
