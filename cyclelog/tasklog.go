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
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/exp/slices"
)

// copyRE and mkdirRE match the trace lines a task emits when it stores an
// output; the destination is the claimed output path.
var (
	copyRE  = regexp.MustCompile(`\bcopy (\S+) to (\S+)`)
	mkdirRE = regexp.MustCompile(`\bcreate directory (\S+)`)
)

// Claim is one output path a task's log claims to have produced, relative to
// the data root, along with the upstream source paths it was copied from, if
// any. A claim may name a directory, to be expanded by the caller.
type Claim struct {
	Path    string
	Sources []string
}

// ParseTaskOutputs reads one task's own log and returns the output claims it
// makes, in order of first mention and without duplicate paths. Claimed
// destinations that do not fall under the given data root are discarded.
func ParseTaskOutputs(r io.Reader, root string) ([]Claim, error) {
	root = filepath.Clean(root)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, maxLineLength), maxLineLength)

	var (
		claims []Claim
		index  = make(map[string]int)
	)

	for scanner.Scan() {
		line := ansiRE.ReplaceAllString(scanner.Text(), "")

		src, dest, ok := claimedDest(line)
		if !ok {
			continue
		}

		rel, ok := relativeToRoot(dest, root)
		if !ok {
			continue
		}

		n, exists := index[rel]
		if !exists {
			n = len(claims)
			index[rel] = n

			claims = append(claims, Claim{Path: rel})
		}

		if src != "" && !slices.Contains(claims[n].Sources, src) {
			claims[n].Sources = append(claims[n].Sources, src)
		}
	}

	return claims, scanner.Err()
}

func claimedDest(line string) (src, dest string, ok bool) {
	if m := copyRE.FindStringSubmatch(line); m != nil {
		return m[1], m[2], true
	}

	if m := mkdirRE.FindStringSubmatch(line); m != nil {
		return "", m[1], true
	}

	return "", "", false
}

func relativeToRoot(path, root string) (string, bool) {
	path = filepath.Clean(path)

	if !strings.HasPrefix(path, root+string(filepath.Separator)) {
		return "", false
	}

	return strings.TrimPrefix(path, root+string(filepath.Separator)), true
}
