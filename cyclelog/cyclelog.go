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

// Package cyclelog parses the logs produced by an observation preparation
// pipeline: the per-cycle master log that records how each task finished, and
// the per-task logs that record which output files a task claims to have
// produced.
package cyclelog

import (
	"io"
	"os"
	"strings"

	"github.com/klauspost/pgzip"
)

// Error is the type of the constant Err* variables.
type Error string

// Error returns a string version of the error.
func (e Error) Error() string { return string(e) }

const ErrNotALog = Error("not a cycle log file")

// Open opens the log at the given path for reading, transparently
// decompressing it if it has a .gz suffix. The returned ReadCloser must be
// closed by the caller.
func Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	if !strings.HasSuffix(path, ".gz") {
		return f, nil
	}

	gz, err := pgzip.NewReader(f)
	if err != nil {
		f.Close()

		return nil, err
	}

	return &gzReadCloser{Reader: gz, file: f}, nil
}

type gzReadCloser struct {
	*pgzip.Reader
	file *os.File
}

func (g *gzReadCloser) Close() error {
	err := g.Reader.Close()

	if errr := g.file.Close(); err == nil {
		err = errr
	}

	return err
}
