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

// Package obsfile defines the capability the content inspector needs from a
// scientific file reader: open a dataset, enumerate its groups and variables,
// and read variable data with fill/missing elements masked. Implementations
// live elsewhere; this package only defines the contract and the schema types
// extracted through it.
package obsfile

// Reader opens observation datasets by path.
type Reader interface {
	Open(path string) (Dataset, error)
}

// Dataset is one open observation file.
type Dataset interface {
	// DimensionLen returns the length of the named root-level dimension,
	// and whether such a dimension exists.
	DimensionLen(name string) (int, bool)

	// Walk calls fn for every variable in the dataset, depth-first, with
	// the variable's group-qualified path (e.g. "ObsValue/seaSurfaceTemperature";
	// root-level variables have no group prefix).
	Walk(fn func(path string, v Variable) error) error

	// Variable returns the variable at the given group-qualified path.
	Variable(path string) (Variable, bool)

	// Attr returns the named global attribute as a string.
	Attr(name string) (string, bool)

	Close() error
}

// Variable is one variable within a Dataset.
type Variable interface {
	// Type returns the variable's data type name (e.g. "float32", "int64",
	// "string").
	Type() string

	// Dims returns the names of the variable's dimensions.
	Dims() []string

	// Shape returns the variable's per-dimension lengths.
	Shape() []int

	// Attr returns the named variable attribute as a string.
	Attr(name string) (string, bool)

	// ReadMasked reads the variable's values as float64, along with a mask
	// slice where true means the corresponding value is fill/missing.
	// Non-numeric variables return an error.
	ReadMasked() ([]float64, []bool, error)
}

// Entry describes one variable in an extracted schema: its data type, its
// dimension names, and its inferred dimensionality.
type Entry struct {
	Type string
	Dims []string
	Rank int
}

// Schema maps group-qualified variable paths to their extracted entries.
type Schema map[string]Entry

var defaultReader Reader //nolint:gochecknoglobals

// SetReader registers the process-wide Reader implementation, to be called
// from an importing main before any scanning starts. Without one, scans fall
// back to shallow (stat-only) inspection.
func SetReader(r Reader) {
	defaultReader = r
}

// DefaultReader returns the registered process-wide Reader, or nil if none
// has been registered.
func DefaultReader() Reader { //nolint:ireturn
	return defaultReader
}
