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

// Package obsdata provides an in-memory obsfile.Reader implementation and
// helpers for fabricating observation data roots, for use in tests.
package obsdata

import (
	"fmt"
	"sync"

	"github.com/wtsi-hgi/obsmon/obsfile"
)

// Reader is an in-memory obsfile.Reader that serves pre-registered Datasets
// by path and counts how often each path is opened.
type Reader struct {
	mu       sync.Mutex
	datasets map[string]*Dataset
	opens    map[string]int
}

// NewReader returns an empty Reader.
func NewReader() *Reader {
	return &Reader{
		datasets: make(map[string]*Dataset),
		opens:    make(map[string]int),
	}
}

// Add registers a Dataset to be served for the given path.
func (r *Reader) Add(path string, d *Dataset) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.datasets[path] = d
}

// Opens returns the number of times Open has been called for the given path.
func (r *Reader) Opens(path string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.opens[path]
}

// Open implements obsfile.Reader.
func (r *Reader) Open(path string) (obsfile.Dataset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.opens[path]++

	d, ok := r.datasets[path]
	if !ok {
		return nil, fmt.Errorf("obsdata: no dataset registered for %s", path)
	}

	if d.OpenErr != nil {
		return nil, d.OpenErr
	}

	return d, nil
}

// Dataset is an in-memory obsfile.Dataset.
type Dataset struct {
	Dims    map[string]int
	Attrs   map[string]string
	OpenErr error

	order []string
	vars  map[string]*Var
}

// NewDataset returns an empty Dataset with the given root-level dimensions.
func NewDataset(dims map[string]int) *Dataset {
	return &Dataset{
		Dims: dims,
		vars: make(map[string]*Var),
	}
}

// Set adds or replaces the variable at the given group-qualified path,
// returning the Dataset for chaining.
func (d *Dataset) Set(path string, v *Var) *Dataset {
	if _, ok := d.vars[path]; !ok {
		d.order = append(d.order, path)
	}

	d.vars[path] = v

	return d
}

// DimensionLen implements obsfile.Dataset.
func (d *Dataset) DimensionLen(name string) (int, bool) {
	l, ok := d.Dims[name]

	return l, ok
}

// Walk implements obsfile.Dataset, visiting variables in insertion order.
func (d *Dataset) Walk(fn func(path string, v obsfile.Variable) error) error {
	for _, path := range d.order {
		if err := fn(path, d.vars[path]); err != nil {
			return err
		}
	}

	return nil
}

// Variable implements obsfile.Dataset.
func (d *Dataset) Variable(path string) (obsfile.Variable, bool) {
	v, ok := d.vars[path]
	if !ok {
		return nil, false
	}

	return v, ok
}

// Attr implements obsfile.Dataset.
func (d *Dataset) Attr(name string) (string, bool) {
	v, ok := d.Attrs[name]

	return v, ok
}

// Close implements obsfile.Dataset.
func (d *Dataset) Close() error { return nil }

// Var is an in-memory obsfile.Variable with exported fields for easy fixture
// construction.
type Var struct {
	DataType   string
	DimNames   []string
	Lengths    []int
	VarAttrs   map[string]string
	Values     []float64
	Mask       []bool
	ReadErr    error
	NonNumeric bool
}

// Type implements obsfile.Variable.
func (v *Var) Type() string { return v.DataType }

// Dims implements obsfile.Variable.
func (v *Var) Dims() []string { return v.DimNames }

// Shape implements obsfile.Variable.
func (v *Var) Shape() []int {
	if v.Lengths != nil {
		return v.Lengths
	}

	return []int{len(v.Values)}
}

// Attr implements obsfile.Variable.
func (v *Var) Attr(name string) (string, bool) {
	a, ok := v.VarAttrs[name]

	return a, ok
}

// ReadMasked implements obsfile.Variable.
func (v *Var) ReadMasked() ([]float64, []bool, error) {
	if v.ReadErr != nil {
		return nil, nil, v.ReadErr
	}

	if v.NonNumeric {
		return nil, nil, fmt.Errorf("obsdata: variable is not numeric")
	}

	mask := v.Mask
	if mask == nil {
		mask = make([]bool, len(v.Values))
	}

	return v.Values, mask, nil
}

// FloatVar is a convenience constructor for a float32 variable dimensioned on
// the given dimension names with the given values.
func FloatVar(values []float64, dims ...string) *Var {
	return &Var{DataType: "float32", DimNames: dims, Values: values}
}
