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

package store

import (
	"os"

	"gopkg.in/yaml.v3"
)

// VariableBounds is one entry of the curated physical-bounds file: the valid
// range and minimum expected variation for a named variable. Variables
// without an entry are exempt from physical-range rules.
type VariableBounds struct {
	Name         string   `yaml:"name"`
	Units        string   `yaml:"units"`
	ValidMin     *float64 `yaml:"valid_min"`
	ValidMax     *float64 `yaml:"valid_max"`
	MinVariation *float64 `yaml:"min_variation"`
}

type boundsFile struct {
	Variables []VariableBounds `yaml:"variables"`
}

// LoadBounds reads a YAML physical-bounds curation file.
func LoadBounds(path string) ([]VariableBounds, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var bf boundsFile

	if err := yaml.Unmarshal(data, &bf); err != nil {
		return nil, err
	}

	return bf.Variables, nil
}

// RegisterBounds upserts the given bounds into the global variable registry,
// creating registry entries for variables not yet observed in any file.
func (s *Store) RegisterBounds(bounds []VariableBounds) error {
	for _, b := range bounds {
		if _, err := s.q.Exec(`INSERT INTO [variables]
			([name], [units], [valid_min], [valid_max], [min_variation]) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT([name]) DO UPDATE SET
			 [units] = COALESCE(excluded.[units], [units]),
			 [valid_min] = excluded.[valid_min],
			 [valid_max] = excluded.[valid_max],
			 [min_variation] = excluded.[min_variation]`,
			b.Name, nullString(b.Units), nullFloatPtr(b.ValidMin), nullFloatPtr(b.ValidMax),
			nullFloatPtr(b.MinVariation)); err != nil {
			return err
		}
	}

	return nil
}
