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

package inspect

import (
	"math"
	"strings"
	"time"

	"github.com/wtsi-hgi/obsmon/obsfile"
)

// positionOutlierLimit rejects obviously un-physical positions; real
// latitudes and longitudes never reach this magnitude, but undetected fill
// values do.
const positionOutlierLimit = 1000

// Domain is the 4-D bounding box of a file's observations.
type Domain struct {
	TimeStart time.Time
	TimeEnd   time.Time
	LatMin    float64
	LatMax    float64
	LonMin    float64
	LonMax    float64
	DepthMin  *float64
	DepthMax  *float64

	hasTime     bool
	hasPosition bool
}

// HasTime reports whether a time range was extracted.
func (d *Domain) HasTime() bool { return d != nil && d.hasTime }

// HasPosition reports whether a lat/lon range was extracted.
func (d *Domain) HasPosition() bool { return d != nil && d.hasPosition }

var timeVariables = []string{ //nolint:gochecknoglobals
	"MetaData/dateTime",
	"MetaData/datetime",
	"MetaData/time",
}

var refTimeFormats = []string{ //nolint:gochecknoglobals
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// extractDomain reads the file's time, position and vertical coordinate
// variables and returns their bounds, or nil if the file has none of them.
func extractDomain(d obsfile.Dataset) (*Domain, error) {
	dom := &Domain{}

	if err := extractTimeRange(d, dom); err != nil {
		return nil, err
	}

	if err := extractPositionRange(d, dom); err != nil {
		return nil, err
	}

	if err := extractVerticalRange(d, dom); err != nil {
		return nil, err
	}

	if !dom.hasTime && !dom.hasPosition && dom.DepthMin == nil {
		return nil, nil //nolint:nilnil
	}

	return dom, nil
}

func extractTimeRange(d obsfile.Dataset, dom *Domain) error {
	for _, name := range timeVariables {
		v, ok := d.Variable(name)
		if !ok {
			continue
		}

		lo, hi, ok, err := boundedRange(v, math.MaxFloat64)
		if err != nil {
			return err
		}

		if !ok {
			return nil
		}

		units, _ := v.Attr("units")

		dom.TimeStart = decodeEpoch(lo, units)
		dom.TimeEnd = decodeEpoch(hi, units)
		dom.hasTime = true

		return nil
	}

	return nil
}

// decodeEpoch converts an offset against a "seconds since <ref>" style units
// attribute into a UTC time. Unparseable units are treated as seconds since
// the unix epoch, the convention of files that omit the attribute.
func decodeEpoch(offset float64, units string) time.Time {
	scale := time.Second

	unit, ref, found := strings.Cut(units, " since ")
	if found {
		switch strings.TrimSpace(unit) {
		case "minutes":
			scale = time.Minute
		case "hours":
			scale = time.Hour
		case "days":
			scale = 24 * time.Hour
		}

		for _, format := range refTimeFormats {
			if t, err := time.Parse(format, strings.TrimSpace(ref)); err == nil {
				return t.Add(time.Duration(offset * float64(scale))).UTC()
			}
		}
	}

	return time.Unix(int64(offset), 0).UTC()
}

func extractPositionRange(d obsfile.Dataset, dom *Domain) error {
	lat, latOK := d.Variable("MetaData/latitude")
	lon, lonOK := d.Variable("MetaData/longitude")

	if !latOK || !lonOK {
		return nil
	}

	latMin, latMax, ok, err := boundedRange(lat, positionOutlierLimit)
	if err != nil || !ok {
		return err
	}

	lonMin, lonMax, ok, err := boundedRange(lon, positionOutlierLimit)
	if err != nil || !ok {
		return err
	}

	dom.LatMin, dom.LatMax = latMin, latMax
	dom.LonMin, dom.LonMax = lonMin, lonMax
	dom.hasPosition = true

	return nil
}

func extractVerticalRange(d obsfile.Dataset, dom *Domain) error {
	for _, name := range []string{"MetaData/depth", "MetaData/pressure"} {
		v, ok := d.Variable(name)
		if !ok {
			continue
		}

		lo, hi, ok, err := boundedRange(v, math.MaxFloat64)
		if err != nil {
			return err
		}

		if ok {
			dom.DepthMin, dom.DepthMax = &lo, &hi
		}

		return nil
	}

	return nil
}

// boundedRange returns the min and max of a variable's unmasked values whose
// magnitude is below both the given limit and the fill threshold. ok is false
// when no value qualifies.
func boundedRange(v obsfile.Variable, limit float64) (lo, hi float64, ok bool, err error) {
	values, mask, err := v.ReadMasked()
	if err != nil {
		return 0, 0, false, err
	}

	for n, val := range values {
		if mask[n] || math.Abs(val) >= limit || math.Abs(val) >= FillThreshold {
			continue
		}

		if !ok {
			lo, hi, ok = val, val, true

			continue
		}

		lo = math.Min(lo, val)
		hi = math.Max(hi, val)
	}

	return lo, hi, ok, nil
}
