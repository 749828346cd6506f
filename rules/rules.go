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

// Package rules reclassifies ingested files as OK, WARNING or FAIL by
// running a fixed ordered list of anomaly rules over each recently-ingested
// file and its historical context.
package rules

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/exp/slices"

	"github.com/wtsi-hgi/obsmon/inspect"
	"github.com/wtsi-hgi/obsmon/obsfile"
	"github.com/wtsi-hgi/obsmon/store"
)

const (
	// timeWindow is how far a file's first observation may fall from its
	// cycle's nominal timestamp before the file is mismatched.
	timeWindow = 9 * time.Hour

	// frozenSampleFloor is the observation count a file must exceed before
	// a near-zero spread is evidence of a stuck instrument rather than a
	// small sample.
	frozenSampleFloor = 10

	// kelvinOffset converts a Celsius reading to Kelvin, to test whether
	// an out-of-bounds variable was merely recorded in the wrong unit.
	kelvinOffset = 273.15

	// celsiusPlausibleMin and celsiusPlausibleMax bracket the means that are
	// believable as Celsius temperatures; a mean outside them rules out the
	// wrong-unit hypothesis.
	celsiusPlausibleMin = -90
	celsiusPlausibleMax = 60
)

// Record is one file under evaluation: its inventory row plus the extracted
// detail the rules consult.
type Record struct {
	store.InspectionFile
	Schema    obsfile.Schema
	Anomalies []string
	Stats     []store.StatWithBounds
}

// Context is the batch-wide state shared by every rule evaluation.
type Context struct {
	Baselines map[store.BaselineKey]float64
}

// Message is one anomaly finding. Informational messages are recorded but do
// not count against the file's status.
type Message struct {
	Text          string
	Informational bool
}

// Rule inspects one file record and reports zero or more findings.
type Rule interface {
	Name() string
	Check(rec *Record, ctx *Context) []Message
}

// registry is the fixed evaluation order; the structural and counting rules
// run before the statistical ones so the cheapest failures surface first.
var registry = []Rule{ //nolint:gochecknoglobals
	structuralRule{},
	zeroObsRule{},
	timeRule{},
	volumeRule{},
	rangeRule{},
	qualityRule{},
}

// criticalKeywords mark a finding that fails the file outright; any other
// non-informational finding only warns.
var criticalKeywords = []string{ //nolint:gochecknoglobals
	"Structural Failure",
	"Corrupt",
	"Zero Observations",
	"Time Mismatch",
	"Overflow",
	"Underflow",
}

// Evaluate runs every registered rule over the record, in order.
func Evaluate(rec *Record, ctx *Context) []Message {
	var msgs []Message

	for _, rule := range registry {
		msgs = append(msgs, rule.Check(rec, ctx)...)
	}

	return msgs
}

// Classify folds a record's findings into its final status and the combined
// message to store: FAIL if any finding is critical, OK if every finding is
// informational, WARNING otherwise.
func Classify(msgs []Message) (inspect.Status, string) {
	status := inspect.StatusOK
	texts := make([]string, len(msgs))

	for n, msg := range msgs {
		texts[n] = msg.Text

		if critical(msg.Text) {
			status = inspect.StatusFail
		} else if !msg.Informational && status != inspect.StatusFail {
			status = inspect.StatusWarning
		}
	}

	return status, strings.Join(texts, "; ")
}

func critical(text string) bool {
	for _, keyword := range criticalKeywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}

	return false
}

// structuralRule flags a file that claims observations but whose schema has
// no variables under the conventional metadata or value groups.
type structuralRule struct{}

func (structuralRule) Name() string { return "structural" }

func (structuralRule) Check(rec *Record, _ *Context) []Message {
	if rec.ObsCount == 0 {
		return nil
	}

	for path := range rec.Schema {
		group, _, found := strings.Cut(path, "/")
		if found && (group == inspect.MetaGroup || slices.Contains(inspect.ValueGroups, group)) {
			return nil
		}
	}

	return []Message{{Text: "Structural Failure: no recognised observation groups"}}
}

// zeroObsRule flags a file with an observation count of exactly zero.
type zeroObsRule struct{}

func (zeroObsRule) Name() string { return "zero-observations" }

func (zeroObsRule) Check(rec *Record, _ *Context) []Message {
	if rec.ObsCount != 0 {
		return nil
	}

	return []Message{{Text: "Zero Observations"}}
}

// timeRule flags a file whose first observation falls outside the window
// around its cycle's nominal timestamp.
type timeRule struct{}

func (timeRule) Name() string { return "time-consistency" }

func (timeRule) Check(rec *Record, _ *Context) []Message {
	if !rec.HasTime {
		return nil
	}

	nominal, err := cycleNominal(rec.Date, rec.Cycle)
	if err != nil {
		return nil
	}

	offset := rec.TimeStart.Sub(nominal)
	if offset >= -timeWindow && offset <= timeWindow {
		return nil
	}

	return []Message{{Text: fmt.Sprintf("Time Mismatch: data starts %s, cycle nominal %s",
		rec.TimeStart.UTC().Format(time.RFC3339), nominal.Format(time.RFC3339))}}
}

func cycleNominal(date string, cycle int) (time.Time, error) {
	day, err := time.ParseInLocation("20060102", date, time.UTC)
	if err != nil {
		return time.Time{}, err
	}

	return day.Add(time.Duration(cycle) * time.Hour), nil
}

// volumeRule flags a file whose observation count has fallen below the
// historical baseline for its observation space and run-type. A file with no
// observations at all is the zero-observations rule's finding, not a volume
// shortfall.
type volumeRule struct{}

func (volumeRule) Name() string { return "volume" }

func (volumeRule) Check(rec *Record, ctx *Context) []Message {
	if rec.ObsCount == 0 {
		return nil
	}

	baseline, ok := ctx.Baselines[store.BaselineKey{ObsSpace: rec.ObsSpace, RunType: rec.RunType}]
	if !ok || baseline <= 0 || float64(rec.ObsCount) >= baseline {
		return nil
	}

	return []Message{{Text: fmt.Sprintf("Low Observation Count: %d below baseline %.0f",
		rec.ObsCount, baseline)}}
}

// rangeRule checks each variable's statistics against its registered physical
// bounds. An out-of-bounds range in a Kelvin-united variable that fits the
// bounds once reinterpreted from Celsius is only noted, not flagged. Variables
// without registered bounds are exempt from both the bounds and the
// frozen-sensor checks; that also exempts un-curated physical variables,
// which is a curation gap rather than something to second-guess here.
type rangeRule struct{}

func (rangeRule) Name() string { return "physical-range" }

func (rangeRule) Check(rec *Record, _ *Context) []Message {
	var msgs []Message

	for _, st := range rec.Stats {
		if st.ValidMin == nil || st.ValidMax == nil {
			continue
		}

		if st.MinVariation != nil && st.Std <= *st.MinVariation && rec.ObsCount > frozenSampleFloor {
			msgs = append(msgs, Message{Text: fmt.Sprintf(
				"Possible Frozen Sensor: %s std %.4g at or below %.4g", st.Variable, st.Std, *st.MinVariation)})
		}

		msgs = append(msgs, boundsMessages(st)...)
	}

	return msgs
}

func boundsMessages(st store.StatWithBounds) []Message {
	if st.Min >= *st.ValidMin && st.Max <= *st.ValidMax {
		return nil
	}

	if celsiusMistake(st) {
		return []Message{{
			Text: fmt.Sprintf("Values likely in Celsius for %s: range [%.4g, %.4g] fits bounds once shifted to Kelvin",
				st.Variable, st.Min, st.Max),
			Informational: true,
		}}
	}

	var msgs []Message

	if st.Min < *st.ValidMin {
		msgs = append(msgs, Message{Text: fmt.Sprintf("Underflow in %s: min %.4g below valid minimum %.4g",
			st.Variable, st.Min, *st.ValidMin)})
	}

	if st.Max > *st.ValidMax {
		msgs = append(msgs, Message{Text: fmt.Sprintf("Overflow in %s: max %.4g above valid maximum %.4g",
			st.Variable, st.Max, *st.ValidMax)})
	}

	return msgs
}

// celsiusMistake reports whether an out-of-bounds range is better explained
// by Celsius readings recorded against Kelvin bounds: the variable's
// registered unit must be Kelvin, its mean must be believable as a Celsius
// temperature, and the whole range must fit the bounds once shifted. An
// over-range value in any other unit is a genuine violation.
func celsiusMistake(st store.StatWithBounds) bool {
	if !kelvinUnits(st.Units) {
		return false
	}

	if st.Mean < celsiusPlausibleMin || st.Mean > celsiusPlausibleMax {
		return false
	}

	return st.Min+kelvinOffset >= *st.ValidMin && st.Max+kelvinOffset <= *st.ValidMax
}

func kelvinUnits(units string) bool {
	switch strings.ToLower(strings.TrimSpace(units)) {
	case "k", "kelvin":
		return true
	}

	return false
}

// qualityRule surfaces the anomaly strings the content inspection attached
// during extraction, verbatim.
type qualityRule struct{}

func (qualityRule) Name() string { return "data-quality" }

func (qualityRule) Check(rec *Record, _ *Context) []Message {
	msgs := make([]Message, len(rec.Anomalies))

	for n, anomaly := range rec.Anomalies {
		msgs[n] = Message{Text: anomaly}
	}

	return msgs
}
