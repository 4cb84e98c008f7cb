package calculator

import (
	"fmt"
	"math"
	"sort"

	"DipHunter/internal/model"
)

// Base column names every table carries.
const (
	ColOpen   = "open"
	ColHigh   = "high"
	ColLow    = "low"
	ColClose  = "close"
	ColVolume = "volume"
)

// Table is an ordered set of bars plus named derived columns.
// Every column has exactly Len() rows; missing values are NaN.
type Table struct {
	bars []model.Bar
	cols map[string][]float64
}

// NewTable builds a table over bars with the OHLCV base columns populated.
func NewTable(bars []model.Bar) *Table {
	t := &Table{bars: bars, cols: make(map[string][]float64)}
	open := make([]float64, len(bars))
	high := make([]float64, len(bars))
	low := make([]float64, len(bars))
	closes := make([]float64, len(bars))
	volume := make([]float64, len(bars))
	for i, b := range bars {
		open[i] = b.Open
		high[i] = b.High
		low[i] = b.Low
		closes[i] = b.Close
		volume[i] = b.Volume
	}
	t.cols[ColOpen] = open
	t.cols[ColHigh] = high
	t.cols[ColLow] = low
	t.cols[ColClose] = closes
	t.cols[ColVolume] = volume
	return t
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.bars) }

// Bars returns the underlying bars.
func (t *Table) Bars() []model.Bar { return t.bars }

// Column returns the named column and whether it exists.
func (t *Table) Column(name string) ([]float64, bool) {
	c, ok := t.cols[name]
	return c, ok
}

// Has reports whether every named column exists.
func (t *Table) Has(names ...string) bool {
	for _, n := range names {
		if _, ok := t.cols[n]; !ok {
			return false
		}
	}
	return true
}

// Set stores a column, rejecting one whose length differs from the table.
func (t *Table) Set(name string, values []float64) error {
	if len(values) != len(t.bars) {
		return fmt.Errorf("column %s has %d rows, table has %d", name, len(values), len(t.bars))
	}
	t.cols[name] = values
	return nil
}

// Columns lists column names in sorted order.
func (t *Table) Columns() []string {
	names := make([]string, 0, len(t.cols))
	for n := range t.cols {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Row returns a view of row i. Negative i counts from the end.
func (t *Table) Row(i int) Row {
	if i < 0 {
		i += len(t.bars)
	}
	return Row{t: t, i: i}
}

// Latest returns the last row.
func (t *Table) Latest() Row { return t.Row(-1) }

// Previous returns the row before the last.
func (t *Table) Previous() Row { return t.Row(-2) }

// Row is a read-only view of one table row.
type Row struct {
	t *Table
	i int
}

// Get returns the value of column name, or NaN when absent or out of range.
func (r Row) Get(name string) float64 {
	c, ok := r.t.cols[name]
	if !ok || r.i < 0 || r.i >= len(c) {
		return math.NaN()
	}
	return c[r.i]
}

// Values returns the finite values of the row keyed by column.
func (r Row) Values() map[string]float64 {
	out := make(map[string]float64, len(r.t.cols))
	for name := range r.t.cols {
		v := r.Get(name)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out[name] = v
	}
	return out
}

func nanSlice(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}
