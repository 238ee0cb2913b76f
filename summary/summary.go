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

// package summary lets you summarise basecalled read statistics.

package summary

import (
	"slices"

	"golang.org/x/exp/constraints"
)

const half = 0.5

// N50 returns the length-weighted median of the given sequence lengths: the
// longest length L such that sequences of length >= L make up at least half of
// the total bases. It returns 0 for no lengths.
//
// lengths is not modified.
func N50(lengths []int64) int64 {
	sorted := slices.Clone(lengths)
	slices.Sort(sorted)

	var total int64

	for _, l := range sorted {
		total += l
	}

	target := float64(total) * half

	var soFar int64

	for _, l := range slices.Backward(sorted) {
		soFar += l

		if float64(soFar) >= target {
			return l
		}
	}

	return 0
}

// Median returns the median of the given values, averaging the middle two
// when there is an even number of them. It returns false for no values.
//
// values is sorted in place.
func Median[T constraints.Integer | constraints.Float](values []T) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}

	slices.Sort(values)

	mid := len(values) / 2 //nolint:mnd

	if len(values)%2 == 1 {
		return float64(values[mid]), true
	}

	return (float64(values[mid-1]) + float64(values[mid])) / 2, true //nolint:mnd
}

// Summary holds count and size and lets you accumulate count and size as you
// add more reads.
type Summary struct {
	Reads   int64
	Bases   int64
	Lengths []int64
}

// Add counts a read of the given length.
func (s *Summary) Add(length int64) {
	s.Reads++
	s.Bases += length
	s.Lengths = append(s.Lengths, length)
}

// N50 returns the N50 of the lengths added so far.
func (s *Summary) N50() int64 {
	return N50(s.Lengths)
}
