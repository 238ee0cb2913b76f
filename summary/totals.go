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

package summary

import (
	"io"

	"github.com/wtsi-hgi/rtbasecall/stats"
)

// Totals is an Operation that reports the read count, total bases and N50 of
// the whole summary to the console.
type Totals struct {
	Summary

	reporter *Reporter
}

// NewTotals returns a generator of Totals operations.
func NewTotals(reporter *Reporter) OperationGenerator {
	return func() Operation {
		return &Totals{reporter: reporter}
	}
}

// Add is an Operation method.
func (t *Totals) Add(r *stats.Read) error {
	t.Summary.Add(r.Length)

	return nil
}

// Output prints the totals.
func (t *Totals) Output() error {
	return t.reporter.Console("TOTALS", func(w io.Writer) error {
		printTotals(w, t.Reads, t.Bases, t.N50())

		return nil
	})
}
