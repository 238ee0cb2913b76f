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
	"errors"
	"io"

	"github.com/wtsi-hgi/rtbasecall/stats"
)

// Operation is a type that receives every read in a sequencing summary.
type Operation interface {
	// Add is called for each read during a Summariser.Summarise() call.
	Add(read *stats.Read) error

	// Output is called once all reads have been added.
	Output() error
}

// OperationGenerator is used to generate an Operation for a
// Summariser.Summarise() run.
type OperationGenerator func() Operation

type operations []Operation

func (o operations) Add(r *stats.Read) error {
	for _, op := range o {
		if err := op.Add(r); err != nil {
			return err
		}
	}

	return nil
}

func (o operations) Output() error {
	for _, op := range o {
		if err := op.Output(); err != nil {
			return err
		}
	}

	return nil
}

// Summariser provides methods to register Operations that act on the reads of
// a sequencing summary.
type Summariser struct {
	parser     *stats.SummaryParser
	generators []OperationGenerator
}

// NewSummariser returns a new Summariser that will read from the given
// stats.SummaryParser.
func NewSummariser(p *stats.SummaryParser) *Summariser {
	return &Summariser{
		parser: p,
	}
}

// AddOperation will add an operation that will be passed every read parsed.
func (s *Summariser) AddOperation(op OperationGenerator) {
	s.generators = append(s.generators, op)
}

// Summarise will read from the stats.SummaryParser and pass each read to the
// Operations it has been given, then have them Output().
func (s *Summariser) Summarise() error {
	ops := make(operations, len(s.generators))

	for n, gen := range s.generators {
		ops[n] = gen()
	}

	var (
		read stats.Read
		err  error
	)

	for err = s.parser.Scan(&read); err == nil; err = s.parser.Scan(&read) {
		if err = ops.Add(&read); err != nil {
			return err
		}
	}

	if !errors.Is(err, io.EOF) {
		return err
	}

	return ops.Output()
}
