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
	"fmt"
	"io"

	"github.com/wtsi-hgi/rtbasecall/kits"
	"github.com/wtsi-hgi/rtbasecall/stats"
)

const percent = 100

// BarcodeCount is the share of reads and bases assigned to one barcode.
type BarcodeCount struct {
	Name    string
	Reads   int64
	Bases   int64
	Percent float64
	N50     int64
}

// Barcodes is an Operation that reports how reads are distributed across the
// barcodes of a kit.
type Barcodes struct {
	kit      kits.BarcodeKit
	reporter *Reporter
	store    map[string]*Summary
}

// NewBarcodes returns a generator of Barcodes operations for the given kit.
func NewBarcodes(kit kits.BarcodeKit, reporter *Reporter) OperationGenerator {
	return func() Operation {
		b := &Barcodes{
			kit:      kit,
			reporter: reporter,
			store:    make(map[string]*Summary),
		}

		for _, name := range kit.Categories() {
			b.store[name] = new(Summary)
		}

		return b
	}
}

// Add is an Operation method that counts the read against its barcode. Reads
// with a barcode outside of the kit are counted as unclassified.
func (b *Barcodes) Add(r *stats.Read) error {
	s, ok := b.store[r.Barcode]
	if !ok {
		s = b.store[kits.Unclassified]
	}

	s.Add(r.Length)

	return nil
}

// Counts returns a BarcodeCount for every category of the kit, in kit order.
func (b *Barcodes) Counts() []BarcodeCount {
	names := b.kit.Categories()
	counts := make([]BarcodeCount, len(names))

	var total int64

	for _, s := range b.store {
		total += s.Bases
	}

	for n, name := range names {
		s := b.store[name]

		counts[n] = BarcodeCount{
			Name:  name,
			Reads: s.Reads,
			Bases: s.Bases,
			N50:   s.N50(),
		}

		if total > 0 {
			counts[n].Percent = percent * float64(s.Bases) / float64(total)
		}
	}

	return counts
}

// Output writes the distribution to the barcode report file and the console.
func (b *Barcodes) Output() error {
	counts := b.Counts()

	if err := b.reporter.WriteFile(BarcodesBasename, func(w io.Writer) error {
		return writeBarcodesTSV(w, counts)
	}); err != nil {
		return err
	}

	return b.reporter.Console("BARCODE DISTRIBUTION", func(w io.Writer) error {
		printBarcodes(w, counts)

		return nil
	})
}

func writeBarcodesTSV(w io.Writer, counts []BarcodeCount) error {
	if _, err := io.WriteString(w, "barcode\treads\tbases\tbases_percent\tN50\n"); err != nil {
		return err
	}

	for _, c := range counts {
		if _, err := fmt.Fprintf(w, "%s\t%d\t%d\t%.2f\t%d\n",
			c.Name, c.Reads, c.Bases, c.Percent, c.N50); err != nil {
			return err
		}
	}

	return nil
}
