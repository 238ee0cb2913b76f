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
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize" //nolint:misspell
	"github.com/olekukonko/tablewriter"
)

const (
	ThroughputBasename = "translocation_speed.tsv"
	BarcodesBasename   = "barcode_distribution.tsv"

	ruleWidth = 60
)

// Reporter writes report files into a directory and renders reports for
// humans on a console. Either may be left empty to skip it.
type Reporter struct {
	Dir string
	Out io.Writer
}

// WriteFile fully replaces the named report in Dir with what fn writes. The
// report is written to a hidden file first and renamed into place, so readers
// never see a partial report.
func (r *Reporter) WriteFile(name string, fn func(w io.Writer) error) (err error) {
	if r == nil || r.Dir == "" {
		return nil
	}

	tmp := filepath.Join(r.Dir, "."+name)

	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			os.Remove(tmp)
		}
	}()

	b := bufio.NewWriter(f)

	if err = fn(b); err != nil {
		f.Close()

		return err
	}

	if err = b.Flush(); err != nil {
		f.Close()

		return err
	}

	if err = f.Close(); err != nil {
		return err
	}

	return os.Rename(tmp, filepath.Join(r.Dir, name))
}

// Console prints a titled section using fn.
func (r *Reporter) Console(title string, fn func(w io.Writer) error) error {
	if r == nil || r.Out == nil {
		return nil
	}

	if _, err := fmt.Fprintf(r.Out, "\n\n%s\n%s\n", title, strings.Repeat("-", ruleWidth)); err != nil {
		return err
	}

	return fn(r.Out)
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetBorder(false)
	table.SetColumnSeparator(" ")
	table.SetHeaderLine(false)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	table.SetHeaderAlignment(tablewriter.ALIGN_RIGHT)

	return table
}

func printThroughput(w io.Writer, windows []Window) {
	table := newTable(w, "Time window", "Speed", "Qscore")

	for _, win := range windows {
		speed, qscore := windowCells(win, "%5.1f", "%4.1f")

		table.Append([]string{fmt.Sprintf("%4d - %4d", win.Start, win.End), speed, qscore})
	}

	table.Render()
}

func printBarcodes(w io.Writer, counts []BarcodeCount) {
	table := newTable(w, "Barcode", "Reads", "Bases", "Percent", "N50")

	for _, c := range counts {
		n50 := ""
		if c.N50 > 0 {
			n50 = humanize.Comma(c.N50) + " bp"
		}

		table.Append([]string{
			c.Name + ":",
			humanize.Comma(c.Reads),
			humanize.Comma(c.Bases) + " bp",
			strconv.FormatFloat(c.Percent, 'f', 2, 64) + "%", //nolint:mnd
			n50,
		})
	}

	table.Render()
}

func printTotals(w io.Writer, reads, bases, n50 int64) {
	fmt.Fprintf(w, "Number of reads: %14s\n", humanize.Comma(reads))
	fmt.Fprintf(w, "Total bases:     %14s\n", humanize.Comma(bases))
	fmt.Fprintf(w, "Read N50:        %14s\n", humanize.Comma(n50))
}
