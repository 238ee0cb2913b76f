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

package stats

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/inconshreveable/log15"
	. "github.com/smartystreets/goconvey/convey"
)

const header = "filename\tread_id\trun_id\tchannel\tstart_time\tduration\t" +
	"sequence_length_template\tmean_qscore_template\tbarcode_arrangement\n"

func TestParseSummary(t *testing.T) {
	logger := log15.New()
	logger.SetHandler(log15.DiscardHandler())

	Convey("Given a summary with a header and rows", t, func() {
		data := header +
			"a.fast5\tr1\trunA\t12\t10.5\t2\t900\t11.25\tbarcode01\n" +
			"a.fast5\tr2\trunA\t13\t70\t4\t1600\t9.5\tunclassified\n"

		p, err := NewSummaryParser(strings.NewReader(data), logger)
		So(err, ShouldBeNil)

		Convey("you can extract every row", func() {
			var r Read

			So(p.Scan(&r), ShouldBeNil)
			So(r, ShouldResemble, Read{
				Filename:  "a.fast5",
				RunID:     "runA",
				StartTime: 10.5,
				Duration:  2,
				Length:    900,
				QScore:    11.25,
				Barcode:   "barcode01",
			})

			speed, ok := r.Speed()
			So(ok, ShouldBeTrue)
			So(speed, ShouldEqual, 450)

			So(p.Scan(&r), ShouldBeNil)
			So(r.Barcode, ShouldEqual, "unclassified")
			So(r.Length, ShouldEqual, 1600)

			So(p.Scan(&r), ShouldEqual, io.EOF)
			So(p.Err(), ShouldBeNil)
			So(p.Skipped(), ShouldEqual, 0)
		})
	})

	Convey("Repeated header rows are skipped", t, func() {
		data := header + "a\tr1\trunA\t1\t0\t1\t10\t8\tbarcode02\n" + header +
			"b\tr2\trunA\t1\t0\t1\t20\t8\tbarcode02\n"

		p, err := NewSummaryParser(strings.NewReader(data), logger)
		So(err, ShouldBeNil)

		var (
			r       Read
			lengths []int64
		)

		for p.Scan(&r) == nil {
			lengths = append(lengths, r.Length)
		}

		So(lengths, ShouldResemble, []int64{10, 20})
	})

	Convey("Rows that can't be parsed are skipped and counted", t, func() {
		data := header +
			"a\tr1\trunA\t1\t0\t1\n" +
			"b\tr2\trunA\t1\t0\t1\tlots\t8\tbarcode02\n" +
			"c\tr3\trunA\t1\t0\t1\t30\t8\tbarcode02\n"

		p, err := NewSummaryParser(strings.NewReader(data), logger)
		So(err, ShouldBeNil)

		var r Read

		So(p.Scan(&r), ShouldBeNil)
		So(r.Filename, ShouldEqual, "c")
		So(p.Scan(&r), ShouldEqual, io.EOF)
		So(p.Skipped(), ShouldEqual, 2)
	})

	Convey("Rows with numbers out of range are skipped and counted", t, func() {
		data := header +
			"a\tr1\trunA\t1\tnan\t1\t30\t8\tbarcode02\n" +
			"b\tr2\trunA\t1\tinf\t1\t30\t8\tbarcode02\n" +
			"c\tr3\trunA\t1\t1e15\t1\t30\t8\tbarcode02\n" +
			"d\tr4\trunA\t1\t-5\t1\t30\t8\tbarcode02\n" +
			"e\tr5\trunA\t1\t5\t1\t-30\t8\tbarcode02\n" +
			"f\tr6\trunA\t1\t5\t-inf\t30\t8\tbarcode02\n" +
			"g\tr7\trunA\t1\t5\t1\t30\tNaN\tbarcode02\n" +
			"h\tr8\trunA\t1\t5\t0\t0\t8\tbarcode02\n"

		p, err := NewSummaryParser(strings.NewReader(data), logger)
		So(err, ShouldBeNil)

		var r Read

		So(p.Scan(&r), ShouldBeNil)
		So(r.Filename, ShouldEqual, "h")
		So(p.Scan(&r), ShouldEqual, io.EOF)
		So(p.Skipped(), ShouldEqual, 7)
	})

	Convey("Lines too long to buffer are skipped and counted", t, func() {
		data := header +
			"a\tr1\trunA\t1\t0\t1\t30\t8\tbarcode02\n" +
			"b\t" + strings.Repeat("x", 2*maxLineLength) + "\n" +
			"c\tr3\trunA\t1\t0\t1\t40\t8\tbarcode02\n" +
			strings.Repeat("y", 2*maxLineLength)

		p, err := NewSummaryParser(strings.NewReader(data), logger)
		So(err, ShouldBeNil)

		var r Read

		So(p.Scan(&r), ShouldBeNil)
		So(r.Filename, ShouldEqual, "a")
		So(p.Scan(&r), ShouldBeNil)
		So(r.Filename, ShouldEqual, "c")
		So(r.Length, ShouldEqual, 40)
		So(p.Scan(&r), ShouldEqual, io.EOF)
		So(p.Err(), ShouldBeNil)
		So(p.Skipped(), ShouldEqual, 2)
	})

	Convey("The barcode column is optional", t, func() {
		data := "filename\trun_id\tstart_time\tduration\tsequence_length_template\tmean_qscore_template\n" +
			"a\trunA\t0\t0\t5\t7\n"

		p, err := NewSummaryParser(strings.NewReader(data), logger)
		So(err, ShouldBeNil)

		var r Read

		So(p.Scan(&r), ShouldBeNil)
		So(r.Barcode, ShouldEqual, "")

		_, ok := r.Speed()
		So(ok, ShouldBeFalse)
	})

	Convey("NewSummaryParser fails when", t, func() {
		Convey("there is no input", func() {
			_, err := NewSummaryParser(strings.NewReader(""), logger)
			So(err, ShouldEqual, ErrNoHeader)
		})

		Convey("the first row isn't a header", func() {
			_, err := NewSummaryParser(strings.NewReader("a\tb\n"), logger)
			So(err, ShouldEqual, ErrNoHeader)
		})

		Convey("a required column is missing", func() {
			_, err := NewSummaryParser(strings.NewReader("filename\trun_id\n"), logger)
			So(errors.Is(err, ErrMissingColumn), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, ColStart)
		})
	})

	Convey("IsHeader recognises header rows by their first column", t, func() {
		So(IsHeader([]byte(header)), ShouldBeTrue)
		So(IsHeader([]byte("a.fast5\tr1")), ShouldBeFalse)
	})
}
