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
	"context"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/wtsi-hgi/rtbasecall/fast5"
	internaltest "github.com/wtsi-hgi/rtbasecall/internal/test"
	"github.com/wtsi-hgi/rtbasecall/kits"
	"github.com/wtsi-hgi/rtbasecall/stats"
)

type fixedStarts map[string]time.Time

func (f fixedStarts) StartTime(runID string) time.Time { return f[runID] }

func newParser(data string) *stats.SummaryParser {
	p, err := stats.NewSummaryParser(strings.NewReader(data), internaltest.DiscardLogger())
	So(err, ShouldBeNil)

	return p
}

func TestBarcodes(t *testing.T) {
	Convey("Given a summary with reads in two categories and a 01-01 kit", t, func() {
		data := internaltest.SummaryHeader +
			internaltest.SummaryRow("a", "run", 0, 1, 100, 10, "barcode01") +
			internaltest.SummaryRow("b", "run", 0, 1, 50, 10, "barcode01") +
			internaltest.SummaryRow("c", "run", 0, 1, 200, 10, "unclassified")

		kit := internaltest.BarcodeKit("rapid_1-12")

		s := NewSummariser(newParser(data))

		var b *Barcodes

		s.AddOperation(func() Operation {
			b = NewBarcodes(kit, nil)().(*Barcodes) //nolint:forcetypeassert

			return b
		})

		So(s.Summarise(), ShouldBeNil)

		counts := b.Counts()
		So(counts, ShouldHaveLength, 13)
		So(counts[0], ShouldResemble, BarcodeCount{
			Name: "barcode01", Reads: 2, Bases: 150, N50: 100, Percent: 100 * 150.0 / 350,
		})
		So(counts[1], ShouldResemble, BarcodeCount{Name: "barcode02"})
		So(counts[12], ShouldResemble, BarcodeCount{
			Name: kits.Unclassified, Reads: 1, Bases: 200, N50: 200, Percent: 100 * 200.0 / 350,
		})

		Convey("and the category totals add up to the overall total", func() {
			var bases int64

			for _, c := range counts {
				bases += c.Bases
			}

			So(bases, ShouldEqual, 350)
		})
	})

	Convey("Barcodes outside the kit count as unclassified", t, func() {
		data := internaltest.SummaryHeader +
			internaltest.SummaryRow("a", "run", 0, 1, 10, 10, "barcode50") +
			internaltest.SummaryRow("b", "run", 0, 1, 20, 10, "") +
			internaltest.SummaryRow("c", "run", 0, 1, 30, 10, "barcode13")

		s := NewSummariser(newParser(data))

		var b *Barcodes

		s.AddOperation(func() Operation {
			b = NewBarcodes(internaltest.BarcodeKit("native_13-24"), nil)().(*Barcodes) //nolint:forcetypeassert

			return b
		})

		So(s.Summarise(), ShouldBeNil)

		counts := b.Counts()
		So(counts[0].Bases, ShouldEqual, 30)
		So(counts[len(counts)-1].Bases, ShouldEqual, 30)
		So(counts[len(counts)-1].Reads, ShouldEqual, 2)
	})
}

func TestWindows(t *testing.T) {
	Convey("Windows puts every point in floor(minutes/width)", t, func() {
		points := []Point{
			{Minutes: 0, Speed: 400, HasSpeed: true, QScore: 10},
			{Minutes: 59.9, Speed: 420, HasSpeed: true, QScore: 12},
			{Minutes: 60, Speed: 300, HasSpeed: true, QScore: 8},
			{Minutes: 185, Speed: 380, HasSpeed: true, QScore: 9},
			{Minutes: 190, QScore: 11},
		}

		windows := Windows(points, 60)
		So(windows, ShouldHaveLength, 4)

		So(windows[0], ShouldResemble, Window{Start: 0, End: 60, Reads: 2, Speed: 410, HasSpeed: true, QScore: 11})
		So(windows[1], ShouldResemble, Window{Start: 60, End: 120, Reads: 1, Speed: 300, HasSpeed: true, QScore: 8})
		So(windows[2], ShouldResemble, Window{Start: 120, End: 180})
		So(windows[3], ShouldResemble, Window{Start: 180, End: 240, Reads: 2, Speed: 380, HasSpeed: true, QScore: 10})

		total := 0
		for _, w := range windows {
			total += w.Reads
		}

		So(total, ShouldEqual, len(points))
	})

	Convey("Windows of no points is empty", t, func() {
		So(Windows(nil, 60), ShouldBeEmpty)
	})

	Convey("Points that aren't finite or are too late are left out", t, func() {
		points := []Point{
			{Minutes: 5, QScore: 10},
			{Minutes: math.NaN(), QScore: 20},
			{Minutes: math.Inf(1), QScore: 20},
			{Minutes: math.Inf(-1), QScore: 20},
			{Minutes: 1e15, QScore: 20},
		}

		So(Windows(points, 60), ShouldResemble, []Window{{Start: 0, End: 60, Reads: 1, QScore: 10}})
		So(Windows([]Point{{Minutes: math.NaN()}}, 60), ShouldBeEmpty)
		So(Windows([]Point{{Minutes: 60 * MaxWindows}}, 60), ShouldBeEmpty)
		So(Windows([]Point{{Minutes: 60*MaxWindows - 1}}, 60), ShouldHaveLength, MaxWindows)
	})

	Convey("Points at time 0 still get a window", t, func() {
		So(Windows([]Point{{Minutes: 0, QScore: 5}}, 10), ShouldResemble, []Window{{Start: 0, End: 10, Reads: 1, QScore: 5}})
	})
}

func TestThroughput(t *testing.T) {
	Convey("Throughput places reads relative to the earliest run start", t, func() {
		start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		runs := fixedStarts{"early": start, "late": start.Add(90 * time.Minute)}

		data := internaltest.SummaryHeader +
			internaltest.SummaryRow("a", "late", 60, 2, 900, 10, "") +
			internaltest.SummaryRow("b", "early", 600, 3, 900, 12, "")

		s := NewSummariser(newParser(data))

		var tp *Throughput

		s.AddOperation(func() Operation {
			tp = NewThroughput(runs, 60, nil)().(*Throughput) //nolint:forcetypeassert

			return tp
		})

		So(s.Summarise(), ShouldBeNil)

		points := tp.Points()
		So(points, ShouldResemble, []Point{
			{Minutes: 91, Speed: 450, HasSpeed: true, QScore: 10},
			{Minutes: 10, Speed: 300, HasSpeed: true, QScore: 12},
		})
	})
}

type fakeMetadata map[string]fast5.RunInfo

func (f fakeMetadata) ReadRunInfo(_ context.Context, path string) (fast5.RunInfo, error) {
	info, ok := f[path]
	if !ok {
		return fast5.RunInfo{}, fast5.ErrNoRunInfo
	}

	return info, nil
}

func TestPublish(t *testing.T) {
	Convey("Given a consolidated output directory", t, func() {
		dir := t.TempDir()
		start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
		console := new(strings.Builder)

		cfg := PublishConfig{
			OutputDir: dir,
			Barcodes:  internaltest.BarcodeKit("native_1-12"),
			Window:    60,
			Fast5s:    []string{"/in/a.fast5"},
			Metadata:  fakeMetadata{"/in/a.fast5": {RunID: "run", ExpStart: start}},
			Console:   console,
			Logger:    internaltest.DiscardLogger(),
		}

		Convey("nothing happens without a summary", func() {
			So(Publish(context.Background(), cfg), ShouldBeNil)

			_, err := os.Stat(filepath.Join(dir, ThroughputBasename))
			So(os.IsNotExist(err), ShouldBeTrue)
			So(console.String(), ShouldBeEmpty)
		})

		Convey("rows with unusable numbers don't stop the reports", func() {
			for _, start := range []string{"nan", "inf", "1e15"} {
				data := internaltest.SummaryHeader +
					internaltest.SummaryRow("a", "run", 30, 2, 800, 10, "barcode02") +
					strings.Replace(internaltest.SummaryRow("b", "run", 99, 2, 800, 10, "barcode02"),
						"\t99\t", "\t"+start+"\t", 1)

				So(os.WriteFile(filepath.Join(dir, stats.SummaryBasename), []byte(data), 0600), ShouldBeNil)
				So(func() { So(Publish(context.Background(), cfg), ShouldBeNil) }, ShouldNotPanic)

				speed, err := os.ReadFile(filepath.Join(dir, ThroughputBasename))
				So(err, ShouldBeNil)
				So(string(speed), ShouldEqual,
					"minute_window_start\tminute_window_end\ttranslocation_speed\tmean_qscore\n"+
						"0\t60\t400.0\t10.0\n")
			}
		})

		Convey("reports are written from the summary", func() {
			data := internaltest.SummaryHeader +
				internaltest.SummaryRow("a", "run", 30, 2, 800, 10, "barcode02") +
				internaltest.SummaryRow("a", "run", 7500, 4, 1600, 12, "unclassified") +
				"truncated\trow\n"

			So(os.WriteFile(filepath.Join(dir, stats.SummaryBasename), []byte(data), 0600), ShouldBeNil)
			So(Publish(context.Background(), cfg), ShouldBeNil)

			speed, err := os.ReadFile(filepath.Join(dir, ThroughputBasename))
			So(err, ShouldBeNil)
			So(string(speed), ShouldEqual,
				"minute_window_start\tminute_window_end\ttranslocation_speed\tmean_qscore\n"+
					"0\t60\t400.0\t10.0\n"+
					"60\t120\t\t\n"+
					"120\t180\t400.0\t12.0\n")

			dist, err := os.ReadFile(filepath.Join(dir, BarcodesBasename))
			So(err, ShouldBeNil)

			lines := strings.Split(strings.TrimSuffix(string(dist), "\n"), "\n")
			So(lines, ShouldHaveLength, 14)
			So(lines[0], ShouldEqual, "barcode\treads\tbases\tbases_percent\tN50")
			So(lines[2], ShouldEqual, "barcode02\t1\t800\t33.33\t800")
			So(lines[13], ShouldEqual, "unclassified\t1\t1600\t66.67\t1600")

			out := console.String()
			So(out, ShouldContainSubstring, "TRANSLOCATION SPEED")
			So(out, ShouldContainSubstring, "BARCODE DISTRIBUTION")
			So(out, ShouldContainSubstring, "TOTALS")
			So(out, ShouldContainSubstring, "2,400")

			_, err = os.Stat(filepath.Join(dir, "."+ThroughputBasename))
			So(os.IsNotExist(err), ShouldBeTrue)

			Convey("and rewritten in full on the next pass", func() {
				So(Publish(context.Background(), cfg), ShouldBeNil)

				again, err := os.ReadFile(filepath.Join(dir, ThroughputBasename))
				So(err, ShouldBeNil)
				So(string(again), ShouldEqual, string(speed))
			})
		})

		Convey("no barcode report is made without barcoding", func() {
			cfg.Barcodes = internaltest.BarcodeKit("none")

			data := internaltest.SummaryHeader + internaltest.SummaryRow("a", "run", 0, 1, 10, 10, "")
			So(os.WriteFile(filepath.Join(dir, stats.SummaryBasename), []byte(data), 0600), ShouldBeNil)
			So(Publish(context.Background(), cfg), ShouldBeNil)

			_, err := os.Stat(filepath.Join(dir, BarcodesBasename))
			So(os.IsNotExist(err), ShouldBeTrue)
			So(console.String(), ShouldNotContainSubstring, "BARCODE DISTRIBUTION")
		})
	})
}

func TestReporter(t *testing.T) {
	Convey("A Reporter with nowhere to write does nothing", t, func() {
		var r *Reporter

		So(r.WriteFile("x", nil), ShouldBeNil)
		So(r.Console("x", nil), ShouldBeNil)
	})

	Convey("A failed report write leaves no files behind", t, func() {
		dir := t.TempDir()
		r := &Reporter{Dir: dir}

		err := r.WriteFile("x.tsv", func(io.Writer) error {
			return internaltest.BadWriter{}.Close()
		})
		So(err, ShouldNotBeNil)

		entries, err := os.ReadDir(dir)
		So(err, ShouldBeNil)
		So(entries, ShouldBeEmpty)
	})
}
