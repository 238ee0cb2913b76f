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
	"maps"
	"math"
	"slices"
	"time"

	"github.com/wtsi-hgi/rtbasecall/stats"
)

// DefaultWindow is the default width of a throughput time window, in minutes.
const DefaultWindow = 60

// StartTimer knows when a sequencing run started, such as a *fast5.Resolver.
type StartTimer interface {
	StartTime(runID string) time.Time
}

// Point is a read placed in time: the minutes since the earliest run started,
// its translocation speed and its mean qscore.
type Point struct {
	Minutes  float64
	Speed    float64
	HasSpeed bool
	QScore   float64
}

// Window summarises the reads that started within [Start, End) minutes.
type Window struct {
	Start, End int
	Reads      int
	Speed      float64
	HasSpeed   bool
	QScore     float64
}

// MaxWindows caps how many windows Windows will make. Points that would fall
// in a later window are left out.
const MaxWindows = 100000

// Windows partitions points into consecutive windows of the given width in
// minutes, starting at 0 and ending with the window holding the latest point.
// Each point falls in window floor(Minutes/width); points before 0 count as 0
// and points that aren't finite are ignored. Windows without points are
// included with Reads of 0.
func Windows(points []Point, width int) []Window {
	if width <= 0 {
		width = DefaultWindow
	}

	w := float64(width)
	n := 0

	for _, p := range points {
		if k, ok := windowIndex(p.Minutes, w); ok {
			n = max(n, k+1)
		}
	}

	if n == 0 {
		return nil
	}

	speeds := make([][]float64, n)
	qscores := make([][]float64, n)

	for _, p := range points {
		k, ok := windowIndex(p.Minutes, w)
		if !ok {
			continue
		}

		qscores[k] = append(qscores[k], p.QScore)

		if p.HasSpeed {
			speeds[k] = append(speeds[k], p.Speed)
		}
	}

	windows := make([]Window, n)

	for k := range windows {
		windows[k] = Window{Start: k * width, End: (k + 1) * width, Reads: len(qscores[k])}
		windows[k].Speed, windows[k].HasSpeed = Median(speeds[k])
		windows[k].QScore, _ = Median(qscores[k])
	}

	return windows
}

// windowIndex returns the window a point at the given minutes falls in, and
// false if that is not a window we can make.
func windowIndex(minutes, width float64) (int, bool) {
	if math.IsNaN(minutes) || math.IsInf(minutes, 0) {
		return 0, false
	}

	k := math.Floor(math.Max(minutes, 0) / width)
	if k >= MaxWindows {
		return 0, false
	}

	return int(k), true
}

type runRead struct {
	runID    string
	start    float64
	speed    float64
	hasSpeed bool
	qscore   float64
}

// Throughput is an Operation that reports median translocation speed and
// qscore over time.
type Throughput struct {
	runs     StartTimer
	width    int
	reporter *Reporter
	reads    []runRead
}

// NewThroughput returns a generator of Throughput operations that find run
// start times using runs, and report windows of the given width.
func NewThroughput(runs StartTimer, width int, reporter *Reporter) OperationGenerator {
	return func() Operation {
		return &Throughput{
			runs:     runs,
			width:    width,
			reporter: reporter,
		}
	}
}

// Add is an Operation method that remembers the timing of the read.
func (t *Throughput) Add(r *stats.Read) error {
	speed, ok := r.Speed()

	t.reads = append(t.reads, runRead{
		runID:    r.RunID,
		start:    r.StartTime,
		speed:    speed,
		hasSpeed: ok,
		qscore:   r.QScore,
	})

	return nil
}

// Points returns the added reads placed relative to the earliest start time
// of all their runs.
func (t *Throughput) Points() []Point {
	if len(t.reads) == 0 {
		return nil
	}

	starts := make(map[string]time.Time)

	for _, r := range t.reads {
		starts[r.runID] = time.Time{}
	}

	var earliest time.Time

	for _, id := range slices.Sorted(maps.Keys(starts)) {
		start := t.runs.StartTime(id)
		starts[id] = start

		if earliest.IsZero() || start.Before(earliest) {
			earliest = start
		}
	}

	points := make([]Point, len(t.reads))

	for n, r := range t.reads {
		offset := starts[r.runID].Sub(earliest).Minutes()

		points[n] = Point{
			Minutes:  offset + r.start/secondsPerMinute,
			Speed:    r.speed,
			HasSpeed: r.hasSpeed,
			QScore:   r.qscore,
		}
	}

	return points
}

const secondsPerMinute = 60

// Output writes the windows to the throughput report file and the console.
func (t *Throughput) Output() error {
	windows := Windows(t.Points(), t.width)

	if err := t.reporter.WriteFile(ThroughputBasename, func(w io.Writer) error {
		return writeThroughputTSV(w, windows)
	}); err != nil {
		return err
	}

	return t.reporter.Console("TRANSLOCATION SPEED", func(w io.Writer) error {
		printThroughput(w, windows)

		return nil
	})
}

func writeThroughputTSV(w io.Writer, windows []Window) error {
	if _, err := io.WriteString(w,
		"minute_window_start\tminute_window_end\ttranslocation_speed\tmean_qscore\n"); err != nil {
		return err
	}

	for _, win := range windows {
		speed, qscore := windowCells(win, "%.1f", "%.1f")

		if _, err := fmt.Fprintf(w, "%d\t%d\t%s\t%s\n", win.Start, win.End, speed, qscore); err != nil {
			return err
		}
	}

	return nil
}

// windowCells formats a window's metrics, leaving them blank when the window
// has no data for them.
func windowCells(win Window, speedFormat, qscoreFormat string) (string, string) {
	if win.Reads == 0 {
		return "", ""
	}

	qscore := fmt.Sprintf(qscoreFormat, win.QScore)

	if !win.HasSpeed {
		return "", qscore
	}

	return fmt.Sprintf(speedFormat, win.Speed), qscore
}
