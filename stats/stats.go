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

// Package stats parses the tab separated sequencing summary files written by
// the basecaller.
package stats

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/inconshreveable/log15"
)

// Error is the type of the constant Err* variables.
type Error string

// Error returns a string version of the error.
func (e Error) Error() string { return string(e) }

const (
	ErrNoHeader      = Error("invalid summary: no header row")
	ErrMissingColumn = Error("invalid summary: missing column")
	ErrTooFewColumns = Error("invalid summary: too few tab separated columns")
	ErrBadNumber     = Error("invalid summary: bad number")
	ErrOutOfRange    = Error("invalid summary: value out of range")
	ErrLineTooLong   = Error("invalid summary: line too long")

	// SummaryBasename is the name of the sequencing summary the basecaller
	// writes, and of the consolidated summary.
	SummaryBasename = "sequencing_summary.txt"

	// HeaderLabel starts the first column of every header row.
	HeaderLabel = "filename"

	ColFilename = "filename"
	ColRunID    = "run_id"
	ColStart    = "start_time"
	ColDuration = "duration"
	ColLength   = "sequence_length_template"
	ColQScore   = "mean_qscore_template"
	ColBarcode  = "barcode_arrangement"

	// MaxStartTime is the latest start_time, in seconds, a read can have:
	// 30 days, well beyond any flow cell's life.
	MaxStartTime = 30 * 24 * 60 * 60

	maxLineLength = 1024 * 1024
	noColumn      = -1
)

var tabByte = []byte{'\t'} //nolint:gochecknoglobals

// Read holds the information about one basecalled read that the statistics
// need.
type Read struct {
	Filename  string
	RunID     string
	StartTime float64 // seconds since the run started
	Duration  float64 // seconds
	Length    int64
	QScore    float64
	Barcode   string
}

// Speed returns the translocation speed of the read in bases per second, and
// false if it has no duration.
func (r *Read) Speed() (float64, bool) {
	if r.Duration <= 0 {
		return 0, false
	}

	return float64(r.Length) / r.Duration, true
}

type columns struct {
	filename, runID, start, duration, length, qscore, barcode int
	needed                                                    int
}

// SummaryParser is used to parse sequencing summary files.
type SummaryParser struct {
	scanner  *bufio.Scanner
	splitter *lineSplitter
	logger   log15.Logger
	cols     columns
	line     int
	skipped  int
	error    error
}

// lineSplitter splits like bufio.ScanLines, except that lines longer than
// maxLineLength are discarded and returned as an empty token with tooLong set,
// instead of stopping the scan.
type lineSplitter struct {
	discarding bool
	tooLong    bool
}

func (l *lineSplitter) split(data []byte, atEOF bool) (int, []byte, error) {
	l.tooLong = false

	if l.discarding {
		i := bytes.IndexByte(data, '\n')
		if i < 0 && !atEOF {
			return len(data), nil, nil
		}

		l.discarding = false
		l.tooLong = true

		if i < 0 {
			return len(data), []byte{}, nil
		}

		return i + 1, []byte{}, nil
	}

	advance, token, err := bufio.ScanLines(data, atEOF)
	if token == nil && err == nil && !atEOF && len(data) >= maxLineLength {
		l.discarding = true

		return len(data), nil, nil
	}

	return advance, token, err
}

// NewSummaryParser returns a SummaryParser that reads the header row of r and
// is then ready to Scan() the remaining rows.
//
// Rows that can't be parsed are skipped, with a warning sent to logger.
func NewSummaryParser(r io.Reader, logger log15.Logger) (*SummaryParser, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, bufio.MaxScanTokenSize), maxLineLength)
	splitter := &lineSplitter{}
	scanner.Split(splitter.split)

	p := &SummaryParser{
		scanner:  scanner,
		splitter: splitter,
		logger:   logger,
	}

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, err
		}

		return nil, ErrNoHeader
	}

	p.line = 1

	cols, err := parseHeader(scanner.Bytes())
	if err != nil {
		return nil, err
	}

	p.cols = cols

	return p, nil
}

func parseHeader(line []byte) (columns, error) {
	if !IsHeader(line) {
		return columns{}, ErrNoHeader
	}

	index := make(map[string]int)

	for n, name := range bytes.Split(line, tabByte) {
		index[string(bytes.TrimSpace(name))] = n
	}

	cols := columns{filename: noColumn, barcode: noColumn}

	for _, c := range []struct {
		name string
		dst  *int
	}{
		{ColRunID, &cols.runID},
		{ColStart, &cols.start},
		{ColDuration, &cols.duration},
		{ColLength, &cols.length},
		{ColQScore, &cols.qscore},
	} {
		n, ok := index[c.name]
		if !ok {
			return columns{}, fmt.Errorf("%w: %s", ErrMissingColumn, c.name)
		}

		*c.dst = n
	}

	if n, ok := index[ColFilename]; ok {
		cols.filename = n
	}

	if n, ok := index[ColBarcode]; ok {
		cols.barcode = n
	}

	cols.needed = max(cols.filename, cols.runID, cols.start, cols.duration,
		cols.length, cols.qscore, cols.barcode) + 1

	return cols, nil
}

// IsHeader returns true if the given summary line is a header row.
func IsHeader(line []byte) bool {
	return bytes.HasPrefix(line, []byte(HeaderLabel))
}

// Scan reads the next row into r. It returns io.EOF when there are no more
// rows, or the error that stopped reading.
func (p *SummaryParser) Scan(r *Read) error {
	for p.scanner.Scan() {
		p.line++

		if p.splitter.tooLong {
			p.skipped++
			p.logger.Warn("skipping bad summary row", "line", p.line, "err", ErrLineTooLong)

			continue
		}

		line := bytes.TrimRight(p.scanner.Bytes(), "\r")
		if len(line) == 0 || IsHeader(line) {
			continue
		}

		if err := p.parseRow(line, r); err != nil {
			p.skipped++
			p.logger.Warn("skipping bad summary row", "line", p.line, "err", err)

			continue
		}

		return nil
	}

	if err := p.scanner.Err(); err != nil {
		p.error = err

		return err
	}

	return io.EOF
}

func (p *SummaryParser) parseRow(line []byte, r *Read) error {
	fields := bytes.Split(line, tabByte)
	if len(fields) < p.cols.needed {
		return ErrTooFewColumns
	}

	var err error

	*r = Read{
		RunID:     string(fields[p.cols.runID]),
		StartTime: parseFloat(fields[p.cols.start], &err),
		Duration:  parseFloat(fields[p.cols.duration], &err),
		Length:    parseInt(fields[p.cols.length], &err),
		QScore:    parseFloat(fields[p.cols.qscore], &err),
	}

	if err != nil {
		return err
	}

	if r.StartTime < 0 || r.StartTime > MaxStartTime {
		return fmt.Errorf("%w: %s %g", ErrOutOfRange, ColStart, r.StartTime)
	}

	if r.Length < 0 {
		return fmt.Errorf("%w: %s %d", ErrOutOfRange, ColLength, r.Length)
	}

	if p.cols.filename != noColumn {
		r.Filename = string(fields[p.cols.filename])
	}

	if p.cols.barcode != noColumn {
		r.Barcode = string(fields[p.cols.barcode])
	}

	return nil
}

func parseFloat(b []byte, err *error) float64 {
	v, errp := strconv.ParseFloat(string(bytes.TrimSpace(b)), 64)
	if (errp != nil || math.IsNaN(v) || math.IsInf(v, 0)) && *err == nil {
		*err = fmt.Errorf("%w: %q", ErrBadNumber, b)
	}

	return v
}

func parseInt(b []byte, err *error) int64 {
	v, errp := strconv.ParseInt(string(bytes.TrimSpace(b)), 10, 64)
	if errp != nil && *err == nil {
		*err = fmt.Errorf("%w: %q", ErrBadNumber, b)
	}

	return v
}

// Skipped returns the number of rows that could not be parsed so far.
func (p *SummaryParser) Skipped() int {
	return p.skipped
}

// Err returns the first non-EOF error that was encountered, available after
// Scan() returns something other than nil.
func (p *SummaryParser) Err() error {
	if errors.Is(p.error, io.EOF) {
		return nil
	}

	return p.error
}
