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

// Package merge consolidates the output of a basecaller run into a stable set
// of result files that grow with every batch.
package merge

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/inconshreveable/log15"
	"github.com/klauspost/pgzip"
	"github.com/wtsi-hgi/rtbasecall/kits"
	"github.com/wtsi-hgi/rtbasecall/stats"
)

const (
	LogsDir      = "guppy_logs"
	TelemetryDir = "guppy_telemetry"

	// ReadsBasename receives every read when there is no barcoding.
	ReadsBasename = "reads.fastq"

	logPrefix         = "guppy_basecaller_log"
	telemetryBasename = "sequencing_telemetry.js"
	fastqSuffix       = ".fastq"
	gzSuffix          = ".gz"

	// TimestampFormat matches the timestamps basecaller logs carry in their
	// names.
	TimestampFormat = "2006-01-02_15-04-05"

	dirPerms  = 0755
	filePerms = 0644
)

var (
	timestampRegex = regexp.MustCompile(`\d\d\d\d-\d\d-\d\d_\d\d-\d\d-\d\d`) //nolint:gochecknoglobals
	barcodeRegex   = regexp.MustCompile(`barcode\d\d`)                     //nolint:gochecknoglobals
)

// Result records what one Merge() added to the output directory.
type Result struct {
	// Logs are the basenames of log files copied into LogsDir.
	Logs []string

	// Telemetry are the basenames of telemetry files written into
	// TelemetryDir.
	Telemetry []string

	// SummaryRows is the number of non-header summary rows appended.
	SummaryRows int

	// Sequences maps the basename of each fastq file appended to, to the
	// number of lines appended to it.
	Sequences map[string]int
}

// Merger appends basecaller fragments to an output directory.
type Merger struct {
	dir     string
	kit     kits.BarcodeKit
	logger  log15.Logger
	now     func() time.Time
	summary string
}

// New returns a Merger that merges in to the given output directory, routing
// reads according to the given barcode kit.
func New(outDir string, kit kits.BarcodeKit, logger log15.Logger) *Merger {
	return &Merger{
		dir:     outDir,
		kit:     kit,
		logger:  logger.New("merge", outDir),
		now:     time.Now,
		summary: filepath.Join(outDir, stats.SummaryBasename),
	}
}

// Prepare creates the output directory and its log and telemetry
// subdirectories if they don't already exist.
func (m *Merger) Prepare() error {
	for _, dir := range []string{m.dir, filepath.Join(m.dir, LogsDir), filepath.Join(m.dir, TelemetryDir)} {
		if err := os.MkdirAll(dir, dirPerms); err != nil {
			return err
		}
	}

	return nil
}

type fragment struct {
	logs, telemetry, summaries, sequences []string
}

func findFragmentFiles(dir string) (*fragment, error) {
	var f fragment

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return nil
		}

		name := d.Name()

		switch {
		case strings.HasPrefix(name, logPrefix):
			f.logs = append(f.logs, path)
		case name == telemetryBasename:
			f.telemetry = append(f.telemetry, path)
		case name == stats.SummaryBasename:
			f.summaries = append(f.summaries, path)
		case strings.HasSuffix(name, fastqSuffix), strings.HasSuffix(name, fastqSuffix+gzSuffix):
			f.sequences = append(f.sequences, path)
		}

		return nil
	})

	return &f, err
}

// Merge walks the given basecaller output directory and appends what it finds
// to the output directory:
//
//   - basecaller logs are copied in to LogsDir;
//   - telemetry is copied in to TelemetryDir, named with the timestamp of the
//     last log;
//   - sequencing summaries are appended to the consolidated summary, with only
//     one header row ever written;
//   - fastq files (optionally gzipped) are appended to the fastq file for the
//     barcode found in their path.
//
// Nothing already in the output directory is removed or rewritten: a log or
// telemetry file whose name is already taken gets a uuid added to its name.
func (m *Merger) Merge(fragmentDir string) (Result, error) {
	result := Result{Sequences: make(map[string]int)}

	f, err := findFragmentFiles(fragmentDir)
	if err != nil {
		return result, err
	}

	for _, path := range f.logs {
		name, errc := copyFile(path, filepath.Join(m.dir, LogsDir), filepath.Base(path))
		if errc != nil {
			return result, errc
		}

		result.Logs = append(result.Logs, name)
	}

	if err = m.mergeTelemetry(f, &result); err != nil {
		return result, err
	}

	for _, path := range f.summaries {
		n, errm := m.mergeSummary(path)
		result.SummaryRows += n

		if errm != nil {
			return result, errm
		}
	}

	for _, path := range f.sequences {
		if err = m.mergeSequences(fragmentDir, path, &result); err != nil {
			return result, err
		}
	}

	m.logger.Debug("merged fragment", "logs", len(result.Logs),
		"summary_rows", result.SummaryRows, "fastqs", len(result.Sequences))

	return result, nil
}

func (m *Merger) mergeTelemetry(f *fragment, result *Result) error {
	if len(f.telemetry) == 0 {
		return nil
	}

	var last string

	if len(f.logs) > 0 {
		last = f.logs[len(f.logs)-1]
	}

	name := "sequencing_telemetry-" + Timestamp(last, m.now()) + ".js"

	for _, path := range f.telemetry {
		used, err := copyFile(path, filepath.Join(m.dir, TelemetryDir), name)
		if err != nil {
			return err
		}

		result.Telemetry = append(result.Telemetry, used)
	}

	return nil
}

// Timestamp returns the log-style timestamp found in path, or now formatted the
// same way if there isn't one.
func Timestamp(path string, now time.Time) string {
	if ts := timestampRegex.FindString(path); ts != "" {
		return ts
	}

	return now.Format(TimestampFormat)
}

// Destination returns the basename of the fastq file that reads from the given
// fragment path should be appended to.
func Destination(kit kits.BarcodeKit, path string) string {
	if !kit.Enabled() {
		return ReadsBasename
	}

	if barcode := barcodeRegex.FindString(path); barcode != "" {
		return barcode + fastqSuffix
	}

	return kits.Unclassified + fastqSuffix
}

func (m *Merger) mergeSequences(fragmentDir, path string, result *Result) error {
	rel, err := filepath.Rel(fragmentDir, path)
	if err != nil {
		rel = path
	}

	dest := Destination(m.kit, rel)

	n, err := appendFile(path, filepath.Join(m.dir, dest), nil)
	result.Sequences[dest] += n

	return err
}

func (m *Merger) mergeSummary(path string) (int, error) {
	hasHeader, err := destinationHasHeader(m.summary)
	if err != nil {
		return 0, err
	}

	rows := 0

	_, err = appendFile(path, m.summary, func(line []byte) bool {
		if stats.IsHeader(line) {
			if hasHeader {
				return false
			}

			hasHeader = true

			return true
		}

		if len(bytes.TrimSpace(line)) > 0 {
			rows++
		}

		return true
	})

	return rows, err
}

func destinationHasHeader(path string) (bool, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	} else if err != nil {
		return false, err
	}

	defer f.Close()

	line, err := bufio.NewReader(f).ReadSlice('\n')
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return false, err
	}

	return stats.IsHeader(line), nil
}

// appendFile appends the lines of src, decompressing it if it has a .gz
// suffix, to dst. If keep is not nil, only lines it returns true for are
// appended. Returns the number of lines appended. A final line without a
// newline gets one.
func appendFile(src, dst string, keep func(line []byte) bool) (n int, err error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}

	defer in.Close()

	var r io.Reader = in

	if strings.HasSuffix(src, gzSuffix) {
		gz, errg := pgzip.NewReader(in)
		if errg != nil {
			return 0, errg
		}

		defer gz.Close()

		r = gz
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_APPEND|os.O_CREATE, filePerms)
	if err != nil {
		return 0, err
	}

	defer deferClose(out.Close, &err)

	w := bufio.NewWriter(out)

	defer deferClose(w.Flush, &err)

	n, err = copyLines(bufio.NewReader(r), w, keep)

	return n, err
}

func copyLines(r *bufio.Reader, w *bufio.Writer, keep func(line []byte) bool) (int, error) {
	n := 0

	for {
		line, err := r.ReadBytes('\n')
		if len(line) > 0 && (keep == nil || keep(line)) {
			if _, errw := w.Write(line); errw != nil {
				return n, errw
			}

			if line[len(line)-1] != '\n' {
				if errw := w.WriteByte('\n'); errw != nil {
					return n, errw
				}
			}

			n++
		}

		if errors.Is(err, io.EOF) {
			return n, nil
		} else if err != nil {
			return n, err
		}
	}
}

// copyFile copies src in to dir as name. If that name is taken, a uuid is
// added to it, so nothing in dir is ever overwritten. It returns the name used.
func copyFile(src, dir, name string) (used string, err error) {
	in, err := os.Open(src)
	if err != nil {
		return "", err
	}

	defer in.Close()

	out, err := createNew(dir, name)
	if err != nil {
		return "", err
	}

	defer deferClose(out.Close, &err)

	_, err = io.Copy(out, in)

	return filepath.Base(out.Name()), err
}

func createNew(dir, name string) (*os.File, error) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	path := filepath.Join(dir, name)

	for {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePerms)
		if !errors.Is(err, fs.ErrExist) {
			return f, err
		}

		path = filepath.Join(dir, stem+"-"+uuid.NewString()+ext)
	}
}

func deferClose(fn func() error, err *error) {
	if errr := fn(); *err == nil {
		*err = errr
	}
}
