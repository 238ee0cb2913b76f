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

package internaltest

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/inconshreveable/log15"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/wtsi-hgi/rtbasecall/kits"
)

// SummaryHeader is a sequencing summary header row with the columns the
// statistics need, plus a few they don't.
const SummaryHeader = "filename\tread_id\trun_id\tchannel\tstart_time\tduration\t" +
	"sequence_length_template\tmean_qscore_template\tbarcode_arrangement\n"

// SummaryRow returns a sequencing summary row to go under SummaryHeader.
func SummaryRow(filename, runID string, start, duration float64, length int64, qscore float64, barcode string) string {
	return fmt.Sprintf("%s\tread-%s-%g\t%s\t1\t%g\t%g\t%d\t%g\t%s\n",
		filename, runID, start, runID, start, duration, length, qscore, barcode)
}

// FastqRecord returns a four line fastq record with a sequence of the given
// length.
func FastqRecord(id string, length int) string {
	return "@" + id + "\n" + strings.Repeat("A", length) + "\n+\n" + strings.Repeat("#", length) + "\n"
}

// BarcodeKit returns the named kit, failing the test if it's unknown.
func BarcodeKit(name string) kits.BarcodeKit {
	kit, err := kits.ParseBarcodeKit(name)
	So(err, ShouldBeNil)

	return kit
}

// Model returns the named model, failing the test if it's unknown.
func Model(name string) kits.Model {
	model, err := kits.ParseModel(name)
	So(err, ShouldBeNil)

	return model
}

// DiscardLogger returns a logger that throws everything away.
func DiscardLogger() log15.Logger {
	l := log15.New()
	l.SetHandler(log15.DiscardHandler())

	return l
}

// CaptureLogger returns a logger that records every message in to the
// returned builder, one logfmt line per message.
func CaptureLogger() (log15.Logger, *StringBuilder) {
	sb := new(StringBuilder)
	l := log15.New()
	l.SetHandler(log15.StreamHandler(sb, log15.LogfmtFormat()))

	return l, sb
}

// WriteFile creates path, and any missing parent directories, with the given
// contents.
func WriteFile(path, contents string) {
	So(os.MkdirAll(filepath.Dir(path), 0755), ShouldBeNil)
	So(os.WriteFile(path, []byte(contents), 0600), ShouldBeNil)
}

// ReadFile returns the contents of path, failing the test if it can't be read.
func ReadFile(path string) string {
	b, err := os.ReadFile(path)
	So(err, ShouldBeNil)

	return string(b)
}

// WriteScript creates an executable shell script in dir and returns its path.
func WriteScript(dir, name, body string) string {
	path := filepath.Join(dir, name)
	So(os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0700), ShouldBeNil) //nolint:gosec

	return path
}

type StringBuilder struct {
	strings.Builder
}

func (StringBuilder) Close() error {
	return nil
}

type BadWriter struct{}

func (BadWriter) Write([]byte) (int, error) {
	return 0, fs.ErrClosed
}

func (BadWriter) Close() error {
	return fs.ErrClosed
}
