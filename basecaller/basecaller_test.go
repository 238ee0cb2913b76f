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

package basecaller

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	. "github.com/smartystreets/goconvey/convey"
	"github.com/wtsi-hgi/rtbasecall/batch"
	internaltest "github.com/wtsi-hgi/rtbasecall/internal/test"
)

func TestCommand(t *testing.T) {
	Convey("Given options for a barcoded GPU run", t, func() {
		opts := Options{
			Model:    internaltest.Model("r9.4_hac"),
			Barcodes: internaltest.BarcodeKit("native_1-12"),
		}

		Convey("the command uses the default binary, the GPU and the kit flags", func() {
			So(opts.Command("/s/in", "/s/out"), ShouldResemble, []string{
				"guppy_basecaller", "--input_path", "/s/in", "--save_path", "/s/out",
				"--device", "auto",
				"--config", "dna_r9.4.1_450bps_hac.cfg",
				"--barcode_kits", "EXP-NBD104", "--trim_barcodes",
			})
		})

		Convey("mid-strand detection comes before the model flags", func() {
			opts.MidStrand = true
			opts.CPU = true
			opts.Binary = "/opt/guppy"

			So(opts.Command("i", "o"), ShouldResemble, []string{
				"/opt/guppy", "--input_path", "i", "--save_path", "o",
				"--detect_mid_strand_barcodes",
				"--config", "dna_r9.4.1_450bps_hac.cfg",
				"--barcode_kits", "EXP-NBD104", "--trim_barcodes",
			})
		})

		Convey("no barcode flags are given without barcoding", func() {
			opts.Barcodes = internaltest.BarcodeKit("none")
			opts.CPU = true

			So(opts.Command("i", "o"), ShouldResemble, []string{
				"guppy_basecaller", "--input_path", "i", "--save_path", "o",
				"--config", "dna_r9.4.1_450bps_hac.cfg",
			})
		})

		Convey("the command can be formatted over several lines", func() {
			formatted := FormatCommand(opts.Command("i", "o"))

			So(formatted, ShouldStartWith, "guppy_basecaller --input_path i \\\n    --save_path o --device auto")
			So(strings.Count(formatted, "\n"), ShouldEqual, 3)
		})
	})
}

func TestRun(t *testing.T) {
	Convey("Given a fake basecaller", t, func() {
		dir := t.TempDir()
		out := new(internaltest.StringBuilder)
		opts := Options{
			Model:    internaltest.Model("r10_fast"),
			Barcodes: internaltest.BarcodeKit("none"),
			CPU:      true,
		}

		Convey("a successful run writes its output and succeeds", func() {
			opts.Binary = internaltest.WriteScript(dir, "ok", `echo "called with $*"; mkdir -p "$4"; touch "$4/done"`)
			b := New(opts, out, internaltest.DiscardLogger())

			result := b.Run(context.Background(), "/in", filepath.Join(dir, "out"))
			So(result.Failed(), ShouldBeFalse)
			So(result.ExitCode, ShouldEqual, 0)
			So(result.Error(), ShouldBeEmpty)
			So(result.Command[0], ShouldEqual, opts.Binary)

			So(out.String(), ShouldContainSubstring, "called with --input_path /in --save_path")

			_, err := os.Stat(filepath.Join(dir, "out", "done"))
			So(err, ShouldBeNil)
		})

		Convey("a non-zero exit is a failure with its exit code", func() {
			opts.Binary = internaltest.WriteScript(dir, "fail", "echo oops >&2; exit 3")
			b := New(opts, out, internaltest.DiscardLogger())

			result := b.Run(context.Background(), "i", "o")
			So(result.Failed(), ShouldBeTrue)
			So(result.ExitCode, ShouldEqual, 3)
			So(result.Err, ShouldBeNil)
			So(result.Error(), ShouldContainSubstring, "exit code 3")
			So(out.String(), ShouldContainSubstring, "oops")
		})

		Convey("a missing binary is a failure", func() {
			opts.Binary = filepath.Join(dir, "missing")
			b := New(opts, nil, internaltest.DiscardLogger())

			result := b.Run(context.Background(), "i", "o")
			So(result.Failed(), ShouldBeTrue)
			So(result.ExitCode, ShouldEqual, -1)
			So(result.Err, ShouldNotBeNil)
		})

		Convey("cancelling the context kills the basecaller", func() {
			opts.Binary = internaltest.WriteScript(dir, "slow", "exec sleep 10")
			b := New(opts, out, internaltest.DiscardLogger())

			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()

			result := b.Run(ctx, "i", "o")
			So(result.Failed(), ShouldBeTrue)
			So(result.Err, ShouldEqual, context.DeadlineExceeded)
		})
	})
}

func TestCheckVersion(t *testing.T) {
	Convey("CheckVersion returns the first line of the version output", t, func() {
		dir := t.TempDir()
		bin := internaltest.WriteScript(dir, "guppy", `[ "$1" = "--version" ] || exit 1; echo ": Guppy Basecalling Software, version 6.5.7"; echo "more"`)

		version, err := CheckVersion(context.Background(), bin)
		So(err, ShouldBeNil)
		So(version, ShouldEqual, ": Guppy Basecalling Software, version 6.5.7")

		Convey("and fails for an unusable binary", func() {
			_, err = CheckVersion(context.Background(), internaltest.WriteScript(dir, "bad", "exit 1"))
			So(err, ShouldWrap, ErrNoBinary)

			_, err = CheckVersion(context.Background(), filepath.Join(dir, "missing"))
			So(err, ShouldWrap, ErrNoBinary)
		})
	})
}

func TestStage(t *testing.T) {
	Convey("Given read files with clashing names", t, func() {
		src := t.TempDir()
		a := filepath.Join(src, "run1", "reads_0.fast5")
		b := filepath.Join(src, "run2", "reads_0.fast5")
		c := filepath.Join(src, "run2", "reads_1.fast5")

		internaltest.WriteFile(a, "aaaa")
		internaltest.WriteFile(b, "bb")
		internaltest.WriteFile(c, "c")

		files := []batch.InputFile{
			{Path: a, Name: "reads_0.fast5"},
			{Path: b, Name: "reads_0.fast5"},
			{Path: c, Name: "reads_1.fast5"},
		}

		Convey("Stage copies them all, renaming the clash", func() {
			dir := filepath.Join(t.TempDir(), "in")
			logger, logs := internaltest.CaptureLogger()

			staged, err := Stage(files, dir, logger)
			So(err, ShouldBeNil)
			So(staged.Files, ShouldHaveLength, 3)
			So(staged.Bytes, ShouldEqual, 7)
			So(logs.String(), ShouldContainSubstring, "size=7B")

			So(staged.Files[0], ShouldEqual, filepath.Join(dir, "reads_0.fast5"))
			So(staged.Files[2], ShouldEqual, filepath.Join(dir, "reads_1.fast5"))

			renamed := filepath.Base(staged.Files[1])
			So(filepath.Ext(renamed), ShouldEqual, ".fast5")

			_, err = uuid.Parse(strings.TrimSuffix(renamed, ".fast5"))
			So(err, ShouldBeNil)

			So(internaltest.ReadFile(staged.Files[0]), ShouldEqual, "aaaa")
			So(internaltest.ReadFile(staged.Files[1]), ShouldEqual, "bb")

			entries, err := os.ReadDir(dir)
			So(err, ShouldBeNil)
			So(entries, ShouldHaveLength, 3)

			Convey("leaving the sources alone", func() {
				So(internaltest.ReadFile(a), ShouldEqual, "aaaa")
				So(internaltest.ReadFile(b), ShouldEqual, "bb")
			})
		})

		Convey("Stage fails if a source has gone", func() {
			So(os.Remove(b), ShouldBeNil)

			_, err := Stage(files, t.TempDir(), internaltest.DiscardLogger())
			So(err, ShouldNotBeNil)
		})
	})
}

func TestScratch(t *testing.T) {
	Convey("A Scratch area can be created and removed", t, func() {
		parent := t.TempDir()

		s, err := NewScratch(parent)
		So(err, ShouldBeNil)
		So(filepath.Dir(s.Dir), ShouldEqual, parent)
		So(s.In, ShouldEqual, filepath.Join(s.Dir, "in"))

		info, err := os.Stat(s.Out)
		So(err, ShouldBeNil)
		So(info.IsDir(), ShouldBeTrue)

		So(s.Remove(), ShouldBeNil)

		_, err = os.Stat(s.Dir)
		So(os.IsNotExist(err), ShouldBeTrue)
	})
}
