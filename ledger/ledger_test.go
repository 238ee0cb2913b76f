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

package ledger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/inconshreveable/log15"
	. "github.com/smartystreets/goconvey/convey"
)

func TestLedger(t *testing.T) {
	logger := log15.New()
	logger.SetHandler(log15.DiscardHandler())

	Convey("Given a ledger path", t, func() {
		path := filepath.Join(t.TempDir(), Basename)
		l := New(path, logger)

		Convey("a missing file loads as empty", func() {
			l.Load()
			So(l.Len(), ShouldEqual, 0)
			So(l.Contains("a.fast5"), ShouldBeFalse)
		})

		Convey("appended ids are remembered and persisted one per line", func() {
			So(l.Append([]string{"a.fast5", "b.fast5"}), ShouldBeNil)
			So(l.Contains("a.fast5"), ShouldBeTrue)
			So(l.Contains("b.fast5"), ShouldBeTrue)

			data, err := os.ReadFile(path)
			So(err, ShouldBeNil)
			So(string(data), ShouldEqual, "a.fast5\nb.fast5\n")

			Convey("and a fresh ledger loads them back", func() {
				m := New(path, logger)
				m.Load()
				So(m.Len(), ShouldEqual, 2)
				So(m.Contains("a.fast5"), ShouldBeTrue)
			})

			Convey("and appending never rewrites earlier content", func() {
				So(l.Append([]string{"c.fast5"}), ShouldBeNil)

				data, err := os.ReadFile(path)
				So(err, ShouldBeNil)
				So(string(data), ShouldEqual, "a.fast5\nb.fast5\nc.fast5\n")
			})

			Convey("and duplicate appends are harmless", func() {
				So(l.Append([]string{"a.fast5"}), ShouldBeNil)

				l.Load()
				So(l.Len(), ShouldEqual, 2)
				So(l.Contains("a.fast5"), ShouldBeTrue)
			})
		})

		Convey("blank lines and surrounding whitespace are ignored", func() {
			So(os.WriteFile(path, []byte("a.fast5\n\n  b.fast5 \n"), 0600), ShouldBeNil)

			l.Load()
			So(l.Len(), ShouldEqual, 2)
			So(l.Contains("b.fast5"), ShouldBeTrue)
		})

		Convey("an unreadable ledger is treated as empty", func() {
			So(os.Mkdir(path, 0700), ShouldBeNil)

			l.Load()
			So(l.Len(), ShouldEqual, 0)
		})
	})
}
