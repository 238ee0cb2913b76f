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

// Package ledger records which raw input files have already been handed to the
// basecaller.
package ledger

import (
	"bufio"
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/inconshreveable/log15"
)

const (
	// Basename is the name of the ledger file inside an output directory.
	Basename = "basecalled_filenames"

	filePerms = 0644
)

// Ledger is an append-only, newline-delimited list of input file base names,
// with an in-memory set of its contents.
type Ledger struct {
	path   string
	seen   map[string]struct{}
	logger log15.Logger
}

// New returns a Ledger backed by the file at path. Call Load() to read what
// the file already holds.
func New(path string, logger log15.Logger) *Ledger {
	return &Ledger{
		path:   path,
		seen:   make(map[string]struct{}),
		logger: logger,
	}
}

// Path returns the location of the persisted ledger.
func (l *Ledger) Path() string {
	return l.path
}

// Load replaces the in-memory set with the persisted contents of the ledger.
//
// A ledger that can't be read is treated as empty, so that files get
// basecalled again rather than silently skipped.
func (l *Ledger) Load() {
	l.seen = make(map[string]struct{})

	f, err := os.Open(l.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			l.logger.Warn("could not read ledger; treating it as empty", "path", l.path, "err", err)
		}

		return
	}

	defer f.Close()

	scanner := bufio.NewScanner(f)

	for scanner.Scan() {
		if id := strings.TrimSpace(scanner.Text()); id != "" {
			l.seen[id] = struct{}{}
		}
	}

	if err := scanner.Err(); err != nil {
		l.logger.Warn("ledger read stopped early", "path", l.path, "err", err)
	}
}

// Contains returns true if id was in the ledger when last loaded, or has been
// appended since.
func (l *Ledger) Contains(id string) bool {
	_, ok := l.seen[id]

	return ok
}

// Len returns the number of distinct ids in the ledger.
func (l *Ledger) Len() int {
	return len(l.seen)
}

// Append writes each id on its own line to the end of the ledger file,
// creating it if necessary. Existing content is never rewritten.
func (l *Ledger) Append(ids []string) (err error) {
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, filePerms)
	if err != nil {
		return err
	}

	defer func() {
		if errc := f.Close(); err == nil {
			err = errc
		}
	}()

	w := bufio.NewWriter(f)

	for _, id := range ids {
		if _, err = w.WriteString(id + "\n"); err != nil {
			return err
		}
	}

	if err = w.Flush(); err != nil {
		return err
	}

	for _, id := range ids {
		l.seen[id] = struct{}{}
	}

	return nil
}
