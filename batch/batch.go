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

// Package batch finds raw input files on disk and decides which of them should
// be basecalled next.
package batch

import (
	"io/fs"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// DefaultExt is the extension of raw nanopore output files.
const DefaultExt = ".fast5"

// InputFile is a raw file found under the input directory. Its identity is its
// Name, which is assumed to be unique across the whole input tree.
type InputFile struct {
	Path       string
	Name       string
	Discovered time.Time
}

// Seen is something that knows which input file names have already been
// processed, such as a *ledger.Ledger.
type Seen interface {
	Contains(name string) bool
}

// Scan recursively finds every file under root whose name ends with ext. The
// returned files have absolute paths and are sorted by path.
//
// Subdirectories that can't be read are skipped; an unreadable root is an
// error.
func Scan(root, ext string) ([]InputFile, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	now := time.Now()

	var files []InputFile

	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}

			if d != nil && d.IsDir() {
				return fs.SkipDir
			}

			return nil
		}

		if d.IsDir() || !strings.HasSuffix(d.Name(), ext) {
			return nil
		}

		files = append(files, InputFile{Path: path, Name: d.Name(), Discovered: now})

		return nil
	})

	sortByPath(files)

	return files, err
}

func sortByPath(files []InputFile) {
	slices.SortFunc(files, func(a, b InputFile) int {
		return strings.Compare(a.Path, b.Path)
	})
}

// SelectBatch returns, in path order, at most max of the given files whose
// names have not been seen. It does not modify all.
func SelectBatch(all []InputFile, seen Seen, max int) []InputFile { //nolint:predeclared
	if max <= 0 {
		return nil
	}

	candidates := make([]InputFile, 0, len(all))

	for _, f := range all {
		if !seen.Contains(f.Name) {
			candidates = append(candidates, f)
		}
	}

	sortByPath(candidates)

	if len(candidates) > max {
		candidates = candidates[:max]
	}

	return candidates
}

// Scheduler combines a Scan of an input directory with SelectBatch.
type Scheduler struct {
	Root string
	Ext  string
	Size int
	Seen Seen
}

// Next scans for input files and returns the next batch to process along with
// every file found. The batch is empty when there is nothing new.
func (s *Scheduler) Next() (batch []InputFile, all []InputFile, err error) {
	ext := s.Ext
	if ext == "" {
		ext = DefaultExt
	}

	all, err = Scan(s.Root, ext)
	if err != nil {
		return nil, nil, err
	}

	return SelectBatch(all, s.Seen, s.Size), all, nil
}

// Names returns the Name of each file.
func Names(files []InputFile) []string {
	names := make([]string, len(files))

	for n, f := range files {
		names[n] = f.Name
	}

	return names
}

// Paths returns the Path of each file.
func Paths(files []InputFile) []string {
	paths := make([]string, len(files))

	for n, f := range files {
		paths[n] = f.Path
	}

	return paths
}
