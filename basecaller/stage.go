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
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"code.cloudfoundry.org/bytefmt"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/inconshreveable/log15"
	"github.com/wtsi-hgi/rtbasecall/batch"
)

const (
	scratchPattern = "rtbasecall-"
	inDir          = "in"
	outDir         = "out"
	dirPerms       = 0755
)

// Staged describes a batch of files copied in to a staging directory.
type Staged struct {
	Dir string

	// Files are the staged copies, in batch order.
	Files []string

	// Bytes is the total size of the staged copies.
	Bytes int64
}

// Stage copies the given files, in order, in to dir, creating it if needed.
// A file whose name is already taken in dir is given a new random name with
// the same extension. The source files are not touched.
func Stage(files []batch.InputFile, dir string, logger log15.Logger) (Staged, error) {
	staged := Staged{Dir: dir, Files: make([]string, 0, len(files))}

	if err := os.MkdirAll(dir, dirPerms); err != nil {
		return staged, err
	}

	for _, file := range files {
		dst, err := freePath(dir, file.Name)
		if err != nil {
			return staged, err
		}

		n, err := copyFile(file.Path, dst)
		if err != nil {
			return staged, err
		}

		staged.Files = append(staged.Files, dst)
		staged.Bytes += n

		logger.Info("staged read file", "file", file.Path)
	}

	logger.Info("staged batch", "files", len(staged.Files), "size", bytefmt.ByteSize(uint64(staged.Bytes))) //nolint:gosec

	return staged, nil
}

func freePath(dir, name string) (string, error) {
	path := filepath.Join(dir, name)
	ext := filepath.Ext(name)

	for {
		_, err := os.Lstat(path)
		if errors.Is(err, fs.ErrNotExist) {
			return path, nil
		} else if err != nil {
			return "", err
		}

		path = filepath.Join(dir, uuid.NewString()+ext)
	}
}

func copyFile(src, dst string) (n int64, err error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}

	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return 0, err
	}

	defer func() {
		if errc := out.Close(); err == nil {
			err = errc
		}
	}()

	return io.Copy(out, in)
}

// Scratch is a temporary working area for one batch, with an In directory for
// staged files and an Out directory for basecaller results.
type Scratch struct {
	Dir string
	In  string
	Out string
}

// NewScratch creates a new uniquely named scratch area inside parent, or the
// system temporary directory if parent is empty.
func NewScratch(parent string) (*Scratch, error) {
	dir, err := os.MkdirTemp(parent, scratchPattern)
	if err != nil {
		return nil, err
	}

	s := &Scratch{
		Dir: dir,
		In:  filepath.Join(dir, inDir),
		Out: filepath.Join(dir, outDir),
	}

	if err = os.Mkdir(s.Out, dirPerms); err != nil {
		return nil, multierror.Append(err, s.Remove()).ErrorOrNil()
	}

	return s, nil
}

// Remove deletes the scratch area and everything in it.
func (s *Scratch) Remove() error {
	return os.RemoveAll(s.Dir)
}
