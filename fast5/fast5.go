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

// Package fast5 finds the experiment start time of sequencing runs from the
// metadata in raw fast5 files.
package fast5

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"os/exec"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/inconshreveable/log15"
)

// Error is the type of the constant Err* variables.
type Error string

// Error returns a string version of the error.
func (e Error) Error() string { return string(e) }

const (
	ErrNoRunInfo    = Error("no run_id and exp_start_time attributes found")
	ErrBadStartTime = Error("unparsable exp_start_time")

	// DefaultH5Dump is the HDF5 dump tool used to read fast5 attributes.
	DefaultH5Dump = "h5dump"

	attrRunID     = "run_id"
	attrExpStart  = "exp_start_time"
	attrPrefix    = `ATTRIBUTE "`
	dataValueMark = "(0):"
)

// RunInfo is the run a fast5 file belongs to, and when that run's experiment
// started.
type RunInfo struct {
	RunID    string
	ExpStart time.Time
}

// MetadataReader reads the RunInfo out of a fast5 file.
type MetadataReader interface {
	ReadRunInfo(ctx context.Context, path string) (RunInfo, error)
}

// H5Dump is a MetadataReader that uses the h5dump command line tool.
type H5Dump struct {
	Binary string
}

// ReadRunInfo runs h5dump on the given file and returns the first run_id and
// exp_start_time attributes it prints.
func (h H5Dump) ReadRunInfo(ctx context.Context, path string) (RunInfo, error) {
	binary := h.Binary
	if binary == "" {
		binary = DefaultH5Dump
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cmd := exec.CommandContext(ctx, binary, "-A", path)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return RunInfo{}, err
	}

	if err = cmd.Start(); err != nil {
		return RunInfo{}, err
	}

	info, errp := ParseH5Dump(stdout)

	cancel()

	// h5dump is killed once we have what we need, so its exit status only
	// matters if parsing failed.
	if errw := cmd.Wait(); errp != nil && errw != nil {
		return RunInfo{}, fmt.Errorf("%s: %w (%w)", path, errp, errw)
	}

	if errp != nil {
		return RunInfo{}, fmt.Errorf("%s: %w", path, errp)
	}

	return info, nil
}

// ParseH5Dump reads h5dump -A output until it has found both the run_id and
// exp_start_time attributes.
func ParseH5Dump(r io.Reader) (RunInfo, error) {
	scanner := bufio.NewScanner(r)

	var (
		pending  string
		runID    string
		expStart string
	)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if name, ok := strings.CutPrefix(line, attrPrefix); ok {
			pending, _, _ = strings.Cut(name, `"`)

			continue
		}

		if pending == "" || !strings.HasPrefix(line, dataValueMark) {
			continue
		}

		value := strings.Trim(strings.TrimSpace(strings.TrimPrefix(line, dataValueMark)), `"`)

		switch {
		case pending == attrRunID && runID == "":
			runID = value
		case pending == attrExpStart && expStart == "":
			expStart = value
		}

		pending = ""

		if runID != "" && expStart != "" {
			break
		}
	}

	if runID == "" || expStart == "" {
		if err := scanner.Err(); err != nil {
			return RunInfo{}, err
		}

		return RunInfo{}, ErrNoRunInfo
	}

	start, err := ParseStartTime(expStart)
	if err != nil {
		return RunInfo{}, err
	}

	return RunInfo{RunID: runID, ExpStart: start}, nil
}

// ParseStartTime parses an exp_start_time value, which is either an RFC3339
// timestamp (with or without a zone) or seconds since the Unix epoch.
func ParseStartTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}

	return time.Time{}, fmt.Errorf("%w: %q", ErrBadStartTime, s)
}

// Resolver finds the start time of runs by probing fast5 files. Each file is
// read at most once, and results are cached for the lifetime of the Resolver,
// which should be a single statistics pass.
type Resolver struct {
	ctx    context.Context //nolint:containedctx
	reader MetadataReader
	files  []string
	next   int
	starts map[string]time.Time
	logger log15.Logger
	now    func() time.Time
}

// NewResolver returns a Resolver that will probe the given files, in a random
// order, using reader.
func NewResolver(ctx context.Context, reader MetadataReader, files []string, logger log15.Logger) *Resolver {
	files = slices.Clone(files)
	rand.Shuffle(len(files), func(i, j int) { files[i], files[j] = files[j], files[i] })

	return &Resolver{
		ctx:    ctx,
		reader: reader,
		files:  files,
		starts: make(map[string]time.Time),
		logger: logger,
		now:    time.Now,
	}
}

// StartTime returns the experiment start time of the given run. If no file
// reveals it, a warning is logged and the current time is used instead.
func (r *Resolver) StartTime(runID string) time.Time {
	if t, ok := r.starts[runID]; ok {
		return t
	}

	for r.next < len(r.files) {
		path := r.files[r.next]
		r.next++

		info, err := r.reader.ReadRunInfo(r.ctx, path)
		if err != nil {
			r.logger.Debug("no run info in fast5", "path", path, "err", err)

			continue
		}

		if _, ok := r.starts[info.RunID]; !ok {
			r.starts[info.RunID] = info.ExpStart
		}

		if info.RunID == runID {
			return info.ExpStart
		}
	}

	r.logger.Warn("could not find exp_start_time in any fast5; using the current time", "run_id", runID)

	t := r.now()
	r.starts[runID] = t

	return t
}
