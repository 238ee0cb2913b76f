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

// Package watch runs the acquisition loop: it watches an input directory for
// new raw read files, basecalls them in batches, consolidates the results and
// republishes statistics, until no new files have been seen for a while.
package watch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/inconshreveable/log15"
	"github.com/wtsi-hgi/rtbasecall/basecaller"
	"github.com/wtsi-hgi/rtbasecall/batch"
	"github.com/wtsi-hgi/rtbasecall/fast5"
	"github.com/wtsi-hgi/rtbasecall/journal"
	"github.com/wtsi-hgi/rtbasecall/kits"
	"github.com/wtsi-hgi/rtbasecall/ledger"
	"github.com/wtsi-hgi/rtbasecall/merge"
	"github.com/wtsi-hgi/rtbasecall/summary"
)

// Error is the type of the constant Err* variables.
type Error string

// Error returns a string version of the error.
func (e Error) Error() string { return string(e) }

const (
	ErrInputNotDir   = Error("input is not a directory")
	ErrOutputIsFile  = Error("output is a file (must be a directory)")
	ErrBadBatchSize  = Error("batch size must be a positive integer")
	ErrBadStopTime   = Error("stop time must be positive")
	ErrBadWindow     = Error("time window must be a positive number of minutes")
	ErrNoModel       = Error("no basecalling model given")
	ErrNoBarcodeKit  = Error("no barcode kit given")
	ErrNoRunner      = Error("no basecaller given")
	ErrBadTick       = Error("tick must be positive")
	ErrOutputInInput = Error("output directory must not be in the input directory")

	DefaultBatchSize = 10
	DefaultStopAfter = time.Hour
	DefaultTick      = 10 * time.Second
)

// Config configures a Loop.
type Config struct {
	// InputDir is searched recursively for raw read files.
	InputDir string

	// OutputDir receives consolidated results, reports, the ledger and the
	// journal.
	OutputDir string

	// Ext is the extension of raw read files; batch.DefaultExt if empty.
	Ext string

	// BatchSize is the maximum number of files basecalled at once.
	BatchSize int

	// StopAfter is how long to go without seeing new files before stopping.
	StopAfter time.Duration

	// Tick is how long to sleep between scans when there is nothing new;
	// DefaultTick if 0.
	Tick time.Duration

	// Window is the width in minutes of throughput report windows.
	Window int

	Model    kits.Model
	Barcodes kits.BarcodeKit

	// ScratchDir is where per-batch scratch areas are made; the system
	// temporary directory if empty.
	ScratchDir string
}

// Validate checks the Config, filling in defaults for unset optional values.
func (c *Config) Validate() error {
	if c.Ext == "" {
		c.Ext = batch.DefaultExt
	}

	if c.Tick == 0 {
		c.Tick = DefaultTick
	}

	if c.Window == 0 {
		c.Window = summary.DefaultWindow
	}

	if err := c.validateNumbers(); err != nil {
		return err
	}

	if c.Model.IsZero() {
		return ErrNoModel
	}

	if c.Barcodes.IsZero() {
		return ErrNoBarcodeKit
	}

	return c.validateDirs()
}

func (c *Config) validateNumbers() error {
	switch {
	case c.BatchSize <= 0:
		return ErrBadBatchSize
	case c.StopAfter <= 0:
		return ErrBadStopTime
	case c.Tick < 0:
		return ErrBadTick
	case c.Window < 0:
		return ErrBadWindow
	}

	return nil
}

func (c *Config) validateDirs() error {
	var err error

	if c.InputDir, err = filepath.Abs(c.InputDir); err != nil {
		return err
	}

	if c.OutputDir, err = filepath.Abs(c.OutputDir); err != nil {
		return err
	}

	if info, errs := os.Stat(c.InputDir); errs != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrInputNotDir, c.InputDir)
	}

	if info, errs := os.Stat(c.OutputDir); errs == nil && !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrOutputIsFile, c.OutputDir)
	}

	if within(c.InputDir, c.OutputDir) {
		return fmt.Errorf("%w: %s", ErrOutputInInput, c.OutputDir)
	}

	return nil
}

// within returns true if path is dir or somewhere beneath it.
func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}

	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// Runner runs the basecaller on the files in the in directory, putting its
// results in the out directory. *basecaller.Basecaller is a Runner.
type Runner interface {
	Run(ctx context.Context, in, out string) basecaller.Result
}

// Deps are the collaborators of a Loop.
type Deps struct {
	Runner Runner
	Logger log15.Logger

	// Console receives progress messages and reports; nil to discard them.
	Console io.Writer

	// Metadata reads run start times from raw read files; fast5.H5Dump{} if
	// nil.
	Metadata fast5.MetadataReader
}

// InvocationError is returned by Loop.Run() when the basecaller fails. None of
// the batch's results were merged and its files were not added to the ledger.
type InvocationError struct {
	Files  []string
	Result basecaller.Result
}

// Error returns the basecaller's diagnostic and the size of the batch.
func (e *InvocationError) Error() string {
	return fmt.Sprintf("basecalling batch of %d file(s): %s", len(e.Files), e.Result.Error())
}

// Unwrap returns the underlying cause, if there was one other than an exit
// code.
func (e *InvocationError) Unwrap() error {
	return e.Result.Err
}

// Loop is the acquisition loop.
type Loop struct {
	cfg       Config
	deps      Deps
	logger    log15.Logger
	reporter  *summary.Reporter
	ledger    *ledger.Ledger
	scheduler *batch.Scheduler
	merger    *merge.Merger

	state   State
	idle    time.Duration
	waiting bool
	sleep   func(ctx context.Context, d time.Duration) error
}

// New validates the Config and returns a Loop ready to Run(). The output
// directory is created if it doesn't exist.
func New(cfg Config, deps Deps) (*Loop, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if deps.Runner == nil {
		return nil, ErrNoRunner
	}

	if deps.Logger == nil {
		deps.Logger = log15.New()
		deps.Logger.SetHandler(log15.DiscardHandler())
	}

	if deps.Console == nil {
		deps.Console = io.Discard
	}

	if deps.Metadata == nil {
		deps.Metadata = fast5.H5Dump{}
	}

	merger := merge.New(cfg.OutputDir, cfg.Barcodes, deps.Logger)
	if err := merger.Prepare(); err != nil {
		return nil, err
	}

	l := ledger.New(filepath.Join(cfg.OutputDir, ledger.Basename), deps.Logger)
	l.Load()

	return &Loop{
		cfg:      cfg,
		deps:     deps,
		logger:   deps.Logger.New("input", cfg.InputDir),
		reporter: &summary.Reporter{Out: deps.Console},
		ledger:   l,
		scheduler: &batch.Scheduler{
			Root: cfg.InputDir,
			Ext:  cfg.Ext,
			Size: cfg.BatchSize,
			Seen: l,
		},
		merger: merger,
		state:  Idle,
		sleep:  sleep,
	}, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// State returns the current state of the Loop.
func (l *Loop) State() State {
	return l.state
}

// Run scans for new files, basecalling them a batch at a time, until nothing
// new has been seen for the configured stop time or the context is cancelled,
// in which case it returns nil.
//
// It returns an *InvocationError if the basecaller fails, and any other error
// that stops a batch from being completed.
func (l *Loop) Run(ctx context.Context) (err error) {
	j, err := journal.Open(filepath.Join(l.cfg.OutputDir, journal.Basename))
	if err != nil {
		return err
	}

	defer func() {
		err = combine(err, j.Close())
	}()

	l.warnUnfinished(j)

	for {
		if l.idle >= l.cfg.StopAfter {
			l.stop()

			return nil
		}

		if ctx.Err() != nil {
			l.state = Stopped

			return nil
		}

		if done, errs := l.step(ctx, j); errs != nil || done {
			l.state = Stopped

			return errs
		}
	}
}

// supersede marks earlier unfinished batches whose files have all now been
// basecalled, so they are no longer warned about.
func (l *Loop) supersede(j *journal.Journal) {
	n, err := j.Supersede(l.ledger)
	if err != nil {
		l.logger.Warn("could not update batch journal", "err", err)

		return
	}

	if n > 0 {
		l.logger.Info("earlier batches now basecalled", "batches", n)
	}
}

func (l *Loop) warnUnfinished(j *journal.Journal) {
	l.supersede(j)

	unfinished, err := j.Unfinished()
	if err != nil {
		l.logger.Warn("could not read batch journal", "err", err)

		return
	}

	for _, r := range unfinished {
		l.logger.Warn("earlier batch did not complete; its files will be retried",
			"batch", r.ID, "status", r.Status, "files", len(r.Files), "err", r.Error)
	}
}

// step does one scan and either processes a batch or idles for a tick. It
// returns true if the context was cancelled while idling.
func (l *Loop) step(ctx context.Context, j *journal.Journal) (bool, error) {
	l.state = Scanning

	files, all, err := l.scheduler.Next()
	if err != nil {
		return false, err
	}

	if len(files) == 0 {
		l.state = Idle
		l.printWaiting()

		if err = l.sleep(ctx, l.cfg.Tick); err != nil {
			return true, nil //nolint:nilerr
		}

		l.idle += l.cfg.Tick

		return false, nil
	}

	l.state = Processing

	if err = l.process(ctx, j, files, all); err != nil {
		return false, err
	}

	l.state = Idle
	l.idle = 0
	l.waiting = false

	return false, nil
}

func (l *Loop) printWaiting() {
	if l.waiting {
		fmt.Fprint(l.deps.Console, ".")

		return
	}

	l.waiting = true

	l.logger.Info("waiting for new reads")
	fmt.Fprint(l.deps.Console, "\n\nWaiting for new reads (Ctrl-C to quit)")
}

func (l *Loop) stop() {
	l.state = Stopped

	fmt.Fprintf(l.deps.Console, "\nNo new reads for %s - stopping now. Bye!\n", describeDuration(l.cfg.StopAfter))
	l.logger.Info("stopping: no new reads", "idle", l.idle)
}

func describeDuration(d time.Duration) string {
	if d%time.Minute != 0 {
		return d.String()
	}

	minutes := int(d / time.Minute)
	if minutes == 1 {
		return "1 minute"
	}

	return fmt.Sprintf("%d minutes", minutes)
}

func (l *Loop) process(ctx context.Context, j *journal.Journal, files, all []batch.InputFile) error {
	names := batch.Names(files)

	id, err := j.Begin(names)
	if err != nil {
		return err
	}

	l.announce(files)

	result, err := l.basecall(ctx, files)
	if err != nil {
		return combine(err, j.Fail(id, err))
	}

	if err = l.ledger.Append(names); err != nil {
		return combine(err, j.Fail(id, err))
	}

	l.ledger.Load()

	if err = j.Complete(id, result); err != nil {
		return err
	}

	l.supersede(j)

	l.logger.Info("batch complete", "batch", id, "files", len(names),
		"summary_rows", result.SummaryRows, "basecalled", l.ledger.Len())

	return summary.Publish(ctx, summary.PublishConfig{
		OutputDir: l.cfg.OutputDir,
		Barcodes:  l.cfg.Barcodes,
		Window:    l.cfg.Window,
		Fast5s:    batch.Paths(all),
		Metadata:  l.deps.Metadata,
		Console:   l.deps.Console,
		Logger:    l.deps.Logger,
	})
}

func (l *Loop) announce(files []batch.InputFile) {
	l.reporter.Console("RUNNING BASECALLING", func(w io.Writer) error { //nolint:errcheck
		_, err := fmt.Fprintf(w, "Reads to be basecalled:\n    %s\n\n",
			strings.Join(batch.Paths(files), "\n    "))

		return err
	})
}

// basecall stages the files in a fresh scratch area, runs the basecaller on
// them and merges the results. The scratch area is always removed.
func (l *Loop) basecall(ctx context.Context, files []batch.InputFile) (result merge.Result, err error) {
	scratch, err := basecaller.NewScratch(l.cfg.ScratchDir)
	if err != nil {
		return result, err
	}

	defer func() {
		err = combine(err, scratch.Remove())
	}()

	if _, err = basecaller.Stage(files, scratch.In, l.logger); err != nil {
		return result, err
	}

	if r := l.deps.Runner.Run(ctx, scratch.In, scratch.Out); r.Failed() {
		return result, &InvocationError{Files: batch.Names(files), Result: r}
	}

	return l.merger.Merge(scratch.Out)
}

// combine returns err with other appended, keeping err as it is when other is
// nil.
func combine(err, other error) error {
	switch {
	case other == nil:
		return err
	case err == nil:
		return other
	}

	return multierror.Append(err, other)
}
