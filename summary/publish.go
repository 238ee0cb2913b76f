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

package summary

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/inconshreveable/log15"
	"github.com/wtsi-hgi/rtbasecall/fast5"
	"github.com/wtsi-hgi/rtbasecall/kits"
	"github.com/wtsi-hgi/rtbasecall/stats"
)

// PublishConfig describes a statistics pass over a consolidated output
// directory.
type PublishConfig struct {
	// OutputDir holds the consolidated sequencing summary, and is where report
	// files are written.
	OutputDir string

	// Barcodes is the kit reads were demultiplexed with. No barcode report is
	// made for the "none" kit.
	Barcodes kits.BarcodeKit

	// Window is the width of throughput time windows in minutes.
	Window int

	// Fast5s are the raw files that may be probed for run start times.
	Fast5s []string

	// Metadata reads run start times from Fast5s.
	Metadata fast5.MetadataReader

	// Console receives human readable reports; nil to skip them.
	Console io.Writer

	Logger log15.Logger
}

// Publish recomputes all statistics from scratch from the consolidated
// sequencing summary, rewriting the report files and printing the reports to
// the console. It does nothing if there is no summary yet.
func Publish(ctx context.Context, cfg PublishConfig) error {
	f, err := os.Open(filepath.Join(cfg.OutputDir, stats.SummaryBasename))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	} else if err != nil {
		return err
	}

	defer f.Close()

	p, err := stats.NewSummaryParser(f, cfg.Logger)
	if errors.Is(err, stats.ErrNoHeader) {
		return nil
	} else if err != nil {
		return err
	}

	if cfg.Metadata == nil {
		cfg.Metadata = fast5.H5Dump{}
	}

	reporter := &Reporter{Dir: cfg.OutputDir, Out: cfg.Console}
	resolver := fast5.NewResolver(ctx, cfg.Metadata, cfg.Fast5s, cfg.Logger)

	s := NewSummariser(p)
	s.AddOperation(NewThroughput(resolver, cfg.Window, reporter))

	if cfg.Barcodes.Enabled() {
		s.AddOperation(NewBarcodes(cfg.Barcodes, reporter))
	}

	s.AddOperation(NewTotals(reporter))

	if err = s.Summarise(); err != nil {
		return err
	}

	if n := p.Skipped(); n > 0 {
		cfg.Logger.Warn("skipped unparsable summary rows", "count", n)
	}

	return nil
}
