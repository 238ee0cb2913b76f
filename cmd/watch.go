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

package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/wtsi-hgi/rtbasecall/basecaller"
	"github.com/wtsi-hgi/rtbasecall/fast5"
	"github.com/wtsi-hgi/rtbasecall/kits"
	"github.com/wtsi-hgi/rtbasecall/summary"
	"github.com/wtsi-hgi/rtbasecall/watch"
)

var (
	inputDir   string
	outputDir  string
	barcodes   string
	model      string
	batchSize  int
	stopTime   int
	midStrand  bool
	useCPU     bool
	window     int
	tickFlag   string
	binaryFlag string
	h5dumpFlag string
	logFile    string
)

// watchCmd represents the watch command.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Basecall new fast5 files as they appear",
	Long: `Basecall new fast5 files as they appear.

The input directory is searched recursively for .fast5 files that haven't been
basecalled yet. They are copied, up to --batch-size at a time, in to a temporary
directory and basecalled with guppy_basecaller. The results are then added to
the output directory:

  sequencing_summary.txt      all summary rows, with a single header
  barcodeNN.fastq             reads for each barcode (or reads.fastq with
  unclassified.fastq          --barcodes none)
  guppy_logs/                 guppy's log for every batch
  guppy_telemetry/            guppy's telemetry for every batch
  translocation_speed.tsv     median speed and qscore in --window minute windows
  barcode_distribution.tsv    reads, bases and N50 per barcode
  basecalled_filenames        the fast5 files that have been basecalled
  batches.db                  the history of every batch (see 'history')

Reports are also printed after every batch. When there are no new files, the
input directory is checked again every --tick (default 10s) until no new files
have been seen for --stop-time minutes.

If guppy fails, rtbasecall exits with an error and the failed batch is
basecalled again next time it is run.

The basecaller, h5dump and tick can also be set with the RTBASECALL_BASECALLER,
RTBASECALL_H5DUMP and RTBASECALL_TICK environment variables, which can be
given in .env or .env.local files in the current directory.
`,
	Run: func(_ *cobra.Command, _ []string) {
		if logFile != "" {
			logToFile(logFile)
		}

		if err := runWatch(); err != nil {
			die("%s", err)
		}
	},
}

func runWatch() error {
	loadDotEnv()

	cfg, opts, err := watchConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	version, err := basecaller.CheckVersion(ctx, opts.Binary)
	if err != nil {
		return err
	}

	info("basecalling with %s", version)

	loop, err := watch.New(cfg, watch.Deps{
		Runner:   basecaller.New(opts, os.Stdout, appLogger),
		Logger:   appLogger,
		Console:  os.Stdout,
		Metadata: fast5.H5Dump{Binary: flagOrEnv(h5dumpFlag, envH5Dump, fast5.DefaultH5Dump)},
	})
	if err != nil {
		return err
	}

	return loop.Run(ctx)
}

func watchConfig() (watch.Config, basecaller.Options, error) {
	m, err := kits.ParseModel(model)
	if err != nil {
		return watch.Config{}, basecaller.Options{}, err
	}

	kit, err := kits.ParseBarcodeKit(barcodes)
	if err != nil {
		return watch.Config{}, basecaller.Options{}, err
	}

	tick, err := parseDurationFlagOrEnv(tickFlag, envTick, watch.DefaultTick)
	if err != nil {
		return watch.Config{}, basecaller.Options{}, err
	}

	cfg := watch.Config{
		InputDir:  inputDir,
		OutputDir: outputDir,
		BatchSize: batchSize,
		StopAfter: time.Duration(stopTime) * time.Minute,
		Tick:      tick,
		Window:    window,
		Model:     m,
		Barcodes:  kit,
	}

	opts := basecaller.Options{
		Binary:    flagOrEnv(binaryFlag, envBasecaller, basecaller.DefaultBinary),
		Model:     m,
		Barcodes:  kit,
		MidStrand: midStrand,
		CPU:       useCPU,
	}

	return cfg, opts, cfg.Validate()
}

func init() {
	RootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVarP(&inputDir, "input", "i", "",
		"input directory (will be searched recursively for fast5s)")
	watchCmd.Flags().StringVarP(&outputDir, "output", "o", "", "output directory")
	watchCmd.Flags().StringVarP(&barcodes, "barcodes", "b", "",
		"which barcodes to use ("+kits.JoinWithOr(kits.BarcodeKitNames())+")")
	watchCmd.Flags().StringVarP(&model, "model", "m", "",
		"which basecalling model to use ("+kits.JoinWithOr(kits.ModelNames())+")")
	watchCmd.Flags().IntVar(&batchSize, "batch-size", watch.DefaultBatchSize,
		"number of fast5 files to basecall per batch")
	watchCmd.Flags().IntVar(&stopTime, "stop-time", int(watch.DefaultStopAfter/time.Minute),
		"stop when a new fast5 file hasn't been seen for this many minutes")
	watchCmd.Flags().BoolVar(&midStrand, "mid-strand", false,
		"search for barcodes through the entire length of the read")
	watchCmd.Flags().BoolVar(&useCPU, "cpu", false, "use the CPU for basecalling (default: use the GPU)")
	watchCmd.Flags().IntVar(&window, "window", summary.DefaultWindow,
		"the time window size (in minutes) for the translocation speed summary")
	watchCmd.Flags().StringVar(&tickFlag, "tick", "", "how often to look for new files (default 10s)")
	watchCmd.Flags().StringVar(&binaryFlag, "basecaller", "",
		"path to guppy_basecaller (default guppy_basecaller on $PATH)")
	watchCmd.Flags().StringVar(&h5dumpFlag, "h5dump", "",
		"path to h5dump, used to find run start times (default h5dump on $PATH)")
	watchCmd.Flags().StringVar(&logFile, "logfile", "", "log to this file instead of STDERR")

	for _, flag := range []string{"input", "output", "barcodes", "model"} {
		if err := watchCmd.MarkFlagRequired(flag); err != nil {
			die("%s", err)
		}
	}
}
