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
	"errors"
	"os"

	"github.com/spf13/cobra"
	"github.com/wtsi-hgi/rtbasecall/batch"
	"github.com/wtsi-hgi/rtbasecall/fast5"
	"github.com/wtsi-hgi/rtbasecall/kits"
	"github.com/wtsi-hgi/rtbasecall/summary"
)

var (
	summariseInput    string
	summariseOutput   string
	summariseBarcodes string
	summariseWindow   int
	summariseH5Dump   string
)

// summariseCmd represents the summarise command.
var summariseCmd = &cobra.Command{
	Use:   "summarise",
	Short: "Recalculate the reports for an output directory",
	Long: `Recalculate the reports for an output directory.

The consolidated sequencing_summary.txt in the output directory is read and
translocation_speed.tsv and barcode_distribution.tsv are rewritten, with the
reports also printed to STDOUT.

The input directory is searched for .fast5 files to find run start times in.
Without one, reads are timed from when this command is run.
`,
	Run: func(_ *cobra.Command, _ []string) {
		if err := runSummarise(); err != nil {
			die("%s", err)
		}
	},
}

func runSummarise() error {
	loadDotEnv()

	kit, err := kits.ParseBarcodeKit(summariseBarcodes)
	if err != nil {
		return err
	}

	if summariseOutput == "" {
		return errors.New("no output directory specified") //nolint:err113
	}

	var fast5s []string

	if summariseInput != "" {
		files, errs := batch.Scan(summariseInput, batch.DefaultExt)
		if errs != nil {
			return errs
		}

		fast5s = batch.Paths(files)
	}

	return summary.Publish(context.Background(), summary.PublishConfig{
		OutputDir: summariseOutput,
		Barcodes:  kit,
		Window:    summariseWindow,
		Fast5s:    fast5s,
		Metadata:  fast5.H5Dump{Binary: flagOrEnv(summariseH5Dump, envH5Dump, fast5.DefaultH5Dump)},
		Console:   os.Stdout,
		Logger:    appLogger,
	})
}

func init() {
	RootCmd.AddCommand(summariseCmd)

	summariseCmd.Flags().StringVarP(&summariseInput, "input", "i", "", "input directory of fast5s")
	summariseCmd.Flags().StringVarP(&summariseOutput, "output", "o", "", "output directory to summarise")
	summariseCmd.Flags().StringVarP(&summariseBarcodes, "barcodes", "b", "none",
		"which barcodes were used ("+kits.JoinWithOr(kits.BarcodeKitNames())+")")
	summariseCmd.Flags().IntVar(&summariseWindow, "window", summary.DefaultWindow,
		"the time window size (in minutes) for the translocation speed summary")
	summariseCmd.Flags().StringVar(&summariseH5Dump, "h5dump", "",
		"path to h5dump, used to find run start times (default h5dump on $PATH)")
}
