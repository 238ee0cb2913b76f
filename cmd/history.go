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
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dustin/go-humanize" //nolint:misspell
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/wtsi-hgi/rtbasecall/journal"
)

var historyOutput string

// historyCmd represents the history command.
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show the batches basecalled in to an output directory",
	Long: `Show the batches basecalled in to an output directory.

Each batch is listed with its status: 'complete' batches were merged in to the
output; 'started' and 'failed' batches were not, and their files will be
basecalled again the next time 'watch' is run; 'retried' batches were once
started or failed, but all their files have since been basecalled by later
batches.
`,
	Run: func(_ *cobra.Command, _ []string) {
		if err := runHistory(); err != nil {
			die("%s", err)
		}
	},
}

func runHistory() (err error) {
	if historyOutput == "" {
		return errors.New("no output directory specified") //nolint:err113
	}

	j, err := journal.OpenReadOnly(filepath.Join(historyOutput, journal.Basename))
	if err != nil {
		return err
	}

	defer func() {
		if errc := j.Close(); err == nil {
			err = errc
		}
	}()

	records, err := j.List()
	if err != nil {
		return err
	}

	if len(records) == 0 {
		cliPrint("no batches\n")

		return nil
	}

	table := prepareHistoryTable()

	for _, r := range records {
		table.Append(historyColumns(r))
	}

	table.Render()

	return nil
}

// prepareHistoryTable creates a table with a header that outputs to STDOUT.
func prepareHistoryTable() *tablewriter.Table {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Batch", "Status", "Files", "Started", "Took", "Rows", "FASTQs", "Error"})
	table.SetAutoWrapText(false)

	return table
}

func historyColumns(r journal.Record) []string {
	took := ""

	if !r.Finished.IsZero() {
		took = r.Finished.Sub(r.Started).Round(time.Second).String()
	}

	return []string{
		strconv.FormatUint(r.ID, 10),
		string(r.Status),
		strconv.Itoa(len(r.Files)),
		humanize.Time(r.Started),
		took,
		humanize.Comma(int64(r.SummaryRows)),
		strconv.Itoa(r.SequenceFiles),
		r.Error,
	}
}

func init() {
	RootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringVarP(&historyOutput, "output", "o", "", "output directory of a watch run")
}
