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

// Package basecaller stages raw read files and runs the external basecaller
// over them.
package basecaller

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/inconshreveable/log15"
	"github.com/wtsi-hgi/rtbasecall/kits"
)

// Error is the type of the constant Err* variables.
type Error string

// Error returns a string version of the error.
func (e Error) Error() string { return string(e) }

const (
	ErrNoBinary = Error("basecaller binary not usable")

	// DefaultBinary is the basecaller run when none is configured.
	DefaultBinary = "guppy_basecaller"

	notStarted = -1
)

// Options configure a basecaller invocation.
type Options struct {
	// Binary is the basecaller executable; DefaultBinary if empty.
	Binary    string
	Model     kits.Model
	Barcodes  kits.BarcodeKit
	MidStrand bool
	CPU       bool
}

func (o Options) binary() string {
	if o.Binary == "" {
		return DefaultBinary
	}

	return o.Binary
}

// Command returns the full argument list, starting with the binary, that
// basecalls the files in the in directory, saving results to the out
// directory.
func (o Options) Command(in, out string) []string {
	cmd := []string{o.binary(), "--input_path", in, "--save_path", out}

	if !o.CPU {
		cmd = append(cmd, "--device", "auto")
	}

	if o.MidStrand {
		cmd = append(cmd, "--detect_mid_strand_barcodes")
	}

	cmd = append(cmd, o.Model.Flags()...)

	return append(cmd, o.Barcodes.Flags()...)
}

// Result is the outcome of one basecaller invocation.
type Result struct {
	Command []string

	// ExitCode is the exit status of the basecaller, or -1 if it couldn't be
	// started or was killed.
	ExitCode int

	// Err is set if the basecaller couldn't be run or didn't exit cleanly.
	Err error
}

// Failed returns true if the basecaller did not run to a successful exit.
func (r Result) Failed() bool {
	return r.Err != nil || r.ExitCode != 0
}

// Error returns a one line description of the failure, or an empty string if
// the invocation succeeded.
func (r Result) Error() string {
	if !r.Failed() {
		return ""
	}

	var cmd string

	if len(r.Command) > 0 {
		cmd = r.Command[0]
	}

	if r.Err != nil {
		return fmt.Sprintf("%s failed (exit code %d): %s", cmd, r.ExitCode, r.Err)
	}

	return fmt.Sprintf("%s failed with exit code %d", cmd, r.ExitCode)
}

// Basecaller runs the external basecaller.
type Basecaller struct {
	Options

	output io.Writer
	logger log15.Logger
}

// New returns a Basecaller that streams the output of the basecaller to the
// given writer, which may be nil to discard it.
func New(opts Options, output io.Writer, logger log15.Logger) *Basecaller {
	if output == nil {
		output = io.Discard
	}

	return &Basecaller{
		Options: opts,
		output:  output,
		logger:  logger.New("basecaller", opts.binary()),
	}
}

// Run basecalls the files in the in directory, writing results to the out
// directory, and waits for it to finish. Cancelling the context kills the
// basecaller.
func (b *Basecaller) Run(ctx context.Context, in, out string) Result {
	args := b.Command(in, out)
	result := Result{Command: args, ExitCode: notStarted}

	fmt.Fprintln(b.output, FormatCommand(args))
	b.logger.Info("running basecaller", "input", in, "output", out)

	cmd := exec.CommandContext(ctx, args[0], args[1:]...) //nolint:gosec
	cmd.Stdout = b.output
	cmd.Stderr = b.output

	err := cmd.Run()
	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
	}

	var exitErr *exec.ExitError

	if err != nil && !errors.As(err, &exitErr) {
		result.Err = err
	} else if ctxErr := ctx.Err(); ctxErr != nil {
		result.Err = ctxErr
	}

	if result.Failed() {
		b.logger.Error("basecaller failed", "exit_code", result.ExitCode, "err", result.Err)
	}

	return result
}

// FormatCommand renders a basecaller command over several lines, breaking
// before the main option groups.
func FormatCommand(args []string) string {
	var sb strings.Builder

	for n, arg := range args {
		if n > 0 {
			switch arg {
			case "--save_path", "--config", "--model", "--barcode_kits":
				sb.WriteString(" \\\n    ")
			default:
				sb.WriteByte(' ')
			}
		}

		sb.WriteString(arg)
	}

	return sb.String()
}

// CheckVersion runs the given basecaller binary with --version, returning the
// first line it prints. It returns an error wrapping ErrNoBinary if that
// fails.
func CheckVersion(ctx context.Context, binary string) (string, error) {
	if binary == "" {
		binary = DefaultBinary
	}

	out, err := exec.CommandContext(ctx, binary, "--version").CombinedOutput() //nolint:gosec
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrNoBinary, binary, err)
	}

	line, _, _ := bytes.Cut(bytes.TrimSpace(out), []byte{'\n'})

	return string(bytes.TrimSpace(line)), nil
}
