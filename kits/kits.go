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

// Package kits holds the closed sets of basecalling models and barcoding kits
// that rtbasecall knows how to ask the basecaller for.
package kits

import (
	"fmt"
	"strconv"
	"strings"
)

// Error is the type of the constant Err* variables.
type Error string

// Error returns a string version of the error.
func (e Error) Error() string { return string(e) }

const (
	ErrUnknownModel      = Error("unknown basecalling model")
	ErrUnknownBarcodeKit = Error("unknown barcode kit")

	// Unclassified is the category for reads that were not assigned a
	// barcode.
	Unclassified = "unclassified"

	barcodePrefix = "barcode"
)

// Model is a basecalling model. The zero value is not a valid Model; get one
// from ParseModel.
type Model struct {
	name  string
	flags []string
}

//nolint:gochecknoglobals
var models = []Model{
	{"r9.4_fast", []string{"--config", "dna_r9.4.1_450bps_fast.cfg"}},
	{"r9.4_hac", []string{"--config", "dna_r9.4.1_450bps_hac.cfg"}},
	{"r9.4_mod", []string{"--config", "dna_r9.4.1_450bps_modbases_dam-dcm-cpg_hac.cfg"}},
	{"r9.4_kp", []string{"--config", "dna_r9.4.1_450bps_hac.cfg",
		"--model", "holtlab_kp_large_flipflop_r9.4_r9.4.1_apr_2019.jsn"}},
	{"r10_fast", []string{"--config", "dna_r10_450bps_fast.cfg"}},
	{"r10_hac", []string{"--config", "dna_r10_450bps_hac.cfg"}},
	{"r10_kp", []string{"--config", "TBA", "--model", "TBA"}},
}

// ParseModel returns the Model with the given name (case insensitive).
func ParseModel(name string) (Model, error) {
	name = strings.ToLower(strings.TrimSpace(name))

	for _, m := range models {
		if m.name == name {
			return m, nil
		}
	}

	return Model{}, fmt.Errorf("%w: %q (valid choices are %s)", ErrUnknownModel, name, JoinWithOr(ModelNames()))
}

// Name returns the name the model was parsed from.
func (m Model) Name() string { return m.name }

// Flags returns the basecaller arguments that select this model.
func (m Model) Flags() []string { return append([]string(nil), m.flags...) }

// IsZero reports whether m is the zero Model.
func (m Model) IsZero() bool { return m.name == "" }

// ModelNames returns the names of all known models, in their canonical order.
func ModelNames() []string {
	names := make([]string, len(models))

	for n, m := range models {
		names[n] = m.name
	}

	return names
}

// BarcodeKit is a barcoding kit, or the lack of one. The zero value is not a
// valid BarcodeKit; get one from ParseBarcodeKit.
type BarcodeKit struct {
	name        string
	first, last int
	flags       []string
}

const noneKit = "none"

//nolint:gochecknoglobals
var barcodeKits = []BarcodeKit{
	{"native_1-12", 1, 12, []string{"--barcode_kits", "EXP-NBD104", "--trim_barcodes"}},
	{"native_13-24", 13, 24, []string{"--barcode_kits", "EXP-NBD114", "--trim_barcodes"}},
	{"native_1-24", 1, 24, []string{"--barcode_kits", "EXP-NBD104 EXP-NBD114", "--trim_barcodes"}},
	{"native_1-96", 1, 96, []string{"--barcode_kits", "EXP-NBD196", "--trim_barcodes"}},
	{"rapid_1-12", 1, 12, []string{"--barcode_kits", "SQK-RBK004", "--trim_barcodes"}},
	{noneKit, 0, 0, nil},
}

// ParseBarcodeKit returns the BarcodeKit with the given name (case
// insensitive).
func ParseBarcodeKit(name string) (BarcodeKit, error) {
	name = strings.ToLower(strings.TrimSpace(name))

	for _, k := range barcodeKits {
		if k.name == name {
			return k, nil
		}
	}

	return BarcodeKit{}, fmt.Errorf("%w: %q (valid choices are %s)",
		ErrUnknownBarcodeKit, name, JoinWithOr(BarcodeKitNames()))
}

// Name returns the name the kit was parsed from.
func (k BarcodeKit) Name() string { return k.name }

// Flags returns the basecaller arguments that enable this kit.
func (k BarcodeKit) Flags() []string { return append([]string(nil), k.flags...) }

// IsZero reports whether k is the zero BarcodeKit.
func (k BarcodeKit) IsZero() bool { return k.name == "" }

// Enabled is false for the "none" kit.
func (k BarcodeKit) Enabled() bool { return !k.IsZero() && k.name != noneKit }

// Range returns the first and last barcode numbers of the kit. Both are 0 for
// the "none" kit.
func (k BarcodeKit) Range() (int, int) { return k.first, k.last }

// Categories returns the barcode labels the kit can assign, in order,
// followed by Unclassified. The "none" kit only has Unclassified.
func (k BarcodeKit) Categories() []string {
	if !k.Enabled() {
		return []string{Unclassified}
	}

	cats := make([]string, 0, k.last-k.first+2) //nolint:mnd

	for i := k.first; i <= k.last; i++ {
		cats = append(cats, BarcodeName(i))
	}

	return append(cats, Unclassified)
}

// BarcodeName returns the label the basecaller gives barcode n, eg.
// "barcode07".
func BarcodeName(n int) string {
	s := strconv.Itoa(n)
	if len(s) < 2 { //nolint:mnd
		s = "0" + s
	}

	return barcodePrefix + s
}

// BarcodeKitNames returns the names of all known barcode kits, in their
// canonical order.
func BarcodeKitNames() []string {
	names := make([]string, len(barcodeKits))

	for n, k := range barcodeKits {
		names[n] = k.name
	}

	return names
}

// JoinWithOr joins the given strings for use in help and error text, eg.
// "a, b or c".
func JoinWithOr(strs []string) string {
	switch len(strs) {
	case 0:
		return ""
	case 1:
		return strs[0]
	}

	return strings.Join(strs[:len(strs)-1], ", ") + " or " + strs[len(strs)-1]
}
