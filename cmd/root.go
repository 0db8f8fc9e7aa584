// Copyright © 2023-2024 Wei Shen <shenwei356@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

// Package cmd implements the refmsa command line: one flat command driving
// the Constructed->Indexed->Aligning->AlignDone->Merged pipeline end to end
// (§6), plus the logging/config scaffolding every subcommand-style sibling
// tool in this stack carries.
package cmd

import (
	"fmt"
	"os"

	"github.com/mattn/go-colorable"
	logging "github.com/shenwei356/go-logging"
	"github.com/spf13/cobra"
)

var log = logging.MustGetLogger("refmsa")
var logLevel logging.LeveledBackend

func init() {
	format := logging.MustStringFormatter(
		`%{color}[%{level:.4s}]%{color:reset} %{message}`,
	)
	backend := logging.NewLogBackend(colorable.NewColorableStderr(), "", 0)
	backendFormatter := logging.NewBackendFormatter(backend, format)
	logLevel = logging.AddModuleLevel(backendFormatter)
	logLevel.SetLevel(logging.INFO, "")
	logging.SetBackend(logLevel)
}

// RootCmd is the single entry point; there are no subcommands because §6
// describes one flat flag surface, not a command tree.
var RootCmd = &cobra.Command{
	Use:   "refmsa",
	Short: "Reference-guided multiple sequence alignment for highly similar sequences",
	Long: `refmsa aligns a pool of highly similar sequences (viral genomes,
mitochondrial DNA, population-scale nucleotide panels) against a
reference-derived consensus, then merges the per-query alignments into a
single rectangular FASTA via an externally-run reference-MSA pass over the
small set of queries that carry insertions.`,
	Run: runMSA,
}

func init() {
	RootCmd.PersistentFlags().StringP("config", "", "", "TOML config file; explicit flags still take precedence")
	RootCmd.PersistentFlags().BoolP("quiet", "q", false, "do not print any verbose information")

	fs := RootCmd.Flags()
	fs.StringP("in", "i", "", "input query FASTA, the pool of sequences to align (required)")
	fs.StringP("ref", "r", "", "reference FASTA the queries are aligned against (required)")
	fs.StringP("out", "o", "", "output merged FASTA (required)")
	fs.StringP("out-dir", "w", "", "working directory (auto-generated under the system temp dir if absent)")
	fs.IntP("threads", "t", 0, "number of worker threads, 1..100000 (default: hardware concurrency)")
	fs.Int("kmer-size", 15, "sketch/minimizer k-mer size, 4..31")
	fs.Int("kmer-window", 10, "minimizer window size")
	fs.Int("cons-n", 1000, "Top-K by length for consensus input")
	fs.Int("sketch-size", 2000, "MinHash sketch size")
	fs.StringP("center", "c", "", "optional user-supplied center/consensus FASTA")
	fs.StringP("collaborator", "p", "", "MSA collaborator: a built-in keyword {minipoa,mafft,clustalo} or a command template containing {input}/{output}")
	fs.Bool("keep-first-length", false, "trim merged columns to the first reference's ungapped length")
	fs.Bool("keep-all-length", false, "trim merged columns where any reference row is gapped")
	fs.Bool("save-workdir", false, "keep the working directory instead of removing it on success")
	fs.Bool("vcf", false, "also emit a VCF of SNP/INS/DEL records, each query against the reference named in its SAM record")
	fs.Bool("diagnostics", false, "write a per-query similarity histogram to <workdir>/results/similarity.png")
}

// Execute runs the root command; main's only job is to call this.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
