package cmd

import (
	"os"
	"strconv"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/shenwei356/refmsa/internal/errs"
)

// fileConfig mirrors the flag surface for the --config TOML file; only the
// fields actually present in the file are unmarshaled, and a field here
// only takes effect when the matching flag was not explicitly passed on
// the command line.
type fileConfig struct {
	In              *string `toml:"in"`
	Ref             *string `toml:"ref"`
	Out             *string `toml:"out"`
	OutDir          *string `toml:"out_dir"`
	Threads         *int    `toml:"threads"`
	KmerSize        *int    `toml:"kmer_size"`
	KmerWindow      *int    `toml:"kmer_window"`
	ConsN           *int    `toml:"cons_n"`
	SketchSize      *int    `toml:"sketch_size"`
	Center          *string `toml:"center"`
	Collaborator    *string `toml:"collaborator"`
	KeepFirstLength *bool   `toml:"keep_first_length"`
	KeepAllLength   *bool   `toml:"keep_all_length"`
	SaveWorkdir     *bool   `toml:"save_workdir"`
	VCF             *bool   `toml:"vcf"`
}

func loadFileConfig(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.IoFailure, path, err)
	}
	var cfg fileConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, errs.Wrap(errs.ParseError, path, err)
	}
	return &cfg, nil
}

// applyFileConfig overrides flag values from cfg, but only for flags the
// user did not explicitly pass; an explicit CLI flag always wins.
func applyFileConfig(cmd *cobra.Command, cfg *fileConfig) {
	fs := cmd.Flags()
	set := func(name string, changed bool, apply func()) {
		if changed && !fs.Changed(name) {
			apply()
		}
	}
	set("in", cfg.In != nil, func() { fs.Set("in", *cfg.In) })
	set("ref", cfg.Ref != nil, func() { fs.Set("ref", *cfg.Ref) })
	set("out", cfg.Out != nil, func() { fs.Set("out", *cfg.Out) })
	set("out-dir", cfg.OutDir != nil, func() { fs.Set("out-dir", *cfg.OutDir) })
	set("center", cfg.Center != nil, func() { fs.Set("center", *cfg.Center) })
	set("collaborator", cfg.Collaborator != nil, func() { fs.Set("collaborator", *cfg.Collaborator) })

	if cfg.Threads != nil && !fs.Changed("threads") {
		fs.Set("threads", strconv.Itoa(*cfg.Threads))
	}
	if cfg.KmerSize != nil && !fs.Changed("kmer-size") {
		fs.Set("kmer-size", strconv.Itoa(*cfg.KmerSize))
	}
	if cfg.KmerWindow != nil && !fs.Changed("kmer-window") {
		fs.Set("kmer-window", strconv.Itoa(*cfg.KmerWindow))
	}
	if cfg.ConsN != nil && !fs.Changed("cons-n") {
		fs.Set("cons-n", strconv.Itoa(*cfg.ConsN))
	}
	if cfg.SketchSize != nil && !fs.Changed("sketch-size") {
		fs.Set("sketch-size", strconv.Itoa(*cfg.SketchSize))
	}
	if cfg.KeepFirstLength != nil && !fs.Changed("keep-first-length") {
		fs.Set("keep-first-length", strconv.FormatBool(*cfg.KeepFirstLength))
	}
	if cfg.KeepAllLength != nil && !fs.Changed("keep-all-length") {
		fs.Set("keep-all-length", strconv.FormatBool(*cfg.KeepAllLength))
	}
	if cfg.SaveWorkdir != nil && !fs.Changed("save-workdir") {
		fs.Set("save-workdir", strconv.FormatBool(*cfg.SaveWorkdir))
	}
	if cfg.VCF != nil && !fs.Changed("vcf") {
		fs.Set("vcf", strconv.FormatBool(*cfg.VCF))
	}
}
