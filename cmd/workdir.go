package cmd

import (
	"fmt"
	"os"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/shenwei356/util/pathutil"
	"github.com/zeebo/wyhash"

	"github.com/shenwei356/refmsa/internal/errs"
)

// resolveWorkDir expands a leading "~" in raw, and when raw is empty,
// derives a throwaway directory name by hashing the PID and start time
// with wyhash rather than os.MkdirTemp's random suffix — a fast,
// non-crypto hash is all a disposable directory name needs, distinct from
// the murmur3/splitmix64 hashing the k-mer sketches use.
func resolveWorkDir(raw string) (string, error) {
	if raw == "" {
		seed := fmt.Sprintf("%d-%d", os.Getpid(), time.Now().UnixNano())
		h := wyhash.HashString(seed, 0)
		return fmt.Sprintf("%s%crefmsa-%x", os.TempDir(), os.PathSeparator, h), nil
	}
	expanded, err := homedir.Expand(raw)
	if err != nil {
		return "", errs.Wrap(errs.IoFailure, raw, err)
	}
	return expanded, nil
}

// ensureWorkDir creates dir if absent, and refuses to reuse an existing
// non-empty directory so a stale run's SAM/FASTA files never get mixed
// into a new one, checked via pathutil rather than raw os.Stat calls.
func ensureWorkDir(dir string) error {
	existed, err := pathutil.DirExists(dir)
	if err != nil {
		return errs.Wrap(errs.IoFailure, dir, err)
	}
	if existed {
		empty, err := pathutil.IsEmpty(dir)
		if err != nil {
			return errs.Wrap(errs.IoFailure, dir, err)
		}
		if !empty {
			return errs.New(errs.InvalidArgument, dir, "cmd: working directory is not empty, refusing to reuse it")
		}
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errs.Wrap(errs.IoFailure, dir, err)
	}
	return nil
}
