package cmd

import (
	"os"
	"path/filepath"
	"regexp"

	"github.com/iafan/cwalk"
	"github.com/shenwei356/util/pathutil"

	"github.com/shenwei356/refmsa/internal/errs"
	"github.com/shenwei356/refmsa/seqio"
)

// defaultQueryFilePattern matches common FASTA and compressed-FASTA
// suffixes for a directory-of-samples query input.
var defaultQueryFilePattern = regexp.MustCompile(`(?i)\.(fasta|fa|fna)(\.gz|\.xz|\.zst|\.bz2)?$`)

// resolveQueryInput returns a single-file FASTA pool for AlignStream to
// read. When path already names a file it's returned unchanged; when it
// names a directory, every matching per-sample FASTA under it (walked in
// parallel via cwalk) is concatenated into one pool file under workDir,
// since this system's streaming pass is built around a single query
// stream rather than a per-sample driver loop.
func resolveQueryInput(path, workDir string, threads int) (string, error) {
	isDir, err := pathutil.IsDir(path)
	if err != nil {
		return "", errs.Wrap(errs.IoFailure, path, err)
	}
	if !isDir {
		return path, nil
	}

	files, err := getFileListFromDir(path, defaultQueryFilePattern, threads)
	if err != nil {
		return "", errs.Wrap(errs.IoFailure, path, err)
	}
	if len(files) == 0 {
		return "", errs.New(errs.InvalidArgument, path, "cmd: no FASTA files found under query directory")
	}

	pool := filepath.Join(workDir, "query_pool.fasta")
	out, err := seqio.NewFastaWriter(pool, 0)
	if err != nil {
		return "", err
	}
	defer out.Close()
	for _, f := range files {
		recs, err := seqio.ReadAllFasta(f)
		if err != nil {
			return "", err
		}
		for _, r := range recs {
			if err := out.WriteRecord(r.ID, r.Seq); err != nil {
				return "", err
			}
		}
	}
	return pool, nil
}

// getFileListFromDir walks dir in parallel and collects files whose name
// matches pattern.
func getFileListFromDir(dir string, pattern *regexp.Regexp, threads int) ([]string, error) {
	files := make([]string, 0, 512)
	ch := make(chan string, threads)
	done := make(chan struct{})
	go func() {
		for f := range ch {
			files = append(files, f)
		}
		close(done)
	}()

	if threads < 1 {
		threads = 1
	}
	cwalk.NumWorkers = threads
	err := cwalk.WalkWithSymlinks(dir, func(relPath string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && pattern.MatchString(info.Name()) {
			ch <- filepath.Join(dir, relPath)
		}
		return nil
	})
	close(ch)
	<-done
	if err != nil {
		return nil, err
	}
	return files, nil
}
