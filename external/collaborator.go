// Package external models the injectable MSA collaborator §6/§9 describes:
// "takes an input FASTA path and an output FASTA path, guarantees output is
// an aligned FASTA with equal row length on success." The runtime
// subprocess substitution lives here, kept separate from msa/ so the
// orchestrator stays testable against a stub.
package external

import (
	"context"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/shenwei356/refmsa/internal/errs"
)

// Collaborator aligns the FASTA at input, writing an aligned FASTA
// (equal row length) to output.
type Collaborator interface {
	Align(ctx context.Context, input, output string) error
}

// builtinTemplates maps the three built-in keywords (§6: "-p either one of
// the built-in keywords {minipoa, mafft, clustalo} or a command-template
// string") to their command templates. {input}/{output}/{thread} are
// substituted the same way as a user-supplied template.
var builtinTemplates = map[string]string{
	"minipoa":  "minipoa -i {input} -o {output} -t {thread}",
	"mafft":    "mafft --thread {thread} {input} > {output}",
	"clustalo": "clustalo -i {input} -o {output} --threads={thread} --force",
}

// Subprocess is a Collaborator that runs an external alignment tool by
// substituting {input}/{output}/{thread} into a command template, via
// /bin/sh -c so templates may use shell redirection (needed by mafft's
// stdout-redirect form above).
type Subprocess struct {
	Template string
	Threads  int
	Timeout  time.Duration
}

// NewSubprocess resolves keywordOrTemplate (a builtin keyword or a raw
// template requiring {input} and {output}) into a runnable Subprocess.
func NewSubprocess(keywordOrTemplate string, threads int) (*Subprocess, error) {
	tmpl, ok := builtinTemplates[keywordOrTemplate]
	if !ok {
		tmpl = keywordOrTemplate
	}
	if !strings.Contains(tmpl, "{input}") || !strings.Contains(tmpl, "{output}") {
		return nil, errs.New(errs.InvalidArgument, "",
			"external: command template must contain {input} and {output}: "+tmpl)
	}
	if threads < 1 {
		threads = 1
	}
	return &Subprocess{Template: tmpl, Threads: threads}, nil
}

// Align runs the resolved command template against input/output.
func (s *Subprocess) Align(ctx context.Context, input, output string) error {
	cmdline := strings.NewReplacer(
		"{input}", input,
		"{output}", output,
		"{thread}", strconv.Itoa(s.Threads),
	).Replace(s.Template)

	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", cmdline)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return errs.Wrap(errs.ExternalToolFailure,
			"external: command failed: "+cmdline+": "+string(out), err)
	}
	return nil
}

// Stub is a Collaborator for tests: it records the input/output it was
// called with and returns a configurable error, without invoking any
// subprocess. fn, when set, lets a test fabricate the output file.
type Stub struct {
	Calls []StubCall
	Err   error
	Fn    func(input, output string) error
}

// StubCall records one Align invocation against a Stub.
type StubCall struct {
	Input, Output string
}

// Align satisfies Collaborator without running a subprocess.
func (s *Stub) Align(ctx context.Context, input, output string) error {
	s.Calls = append(s.Calls, StubCall{Input: input, Output: output})
	if s.Fn != nil {
		return s.Fn(input, output)
	}
	return s.Err
}
