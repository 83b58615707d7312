// Package subprocess is the typed command builder for the external
// tools growlight delegates to (spec §5/§6): mdadm, zpool, zfs,
// dmsetup, mkfs.*, fsck.*, badblocks, hdparm, mkswap, swapon/swapoff,
// fstrim, grub-mkdevicemap. Commands run without a shell; stdin is
// redirected from /dev/null and stderr merged into stdout.
package subprocess

import (
	"bytes"
	"context"
	"os/exec"

	"golang.org/x/time/rate"
	"golang.org/x/xerrors"
)

// ErrSubprocessFailed wraps a non-zero exit or unreadable output (spec
// §7 "SubprocessFailed").
var ErrSubprocessFailed = xerrors.New("subprocess failed")

// Result is a finished subprocess's combined output and exit status.
type Result struct {
	Output   string
	ExitCode int
}

// Runner paces concurrent external tool spawns so a batch of drains
// (e.g. mkfs + fsck + badblocks queued together) doesn't overwhelm the
// host; the limiter is shared across calls from a single Runner.
type Runner struct {
	limiter *rate.Limiter
}

// NewRunner returns a Runner that allows burst concurrent spawns up to
// burst, refilling at r tokens/sec.
func NewRunner(r rate.Limit, burst int) *Runner {
	return &Runner{limiter: rate.NewLimiter(r, burst)}
}

// Run executes name with args, with no shell involved — args are passed
// directly to exec.Command, so shell metacharacters in any argument are
// inert rather than escaped (spec §6: "escapes shell metacharacters...
// before passing a command string" describes the effect this achieves
// by construction). stdin is /dev/null-equivalent (exec.Cmd's default
// nil Stdin already reads as EOF, matching growlight's redirect);
// stdout and stderr are merged into one buffer.
func (r *Runner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return Result{}, xerrors.Errorf("rate limit wait: %w", err)
	}

	cmd := exec.CommandContext(ctx, name, args...)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	err := cmd.Run()
	exitCode := 0
	if exitErr, ok := err.(*exec.ExitError); ok {
		exitCode = exitErr.ExitCode()
	} else if err != nil {
		return Result{Output: buf.String()}, xerrors.Errorf("%w: %s: %v", ErrSubprocessFailed, name, err)
	}
	result := Result{Output: buf.String(), ExitCode: exitCode}
	if exitCode != 0 {
		return result, xerrors.Errorf("%w: %s exited %d", ErrSubprocessFailed, name, exitCode)
	}
	return result, nil
}
