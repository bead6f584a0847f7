// Package shellexec runs shell commands for mash scripts, capturing output
// and accounting for child CPU time.
package shellexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	shellwords "github.com/mattn/go-shellwords"
	"golang.org/x/sys/unix"

	"github.com/jokane/mash/internal/script"
)

// Timeout is a wall-clock guard, not a scheduling device.
const Timeout = 60000 * time.Second

// Result is what a finished command looks like to scripts.
type Result struct {
	Cmd        string
	Stdout     string
	Stderr     string
	ReturnCode int
	UserTime   float64 // child user CPU seconds consumed by this call
	SysTime    float64 // child system CPU seconds consumed by this call
}

func (r *Result) Attr(name string) (script.Value, error) {
	switch name {
	case "stdout":
		return r.Stdout, nil
	case "stderr":
		return r.Stderr, nil
	case "returncode":
		return int64(r.ReturnCode), nil
	case "user_time":
		return r.UserTime, nil
	case "sys_time":
		return r.SysTime, nil
	case "cmd":
		return r.Cmd, nil
	default:
		return nil, fmt.Errorf("shell result has no attribute %q", name)
	}
}

func (r *Result) SetAttr(name string, v script.Value) error {
	return fmt.Errorf("shell result attribute %q cannot be set", name)
}

// ExitError reports a command that ran but returned non-zero, carrying both
// captured streams.
type ExitError struct {
	Result *Result
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("shell command %q failed with return code %d\nstdout:\n%s\nstderr:\n%s",
		e.Result.Cmd, e.Result.ReturnCode, e.Result.Stdout, e.Result.Stderr)
}

// Runner executes commands through the system shell. Executable checks are
// memoized for the life of the process.
type Runner struct {
	mu      sync.Mutex
	checked map[string]bool
}

func NewRunner() *Runner {
	return &Runner{checked: map[string]bool{}}
}

// CheckExecutable verifies that the first token of cmd is on PATH.
func (r *Runner) CheckExecutable(cmd string) error {
	words, err := shellwords.Parse(cmd)
	if err != nil || len(words) == 0 {
		words = strings.Fields(cmd)
	}
	if len(words) == 0 {
		return fmt.Errorf("empty shell command")
	}
	name := words[0]

	r.mu.Lock()
	ok, seen := r.checked[name]
	r.mu.Unlock()
	if seen {
		if !ok {
			return fmt.Errorf("executable %q not found on PATH", name)
		}
		return nil
	}

	_, lookErr := exec.LookPath(name)
	r.mu.Lock()
	r.checked[name] = lookErr == nil
	r.mu.Unlock()
	if lookErr != nil {
		return fmt.Errorf("executable %q not found on PATH", name)
	}
	return nil
}

// Run executes cmd via `sh -c`, feeding stdin and capturing both streams.
// With check set, the executable is verified on PATH first. Non-zero exit
// returns the populated Result inside an *ExitError.
func (r *Runner) Run(cmd, stdin string, check bool) (*Result, error) {
	if check {
		if err := r.CheckExecutable(cmd); err != nil {
			return nil, err
		}
	}

	var before, after unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_CHILDREN, &before); err != nil {
		return nil, fmt.Errorf("getrusage: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), Timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	c := exec.CommandContext(ctx, "sh", "-c", cmd)
	c.Stdin = strings.NewReader(stdin)
	c.Stdout = &stdout
	c.Stderr = &stderr

	runErr := c.Run()

	if err := unix.Getrusage(unix.RUSAGE_CHILDREN, &after); err != nil {
		return nil, fmt.Errorf("getrusage: %w", err)
	}

	res := &Result{
		Cmd:      cmd,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		UserTime: tvDelta(before.Utime, after.Utime),
		SysTime:  tvDelta(before.Stime, after.Stime),
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			res.ReturnCode = exitErr.ExitCode()
			return res, &ExitError{Result: res}
		}
		return nil, fmt.Errorf("shell command %q: %w", cmd, runErr)
	}
	return res, nil
}

func tvDelta(before, after unix.Timeval) float64 {
	sec := float64(after.Sec - before.Sec)
	usec := float64(after.Usec - before.Usec)
	return sec + usec/1e6
}
