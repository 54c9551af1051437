package hooks

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

// Result records one hook run.
type Result struct {
	Hook     Hook
	Phase    Phase
	Success  bool
	Stdout   string
	Stderr   string
	Error    error
	Duration time.Duration
}

// Executor runs the hooks of a Config for one export.
type Executor struct {
	config  *Config
	export  ExportContext
	results []Result
}

func NewExecutor(config *Config, export ExportContext) *Executor {
	if config == nil {
		config = &Config{}
	}
	return &Executor{config: config, export: export}
}

// RunPreExport runs pre-export hooks in order and stops at the first
// failing hook whose on_error is fail.
func (e *Executor) RunPreExport(ctx context.Context) error {
	for _, h := range e.config.Hooks.PreExport {
		r := e.run(ctx, h, PreExport)
		if !r.Success && h.OnError != OnErrorContinue {
			return fmt.Errorf("pre-export hook %q failed: %w", h.Name, r.Error)
		}
	}
	return nil
}

// RunPostExport runs every post-export hook and reports the first
// failure among hooks whose on_error is fail.
func (e *Executor) RunPostExport(ctx context.Context) error {
	var first error
	for _, h := range e.config.Hooks.PostExport {
		r := e.run(ctx, h, PostExport)
		if !r.Success && h.OnError == OnErrorFail && first == nil {
			first = fmt.Errorf("post-export hook %q failed: %w", h.Name, r.Error)
		}
	}
	return first
}

func (e *Executor) run(ctx context.Context, h Hook, phase Phase) Result {
	timeout := h.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(ctx, "cmd", "/C", h.Command)
	} else {
		cmd = exec.CommandContext(ctx, "sh", "-c", h.Command)
	}
	// Grandchildren may hold the pipes open after the shell is killed.
	cmd.WaitDelay = time.Second

	env := append(os.Environ(), e.export.ToEnv()...)
	for k, v := range h.Env {
		env = append(env, k+"="+os.ExpandEnv(v))
	}
	cmd.Env = env

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	r := Result{
		Hook:     h,
		Phase:    phase,
		Success:  err == nil,
		Stdout:   strings.TrimSpace(stdout.String()),
		Stderr:   strings.TrimSpace(stderr.String()),
		Duration: time.Since(start),
	}
	if ctx.Err() == context.DeadlineExceeded {
		err = fmt.Errorf("timed out after %v", timeout)
		r.Success = false
	}
	r.Error = err
	e.results = append(e.results, r)
	return r
}

// Results returns the runs so far, in order.
func (e *Executor) Results() []Result {
	return e.results
}

// Summary describes the runs for the terminal.
func (e *Executor) Summary() string {
	if len(e.results) == 0 {
		return ""
	}
	var ok, failed int
	var b strings.Builder
	for _, r := range e.results {
		if r.Success {
			ok++
			continue
		}
		failed++
		fmt.Fprintf(&b, "  %s %s: %v", r.Phase, r.Hook.Name, r.Error)
		if r.Stderr != "" {
			fmt.Fprintf(&b, " (%s)", truncate(r.Stderr, 80))
		}
		b.WriteByte('\n')
	}
	return fmt.Sprintf("Hooks: %d succeeded, %d failed\n", ok, failed) + b.String()
}

// RunHooks loads the project's hooks and returns an executor, or nil when
// disabled or nothing is configured.
func RunHooks(projectDir string, export ExportContext, disabled bool) (*Executor, error) {
	if disabled {
		return nil, nil
	}
	l := NewLoader(WithProjectDir(projectDir))
	if err := l.Load(); err != nil {
		return nil, err
	}
	if !l.HasHooks() {
		return nil, nil
	}
	return NewExecutor(l.Config(), export), nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
