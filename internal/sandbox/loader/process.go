package loader

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/yungbote/lessongen/internal/observability"
	"github.com/yungbote/lessongen/internal/platform/logger"
	"github.com/yungbote/lessongen/internal/sandbox/transpile"
	"github.com/yungbote/lessongen/internal/sandbox/ui"
)

// WorkerRequest is one job for a sandbox worker process.
type WorkerRequest struct {
	Code      string         `json:"code"`
	Render    bool           `json:"render"`
	Props     map[string]any `json:"props,omitempty"`
	TimeoutMs int64          `json:"timeoutMs,omitempty"`
}

// WorkerResponse is the single line a worker writes back.
type WorkerResponse struct {
	Node  *ui.Node `json:"node,omitempty"`
	Error *Error   `json:"error,omitempty"`
}

const (
	workerGrace     = 2 * time.Second
	maxWorkerOutput = 8 << 20
)

type ProcessOptions struct {
	// Command is the worker argv, e.g. ["lessonctl", "sandbox-worker"].
	Command []string
	// Env is appended to the parent environment.
	Env     []string
	Timeout time.Duration
	Log     *logger.Logger
	Metrics *observability.Metrics
}

// ProcessEvaluator runs every load and render in a short-lived child process
// speaking JSON over stdio. A crash or runaway module only takes the child
// down.
type ProcessEvaluator struct {
	command []string
	env     []string
	timeout time.Duration
	log     *logger.Logger
	metrics *observability.Metrics
}

func NewProcessEvaluator(opts ProcessOptions) (*ProcessEvaluator, error) {
	if len(opts.Command) == 0 || strings.TrimSpace(opts.Command[0]) == "" {
		return nil, fmt.Errorf("sandbox worker command required")
	}
	e := &ProcessEvaluator{
		command: opts.Command,
		env:     opts.Env,
		timeout: opts.Timeout,
		log:     opts.Log,
		metrics: opts.Metrics,
	}
	if e.timeout <= 0 {
		e.timeout = DefaultTimeout
	}
	if e.log == nil {
		e.log = logger.Nop()
	}
	e.log = e.log.With("service", "ProcessEvaluator")
	return e, nil
}

func (e *ProcessEvaluator) Load(ctx context.Context, mod transpile.Module) (Component, error) {
	if _, err := e.exchange(ctx, WorkerRequest{Code: mod.Code}); err != nil {
		return nil, err
	}
	return &processComponent{e: e, code: mod.Code}, nil
}

type processComponent struct {
	e    *ProcessEvaluator
	code string
}

func (c *processComponent) Render(ctx context.Context, props map[string]any) (ui.Node, error) {
	resp, err := c.e.exchange(ctx, WorkerRequest{Code: c.code, Render: true, Props: props})
	if err != nil {
		return ui.Node{}, err
	}
	if resp.Node == nil {
		return ui.Node{}, nil
	}
	return *resp.Node, nil
}

func (e *ProcessEvaluator) exchange(ctx context.Context, req WorkerRequest) (WorkerResponse, error) {
	stage := "process_load"
	if req.Render {
		stage = "process_render"
	}
	req.TimeoutMs = e.timeout.Milliseconds()
	body, err := json.Marshal(req)
	if err != nil {
		return WorkerResponse{}, newError(KindEvaluation, err, "evaluation failed: %v", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, e.timeout+workerGrace)
	defer cancel()
	cmd := exec.CommandContext(runCtx, e.command[0], e.command[1:]...)
	cmd.Env = append(os.Environ(), e.env...)
	cmd.Stdin = bytes.NewReader(body)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	if ctxErr := runCtx.Err(); ctxErr != nil {
		e.metrics.IncSandbox(stage, string(KindTimeout))
		if errors.Is(ctx.Err(), context.Canceled) {
			return WorkerResponse{}, newError(KindTimeout, ctxErr, "sandbox cancelled: %v", ctx.Err())
		}
		return WorkerResponse{}, newError(KindTimeout, ctxErr, "sandbox timed out after %s", e.timeout)
	}

	var resp WorkerResponse
	if stdout.Len() > maxWorkerOutput {
		e.metrics.IncSandbox(stage, "error")
		return WorkerResponse{}, newError(KindEvaluation, nil, "sandbox worker output exceeds %d bytes", maxWorkerOutput)
	}
	if derr := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &resp); derr != nil {
		e.metrics.IncSandbox(stage, "error")
		e.log.Warn("Sandbox worker produced no response",
			"error", runErr,
			"stderr", truncate(stderr.String(), 512),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		if runErr == nil {
			runErr = derr
		}
		return WorkerResponse{}, newError(KindEvaluation, runErr, "sandbox worker failed: %v", runErr)
	}
	if resp.Error != nil {
		e.metrics.IncSandbox(stage, string(resp.Error.Kind))
		return WorkerResponse{}, resp.Error
	}
	e.metrics.IncSandbox(stage, "ok")
	return resp, nil
}

// ServeWorker handles one request from in and writes one response to out.
// It is the body of the sandbox-worker command.
func ServeWorker(ctx context.Context, in io.Reader, out io.Writer, opts HostOptions) error {
	var req WorkerRequest
	if err := json.NewDecoder(io.LimitReader(in, transpile.MaxSourceBytes*4)).Decode(&req); err != nil {
		return fmt.Errorf("decode worker request: %w", err)
	}
	if req.TimeoutMs > 0 {
		opts.Timeout = time.Duration(req.TimeoutMs) * time.Millisecond
	}
	host := NewHostEvaluator(opts)

	var resp WorkerResponse
	comp, err := host.Load(ctx, transpile.Module{Code: req.Code})
	if err == nil && req.Render {
		var node ui.Node
		node, err = comp.Render(ctx, req.Props)
		if err == nil {
			resp.Node = &node
		}
	}
	if err != nil {
		resp.Error = AsError(err)
	}
	return json.NewEncoder(out).Encode(resp)
}

// AsError converts any error into a sandbox *Error.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var le *Error
	if errors.As(err, &le) {
		return le
	}
	return &Error{Kind: KindEvaluation, Message: err.Error(), Err: err}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
