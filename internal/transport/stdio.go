// Package transport exposes the query service to editors and scrapers:
// a line-delimited JSON server on stdio and an HTTP server for metrics and
// health.
package transport

import (
	"awkref/internal/core/errors"
	"awkref/internal/shared/observability"
	"awkref/internal/shared/util"
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

const maxLineBytes = 16 << 20

// Handler answers one tool call.
type Handler func(ctx context.Context, tool string, args map[string]any) (any, error)

// ToolError is the error payload of a failed response.
type ToolError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type toolRequest struct {
	ID   any            `json:"id,omitempty"`
	Tool string         `json:"tool"`
	Args map[string]any `json:"args,omitempty"`
}

type toolResponse struct {
	ID     any        `json:"id,omitempty"`
	OK     bool       `json:"ok"`
	Result any        `json:"result,omitempty"`
	Error  *ToolError `json:"error,omitempty"`
}

// Stdio reads one request object per line and writes one response object
// per line. Requests are handled one at a time in arrival order.
type Stdio struct {
	in      io.Reader
	out     io.Writer
	limiter *util.Limiter
	session string

	mu      sync.Mutex
	running bool
}

// NewStdio creates a server over in and out. A nil limiter never rejects.
func NewStdio(in io.Reader, out io.Writer, limiter *util.Limiter) *Stdio {
	return &Stdio{
		in:      in,
		out:     out,
		limiter: limiter,
		session: uuid.NewString(),
	}
}

func (s *Stdio) SessionID() string {
	return s.session
}

// Serve runs until the input is exhausted or ctx is cancelled.
func (s *Stdio) Serve(ctx context.Context, handler Handler) error {
	if handler == nil {
		return errors.New(errors.CodeValidationError, "stdio handler is required")
	}
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New(errors.CodeConflict, "stdio server already running")
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	logger := slog.With("session", s.session)
	logger.Info("stdio server active")

	scanner := bufio.NewScanner(s.in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	writer := bufio.NewWriter(s.out)
	encoder := json.NewEncoder(writer)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}

		resp := s.handleLine(ctx, handler, line, logger)
		if err := encoder.Encode(resp); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
		if err := writer.Flush(); err != nil {
			return fmt.Errorf("flush response: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read request: %w", err)
	}
	return ctx.Err()
}

func (s *Stdio) handleLine(ctx context.Context, handler Handler, line []byte, logger *slog.Logger) toolResponse {
	var req toolRequest
	if err := json.Unmarshal(line, &req); err != nil {
		return failure(nil, errors.Wrap(err, errors.CodeValidationError, "malformed request"))
	}
	if !s.limiter.Allow(1) {
		observability.RequestsRejectedTotal.Inc()
		logger.Warn("request rejected by rate limit", "tool", req.Tool)
		return failure(req.ID, errors.New(errors.CodeRateLimited, "rate limit exceeded"))
	}
	if req.Args == nil {
		req.Args = map[string]any{}
	}

	result, err := handler(ctx, req.Tool, req.Args)
	if err != nil {
		logger.Debug("tool call failed", "tool", req.Tool, "error", err)
		return failure(req.ID, err)
	}
	return toolResponse{ID: req.ID, OK: true, Result: result}
}

func failure(id any, err error) toolResponse {
	toolErr := normalizeToolError(err)
	return toolResponse{ID: id, OK: false, Error: &toolErr}
}

func normalizeToolError(err error) ToolError {
	return ToolError{Code: string(errors.CodeOf(err)), Message: err.Error()}
}
