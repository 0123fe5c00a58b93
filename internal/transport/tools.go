package transport

import (
	"awkref/internal/core/errors"
	"awkref/internal/core/ports"
	"context"
	"fmt"
	"math"
	"strings"
)

const (
	ToolResolve = "resolve"
	ToolOutline = "outline"
	ToolRename  = "rename"
	ToolSymbols = "symbols"
	ToolStats   = "stats"
)

// Tools dispatches tool calls to the query service.
type Tools struct {
	query ports.QueryService
}

func NewTools(query ports.QueryService) *Tools {
	return &Tools{query: query}
}

// Handle implements Handler.
func (t *Tools) Handle(ctx context.Context, tool string, args map[string]any) (any, error) {
	switch strings.ToLower(strings.TrimSpace(tool)) {
	case ToolResolve:
		path, line, col, err := positionArgs(args)
		if err != nil {
			return nil, err
		}
		return t.query.Resolve(ctx, path, line, col)
	case ToolOutline:
		path, err := stringArg(args, "path")
		if err != nil {
			return nil, err
		}
		return t.query.Outline(ctx, path)
	case ToolRename:
		return t.rename(ctx, args)
	case ToolSymbols:
		name, err := stringArg(args, "name")
		if err != nil {
			return nil, err
		}
		declOnly, err := boolArg(args, "declarations_only")
		if err != nil {
			return nil, err
		}
		return t.query.Symbols(ctx, name, declOnly)
	case ToolStats:
		return t.query.Stats(ctx)
	case "":
		return nil, errors.New(errors.CodeValidationError, "tool is required")
	default:
		return nil, errors.New(errors.CodeNotSupported, fmt.Sprintf("unsupported tool: %s", tool))
	}
}

func (t *Tools) rename(ctx context.Context, args map[string]any) (any, error) {
	path, line, col, err := positionArgs(args)
	if err != nil {
		return nil, err
	}
	newName, err := stringArg(args, "new_name")
	if err != nil {
		return nil, err
	}
	apply, err := boolArg(args, "apply")
	if err != nil {
		return nil, err
	}
	plan, err := t.query.PlanRename(ctx, path, line, col, newName)
	if err != nil {
		return nil, err
	}
	if !apply {
		return ports.RenameResult{Plan: plan}, nil
	}
	return t.query.ApplyRename(ctx, plan)
}

func positionArgs(args map[string]any) (string, int, int, error) {
	path, err := stringArg(args, "path")
	if err != nil {
		return "", 0, 0, err
	}
	line, err := intArg(args, "line")
	if err != nil {
		return "", 0, 0, err
	}
	col, err := intArg(args, "column")
	if err != nil {
		return "", 0, 0, err
	}
	return path, line, col, nil
}

func stringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", argError(key, "is required")
	}
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", argError(key, "must be a non-empty string")
	}
	return s, nil
}

// intArg accepts JSON numbers with no fractional part.
func intArg(args map[string]any, key string) (int, error) {
	v, ok := args[key]
	if !ok {
		return 0, argError(key, "is required")
	}
	f, ok := v.(float64)
	if !ok || f != math.Trunc(f) || f < 1 || f > math.MaxInt32 {
		return 0, argError(key, "must be a positive integer")
	}
	return int(f), nil
}

func boolArg(args map[string]any, key string) (bool, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return false, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, argError(key, "must be a boolean")
	}
	return b, nil
}

func argError(key, msg string) error {
	de := &errors.DomainError{Code: errors.CodeValidationError, Message: fmt.Sprintf("%s %s", key, msg)}
	return de.WithContext(errors.CtxOperation, "args")
}
