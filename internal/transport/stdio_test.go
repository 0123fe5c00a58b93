package transport

import (
	"awkref/internal/core/errors"
	"awkref/internal/shared/util"
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func decodeResponses(t *testing.T, out string) []toolResponse {
	t.Helper()
	var resps []toolResponse
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}
		var r toolResponse
		if err := json.Unmarshal([]byte(line), &r); err != nil {
			t.Fatalf("decode %q: %v", line, err)
		}
		resps = append(resps, r)
	}
	return resps
}

func echoHandler(_ context.Context, tool string, args map[string]any) (any, error) {
	if tool == "fail" {
		return nil, errors.New(errors.CodeNotFound, "nothing here")
	}
	return map[string]any{"tool": tool, "args": len(args)}, nil
}

func TestStdio_RequestsAndErrors(t *testing.T) {
	in := strings.NewReader(`{"id":1,"tool":"echo","args":{"a":1,"b":2}}

{"id":"two","tool":"fail"}
not json
`)
	var out bytes.Buffer
	s := NewStdio(in, &out, nil)
	if s.SessionID() == "" {
		t.Fatal("expected a session id")
	}
	if err := s.Serve(context.Background(), echoHandler); err != nil {
		t.Fatalf("serve: %v", err)
	}

	resps := decodeResponses(t, out.String())
	if len(resps) != 3 {
		t.Fatalf("expected 3 responses, got %d: %s", len(resps), out.String())
	}
	if !resps[0].OK || resps[0].ID != float64(1) {
		t.Errorf("unexpected first response %+v", resps[0])
	}
	result := resps[0].Result.(map[string]any)
	if result["tool"] != "echo" || result["args"] != float64(2) {
		t.Errorf("unexpected result %+v", result)
	}
	if resps[1].OK || resps[1].ID != "two" || resps[1].Error.Code != "NOT_FOUND" {
		t.Errorf("unexpected failure response %+v", resps[1])
	}
	if resps[2].OK || resps[2].Error.Code != "VALIDATION_ERROR" {
		t.Errorf("expected malformed request error, got %+v", resps[2])
	}
}

func TestStdio_RateLimit(t *testing.T) {
	in := strings.NewReader(`{"id":1,"tool":"echo"}
{"id":2,"tool":"echo"}
`)
	var out bytes.Buffer
	s := NewStdio(in, &out, util.NewLimiter(0.0001, 1))
	if err := s.Serve(context.Background(), echoHandler); err != nil {
		t.Fatalf("serve: %v", err)
	}
	resps := decodeResponses(t, out.String())
	if len(resps) != 2 {
		t.Fatalf("expected 2 responses, got %d", len(resps))
	}
	if !resps[0].OK {
		t.Errorf("first request should pass: %+v", resps[0])
	}
	if resps[1].OK || resps[1].Error.Code != "RATE_LIMITED" || resps[1].ID != float64(2) {
		t.Errorf("second request should be rate limited: %+v", resps[1])
	}
}

func TestStdio_NilHandlerAndCancel(t *testing.T) {
	s := NewStdio(strings.NewReader(""), &bytes.Buffer{}, nil)
	if err := s.Serve(context.Background(), nil); !errors.IsCode(err, errors.CodeValidationError) {
		t.Errorf("expected validation error, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var out bytes.Buffer
	s = NewStdio(strings.NewReader(`{"id":1,"tool":"echo"}`+"\n"), &out, nil)
	if err := s.Serve(ctx, echoHandler); err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("cancelled server must not answer, got %q", out.String())
	}
}
