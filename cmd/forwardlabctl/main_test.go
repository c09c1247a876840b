package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"
	"testing"
)

func TestRunRequiresCommand(t *testing.T) {
	if err := run(context.Background(), nil); err == nil || !strings.Contains(err.Error(), "usage:") {
		t.Fatalf("expected usage error, got: %v", err)
	}
	if err := run(context.Background(), []string{"train"}); err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Fatalf("expected unknown command error, got: %v", err)
	}
}

func TestStepsCommand(t *testing.T) {
	out, err := captureStdout(func() error {
		return run(context.Background(), []string{"steps"})
	})
	if err != nil {
		t.Fatalf("steps command: %v", err)
	}
	for _, want := range []string{
		"architecture=2-4-4-2",
		"parameter=w1",
		"1st step=input",
		"2nd step=calc-z1 kind=weighted-sum requires=input",
		"expected=[[0.09 0.5 -0.12 0.07]]",
		"7th step=activate-a3",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("steps output missing %q:\n%s", want, out)
		}
	}
}

func TestStepsCommandJSON(t *testing.T) {
	out, err := captureStdout(func() error {
		return run(context.Background(), []string{"steps", "--json"})
	})
	if err != nil {
		t.Fatalf("steps command: %v", err)
	}
	var payload struct {
		Architecture []int `json:"architecture"`
		Steps        []struct {
			ID string `json:"id"`
		} `json:"steps"`
	}
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if len(payload.Steps) != 7 || payload.Steps[6].ID != "activate-a3" {
		t.Fatalf("unexpected steps payload: %+v", payload)
	}
}

func TestNewCommandMemoryStore(t *testing.T) {
	out, err := captureStdout(func() error {
		return run(context.Background(), []string{"new", "--store", "memory", "--log-mode", "off"})
	})
	if err != nil {
		t.Fatalf("new command: %v", err)
	}
	if !strings.Contains(out, "session=") || !strings.Contains(out, "step=calc-z1 status=unlocked-pending editable=true") {
		t.Fatalf("unexpected new output:\n%s", out)
	}
}

func TestCommandArgumentValidation(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "state-missing-id", args: []string{"state", "--store", "memory"}},
		{name: "validate-missing-step", args: []string{"validate", "--store", "memory", "--id", "x"}},
		{name: "validate-missing-matrix", args: []string{"validate", "--store", "memory", "--id", "x", "--step", "calc-z1"}},
		{name: "validate-bad-matrix", args: []string{"validate", "--store", "memory", "--id", "x", "--step", "calc-z1", "--matrix", "[[1,"}},
		{name: "reset-missing-id", args: []string{"reset", "--store", "memory"}},
		{name: "delete-missing-id", args: []string{"delete"}},
		{name: "sessions-bad-limit", args: []string{"sessions", "--store", "memory", "--limit", "0"}},
		{name: "unknown-session", args: []string{"state", "--store", "memory", "--log-mode", "off", "--id", "missing"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := run(context.Background(), tc.args); err == nil {
				t.Fatalf("expected error for %v", tc.args)
			}
		})
	}
}

func TestFormatHelpers(t *testing.T) {
	if got := formatCellErrors([][]bool{{false, true}, {true}}); got != ".x/x" {
		t.Fatalf("unexpected cell error format: %q", got)
	}
	if got := formatArchitecture([]int{2, 4, 4, 2}); got != "2-4-4-2" {
		t.Fatalf("unexpected architecture format: %q", got)
	}
	m, err := parseMatrix(" [[0.5, -0.2]] ")
	if err != nil {
		t.Fatalf("parse matrix: %v", err)
	}
	if got := formatMatrix(m); got != "[[0.5 -0.2]]" {
		t.Fatalf("unexpected matrix format: %q", got)
	}
}

func captureStdout(fn func() error) (string, error) {
	origStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		return "", err
	}

	os.Stdout = w
	runErr := fn()
	_ = w.Close()
	os.Stdout = origStdout

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		_ = r.Close()
		return "", err
	}
	_ = r.Close()
	return buf.String(), runErr
}
