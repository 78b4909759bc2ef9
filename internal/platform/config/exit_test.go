package config

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"testing"
)

func captureExit(t *testing.T) (*bytes.Buffer, *int) {
	t.Helper()
	var buf bytes.Buffer
	code := -1
	prevStderr, prevExit := stderr, exit
	stderr = &buf
	exit = func(c int) { code = c }
	t.Cleanup(func() {
		stderr, exit = prevStderr, prevExit
	})
	return &buf, &code
}

func TestExitfReportsFailure(t *testing.T) {
	out, code := captureExit(t)

	Exitf("seed: %v", errors.New("zone soi9 not in catalog"))

	if *code != ExitFailure {
		t.Fatalf("exit code = %d, want %d", *code, ExitFailure)
	}
	if got := out.String(); got != "seed: zone soi9 not in catalog\n" {
		t.Fatalf("stderr = %q", got)
	}
}

func TestExitUsagef(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantOut  string
	}{
		{
			name:     "bad flag",
			err:      errors.New("invalid value \"two,5\" for flag -to"),
			wantCode: ExitUsage,
			wantOut:  "usage: invalid value \"two,5\" for flag -to\n",
		},
		{
			name:     "help requested",
			err:      fmt.Errorf("parse flags: %w", flag.ErrHelp),
			wantCode: 0,
			wantOut:  "",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out, code := captureExit(t)

			ExitUsagef(tc.err)

			if *code != tc.wantCode {
				t.Fatalf("exit code = %d, want %d", *code, tc.wantCode)
			}
			if out.String() != tc.wantOut {
				t.Fatalf("stderr = %q, want %q", out.String(), tc.wantOut)
			}
		})
	}
}
