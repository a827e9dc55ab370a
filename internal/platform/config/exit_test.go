package config

import (
	"bytes"
	"os"
	"os/exec"
	"strings"
	"testing"
)

func TestExitCodefWritesMessageAndCode(t *testing.T) {
	tests := []struct {
		name string
		call func()
		code int
		want string
	}{
		{
			name: "failure",
			call: func() { Exitf("inbox: %s", "store closed") },
			code: ExitFailure,
			want: "inbox: store closed\n",
		},
		{
			name: "usage",
			call: func() { ExitCodef(ExitUsage, "inbox: bad flag -%s", "x") },
			code: ExitUsage,
			want: "inbox: bad flag -x\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			got := -1
			restoreExit(t, &buf, func(code int) { got = code })

			tt.call()
			if got != tt.code {
				t.Fatalf("exit code = %d, want %d", got, tt.code)
			}
			if buf.String() != tt.want {
				t.Fatalf("stderr = %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

// The real os.Exit path can only be observed from a child process.
func TestExitfTerminatesProcess(t *testing.T) {
	if os.Getenv("INBOX_TEST_EXITF_CHILD") == "1" {
		Exitf("fatal: %s", "something broke")
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=^TestExitfTerminatesProcess$")
	cmd.Env = append(os.Environ(), "INBOX_TEST_EXITF_CHILD=1")
	out, err := cmd.CombinedOutput()

	exitErr, ok := err.(*exec.ExitError)
	if !ok {
		t.Fatalf("expected *exec.ExitError, got %T: %v", err, err)
	}
	if exitErr.ExitCode() != ExitFailure {
		t.Fatalf("exit code = %d, want %d", exitErr.ExitCode(), ExitFailure)
	}
	if !strings.Contains(string(out), "fatal: something broke") {
		t.Fatalf("expected output to contain message, got %q", out)
	}
}

func restoreExit(t *testing.T, w *bytes.Buffer, fn func(int)) {
	t.Helper()
	prevExit, prevStderr := exit, stderr
	exit, stderr = fn, w
	t.Cleanup(func() { exit, stderr = prevExit, prevStderr })
}
