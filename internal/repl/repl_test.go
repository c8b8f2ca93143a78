package repl

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/azhaoli/kylu/eval"
)

func noLoader(path string) (string, error) { return "", assertNotFound{path} }

type assertNotFound struct{ path string }

func (a assertNotFound) Error() string { return "not found: " + a.path }

func newSession(t *testing.T, input string) (*REPL, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	r := New(strings.NewReader(input), &out, eval.FileLoader(noLoader))
	return r, &out
}

func TestRunEchoesBannerAndStopsOnExit(t *testing.T) {
	r, out := newSession(t, "/exit\n")
	r.Run()
	assert.Contains(t, out.String(), "KYLU PROJECT TERMINAL")
	assert.Contains(t, out.String(), "program stopped")
}

func TestRunEvaluatesSourceLinesAcrossTheSession(t *testing.T) {
	r, out := newSession(t, "x <- 1 + 2\n/bindings\n/exit\n")
	r.Run()
	assert.Contains(t, out.String(), "LOCAL BINDINGS")
	assert.Contains(t, out.String(), "x")
}

func TestUnknownDirectiveReportsAndContinues(t *testing.T) {
	r, out := newSession(t, "/nonsense\n/exit\n")
	r.Run()
	assert.Contains(t, out.String(), "invalid terminal command: /nonsense")
	assert.Contains(t, out.String(), "program stopped")
}

func TestLoadReportsFailureForAMissingFile(t *testing.T) {
	r, out := newSession(t, "/load missing.ky\n/exit\n")
	r.Run()
	assert.Contains(t, out.String(), "missing.ky")
	assert.Contains(t, out.String(), "File:")
}

func TestEditCollectsLinesUntilDone(t *testing.T) {
	r, out := newSession(t, "/edit\ny <- 9\n/done\n/bindings\n/exit\n")
	r.Run()
	assert.Contains(t, out.String(), "<- 9")
}
