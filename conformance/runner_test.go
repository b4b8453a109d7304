// Package conformance_test runs the csp binary against the fixtures under
// testdata/. Each fixture directory is one case:
//
//	parse/<name>/     input.csp, expected-parse.json, expected-diagnostics.json
//	validate/<name>/  input.csp, expected-diagnostics.json, optional catalog.yaml
//	push/<name>/      01.csp, 02.csp, ... and expected.txt (first stdout line per step)
//
// TestMain builds csp once into a temporary directory before any test runs,
// then removes the directory on exit.
package conformance_test

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"testing"
)

// cspBinary is the absolute path to the compiled csp binary, set by TestMain.
var cspBinary string

const fixturesRoot = "testdata"

func TestMain(m *testing.M) {
	repoRoot, err := filepath.Abs("..")
	if err != nil {
		fmt.Fprintf(os.Stderr, "filepath.Abs: %v\n", err)
		os.Exit(1)
	}

	tmpDir, err := os.MkdirTemp("", "conformance-csp-*")
	if err != nil {
		fmt.Fprintf(os.Stderr, "os.MkdirTemp: %v\n", err)
		os.Exit(1)
	}

	cspBinary = filepath.Join(tmpDir, "csp")
	build := exec.Command("go", "build", "-o", cspBinary, ".")
	build.Dir = repoRoot
	if out, err := build.CombinedOutput(); err != nil {
		fmt.Fprintf(os.Stderr, "go build failed: %v\n%s\n", err, out)
		os.RemoveAll(tmpDir)
		os.Exit(1)
	}

	code := m.Run()
	os.RemoveAll(tmpDir)
	os.Exit(code)
}

// ---------------------------------------------------------------------------
// Fixture walking
// ---------------------------------------------------------------------------

// eachFixture runs fn as a subtest for every directory under testdata/<kind>.
func eachFixture(t *testing.T, kind string, fn func(t *testing.T, fixturePath string)) {
	t.Helper()
	dir := filepath.Join(fixturesRoot, kind)
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("os.ReadDir(%s): %v", dir, err)
	}
	ran := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		fixturePath := filepath.Join(dir, entry.Name())
		t.Run(entry.Name(), func(t *testing.T) {
			fn(t, fixturePath)
		})
		ran++
	}
	if ran == 0 {
		t.Fatalf("no %s fixtures found", kind)
	}
}

// runCSP invokes the binary in workDir with a clean CSP_* environment plus
// extraEnv. A non-zero exit is returned as exitCode, not as an error.
func runCSP(t *testing.T, workDir string, extraEnv []string, args ...string) (stdout, stderr string, exitCode int) {
	t.Helper()
	cmd := exec.Command(cspBinary, args...)
	cmd.Dir = workDir
	for _, kv := range os.Environ() {
		if !strings.HasPrefix(kv, "CSP_") {
			cmd.Env = append(cmd.Env, kv)
		}
	}
	cmd.Env = append(cmd.Env, "CSP_LOG_LEVEL=error")
	cmd.Env = append(cmd.Env, extraEnv...)

	var out, errOut bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errOut
	err := cmd.Run()
	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		exitCode = exitErr.ExitCode()
	default:
		t.Fatalf("csp %s: %v", strings.Join(args, " "), err)
	}
	return out.String(), errOut.String(), exitCode
}

// ---------------------------------------------------------------------------
// Parse fixtures
// ---------------------------------------------------------------------------

// TestConformance_ParseFixtures verifies that `csp parse --json` produces the
// expected tree and diagnostics for every parse fixture.
func TestConformance_ParseFixtures(t *testing.T) {
	eachFixture(t, "parse", runParseFixture)
}

func runParseFixture(t *testing.T, fixturePath string) {
	t.Helper()
	skipIfMissingFiles(t, fixturePath, []string{"input.csp", "expected-parse.json", "expected-diagnostics.json"})

	input, err := filepath.Abs(filepath.Join(fixturePath, "input.csp"))
	if err != nil {
		t.Fatal(err)
	}
	stdout, _, exitCode := runCSP(t, t.TempDir(), nil, "parse", "--json", input)

	var actual parseJSONOutput
	if err := json.Unmarshal([]byte(stdout), &actual); err != nil {
		t.Fatalf("unmarshal csp parse stdout: %v\nstdout: %s", err, stdout)
	}

	expectedParseRaw, err := os.ReadFile(filepath.Join(fixturePath, "expected-parse.json"))
	if err != nil {
		t.Fatalf("read expected-parse.json: %v", err)
	}
	actualParseRaw, err := json.Marshal(map[string]any{"spec": actual.Spec})
	if err != nil {
		t.Fatalf("marshal actual parse output: %v", err)
	}
	checkJSONSubset(t, "parse-tree", expectedParseRaw, actualParseRaw)

	expected := readExpectedDiagnostics(t, filepath.Join(fixturePath, "expected-diagnostics.json"))
	checkDiagnosticsSubset(t, expected, actual.Diagnostics)
	checkExitCode(t, expected, exitCode)
}

// ---------------------------------------------------------------------------
// Validate fixtures
// ---------------------------------------------------------------------------

// diagnosticLineRE matches the human-readable diagnostic form printed to
// stderr, e.g. "error: line 3: Duplicate ... (CSE005)".
var diagnosticLineRE = regexp.MustCompile(`^(error|warning|info): (?:line (\d+): )?.*\((CS[EVW]\d{3})\)$`)

// TestConformance_ValidateFixtures verifies the diagnostics and exit code of
// `csp validate` for every validate fixture. A catalog.yaml in the fixture is
// used as the tag catalog.
func TestConformance_ValidateFixtures(t *testing.T) {
	eachFixture(t, "validate", runValidateFixture)
}

func runValidateFixture(t *testing.T, fixturePath string) {
	t.Helper()
	skipIfMissingFiles(t, fixturePath, []string{"input.csp", "expected-diagnostics.json"})

	abs, err := filepath.Abs(fixturePath)
	if err != nil {
		t.Fatal(err)
	}
	var env []string
	if _, err := os.Stat(filepath.Join(abs, "catalog.yaml")); err == nil {
		env = append(env, "CSP_CATALOG="+filepath.Join(abs, "catalog.yaml"))
	}

	_, stderr, exitCode := runCSP(t, t.TempDir(), env, "validate", filepath.Join(abs, "input.csp"))

	var actual []diagnosticItem
	sc := bufio.NewScanner(strings.NewReader(stderr))
	for sc.Scan() {
		m := diagnosticLineRE.FindStringSubmatch(sc.Text())
		if m == nil {
			continue
		}
		d := diagnosticItem{Severity: m[1], Code: m[3]}
		fmt.Sscanf(m[2], "%d", &d.Line)
		actual = append(actual, d)
	}

	expected := readExpectedDiagnostics(t, filepath.Join(fixturePath, "expected-diagnostics.json"))
	checkDiagnosticsSubset(t, expected, actual)
	checkExitCode(t, expected, exitCode)
}

// ---------------------------------------------------------------------------
// Push fixtures
// ---------------------------------------------------------------------------

// TestConformance_PushFixtures pushes each numbered step of a fixture into
// one file-backed node store and compares the summary line of every step.
func TestConformance_PushFixtures(t *testing.T) {
	eachFixture(t, "push", runPushFixture)
}

func runPushFixture(t *testing.T, fixturePath string) {
	t.Helper()
	skipIfMissingFiles(t, fixturePath, []string{"expected.txt"})

	steps, err := filepath.Glob(filepath.Join(fixturePath, "[0-9][0-9].csp"))
	if err != nil {
		t.Fatal(err)
	}
	sort.Strings(steps)

	raw, err := os.ReadFile(filepath.Join(fixturePath, "expected.txt"))
	if err != nil {
		t.Fatalf("read expected.txt: %v", err)
	}
	want := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(want) != len(steps) {
		t.Fatalf("expected.txt has %d lines for %d steps", len(want), len(steps))
	}

	workDir := t.TempDir()
	env := []string{"CSP_STORE_KIND=memory", "CSP_STORE_PATH=" + filepath.Join(workDir, "nodes.yaml")}
	for i, step := range steps {
		abs, err := filepath.Abs(step)
		if err != nil {
			t.Fatal(err)
		}
		stdout, stderr, exitCode := runCSP(t, workDir, env, "push", abs)
		if exitCode != 0 {
			t.Fatalf("%s: exit %d\nstderr: %s", filepath.Base(step), exitCode, stderr)
		}
		got, _, _ := strings.Cut(stdout, "\n")
		if got != want[i] {
			t.Errorf("%s: got %q, want %q", filepath.Base(step), got, want[i])
		}
	}
}

// ---------------------------------------------------------------------------
// Types
// ---------------------------------------------------------------------------

// parseJSONOutput is the shape emitted by `csp parse --json`.
type parseJSONOutput struct {
	Spec        json.RawMessage  `json:"spec"`
	Diagnostics []diagnosticItem `json:"diagnostics"`
}

type diagnosticItem struct {
	Severity string `json:"severity"`
	Code     string `json:"code"`
	Message  string `json:"message,omitempty"`
	Line     int    `json:"line,omitempty"`
}

type expectedDiagnosticsFile struct {
	Diagnostics []diagnosticItem `json:"diagnostics"`
}

// readExpectedDiagnostics reads and parses an expected-diagnostics.json file.
func readExpectedDiagnostics(t *testing.T, path string) []diagnosticItem {
	t.Helper()
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read expected-diagnostics.json: %v", err)
	}
	var f expectedDiagnosticsFile
	if err := json.Unmarshal(raw, &f); err != nil {
		t.Fatalf("parse expected-diagnostics.json: %v", err)
	}
	return f.Diagnostics
}

// ---------------------------------------------------------------------------
// Assertions
// ---------------------------------------------------------------------------

func skipIfMissingFiles(t *testing.T, dir string, files []string) {
	t.Helper()
	for _, f := range files {
		if _, err := os.Stat(filepath.Join(dir, f)); err != nil {
			t.Skipf("required file %q missing; skipping", f)
		}
	}
}

// checkExitCode asserts a non-zero exit exactly when an error is expected.
func checkExitCode(t *testing.T, expected []diagnosticItem, exitCode int) {
	t.Helper()
	wantFail := false
	for _, d := range expected {
		if d.Severity == "error" {
			wantFail = true
		}
	}
	if wantFail != (exitCode != 0) {
		t.Errorf("exit code %d, want failure=%v", exitCode, wantFail)
	}
}

// checkDiagnosticsSubset asserts every expected diagnostic was emitted and
// that no unexpected error was.
func checkDiagnosticsSubset(t *testing.T, expected, actual []diagnosticItem) {
	t.Helper()

	for _, exp := range expected {
		if !findDiagnostic(exp, actual) {
			t.Errorf("expected diagnostic {severity: %q, code: %q, line: %d} not found in %v",
				exp.Severity, exp.Code, exp.Line, actual)
		}
	}
	for _, act := range actual {
		if act.Severity == "error" && !findDiagnosticByCode(act, expected) {
			t.Errorf("unexpected error diagnostic {code: %q, message: %q}", act.Code, act.Message)
		}
	}
}

// findDiagnostic reports whether diag appears in list. A zero Line in diag
// matches any line.
func findDiagnostic(diag diagnosticItem, list []diagnosticItem) bool {
	for _, item := range list {
		if item.Severity != diag.Severity || item.Code != diag.Code {
			continue
		}
		if diag.Line != 0 && item.Line != diag.Line {
			continue
		}
		return true
	}
	return false
}

func findDiagnosticByCode(diag diagnosticItem, list []diagnosticItem) bool {
	for _, item := range list {
		if item.Severity == diag.Severity && item.Code == diag.Code {
			return true
		}
	}
	return false
}

// checkJSONSubset asserts that every key-value pair in expectedJSON also
// appears in actualJSON. Arrays must match in length.
func checkJSONSubset(t *testing.T, label string, expectedJSON, actualJSON []byte) {
	t.Helper()
	var expected, actual any
	if err := json.Unmarshal(expectedJSON, &expected); err != nil {
		t.Errorf("%s: unmarshal expected JSON: %v", label, err)
		return
	}
	if err := json.Unmarshal(actualJSON, &actual); err != nil {
		t.Errorf("%s: unmarshal actual JSON: %v", label, err)
		return
	}
	jsonSubsetEqual(t, label, expected, actual)
}

func jsonSubsetEqual(t *testing.T, path string, expected, actual any) bool {
	t.Helper()
	switch e := expected.(type) {
	case map[string]any:
		a, ok := actual.(map[string]any)
		if !ok {
			t.Errorf("%s: expected JSON object, got %T (%v)", path, actual, actual)
			return false
		}
		allOK := true
		for k, ev := range e {
			av, exists := a[k]
			if !exists {
				t.Errorf("%s.%s: key missing in actual", path, k)
				allOK = false
				continue
			}
			if !jsonSubsetEqual(t, path+"."+k, ev, av) {
				allOK = false
			}
		}
		return allOK
	case []any:
		a, ok := actual.([]any)
		if !ok {
			t.Errorf("%s: expected JSON array, got %T (%v)", path, actual, actual)
			return false
		}
		if len(e) != len(a) {
			t.Errorf("%s: array length: expected %d, got %d", path, len(e), len(a))
			return false
		}
		allOK := true
		for i := range e {
			if !jsonSubsetEqual(t, fmt.Sprintf("%s[%d]", path, i), e[i], a[i]) {
				allOK = false
			}
		}
		return allOK
	case nil:
		if actual != nil {
			t.Errorf("%s: expected null, got %v", path, actual)
			return false
		}
		return true
	default:
		if expected != actual {
			t.Errorf("%s: expected %v (%T), got %v (%T)", path, expected, expected, actual, actual)
			return false
		}
		return true
	}
}
