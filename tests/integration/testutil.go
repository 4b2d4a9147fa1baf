// Package integration provides CLI integration tests for gridcalc.
package integration

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

var (
	// gridcalcBin is the path to the built gridcalc binary.
	gridcalcBin string
	// buildErr captures any build error.
	buildErr error
)

// BuildError wraps a build error with its output.
type BuildError struct {
	Err    error
	Output string
}

func (e *BuildError) Error() string {
	return e.Err.Error() + ": " + e.Output
}

// FindProjectRoot walks up from the working directory looking for go.mod.
func FindProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", os.ErrNotExist
		}
		dir = parent
	}
}

// SetGridcalcBin sets the binary path (called from TestMain).
func SetGridcalcBin(path string) {
	gridcalcBin = path
}

// SetBuildErr sets the build error (called from TestMain).
func SetBuildErr(err error) {
	buildErr = err
}

// TestEnv is an isolated environment with its own config and data directory.
type TestEnv struct {
	t       *testing.T
	TempDir string
	Config  string
	DataDir string
}

// NewTestEnv creates a new isolated test environment.
func NewTestEnv(t *testing.T) *TestEnv {
	t.Helper()

	if buildErr != nil {
		t.Fatalf("failed to build gridcalc: %v", buildErr)
	}
	if gridcalcBin == "" {
		t.Fatal("gridcalc binary not built (gridcalcBin is empty)")
	}

	tempDir := t.TempDir()
	dataDir := filepath.Join(tempDir, "data")
	configDir := filepath.Join(tempDir, "config")

	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	configContent := "backend: sqlite\ndata_dir: " + dataDir + "\n"
	if err := os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	return &TestEnv{
		t:       t,
		TempDir: tempDir,
		Config:  configDir,
		DataDir: dataDir,
	}
}

// CmdResult holds the result of one gridcalc command execution.
type CmdResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// RunGridcalc executes the gridcalc CLI with the given arguments.
func (e *TestEnv) RunGridcalc(args ...string) CmdResult {
	e.t.Helper()

	allArgs := append([]string{"--config-dir", e.Config, "--data-dir", e.DataDir}, args...)
	cmd := exec.Command(gridcalcBin, allArgs...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			e.t.Fatalf("failed to run gridcalc: %v", err)
		}
	}

	return CmdResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: exitCode,
	}
}

// MustRunGridcalc executes the CLI and fails the test on non-zero exit.
func (e *TestEnv) MustRunGridcalc(args ...string) CmdResult {
	e.t.Helper()
	result := e.RunGridcalc(args...)
	if result.ExitCode != 0 {
		e.t.Fatalf("gridcalc %v failed with exit code %d:\nstdout: %s\nstderr: %s",
			args, result.ExitCode, result.Stdout, result.Stderr)
	}
	return result
}

// ParseJSON parses JSON output into the target type.
func ParseJSON[T any](t *testing.T, jsonStr string) T {
	t.Helper()
	var result T
	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		t.Fatalf("failed to parse JSON %q: %v", jsonStr, err)
	}
	return result
}

// CellOut mirrors the CLI's JSON cell shape.
type CellOut struct {
	Address string `json:"address"`
	Formula string `json:"formula"`
	Kind    string `json:"kind"`
	Value   string `json:"value"`
}

// SetOut mirrors the set command's JSON output.
type SetOut struct {
	Address string   `json:"address"`
	Kind    string   `json:"kind"`
	Value   string   `json:"value"`
	Changed []string `json:"changed"`
}

// ReadOut mirrors the read command's JSON output.
type ReadOut struct {
	Sheet string    `json:"sheet"`
	Cells []CellOut `json:"cells"`
}

// CheckOut mirrors the check command's JSON output.
type CheckOut struct {
	Errors []CellOut `json:"errors"`
}

// InitOut mirrors the init command's JSON output.
type InitOut struct {
	WorkbookID string `json:"workbook_id"`
	ConfigDir  string `json:"config_dir"`
	DataDir    string `json:"data_dir"`
}

// JournalCell mirrors one cells.jsonl record.
type JournalCell struct {
	Sheet   string `json:"sheet"`
	Address string `json:"address"`
	Formula string `json:"formula"`
	Kind    string `json:"kind"`
	Value   string `json:"value"`
}

// ReadJSONLFile reads a JSONL file and returns its records.
func ReadJSONLFile[T any](t *testing.T, path string) []T {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open JSONL file %s: %v", path, err)
	}
	defer f.Close()

	var results []T
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var record T
		if err := json.Unmarshal(line, &record); err != nil {
			t.Fatalf("failed to parse JSONL line in %s: %v", path, err)
		}
		results = append(results, record)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("failed to scan JSONL file %s: %v", path, err)
	}
	return results
}
