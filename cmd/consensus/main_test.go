package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/r3d91ll/consensus/pkg/config"
	"github.com/r3d91ll/consensus/pkg/export"
	"github.com/r3d91ll/consensus/pkg/store"
)

// writeTestConfig saves a config whose outputs all land in a temp dir and
// returns its path.
func writeTestConfig(t *testing.T) (string, *config.Config) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Export.OutputDir = filepath.Join(dir, "output")
	cfg.Export.ArchivePath = filepath.Join(dir, "output", "runs.db")
	cfg.Logging.Level = "error"
	cfg.Simulation.AgentCount = 40
	cfg.Simulation.SampleSize = 3
	cfg.Simulation.UpperBoundK = 4
	cfg.Simulation.SimulationCount = 2
	cfg.Simulation.Seed = 11

	path := filepath.Join(dir, "config.yaml")
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}
	return path, cfg
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := newRootCmd()
	want := []string{"version", "run", "sweep", "serve", "shell", "export", "history", "config"}
	for _, name := range want {
		t.Run(name, func(t *testing.T) {
			cmd, _, err := root.Find([]string{name})
			if err != nil || cmd.Name() != name {
				t.Errorf("Find(%q) = %v, %v", name, cmd, err)
			}
		})
	}
}

func TestVersionCmd(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		out, err := execute(t, "version")
		if err != nil {
			t.Fatalf("version failed: %v", err)
		}
		if !strings.Contains(out, version) {
			t.Errorf("Expected version %s in %q", version, out)
		}
	})

	t.Run("json", func(t *testing.T) {
		out, err := execute(t, "version", "--json")
		if err != nil {
			t.Fatalf("version failed: %v", err)
		}
		var got map[string]string
		if err := json.Unmarshal([]byte(out), &got); err != nil {
			t.Fatalf("Expected JSON output, got %q: %v", out, err)
		}
		if got["version"] != version {
			t.Errorf("version = %q, want %q", got["version"], version)
		}
	})
}

func TestConfigCmd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	if _, err := execute(t, "config", "init", "--config", path); err != nil {
		t.Fatalf("config init failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("Expected config file at %s: %v", path, err)
	}

	out, err := execute(t, "config", "show", "--config", path)
	if err != nil {
		t.Fatalf("config show failed: %v", err)
	}
	for _, want := range []string{"simulation:", "sweep:", "export:", path} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in config show output", want)
		}
	}

	out, err = execute(t, "config", "path", "--config", path)
	if err != nil {
		t.Fatalf("config path failed: %v", err)
	}
	if strings.TrimSpace(out) != path {
		t.Errorf("config path = %q, want %q", strings.TrimSpace(out), path)
	}
}

func TestRunCmd(t *testing.T) {
	path, cfg := writeTestConfig(t)

	out, err := execute(t, "run", "-q", "--config", path)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !strings.Contains(out, "finished (6/6 phases)") {
		t.Errorf("Expected finished batch in output:\n%s", out)
	}

	results, err := export.LoadResults(cfg.Export.ResultsPath())
	if err != nil {
		t.Fatalf("LoadResults failed: %v", err)
	}
	if len(results.Records) != 1 || results.Records[0].Runs != 2 {
		t.Fatalf("Expected one record with 2 runs, got %+v", results.Records)
	}

	st, err := store.Open(cfg.Export.ArchivePath)
	if err != nil {
		t.Fatalf("Open archive failed: %v", err)
	}
	defer st.Close()
	n, err := st.CountRuns(t.Context())
	if err != nil {
		t.Fatalf("CountRuns failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 archived runs, got %d", n)
	}
}

func TestRunCmd_FlagOverrides(t *testing.T) {
	path, _ := writeTestConfig(t)

	out, err := execute(t, "run", "-q", "--json", "--config", path, "-k", "3", "-c", "1")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	var got struct {
		Batch struct {
			PhasesTotal int `json:"phases_total"`
		} `json:"batch"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("Expected JSON output: %v", err)
	}
	if got.Batch.PhasesTotal != 2 {
		t.Errorf("Expected 2 phases for one instance up to K=3, got %d", got.Batch.PhasesTotal)
	}
}

func TestRunCmd_InvalidConfig(t *testing.T) {
	path, _ := writeTestConfig(t)
	if _, err := execute(t, "run", "-q", "--config", path, "-j", "0"); err == nil {
		t.Error("Expected error for sample size 0")
	}
}

func TestSweepCmd(t *testing.T) {
	path, cfg := writeTestConfig(t)

	out, err := execute(t, "sweep", "-q", "--config", path,
		"--agents-min", "20", "--agents-max", "40", "--agents-step", "20")
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if !strings.Contains(out, "2 of 2 batch(es) completed") {
		t.Errorf("Expected two completed batches:\n%s", out)
	}

	results, err := export.LoadResults(cfg.Export.ResultsPath())
	if err != nil {
		t.Fatalf("LoadResults failed: %v", err)
	}
	if len(results.Records) != 2 {
		t.Errorf("Expected 2 records, got %d", len(results.Records))
	}
}

func TestHistoryCmd(t *testing.T) {
	path, _ := writeTestConfig(t)
	if _, err := execute(t, "run", "-q", "--config", path); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	out, err := execute(t, "history", "--json", "--config", path)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	var runs []store.RunSummary
	if err := json.Unmarshal([]byte(out), &runs); err != nil {
		t.Fatalf("Expected JSON output: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("Expected 2 runs, got %d", len(runs))
	}

	out, err = execute(t, "history", "show", runs[0].ID, "--config", path)
	if err != nil {
		t.Fatalf("history show failed: %v", err)
	}
	if !strings.Contains(out, runs[0].ID) || !strings.Contains(out, "interactions") {
		t.Errorf("Unexpected history show output:\n%s", out)
	}

	if _, err := execute(t, "history", "show", "missing", "--config", path); err == nil {
		t.Error("Expected error for unknown run")
	}
}

func TestHistoryCmd_ArchiveDisabled(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Export.OutputDir = dir
	cfg.Export.ArchivePath = ""
	path := filepath.Join(dir, "config.yaml")
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	if _, err := execute(t, "history", "--config", path); err == nil {
		t.Error("Expected error when the archive is disabled")
	}
}

func TestExportCmd(t *testing.T) {
	path, _ := writeTestConfig(t)

	t.Run("no results", func(t *testing.T) {
		if _, err := execute(t, "export", "csv", "--config", path); err == nil {
			t.Error("Expected error without results")
		}
	})

	if _, err := execute(t, "run", "-q", "--config", path); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	t.Run("csv to stdout", func(t *testing.T) {
		out, err := execute(t, "export", "csv", "--config", path)
		if err != nil {
			t.Fatalf("export csv failed: %v", err)
		}
		lines := strings.Split(strings.TrimSpace(out), "\n")
		// header plus K=2,3,4
		if len(lines) != 4 {
			t.Errorf("Expected 4 CSV lines, got %d:\n%s", len(lines), out)
		}
	})

	t.Run("latex to file", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "tex", "kplot.tex")
		if _, err := execute(t, "export", "latex", "--kind", "kplot", "--out", file, "--config", path); err != nil {
			t.Fatalf("export latex failed: %v", err)
		}
		data, err := os.ReadFile(file)
		if err != nil {
			t.Fatalf("Expected output file: %v", err)
		}
		if !strings.Contains(string(data), `\addplot`) {
			t.Errorf("Expected pgfplots source, got:\n%s", data)
		}
	})

	t.Run("unknown kind", func(t *testing.T) {
		if _, err := execute(t, "export", "latex", "--kind", "pie", "--config", path); err == nil {
			t.Error("Expected error for unknown kind")
		}
	})
}
