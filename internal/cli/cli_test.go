package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"world-state-engine/internal/adapters/audit"
	"world-state-engine/internal/core/domain"
)

const examplePolicy = "../../policy.example.yaml"

func init() {
	color.NoColor = true
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestPolicyCheck(t *testing.T) {
	t.Run("valid example", func(t *testing.T) {
		out, err := run(t, "policy", "check", examplePolicy)
		if err != nil {
			t.Fatalf("policy check error = %v", err)
		}
		if !strings.Contains(out, "OK") || !strings.Contains(out, "2026.10-1") {
			t.Errorf("output = %q", out)
		}
		if !strings.Contains(out, "regions:   1") {
			t.Errorf("expected region count in %q", out)
		}
	})

	t.Run("invalid policy", func(t *testing.T) {
		path := writeFile(t, "policy.yaml", "version: \"x\"\npopulation:\n  alert_ratio: -1\n")
		out, err := run(t, "policy", "check", path)
		if err == nil {
			t.Fatal("expected error for invalid policy")
		}
		if !strings.Contains(out, "FAIL") {
			t.Errorf("output = %q, want FAIL marker", out)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := run(t, "policy", "check", filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
			t.Fatal("expected error for missing file")
		}
	})
}

func TestDiff(t *testing.T) {
	baseline := writeFile(t, "base.json", `{
		"cityId": "ashford",
		"timestamp": "2026-03-01T10:00:00Z",
		"districts": {
			"docks":  {"npcCount": 100, "capacity": 200, "controllingFaction": "crown"},
			"market": {"npcCount": 50, "capacity": 80}
		}
	}`)
	current := writeFile(t, "current.json", `{
		"cityId": "ashford",
		"timestamp": "2026-03-01T12:00:00Z",
		"districts": {
			"docks":  {"npcCount": 160, "capacity": 200, "controllingFaction": "guild"},
			"market": {"npcCount": 50, "capacity": 80}
		}
	}`)

	t.Run("text", func(t *testing.T) {
		out, err := run(t, "diff", "--baseline", baseline, "--current", current)
		if err != nil {
			t.Fatalf("diff error = %v", err)
		}
		for _, want := range []string{"City ashford", "npc delta: +60", "docks", "[faction]"} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("json", func(t *testing.T) {
		out, err := run(t, "diff", "--baseline", baseline, "--current", current, "--json")
		if err != nil {
			t.Fatalf("diff error = %v", err)
		}
		var diff domain.PopulationDiff
		if err := json.Unmarshal([]byte(out), &diff); err != nil {
			t.Fatalf("decode diff: %v\n%s", err, out)
		}
		if diff.NPCDelta != 60 {
			t.Errorf("NPCDelta = %d, want 60", diff.NPCDelta)
		}
		if len(diff.Alerts) == 0 {
			t.Error("expected alerts for a 60% docks increase and faction change")
		}
	})

	t.Run("reversed order", func(t *testing.T) {
		if _, err := run(t, "diff", "--baseline", current, "--current", baseline); err == nil {
			t.Fatal("expected error when current precedes baseline")
		}
	})

	t.Run("different cities", func(t *testing.T) {
		other := writeFile(t, "other.json", `{"cityId": "brightwater", "timestamp": "2026-03-01T12:00:00Z", "districts": {}}`)
		if _, err := run(t, "diff", "--baseline", baseline, "--current", other); err == nil {
			t.Fatal("expected error for snapshots of different cities")
		}
	})

	t.Run("missing flags", func(t *testing.T) {
		if _, err := run(t, "diff", "--baseline", baseline); err == nil {
			t.Fatal("expected error without --current")
		}
	})
}

func TestAuditDump(t *testing.T) {
	dir := t.TempDir()
	j := audit.NewJournal(dir)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, kind := range []domain.EventKind{
		domain.EventControlShiftCommitted,
		domain.EventOrderValidated,
		domain.EventControlShiftCommitted,
	} {
		e := domain.NewEvent(kind, "region-1", base.Add(time.Duration(i)*time.Minute), map[string]int{"seq": i})
		if err := j.Publish(context.Background(), e); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	tests := []struct {
		name  string
		args  []string
		lines int
	}{
		{"all", nil, 3},
		{"by kind", []string{"--kind", string(domain.EventControlShiftCommitted)}, 2},
		{"by aggregate", []string{"--aggregate", "region-2"}, 0},
		{"limit", []string{"--limit", "1"}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"audit", "dump", "--dir", dir}, tt.args...)
			out, err := run(t, args...)
			if err != nil {
				t.Fatalf("audit dump error = %v", err)
			}
			got := 0
			for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
				if strings.HasPrefix(line, "{") {
					got++
				}
			}
			if got != tt.lines {
				t.Errorf("records = %d, want %d\n%s", got, tt.lines, out)
			}
		})
	}
}

func TestAuditQuery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.sqlite")
	idx, err := audit.OpenIndex(path)
	if err != nil {
		t.Fatalf("OpenIndex() error = %v", err)
	}
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	_ = idx.Publish(context.Background(), domain.NewEvent(domain.EventMaintenanceChanged, "cmd-1", base, nil))
	_ = idx.Publish(context.Background(), domain.NewEvent(domain.EventPlanTransition, "plan-1", base.Add(time.Hour), nil))
	if err := idx.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	out, err := run(t, "audit", "query", "--index", path, "--since", "2026-03-01T10:30:00Z")
	if err != nil {
		t.Fatalf("audit query error = %v", err)
	}
	if !strings.Contains(out, "plan-1") || strings.Contains(out, "cmd-1") {
		t.Errorf("unexpected query output:\n%s", out)
	}
	if !strings.Contains(out, "1 events") {
		t.Errorf("missing count in output:\n%s", out)
	}

	if _, err := run(t, "audit", "query", "--index", filepath.Join(t.TempDir(), "missing.sqlite")); err == nil {
		t.Error("expected error for missing index")
	}
	if _, err := run(t, "audit", "query", "--index", path, "--since", "yesterday"); err == nil {
		t.Error("expected error for malformed --since")
	}
}
