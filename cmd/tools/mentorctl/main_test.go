package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/zhouzirui/z-mentor/backend/internal/app"
	"github.com/zhouzirui/z-mentor/backend/internal/config"
	intentModel "github.com/zhouzirui/z-mentor/backend/internal/model/intent"
)

// sharedApp returns a factory that hands every command the same in-memory App.
func sharedApp(t *testing.T) appFactory {
	t.Helper()
	a, err := app.New(context.Background(), config.Default(), zap.NewNop())
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	return func(context.Context, *zap.Logger) (*app.App, error) { return a, nil }
}

func execute(t *testing.T, factory appFactory, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd(factory)
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestExtractCmdReadsStdin(t *testing.T) {
	raw := `Done. <system>create_habit: {"name":"Stretch","frequency":"daily"}</system>` +
		`<system>teleport: {}</system><system>update_goal: {}</system><system>create_task: {oops</system>`

	out, err := execute(t, nil, raw, "extract")
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}

	var report extractReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode report: %v\n%s", err, out)
	}
	if len(report.Actions) != 1 || report.Actions[0].Type != intentModel.CreateHabit {
		t.Fatalf("unexpected actions: %+v", report.Actions)
	}
	if len(report.Unknown) != 1 || report.Unknown[0] != "teleport" {
		t.Fatalf("unexpected unknown list: %+v", report.Unknown)
	}
	if len(report.Rejected) != 1 {
		t.Fatalf("expected one rejected intent, got %+v", report.Rejected)
	}
	if len(report.Malformed) != 1 {
		t.Fatalf("expected one malformed intent, got %+v", report.Malformed)
	}
	if !strings.HasPrefix(report.VisibleText, "Done.") {
		t.Fatalf("unexpected visible text %q", report.VisibleText)
	}
}

func TestPersonasImportExportDelete(t *testing.T) {
	factory := sharedApp(t)
	file := filepath.Join(t.TempDir(), "personas.yaml")
	yamlDoc := "- id: stoic\n  name: The Stoic\n  approach: Focus on what you control.\n  temperature: 0.4\n"
	if err := os.WriteFile(file, []byte(yamlDoc), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	if out, err := execute(t, factory, "", "personas", "import", file); err != nil || !strings.Contains(out, "saved stoic") {
		t.Fatalf("import failed: %v\n%s", err, out)
	}

	out, err := execute(t, factory, "", "personas", "list")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !strings.Contains(out, "The Stoic") || !strings.Contains(out, "commander") {
		t.Fatalf("list output missing personas:\n%s", out)
	}

	out, err = execute(t, factory, "", "personas", "export", "--custom")
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if !strings.Contains(out, "id: stoic") || strings.Contains(out, "id: commander") {
		t.Fatalf("unexpected export:\n%s", out)
	}

	if _, err := execute(t, factory, "", "personas", "delete", "commander"); err == nil {
		t.Fatal("expected deleting a built-in persona to fail")
	}
	if _, err := execute(t, factory, "", "personas", "delete", "stoic"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
}

func TestPlanCmdEmptyCollections(t *testing.T) {
	factory := sharedApp(t)

	out, err := execute(t, factory, "", "plan", "tasks")
	if err != nil {
		t.Fatalf("plan failed: %v", err)
	}
	if strings.TrimSpace(out) != "[]" {
		t.Fatalf("expected empty list, got %q", out)
	}

	if _, err := execute(t, factory, "", "plan", "unknown"); err == nil {
		t.Fatal("expected error for unknown collection")
	}
}
