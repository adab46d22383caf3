package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestInfoPlaceholder(t *testing.T) {
	out, err := runCommand(t, "info", "--location", "placeholder:6")
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	for _, want := range []string{"pages:   6", "spreads: 3", "status:  ready"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRenderWritesSpread(t *testing.T) {
	dir := t.TempDir()
	out, err := runCommand(t, "render", "--location", "placeholder:10", "--page", "5", "--out", dir)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(out, "spread 2") {
		t.Fatalf("unexpected output: %s", out)
	}
	for _, name := range []string{"spread02_left.png", "spread02_right.png"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Fatalf("missing %s: %v", name, err)
		}
	}
}

func TestRenderSkipsPaddedRightPage(t *testing.T) {
	dir := t.TempDir()
	// 5 pages: the last spread's right side is the padding duplicate.
	if _, err := runCommand(t, "render", "--location", "placeholder:5", "--page", "5", "--out", dir); err != nil {
		t.Fatalf("render: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "spread02_left.png")); err != nil {
		t.Fatalf("missing left page: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "spread02_right.png")); err == nil {
		t.Fatal("padded right page must not be written")
	}
}

func TestFlipWritesFrames(t *testing.T) {
	dir := t.TempDir()
	if _, err := runCommand(t, "flip", "--location", "placeholder:4", "--frames", "5", "--out", dir); err != nil {
		t.Fatalf("flip: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 5 {
		t.Fatalf("frame count = %d, want 5", len(entries))
	}
}

func TestFlagValidation(t *testing.T) {
	cases := [][]string{
		{"info"}, // no location anywhere
		{"render", "--location", "placeholder:4", "--page", "0"},
		{"render", "--location", "placeholder:4", "--page", "9"},
		{"flip", "--location", "placeholder:4", "--frames", "1"},
		{"flip", "--location", "placeholder:1"}, // single spread
		{"info", "--location", "placeholder:zero"},
	}
	for _, args := range cases {
		if _, err := runCommand(t, args...); err == nil {
			t.Fatalf("expected error for %v", args)
		}
	}
}

func TestConfigFileDrivesCommands(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "viewer.yaml")
	cfg := "location: placeholder:8\nrender_policy: warn\nsettle_duration: 150ms\n"
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := runCommand(t, "info", "--config", cfgPath)
	if err != nil {
		t.Fatalf("info with config: %v", err)
	}
	if !strings.Contains(out, "pages:   8") {
		t.Fatalf("unexpected output: %s", out)
	}
}
