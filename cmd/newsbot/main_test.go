package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	t.Chdir(t.TempDir())
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		t.Fatalf("%v: %v\n%s", args, err, out.String())
	}
	return out.String()
}

func TestVersionCommand(t *testing.T) {
	out := execute(t, "version")
	if !strings.Contains(out, "newsbot dev") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestClassifyCommand(t *testing.T) {
	out := execute(t, "classify", "[속보]", "파월", "발언")
	if !strings.Contains(out, "파월 발언") {
		t.Errorf("clean title missing: %q", out)
	}
	if !strings.Contains(out, "속보 (breaking)") {
		t.Errorf("level missing: %q", out)
	}
	if !strings.Contains(out, "➖ 중립") {
		t.Errorf("sentiment missing: %q", out)
	}
}

func TestClassifyCommandCommunityEngagement(t *testing.T) {
	out := execute(t, "classify", "--community", "--likes", "99", "애플 실적")
	if !strings.Contains(out, "일반 (normal)") {
		t.Errorf("community posts should stay normal: %q", out)
	}
}

func TestCacheCommands(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "config.yaml")
	yaml := "cache:\n  dir: " + filepath.Join(dir, "cache") + "\n  backup_dir: " + filepath.Join(dir, "backup") + "\n"
	if err := os.WriteFile(cfgFile, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	out := execute(t, "--config", cfgFile, "cache", "stats")
	if !strings.Contains(out, "Seen items") {
		t.Errorf("stats output: %q", out)
	}
	out = execute(t, "--config", cfgFile, "cache", "clear")
	if !strings.Contains(out, "cache cleared") {
		t.Errorf("clear output: %q", out)
	}
}
