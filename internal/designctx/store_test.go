package designctx

import (
	"os"
	"path/filepath"
	"testing"
)

func writeArtifact(t *testing.T, root, taskID, name, content string) {
	t.Helper()
	dir := filepath.Join(root, taskID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestFSStore_IndexAndExists(t *testing.T) {
	root := t.TempDir()
	writeArtifact(t, root, "t1", "counter.v", "module counter();\nendmodule\n")
	writeArtifact(t, root, "t1", "counter_tb.v", "module counter_tb;\nendmodule\n")
	writeArtifact(t, root, "t2", "alu.v", "module alu();\nendmodule\n")

	s, err := NewFSStore(root)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		taskID   string
		artifact string
		expected bool
	}{
		{name: "own artifact", taskID: "t1", artifact: "counter.v", expected: true},
		{name: "testbench artifact", taskID: "t1", artifact: "counter_tb.v", expected: true},
		{name: "path is normalized to base name", taskID: "t1", artifact: "out/t1/counter.v", expected: true},
		{name: "other task's artifact", taskID: "t1", artifact: "alu.v", expected: false},
		{name: "missing artifact", taskID: "t1", artifact: "decoder.v", expected: false},
		{name: "unknown task", taskID: "t9", artifact: "counter.v", expected: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := s.Exists(tc.taskID, tc.artifact); got != tc.expected {
				t.Errorf("Exists(%s, %s) = %t, want %t", tc.taskID, tc.artifact, got, tc.expected)
			}
		})
	}
}

func TestFSStore_PrimaryArtifactSkipsTestbenches(t *testing.T) {
	root := t.TempDir()
	writeArtifact(t, root, "t1", "counter_tb.v", "module counter_tb;\nendmodule\n")

	s, err := NewFSStore(root)
	if err != nil {
		t.Fatal(err)
	}
	if s.HasPrimaryArtifact("t1") {
		t.Error("testbench counted as primary artifact")
	}

	writeArtifact(t, root, "t1", "counter.v", "module counter();\nendmodule\n")
	if err := s.Rescan(); err != nil {
		t.Fatal(err)
	}
	if !s.HasPrimaryArtifact("t1") {
		t.Error("design source not recognized as primary artifact")
	}
}

func TestFSStore_ModuleIdentity(t *testing.T) {
	root := t.TempDir()
	writeArtifact(t, root, "t1", "counter.v",
		"// 8-bit counter\nmodule counter (\n    input wire clk\n);\nendmodule\n")

	s, err := NewFSStore(root)
	if err != nil {
		t.Fatal(err)
	}
	if got := s.ModuleIdentity("t1"); got != "counter" {
		t.Errorf("ModuleIdentity = %q, want counter", got)
	}
	if got := s.ModuleIdentity("missing"); got != "" {
		t.Errorf("ModuleIdentity for unknown task = %q, want empty", got)
	}
}

func TestFSStore_NonHDLFilesIgnoredAsPrimary(t *testing.T) {
	root := t.TempDir()
	writeArtifact(t, root, "t1", "notes.txt", "just notes")
	writeArtifact(t, root, "t1", "sim", "binary")

	s, err := NewFSStore(root)
	if err != nil {
		t.Fatal(err)
	}
	if s.HasPrimaryArtifact("t1") {
		t.Error("non-HDL file counted as primary artifact")
	}
	// They are still indexed for existence checks.
	if !s.Exists("t1", "notes.txt") {
		t.Error("indexed file not found")
	}
}

func TestFSStore_MissingRootIsEmpty(t *testing.T) {
	s, err := NewFSStore(filepath.Join(t.TempDir(), "never-created"))
	if err != nil {
		t.Fatalf("missing root should not error: %v", err)
	}
	if got := s.KnownArtifacts("t1"); len(got) != 0 {
		t.Errorf("KnownArtifacts = %v, want empty", got)
	}
}
