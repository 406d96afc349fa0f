//go:build linux

package gpio

import (
	"os"
	"path/filepath"
	"testing"
)

func withSysfsRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	old := sysfsRoot
	sysfsRoot = root
	t.Cleanup(func() { sysfsRoot = old })
	return root
}

func TestExportSysfs_ConfiguresExistingLine(t *testing.T) {
	root := withSysfsRoot(t)
	dir := filepath.Join(root, "gpio17")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "value"), []byte("1\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := exportSysfs(17, true)
	if err != nil {
		t.Fatalf("exportSysfs: %v", err)
	}
	defer f.Close()

	for file, want := range map[string]string{"direction": "in", "edge": "both", "active_low": "1"} {
		b, err := os.ReadFile(filepath.Join(dir, file))
		if err != nil {
			t.Fatalf("read %s: %v", file, err)
		}
		if string(b) != want {
			t.Errorf("%s: got %q, want %q", file, b, want)
		}
	}

	v, err := sysfsLine{f: f}.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	if v != 1 {
		t.Fatalf("Value: got %d, want 1", v)
	}
}

func TestExportSysfs_MissingLineWritesExport(t *testing.T) {
	root := withSysfsRoot(t)

	// No gpio5 directory, so the export write happens and configuring fails.
	if _, err := exportSysfs(5, false); err == nil {
		t.Fatalf("expected error configuring a line that never appeared")
	}
	b, err := os.ReadFile(filepath.Join(root, "export"))
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if string(b) != "5" {
		t.Fatalf("export: got %q, want %q", b, "5")
	}
}

func TestSysfsLine_RejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "value")
	if err := os.WriteFile(path, []byte("x\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if _, err := (sysfsLine{f: f}).Value(); err == nil {
		t.Fatalf("expected error for garbage value")
	}
}
