package vfs

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestRename(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, filepath.Join(root, "old.txt"), "data")

	if err := Rename(root, ".", "old.txt", "new.txt"); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "old.txt")); !os.IsNotExist(err) {
		t.Error("source still exists")
	}
	data, err := os.ReadFile(filepath.Join(root, "new.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "data" {
		t.Errorf("content = %q", data)
	}
}

func TestRenameCollision(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, filepath.Join(root, "a.txt"), "A")
	writeTestFile(t, filepath.Join(root, "b.txt"), "B")

	if err := Rename(root, ".", "a.txt", "b.txt"); !IsKind(err, KindItemExists) {
		t.Fatalf("got %v, want ItemExists", err)
	}

	// Neither file changed.
	for name, want := range map[string]string{"a.txt": "A", "b.txt": "B"} {
		data, _ := os.ReadFile(filepath.Join(root, name))
		if string(data) != want {
			t.Errorf("%s = %q, want %q", name, data, want)
		}
	}
}

func TestRenameMissingSource(t *testing.T) {
	root := t.TempDir()
	if err := Rename(root, ".", "ghost.txt", "new.txt"); !IsKind(err, KindPathNotFound) {
		t.Fatalf("got %v, want PathNotFound", err)
	}
}

func TestRenameBadNames(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, filepath.Join(root, "a.txt"), "A")

	for _, bad := range []string{"", ".", "..", "x/y", `x\y`, ReservedPrefix + "x"} {
		if err := Rename(root, ".", "a.txt", bad); !IsKind(err, KindAccessDenied) {
			t.Errorf("Rename to %q: got %v, want AccessDenied", bad, err)
		}
	}
}

func TestDelete(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, filepath.Join(root, "f.txt"), "x")
	if err := os.MkdirAll(filepath.Join(root, "d/sub"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeTestFile(t, filepath.Join(root, "d/sub/inner.txt"), "x")

	if err := Delete(root, ".", "f.txt"); err != nil {
		t.Fatalf("delete file: %v", err)
	}
	if err := Delete(root, ".", "d"); err != nil {
		t.Fatalf("delete dir: %v", err)
	}
	for _, gone := range []string{"f.txt", "d"} {
		if _, err := os.Stat(filepath.Join(root, gone)); !os.IsNotExist(err) {
			t.Errorf("%s still exists", gone)
		}
	}
}

func TestDeleteIdempotent(t *testing.T) {
	root := t.TempDir()

	// Deleting an item that is already gone is a success.
	if err := Delete(root, ".", "never-existed.txt"); err != nil {
		t.Fatalf("got %v, want nil", err)
	}
}

func TestMove(t *testing.T) {
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, "dst"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeTestFile(t, filepath.Join(root, "item.txt"), "payload")

	if err := Move(root, ".", "item.txt", "dst"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(root, "dst/item.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "payload" {
		t.Errorf("content = %q", data)
	}
	if _, err := os.Stat(filepath.Join(root, "item.txt")); !os.IsNotExist(err) {
		t.Error("source still exists")
	}
}

func TestMoveDirectory(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "src/tree/deep"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeTestFile(t, filepath.Join(root, "src/tree/deep/leaf.txt"), "leaf")
	if err := os.Mkdir(filepath.Join(root, "dst"), 0o755); err != nil {
		t.Fatal(err)
	}

	if err := Move(root, "src", "tree", "dst"); err != nil {
		t.Fatalf("Move: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(root, "dst/tree/deep/leaf.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "leaf" {
		t.Errorf("content = %q", data)
	}
}

func TestMoveCollision(t *testing.T) {
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, "dst"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeTestFile(t, filepath.Join(root, "item.txt"), "src")
	writeTestFile(t, filepath.Join(root, "dst/item.txt"), "already here")

	if err := Move(root, ".", "item.txt", "dst"); !IsKind(err, KindItemExists) {
		t.Fatalf("got %v, want ItemExists", err)
	}
	data, _ := os.ReadFile(filepath.Join(root, "dst/item.txt"))
	if string(data) != "already here" {
		t.Errorf("destination clobbered: %q", data)
	}
}

func TestMoveMany(t *testing.T) {
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, "dst"), 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		writeTestFile(t, filepath.Join(root, name), name)
	}
	writeTestFile(t, filepath.Join(root, "dst/b.txt"), "taken")

	// The middle item collides; the rest of the batch still moves.
	result := MoveMany(root, ".", []string{"a.txt", "b.txt", "c.txt"}, "dst")

	if !reflect.DeepEqual(result.Moved, []string{"a.txt", "c.txt"}) {
		t.Errorf("moved = %v, want [a.txt c.txt]", result.Moved)
	}
	if len(result.Failed) != 1 || result.Failed[0].Name != "b.txt" {
		t.Fatalf("failed = %v, want only b.txt", result.Failed)
	}

	for _, name := range []string{"a.txt", "c.txt"} {
		if _, err := os.Stat(filepath.Join(root, "dst", name)); err != nil {
			t.Errorf("%s not moved: %v", name, err)
		}
	}
	// The collided source must survive for a retry.
	if _, err := os.Stat(filepath.Join(root, "b.txt")); err != nil {
		t.Error("collided source lost")
	}
}

func TestCreateFolder(t *testing.T) {
	root := t.TempDir()

	first, err := CreateFolder(root, ".")
	if err != nil {
		t.Fatalf("CreateFolder: %v", err)
	}
	if first != "Untitled Folder" {
		t.Errorf("first folder = %q", first)
	}

	second, err := CreateFolder(root, ".")
	if err != nil {
		t.Fatalf("CreateFolder again: %v", err)
	}
	if second != "Untitled Folder 1" {
		t.Errorf("second folder = %q", second)
	}

	for _, name := range []string{first, second} {
		info, err := os.Stat(filepath.Join(root, name))
		if err != nil || !info.IsDir() {
			t.Errorf("%q not a directory: %v", name, err)
		}
	}
}

func TestOpsRejectEscapingDir(t *testing.T) {
	root := t.TempDir()
	// A real sibling directory: it exists, so only containment can reject it.
	outside := t.TempDir()
	rel := "../" + filepath.Base(outside)

	if err := Delete(root, rel, "x"); !IsKind(err, KindAccessDenied) {
		t.Errorf("Delete: got %v, want AccessDenied", err)
	}
	if err := Rename(root, rel, "a", "b"); !IsKind(err, KindAccessDenied) {
		t.Errorf("Rename: got %v, want AccessDenied", err)
	}
	if _, err := CreateFolder(root, rel); !IsKind(err, KindAccessDenied) {
		t.Errorf("CreateFolder: got %v, want AccessDenied", err)
	}
}
