package fsutil

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func TestOSFileSystem_WriteAtomicAndRead(t *testing.T) {
	fsys := OSFileSystem{}
	path := filepath.Join(t.TempDir(), "region.wrl")

	if Exists(fsys, path) {
		t.Fatal("file should not exist yet")
	}
	if err := WriteFileAtomic(fsys, path, []byte("payload"), 0644); err != nil {
		t.Fatalf("WriteFileAtomic failed: %v", err)
	}
	if !Exists(fsys, path) {
		t.Fatal("expected file to exist")
	}
	if Exists(fsys, path+".tmp") {
		t.Error("temporary file left behind")
	}

	data, err := fsys.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "payload" {
		t.Errorf("expected %q, got %q", "payload", data)
	}

	if err := fsys.Remove(path); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected file removed, stat err %v", err)
	}
}

func TestMemoryFileSystem_WriteAndRead(t *testing.T) {
	mfs := NewMemoryFileSystem()

	testData := []byte("hello, world")
	if err := mfs.WriteFile("/maps/test.wrl", testData, 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	data, err := mfs.ReadFile("/maps/../maps/test.wrl")
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != string(testData) {
		t.Errorf("expected %q, got %q", testData, data)
	}

	// Returned data is a copy
	data[0] = 'X'
	again, _ := mfs.ReadFile("/maps/test.wrl")
	if again[0] != 'h' {
		t.Error("ReadFile returned shared storage")
	}

	info, err := mfs.Stat("/maps/test.wrl")
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Name() != "test.wrl" || info.Size() != int64(len(testData)) || info.IsDir() {
		t.Errorf("unexpected file info %s/%d/%v", info.Name(), info.Size(), info.IsDir())
	}
}

func TestMemoryFileSystem_Missing(t *testing.T) {
	mfs := NewMemoryFileSystem()

	if _, err := mfs.ReadFile("/nope"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
	if _, err := mfs.Stat("/nope"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
	if err := mfs.Remove("/nope"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
	if err := mfs.Rename("/nope", "/other"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
}

func TestMemoryFileSystem_FailReads(t *testing.T) {
	mfs := NewMemoryFileSystem()
	_ = mfs.WriteFile("/locked.wrl", []byte("x"), 0600)

	mfs.FailReads("/locked.wrl", fs.ErrPermission)
	if !Exists(mfs, "/locked.wrl") {
		t.Error("failed reads should not hide the file")
	}
	if _, err := mfs.ReadFile("/locked.wrl"); !errors.Is(err, fs.ErrPermission) {
		t.Errorf("expected ErrPermission, got %v", err)
	}

	mfs.FailReads("/locked.wrl", nil)
	if _, err := mfs.ReadFile("/locked.wrl"); err != nil {
		t.Errorf("expected read to succeed after clearing, got %v", err)
	}
}

func TestMemoryFileSystem_WriteFileAtomic(t *testing.T) {
	mfs := NewMemoryFileSystem()
	_ = mfs.WriteFile("/a.wrl", []byte("old"), 0644)

	if err := WriteFileAtomic(mfs, "/a.wrl", []byte("new"), 0644); err != nil {
		t.Fatalf("WriteFileAtomic failed: %v", err)
	}
	data, _ := mfs.ReadFile("/a.wrl")
	if string(data) != "new" {
		t.Errorf("expected %q, got %q", "new", data)
	}
	if Exists(mfs, "/a.wrl.tmp") {
		t.Error("temporary file left behind")
	}
}
