package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLocalDirPutOpenDelete(t *testing.T) {
	dir, err := NewLocalDir(t.TempDir())
	if err != nil {
		t.Fatalf("new local dir: %v", err)
	}

	res, err := dir.Put(context.Background(), "hello.txt", bytes.NewBufferString("hello"), PutOptions{})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if res.SHA256 == "" || res.SizeBytes != 5 {
		t.Fatalf("unexpected put result: %#v", res)
	}
	if name, ok := DisplayName(res.Name); !ok || name != "hello.txt" {
		t.Fatalf("expected display name hello.txt, got %q (ok=%v)", name, ok)
	}

	obj, err := dir.Open(context.Background(), res.Name)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	data, err := io.ReadAll(obj)
	_ = obj.Close()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("expected hello, got %q", string(data))
	}
	if obj.SizeBytes != 5 {
		t.Fatalf("expected size 5, got %d", obj.SizeBytes)
	}

	if err := dir.Delete(context.Background(), res.Name); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := dir.Delete(context.Background(), res.Name); err != nil {
		t.Fatalf("delete missing should be noop: %v", err)
	}
	if _, err := dir.Open(context.Background(), res.Name); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestLocalDirPutTooLargeLeavesNothing(t *testing.T) {
	root := t.TempDir()
	dir, err := NewLocalDir(root)
	if err != nil {
		t.Fatalf("new local dir: %v", err)
	}

	_, err = dir.Put(context.Background(), "big.bin", strings.NewReader(strings.Repeat("a", 11)), PutOptions{MaxBytes: 10})
	if !errors.Is(err, ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
	assertNoBlobs(t, root)

	if _, err := dir.Put(context.Background(), "exact.bin", strings.NewReader(strings.Repeat("a", 10)), PutOptions{MaxBytes: 10}); err != nil {
		t.Fatalf("put at limit: %v", err)
	}
}

func TestLocalDirPutCancelledLeavesNothing(t *testing.T) {
	root := t.TempDir()
	dir, err := NewLocalDir(root)
	if err != nil {
		t.Fatalf("new local dir: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &cancelAfterFirstRead{cancel: cancel, data: []byte("partial payload")}
	if _, err := dir.Put(ctx, "partial.bin", r, PutOptions{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	assertNoBlobs(t, root)
}

func TestLocalDirRejectsTraversal(t *testing.T) {
	dir, err := NewLocalDir(t.TempDir())
	if err != nil {
		t.Fatalf("new local dir: %v", err)
	}
	for _, name := range []string{"", "../x", "a/b", ".tmp", `..\x`} {
		if _, err := dir.Open(context.Background(), name); err == nil {
			t.Fatalf("expected error opening %q", name)
		}
	}
}

type cancelAfterFirstRead struct {
	cancel context.CancelFunc
	data   []byte
	done   bool
}

func (c *cancelAfterFirstRead) Read(p []byte) (int, error) {
	if c.done {
		return 0, io.ErrUnexpectedEOF
	}
	c.done = true
	n := copy(p, c.data)
	c.cancel()
	return n, nil
}

func assertNoBlobs(t *testing.T, root string) {
	t.Helper()
	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, entry := range entries {
		if entry.Name() == tmpDirName {
			continue
		}
		t.Fatalf("unexpected blob left behind: %s", entry.Name())
	}
	tmpEntries, err := os.ReadDir(filepath.Join(root, tmpDirName))
	if err != nil {
		t.Fatalf("read tmp dir: %v", err)
	}
	if len(tmpEntries) != 0 {
		t.Fatalf("expected empty tmp dir, got %d entries", len(tmpEntries))
	}
}
