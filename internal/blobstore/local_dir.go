package blobstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	tmpDirName      = ".tmp"
	maxNameAttempts = 5
)

// LocalDir stores blobs flat in one local directory.
type LocalDir struct {
	root string
	now  func() time.Time
}

// NewLocalDir creates a flat blob directory rooted at root.
func NewLocalDir(root string) (*LocalDir, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("upload dir is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(abs, tmpDirName), 0o755); err != nil {
		return nil, err
	}
	return &LocalDir{root: abs, now: time.Now}, nil
}

// Root returns the absolute blob directory.
func (d *LocalDir) Root() string {
	if d == nil {
		return ""
	}
	return d.root
}

// Put streams r to a temp file and renames it into place once fully written.
// Nothing is left in the blob directory when the copy fails, the context is
// cancelled, or the payload exceeds opts.MaxBytes.
func (d *LocalDir) Put(ctx context.Context, originalName string, r io.Reader, opts PutOptions) (BlobPutResult, error) {
	var zero BlobPutResult
	if d == nil {
		return zero, fmt.Errorf("blob store is not configured")
	}
	if r == nil {
		return zero, fmt.Errorf("reader is required")
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	tmp, err := os.CreateTemp(filepath.Join(d.root, tmpDirName), "put-*")
	if err != nil {
		return zero, err
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	src := io.Reader(&ctxReader{ctx: ctx, r: r})
	if opts.MaxBytes > 0 {
		src = io.LimitReader(src, opts.MaxBytes+1)
	}

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(tmp, h), src)
	if err != nil {
		cleanup()
		return zero, err
	}
	if opts.MaxBytes > 0 && n > opts.MaxBytes {
		cleanup()
		return zero, ErrTooLarge
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return zero, err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return zero, err
	}

	name, err := d.freeName(originalName)
	if err != nil {
		_ = os.Remove(tmpPath)
		return zero, err
	}
	if err := os.Rename(tmpPath, filepath.Join(d.root, name)); err != nil {
		_ = os.Remove(tmpPath)
		return zero, err
	}

	return BlobPutResult{Name: name, SHA256: hex.EncodeToString(h.Sum(nil)), SizeBytes: n}, nil
}

// Open returns the blob content and its size.
func (d *LocalDir) Open(ctx context.Context, name string) (*Object, error) {
	if d == nil {
		return nil, fmt.Errorf("blob store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := d.pathFromName(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return &Object{ReadCloser: f, Name: info.Name(), SizeBytes: info.Size(), ModTime: info.ModTime()}, nil
}

// Delete removes a blob. Missing files are ignored.
func (d *LocalDir) Delete(ctx context.Context, name string) error {
	if d == nil {
		return fmt.Errorf("blob store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := d.pathFromName(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (d *LocalDir) freeName(originalName string) (string, error) {
	for i := 0; i < maxNameAttempts; i++ {
		name := EncodeName(d.now(), originalName)
		_, err := os.Lstat(filepath.Join(d.root, name))
		if errors.Is(err, fs.ErrNotExist) {
			return name, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("unable to allocate unique blob name")
}

func (d *LocalDir) pathFromName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("blob name is required")
	}
	if name != filepath.Base(name) || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("invalid blob name")
	}
	return filepath.Join(d.root, name), nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
