package transport

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// DirClient implements Client against a local directory. It serves
// single-process development setups and keeps the test suite hermetic; the
// directory stands in for the processor's drop box.
type DirClient struct {
	root string
}

func NewDirClient(root string) (*DirClient, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create transport root: %w", err)
	}
	return &DirClient{root: root}, nil
}

func (c *DirClient) resolve(remotePath string) string {
	return filepath.Join(c.root, filepath.FromSlash(remotePath))
}

func (c *DirClient) Upload(ctx context.Context, remotePath string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	full := c.resolve(remotePath)
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return fmt.Errorf("create remote dir: %w", err)
	}
	tmp := full + ".part"
	if err := os.WriteFile(tmp, data, 0o640); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, full); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}

func (c *DirClient) List(ctx context.Context, remoteDir string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(c.resolve(remoteDir))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", remoteDir, err)
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, remoteDir+"/"+entry.Name())
		}
	}
	return names, nil
}

func (c *DirClient) Download(ctx context.Context, remotePath string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(c.resolve(remotePath))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", remotePath, err)
	}
	return data, nil
}

func (c *DirClient) Rename(ctx context.Context, oldPath, newPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Rename(c.resolve(oldPath), c.resolve(newPath)); err != nil {
		return fmt.Errorf("rename %s -> %s: %w", oldPath, newPath, err)
	}
	return nil
}

func (c *DirClient) Close() error { return nil }
