// Package transport moves ACH files between the engine and the banking
// processor over an encrypted file-transfer session.
package transport

import "context"

// Client is the file-transfer contract: push generated files to the
// outbound path and pull return files from the return path.
type Client interface {
	Upload(ctx context.Context, remotePath string, data []byte) error
	List(ctx context.Context, remoteDir string) ([]string, error)
	Download(ctx context.Context, remotePath string) ([]byte, error)
	Rename(ctx context.Context, oldPath, newPath string) error
	Close() error
}
