package ssh

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/sftp"
)

// transferChunk is the copy buffer size for SFTP transfers.
const transferChunk = 32 * 1024

// sftpSession opens an SFTP client on the connection. The caller closes
// it.
func (c *Client) sftpSession(op string) (*sftp.Client, error) {
	conn, err := c.acquire(op)
	if err != nil {
		return nil, err
	}
	client, err := sftp.NewClient(conn)
	if err != nil {
		return nil, tempError(op, err)
	}
	return client, nil
}

// Upload copies a local file to remotePath, creating missing parent
// directories, and applies mode. It returns the number of bytes written.
func (c *Client) Upload(ctx context.Context, localPath, remotePath string, mode fs.FileMode) (int64, error) {
	client, err := c.sftpSession("upload")
	if err != nil {
		return 0, err
	}
	defer client.Close()

	return c.uploadFile(ctx, client, localPath, remotePath, mode)
}

func (c *Client) uploadFile(ctx context.Context, client *sftp.Client, localPath, remotePath string, mode fs.FileMode) (int64, error) {
	local, err := os.Open(localPath)
	if err != nil {
		return 0, opError("upload", err)
	}
	defer local.Close()

	// Remote paths are POSIX regardless of the local platform.
	if dir := path.Dir(remotePath); dir != "." && dir != "/" {
		if err := client.MkdirAll(dir); err != nil {
			return 0, opError("upload", fmt.Errorf("create remote directory %s: %w", dir, err))
		}
	}

	remote, err := client.Create(remotePath)
	if err != nil {
		return 0, opError("upload", err)
	}
	defer remote.Close()

	written, err := copyWithContext(ctx, remote, local)
	if err != nil {
		return written, opError("upload", err)
	}
	if err := client.Chmod(remotePath, mode); err != nil {
		return written, opError("upload", fmt.Errorf("chmod %s: %w", remotePath, err))
	}

	c.log.WithFields(map[string]interface{}{
		"local":  localPath,
		"remote": remotePath,
		"bytes":  written,
	}).Debug("file uploaded")
	return written, nil
}

// UploadDir recursively copies localDir under remoteDir, preserving file
// modes, and returns the total bytes written.
func (c *Client) UploadDir(ctx context.Context, localDir, remoteDir string) (int64, error) {
	client, err := c.sftpSession("upload")
	if err != nil {
		return 0, err
	}
	defer client.Close()

	var total int64
	err = filepath.WalkDir(localDir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(localDir, p)
		if err != nil {
			return err
		}
		remote := remoteDir
		if rel != "." {
			remote = path.Join(remoteDir, filepath.ToSlash(rel))
		}

		if d.IsDir() {
			return client.MkdirAll(remote)
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		written, err := c.uploadFile(ctx, client, p, remote, info.Mode().Perm())
		total += written
		return err
	})
	if err != nil {
		if _, ok := err.(*TransportError); ok {
			return total, err
		}
		return total, opError("upload", err)
	}

	c.log.WithFields(map[string]interface{}{
		"local":  localDir,
		"remote": remoteDir,
		"bytes":  total,
	}).Debug("directory uploaded")
	return total, nil
}

// Download copies a remote file to localPath, creating missing local
// parent directories.
func (c *Client) Download(ctx context.Context, remotePath, localPath string) (int64, error) {
	client, err := c.sftpSession("download")
	if err != nil {
		return 0, err
	}
	defer client.Close()

	remote, err := client.Open(remotePath)
	if err != nil {
		return 0, opError("download", err)
	}
	defer remote.Close()

	if dir := filepath.Dir(localPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, opError("download", err)
		}
	}
	local, err := os.Create(localPath)
	if err != nil {
		return 0, opError("download", err)
	}
	defer local.Close()

	written, err := copyWithContext(ctx, local, remote)
	if err != nil {
		return written, opError("download", err)
	}

	c.log.WithFields(map[string]interface{}{
		"remote": remotePath,
		"local":  localPath,
		"bytes":  written,
	}).Debug("file downloaded")
	return written, nil
}

// Chmod changes the mode of a remote file.
func (c *Client) Chmod(ctx context.Context, remotePath string, mode fs.FileMode) error {
	if err := ctx.Err(); err != nil {
		return tempError("chmod", err)
	}
	client, err := c.sftpSession("chmod")
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Chmod(remotePath, mode); err != nil {
		return opError("chmod", err)
	}
	return nil
}

// Chown changes the owner of a remote file. The SSH user needs the
// privilege to do so; ownership handoffs to other users normally run
// through ExecSudo instead.
func (c *Client) Chown(ctx context.Context, remotePath string, uid, gid int) error {
	if err := ctx.Err(); err != nil {
		return tempError("chown", err)
	}
	client, err := c.sftpSession("chown")
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Chown(remotePath, uid, gid); err != nil {
		return opError("chown", err)
	}
	return nil
}

// Checksum returns the SHA-256 of a remote file, using the remote
// sha256sum binary so large files never cross the wire.
func (c *Client) Checksum(ctx context.Context, remotePath string) (string, error) {
	res, err := c.Exec(ctx, "sha256sum -- "+shellQuote(remotePath))
	if err != nil {
		return "", err
	}
	if !res.Ok() {
		return "", opError("checksum", fmt.Errorf("sha256sum exited %d: %s", res.ExitCode, res.Stderr))
	}

	fields := strings.Fields(res.Stdout)
	if len(fields) == 0 || len(fields[0]) != sha256.Size*2 {
		return "", opError("checksum", fmt.Errorf("unexpected sha256sum output %q", res.Stdout))
	}
	return fields[0], nil
}

// LocalSHA256 hashes a local file with SHA-256. Pairs with Checksum to
// verify a transferred file end to end.
func LocalSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// copyWithContext copies in fixed-size chunks, checking for cancellation
// between chunks.
func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, transferChunk)
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, readErr := src.Read(buf)
		if n > 0 {
			written, writeErr := dst.Write(buf[:n])
			total += int64(written)
			if writeErr != nil {
				return total, writeErr
			}
			if written != n {
				return total, io.ErrShortWrite
			}
		}
		if readErr == io.EOF {
			return total, nil
		}
		if readErr != nil {
			return total, readErr
		}
	}
}
