package dropbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// ListFolder enumerates one page of the given remote folder.
func (c *Client) ListFolder(ctx context.Context, path string) (*ListingPage, error) {
	args := struct {
		Path string `json:"path"`
	}{Path: path}

	var page ListingPage
	if err := c.rpc(ctx, "list_folder", "/files/list_folder", path, args, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Download fetches the remote file at path into destDir, keeping the remote
// base name. The returned LocalFile points at the materialized file.
func (c *Client) Download(ctx context.Context, path, destDir string) (*LocalFile, error) {
	arg, err := json.Marshal(struct {
		Path string `json:"path"`
	}{Path: path})
	if err != nil {
		return nil, fmt.Errorf("dropbox download: failed to encode arguments: %w", err)
	}

	resp, err := c.do(ctx, "download", path, func(token string) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.contentURL+"/files/download", nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set(apiArgHeader, string(arg))
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	name := filepath.Base(path)
	localPath := filepath.Join(destDir, name)

	out, err := os.Create(localPath)
	if err != nil {
		return nil, fmt.Errorf("dropbox download %s: failed to create local file: %w", path, err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(localPath)
		return nil, fmt.Errorf("dropbox download %s: failed to write local file: %w", path, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(localPath)
		return nil, fmt.Errorf("dropbox download %s: failed to close local file: %w", path, err)
	}

	return &LocalFile{Name: name, Path: localPath}, nil
}

// Upload stores the local file at remotePath, renaming automatically on
// conflict.
func (c *Client) Upload(ctx context.Context, localPath, remotePath string) (*Receipt, error) {
	arg, err := json.Marshal(struct {
		Path       string `json:"path"`
		Mode       string `json:"mode"`
		Autorename bool   `json:"autorename"`
	}{Path: remotePath, Mode: "add", Autorename: true})
	if err != nil {
		return nil, fmt.Errorf("dropbox upload: failed to encode arguments: %w", err)
	}

	resp, err := c.do(ctx, "upload", remotePath, func(token string) (*http.Request, error) {
		f, err := os.Open(localPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open local file %s: %w", localPath, err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.contentURL+"/files/upload", f)
		if err != nil {
			f.Close()
			return nil, err
		}
		req.Header.Set(apiArgHeader, string(arg))
		req.Header.Set("Content-Type", "application/octet-stream")
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var receipt Receipt
	if err := json.NewDecoder(resp.Body).Decode(&receipt); err != nil {
		return nil, fmt.Errorf("dropbox upload %s: failed to decode response: %w", remotePath, err)
	}
	return &receipt, nil
}

// Delete removes the remote file or folder at path.
func (c *Client) Delete(ctx context.Context, path string) (*Receipt, error) {
	args := struct {
		Path string `json:"path"`
	}{Path: path}

	var result struct {
		Metadata Receipt `json:"metadata"`
	}
	if err := c.rpc(ctx, "delete", "/files/delete_v2", path, args, &result); err != nil {
		return nil, err
	}
	return &result.Metadata, nil
}

// Move relocates a remote file, renaming automatically on conflict.
func (c *Client) Move(ctx context.Context, fromPath, toPath string) (*Receipt, error) {
	args := struct {
		FromPath               string `json:"from_path"`
		ToPath                 string `json:"to_path"`
		Autorename             bool   `json:"autorename"`
		AllowSharedFolder      bool   `json:"allow_shared_folder"`
		AllowOwnershipTransfer bool   `json:"allow_ownership_transfer"`
	}{FromPath: fromPath, ToPath: toPath, Autorename: true}

	var result struct {
		Metadata Receipt `json:"metadata"`
	}
	if err := c.rpc(ctx, "move", "/files/move_v2", fromPath, args, &result); err != nil {
		return nil, err
	}
	return &result.Metadata, nil
}
