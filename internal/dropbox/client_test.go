package dropbox

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hmacDigest(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// staticTokens is a TokenProvider with a fixed token sequence: current first,
// refreshed after a rejection.
type staticTokens struct {
	current   string
	refreshed string
	refreshes atomic.Int64
}

func (s *staticTokens) AccessToken(_ context.Context) (string, error) {
	return s.current, nil
}

func (s *staticTokens) RefreshAccessToken(_ context.Context) (string, error) {
	s.refreshes.Add(1)
	if s.refreshed == "" {
		return "", fmt.Errorf("refresh rejected")
	}
	s.current = s.refreshed
	return s.refreshed, nil
}

func newTestClient(t *testing.T, handler http.Handler, tokens TokenProvider) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(tokens, WithBaseURLs(server.URL, server.URL))
}

func TestListFolder(t *testing.T) {
	tokens := &staticTokens{current: "tok-1"}
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/files/list_folder", r.URL.Path)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))

		var args struct {
			Path string `json:"path"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&args))
		assert.Equal(t, "/in", args.Path)

		fmt.Fprint(w, `{"entries":[`+
			`{".tag":"file","name":"invoice.pdf","path_display":"/in/invoice.pdf"},`+
			`{".tag":"folder","name":"nested","path_display":"/in/nested"}`+
			`],"has_more":true}`)
	}), tokens)

	page, err := client.ListFolder(context.Background(), "/in")
	require.NoError(t, err)

	require.Len(t, page.Entries, 2)
	assert.Equal(t, TagFile, page.Entries[0].Tag)
	assert.Equal(t, "/in/invoice.pdf", page.Entries[0].Path)
	assert.Equal(t, TagFolder, page.Entries[1].Tag)
	assert.True(t, page.HasMore)
}

func TestListFolderProviderError(t *testing.T) {
	tokens := &staticTokens{current: "tok-1"}
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		fmt.Fprint(w, `{"error_summary":"path/not_found/","error":{}}`)
	}), tokens)

	_, err := client.ListFolder(context.Background(), "/missing")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "list_folder", apiErr.Op)
	assert.Equal(t, 409, apiErr.StatusCode)
	assert.Equal(t, "path/not_found/", apiErr.Summary)
	assert.False(t, apiErr.Unauthorized())
}

func TestTokenRejectionTriggersRefreshRetry(t *testing.T) {
	tokens := &staticTokens{current: "stale", refreshed: "fresh"}
	var calls atomic.Int64
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"error_summary":"expired_access_token/"}`)
			return
		}
		fmt.Fprint(w, `{"entries":[],"has_more":false}`)
	}), tokens)

	page, err := client.ListFolder(context.Background(), "/in")
	require.NoError(t, err)
	assert.Empty(t, page.Entries)
	assert.Equal(t, int64(2), calls.Load(), "rejected call retried exactly once")
	assert.Equal(t, int64(1), tokens.refreshes.Load())
}

func TestTokenRejectionWithFailedRefresh(t *testing.T) {
	tokens := &staticTokens{current: "stale"} // no refreshed token available
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}), tokens)

	_, err := client.ListFolder(context.Background(), "/in")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refresh after rejection failed")
}

func TestDownloadWritesLocalFile(t *testing.T) {
	tokens := &staticTokens{current: "tok-1"}
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/files/download", r.URL.Path)

		var args struct {
			Path string `json:"path"`
		}
		require.NoError(t, json.Unmarshal([]byte(r.Header.Get(apiArgHeader)), &args))
		assert.Equal(t, "/in/invoice.pdf", args.Path)

		fmt.Fprint(w, "%PDF-1.4 fake body")
	}), tokens)

	destDir := t.TempDir()
	local, err := client.Download(context.Background(), "/in/invoice.pdf", destDir)
	require.NoError(t, err)

	assert.Equal(t, "invoice.pdf", local.Name)
	assert.Equal(t, filepath.Join(destDir, "invoice.pdf"), local.Path)

	data, err := os.ReadFile(local.Path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 fake body", string(data))
}

func TestUpload(t *testing.T) {
	tokens := &staticTokens{current: "tok-1"}
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/files/upload", r.URL.Path)
		assert.Equal(t, "application/octet-stream", r.Header.Get("Content-Type"))

		var args struct {
			Path       string `json:"path"`
			Mode       string `json:"mode"`
			Autorename bool   `json:"autorename"`
		}
		require.NoError(t, json.Unmarshal([]byte(r.Header.Get(apiArgHeader)), &args))
		assert.Equal(t, "/backup/invoice.pdf", args.Path)
		assert.Equal(t, "add", args.Mode)
		assert.True(t, args.Autorename)

		fmt.Fprint(w, `{"name":"invoice (1).pdf","path_display":"/backup/invoice (1).pdf"}`)
	}), tokens)

	localPath := filepath.Join(t.TempDir(), "invoice.pdf")
	require.NoError(t, os.WriteFile(localPath, []byte("body"), 0o644))

	receipt, err := client.Upload(context.Background(), localPath, "/backup/invoice.pdf")
	require.NoError(t, err)
	// Autorename may hand back a different final name.
	assert.Equal(t, "invoice (1).pdf", receipt.Name)
}

func TestDelete(t *testing.T) {
	tokens := &staticTokens{current: "tok-1"}
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/files/delete_v2", r.URL.Path)
		fmt.Fprint(w, `{"metadata":{"name":"invoice.pdf","path_display":"/in/invoice.pdf"}}`)
	}), tokens)

	receipt, err := client.Delete(context.Background(), "/in/invoice.pdf")
	require.NoError(t, err)
	assert.Equal(t, "/in/invoice.pdf", receipt.Path)
}

func TestMove(t *testing.T) {
	tokens := &staticTokens{current: "tok-1"}
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/files/move_v2", r.URL.Path)

		var args struct {
			FromPath   string `json:"from_path"`
			ToPath     string `json:"to_path"`
			Autorename bool   `json:"autorename"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&args))
		assert.Equal(t, "/in/invoice.pdf", args.FromPath)
		assert.Equal(t, "/backup/invoice.pdf", args.ToPath)
		assert.True(t, args.Autorename)

		fmt.Fprint(w, `{"metadata":{"name":"invoice.pdf","path_display":"/backup/invoice.pdf"}}`)
	}), tokens)

	receipt, err := client.Move(context.Background(), "/in/invoice.pdf", "/backup/invoice.pdf")
	require.NoError(t, err)
	assert.Equal(t, "/backup/invoice.pdf", receipt.Path)
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"list_folder":{"accounts":["dbid:abc"]}}`)

	// Digest of body under secret "app-secret", computed with the same
	// primitive the verifier uses.
	valid := func() string {
		mac := hmacDigest("app-secret", body)
		return mac
	}()

	assert.True(t, VerifySignature("app-secret", body, valid))
	assert.False(t, VerifySignature("app-secret", body, "deadbeef"))
	assert.False(t, VerifySignature("other-secret", body, valid))
	assert.False(t, VerifySignature("app-secret", []byte("tampered"), valid))
}
