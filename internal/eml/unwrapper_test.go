package eml

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const containerWithAttachments = `From: "Mario Rossi" <mario@example.com>
To: intake@example.com
Subject: Fattura marzo
MIME-Version: 1.0
Content-Type: multipart/mixed; boundary="XBOUND"

--XBOUND
Content-Type: text/plain; charset=utf-8

In allegato la fattura.
--XBOUND
Content-Type: application/pdf
Content-Disposition: attachment; filename="fattura-123.pdf"
Content-Transfer-Encoding: base64

JVBERi0xLjQ=
--XBOUND
Content-Type: application/octet-stream
Content-Disposition: attachment; filename="setup.exe"
Content-Transfer-Encoding: base64

TVo=
--XBOUND--
`

const containerWithoutAttachments = `From: noreply@example.com
To: intake@example.com
Subject: Plain message
Content-Type: text/plain; charset=utf-8

No attachments here.
`

// writeContainer writes an .eml fixture with CRLF line endings.
func writeContainer(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	crlf := strings.ReplaceAll(body, "\n", "\r\n")
	require.NoError(t, os.WriteFile(path, []byte(crlf), 0o644))
	return path
}

func TestSenderIdentity(t *testing.T) {
	dir := t.TempDir()
	path := writeContainer(t, dir, "msg.eml", containerWithAttachments)

	u := NewUnwrapper([]string{"pdf"}, nil)
	sender, err := u.SenderIdentity(path)
	require.NoError(t, err)
	assert.Equal(t, "mariorossi", sender)
}

func TestSenderIdentityFallsBackToMailbox(t *testing.T) {
	dir := t.TempDir()
	path := writeContainer(t, dir, "msg.eml", containerWithoutAttachments)

	u := NewUnwrapper([]string{"pdf"}, nil)
	sender, err := u.SenderIdentity(path)
	require.NoError(t, err)
	assert.Equal(t, "noreply", sender)
}

func TestExtractAttachmentsFiltersByExtension(t *testing.T) {
	dir := t.TempDir()
	path := writeContainer(t, dir, "msg.eml", containerWithAttachments)

	u := NewUnwrapper([]string{"pdf"}, nil)
	saved, err := u.ExtractAttachments(path, "mariorossi", dir)
	require.NoError(t, err)

	// The .exe attachment is silently dropped, not an error.
	require.Len(t, saved, 1)
	assert.True(t, strings.HasPrefix(saved[0], "mariorossi-fattura-123-"))
	assert.True(t, strings.HasSuffix(saved[0], ".pdf"))

	data, err := os.ReadFile(filepath.Join(dir, saved[0]))
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(data))
}

func TestExtractAttachmentsEmptyContainer(t *testing.T) {
	dir := t.TempDir()
	path := writeContainer(t, dir, "msg.eml", containerWithoutAttachments)

	u := NewUnwrapper([]string{"pdf"}, nil)
	saved, err := u.ExtractAttachments(path, "noreply", dir)
	require.NoError(t, err)
	assert.Empty(t, saved)
}

func TestExtractAttachmentsUniqueNames(t *testing.T) {
	dir := t.TempDir()
	path := writeContainer(t, dir, "msg.eml", containerWithAttachments)

	u := NewUnwrapper([]string{"pdf"}, nil)
	first, err := u.ExtractAttachments(path, "p", dir)
	require.NoError(t, err)
	second, err := u.ExtractAttachments(path, "p", dir)
	require.NoError(t, err)

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.NotEqual(t, first[0], second[0], "saved names carry a unique suffix")
}

func TestMissingContainerFile(t *testing.T) {
	u := NewUnwrapper([]string{"pdf"}, nil)

	_, err := u.SenderIdentity(filepath.Join(t.TempDir(), "absent.eml"))
	assert.Error(t, err)

	_, err = u.ExtractAttachments(filepath.Join(t.TempDir(), "absent.eml"), "p", t.TempDir())
	assert.Error(t, err)
}
