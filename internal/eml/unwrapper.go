// Package eml extracts qualifying attachments from .eml mail-container
// files using go-message's mail reader.
package eml

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"

	"github.com/lcoppola/dropforward/internal/logging"
)

// Unwrapper pulls attachments out of mail-container files, keeping only
// those whose extension is in the accepted set. Attachments outside the set
// are silently dropped.
type Unwrapper struct {
	accepted []string
	logger   *slog.Logger
}

// NewUnwrapper returns an Unwrapper that keeps the given lowercase
// extensions (without leading dot).
func NewUnwrapper(accepted []string, logger *slog.Logger) *Unwrapper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Unwrapper{
		accepted: accepted,
		logger:   logging.WithComponent(logger, "eml"),
	}
}

// SenderIdentity returns the normalized sender display name of the message
// at path: lowercased with spaces removed, for use as a filename prefix.
// When the From header carries no display name the mailbox part of the
// address is used instead.
func (u *Unwrapper) SenderIdentity(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open container %s: %w", path, err)
	}
	defer f.Close()

	mr, err := mail.CreateReader(f)
	if err != nil {
		return "", fmt.Errorf("failed to parse container %s: %w", path, err)
	}
	defer mr.Close()

	addrs, err := mr.Header.AddressList("From")
	if err != nil || len(addrs) == 0 {
		return "", fmt.Errorf("container %s has no usable From header", path)
	}

	name := addrs[0].Name
	if name == "" {
		name, _, _ = strings.Cut(addrs[0].Address, "@")
	}
	return strings.ReplaceAll(strings.ToLower(name), " ", ""), nil
}

// ExtractAttachments parses the message at path and saves every accepted
// attachment under destDir, naming each one
// "<prefix>-<original base>-<unique suffix>.<ext>". The returned slice holds
// the saved base filenames and may be empty when no attachment qualifies.
func (u *Unwrapper) ExtractAttachments(path, prefix, destDir string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open container %s: %w", path, err)
	}
	defer f.Close()

	mr, err := mail.CreateReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse container %s: %w", path, err)
	}
	defer mr.Close()

	var saved []string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read container part: %w", err)
		}

		header, ok := part.Header.(*mail.AttachmentHeader)
		if !ok {
			continue
		}

		filename, err := header.Filename()
		if err != nil || filename == "" {
			continue
		}

		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
		if !u.accepts(ext) {
			u.logger.Debug("dropping attachment outside accepted set",
				logging.Entry(filename))
			continue
		}

		base := strings.TrimSuffix(filename, filepath.Ext(filename))
		name := fmt.Sprintf("%s-%s-%s.%s", prefix, base, uuid.NewString()[:8], ext)
		dest := filepath.Join(destDir, name)

		out, err := os.Create(dest)
		if err != nil {
			return nil, fmt.Errorf("failed to create attachment file %s: %w", dest, err)
		}
		if _, err := io.Copy(out, part.Body); err != nil {
			out.Close()
			os.Remove(dest)
			return nil, fmt.Errorf("failed to write attachment file %s: %w", dest, err)
		}
		if err := out.Close(); err != nil {
			os.Remove(dest)
			return nil, fmt.Errorf("failed to close attachment file %s: %w", dest, err)
		}

		saved = append(saved, name)
	}

	return saved, nil
}

func (u *Unwrapper) accepts(ext string) bool {
	for _, a := range u.accepted {
		if a == ext {
			return true
		}
	}
	return false
}
