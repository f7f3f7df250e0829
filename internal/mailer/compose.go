package mailer

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/emersion/go-message/mail"
)

// composeMessage builds an RFC 5322 message with a plain-text body and an
// optional single file attachment, returning the raw message bytes. The
// Message-Id is supplied by the caller and doubles as the delivery
// identifier.
func composeMessage(messageID, from string, to []*mail.Address, subject, body, attachmentPath string) ([]byte, error) {
	var h mail.Header
	h.SetDate(time.Now())
	h.SetAddressList("From", []*mail.Address{{Address: from}})
	h.SetAddressList("To", to)
	h.SetSubject(subject)
	h.SetMessageID(messageID)

	var buf bytes.Buffer
	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("failed to create message writer: %w", err)
	}

	iw, err := mw.CreateInline()
	if err != nil {
		return nil, fmt.Errorf("failed to create inline part: %w", err)
	}
	var th mail.InlineHeader
	th.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	tw, err := iw.CreatePart(th)
	if err != nil {
		return nil, fmt.Errorf("failed to create text part: %w", err)
	}
	if _, err := io.WriteString(tw, body); err != nil {
		return nil, fmt.Errorf("failed to write text part: %w", err)
	}
	tw.Close()
	iw.Close()

	if attachmentPath != "" {
		if err := attachFile(mw, attachmentPath); err != nil {
			return nil, err
		}
	}

	mw.Close()
	return buf.Bytes(), nil
}

func attachFile(mw *mail.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open attachment %s: %w", path, err)
	}
	defer f.Close()

	name := filepath.Base(path)
	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	var ah mail.AttachmentHeader
	ah.SetFilename(name)
	ah.SetContentType(contentType, nil)

	aw, err := mw.CreateAttachment(ah)
	if err != nil {
		return fmt.Errorf("failed to create attachment part: %w", err)
	}
	defer aw.Close()

	if _, err := io.Copy(aw, f); err != nil {
		return fmt.Errorf("failed to write attachment %s: %w", name, err)
	}
	return nil
}
