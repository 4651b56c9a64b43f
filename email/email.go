// Package email parses an inbound MIME message and extracts its attachment
// parts into a staging directory.
package email

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

// Message is a parsed view over a fetched email. The body is consumed once,
// during ExtractAttachments.
type Message struct {
	Header mail.Header
	reader *mail.Reader
}

// Parse reads the message with permissive rules: an unknown charset is
// tolerated so that headers and body structure remain recoverable from
// slightly malformed mail.
func Parse(content string) (*Message, error) {
	reader, err := mail.CreateReader(strings.NewReader(content))
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("parse message: %w", err)
	}
	if reader == nil {
		return nil, fmt.Errorf("parse message: no readable body structure")
	}
	return &Message{Header: reader.Header, reader: reader}, nil
}

// ExtractAttachments writes every attachment part with a usable filename into
// dir and returns the filenames written, in part order. A later part with the
// same filename overwrites an earlier one. Messages without attachment parts
// yield an empty slice, not an error.
func (m *Message) ExtractAttachments(dir string, logger *slog.Logger) ([]string, error) {
	var written []string

	for {
		part, err := m.reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if message.IsUnknownCharset(err) {
				continue
			}
			return written, fmt.Errorf("next part: %w", err)
		}

		header, ok := part.Header.(*mail.AttachmentHeader)
		if !ok {
			continue
		}

		filename, err := header.Filename()
		if err != nil || filename == "" {
			continue
		}

		safe, ok := sanitizeFilename(filename)
		if !ok {
			if logger != nil {
				logger.Warn("skipping attachment with unsafe filename", "filename", filename)
			}
			continue
		}

		payload, err := io.ReadAll(part.Body)
		if err != nil {
			return written, fmt.Errorf("read attachment %s: %w", safe, err)
		}

		path := filepath.Join(dir, safe)
		if err := os.WriteFile(path, payload, 0o644); err != nil {
			return written, fmt.Errorf("write attachment %s: %w", safe, err)
		}
		written = append(written, safe)
	}

	return written, nil
}

// sanitizeFilename reduces an attachment filename from untrusted mail content
// to a bare base name. Names that collapse to nothing are rejected.
func sanitizeFilename(name string) (string, bool) {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	switch name {
	case "", ".", "..", "/":
		return "", false
	}
	return name, true
}
