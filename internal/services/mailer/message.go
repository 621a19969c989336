package mailer

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"mime"
	"mime/multipart"
	"net/mail"
	"net/textproto"
	"strings"
	"time"
)

// Attachment is a file sent along with a message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Message is an outgoing mail.
type Message struct {
	To          string
	Subject     string
	Body        string
	HTML        bool
	Attachments []Attachment
}

func (m Message) contentType() string {
	if m.HTML {
		return `text/html; charset="UTF-8"`
	}
	return `text/plain; charset="UTF-8"`
}

// compose renders m as an RFC 5322 message. Messages with attachments are
// sent as multipart/mixed.
func compose(from mail.Address, m Message, now time.Time) ([]byte, error) {
	var buf bytes.Buffer
	headers := []string{
		"From: " + from.String(),
		"To: " + m.To,
		"Subject: " + mime.QEncoding.Encode("utf-8", m.Subject),
		"Date: " + now.Format(time.RFC1123Z),
		"MIME-Version: 1.0",
	}

	if len(m.Attachments) == 0 {
		headers = append(headers, "Content-Type: "+m.contentType(), "")
		buf.WriteString(strings.Join(headers, "\r\n"))
		buf.WriteString("\r\n")
		buf.WriteString(m.Body)
		return buf.Bytes(), nil
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	headers = append(headers, fmt.Sprintf("Content-Type: multipart/mixed; boundary=%q", mw.Boundary()), "")
	buf.WriteString(strings.Join(headers, "\r\n"))
	buf.WriteString("\r\n")

	textPart, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {m.contentType()}})
	if err != nil {
		return nil, err
	}
	if _, err = textPart.Write([]byte(m.Body)); err != nil {
		return nil, err
	}

	for _, a := range m.Attachments {
		ct := a.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		part, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {ct},
			"Content-Transfer-Encoding": {"base64"},
			"Content-Disposition":       {mime.FormatMediaType("attachment", map[string]string{"filename": a.Filename})},
		})
		if err != nil {
			return nil, err
		}
		if err = writeBase64Lines(part, a.Data); err != nil {
			return nil, err
		}
	}
	if err = mw.Close(); err != nil {
		return nil, err
	}

	buf.Write(body.Bytes())
	return buf.Bytes(), nil
}

// writeBase64Lines writes data base64-encoded in 76 character lines.
func writeBase64Lines(w interface{ Write([]byte) (int, error) }, data []byte) error {
	const lineLen = 76
	encoded := base64.StdEncoding.EncodeToString(data)
	for len(encoded) > 0 {
		n := min(lineLen, len(encoded))
		if _, err := w.Write([]byte(encoded[:n] + "\r\n")); err != nil {
			return err
		}
		encoded = encoded[n:]
	}
	return nil
}
