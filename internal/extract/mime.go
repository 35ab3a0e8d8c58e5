package extract

import (
	"bytes"
	"encoding/base64"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"net/textproto"
	"strings"
)

const maxMultipartDepth = 5

var wordDecoder = &mime.WordDecoder{}

// DecodeHeader decodes an RFC 2047 encoded header value
func DecodeHeader(value string) string {
	decoded, err := wordDecoder.DecodeHeader(value)
	if err != nil {
		return value
	}
	return decoded
}

// MessageText returns the text/plain content of a parsed message.
// Nested multiparts are walked; attachments and other parts are skipped.
func MessageText(msg *mail.Message) (string, error) {
	var out bytes.Buffer
	if err := collectText(&out, textproto.MIMEHeader(msg.Header), msg.Body, 0); err != nil {
		return "", err
	}
	return strings.TrimSpace(out.String()), nil
}

func collectText(out *bytes.Buffer, header textproto.MIMEHeader, body io.Reader, depth int) error {
	contentType := header.Get("Content-Type")
	if contentType == "" {
		contentType = "text/plain"
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		// unparsable type, read the body as text
		mediaType = "text/plain"
	}

	switch {
	case strings.HasPrefix(mediaType, "multipart/"):
		boundary, ok := params["boundary"]
		if !ok || depth >= maxMultipartDepth {
			return nil
		}
		mr := multipart.NewReader(body, boundary)
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				// keep what was collected so far
				return nil
			}
			if isAttachment(part.Header) {
				continue
			}
			if err := collectText(out, part.Header, part, depth+1); err != nil {
				return err
			}
		}
	case mediaType == "text/plain":
		data, err := io.ReadAll(decodeTransfer(header.Get("Content-Transfer-Encoding"), body))
		if err != nil {
			return err
		}
		if out.Len() > 0 {
			out.WriteString("\n")
		}
		out.Write(data)
	}
	return nil
}

func decodeTransfer(encoding string, body io.Reader) io.Reader {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, body)
	case "quoted-printable":
		return quotedprintable.NewReader(body)
	default:
		return body
	}
}

func isAttachment(header textproto.MIMEHeader) bool {
	disposition, _, err := mime.ParseMediaType(header.Get("Content-Disposition"))
	return err == nil && disposition == "attachment"
}
