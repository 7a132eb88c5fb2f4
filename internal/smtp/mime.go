package smtp

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/quotedprintable"
	"net/mail"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// ParsedEmail 收信器记录的邮件摘要
type ParsedEmail struct {
	Subject   string
	From      string
	To        string
	ReplyTo   string
	MessageID string
	Text      string
}

// ParseEmail 解析中继发出的单部分文本邮件：常用头部加按传输编码和字符集解码后的正文。
func ParseEmail(rawEmail []byte) (*ParsedEmail, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(rawEmail))
	if err != nil {
		return nil, fmt.Errorf("parse mail: %w", err)
	}

	parsed := &ParsedEmail{
		Subject:   decodeHeader(msg.Header.Get("Subject")),
		From:      msg.Header.Get("From"),
		To:        msg.Header.Get("To"),
		ReplyTo:   msg.Header.Get("Reply-To"),
		MessageID: msg.Header.Get("Message-Id"),
	}

	// 缺少或无法解析的 Content-Type 按 us-ascii 纯文本处理
	_, params, _ := mime.ParseMediaType(msg.Header.Get("Content-Type"))

	text, err := decodeBody(msg.Body, msg.Header.Get("Content-Transfer-Encoding"), params["charset"])
	if err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	parsed.Text = text

	return parsed, nil
}

// decodeBody 按传输编码和字符集解码正文
func decodeBody(r io.Reader, transferEncoding, charset string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(transferEncoding)) {
	case "base64":
		r = base64.NewDecoder(base64.StdEncoding, r)
	case "quoted-printable":
		r = quotedprintable.NewReader(r)
	}

	if enc := charsetEncoding(charset); enc != nil {
		r = transform.NewReader(r, enc.NewDecoder())
	}

	body, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// charsetEncoding 单字节字符集；utf-8、us-ascii 和未知字符集原样读取
func charsetEncoding(charset string) encoding.Encoding {
	switch strings.ToLower(strings.TrimSpace(charset)) {
	case "iso-8859-1", "latin1":
		return charmap.ISO8859_1
	case "iso-8859-9", "latin5":
		return charmap.ISO8859_9
	case "windows-1252":
		return charmap.Windows1252
	case "windows-1254":
		return charmap.Windows1254
	default:
		return nil
	}
}
