package email

import (
	"bytes"
	"encoding/base64"
	"errors"
	"strings"
	"unicode/utf8"

	"gopkg.in/gomail.v2"
)

// encodedWordChunk keeps each encoded word within the 75 byte limit of RFC 2047.
const encodedWordChunk = 45

// Build renders msg as an RFC 822 message from sender.
func Build(sender string, msg Message) ([]byte, error) {
	if strings.TrimSpace(sender) == "" {
		return nil, errors.New("missing sender address")
	}
	if strings.TrimSpace(msg.To) == "" {
		return nil, errors.New("missing recipient address")
	}

	m := gomail.NewMessage(gomail.SetCharset("UTF-8"), gomail.SetEncoding(gomail.Base64))
	if name := strings.TrimSpace(msg.FromName); name != "" {
		m.SetHeader("From", m.FormatAddress(sender, name))
	} else {
		m.SetHeader("From", sender)
	}
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", EncodeSubject(msg.Subject))
	m.SetBody("text/html", msg.HTML)

	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode returns the base64url, unpadded form of the built message.
func Encode(sender string, msg Message) (string, error) {
	raw, err := Build(sender, msg)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// EncodeSubject always emits UTF-8 B-encoded words, split on rune boundaries.
func EncodeSubject(subject string) string {
	if subject == "" {
		return ""
	}
	var words []string
	for len(subject) > 0 {
		n := len(subject)
		if n > encodedWordChunk {
			n = encodedWordChunk
			for n > 0 && !utf8.RuneStart(subject[n]) {
				n--
			}
		}
		words = append(words, "=?UTF-8?B?"+base64.StdEncoding.EncodeToString([]byte(subject[:n]))+"?=")
		subject = subject[n:]
	}
	return strings.Join(words, " ")
}
