// Package jsontext cleans up JSON and short commands typed into chat.
package jsontext

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var (
	fencedBlock = regexp.MustCompile("(?s)```.*?```")
	inlineCode  = regexp.MustCompile("`([^`]*)`")
)

// StripCodeFence unwraps text pasted inside a ``` fence, with or without a
// language tag, and returns the trimmed body.
func StripCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	body := strings.TrimPrefix(trimmed, "```")
	body = strings.TrimSuffix(body, "```")
	if newline := strings.IndexByte(body, '\n'); newline >= 0 {
		tag := strings.TrimSpace(body[:newline])
		if tag == "" || isLanguageTag(tag) {
			body = body[newline+1:]
		}
	}
	return strings.TrimSpace(body)
}

func isLanguageTag(tag string) bool {
	for _, r := range tag {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '+' {
			return false
		}
	}
	return true
}

// CleanMessage drops fenced blocks, unwraps inline code, joins lines and
// trims ASCII and ideographic whitespace.
func CleanMessage(text string) string {
	cleaned := fencedBlock.ReplaceAllString(text, "")
	cleaned = inlineCode.ReplaceAllString(cleaned, "$1")
	cleaned = strings.ReplaceAll(cleaned, "\r\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\n", " ")
	return strings.TrimFunc(cleaned, func(r rune) bool {
		return unicode.IsSpace(r) || r == '　'
	})
}

// FoldFullWidth maps full-width ASCII variants (U+FF01..U+FF5E) to ASCII.
func FoldFullWidth(text string) string {
	return strings.Map(func(r rune) rune {
		if r >= '！' && r <= '～' {
			return r - 0xFEE0
		}
		return r
	}, text)
}

// Int decodes a JSON number or numeric string, truncating any fraction.
type Int int

func (i *Int) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		raw = strings.TrimSpace(text)
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return fmt.Errorf("not a number: %s", string(data))
	}
	*i = Int(math.Trunc(value))
	return nil
}

// Text renders a JSON string or number as trimmed text; anything else is empty.
func Text(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return strings.TrimSpace(text)
	}
	var number float64
	if err := json.Unmarshal(raw, &number); err == nil {
		return strconv.FormatFloat(number, 'f', -1, 64)
	}
	return ""
}
