package service

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
	"unicode/utf8"
)

// NormalizeText cleans raw text before chunking: invalid UTF-8 and control
// characters are dropped, runs of spaces and tabs collapse to one space,
// and runs of blank lines collapse to a single paragraph break.
func NormalizeText(text string) string {
	if text == "" {
		return ""
	}

	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "")
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var b strings.Builder
	b.Grow(len(text))
	pendingSpace := false
	newlines := 0
	for _, r := range text {
		switch {
		case r == '\n':
			newlines++
			pendingSpace = false
		case r == ' ' || r == '\t':
			pendingSpace = true
		case unicode.IsControl(r):
			// dropped
		default:
			if newlines > 0 {
				if b.Len() > 0 {
					if newlines > 1 {
						b.WriteString("\n\n")
					} else {
						b.WriteByte('\n')
					}
				}
				newlines = 0
				pendingSpace = false
			}
			if pendingSpace {
				if b.Len() > 0 {
					b.WriteByte(' ')
				}
				pendingSpace = false
			}
			b.WriteRune(r)
		}
	}

	return strings.TrimSpace(b.String())
}

// ContentHash returns the dedup hash for a chunk: sha256 over the trimmed,
// lower-cased chunk text. Identical content always hashes identically, so
// re-ingestion of unchanged chunks never reaches the embedding provider.
func ContentHash(chunkText string) string {
	canonical := strings.ToLower(strings.TrimSpace(chunkText))
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}
