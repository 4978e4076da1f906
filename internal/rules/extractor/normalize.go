package extractor

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"golang.org/x/net/html"

	pstrings "permitpulse/pkg/platform/strings"
)

// Normalize flattens an HTML (or plain text) document into its visible text with
// all whitespace runs collapsed to single spaces. Script, style and template
// bodies are skipped; noscript text is kept.
func Normalize(content string) string {
	z := html.NewTokenizer(strings.NewReader(content))
	var b strings.Builder
	skipDepth := 0
	inNoscript := false
	for {
		switch z.Next() {
		case html.ErrorToken:
			// io.EOF or a malformed tail; either way the text so far is the document.
			return pstrings.CollapseWhitespace(b.String())
		case html.StartTagToken:
			switch tagName(z) {
			case "script", "style", "template":
				skipDepth++
			case "noscript":
				inNoscript = true
			}
		case html.EndTagToken:
			switch tagName(z) {
			case "script", "style", "template":
				if skipDepth > 0 {
					skipDepth--
				}
			case "noscript":
				inNoscript = false
			}
		case html.TextToken:
			if skipDepth > 0 {
				continue
			}
			if inNoscript {
				// The tokenizer hands noscript content over as raw markup.
				b.WriteString(Normalize(string(z.Text())))
			} else {
				b.Write(z.Text())
			}
			b.WriteByte(' ')
		}
	}
}

func tagName(z *html.Tokenizer) string {
	name, _ := z.TagName()
	return string(name)
}

// Checksum is the sha256 hex digest of normalized text.
func Checksum(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
