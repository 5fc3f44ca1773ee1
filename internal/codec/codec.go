// Package codec embeds an article's canonical source inside its rendered HTML
// so the stored file carries both.
package codec

import (
	"encoding/base64"
	"fmt"
	"regexp"

	"github.com/starford/folio/internal/apperr"
)

var sourceRe = regexp.MustCompile(`<!-- SOURCE<(.*?)> -->`)

// Embed prefixes html with a comment holding the base64-encoded source.
func Embed(source, html string) string {
	return "<!-- SOURCE<" + base64.StdEncoding.EncodeToString([]byte(source)) + "> -->" + html
}

// Extract returns the source embedded in the first SOURCE comment of html.
func Extract(html []byte) (string, error) {
	m := sourceRe.FindSubmatch(html)
	if m == nil {
		return "", apperr.ErrSourceExtraction
	}
	raw, err := base64.StdEncoding.DecodeString(string(m[1]))
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperr.ErrSourceExtraction, err)
	}
	return string(raw), nil
}
