// Package parser reads and writes the mirror file format: YAML frontmatter
// carrying title, publish time and tags, followed by the markdown source.
package parser

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/starford/folio/internal/models"
)

const delim = "---"

// Result holds the output of parsing a mirror file.
type Result struct {
	Frontmatter map[string]interface{}
	Title       string
	PublishTime string
	Tags        []string
	Source      string
}

// Parse splits data into frontmatter fields and the article source. Without
// valid frontmatter the whole content is the source and the title falls back
// to the first H1 heading.
func Parse(data []byte) (*Result, error) {
	fm, body := splitFrontmatter(data)
	pub, err := publishTime(fm)
	if err != nil {
		return nil, err
	}
	return &Result{
		Frontmatter: fm,
		Title:       deriveTitle(fm, body),
		PublishTime: pub,
		Tags:        extractTags(fm),
		Source:      body,
	}, nil
}

type frontmatter struct {
	Title string   `yaml:"title"`
	Date  string   `yaml:"date,omitempty"`
	Tags  []string `yaml:"tags"`
}

// Format renders an article as a mirror file. Parse(Format(...)) returns the
// same title, publish time, tags and source.
func Format(title, publishTime string, tags []string, source string) ([]byte, error) {
	if tags == nil {
		tags = []string{}
	}
	head, err := yaml.Marshal(frontmatter{Title: title, Date: publishTime, Tags: tags})
	if err != nil {
		return nil, fmt.Errorf("parser: encode frontmatter: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString(delim + "\n")
	buf.Write(head)
	buf.WriteString(delim + "\n")
	buf.WriteString(source)
	return buf.Bytes(), nil
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the body. Only the line break that ends the closing delimiter is
// dropped, so the body is kept byte for byte.
func splitFrontmatter(data []byte) (map[string]interface{}, string) {
	if !bytes.HasPrefix(data, []byte(delim+"\n")) && !bytes.HasPrefix(data, []byte(delim+"\r\n")) {
		return nil, string(data)
	}
	rest := data[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		return nil, string(data)
	}
	yamlBlock := rest[:idx]
	after := rest[idx+1+len(delim):]
	switch {
	case bytes.HasPrefix(after, []byte("\r\n")):
		after = after[2:]
	case bytes.HasPrefix(after, []byte("\n")):
		after = after[1:]
	case len(after) > 0:
		// "---" followed by more text on the same line is not a delimiter.
		return nil, string(data)
	}

	var fm map[string]interface{}
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		return nil, string(data)
	}
	if fm == nil {
		fm = map[string]interface{}{}
	}
	return fm, string(after)
}

func publishTime(fm map[string]interface{}) (string, error) {
	raw, ok := fm["date"]
	if !ok || raw == nil {
		return "", nil
	}
	switch v := raw.(type) {
	case time.Time:
		return v.UTC().Format(models.PublishTimeLayout), nil
	case string:
		return strings.TrimSpace(v), nil
	default:
		return "", fmt.Errorf("parser: date: unexpected %T", raw)
	}
}

// extractTags collects the frontmatter "tags" list, dropping blanks and duplicates.
func extractTags(fm map[string]interface{}) []string {
	out := []string{}
	seen := make(map[string]struct{})
	items, _ := fm["tags"].([]interface{})
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// deriveTitle returns the frontmatter "title" if present, otherwise the first
// H1 heading, otherwise empty string.
func deriveTitle(fm map[string]interface{}, body string) string {
	if t, ok := fm["title"].(string); ok && t != "" {
		return t
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}
