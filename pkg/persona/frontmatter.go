package persona

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const frontMatterDelimiter = "---"

// Frontmatter field names.
const (
	FieldArchetype = "archetype"
	FieldCreated   = "created"
	FieldCategory  = "category"
	FieldKeywords  = "keywords"
)

// DateLayout is the only accepted format for the created field.
const DateLayout = "2006-01-02"

// Frontmatter holds the known fields of a persona document header. Each
// field is either absent, present with a usable value, or present but
// invalid (wrong YAML shape); Has and Problem tell them apart.
type Frontmatter struct {
	Archetype string
	Created   string
	Category  string
	Keywords  []string

	// Err is set when the header exists but is not valid YAML.
	Err error

	present map[string]bool
	invalid map[string]string
}

// Has reports whether the field is present with a non-empty value.
func (f Frontmatter) Has(field string) bool {
	return f.present[field]
}

// Problem returns why a present field could not be used.
func (f Frontmatter) Problem(field string) (string, bool) {
	msg, ok := f.invalid[field]
	return msg, ok
}

// CreatedDate parses the created field.
func (f Frontmatter) CreatedDate() (time.Time, bool) {
	if f.Created == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(DateLayout, f.Created)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ParseFrontmatter splits a persona document into its header and body.
// found is false when the document does not open with a delimited block,
// in which case body is the whole content.
func ParseFrontmatter(content string) (fm Frontmatter, body string, found bool) {
	fm = Frontmatter{present: map[string]bool{}, invalid: map[string]string{}}

	s := strings.ReplaceAll(content, "\r\n", "\n")
	if !strings.HasPrefix(s, frontMatterDelimiter+"\n") {
		return fm, content, false
	}
	rest := s[len(frontMatterDelimiter):]
	idx := strings.Index(rest, "\n"+frontMatterDelimiter)
	if idx == -1 {
		return fm, content, false
	}
	yamlBlock := rest[:idx]
	bodyRaw := rest[idx+len("\n"+frontMatterDelimiter):]
	// The closing delimiter must end its line.
	if bodyRaw != "" && !strings.HasPrefix(bodyRaw, "\n") {
		return fm, content, false
	}
	body = strings.TrimPrefix(bodyRaw, "\n")

	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(yamlBlock), &doc); err != nil {
		fm.Err = fmt.Errorf("persona: front-matter parse error: %w", err)
		return fm, body, true
	}
	if len(doc.Content) == 0 {
		return fm, body, true
	}
	mapping := doc.Content[0]
	if mapping.Kind != yaml.MappingNode {
		fm.Err = fmt.Errorf("persona: front-matter is not a mapping")
		return fm, body, true
	}

	for i := 0; i+1 < len(mapping.Content); i += 2 {
		key, value := mapping.Content[i].Value, mapping.Content[i+1]
		switch key {
		case FieldArchetype:
			fm.Archetype = fm.scalar(key, value)
		case FieldCreated:
			fm.Created = fm.scalar(key, value)
		case FieldCategory:
			fm.Category = fm.scalar(key, value)
		case FieldKeywords:
			fm.Keywords = fm.list(key, value)
		}
	}
	return fm, body, true
}

func (f *Frontmatter) scalar(key string, node *yaml.Node) string {
	if node.Kind != yaml.ScalarNode {
		f.invalid[key] = fmt.Sprintf("%s must be a single value", key)
		return ""
	}
	if node.Tag == "!!null" {
		return ""
	}
	v := strings.TrimSpace(node.Value)
	if v != "" {
		f.present[key] = true
	}
	return v
}

func (f *Frontmatter) list(key string, node *yaml.Node) []string {
	switch node.Kind {
	case yaml.SequenceNode:
		var out []string
		for _, item := range node.Content {
			if item.Kind != yaml.ScalarNode {
				f.invalid[key] = fmt.Sprintf("%s entries must be plain values", key)
				continue
			}
			if v := strings.TrimSpace(item.Value); v != "" {
				out = append(out, v)
			}
		}
		if len(out) > 0 {
			f.present[key] = true
		}
		return out
	case yaml.ScalarNode:
		if node.Tag == "!!null" || strings.TrimSpace(node.Value) == "" {
			return nil
		}
		f.invalid[key] = fmt.Sprintf("%s must be a list", key)
		return nil
	default:
		f.invalid[key] = fmt.Sprintf("%s must be a list", key)
		return nil
	}
}
