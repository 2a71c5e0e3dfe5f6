package compliance

import (
	"embed"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/david/grant-assistant/internal/models"
)

//go:embed config/rulebook.yaml
var rulebookFS embed.FS

// RuleBook holds the default section requirements and the keyword sets that
// satisfy each required element. It is read-only after loading.
type RuleBook struct {
	Sections map[models.SectionKind]models.Requirements `yaml:"sections"`
	Elements map[string][]string                        `yaml:"elements"`
}

var (
	defaultOnce sync.Once
	defaultBook *RuleBook
	defaultErr  error
)

// DefaultRuleBook returns the embedded rule book.
func DefaultRuleBook() (*RuleBook, error) {
	defaultOnce.Do(func() {
		data, err := rulebookFS.ReadFile("config/rulebook.yaml")
		if err != nil {
			defaultErr = err
			return
		}
		defaultBook, defaultErr = parseRuleBook(data)
	})
	return defaultBook, defaultErr
}

// LoadRuleBook reads a rule book from path; empty path means the default.
// Sections and elements in the file are layered over the defaults.
func LoadRuleBook(path string) (*RuleBook, error) {
	base, err := DefaultRuleBook()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return base, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rule book: %w", err)
	}
	override, err := parseRuleBook(data)
	if err != nil {
		return nil, err
	}

	merged := &RuleBook{
		Sections: make(map[models.SectionKind]models.Requirements),
		Elements: make(map[string][]string),
	}
	for k, v := range base.Sections {
		merged.Sections[k] = v
	}
	for k, v := range base.Elements {
		merged.Elements[k] = v
	}
	for k, v := range override.Sections {
		merged.Sections[k] = v
	}
	for k, v := range override.Elements {
		merged.Elements[k] = v
	}
	return merged, nil
}

func parseRuleBook(data []byte) (*RuleBook, error) {
	var rb RuleBook
	if err := yaml.Unmarshal(data, &rb); err != nil {
		return nil, fmt.Errorf("parsing rule book: %w", err)
	}
	for kind, req := range rb.Sections {
		if !kind.Valid() {
			return nil, fmt.Errorf("rule book: unknown section %q", kind)
		}
		if req.MaxWords < 0 {
			return nil, fmt.Errorf("rule book: %s max_words must be non-negative", kind)
		}
	}
	normalized := make(map[string][]string, len(rb.Elements))
	for el, words := range rb.Elements {
		normalized[normalizeElement(el)] = words
	}
	rb.Elements = normalized
	return &rb, nil
}

// Requirements returns the default requirements for kind.
func (rb *RuleBook) Requirements(kind models.SectionKind) models.Requirements {
	req := rb.Sections[kind]
	req.RequiredElements = append([]string(nil), req.RequiredElements...)
	return req
}

// Keywords returns the lower-cased keyword set satisfying element. Elements
// without an entry match on their own text and its "/"-separated parts.
func (rb *RuleBook) Keywords(element string) []string {
	key := normalizeElement(element)
	if words, ok := rb.Elements[key]; ok {
		out := make([]string, 0, len(words))
		for _, w := range words {
			out = append(out, strings.ToLower(w))
		}
		return out
	}

	out := []string{key}
	if strings.Contains(key, "/") {
		for _, part := range strings.Split(key, "/") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func normalizeElement(el string) string {
	el = strings.ReplaceAll(el, "_", " ")
	return strings.ToLower(strings.Join(strings.Fields(el), " "))
}
