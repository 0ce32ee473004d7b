package engine

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kotileipomo/faq-engine/internal/resolvers"
	"github.com/kotileipomo/faq-engine/internal/retrieval"
	"github.com/kotileipomo/faq-engine/internal/textnorm"
)

//go:embed default_rules.yaml
var defaultRulesYAML []byte

// Rule reply keys.
const (
	replyGreeting     = "greeting"
	replyThanks       = "thanks"
	replyCapabilities = "capabilities"
	replyFallback     = "fallback"
	replyEmptyAnswer  = "empty_answer"
)

// Topic narrows retrieval candidates for queries about one subject.
type Topic struct {
	Name     string   `yaml:"name"`
	Tokens   []string `yaml:"tokens"`
	Phrases  []string `yaml:"phrases"`
	Patterns []string `yaml:"patterns"`
	Keep     []string `yaml:"keep"`

	patterns []*regexp.Regexp
}

// Rules holds the conversational fast paths and fallback texts.
type Rules struct {
	Greetings    []string                     `yaml:"greetings"`
	Thanks       []string                     `yaml:"thanks"`
	Capabilities []string                     `yaml:"capabilities"`
	Replies      map[string]map[string]string `yaml:"replies"`
	Topics       []Topic                      `yaml:"topics"`
}

// DefaultRules returns the embedded rules.
func DefaultRules() *Rules {
	r, err := ParseRules(defaultRulesYAML)
	if err != nil {
		panic(fmt.Sprintf("engine: embedded rules: %v", err))
	}
	return r
}

// ParseRules parses rules from YAML and compiles topic patterns.
func ParseRules(data []byte) (*Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	for i := range r.Topics {
		t := &r.Topics[i]
		for _, p := range t.Patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				return nil, fmt.Errorf("topic %s: pattern %q: %w", t.Name, p, err)
			}
			t.patterns = append(t.patterns, re)
		}
	}
	return &r, nil
}

// LoadRules reads rules from a YAML file.
func LoadRules(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules %s: %w", path, err)
	}
	return ParseRules(data)
}

// Reply returns the reply text for key in lang, falling back to English. {query} is
// replaced with query.
func (r *Rules) Reply(key, lang, query string) string {
	m := r.Replies[key]
	s := m[lang]
	if s == "" {
		s = m[resolvers.LangEN]
	}
	return strings.ReplaceAll(s, "{query}", query)
}

// Match returns the fast-path reply for greetings, thanks and capability questions.
// A greeting must be the whole query or its first word; the other phrases must appear
// as whole words.
func (r *Rules) Match(query, lang string) (string, bool) {
	text := textnorm.Normalize(query)
	if text == "" {
		return "", false
	}
	for _, g := range r.Greetings {
		if text == g || strings.HasPrefix(text, g+" ") {
			return r.Reply(replyGreeting, lang, query), true
		}
	}
	padded := " " + text + " "
	for _, p := range r.Thanks {
		if strings.Contains(padded, " "+p+" ") {
			return r.Reply(replyThanks, lang, query), true
		}
	}
	for _, p := range r.Capabilities {
		if strings.Contains(padded, " "+p+" ") {
			return r.Reply(replyCapabilities, lang, query), true
		}
	}
	return "", false
}

// Topic returns the first topic the query is about.
func (r *Rules) Topic(query string) (*Topic, bool) {
	text := textnorm.Normalize(query)
	tokens := make(map[string]struct{})
	for _, w := range strings.Fields(text) {
		tokens[w] = struct{}{}
	}
	for i := range r.Topics {
		if r.Topics[i].matches(text, tokens) {
			return &r.Topics[i], true
		}
	}
	return nil, false
}

func (t *Topic) matches(text string, tokens map[string]struct{}) bool {
	for _, tok := range t.Tokens {
		if _, ok := tokens[tok]; ok {
			return true
		}
	}
	for _, p := range t.Phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	for _, re := range t.patterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// FilterTopic keeps candidates whose question or answer mentions a keep keyword of the
// query's topic. With no topic, or when nothing would be kept, cands is returned as is.
func (r *Rules) FilterTopic(query string, cands []retrieval.Candidate) []retrieval.Candidate {
	topic, ok := r.Topic(query)
	if !ok {
		return cands
	}
	var out []retrieval.Candidate
	for _, c := range cands {
		text := textnorm.Normalize(c.Entry.Question + " " + c.Entry.Answer)
		for _, kw := range topic.Keep {
			if strings.Contains(text, kw) {
				out = append(out, c)
				break
			}
		}
	}
	if len(out) == 0 {
		return cands
	}
	return out
}
