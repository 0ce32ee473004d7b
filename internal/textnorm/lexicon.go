package textnorm

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default_lexicon.yaml
var defaultLexiconYAML []byte

// LexiconFile is the on-disk shape of a lexicon.
type LexiconFile struct {
	// StopWords maps a language code to words dropped from token streams.
	StopWords map[string][]string `yaml:"stop_words"`
	// Synonyms maps a token to its single replacement. Applied once, never chained.
	Synonyms map[string]string `yaml:"synonyms"`
	// Boosts add token bundles when a pattern matches the normalized query.
	Boosts []BoostRule `yaml:"boosts"`
}

// BoostRule injects Tokens into an expanded query when Pattern matches.
type BoostRule struct {
	Name    string   `yaml:"name"`
	Pattern string   `yaml:"pattern"`
	Tokens  []string `yaml:"tokens"`
}

type boost struct {
	name   string
	re     *regexp.Regexp
	tokens []string
}

// Lexicon holds stop-words, synonyms and query boosts. It is immutable after construction.
type Lexicon struct {
	stop     map[string]struct{}
	synonyms map[string]string
	boosts   []boost
}

// NewLexicon compiles a lexicon file. Stop-words of all languages are merged because
// queries are tokenized before their language is known.
func NewLexicon(f LexiconFile) (*Lexicon, error) {
	lex := &Lexicon{
		stop:     make(map[string]struct{}),
		synonyms: make(map[string]string, len(f.Synonyms)),
	}
	for _, words := range f.StopWords {
		for _, w := range words {
			if w = Normalize(w); w != "" {
				lex.stop[w] = struct{}{}
			}
		}
	}
	for from, to := range f.Synonyms {
		from = strings.ToLower(strings.TrimSpace(from))
		to = strings.ToLower(strings.TrimSpace(to))
		if from == "" || to == "" {
			continue
		}
		lex.synonyms[from] = to
	}
	for i, rule := range f.Boosts {
		re, err := regexp.Compile(rule.Pattern)
		if err != nil {
			return nil, fmt.Errorf("boost %d (%s): %w", i, rule.Name, err)
		}
		lex.boosts = append(lex.boosts, boost{name: rule.Name, re: re, tokens: rule.Tokens})
	}
	return lex, nil
}

// DefaultLexicon returns the embedded fi/sv/en lexicon.
func DefaultLexicon() *Lexicon {
	lex, err := ParseLexicon(defaultLexiconYAML)
	if err != nil {
		panic(fmt.Sprintf("textnorm: embedded lexicon: %v", err))
	}
	return lex
}

// ParseLexicon parses and compiles lexicon YAML.
func ParseLexicon(data []byte) (*Lexicon, error) {
	var f LexiconFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse lexicon: %w", err)
	}
	return NewLexicon(f)
}

// LoadLexicon reads a lexicon file. An empty path yields the default lexicon.
func LoadLexicon(path string) (*Lexicon, error) {
	if path == "" {
		return DefaultLexicon(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lexicon: %w", err)
	}
	return ParseLexicon(data)
}

// Tokens normalizes text, drops stop-words and maps each surviving token through the
// synonym table once.
func (l *Lexicon) Tokens(text string) []string {
	words := strings.Fields(Normalize(text))
	out := make([]string, 0, len(words))
	for _, w := range words {
		if l.IsStopWord(w) {
			continue
		}
		if syn, ok := l.synonyms[w]; ok {
			w = syn
		}
		out = append(out, w)
	}
	return out
}

// TokenSet returns the distinct tokens of text.
func (l *Lexicon) TokenSet(text string) map[string]struct{} {
	toks := l.Tokens(text)
	set := make(map[string]struct{}, len(toks))
	for _, t := range toks {
		set[t] = struct{}{}
	}
	return set
}

// IsStopWord reports whether w is a stop-word in any language.
func (l *Lexicon) IsStopWord(w string) bool {
	_, ok := l.stop[w]
	return ok
}

// Synonym returns the one-hop synonym of token.
func (l *Lexicon) Synonym(token string) (string, bool) {
	s, ok := l.synonyms[token]
	return s, ok
}

// BoostTokens returns the token bundles of every boost rule matching the normalized query.
func (l *Lexicon) BoostTokens(normalizedQuery string) []string {
	var out []string
	for _, b := range l.boosts {
		if b.re.MatchString(normalizedQuery) {
			out = append(out, b.tokens...)
		}
	}
	return out
}

// StopWords returns the merged stop-word list, sorted.
func (l *Lexicon) StopWords() []string {
	out := make([]string, 0, len(l.stop))
	for w := range l.stop {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}
