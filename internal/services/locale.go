package services

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/ashmitsharp/finlens-api/internal/models"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

//go:embed locales.yaml
var localeData []byte

// Separators describes how a locale writes numbers
type Separators struct {
	Decimal   string `yaml:"decimal"`
	Thousands string `yaml:"thousands"`
}

type categoryKeywords struct {
	Category string   `yaml:"category"`
	Priority int      `yaml:"priority"`
	Keywords []string `yaml:"keywords"`
}

type languageTable struct {
	StatementTypes map[models.StatementType][]string `yaml:"statement_types"`
	Categories     []categoryKeywords                `yaml:"categories"`
	Totals         []string                          `yaml:"totals"`
	Subtotals      []string                          `yaml:"subtotals"`
	Headers        map[string][]string               `yaml:"headers"`
	Months         map[string]int                    `yaml:"months"`
}

type localeFile struct {
	Separators     map[string]Separators    `yaml:"separators"`
	CurrencyTokens []string                 `yaml:"currency_tokens"`
	Languages      map[string]languageTable `yaml:"languages"`
}

// keyword is a folded phrase with the tag it resolves to
type keyword struct {
	phrase   string
	tag      string
	priority int
	weight   int
}

// LocaleTables holds the keyword data of every supported language, folded and
// merged so mixed-language sheets classify consistently.
type LocaleTables struct {
	separators     map[string]Separators
	currencyTokens []string
	statementTypes []keyword
	categories     []keyword // Sorted by priority desc, then phrase length desc
	totals         []keyword
	subtotals      []keyword
	headers        []keyword
	months         map[string]int
}

var defaultTables = mustLoadTables(localeData)

// DefaultLocaleTables returns the tables embedded in the binary
func DefaultLocaleTables() *LocaleTables {
	return defaultTables
}

func mustLoadTables(data []byte) *LocaleTables {
	t, err := LoadLocaleTables(data)
	if err != nil {
		panic(err)
	}
	return t
}

// LoadLocaleTables parses locale tables from YAML
func LoadLocaleTables(data []byte) (*LocaleTables, error) {
	var f localeFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse locale tables: %w", err)
	}
	if _, ok := f.Separators["default"]; !ok {
		return nil, fmt.Errorf("locale tables need a default separator set")
	}

	t := &LocaleTables{
		separators:     f.Separators,
		currencyTokens: f.CurrencyTokens,
		months:         make(map[string]int),
	}

	// Deterministic merge order
	langs := make([]string, 0, len(f.Languages))
	for lang := range f.Languages {
		langs = append(langs, lang)
	}
	sort.Strings(langs)

	for _, lang := range langs {
		table := f.Languages[lang]
		for st, phrases := range table.StatementTypes {
			if !st.Valid() {
				return nil, fmt.Errorf("unknown statement type %q in %s tables", st, lang)
			}
			for _, p := range phrases {
				t.statementTypes = appendKeyword(t.statementTypes, p, string(st), 0)
			}
		}
		for _, c := range table.Categories {
			for _, p := range c.Keywords {
				t.categories = appendKeyword(t.categories, p, c.Category, c.Priority)
			}
		}
		for _, p := range table.Totals {
			t.totals = appendKeyword(t.totals, p, "total", 0)
		}
		for _, p := range table.Subtotals {
			t.subtotals = appendKeyword(t.subtotals, p, "subtotal", 0)
		}
		for role, phrases := range table.Headers {
			for _, p := range phrases {
				t.headers = appendKeyword(t.headers, p, role, 0)
			}
		}
		for name, month := range table.Months {
			if month < 1 || month > 12 {
				return nil, fmt.Errorf("month %q out of range in %s tables", name, lang)
			}
			t.months[Fold(name)] = month
		}
	}

	sort.SliceStable(t.categories, func(i, j int) bool {
		if t.categories[i].priority != t.categories[j].priority {
			return t.categories[i].priority > t.categories[j].priority
		}
		return len(t.categories[i].phrase) > len(t.categories[j].phrase)
	})

	return t, nil
}

func appendKeyword(list []keyword, phrase, tag string, priority int) []keyword {
	folded := Fold(phrase)
	if folded == "" {
		return list
	}
	return append(list, keyword{
		phrase:   folded,
		tag:      tag,
		priority: priority,
		weight:   len(strings.Fields(folded)),
	})
}

// SeparatorsFor returns the number separators of a locale such as "es-MX".
// Only the language part is consulted.
func (t *LocaleTables) SeparatorsFor(locale string) Separators {
	if s, ok := t.separators[language(locale)]; ok {
		return s
	}
	return t.separators["default"]
}

// CategoryFor returns the canonical category whose keyword best matches text,
// or "" when nothing matches.
func (t *LocaleTables) CategoryFor(text string) string {
	folded := Fold(text)
	if folded == "" {
		return ""
	}
	for _, k := range t.categories {
		if containsPhrase(folded, k.phrase) {
			return k.tag
		}
	}
	return ""
}

// IsTotal reports whether an account label names a row summing the rows
// above it
func (t *LocaleTables) IsTotal(text string) bool {
	return matchesAny(Fold(text), t.totals)
}

// IsSubtotal reports whether an account label names a total or a derived
// figure such as a margin or balance
func (t *LocaleTables) IsSubtotal(text string) bool {
	folded := Fold(text)
	return matchesAny(folded, t.totals) || matchesAny(folded, t.subtotals)
}

func matchesAny(folded string, keywords []keyword) bool {
	if folded == "" {
		return false
	}
	for _, k := range keywords {
		if containsPhrase(folded, k.phrase) {
			return true
		}
	}
	return false
}

// StatementScores returns the keyword score of each statement type over texts
func (t *LocaleTables) StatementScores(texts []string) map[models.StatementType]int {
	scores := make(map[models.StatementType]int)
	for _, text := range texts {
		folded := Fold(text)
		if folded == "" {
			continue
		}
		for _, k := range t.statementTypes {
			if containsPhrase(folded, k.phrase) {
				scores[models.StatementType(k.tag)] += k.weight
			}
		}
	}
	return scores
}

// HeaderRole returns the header role ("account_code", "category", "total"...)
// whose longest keyword matches text, or "".
func (t *LocaleTables) HeaderRole(text string) string {
	folded := Fold(text)
	best, bestLen := "", 0
	for _, k := range t.headers {
		if len(k.phrase) > bestLen && containsPhrase(folded, k.phrase) {
			best, bestLen = k.tag, len(k.phrase)
		}
	}
	return best
}

// Month resolves a month name or abbreviation in any supported language
func (t *LocaleTables) Month(name string) (int, bool) {
	m, ok := t.months[Fold(name)]
	return m, ok
}

// Fold lowercases text, strips accents and collapses every run of
// non-alphanumeric characters into a single space.
func Fold(s string) string {
	stripped, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	if err != nil {
		stripped = s
	}

	var b strings.Builder
	b.Grow(len(stripped))
	space := false
	for _, r := range strings.ToLower(stripped) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
			continue
		}
		space = true
	}
	return b.String()
}

// containsPhrase reports whether phrase occurs in text starting at a word
// boundary. Both arguments must already be folded.
func containsPhrase(text, phrase string) bool {
	for offset := 0; offset <= len(text)-len(phrase); {
		i := strings.Index(text[offset:], phrase)
		if i < 0 {
			return false
		}
		at := offset + i
		if at == 0 || text[at-1] == ' ' {
			return true
		}
		offset = at + 1
	}
	return false
}

func language(locale string) string {
	locale = strings.ToLower(strings.TrimSpace(locale))
	if i := strings.IndexAny(locale, "-_"); i >= 0 {
		return locale[:i]
	}
	return locale
}
