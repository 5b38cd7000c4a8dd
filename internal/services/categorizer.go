package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/ashmitsharp/finlens-api/internal/logger"
	"github.com/ashmitsharp/finlens-api/internal/models"
	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
)

// Rule match types
const (
	MatchSubstring = "substring"
	MatchExact     = "exact"
	MatchRegex     = "regex"
	MatchFuzzy     = "fuzzy"
)

const fuzzyThreshold = 0.8

// RuleStore persists category rules. ListRules returns the rules owned by
// exactly the given scope.
type RuleStore interface {
	ListRules(ctx context.Context, scope models.Scope) ([]models.CategoryRule, error)
	CreateRule(ctx context.Context, rule *models.CategoryRule) error
	DeleteRule(ctx context.Context, scope models.Scope, id uuid.UUID) error
}

// RuleSet holds the rules that apply to one company, by precedence
type RuleSet struct {
	Company      []models.CategoryRule
	Organization []models.CategoryRule
}

// Categorizer loads layered category rules for a scope
type Categorizer struct {
	store   RuleStore
	cache   *gocache.Cache
	matcher *RuleMatcher
}

// NewCategorizer creates a new categorizer instance
func NewCategorizer(store RuleStore) *Categorizer {
	return &Categorizer{
		store:   store,
		cache:   gocache.New(5*time.Minute, 10*time.Minute), // Cache rules for 5 minutes
		matcher: NewRuleMatcher(),
	}
}

// Matcher returns the rule matcher shared by every run of this categorizer
func (c *Categorizer) Matcher() *RuleMatcher {
	return c.matcher
}

// RulesFor returns the company and organization rules applying to scope
func (c *Categorizer) RulesFor(ctx context.Context, scope models.Scope) (RuleSet, error) {
	var set RuleSet

	org, err := c.load(ctx, scope.Organization())
	if err != nil {
		return set, err
	}
	set.Organization = org

	if scope.IsCompany() {
		company, err := c.load(ctx, scope)
		if err != nil {
			return set, err
		}
		set.Company = company
	}
	return set, nil
}

func (c *Categorizer) load(ctx context.Context, scope models.Scope) ([]models.CategoryRule, error) {
	key := scopeKey(scope)
	if cached, ok := c.cache.Get(key); ok {
		return cached.([]models.CategoryRule), nil
	}

	rules, err := c.store.ListRules(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to load category rules: %w", err)
	}
	c.cache.SetDefault(key, rules)

	logger.FromContext(ctx).Debug().
		Str("scope", key).
		Int("rules", len(rules)).
		Msg("category rules loaded")
	return rules, nil
}

// ListRules returns the rules owned by scope
func (c *Categorizer) ListRules(ctx context.Context, scope models.Scope) ([]models.CategoryRule, error) {
	return c.load(ctx, scope)
}

// CreateRule validates and stores a rule, then drops the cached rules of its scope
func (c *Categorizer) CreateRule(ctx context.Context, rule *models.CategoryRule) error {
	if strings.TrimSpace(rule.Keyword) == "" {
		return models.NewInputError("keyword is required")
	}
	if strings.TrimSpace(rule.Category) == "" {
		return models.NewInputError("category is required")
	}
	switch rule.MatchType {
	case "":
		rule.MatchType = MatchSubstring
	case MatchSubstring, MatchExact, MatchFuzzy:
	case MatchRegex:
		if _, err := regexp.Compile(rule.Keyword); err != nil {
			return models.NewInputError("invalid regex pattern: %v", err)
		}
	default:
		return models.NewInputError("unsupported match type: %s", rule.MatchType)
	}

	if err := c.store.CreateRule(ctx, rule); err != nil {
		return fmt.Errorf("failed to create category rule: %w", err)
	}
	c.Invalidate(models.Scope{OrganizationID: rule.OrganizationID, CompanyID: rule.CompanyID})
	return nil
}

// DeleteRule removes a rule owned by scope
func (c *Categorizer) DeleteRule(ctx context.Context, scope models.Scope, id uuid.UUID) error {
	if err := c.store.DeleteRule(ctx, scope, id); err != nil {
		return fmt.Errorf("failed to delete category rule: %w", err)
	}
	c.Invalidate(scope)
	return nil
}

// Invalidate clears the cached rules for a scope
func (c *Categorizer) Invalidate(scope models.Scope) {
	c.cache.Delete(scopeKey(scope))
}

// RuleMatcher matches account names against category rules
type RuleMatcher struct {
	regexMu sync.RWMutex
	regexes map[string]*regexp.Regexp
}

// NewRuleMatcher creates a matcher with an empty regex cache
func NewRuleMatcher() *RuleMatcher {
	return &RuleMatcher{regexes: make(map[string]*regexp.Regexp)}
}

// Match finds the best rule for an account name. Higher priority wins; on
// equal priority the higher match score wins.
func (m *RuleMatcher) Match(name string, rules []models.CategoryRule) (models.CategoryRule, bool) {
	trimmed := strings.TrimSpace(name)
	folded := Fold(trimmed)
	if folded == "" {
		return models.CategoryRule{}, false
	}

	var best models.CategoryRule
	found := false
	highestScore := 0.0

	for _, rule := range rules {
		var matched bool
		var score float64

		// Regex patterns see the original text; everything else is folded
		if rule.MatchType == MatchRegex {
			matched, score = m.matchRegex(trimmed, rule.Keyword)
		} else {
			matched, score = m.matchRule(folded, rule)
		}
		if !matched {
			continue
		}

		if !found || rule.Priority > best.Priority ||
			(rule.Priority == best.Priority && score > highestScore) {
			best = rule
			highestScore = score
			found = true
		}
	}

	return best, found
}

// matchRule checks if a folded name matches a rule based on match_type
func (m *RuleMatcher) matchRule(name string, rule models.CategoryRule) (bool, float64) {
	keyword := Fold(rule.Keyword)
	if keyword == "" {
		return false, 0.0
	}
	switch rule.MatchType {
	case MatchExact:
		return matchExact(name, keyword)
	case MatchFuzzy:
		return matchFuzzy(name, keyword, fuzzyThreshold)
	default:
		return matchSubstring(name, keyword)
	}
}

func matchExact(name, keyword string) (bool, float64) {
	if name == keyword {
		return true, 1.0
	}
	return false, 0.0
}

func matchSubstring(name, keyword string) (bool, float64) {
	if strings.Contains(name, keyword) {
		// Longer keywords relative to the name score higher
		return true, float64(len(keyword)) / float64(len(name))
	}
	return false, 0.0
}

// matchRegex compiles patterns once and reuses them
func (m *RuleMatcher) matchRegex(name, pattern string) (bool, float64) {
	m.regexMu.RLock()
	re, ok := m.regexes[pattern]
	m.regexMu.RUnlock()

	if !ok {
		compiled, err := regexp.Compile(pattern)
		if err != nil {
			// Invalid regex, skip this rule
			return false, 0.0
		}
		m.regexMu.Lock()
		m.regexes[pattern] = compiled
		m.regexMu.Unlock()
		re = compiled
	}

	if re.MatchString(name) {
		// Slightly below an exact match
		return true, 0.8
	}
	return false, 0.0
}

// matchFuzzy matches the whole name or any word of it within threshold
func matchFuzzy(name, keyword string, threshold float64) (bool, float64) {
	if strings.Contains(name, keyword) {
		return true, 1.0
	}

	if similarity := calculateSimilarity(name, keyword); similarity >= threshold {
		return true, similarity
	}

	maxSimilarity := 0.0
	for _, word := range strings.Fields(name) {
		wordSimilarity := calculateSimilarity(word, keyword)
		if wordSimilarity >= threshold {
			return true, wordSimilarity
		}
		if wordSimilarity > maxSimilarity {
			maxSimilarity = wordSimilarity
		}
	}
	return false, maxSimilarity
}

// calculateSimilarity returns 1 - levenshtein/maxLen, between 0 and 1
func calculateSimilarity(s1, s2 string) float64 {
	r1, r2 := []rune(s1), []rune(s2)
	if len(r1) == 0 && len(r2) == 0 {
		return 1.0
	}
	if len(r1) == 0 || len(r2) == 0 {
		return 0.0
	}

	maxLen := max(len(r1), len(r2))
	return 1.0 - float64(levenshteinDistance(r1, r2))/float64(maxLen)
}

func levenshteinDistance(s1, s2 []rune) int {
	prev := make([]int, len(s2)+1)
	curr := make([]int, len(s2)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(s1); i++ {
		curr[0] = i
		for j := 1; j <= len(s2); j++ {
			cost := 1
			if s1[i-1] == s2[j-1] {
				cost = 0
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}
	return prev[len(s2)]
}

func scopeKey(scope models.Scope) string {
	if scope.CompanyID != nil {
		return scope.OrganizationID.String() + "/" + scope.CompanyID.String()
	}
	return scope.OrganizationID.String()
}
