package services

import (
	"fmt"
	"strings"

	"github.com/ashmitsharp/finlens-api/internal/models"
)

// MaxDiagnostics caps each diagnostic list
const MaxDiagnostics = 10

// Diagnostics is the grouped, capped output of an Aggregator
type Diagnostics struct {
	Warnings  []string `json:"warnings"`
	Errors    []string `json:"errors"`
	Truncated int      `json:"truncated"` // Messages whose kind was past the cap
}

// Aggregator folds diagnostic messages into at most MaxDiagnostics groups per
// list. A message's kind is the text before its first ':'. Once the cap is
// reached new kinds are counted but not stored, so memory stays bounded.
type Aggregator struct {
	warnings  messageGroups
	errors    messageGroups
	truncated int
}

type messageGroups struct {
	order   []string
	entries map[string]*messageGroup
}

type messageGroup struct {
	first string
	count int
}

// NewAggregator creates an empty aggregator
func NewAggregator() *Aggregator {
	return &Aggregator{
		warnings: messageGroups{entries: make(map[string]*messageGroup)},
		errors:   messageGroups{entries: make(map[string]*messageGroup)},
	}
}

// Warn records a warning
func (a *Aggregator) Warn(msg string) {
	if !a.warnings.add(msg) {
		a.truncated++
	}
}

// Error records an error
func (a *Aggregator) Error(msg string) {
	if !a.errors.add(msg) {
		a.truncated++
	}
}

// Warnf records a formatted warning
func (a *Aggregator) Warnf(format string, args ...any) {
	a.Warn(fmt.Sprintf(format, args...))
}

// Errorf records a formatted error
func (a *Aggregator) Errorf(format string, args ...any) {
	a.Error(fmt.Sprintf(format, args...))
}

// ObserveLine records the row warnings of a parsed line
func (a *Aggregator) ObserveLine(line models.ParsedLine) {
	for _, w := range line.Warnings {
		a.Warn(w)
	}
}

// Result renders the grouped messages in discovery order
func (a *Aggregator) Result() Diagnostics {
	return Diagnostics{
		Warnings:  a.warnings.messages(),
		Errors:    a.errors.messages(),
		Truncated: a.truncated,
	}
}

// Collect groups the row warnings of lines
func Collect(lines []models.ParsedLine) Diagnostics {
	agg := NewAggregator()
	for _, line := range lines {
		agg.ObserveLine(line)
	}
	return agg.Result()
}

// add reports false when the message was dropped by the cap
func (g *messageGroups) add(msg string) bool {
	kind := messageKind(msg)
	if entry, ok := g.entries[kind]; ok {
		entry.count++
		return true
	}
	if len(g.order) >= MaxDiagnostics {
		return false
	}
	g.order = append(g.order, kind)
	g.entries[kind] = &messageGroup{first: msg, count: 1}
	return true
}

func (g *messageGroups) messages() []string {
	out := make([]string, 0, len(g.order))
	for _, kind := range g.order {
		entry := g.entries[kind]
		if entry.count == 1 {
			out = append(out, entry.first)
			continue
		}
		out = append(out, fmt.Sprintf("%s: %d occurrences (first: %s)", kind, entry.count, messageDetail(entry.first)))
	}
	return out
}

func messageKind(msg string) string {
	if i := strings.IndexByte(msg, ':'); i >= 0 {
		return strings.TrimSpace(msg[:i])
	}
	return strings.TrimSpace(msg)
}

func messageDetail(msg string) string {
	if i := strings.IndexByte(msg, ':'); i >= 0 {
		return strings.TrimSpace(msg[i+1:])
	}
	return msg
}
