package models

import "strings"

// Language selects the natural language used for explanations and function names.
type Language string

const (
	LanguageRU Language = "ru"
	LanguageEN Language = "en"
)

// ParseLanguage maps a client supplied language code onto a supported language.
// Anything unknown falls back to Russian.
func ParseLanguage(raw string) Language {
	switch Language(strings.ToLower(strings.TrimSpace(raw))) {
	case LanguageEN:
		return LanguageEN
	default:
		return LanguageRU
	}
}

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Query is a single natural-language request about spreadsheet data.
type Query struct {
	Text           string
	Language       Language
	Preview        [][]string
	HasSpreadsheet bool
}

// UsesPreview reports whether the preview should be embedded into the prompt.
func (q Query) UsesPreview() bool {
	return q.HasSpreadsheet && len(q.Preview) > 0
}

// ConversationTurn is one prior exchange supplied by the client.
type ConversationTurn struct {
	Role    Role
	Content string
}

// Sampling carries the generation parameters sent upstream.
type Sampling struct {
	Temperature     *float64
	MaxOutputTokens int
	ReasoningEffort string
}

// ModelRequest is the canonical request handed to an upstream provider.
type ModelRequest struct {
	SystemPrompt string
	Turns        []ConversationTurn
	Model        string
	Sampling     Sampling
}

// FunctionInfo describes a spreadsheet function used by a formula.
type FunctionInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CellUpdate assigns a value (or formula) to a single cell address.
type CellUpdate struct {
	Cell  string `json:"cell"`
	Value string `json:"value"`
}

// ResultPayload is the stable output contract returned to the front end.
type ResultPayload struct {
	Formula     *string
	Explanation string
	Functions   []FunctionInfo
	CellUpdates []CellUpdate
	Example     *string
}

// StringPtr returns a pointer to a copy of s.
func StringPtr(s string) *string {
	return &s
}
