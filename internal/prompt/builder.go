// Package prompt turns a query and its conversation history into the system
// prompt and message list sent upstream.
package prompt

import (
	"bytes"
	"encoding/json"
	"strings"

	"formula-gateway/internal/models"
)

// Builder renders prompts, capping the embedded spreadsheet preview.
type Builder struct {
	maxRows int
	maxCols int
}

// NewBuilder constructs a builder. Non-positive limits disable capping.
func NewBuilder(maxRows, maxCols int) *Builder {
	return &Builder{maxRows: maxRows, maxCols: maxCols}
}

// Select picks the prompt variant for a query. It is a pure function.
func Select(mode Mode, q models.Query) Variant {
	return Variant{
		Language:    models.ParseLanguage(string(q.Language)),
		Spreadsheet: q.UsesPreview(),
		Mode:        mode,
	}
}

// Build returns the system prompt and the ordered turns: history (one-shot
// mode ignores it) followed by the query as the final user turn.
func (b *Builder) Build(mode Mode, q models.Query, history []models.ConversationTurn) (string, []models.ConversationTurn) {
	variant := Select(mode, q)
	system := b.render(TemplateFor(variant), q)

	var turns []models.ConversationTurn
	if mode == ModeConversational {
		turns = MapHistory(history)
	}
	turns = append(turns, models.ConversationTurn{Role: models.RoleUser, Content: q.Text})
	return system, turns
}

func (b *Builder) render(tpl Template, q models.Query) string {
	blocks := []string{
		tpl.Role,
		tpl.LanguageRule,
		tpl.FunctionNames,
		tpl.ColumnRule,
		tpl.FilterRule,
		tpl.ClarifyRule,
		tpl.OutputSchema,
	}

	var sb strings.Builder
	for _, block := range blocks {
		if block == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(block)
	}

	if tpl.PreviewIntro != "" && q.UsesPreview() {
		sb.WriteString("\n\n")
		sb.WriteString(tpl.PreviewIntro)
		sb.WriteString("\n")
		sb.WriteString(encodePreview(b.capPreview(q.Preview)))
	}
	return sb.String()
}

func (b *Builder) capPreview(preview [][]string) [][]string {
	rows := preview
	if b.maxRows > 0 && len(rows) > b.maxRows {
		rows = rows[:b.maxRows]
	}

	out := make([][]string, len(rows))
	for i, row := range rows {
		if b.maxCols > 0 && len(row) > b.maxCols {
			row = row[:b.maxCols]
		}
		out[i] = append([]string(nil), row...)
	}
	return out
}

func encodePreview(preview [][]string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(preview); err != nil {
		return "[]"
	}
	return strings.TrimSpace(buf.String())
}

// MapHistory copies client history into model turns. Roles are normalised
// ("model" becomes assistant), unknown roles and blank turns are dropped.
func MapHistory(history []models.ConversationTurn) []models.ConversationTurn {
	out := make([]models.ConversationTurn, 0, len(history)+1)
	for _, turn := range history {
		role, ok := NormalizeRole(string(turn.Role))
		if !ok || strings.TrimSpace(turn.Content) == "" {
			continue
		}
		out = append(out, models.ConversationTurn{Role: role, Content: turn.Content})
	}
	return out
}

// NormalizeRole maps a client role onto user or assistant.
func NormalizeRole(role string) (models.Role, bool) {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "user":
		return models.RoleUser, true
	case "assistant", "model":
		return models.RoleAssistant, true
	default:
		return "", false
	}
}
