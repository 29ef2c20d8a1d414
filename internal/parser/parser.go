// Package parser recovers a ResultPayload from free model text.
//
// The model is asked for strict JSON but does not always comply. Parse never
// fails: text that is not a JSON object takes a mode-specific fallback path
// and the caller branches on Result.Kind.
package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"formula-gateway/internal/models"
	"formula-gateway/internal/prompt"
)

// Kind tells how a Result was produced.
type Kind int

const (
	// KindParsed means the text was a JSON object and was normalised.
	KindParsed Kind = iota
	// KindFallback means the payload was synthesised from the raw text.
	KindFallback
)

func (k Kind) String() string {
	if k == KindParsed {
		return "parsed"
	}
	return "fallback"
}

// Result is the outcome of Parse.
type Result struct {
	Kind    Kind
	Payload models.ResultPayload
	Raw     string
}

var (
	leadingFence = regexp.MustCompile("^```(?:[A-Za-z0-9_+-]+(?:\\s|$))?")
	successText  = map[models.Language]string{
		models.LanguageRU: "Формула успешно создана",
		models.LanguageEN: "Formula generated successfully",
	}
	emptyText = map[models.Language]string{
		models.LanguageRU: "Модель вернула пустой ответ. Пожалуйста, уточните запрос или попробуйте ещё раз.",
		models.LanguageEN: "The model returned an empty answer. Please clarify your request or try again.",
	}
)

// StripFences removes one leading code fence (with an optional language tag)
// and one trailing fence, then trims whitespace.
func StripFences(text string) string {
	t := strings.TrimSpace(text)
	if loc := leadingFence.FindStringIndex(t); loc != nil {
		t = t[loc[1]:]
	}
	t = strings.TrimSpace(t)
	t = strings.TrimSuffix(t, "```")
	return strings.TrimSpace(t)
}

// Parse converts model text into a payload for the given mode.
func Parse(mode prompt.Mode, lang models.Language, raw string) Result {
	clean := StripFences(raw)

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(clean), &fields); err != nil || fields == nil {
		return fallback(mode, lang, raw, clean)
	}

	payload := models.ResultPayload{
		Formula:     stringField(fields, "formula"),
		Explanation: raw,
		Functions:   functionsField(fields["functions"]),
		CellUpdates: cellUpdatesField(fields["cellUpdates"]),
		Example:     stringField(fields, "example"),
	}
	if explanation := stringField(fields, "explanation"); explanation != nil {
		payload.Explanation = *explanation
	}

	return Result{Kind: KindParsed, Payload: payload, Raw: raw}
}

func fallback(mode prompt.Mode, lang models.Language, raw, clean string) Result {
	payload := models.ResultPayload{
		Functions: []models.FunctionInfo{},
	}

	lang = models.ParseLanguage(string(lang))
	switch {
	case clean == "":
		payload.Explanation = emptyText[lang]
	case mode == prompt.ModeConversational:
		payload.Explanation = raw
	default:
		payload.Formula = models.StringPtr(clean)
		payload.Explanation = successText[lang]
	}

	return Result{Kind: KindFallback, Payload: payload, Raw: raw}
}

// stringField returns a trimmed, non-empty scalar rendered as text, or nil.
func stringField(fields map[string]json.RawMessage, key string) *string {
	raw, ok := fields[key]
	if !ok {
		return nil
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil
	}
	text, ok := scalarText(value)
	if !ok {
		return nil
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	return &text
}

func functionsField(raw json.RawMessage) []models.FunctionInfo {
	out := []models.FunctionInfo{}
	var items []map[string]any
	if len(raw) == 0 || json.Unmarshal(raw, &items) != nil {
		return out
	}

	for _, item := range items {
		name, _ := scalarText(item["name"])
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		description, _ := scalarText(item["description"])
		out = append(out, models.FunctionInfo{Name: name, Description: strings.TrimSpace(description)})
	}
	return out
}

func cellUpdatesField(raw json.RawMessage) []models.CellUpdate {
	var items []map[string]any
	if len(raw) == 0 || json.Unmarshal(raw, &items) != nil {
		return nil
	}

	var out []models.CellUpdate
	for _, item := range items {
		cellValue, ok := item["cell"]
		if !ok {
			cellValue = item["cellReference"]
		}
		cell, _ := scalarText(cellValue)
		cell = strings.TrimSpace(cell)
		if cell == "" {
			continue
		}
		value, _ := scalarText(item["value"])
		out = append(out, models.CellUpdate{Cell: cell, Value: value})
	}
	return out
}

// scalarText renders JSON scalars as text. Objects and arrays are rejected.
func scalarText(value any) (string, bool) {
	switch v := value.(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case bool:
		if v {
			return "TRUE", true
		}
		return "FALSE", true
	default:
		return "", false
	}
}
