package parser

import (
	"reflect"
	"testing"

	"formula-gateway/internal/models"
	"formula-gateway/internal/prompt"
)

func TestStripFences(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "plain", input: `{"formula":"=A1"}`, want: `{"formula":"=A1"}`},
		{name: "json tag", input: "```json\n{\"formula\":\"=A1\"}\n```", want: `{"formula":"=A1"}`},
		{name: "bare fence", input: "```\n=SUM(A:A)\n```", want: "=SUM(A:A)"},
		{name: "surrounding whitespace", input: "  \n```JSON\n {} \n```  \n", want: "{}"},
		{name: "leading only", input: "```json\n{}", want: "{}"},
		{name: "trailing only", input: "{}\n```", want: "{}"},
		{name: "inline", input: "```=SUM(A:A)```", want: "=SUM(A:A)"},
		{name: "tag without newline", input: "```json {\"a\":1}```", want: `{"a":1}`},
		{name: "empty", input: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StripFences(tt.input)
			if got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
			if again := StripFences(got); again != got {
				t.Fatalf("not idempotent: %q then %q", got, again)
			}
		})
	}
}

func TestParseObjectAppliesDefaults(t *testing.T) {
	raw := `{"formula": "=SUM(A2:A)"}`
	res := Parse(prompt.ModeOneShot, models.LanguageEN, raw)

	if res.Kind != KindParsed {
		t.Fatalf("kind: got %s", res.Kind)
	}
	if res.Payload.Formula == nil || *res.Payload.Formula != "=SUM(A2:A)" {
		t.Fatalf("formula: got %v", res.Payload.Formula)
	}
	if res.Payload.Explanation != raw {
		t.Fatalf("explanation must default to the raw text, got %q", res.Payload.Explanation)
	}
	if res.Payload.Functions == nil || len(res.Payload.Functions) != 0 {
		t.Fatalf("functions must default to an empty list, got %#v", res.Payload.Functions)
	}
	if res.Payload.CellUpdates != nil {
		t.Fatalf("cellUpdates must be absent, got %#v", res.Payload.CellUpdates)
	}
	if res.Payload.Example != nil {
		t.Fatalf("example must be nil")
	}
}

func TestParseFullObject(t *testing.T) {
	raw := "```json\n" + `{
		"formula": "=ЕСЛИ(ОСТАТ(A2;2)=0;A2;\"\")",
		"explanation": "Выводит только чётные числа",
		"functions": [
			{"name": "ЕСЛИ", "description": "Условие"},
			{"name": "", "description": "dropped"},
			{"name": "ОСТАТ"}
		],
		"cellUpdates": [
			{"cell": "B3", "value": 2},
			{"cell": "B5", "value": "4"},
			{"cellReference": "C1", "value": true},
			{"value": "no cell"}
		],
		"example": "  "
	}` + "\n```"

	res := Parse(prompt.ModeOneShot, models.LanguageRU, raw)
	if res.Kind != KindParsed {
		t.Fatalf("kind: got %s", res.Kind)
	}

	want := models.ResultPayload{
		Formula:     models.StringPtr(`=ЕСЛИ(ОСТАТ(A2;2)=0;A2;"")`),
		Explanation: "Выводит только чётные числа",
		Functions: []models.FunctionInfo{
			{Name: "ЕСЛИ", Description: "Условие"},
			{Name: "ОСТАТ"},
		},
		CellUpdates: []models.CellUpdate{
			{Cell: "B3", Value: "2"},
			{Cell: "B5", Value: "4"},
			{Cell: "C1", Value: "TRUE"},
		},
	}
	if !reflect.DeepEqual(res.Payload, want) {
		t.Fatalf("payload mismatch:\n got %#v\nwant %#v", res.Payload, want)
	}
}

func TestParseNullFormulaKeepsQuestion(t *testing.T) {
	raw := `{"formula": null, "explanation": "Which column holds the amounts?", "functions": [], "example": "=SUM(B:B)"}`
	res := Parse(prompt.ModeConversational, models.LanguageEN, raw)

	if res.Kind != KindParsed {
		t.Fatalf("kind: got %s", res.Kind)
	}
	if res.Payload.Formula != nil {
		t.Fatalf("formula must be nil")
	}
	if res.Payload.Explanation != "Which column holds the amounts?" {
		t.Fatalf("explanation: got %q", res.Payload.Explanation)
	}
	if res.Payload.Example == nil || *res.Payload.Example != "=SUM(B:B)" {
		t.Fatalf("example: got %v", res.Payload.Example)
	}
}

func TestParseEmptyFormulaIsNull(t *testing.T) {
	res := Parse(prompt.ModeConversational, models.LanguageEN, `{"formula": "", "explanation": "?"}`)
	if res.Payload.Formula != nil {
		t.Fatalf("empty formula must be treated as null")
	}
}

func TestParseFallbackOneShot(t *testing.T) {
	inputs := []string{
		"=SUM(A:A)",
		"```\n=СУММ(A:A)\n```",
		`"=SUM(A:A)"`,
		`["=SUM(A:A)"]`,
		`{"formula": "=SUM(A:A)"`,
	}

	for _, raw := range inputs {
		res := Parse(prompt.ModeOneShot, models.LanguageEN, raw)
		if res.Kind != KindFallback {
			t.Fatalf("%q: kind got %s", raw, res.Kind)
		}
		if res.Payload.Formula == nil || *res.Payload.Formula != StripFences(raw) {
			t.Fatalf("%q: formula must be the raw text, got %v", raw, res.Payload.Formula)
		}
		if res.Payload.Explanation != "Formula generated successfully" {
			t.Fatalf("%q: explanation got %q", raw, res.Payload.Explanation)
		}
		if len(res.Payload.Functions) != 0 || res.Payload.Functions == nil {
			t.Fatalf("%q: functions must be an empty list", raw)
		}
	}

	ru := Parse(prompt.ModeOneShot, "", "=СУММ(A:A)")
	if ru.Payload.Explanation != "Формула успешно создана" {
		t.Fatalf("russian fallback explanation: got %q", ru.Payload.Explanation)
	}
}

func TestParseFenceOnlyOutput(t *testing.T) {
	inputs := []string{"```", "```json\n```", "```\n\n```"}
	modes := []prompt.Mode{prompt.ModeOneShot, prompt.ModeConversational, prompt.ModeWorkbook}

	for _, raw := range inputs {
		for _, mode := range modes {
			res := Parse(mode, models.LanguageEN, raw)
			if res.Kind != KindFallback {
				t.Fatalf("%q/%v: kind got %s", raw, mode, res.Kind)
			}
			if res.Payload.Formula != nil {
				t.Fatalf("%q/%v: formula must be nil, got %q", raw, mode, *res.Payload.Formula)
			}
			if res.Payload.Explanation != emptyText[models.LanguageEN] {
				t.Fatalf("%q/%v: explanation got %q", raw, mode, res.Payload.Explanation)
			}
		}
	}

	ru := Parse(prompt.ModeOneShot, models.LanguageRU, "```")
	if ru.Payload.Explanation != emptyText[models.LanguageRU] {
		t.Fatalf("russian explanation: got %q", ru.Payload.Explanation)
	}
}

func TestParseFallbackConversational(t *testing.T) {
	raw := "Could you tell me which column contains the sales totals?"
	res := Parse(prompt.ModeConversational, models.LanguageEN, raw)

	if res.Kind != KindFallback {
		t.Fatalf("kind: got %s", res.Kind)
	}
	if res.Payload.Formula != nil {
		t.Fatalf("formula must be nil")
	}
	if res.Payload.Explanation != raw {
		t.Fatalf("explanation must be verbatim, got %q", res.Payload.Explanation)
	}
}

func TestParseIsDeterministic(t *testing.T) {
	inputs := []string{"not json at all {", `{"formula":"=A1"}`, "```json\n[1,2]\n```"}
	for _, mode := range []prompt.Mode{prompt.ModeOneShot, prompt.ModeConversational} {
		for _, raw := range inputs {
			first := Parse(mode, models.LanguageRU, raw)
			second := Parse(mode, models.LanguageRU, raw)
			if !reflect.DeepEqual(first, second) {
				t.Fatalf("mode %s input %q: results differ", mode, raw)
			}
		}
	}
}
