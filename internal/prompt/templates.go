package prompt

import "formula-gateway/internal/models"

// Mode distinguishes the one-shot generator from the conversational assistant.
type Mode string

const (
	ModeOneShot        Mode = "oneshot"
	ModeConversational Mode = "conversational"
	// ModeWorkbook is one-shot generation whose cell updates are written into
	// a workbook file, so formulas must use international function names.
	ModeWorkbook Mode = "workbook"
)

// Variant is the full key a template is selected by.
type Variant struct {
	Language    models.Language
	Spreadsheet bool
	Mode        Mode
}

// Template holds every instruction block of one prompt variant.
// Empty blocks are skipped when rendering.
type Template struct {
	Role          string
	LanguageRule  string
	FunctionNames string
	ColumnRule    string
	FilterRule    string
	ClarifyRule   string
	OutputSchema  string
	PreviewIntro  string
}

// phrasebook is the per-language text every template is assembled from.
type phrasebook struct {
	roleOneShot        string
	roleConversational string
	languageRule       string
	functionNames      string
	functionNamesFile  string
	columnRule         string
	filterRule         string
	clarifyRule        string
	schemaOneShot      string
	schemaSpreadsheet  string
	schemaConversation string
	cellUpdatesHint    string
	previewIntro       string
}

var phrasebooks = map[models.Language]phrasebook{
	models.LanguageRU: {
		roleOneShot:        "Ты эксперт по формулам Excel. Преобразуй запрос пользователя в готовую формулу Excel.",
		roleConversational: "Ты ассистент по формулам Excel. Веди диалог с пользователем и помоги ему получить правильную формулу Excel.",
		languageRule:       "Пиши объяснения на русском языке.",
		functionNames:      "Используй русские названия функций Excel (СУММ, ЕСЛИ, СЧЁТЕСЛИ, ВПР, СРЗНАЧ, ОСТАТ) и точку с запятой в качестве разделителя аргументов. Формула должна начинаться с =.",
		functionNamesFile:  "Формулы будут записаны прямо в файл Excel, поэтому используй английские названия функций (SUM, IF, COUNTIF, MOD) и запятую в качестве разделителя аргументов. Формула должна начинаться с =.",
		columnRule:         "Если пользователь упоминает столбец целиком (\"столбец A\", \"сравни столбец A и столбец B\"), используй диапазон на весь столбец: A:A или A2:A (без заголовка). Никогда не подставляй одну ячейку вроде A1 вместо столбца.",
		filterRule:         "Применяй условия фильтрации строго: число чётное только если остаток от деления на 2 равен нулю (ОСТАТ(x;2)=0). В cellUpdates включай только строки, которые удовлетворяют условию. Строки, не прошедшие условие, полностью пропускай и не копируй их без изменений.",
		clarifyRule:        "Если запрос неоднозначен или не хватает данных, задай один уточняющий вопрос: верни formula: null, а вопрос помести в explanation. Учитывай всю предыдущую переписку.",
		schemaOneShot:      `Отвечай ТОЛЬКО валидным JSON без markdown: {"formula": "=...", "explanation": "краткое объяснение", "functions": [{"name": "ИМЯ", "description": "что делает функция"}]}`,
		schemaSpreadsheet:  `Отвечай ТОЛЬКО валидным JSON без markdown: {"formula": "=...", "explanation": "краткое объяснение", "functions": [{"name": "ИМЯ", "description": "что делает функция"}], "cellUpdates": [{"cell": "B2", "value": "значение или формула"}]}`,
		schemaConversation: `Отвечай ТОЛЬКО валидным JSON без markdown: {"formula": "=..." или null, "explanation": "объяснение или уточняющий вопрос", "functions": [{"name": "ИМЯ", "description": "что делает функция"}], "example": "пример использования или null"}`,
		cellUpdatesHint:    `Если нужно изменить ячейки таблицы, добавь поле "cellUpdates": [{"cell": "B2", "value": "значение или формула"}].`,
		previewIntro:       "Данные таблицы пользователя (JSON-массив строк; элемент 0 соответствует строке 1 листа, обычно это заголовок, элемент 1 строке 2 и т.д.; столбцы идут по порядку A, B, C...):",
	},
	models.LanguageEN: {
		roleOneShot:        "You are an Excel formula expert. Convert the user's request into a ready-to-use Excel formula.",
		roleConversational: "You are an Excel formula assistant. Hold a conversation with the user and help them arrive at the right Excel formula.",
		languageRule:       "Write explanations in English.",
		functionNames:      "Use English Excel function names (SUM, IF, COUNTIF, VLOOKUP, AVERAGE, MOD) with commas as argument separators. The formula must start with =.",
		functionNamesFile:  "Formulas are written straight into an Excel file: use English function names (SUM, IF, COUNTIF, MOD) with commas as argument separators. The formula must start with =.",
		columnRule:         "When the user refers to a whole column (\"column A\", \"compare column A and column B\"), use full-column ranges such as A:A or A2:A (skipping the header). Never substitute a single cell like A1 for a column.",
		filterRule:         "Apply filter conditions strictly: a number is even only when the remainder of division by 2 is zero (MOD(x,2)=0). Include in cellUpdates only the rows that satisfy the condition. Omit non-matching rows entirely; never copy them through unchanged.",
		clarifyRule:        "If the request is ambiguous or data is missing, ask one clarifying question: return formula: null and put the question in explanation. Take the whole previous conversation into account.",
		schemaOneShot:      `Reply with valid JSON ONLY, no markdown: {"formula": "=...", "explanation": "short explanation", "functions": [{"name": "NAME", "description": "what the function does"}]}`,
		schemaSpreadsheet:  `Reply with valid JSON ONLY, no markdown: {"formula": "=...", "explanation": "short explanation", "functions": [{"name": "NAME", "description": "what the function does"}], "cellUpdates": [{"cell": "B2", "value": "value or formula"}]}`,
		schemaConversation: `Reply with valid JSON ONLY, no markdown: {"formula": "=..." or null, "explanation": "explanation or clarifying question", "functions": [{"name": "NAME", "description": "what the function does"}], "example": "usage example or null"}`,
		cellUpdatesHint:    `If cells of the sheet must change, add a "cellUpdates" field: [{"cell": "B2", "value": "value or formula"}].`,
		previewIntro:       "The user's spreadsheet data (JSON array of rows; element 0 is sheet row 1, usually the header, element 1 is row 2 and so on; columns map to A, B, C... in order):",
	},
}

var templates = buildTemplates()

func buildTemplates() map[Variant]Template {
	out := make(map[Variant]Template)
	for lang, pb := range phrasebooks {
		for _, mode := range []Mode{ModeOneShot, ModeConversational, ModeWorkbook} {
			for _, spreadsheet := range []bool{false, true} {
				out[Variant{Language: lang, Spreadsheet: spreadsheet, Mode: mode}] = newTemplate(pb, mode, spreadsheet)
			}
		}
	}
	return out
}

func newTemplate(pb phrasebook, mode Mode, spreadsheet bool) Template {
	tpl := Template{
		Role:          pb.roleOneShot,
		LanguageRule:  pb.languageRule,
		FunctionNames: pb.functionNames,
		ColumnRule:    pb.columnRule,
		OutputSchema:  pb.schemaOneShot,
	}

	switch mode {
	case ModeConversational:
		tpl.Role = pb.roleConversational
		tpl.ClarifyRule = pb.clarifyRule
		tpl.OutputSchema = pb.schemaConversation
	case ModeWorkbook:
		tpl.FunctionNames = pb.functionNamesFile
	}

	if spreadsheet {
		tpl.FilterRule = pb.filterRule
		tpl.PreviewIntro = pb.previewIntro
		if mode == ModeConversational {
			tpl.OutputSchema = pb.schemaConversation + " " + pb.cellUpdatesHint
		} else {
			tpl.OutputSchema = pb.schemaSpreadsheet
		}
	}
	return tpl
}

// TemplateFor returns the template of a variant. Unknown languages use Russian.
func TemplateFor(v Variant) Template {
	if tpl, ok := templates[v]; ok {
		return tpl
	}
	v.Language = models.LanguageRU
	return templates[v]
}
