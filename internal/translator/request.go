package translator

import (
	"encoding/base64"
	"errors"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"formula-gateway/internal/models"
)

// ErrMissingFile is returned when a workbook request carries no file.
var ErrMissingFile = errors.New("file is required")

// HistoryMessage is one prior turn as sent by the client.
type HistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// FormulaRequest is the body accepted by every formula endpoint.
type FormulaRequest struct {
	Query               string           `json:"query"`
	Language            string           `json:"language"`
	ExcelData           [][]any          `json:"excelData"`
	HasExcel            bool             `json:"hasExcel"`
	ConversationHistory []HistoryMessage `json:"conversationHistory"`
	File                string           `json:"file"`
}

// ToQuery converts the wire request into a pipeline query. Preview cells are
// rendered as strings; the preview is dropped unless hasExcel is set.
func (r FormulaRequest) ToQuery() models.Query {
	q := models.Query{
		Text:           r.Query,
		Language:       models.ParseLanguage(r.Language),
		HasSpreadsheet: r.HasExcel,
	}
	if r.HasExcel && len(r.ExcelData) > 0 {
		q.Preview = make([][]string, len(r.ExcelData))
		for i, row := range r.ExcelData {
			cells := make([]string, len(row))
			for j, cell := range row {
				cells[j] = cellString(cell)
			}
			q.Preview[i] = cells
		}
	}
	return q
}

// History returns the client turns in order. Role normalisation happens in
// the prompt builder.
func (r FormulaRequest) History() []models.ConversationTurn {
	if len(r.ConversationHistory) == 0 {
		return nil
	}
	turns := make([]models.ConversationTurn, 0, len(r.ConversationHistory))
	for _, msg := range r.ConversationHistory {
		turns = append(turns, models.ConversationTurn{Role: models.Role(msg.Role), Content: msg.Content})
	}
	return turns
}

// DecodeFile returns the workbook bytes. A data URL prefix is tolerated.
func (r FormulaRequest) DecodeFile() ([]byte, error) {
	encoded := strings.TrimSpace(r.File)
	if encoded == "" {
		return nil, ErrMissingFile
	}
	if strings.HasPrefix(encoded, "data:") {
		if idx := strings.Index(encoded, ","); idx >= 0 {
			encoded = encoded[idx+1:]
		}
	}
	return base64.StdEncoding.DecodeString(encoded)
}

func cellString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		if val {
			return "TRUE"
		}
		return "FALSE"
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(data)
	}
}
