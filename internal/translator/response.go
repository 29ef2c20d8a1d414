package translator

import (
	"encoding/base64"

	"formula-gateway/internal/models"
	"formula-gateway/internal/workbook"
)

const processedMessage = "File processed successfully"

// GeneratorResponse is the success body of the formula generator.
type GeneratorResponse struct {
	Formula     *string               `json:"formula"`
	Explanation string                `json:"explanation"`
	Functions   []models.FunctionInfo `json:"functions"`
	CellUpdates []models.CellUpdate   `json:"cellUpdates,omitempty"`
	RequestID   string                `json:"request_id"`
}

// AssistantResponse is the success body of the conversational assistant.
type AssistantResponse struct {
	Formula     *string               `json:"formula"`
	Explanation string                `json:"explanation"`
	Functions   []models.FunctionInfo `json:"functions"`
	CellUpdates []models.CellUpdate   `json:"cellUpdates,omitempty"`
	Example     *string               `json:"example"`
	RequestID   string                `json:"request_id"`
}

// ProcessResponse carries the rewritten workbook and what was applied to it.
type ProcessResponse struct {
	File        string                `json:"file"`
	Message     string                `json:"message"`
	Formula     *string               `json:"formula"`
	Explanation string                `json:"explanation"`
	Functions   []models.FunctionInfo `json:"functions"`
	CellUpdates []models.CellUpdate   `json:"cellUpdates"`
	Rejected    []workbook.Rejection  `json:"rejected,omitempty"`
	RequestID   string                `json:"request_id"`
}

func FromGenerator(p models.ResultPayload, requestID string) GeneratorResponse {
	return GeneratorResponse{
		Formula:     p.Formula,
		Explanation: p.Explanation,
		Functions:   functionsOrEmpty(p.Functions),
		CellUpdates: p.CellUpdates,
		RequestID:   requestID,
	}
}

func FromAssistant(p models.ResultPayload, requestID string) AssistantResponse {
	return AssistantResponse{
		Formula:     p.Formula,
		Explanation: p.Explanation,
		Functions:   functionsOrEmpty(p.Functions),
		CellUpdates: p.CellUpdates,
		Example:     p.Example,
		RequestID:   requestID,
	}
}

func FromProcess(file []byte, p models.ResultPayload, rejected []workbook.Rejection, requestID string) ProcessResponse {
	updates := p.CellUpdates
	if updates == nil {
		updates = []models.CellUpdate{}
	}
	return ProcessResponse{
		File:        base64.StdEncoding.EncodeToString(file),
		Message:     processedMessage,
		Formula:     p.Formula,
		Explanation: p.Explanation,
		Functions:   functionsOrEmpty(p.Functions),
		CellUpdates: updates,
		Rejected:    rejected,
		RequestID:   requestID,
	}
}

func functionsOrEmpty(fns []models.FunctionInfo) []models.FunctionInfo {
	if fns == nil {
		return []models.FunctionInfo{}
	}
	return fns
}
