package provider

import (
	"encoding/json"
	"strings"
)

const maxDumpBytes = 500

type chatEnvelope struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type responsesEnvelope struct {
	Output []responseItem `json:"output"`
}

type responseItem struct {
	Type    string            `json:"type"`
	Content []responseContent `json:"content,omitempty"`
}

type responseContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// DecodeEnvelope extracts the assistant text from a chat-completions envelope
// (choices[0].message.content) or a responses envelope (output[].content[]).
// The shape is chosen by which top-level field is present.
func DecodeEnvelope(raw []byte) (string, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return "", newEnvelopeError(raw)
	}

	if _, ok := fields["choices"]; ok {
		var env chatEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return "", newEnvelopeError(raw)
		}
		if len(env.Choices) == 0 || env.Choices[0].Message.Content == nil {
			return "", nil
		}
		return *env.Choices[0].Message.Content, nil
	}

	if _, ok := fields["output"]; ok {
		var env responsesEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return "", newEnvelopeError(raw)
		}
		return extractOutputText(env.Output), nil
	}

	return "", newEnvelopeError(raw)
}

func extractOutputText(output []responseItem) string {
	var builder strings.Builder
	for _, item := range output {
		if item.Type != "message" {
			continue
		}
		for _, part := range item.Content {
			if part.Type == "output_text" || part.Type == "text" {
				builder.WriteString(part.Text)
			}
		}
	}
	return builder.String()
}

func newEnvelopeError(raw []byte) *EnvelopeError {
	dump := string(raw)
	if len(dump) > maxDumpBytes {
		dump = dump[:maxDumpBytes]
	}
	return &EnvelopeError{Dump: dump}
}
