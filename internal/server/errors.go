package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"formula-gateway/internal/formula"
	"formula-gateway/internal/invoker"
	"formula-gateway/internal/provider"
	"formula-gateway/internal/workbook"
)

// errorStyle selects how upstream API errors are rendered. The generator
// keeps the raw body in details, the assistant folds it into the message.
type errorStyle int

const (
	styleGenerator errorStyle = iota
	styleAssistant
)

const upstreamErrorMessage = "OpenAI API error"

type requestError struct {
	Status  int
	Message string
	Details *string
	Cause   string
}

func (e requestError) Error() string {
	return e.Message
}

type errorBody struct {
	Error   string  `json:"error"`
	Details *string `json:"details,omitempty"`
	Message string  `json:"message,omitempty"`
}

func jsonErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var reqErr requestError
	if errors.As(err, &reqErr) {
		_ = c.JSON(reqErr.Status, errorBody{Error: reqErr.Message, Details: reqErr.Details, Message: reqErr.Cause})
		return
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		if he.Code == http.StatusMethodNotAllowed {
			_ = c.JSON(he.Code, errorBody{Error: "Method not allowed"})
			return
		}
		_ = c.JSON(he.Code, errorBody{Error: fmt.Sprint(he.Message)})
		return
	}

	slog.Error("unhandled error", "err", err)
	_ = c.JSON(http.StatusInternalServerError, errorBody{Error: "Internal server error", Message: err.Error()})
}

func toHTTPError(style errorStyle, err error) error {
	var reqErr requestError
	if errors.As(err, &reqErr) {
		return reqErr
	}

	switch {
	case errors.Is(err, formula.ErrEmptyQuery):
		return requestError{Status: http.StatusBadRequest, Message: "Query is required"}
	case errors.Is(err, provider.ErrNoCredential):
		return requestError{Status: http.StatusInternalServerError, Message: provider.ErrNoCredential.Error()}
	case errors.Is(err, workbook.ErrInvalidWorkbook):
		return requestError{Status: http.StatusBadRequest, Message: "Invalid Excel file"}
	}

	var apiErr *provider.APIError
	if errors.As(err, &apiErr) {
		if style == styleAssistant {
			return requestError{
				Status:  apiErr.StatusCode,
				Message: fmt.Sprintf("%s: %d %s", upstreamErrorMessage, apiErr.StatusCode, apiErr.Body),
			}
		}
		body := apiErr.Body
		return requestError{Status: apiErr.StatusCode, Message: upstreamErrorMessage, Details: &body}
	}

	var envErr *provider.EnvelopeError
	if errors.As(err, &envErr) {
		dump := envErr.Dump
		return requestError{Status: http.StatusInternalServerError, Message: "Unexpected response structure", Details: &dump}
	}

	if errors.Is(err, invoker.ErrNoAnswer) {
		cause := err.Error()
		return requestError{Status: http.StatusBadGateway, Message: upstreamErrorMessage, Details: &cause}
	}

	slog.Error("request failed", "err", err)
	return requestError{Status: http.StatusInternalServerError, Message: "Internal server error", Cause: err.Error()}
}
