package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wonny/stockboard/internal/contracts"
	"github.com/wonny/stockboard/internal/datasets"
	"github.com/wonny/stockboard/internal/qa"
	"github.com/wonny/stockboard/pkg/logger"
)

// Asker answers a question about a table
type Asker interface {
	Ask(ctx context.Context, t contracts.UnifiedTable, question string) (string, error)
}

// AskHandler forwards dataset questions to the question-answering service
type AskHandler struct {
	source DatasetSource
	asker  Asker
	logger *logger.Logger
}

// NewAskHandler creates a new ask handler
func NewAskHandler(source DatasetSource, asker Asker, log *logger.Logger) *AskHandler {
	return &AskHandler{
		source: source,
		asker:  asker,
		logger: log,
	}
}

// AskRequest is the body of POST /api/ask
type AskRequest struct {
	Dataset  string `json:"dataset"`
	Question string `json:"question"`
}

// Ask answers a question about a dataset
// POST /api/ask
func (h *AskHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Dataset == "" {
		req.Dataset = "stock_trend_data"
	}

	res, err := h.source.Load(r.Context(), req.Dataset)
	if err != nil {
		if errors.Is(err, datasets.ErrUnknownDataset) {
			respondError(w, http.StatusNotFound, "Unknown dataset: "+req.Dataset)
			return
		}
		h.logger.WithError(err).WithField("dataset", req.Dataset).Error("Failed to load dataset for question")
		respondError(w, http.StatusServiceUnavailable, qa.UserMessage(qa.ErrNoData))
		return
	}

	answer, err := h.asker.Ask(r.Context(), res.Table, req.Question)
	if err != nil {
		respondError(w, askStatus(err), qa.UserMessage(err))
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"dataset": req.Dataset,
		"answer":  answer,
	})
}

func askStatus(err error) int {
	var llmErr *contracts.LLMError
	switch {
	case errors.Is(err, qa.ErrEmptyQuestion):
		return http.StatusBadRequest
	case errors.Is(err, qa.ErrNoData):
		return http.StatusServiceUnavailable
	case errors.As(err, &llmErr) && llmErr.Kind == contracts.LLMMalformedResponse:
		return http.StatusBadGateway
	case errors.As(err, &llmErr):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
