package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wonny/stockboard/internal/analytics"
	"github.com/wonny/stockboard/internal/contracts"
	"github.com/wonny/stockboard/internal/datasets"
	"github.com/wonny/stockboard/pkg/logger"
)

// DatasetSource serves named datasets
type DatasetSource interface {
	Statuses() []datasets.Status
	Load(ctx context.Context, name string) (*datasets.Result, error)
	Build(ctx context.Context, name string) (*datasets.Result, error)
}

// DatasetHandler handles dataset endpoints
// ⭐ SSOT: 데이터셋 API 핸들러는 이 구조체에서만
type DatasetHandler struct {
	source DatasetSource
	logger *logger.Logger
}

// NewDatasetHandler creates a new dataset handler
func NewDatasetHandler(source DatasetSource, log *logger.Logger) *DatasetHandler {
	return &DatasetHandler{
		source: source,
		logger: log,
	}
}

// DatasetResponse is one dataset table
type DatasetResponse struct {
	Name   string          `json:"name"`
	Origin string          `json:"origin"`
	RunID  string          `json:"run_id,omitempty"`
	Failed []string        `json:"failed"`
	Labels []string        `json:"labels"`
	Count  int             `json:"count"`
	Rows   []contracts.Row `json:"rows"`

	SaveError string `json:"save_error,omitempty"`
}

// List returns every defined dataset with its file state
// GET /api/datasets
func (h *DatasetHandler) List(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"datasets": h.source.Statuses(),
	})
}

// Get returns a dataset, building it when the file is missing
// GET /api/datasets/{name}?refresh=true&label=1 Year
func (h *DatasetHandler) Get(w http.ResponseWriter, r *http.Request) {
	res, ok := h.load(w, r)
	if !ok {
		return
	}

	table := filterLabel(res.Table, r)
	failed := res.Failed
	if failed == nil {
		failed = []string{}
	}
	saveErr := ""
	if res.SaveErr != nil {
		saveErr = res.SaveErr.Error()
	}
	respondJSON(w, http.StatusOK, DatasetResponse{
		Name:      res.Name,
		Origin:    string(res.Origin),
		RunID:     res.RunID,
		Failed:    failed,
		Labels:    res.Table.Labels(),
		Count:     table.Len(),
		Rows:      table.Rows,
		SaveError: saveErr,
	})
}

// RiskReturn returns one risk/return point and the derived metrics per symbol
// GET /api/datasets/{name}/risk-return?label=1 Year
func (h *DatasetHandler) RiskReturn(w http.ResponseWriter, r *http.Request) {
	res, ok := h.load(w, r)
	if !ok {
		return
	}

	series := filterLabel(res.Table, r).Split()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"name":    res.Name,
		"points":  analytics.RiskReturn(series),
		"metrics": analytics.DeriveAll(series),
	})
}

// Aligned returns closes of every symbol on a shared, forward-filled date axis
// GET /api/datasets/{name}/aligned?label=1 Year&format=long
func (h *DatasetHandler) Aligned(w http.ResponseWriter, r *http.Request) {
	res, ok := h.load(w, r)
	if !ok {
		return
	}

	panel := analytics.AlignAndForwardFill(filterLabel(res.Table, r).Split())
	if r.URL.Query().Get("format") == "long" {
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"name":   res.Name,
			"points": panel.Melt(),
		})
		return
	}
	respondJSON(w, http.StatusOK, panel)
}

func (h *DatasetHandler) load(w http.ResponseWriter, r *http.Request) (*datasets.Result, bool) {
	name := mux.Vars(r)["name"]

	var res *datasets.Result
	var err error
	if r.URL.Query().Get("refresh") == "true" {
		res, err = h.source.Build(r.Context(), name)
	} else {
		res, err = h.source.Load(r.Context(), name)
	}

	switch {
	case err == nil:
		return res, true
	case errors.Is(err, datasets.ErrUnknownDataset):
		respondError(w, http.StatusNotFound, "Unknown dataset: "+name)
	case errors.Is(err, datasets.ErrNoData):
		respondError(w, http.StatusServiceUnavailable, "No data available for dataset: "+name)
	default:
		h.logger.WithError(err).WithField("dataset", name).Error("Failed to load dataset")
		respondError(w, http.StatusInternalServerError, "Failed to load dataset")
	}
	return nil, false
}

func filterLabel(t contracts.UnifiedTable, r *http.Request) contracts.UnifiedTable {
	label := r.URL.Query().Get("label")
	if label == "" {
		return t
	}
	return t.ByLabel(label)
}
