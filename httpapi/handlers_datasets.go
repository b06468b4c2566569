package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/lunara/reportmesh/dataset"
)

type saveDatasetRequest struct {
	Name string          `json:"name"`
	SQL  string          `json:"sql"`
	Data json.RawMessage `json:"data"`
}

type datasetListResponse struct {
	Datasets []dataset.Summary `json:"datasets"`
	Count    int               `json:"count"`
}

func (h *handlers) handleDatasetList(w http.ResponseWriter, r *http.Request) {
	items, err := h.datasets.List(r.Context())
	if err != nil {
		writeMappedError(w, err)
		return
	}

	if items == nil {
		items = []dataset.Summary{}
	}

	writeJSON(w, http.StatusOK, datasetListResponse{Datasets: items, Count: len(items)})
}

func (h *handlers) handleDatasetGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeInvalidRequest(w, err.Error())
		return
	}

	ds, err := h.datasets.Get(r.Context(), id)
	if err != nil {
		writeMappedError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ds)
}

func (h *handlers) handleDatasetSave(w http.ResponseWriter, r *http.Request) {
	var req saveDatasetRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeInvalidRequest(w, err.Error())
		return
	}

	if strings.TrimSpace(req.Name) == "" {
		writeInvalidRequest(w, "name is required")
		return
	}

	if len(req.Data) > 0 && !json.Valid(req.Data) {
		writeInvalidRequest(w, "data must be valid JSON")
		return
	}

	ds, err := h.datasets.Save(r.Context(), dataset.Dataset{Name: req.Name, SQL: req.SQL, Data: req.Data})
	if err != nil {
		writeMappedError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, ds)
}
