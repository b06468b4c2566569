package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/lunara/reportmesh/core"
	"github.com/lunara/reportmesh/report"
)

type createReportRequest struct {
	Name string `json:"name"`
}

type updateReportRequest struct {
	Name   *string      `json:"name,omitempty"`
	Blocks []core.Block `json:"blocks,omitempty"`
}

type reportListResponse struct {
	Reports []report.Report `json:"reports"`
	Count   int             `json:"count"`
}

func (h *handlers) handleReportList(w http.ResponseWriter, r *http.Request) {
	reports, err := h.reports.List(r.Context())
	if err != nil {
		writeMappedError(w, err)
		return
	}

	if reports == nil {
		reports = []report.Report{}
	}

	writeJSON(w, http.StatusOK, reportListResponse{Reports: reports, Count: len(reports)})
}

func (h *handlers) handleReportCreate(w http.ResponseWriter, r *http.Request) {
	var req createReportRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeInvalidRequest(w, err.Error())
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeInvalidRequest(w, "name is required")
		return
	}

	rep, err := h.reports.Create(r.Context(), name)
	if err != nil {
		writeMappedError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, rep)
}

func (h *handlers) handleReportGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeInvalidRequest(w, err.Error())
		return
	}

	rep, err := h.reports.Get(r.Context(), id)
	if err != nil {
		writeMappedError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, rep)
}

func (h *handlers) handleReportUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeInvalidRequest(w, err.Error())
		return
	}

	var req updateReportRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeInvalidRequest(w, err.Error())
		return
	}

	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		writeInvalidRequest(w, "name must not be empty")
		return
	}

	rep, err := h.reports.Update(r.Context(), id, report.Update{Name: req.Name, Blocks: req.Blocks})
	if err != nil {
		writeMappedError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, rep)
}

func (h *handlers) handleReportDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeInvalidRequest(w, err.Error())
		return
	}

	if err := h.reports.Delete(r.Context(), id); err != nil {
		writeMappedError(w, err)
		return
	}

	h.engine.Sessions().DropScope(strconv.FormatInt(id, 10))

	w.WriteHeader(http.StatusNoContent)
}
