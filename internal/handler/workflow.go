package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/segyhp/ledger-engine/internal/service"
	"github.com/segyhp/ledger-engine/pkg/response"
)

type WorkflowHandler struct {
	audit *service.AuditService
}

func NewWorkflowHandler(audit *service.AuditService) *WorkflowHandler {
	return &WorkflowHandler{audit: audit}
}

// History returns the audit trail of a request, oldest step first.
func (h *WorkflowHandler) History(w http.ResponseWriter, r *http.Request) {
	steps, err := h.audit.GetHistory(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	response.Success(w, steps)
}
