package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"trailerreel/models"
	"trailerreel/services/intros"
	"trailerreel/services/scheduler"
)

type introsService interface {
	Intros(count int) []models.IntroInfo
	Status() *models.ReconcileResult
	DefaultCount() int
	Enabled() bool
}

type reconcileTrigger interface {
	TriggerNow(context.Context) (*models.ReconcileResult, error)
}

var (
	_ introsService    = (*intros.Service)(nil)
	_ reconcileTrigger = (*scheduler.Service)(nil)
)

type IntrosHandler struct {
	Service introsService
	Trigger reconcileTrigger
}

func NewIntrosHandler(s introsService, trigger reconcileTrigger) *IntrosHandler {
	return &IntrosHandler{Service: s, Trigger: trigger}
}

// List returns random intros from the last reconciliation; count defaults to
// the configured intro count.
func (h *IntrosHandler) List(w http.ResponseWriter, r *http.Request) {
	count := h.Service.DefaultCount()
	if raw := r.URL.Query().Get("count"); raw != "" {
		v, ok := parseNonNegative(raw)
		if !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "count must be a non-negative integer"})
			return
		}
		count = v
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.Service.Intros(count))
}

type introStatusResponse struct {
	Enabled bool                    `json:"enabled"`
	Last    *models.ReconcileResult `json:"last,omitempty"`
}

func (h *IntrosHandler) Status(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(introStatusResponse{
		Enabled: h.Service.Enabled(),
		Last:    h.Service.Status(),
	})
}

func (h *IntrosHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	if !h.Service.Enabled() {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"error": "intros are disabled"})
		return
	}

	result, err := h.Trigger.TriggerNow(r.Context())
	if err != nil {
		log.Printf("[intros] manual reconciliation failed: %v", err)
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}
