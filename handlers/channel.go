package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"trailerreel/models"
	"trailerreel/services/channel"
)

type channelService interface {
	Items(context.Context, models.ChannelQuery) (*models.ChannelItemResult, error)
	AllItems(context.Context) ([]models.ChannelEntry, error)
	MediaSources(context.Context, string) ([]models.MediaSource, error)
}

var _ channelService = (*channel.Service)(nil)

type ChannelHandler struct {
	Service channelService
}

func NewChannelHandler(s channelService) *ChannelHandler {
	return &ChannelHandler{Service: s}
}

// Items lists a channel folder. folderId selects the folder (empty for the
// category folders); startIndex and limit page through a category.
func (h *ChannelHandler) Items(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := models.ChannelQuery{FolderID: strings.TrimSpace(q.Get("folderId"))}
	if v, ok := parseNonNegative(q.Get("startIndex")); ok {
		query.StartIndex = &v
	}
	if v, ok := parseNonNegative(q.Get("limit")); ok && v > 0 {
		query.Limit = &v
	}

	result, err := h.Service.Items(r.Context(), query)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func (h *ChannelHandler) All(w http.ResponseWriter, r *http.Request) {
	items, err := h.Service.AllItems(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(models.ChannelItemResult{Items: items, TotalCount: len(items)})
}

func (h *ChannelHandler) MediaSources(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(mux.Vars(r)["id"])
	sources, err := h.Service.MediaSources(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if len(sources) == 0 {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "no playable stream for " + id})
		return
	}
	json.NewEncoder(w).Encode(sources)
}

func writeServiceError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if channel.IsUpstreamError(err) {
		status = http.StatusBadGateway
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func parseNonNegative(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}
