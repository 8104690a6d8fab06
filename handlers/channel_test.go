package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"

	"trailerreel/models"
	"trailerreel/services/catalog"
)

type fakeChannelService struct {
	itemsResp *models.ChannelItemResult
	itemsErr  error
	allResp   []models.ChannelEntry
	allErr    error
	sources   map[string][]models.MediaSource

	lastQuery models.ChannelQuery
}

func (f *fakeChannelService) Items(_ context.Context, q models.ChannelQuery) (*models.ChannelItemResult, error) {
	f.lastQuery = q
	return f.itemsResp, f.itemsErr
}

func (f *fakeChannelService) AllItems(context.Context) ([]models.ChannelEntry, error) {
	return f.allResp, f.allErr
}

func (f *fakeChannelService) MediaSources(_ context.Context, id string) ([]models.MediaSource, error) {
	return f.sources[id], nil
}

func newTestRouter(ch channelService, in introsService, trigger reconcileTrigger) *mux.Router {
	r := mux.NewRouter()
	Register(r, NewChannelHandler(ch), NewIntrosHandler(in, trigger), nil)
	return r
}

func serve(r http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestChannelItemsParsesQuery(t *testing.T) {
	svc := &fakeChannelService{itemsResp: &models.ChannelItemResult{
		Items:      []models.ChannelEntry{{ID: "550", Name: "Fight Club", IsFolder: true}},
		TotalCount: 1,
	}}
	r := newTestRouter(svc, &fakeIntrosService{}, nil)

	rec := serve(r, http.MethodGet, "/api/channel/items?folderId=popular&startIndex=40&limit=10")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if svc.lastQuery.FolderID != "popular" || *svc.lastQuery.StartIndex != 40 || *svc.lastQuery.Limit != 10 {
		t.Fatalf("unexpected query %+v", svc.lastQuery)
	}

	var body models.ChannelItemResult
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.TotalCount != 1 || body.Items[0].ID != "550" {
		t.Fatalf("unexpected body %+v", body)
	}
}

func TestChannelItemsIgnoresBadPaging(t *testing.T) {
	svc := &fakeChannelService{itemsResp: &models.ChannelItemResult{}}
	r := newTestRouter(svc, &fakeIntrosService{}, nil)

	serve(r, http.MethodGet, "/api/channel/items?folderId=upcoming&startIndex=-5&limit=abc")
	if svc.lastQuery.StartIndex != nil || svc.lastQuery.Limit != nil {
		t.Fatalf("expected paging to be dropped, got %+v", svc.lastQuery)
	}
}

func TestChannelItemsUpstreamErrorIsBadGateway(t *testing.T) {
	svc := &fakeChannelService{itemsErr: fmt.Errorf("list: %w", catalog.ErrUpstream)}
	r := newTestRouter(svc, &fakeIntrosService{}, nil)

	rec := serve(r, http.MethodGet, "/api/channel/items?folderId=upcoming")
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}

	svc.itemsErr = errors.New("something else")
	rec = serve(r, http.MethodGet, "/api/channel/items?folderId=upcoming")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestChannelAll(t *testing.T) {
	svc := &fakeChannelService{allResp: []models.ChannelEntry{{ID: "v1"}, {ID: "v2"}}}
	r := newTestRouter(svc, &fakeIntrosService{}, nil)

	rec := serve(r, http.MethodGet, "/api/channel/all")
	var body models.ChannelItemResult
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.TotalCount != 2 {
		t.Fatalf("expected 2 entries, got %d", body.TotalCount)
	}
}

func TestChannelMediaSources(t *testing.T) {
	svc := &fakeChannelService{sources: map[string][]models.MediaSource{
		"v1": {{ID: "v1", Path: "https://cdn.example/v1", Protocol: "http", IsRemote: true}},
	}}
	r := newTestRouter(svc, &fakeIntrosService{}, nil)

	rec := serve(r, http.MethodGet, "/api/channel/media/v1")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var sources []models.MediaSource
	if err := json.NewDecoder(rec.Body).Decode(&sources); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(sources) != 1 || sources[0].Path != "https://cdn.example/v1" {
		t.Fatalf("unexpected sources %+v", sources)
	}

	rec = serve(r, http.MethodGet, "/api/channel/media/unknown")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
