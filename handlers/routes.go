package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// Register mounts the channel and intro endpoints under /api. reconcileLimit
// guards the manual reconciliation trigger.
func Register(r *mux.Router, ch *ChannelHandler, in *IntrosHandler, reconcileLimit mux.MiddlewareFunc) {
	apiRouter := r.PathPrefix("/api").Subrouter()

	apiRouter.HandleFunc("/channel/items", ch.Items).Methods(http.MethodGet)
	apiRouter.HandleFunc("/channel/all", ch.All).Methods(http.MethodGet)
	apiRouter.HandleFunc("/channel/media/{id}", ch.MediaSources).Methods(http.MethodGet)

	apiRouter.HandleFunc("/intros", in.List).Methods(http.MethodGet)
	apiRouter.HandleFunc("/intros/status", in.Status).Methods(http.MethodGet)

	var reconcile http.Handler = http.HandlerFunc(in.Reconcile)
	if reconcileLimit != nil {
		reconcile = reconcileLimit(reconcile)
	}
	apiRouter.Handle("/intros/reconcile", reconcile).Methods(http.MethodPost)
}
