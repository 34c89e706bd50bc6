package surface

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
)

// Snapshot is the read side of a Monitor
type Snapshot interface {
	Patterns() []PatternView
	Pointers() []PointerView
}

// NewRouter exposes the live elements as JSON, the change stream over websocket (when hub is set)
// and metrics (when metricsHandler is set).
func NewRouter(snapshot Snapshot, hub *Hub, metricsHandler http.Handler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)
	r.HandleFunc("/api/patterns", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, snapshot.Patterns())
	}).Methods(http.MethodGet)
	r.HandleFunc("/api/patterns/{key}", func(w http.ResponseWriter, req *http.Request) {
		key := mux.Vars(req)["key"]
		for _, p := range snapshot.Patterns() {
			if p.Key == key {
				writeJSON(w, http.StatusOK, p)
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "pattern " + key + " not found"})
	}).Methods(http.MethodGet)
	r.HandleFunc("/api/pointers", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, snapshot.Pointers())
	}).Methods(http.MethodGet)
	r.HandleFunc("/api/pointers/{key}", func(w http.ResponseWriter, req *http.Request) {
		key := mux.Vars(req)["key"]
		for _, p := range snapshot.Pointers() {
			if p.Key == key {
				writeJSON(w, http.StatusOK, p)
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "pointer " + key + " not found"})
	}).Methods(http.MethodGet)
	if hub != nil {
		r.HandleFunc("/ws", hub.ServeWS)
	}
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
