package taskservice

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/sentinel-hub/classification-app-backend/internal/config"
	"github.com/sentinel-hub/classification-app-backend/internal/eventbus"
	"github.com/sentinel-hub/classification-app-backend/internal/provider"
	"github.com/sentinel-hub/classification-app-backend/services/sampling"
)

type HTTPServer struct {
	server *http.Server
	router *mux.Router
}

func NewHTTPServer(addr string) *HTTPServer {
	router := mux.NewRouter()

	srv := &http.Server{
		Addr:         addr,
		WriteTimeout: time.Second * 60,
		ReadTimeout:  time.Second * 15,
		IdleTimeout:  time.Second * 60,
		Handler:      router,
	}

	return &HTTPServer{
		server: srv,
		router: router,
	}
}

func (hs *HTTPServer) Start() {
	go func() {
		log.Printf("HTTP server starting on %s", hs.server.Addr)
		if err := hs.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
		}
	}()
}

func (hs *HTTPServer) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := hs.server.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	log.Println("HTTP server stopped")
}

func (hs *HTTPServer) RegisterRoutes(service *Service) {
	hs.router.HandleFunc("/sources", service.ListSourcesHandler).Methods("GET")
	hs.router.HandleFunc("/sources/{source_id}/task", service.NextTaskHandler).Methods("GET")
	hs.router.HandleFunc("/health", healthHandler).Methods("GET")
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// sourceInfo is the public description of a sampling source.
type sourceInfo struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Type        string         `json:"type"`
	Description string         `json:"description,omitempty"`
	Layers      []config.Layer `json:"layers,omitempty"`
}

func (s *Service) ListSourcesHandler(w http.ResponseWriter, _ *http.Request) {
	infos := make([]sourceInfo, 0, len(s.catalog.Sources))
	for _, source := range s.catalog.Sources {
		infos = append(infos, sourceInfo{
			ID:          source.ID,
			Name:        source.Name,
			Type:        string(source.Type),
			Description: source.Description,
			Layers:      source.Layers,
		})
	}
	writeJSON(w, http.StatusOK, infos)
}

func (s *Service) NextTaskHandler(w http.ResponseWriter, r *http.Request) {
	sourceID := mux.Vars(r)["source_id"]
	if _, ok := s.slots[sourceID]; !ok {
		writeError(w, http.StatusNotFound, "unknown source "+sourceID)
		return
	}

	task, err := s.NextTask(r.Context(), sourceID)
	if err != nil {
		log.Printf("Sampling for source %q failed: %v", sourceID, err)
		switch {
		case errors.Is(err, provider.ErrExternalData):
			writeError(w, http.StatusBadGateway, "external data unavailable")
		case errors.Is(err, sampling.ErrSamplingFailed):
			writeError(w, http.StatusServiceUnavailable, "failed to sample a new task")
		default:
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	s.publish(eventbus.TypeTaskCreated, sourceID, task.ID)
	writeJSON(w, http.StatusOK, task.AppPayload())
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
