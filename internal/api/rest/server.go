package rest

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Server represents the REST API server
type Server struct {
	port    string
	server  *http.Server
	handler *Handler
}

// NewServer creates a new REST API server
func NewServer(port string, handler *Handler, log *zap.Logger) *Server {
	return &Server{
		port:    port,
		handler: handler,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%s", port),
			Handler: newRouter(handler, log),
		},
	}
}

func newRouter(handler *Handler, log *zap.Logger) *mux.Router {
	router := mux.NewRouter()

	// Apply middleware
	router.Use(RecoveryMiddleware(log))
	router.Use(LoggingMiddleware(log))
	router.Use(CORSMiddleware)

	// Health check
	router.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	// API v1 routes
	api := router.PathPrefix("/api/v1").Subrouter()

	// Feature vectors
	api.HandleFunc("/features", handler.AssembleFeatures).Methods("POST")
	api.HandleFunc("/features/catalog", handler.GetFeatureCatalog).Methods("GET")

	// League context
	api.HandleFunc("/league/{seasonID}/context", handler.GetLeagueContext).Methods("GET")

	// Extraction jobs
	api.HandleFunc("/extract", handler.StartExtraction).Methods("POST")
	api.HandleFunc("/extract/status", handler.GetExtractionStatus).Methods("GET")
	api.HandleFunc("/extract/{jobID}/rows", handler.GetExtractionRows).Methods("GET")

	return router
}

// Start starts the REST API server
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
