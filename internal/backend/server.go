package backend

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/mux"

	"github.com/Shubhamsk2000/Smart-basket-Mini-project/internal/store"
)

// Catalog is the slice of the product store the lookup route needs.
type Catalog interface {
	FindByBarcode(ctx context.Context, barcode string) (store.Product, error)
}

// Config tunes the lookup service.
type Config struct {
	// RequireClient answers 503 while no frontend is connected, since a scan
	// nobody sees would be lost.
	RequireClient bool
	// AllowedOrigin is sent as Access-Control-Allow-Origin and checked on
	// websocket upgrades. Empty means "*".
	AllowedOrigin string
}

type Server struct {
	cfg        Config
	catalog    Catalog
	hub        *Hub
	publishers []Publisher
	logger     *slog.Logger
	router     *mux.Router
}

// NewServer wires the routes. Events go to the hub and to every extra publisher.
func NewServer(cfg Config, catalog Catalog, hub *Hub, logger *slog.Logger, extra ...Publisher) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.AllowedOrigin == "" {
		cfg.AllowedOrigin = "*"
	}
	s := &Server{
		cfg:        cfg,
		catalog:    catalog,
		hub:        hub,
		publishers: extra,
		logger:     logger,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	// Payloads are arbitrary text: keep "%2F" and "//" intact instead of
	// splitting or redirecting.
	r.UseEncodedPath()
	r.SkipClean(true)

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods(http.MethodGet)
	r.Handle("/ws", s.hub).Methods(http.MethodGet)
	r.HandleFunc("/api/{barcode:.+}", s.handleScan).Methods(http.MethodPost, http.MethodOptions)

	r.Use(mux.CORSMethodMiddleware(r))
	r.Use(s.cors)
	return r
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.cfg.AllowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type messageResponse struct {
	Message string         `json:"message"`
	Barcode string         `json:"barcode,omitempty"`
	Product *store.Product `json:"product,omitempty"`
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	barcode, err := url.PathUnescape(mux.Vars(r)["barcode"])
	if err != nil || strings.TrimSpace(barcode) == "" {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "Barcode parameter is required."})
		return
	}
	log := s.logger.With("barcode", barcode)
	log.Info("received scan")

	if s.cfg.RequireClient && s.hub.Clients() == 0 {
		log.Error("no frontend connected, cannot emit event")
		writeJSON(w, http.StatusServiceUnavailable, messageResponse{
			Message: "Real-time service unavailable (Frontend client not connected).",
		})
		return
	}

	product, err := s.catalog.FindByBarcode(r.Context(), barcode)
	switch {
	case errors.Is(err, store.ErrNotFound):
		log.Info("product not found")
		s.emit(NewEvent(EventProductNotFound, map[string]string{"barcode": barcode}))
		writeJSON(w, http.StatusNotFound, messageResponse{
			Message: "Product not found for the given barcode.",
			Barcode: barcode,
		})
	case err != nil:
		log.Error("product lookup failed", "error", err)
		s.emit(NewEvent(EventScanError, map[string]string{
			"barcode": barcode,
			"message": "Internal server error during product lookup.",
		}))
		writeJSON(w, http.StatusInternalServerError, messageResponse{
			Message: "Internal server error processing the request.",
		})
	default:
		log.Info("product found", "name", product.Name)
		s.emit(NewEvent(EventProductAdded, product))
		writeJSON(w, http.StatusOK, messageResponse{
			Message: "Product found and sent to frontend.",
			Product: &product,
		})
	}
}

// emit never fails the request: the scanner already got its answer.
func (s *Server) emit(ev Event) {
	if err := s.hub.Publish(ev); err != nil {
		s.logger.Warn("websocket publish failed", "type", ev.Type, "error", err)
	}
	for _, p := range s.publishers {
		if err := p.Publish(ev); err != nil {
			s.logger.Warn("event publish failed", "type", ev.Type, "error", err)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
