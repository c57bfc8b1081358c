package importer

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Handler handles bulk import HTTP requests
type Handler struct {
	service *Service
	log     zerolog.Logger
}

// NewHandler creates a new importer handler
func NewHandler(service *Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "importer").Logger(),
	}
}

// HandleImport handles POST /import - CSV upload, either as a multipart
// form field named "file" or as a raw CSV body.
func (h *Handler) HandleImport(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "client")

	body := r.Body
	if err := r.ParseMultipartForm(32 << 20); err == nil {
		file, _, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "multipart form must carry a \"file\" field", http.StatusBadRequest)
			return
		}
		defer file.Close()
		body = file
	}

	report, err := h.service.Import(clientID, body)
	if err != nil {
		h.log.Error().Err(err).Str("client", clientID).Msg("Import batch rejected")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(report)
}
