package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ayusman/signbridge/internal/store"
)

// MappingHandler serves label to phrase tables.
type MappingHandler struct {
	store *store.Store
}

// NewMappingHandler creates a new MappingHandler with the given store.
func NewMappingHandler(s *store.Store) *MappingHandler {
	return &MappingHandler{store: s}
}

type mappingResponse struct {
	Lang    string            `json:"lang"`
	Mapping map[string]string `json:"mapping"`
}

// ServeHTTP handles GET /api/sign-mapping?lang=ASL.
func (h *MappingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	lang := strings.ToUpper(r.URL.Query().Get("lang"))
	if lang == "" {
		lang = "ASL"
	}

	mapping, err := h.store.Mappings().List(lang)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Sign mapping not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to load sign mapping")
		return
	}

	writeJSON(w, http.StatusOK, mappingResponse{Lang: lang, Mapping: mapping})
}
