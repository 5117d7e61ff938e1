package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/kozaktomas/facemood/internal/database"
	"github.com/kozaktomas/facemood/internal/enrollment"
	"github.com/kozaktomas/facemood/internal/facematch"
	"github.com/kozaktomas/facemood/internal/recognition"
)

// IdentityResponse represents an enrolled identity in API responses
type IdentityResponse struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Surname      string `json:"surname"`
	Contact      string `json:"contact"`
	Label        string `json:"label"`
	EmbeddingDim int    `json:"embedding_dim"`
	CreatedAt    string `json:"created_at"`
}

func identityToResponse(i database.Identity) IdentityResponse {
	return IdentityResponse{
		ID:           i.ID,
		Name:         i.Name,
		Surname:      i.Surname,
		Contact:      i.Contact,
		Label:        i.Label(),
		EmbeddingDim: len(i.Embedding),
		CreatedAt:    i.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// IdentitiesHandler handles enrollment and identity maintenance endpoints
type IdentitiesHandler struct {
	store      database.IdentityWriter
	enrollment *enrollment.Service
	index      *recognition.IdentityIndex
}

// NewIdentitiesHandler creates a new identities handler
func NewIdentitiesHandler(store database.IdentityWriter, svc *enrollment.Service, index *recognition.IdentityIndex) *IdentitiesHandler {
	return &IdentitiesHandler{
		store:      store,
		enrollment: svc,
		index:      index,
	}
}

// List returns all identities, optionally filtered by a diacritics-insensitive name fragment
func (h *IdentitiesHandler) List(w http.ResponseWriter, r *http.Request) {
	identities, err := h.store.ListIdentities(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	query := facematch.NormalizePersonName(r.URL.Query().Get("name"))
	result := make([]IdentityResponse, 0, len(identities))
	for _, identity := range identities {
		if query != "" && !strings.Contains(facematch.NormalizePersonName(identity.Label()), query) {
			continue
		}
		result = append(result, identityToResponse(identity))
	}

	respondJSON(w, http.StatusOK, result)
}

// Get returns a single identity
func (h *IdentitiesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	identity, err := h.store.GetIdentity(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, identityToResponse(*identity))
}

// Create enrolls a new identity from a JSON body with an embedding, or from a
// multipart form carrying the fields and an "image" file.
func (h *IdentitiesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var (
		id  int64
		err error
	)

	if isMultipart(r) {
		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			respondError(w, http.StatusBadRequest, "failed to parse multipart form")
			return
		}
		var image []byte
		image, err = readImageField(r.MultipartForm)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		req := enrollment.Request{
			Name:    r.FormValue("name"),
			Surname: r.FormValue("surname"),
			Contact: r.FormValue("contact"),
		}
		id, err = h.enrollment.EnrollImage(r.Context(), req, image)
	} else {
		var req enrollment.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, errInvalidRequestBody)
			return
		}
		id, err = h.enrollment.Enroll(r.Context(), req)
	}
	if err != nil {
		respondServiceError(w, err)
		return
	}

	h.refreshIndex(r)

	identity, err := h.store.GetIdentity(r.Context(), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, identityToResponse(*identity))
}

// Delete removes an identity and its detection history
func (h *IdentitiesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.store.DeleteIdentity(r.Context(), id); err != nil {
		respondServiceError(w, err)
		return
	}

	h.refreshIndex(r)
	respondJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

// refreshIndex makes local changes visible to recognition; a failure keeps the old snapshot.
func (h *IdentitiesHandler) refreshIndex(r *http.Request) {
	if h.index == nil {
		return
	}
	if err := h.index.Refresh(r.Context()); err != nil {
		log.Printf("Warning: failed to refresh identity index: %v", err)
	}
}
