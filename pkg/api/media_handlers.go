package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/atelierhq/atelier/pkg/httputil"
	"github.com/atelierhq/atelier/pkg/identity"
	"github.com/atelierhq/atelier/pkg/media"
	"github.com/atelierhq/atelier/pkg/observability"
)

// MediaHandlers serves asset upload and download routes
type MediaHandlers struct {
	media  *media.Service
	logger *observability.Logger
}

// NewMediaHandlers creates the media handlers
func NewMediaHandlers(svc *media.Service, logger *observability.Logger) *MediaHandlers {
	return &MediaHandlers{media: svc, logger: logger}
}

// RegisterRoutes registers the media routes with capability guards
func (h *MediaHandlers) RegisterRoutes(router *mux.Router, mw *identity.Middleware) {
	uploadGuard := mw.RequireCapability(identity.CapabilityUploadAssets)
	deleteGuard := mw.RequireCapability(identity.CapabilityManageProjects)

	router.Handle("/projects/{projectID}/assets", http.HandlerFunc(h.listAssets)).Methods("GET")
	router.Handle("/projects/{projectID}/assets", uploadGuard(http.HandlerFunc(h.initiateUpload))).Methods("POST")
	router.Handle("/assets/{assetID}/download", http.HandlerFunc(h.downloadURL)).Methods("GET")
	router.Handle("/assets/{assetID}", deleteGuard(http.HandlerFunc(h.deleteAsset))).Methods("DELETE")
}

type uploadRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
}

func (h *MediaHandlers) initiateUpload(w http.ResponseWriter, r *http.Request) {
	principal := principalOrUnauthorized(w, r)
	if principal == nil {
		return
	}

	projectID, err := httputil.PathInt64(r, "projectID")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	var req uploadRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	ticket, err := h.media.InitiateUpload(r.Context(), projectID, principal.ID, req.Filename, req.ContentType, req.SizeBytes)
	if err != nil {
		if errors.Is(err, media.ErrNotFound) {
			httputil.WriteNotFound(w, err.Error())
			return
		}
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, ticket)
}

func (h *MediaHandlers) listAssets(w http.ResponseWriter, r *http.Request) {
	projectID, err := httputil.PathInt64(r, "projectID")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	assets, err := h.media.ListAssets(r.Context(), projectID)
	if err != nil {
		h.logger.WithError(err).Error("asset listing failed")
		httputil.WriteInternalError(w)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, assets)
}

func (h *MediaHandlers) downloadURL(w http.ResponseWriter, r *http.Request) {
	assetID, err := httputil.PathInt64(r, "assetID")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	url, err := h.media.DownloadURL(r.Context(), assetID)
	if err != nil {
		if errors.Is(err, media.ErrNotFound) {
			httputil.WriteNotFound(w, err.Error())
			return
		}
		h.logger.WithError(err).Error("download presign failed")
		httputil.WriteInternalError(w)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"url": url})
}

func (h *MediaHandlers) deleteAsset(w http.ResponseWriter, r *http.Request) {
	assetID, err := httputil.PathInt64(r, "assetID")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.media.DeleteAsset(r.Context(), assetID); err != nil {
		if errors.Is(err, media.ErrNotFound) {
			httputil.WriteNotFound(w, err.Error())
			return
		}
		h.logger.WithError(err).Error("asset deletion failed")
		httputil.WriteInternalError(w)
		return
	}
	httputil.WriteNoContent(w)
}
