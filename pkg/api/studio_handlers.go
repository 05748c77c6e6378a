package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/atelierhq/atelier/pkg/httputil"
	"github.com/atelierhq/atelier/pkg/identity"
	"github.com/atelierhq/atelier/pkg/observability"
	"github.com/atelierhq/atelier/pkg/studio"
)

// StudioHandlers serves studio, client, membership, and invitation routes
type StudioHandlers struct {
	studios     *studio.Service
	invitations *studio.InvitationService
	logger      *observability.Logger
}

// NewStudioHandlers creates the studio handlers
func NewStudioHandlers(studios *studio.Service, invitations *studio.InvitationService, logger *observability.Logger) *StudioHandlers {
	return &StudioHandlers{studios: studios, invitations: invitations, logger: logger}
}

// RegisterRoutes registers the studio routes with capability guards
func (h *StudioHandlers) RegisterRoutes(router *mux.Router, mw *identity.Middleware) {
	teamGuard := mw.RequireCapability(identity.CapabilityManageTeam)
	inviteGuard := mw.RequireCapability(identity.CapabilityInviteUsers)
	clientsGuard := mw.RequireCapability(identity.CapabilityViewAllClients)
	dashGuard := mw.RequireStudioMember()

	router.Handle("/studios/{studioID}", http.HandlerFunc(h.getStudio)).Methods("GET")
	router.Handle("/studios/{studioID}/clients", clientsGuard(http.HandlerFunc(h.listClients))).Methods("GET")
	router.Handle("/studios/{studioID}/clients", dashGuard(http.HandlerFunc(h.createClient))).Methods("POST")
	router.Handle("/studios/{studioID}/members", dashGuard(http.HandlerFunc(h.listMembers))).Methods("GET")
	router.Handle("/studios/{studioID}/members", teamGuard(http.HandlerFunc(h.addMember))).Methods("POST")
	router.Handle("/studios/{studioID}/members/{userID}", teamGuard(http.HandlerFunc(h.updateMemberRole))).Methods("PUT")
	router.Handle("/studios/{studioID}/members/{userID}", teamGuard(http.HandlerFunc(h.removeMember))).Methods("DELETE")
	router.Handle("/studios/{studioID}/invitations", inviteGuard(http.HandlerFunc(h.listInvitations))).Methods("GET")
	router.Handle("/studios/{studioID}/invitations", inviteGuard(http.HandlerFunc(h.invite))).Methods("POST")
	router.Handle("/invitations/accept", http.HandlerFunc(h.acceptInvitation)).Methods("POST")
	router.Handle("/clients/{clientID}/users", inviteGuard(http.HandlerFunc(h.listClientUsers))).Methods("GET")
	router.Handle("/clients/{clientID}/users/{userID}/primary", teamGuard(http.HandlerFunc(h.setPrimaryContact))).Methods("PUT")
	router.Handle("/clients/{clientID}/users/{userID}", teamGuard(http.HandlerFunc(h.removeClientUser))).Methods("DELETE")
}

func (h *StudioHandlers) getStudio(w http.ResponseWriter, r *http.Request) {
	studioID, err := httputil.PathInt64(r, "studioID")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	st, err := h.studios.GetStudio(r.Context(), studioID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, st)
}

type createClientRequest struct {
	Name         string `json:"name"`
	ContactEmail string `json:"contact_email"`
}

func (h *StudioHandlers) createClient(w http.ResponseWriter, r *http.Request) {
	studioID, err := httputil.PathInt64(r, "studioID")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	var req createClientRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	if req.Name == "" {
		httputil.WriteBadRequest(w, "name is required")
		return
	}

	client, err := h.studios.CreateClient(r.Context(), studioID, req.Name, req.ContactEmail)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, client)
}

func (h *StudioHandlers) listClients(w http.ResponseWriter, r *http.Request) {
	studioID, err := httputil.PathInt64(r, "studioID")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	clients, err := h.studios.ListClients(r.Context(), studioID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, clients)
}

func (h *StudioHandlers) listMembers(w http.ResponseWriter, r *http.Request) {
	studioID, err := httputil.PathInt64(r, "studioID")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	members, err := h.studios.ListMembers(r.Context(), studioID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, members)
}

type memberRequest struct {
	UserID int64         `json:"user_id"`
	Role   identity.Role `json:"role"`
}

func (h *StudioHandlers) addMember(w http.ResponseWriter, r *http.Request) {
	studioID, err := httputil.PathInt64(r, "studioID")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	var req memberRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.studios.AddMember(r.Context(), studioID, req.UserID, req.Role); err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]string{"status": "added"})
}

type roleRequest struct {
	Role identity.Role `json:"role"`
}

func (h *StudioHandlers) updateMemberRole(w http.ResponseWriter, r *http.Request) {
	studioID, err := httputil.PathInt64(r, "studioID")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	userID, err := httputil.PathInt64(r, "userID")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	var req roleRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.studios.UpdateMemberRole(r.Context(), studioID, userID, req.Role); err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *StudioHandlers) removeMember(w http.ResponseWriter, r *http.Request) {
	studioID, err := httputil.PathInt64(r, "studioID")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	userID, err := httputil.PathInt64(r, "userID")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.studios.RemoveMember(r.Context(), studioID, userID); err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

type inviteRequest struct {
	Email    string        `json:"email"`
	Role     identity.Role `json:"role"`
	ClientID *int64        `json:"client_id,omitempty"`
}

// invite creates a studio invitation, or a client invitation when
// client_id is set.
func (h *StudioHandlers) invite(w http.ResponseWriter, r *http.Request) {
	studioID, err := httputil.PathInt64(r, "studioID")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	var req inviteRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	if req.Email == "" {
		httputil.WriteBadRequest(w, "email is required")
		return
	}

	var inv *studio.Invitation
	if req.ClientID != nil {
		inv, err = h.invitations.InviteToClient(r.Context(), *req.ClientID, req.Email, req.Role)
	} else {
		inv, err = h.invitations.InviteToStudio(r.Context(), studioID, req.Email, req.Role)
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, inv)
}

func (h *StudioHandlers) listInvitations(w http.ResponseWriter, r *http.Request) {
	studioID, err := httputil.PathInt64(r, "studioID")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	invitations, err := h.invitations.ListPending(r.Context(), studioID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, invitations)
}

type acceptRequest struct {
	Token string `json:"token"`
}

func (h *StudioHandlers) acceptInvitation(w http.ResponseWriter, r *http.Request) {
	principal := principalOrUnauthorized(w, r)
	if principal == nil {
		return
	}

	var req acceptRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	inv, err := h.invitations.Accept(r.Context(), req.Token, principal.ID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, inv)
}

func (h *StudioHandlers) listClientUsers(w http.ResponseWriter, r *http.Request) {
	clientID, err := httputil.PathInt64(r, "clientID")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	users, err := h.studios.ListClientUsers(r.Context(), clientID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, users)
}

func (h *StudioHandlers) setPrimaryContact(w http.ResponseWriter, r *http.Request) {
	clientID, err := httputil.PathInt64(r, "clientID")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	userID, err := httputil.PathInt64(r, "userID")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.studios.SetPrimaryContact(r.Context(), clientID, userID); err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *StudioHandlers) removeClientUser(w http.ResponseWriter, r *http.Request) {
	clientID, err := httputil.PathInt64(r, "clientID")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	userID, err := httputil.PathInt64(r, "userID")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.studios.RemoveClientUser(r.Context(), clientID, userID); err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *StudioHandlers) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, studio.ErrNotFound):
		httputil.WriteNotFound(w, err.Error())
	case errors.Is(err, studio.ErrAlreadyMember):
		httputil.WriteConflict(w, err.Error())
	case errors.Is(err, studio.ErrInvalidRole),
		errors.Is(err, studio.ErrInvitationExpired),
		errors.Is(err, studio.ErrInvitationAccepted):
		httputil.WriteBadRequest(w, err.Error())
	default:
		h.logger.WithError(err).Error("studio request failed")
		httputil.WriteInternalError(w)
	}
}
