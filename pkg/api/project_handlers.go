package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/atelierhq/atelier/pkg/httputil"
	"github.com/atelierhq/atelier/pkg/identity"
	"github.com/atelierhq/atelier/pkg/observability"
	"github.com/atelierhq/atelier/pkg/projects"
)

// ProjectHandlers serves project, milestone, and task routes
type ProjectHandlers struct {
	projects *projects.Service
	logger   *observability.Logger
}

// NewProjectHandlers creates the project handlers
func NewProjectHandlers(svc *projects.Service, logger *observability.Logger) *ProjectHandlers {
	return &ProjectHandlers{projects: svc, logger: logger}
}

// RegisterRoutes registers the project routes with capability guards
func (h *ProjectHandlers) RegisterRoutes(router *mux.Router, mw *identity.Middleware) {
	manageGuard := mw.RequireCapability(identity.CapabilityManageProjects)
	deleteGuard := mw.RequireCapability(identity.CapabilityDeleteProjects)

	router.Handle("/studios/{studioID}/projects", http.HandlerFunc(h.listProjects)).Methods("GET")
	router.Handle("/studios/{studioID}/projects", manageGuard(http.HandlerFunc(h.createProject))).Methods("POST")
	router.Handle("/projects/{projectID}", http.HandlerFunc(h.getProject)).Methods("GET")
	router.Handle("/projects/{projectID}/status", manageGuard(http.HandlerFunc(h.updateStatus))).Methods("PUT")
	router.Handle("/projects/{projectID}", deleteGuard(http.HandlerFunc(h.deleteProject))).Methods("DELETE")
	router.Handle("/projects/{projectID}/milestones", http.HandlerFunc(h.listMilestones)).Methods("GET")
	router.Handle("/projects/{projectID}/milestones", manageGuard(http.HandlerFunc(h.createMilestone))).Methods("POST")
	router.Handle("/milestones/{milestoneID}/complete", manageGuard(http.HandlerFunc(h.completeMilestone))).Methods("POST")
	router.Handle("/projects/{projectID}/tasks", http.HandlerFunc(h.listTasks)).Methods("GET")
	router.Handle("/projects/{projectID}/tasks", manageGuard(http.HandlerFunc(h.createTask))).Methods("POST")
	router.Handle("/tasks/{taskID}", manageGuard(http.HandlerFunc(h.updateTask))).Methods("PUT")
}

type createProjectRequest struct {
	ClientID    int64  `json:"client_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *ProjectHandlers) createProject(w http.ResponseWriter, r *http.Request) {
	studioID, err := httputil.PathInt64(r, "studioID")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	var req createProjectRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	if req.Name == "" {
		httputil.WriteBadRequest(w, "name is required")
		return
	}
	if req.ClientID == 0 {
		httputil.WriteBadRequest(w, "client_id is required")
		return
	}

	project, err := h.projects.CreateProject(r.Context(), studioID, req.ClientID, req.Name, req.Description)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, project)
}

func (h *ProjectHandlers) getProject(w http.ResponseWriter, r *http.Request) {
	projectID, err := httputil.PathInt64(r, "projectID")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	project, err := h.projects.GetProject(r.Context(), projectID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, project)
}

func (h *ProjectHandlers) listProjects(w http.ResponseWriter, r *http.Request) {
	studioID, err := httputil.PathInt64(r, "studioID")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	var clientID *int64
	if raw := r.URL.Query().Get("client_id"); raw != "" {
		id := int64(httputil.QueryInt(r, "client_id", 0))
		if id == 0 {
			httputil.WriteBadRequest(w, "invalid client_id")
			return
		}
		clientID = &id
	}

	list, err := h.projects.ListProjects(r.Context(), studioID, clientID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

type statusRequest struct {
	Status projects.ProjectStatus `json:"status"`
}

func (h *ProjectHandlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	projectID, err := httputil.PathInt64(r, "projectID")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	var req statusRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.projects.UpdateStatus(r.Context(), projectID, req.Status); err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": string(req.Status)})
}

func (h *ProjectHandlers) deleteProject(w http.ResponseWriter, r *http.Request) {
	projectID, err := httputil.PathInt64(r, "projectID")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.projects.DeleteProject(r.Context(), projectID); err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

type milestoneRequest struct {
	Title   string     `json:"title"`
	DueDate *time.Time `json:"due_date,omitempty"`
}

func (h *ProjectHandlers) createMilestone(w http.ResponseWriter, r *http.Request) {
	projectID, err := httputil.PathInt64(r, "projectID")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	var req milestoneRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	if req.Title == "" {
		httputil.WriteBadRequest(w, "title is required")
		return
	}

	milestone, err := h.projects.CreateMilestone(r.Context(), projectID, req.Title, req.DueDate)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, milestone)
}

func (h *ProjectHandlers) completeMilestone(w http.ResponseWriter, r *http.Request) {
	milestoneID, err := httputil.PathInt64(r, "milestoneID")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	if err := h.projects.CompleteMilestone(r.Context(), milestoneID); err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "completed"})
}

func (h *ProjectHandlers) listMilestones(w http.ResponseWriter, r *http.Request) {
	projectID, err := httputil.PathInt64(r, "projectID")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	milestones, err := h.projects.ListMilestones(r.Context(), projectID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, milestones)
}

type taskRequest struct {
	Title       string `json:"title"`
	MilestoneID *int64 `json:"milestone_id,omitempty"`
}

func (h *ProjectHandlers) createTask(w http.ResponseWriter, r *http.Request) {
	projectID, err := httputil.PathInt64(r, "projectID")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	var req taskRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	if req.Title == "" {
		httputil.WriteBadRequest(w, "title is required")
		return
	}

	task, err := h.projects.CreateTask(r.Context(), projectID, req.MilestoneID, req.Title)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, task)
}

type taskUpdateRequest struct {
	Status     projects.TaskStatus `json:"status,omitempty"`
	AssigneeID *int64              `json:"assignee_id,omitempty"`
}

func (h *ProjectHandlers) updateTask(w http.ResponseWriter, r *http.Request) {
	taskID, err := httputil.PathInt64(r, "taskID")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	var req taskUpdateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	if req.AssigneeID != nil {
		if err := h.projects.AssignTask(r.Context(), taskID, *req.AssigneeID); err != nil {
			h.writeError(w, err)
			return
		}
	}
	if req.Status != "" {
		if err := h.projects.UpdateTaskStatus(r.Context(), taskID, req.Status); err != nil {
			h.writeError(w, err)
			return
		}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *ProjectHandlers) listTasks(w http.ResponseWriter, r *http.Request) {
	projectID, err := httputil.PathInt64(r, "projectID")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	tasks, err := h.projects.ListTasks(r.Context(), projectID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tasks)
}

func (h *ProjectHandlers) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, projects.ErrNotFound):
		httputil.WriteNotFound(w, err.Error())
	default:
		h.logger.WithError(err).Error("project request failed")
		httputil.WriteInternalError(w)
	}
}
