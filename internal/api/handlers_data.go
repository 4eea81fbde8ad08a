package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/creatordesk/creatordesk/internal/importer"
	"github.com/creatordesk/creatordesk/internal/store"
)

// handleListTasks lists tasks with role-based visibility: admins see
// everything, members only their assigned tasks.
func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	var assignee *uuid.UUID
	if member, ok := CurrentMember(r.Context()); ok && !member.IsAdmin() {
		assignee = &member.ID
	}

	tasks, err := s.store.ListTasks(r.Context(), assignee)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if tasks == nil {
		tasks = []store.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

type createTaskRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
	DueDate     string `json:"due_date"`
	AssignedTo  string `json:"assigned_to"`
	CreatorID   string `json:"creator_id"`
}

// handleCreateTask creates one task directly, outside the import flow.
// Validation mirrors the import rules so both paths accept the same data.
func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}

	if strings.TrimSpace(req.Title) == "" {
		badRequest(w, importer.MsgTitleRequired)
		return
	}

	status := importer.StatusTodo
	if req.Status != "" {
		parsed, ok := importer.ParseStatus(req.Status)
		if !ok {
			badRequest(w, importer.MsgInvalidStatus)
			return
		}
		status = parsed
	}

	var due pgtype.Date
	if req.DueDate != "" {
		parsed, err := importer.ParseDueDate(req.DueDate)
		if err != nil {
			badRequest(w, importer.MsgInvalidDate)
			return
		}
		due = parsed
	}

	assignedTo, err := uuid.Parse(req.AssignedTo)
	if err != nil {
		badRequest(w, "assigned_to must be a team member id")
		return
	}

	var creatorID pgtype.UUID
	if req.CreatorID != "" {
		cid, err := uuid.Parse(req.CreatorID)
		if err != nil {
			badRequest(w, "creator_id must be a creator id")
			return
		}
		creatorID = pgtype.UUID{Bytes: cid, Valid: true}
	}

	task, err := s.store.CreateTask(r.Context(), store.NewTaskParams{
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		Status:      status,
		DueDate:     due,
		AssignedTo:  assignedTo,
		CreatorID:   creatorID,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

type statusUpdateRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleUpdateTaskStatus(w http.ResponseWriter, r *http.Request) {
	taskID, err := uuid.Parse(chi.URLParam(r, "taskID"))
	if err != nil {
		badRequest(w, "invalid task id")
		return
	}

	var req statusUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid JSON body")
		return
	}
	status, ok := importer.ParseStatus(req.Status)
	if !ok {
		badRequest(w, importer.MsgInvalidStatus)
		return
	}

	if err := s.store.UpdateTaskStatus(r.Context(), taskID, status); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(status)})
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	taskID, err := uuid.Parse(chi.URLParam(r, "taskID"))
	if err != nil {
		badRequest(w, "invalid task id")
		return
	}

	if err := s.store.DeleteTask(r.Context(), taskID); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListCreators(w http.ResponseWriter, r *http.Request) {
	creators, err := s.store.ListCreators(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	if creators == nil {
		creators = []store.Creator{}
	}
	writeJSON(w, http.StatusOK, creators)
}

func (s *Server) handleListCampaigns(w http.ResponseWriter, r *http.Request) {
	campaigns, err := s.store.ListCampaigns(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	if campaigns == nil {
		campaigns = []store.Campaign{}
	}
	writeJSON(w, http.StatusOK, campaigns)
}

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := s.store.ListTeamMembers(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	if members == nil {
		members = []store.TeamMember{}
	}
	writeJSON(w, http.StatusOK, members)
}
