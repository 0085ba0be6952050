package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"campus-chat/internal/auth"
	"campus-chat/internal/models"
	"campus-chat/internal/services"
	"campus-chat/pkg/logger"
)

type GroupHandlers struct {
	groupService *services.GroupService
	authService  *auth.Service
}

func NewGroupHandlers(groupService *services.GroupService, authService *auth.Service) *GroupHandlers {
	return &GroupHandlers{
		groupService: groupService,
		authService:  authService,
	}
}

func (h *GroupHandlers) CreateGroup(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromRequest(r, h.authService)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req models.CreateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}

	group, err := h.groupService.CreateGroup(r.Context(), &req, identity.UserID)
	if err != nil {
		logger.Error("Create group error: %v", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(group)
}

func (h *GroupHandlers) ListGroups(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromRequest(r, h.authService)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	groups, err := h.groupService.ListUserGroups(r.Context(), identity.UserID)
	if err != nil {
		logger.Error("List groups error: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	if groups == nil {
		groups = []*models.Group{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(groups)
}

func (h *GroupHandlers) JoinGroup(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromRequest(r, h.authService)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	groupID, err := groupIDFromPath(r)
	if err != nil {
		http.Error(w, "invalid group ID", http.StatusBadRequest)
		return
	}

	if err := h.groupService.JoinGroup(r.Context(), identity.UserID, groupID); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *GroupHandlers) LeaveGroup(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromRequest(r, h.authService)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	groupID, err := groupIDFromPath(r)
	if err != nil {
		http.Error(w, "invalid group ID", http.StatusBadRequest)
		return
	}

	if err := h.groupService.LeaveGroup(r.Context(), identity.UserID, groupID); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *GroupHandlers) GetGroupMembers(w http.ResponseWriter, r *http.Request) {
	identity, err := identityFromRequest(r, h.authService)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	groupID, err := groupIDFromPath(r)
	if err != nil {
		http.Error(w, "invalid group ID", http.StatusBadRequest)
		return
	}

	members, err := h.groupService.GetGroupMembers(r.Context(), groupID, identity.UserID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if members == nil {
		members = []*models.Member{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(members)
}

func groupIDFromPath(r *http.Request) (int, error) {
	parts := strings.Split(r.URL.Path, "/")
	if len(parts) < 3 || parts[2] == "" {
		return 0, fmt.Errorf("missing group ID")
	}
	return strconv.Atoi(parts[2])
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrGroupNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, services.ErrNotAMember):
		http.Error(w, err.Error(), http.StatusForbidden)
	default:
		logger.Error("Service error: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}
