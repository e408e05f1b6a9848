package handler

import (
	"encoding/json"
	"net/http"

	"chatserver/internal/nlog"
	"chatserver/internal/service"
	apperr "chatserver/pkg/errors"
)

type friendReqFields struct {
	Target    string `json:"target"`
	Requester string `json:"requester"`
	Accept    bool   `json:"accept"`
}

type FriendHandler struct {
	relationshipService service.RelationshipService
	logger              nlog.Logger
}

func NewFriendHandler(relationshipService service.RelationshipService, logger nlog.Logger) *FriendHandler {
	return &FriendHandler{
		relationshipService: relationshipService,
		logger:              logger,
	}
}

func (h *FriendHandler) Request(w http.ResponseWriter, r *http.Request) {
	var request friendReqFields
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, apperr.InvalidArg("malformed friend request"))
		return
	}

	if err := h.relationshipService.Request(displayName(r), request.Target); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "pending"})
}

// Respond resolves a pending request addressed to the calling user.
func (h *FriendHandler) Respond(w http.ResponseWriter, r *http.Request) {
	var request friendReqFields
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, apperr.InvalidArg("malformed friend response"))
		return
	}

	if err := h.relationshipService.Respond(request.Requester, displayName(r), request.Accept); err != nil {
		writeError(w, err)
		return
	}

	status := "rejected"
	if request.Accept {
		status = "accepted"
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

func (h *FriendHandler) Pending(w http.ResponseWriter, r *http.Request) {
	pending, err := h.relationshipService.PendingFor(displayName(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pending": pending})
}

func (h *FriendHandler) List(w http.ResponseWriter, r *http.Request) {
	friends, err := h.relationshipService.FriendsOf(displayName(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"friends": friends})
}
