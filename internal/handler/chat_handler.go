package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"chatserver/internal/entity"
	"chatserver/internal/nlog"
	"chatserver/internal/repository"
	"chatserver/internal/service"
	apperr "chatserver/pkg/errors"

	"github.com/gorilla/sessions"
)

const sessionCookie = "chat-session"

type joinReqFields struct {
	Name string `json:"name"`
}

type sendReqFields struct {
	Text string `json:"text"`
	To   string `json:"to"`
}

type clearReqFields struct {
	Scope string `json:"scope"`
}

type ChatHandler struct {
	chatService         service.ChatService
	relationshipService service.RelationshipService
	cookieStore         *sessions.CookieStore
	pollInterval        time.Duration
	logger              nlog.Logger
}

func NewChatHandler(chatService service.ChatService, relationshipService service.RelationshipService, cookieStore *sessions.CookieStore, pollInterval time.Duration, logger nlog.Logger) *ChatHandler {
	return &ChatHandler{
		chatService:         chatService,
		relationshipService: relationshipService,
		cookieStore:         cookieStore,
		pollInterval:        pollInterval,
		logger:              logger,
	}
}

func (h *ChatHandler) Join(w http.ResponseWriter, r *http.Request) {
	var request joinReqFields
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, apperr.InvalidArg("malformed join request"))
		return
	}

	chatSession, history, err := h.chatService.Join(request.Name)
	if err != nil {
		writeError(w, err)
		return
	}

	cookie, _ := h.cookieStore.Get(r, sessionCookie)
	cookie.Values[ContextKeyToken] = chatSession.Token
	cookie.Values[ContextKeyName] = chatSession.Name
	if err := cookie.Save(r, w); err != nil {
		h.chatService.Leave(chatSession.Token)
		writeError(w, apperr.Internal("could not persist the session cookie"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"name":    chatSession.Name,
		"history": history,
	})
}

// Send accepts one line of input. An explicit "to" makes it a private message;
// otherwise the line goes through the command parser exactly once.
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	var request sendReqFields
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, apperr.InvalidArg("malformed send request"))
		return
	}

	token, name := sessionToken(r), displayName(r)

	if request.To != "" {
		message, err := h.chatService.Send(token, request.Text, request.To)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"message": message})
		return
	}

	command, err := ParseCommand(request.Text)
	if err != nil {
		writeError(w, err)
		return
	}

	switch command.Kind {
	case CmdSay:
		message, err := h.chatService.Send(token, command.Body, "")
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"message": message})
	case CmdDirect:
		message, err := h.chatService.Send(token, command.Body, command.Target)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"message": message})
	case CmdFriendAdd:
		if err := h.relationshipService.Request(name, command.Target); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "requested"})
	case CmdFriendList:
		friends, err := h.relationshipService.FriendsOf(name)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"friends": friends})
	case CmdClear:
		if err := h.chatService.Clear(repository.ScopePublic); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
	}
}

func (h *ChatHandler) Poll(w http.ResponseWriter, r *http.Request) {
	batch, err := h.chatService.Poll(sessionToken(r))
	if err != nil {
		writeError(w, err)
		return
	}
	if batch == nil {
		batch = []*entity.Message{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": batch})
}

// Stream serves the self-driven delivery loop over SSE. One deliverer runs per
// stream; leaving the chat cancels it before the presence entry is released.
func (h *ChatHandler) Stream(w http.ResponseWriter, r *http.Request) {
	token := sessionToken(r)
	chatSession, ok := h.chatService.Lookup(token)
	if !ok {
		writeError(w, apperr.ErrSessionNotFound)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming is not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher.Flush()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	chatSession.AttachStream(cancel)

	deliverer := service.NewDeliverer(h.chatService, token, h.pollInterval, func(batch []*entity.Message) {
		for _, message := range batch {
			payload, err := json.Marshal(message)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
		}
		flusher.Flush()
	}, h.logger)

	deliverer.Run(ctx)
}

func (h *ChatHandler) Leave(w http.ResponseWriter, r *http.Request) {
	if err := h.chatService.Leave(sessionToken(r)); err != nil {
		writeError(w, err)
		return
	}

	cookie, _ := h.cookieStore.Get(r, sessionCookie)
	cookie.Options.MaxAge = -1
	sessions.Save(r, w)

	writeJSON(w, http.StatusOK, map[string]string{"status": "left"})
}

func (h *ChatHandler) Clear(w http.ResponseWriter, r *http.Request) {
	var request clearReqFields
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		writeError(w, apperr.InvalidArg("malformed clear request"))
		return
	}

	scope := repository.ScopePublic
	if request.Scope == "all" {
		scope = repository.ScopeAll
	}

	if err := h.chatService.Clear(scope); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}
