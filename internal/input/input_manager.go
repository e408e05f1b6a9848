package input

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"chatserver/internal/handler"
	"chatserver/internal/middleware"
	"chatserver/internal/nlog"
	"chatserver/internal/service"

	"github.com/gorilla/mux"
	"github.com/gorilla/sessions"
)

type IptConfig struct {
	ServerPort   uint16
	ReadTimeout  int64
	WriteTimeout int64
	SecretKey    string
	PollInterval time.Duration
}

type InputManager struct { // Manages the HTTP surface of the chat server
	running atomic.Bool
	paused  atomic.Bool

	logger nlog.Logger
	server *http.Server

	stopFromOutsideChan chan struct{}
	doneFromInsideChan  chan struct{}

	chatService         service.ChatService
	relationshipService service.RelationshipService
}

func NewInputManager() *InputManager {
	return &InputManager{
		running:             atomic.Bool{},
		paused:              atomic.Bool{},
		stopFromOutsideChan: make(chan struct{}),
		doneFromInsideChan:  make(chan struct{}),
	}
}

func (i *InputManager) IsReady() bool {
	return i.logger != nil && i.chatService != nil && i.relationshipService != nil
}

func (i *InputManager) IsRunning() bool {
	return i.running.Load()
}

func (i *InputManager) SetLogger(l nlog.Logger) {
	i.logger = l
}

func (i *InputManager) SetChatService(cs service.ChatService) {
	i.chatService = cs
}

func (i *InputManager) SetRelationshipService(rs service.RelationshipService) {
	i.relationshipService = rs
}

func (i *InputManager) Logf(format string, a ...any) {
	i.logger.Logf(format, a...)
}

func (i *InputManager) SetPause(paused bool) {
	i.paused.Store(paused)
}

func (i *InputManager) IsPaused() bool {
	return i.paused.Load()
}

// PauseMiddleware rejects every request while the server is paused, e.g.
// while draining during shutdown.
func (i *InputManager) PauseMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if i.paused.Load() {
			http.Error(w, "Service is paused", http.StatusServiceUnavailable)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (i *InputManager) Run(ctx context.Context, cfg *IptConfig) error {
	i.Logf("Input service started...")

	if !i.IsReady() {
		return fmt.Errorf("The Input manager is not ready... Missing components")
	}

	cookieStore := sessions.NewCookieStore([]byte(cfg.SecretKey))
	cookieStore.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		Secure:   false,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(7 * 24 * time.Hour.Seconds()),
	}

	// Handlers
	chatHandler := handler.NewChatHandler(i.chatService, i.relationshipService, cookieStore, cfg.PollInterval, i.logger)
	friendHandler := handler.NewFriendHandler(i.relationshipService, i.logger)

	// Router
	r := mux.NewRouter()
	r.Use(i.PauseMiddleware)

	r.HandleFunc("/join", chatHandler.Join).Methods("POST")

	// Everything below requires an established chat session
	r.HandleFunc("/send", middleware.SessionMiddleware(cookieStore, chatHandler.Send)).Methods("POST")
	r.HandleFunc("/poll", middleware.SessionMiddleware(cookieStore, chatHandler.Poll)).Methods("GET")
	r.HandleFunc("/stream", middleware.SessionMiddleware(cookieStore, chatHandler.Stream)).Methods("GET")
	r.HandleFunc("/leave", middleware.SessionMiddleware(cookieStore, chatHandler.Leave)).Methods("POST")
	r.HandleFunc("/clear", middleware.SessionMiddleware(cookieStore, chatHandler.Clear)).Methods("POST")

	r.HandleFunc("/friends", middleware.SessionMiddleware(cookieStore, friendHandler.List)).Methods("GET")
	r.HandleFunc("/friends/pending", middleware.SessionMiddleware(cookieStore, friendHandler.Pending)).Methods("GET")
	r.HandleFunc("/friends/request", middleware.SessionMiddleware(cookieStore, friendHandler.Request)).Methods("POST")
	r.HandleFunc("/friends/respond", middleware.SessionMiddleware(cookieStore, friendHandler.Respond)).Methods("POST")

	i.server = &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:        r,
		ReadTimeout:    time.Duration(cfg.ReadTimeout * int64(time.Second)),
		WriteTimeout:   time.Duration(cfg.WriteTimeout * int64(time.Second)),
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		select {
		case <-ctx.Done():
			i.Logf("Received stop signal. Shutting down...")
		case <-i.stopFromOutsideChan:
			i.Logf("Server was asked to stop. Shutting down...")
		}

		i.SetPause(true)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := i.server.Shutdown(shutdownCtx); err != nil {
			i.Logf("Error during shutdown... %v\n", err)
		}
		close(i.doneFromInsideChan)
	}()

	i.running.Store(true)

	if err := i.server.ListenAndServe(); err != http.ErrServerClosed {
		i.Logf("FATAL: HTTP Server error{%v}\n", err)
		return err
	}

	return nil
}

func (i *InputManager) Stop() {
	close(i.stopFromOutsideChan)
	<-i.doneFromInsideChan
	i.running.Store(false)
}
