package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nia/internal/config"
	"nia/internal/handlers"
	"nia/internal/repository"
	"nia/internal/security"
	"nia/internal/service"
	"nia/internal/tutor"
)

func main() {
	// Load configuration
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	status := handlers.NewStartupStatus(
		handlers.StepSessionStore,
		handlers.StepTemplates,
		handlers.StepServices,
	)

	// Session store (memory, sqlite, postgres, mysql or redis)
	status.SetCurrentStep(handlers.StepSessionStore)
	repo, closer, err := repository.OpenSessionStore(cfg)
	if err != nil {
		log.Fatalf("Failed to open session store: %v", err)
	}
	defer closer.Close()
	status.CompleteStep(handlers.StepSessionStore)

	// Load templates
	status.SetCurrentStep(handlers.StepTemplates)
	templates, err := handlers.LoadTemplates(os.DirFS(cfg.TemplatesPath))
	if err != nil {
		log.Fatalf("Failed to load templates: %v", err)
	}
	if cfg.DevMode {
		if err := templates.Watch(ctx, cfg.TemplatesPath); err != nil {
			log.Printf("Warning: template hot reload disabled: %v", err)
		}
	}
	log.Println("Templates loaded successfully")
	status.CompleteStep(handlers.StepTemplates)

	// Signing keys
	status.SetCurrentStep(handlers.StepServices)
	secret := []byte(cfg.SessionSecret)
	if len(secret) == 0 {
		log.Println("Warning: SESSION_SECRET not set, sessions will not survive a restart")
		if secret, err = security.RandomSecret(); err != nil {
			log.Fatalf("Failed to generate session secret: %v", err)
		}
	}
	tokenKey, err := security.DeriveKey(secret, security.PurposeSessionToken)
	if err != nil {
		log.Fatalf("Failed to derive session key: %v", err)
	}
	csrfKey, err := security.DeriveKey(secret, security.PurposeCSRF)
	if err != nil {
		log.Fatalf("Failed to derive CSRF key: %v", err)
	}

	// Tutoring service client
	tutorClient := tutor.NewClient(tutor.Config{
		BaseURL:         cfg.TutorAPIURL,
		IdentityTimeout: cfg.IdentityTimeout,
		ChatTimeout:     cfg.ChatTimeout,
		HTTPClient: tutor.NewHTTPClient(ctx, tutor.CredentialsConfig{
			ClientID:     cfg.TutorClientID,
			ClientSecret: cfg.TutorClientSecret,
			TokenURL:     cfg.TutorTokenURL,
		}, cfg.TutorHTTPTimeout()),
		Debug: cfg.Debug,
	})
	if cfg.TutorAuthEnabled() {
		log.Println("Tutoring service requests use client-credentials auth")
	}
	log.Printf("Tutoring service: %s", cfg.TutorAPIURL)

	// Student ID emails are optional
	var mailer service.StudentIDMailer
	emailService, err := service.NewEmailService(cfg.AWSRegion, cfg.SESFromEmail, cfg.SESFromName, cfg.AppBaseURL, cfg.Debug)
	if err != nil {
		log.Printf("Warning: email service unavailable: %v", err)
	} else {
		mailer = emailService
	}
	emailEnabled := mailer != nil && mailer.IsEnabled()

	// Initialize services
	hub := service.NewHub()
	sessionService := service.NewSessionService(repo, hub, cfg.SessionDuration, cfg.ProgressResetScope)
	identityService := service.NewIdentityService(tutorClient, sessionService, mailer)
	chatService := service.NewChatService(tutorClient, sessionService)

	// Initialize handlers
	limiter := security.NewRateLimiter(30, time.Minute)
	defer limiter.Stop()

	middleware := handlers.NewMiddleware(sessionService, security.NewSessionTokens(tokenKey), security.NewCSRFGenerator(csrfKey), limiter, cfg.TrustProxy)
	identityHandler := handlers.NewIdentityHandler(identityService, sessionService, middleware, templates, cfg.RegistrationSettleDelay, emailEnabled)
	chatHandler := handlers.NewChatHandler(chatService, sessionService, middleware, templates)
	eventsHandler := handlers.NewEventsHandler(hub, cfg.DevMode)
	status.CompleteStep(handlers.StepServices)

	// Setup routes
	mux := http.NewServeMux()

	// Static files
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(cfg.StaticFilesPath))))
	mux.HandleFunc("GET /healthz", status.Health)

	// Identity flow
	mux.HandleFunc("GET /{$}", middleware.LoadSession(identityHandler.Home))
	mux.HandleFunc("POST /register", middleware.LoadSession(middleware.CSRFProtect(middleware.RateLimit(identityHandler.Register))))
	mux.HandleFunc("GET /registered", middleware.RequireStudent(identityHandler.ShowRegistered))
	mux.HandleFunc("POST /login", middleware.LoadSession(middleware.CSRFProtect(middleware.RateLimit(identityHandler.Login))))
	mux.HandleFunc("POST /student/switch", middleware.LoadSession(middleware.CSRFProtect(identityHandler.SwitchStudent)))

	// Chat flow
	mux.HandleFunc("GET /chat", middleware.RequireStudent(chatHandler.ShowChat))
	mux.HandleFunc("POST /chat", middleware.RequireStudent(middleware.CSRFProtect(middleware.RateLimit(chatHandler.SendMessage))))
	mux.HandleFunc("GET /chat/state", middleware.RequireStudent(chatHandler.State))
	mux.HandleFunc("POST /chat/new", middleware.RequireStudent(middleware.CSRFProtect(chatHandler.NewConversation)))
	mux.HandleFunc("POST /chat/topic/{topic}", middleware.RequireStudent(middleware.CSRFProtect(chatHandler.QuickTopic)))

	// Live updates
	mux.HandleFunc("GET /events", middleware.LoadSession(eventsHandler.ServeHTTP))

	// Wrap with logging middleware
	handler := handlers.Logging(mux)

	addr := ":" + cfg.ServerPort
	server := &http.Server{
		Addr:        addr,
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// A reply may take the whole tutoring timeout
		WriteTimeout: cfg.TutorHTTPTimeout() + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start background session cleanup
	go cleanupExpiredSessions(ctx, sessionService)

	go func() {
		log.Printf("Server starting on http://localhost%s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()
	status.MarkReady()

	// Wait for interrupt signal
	<-ctx.Done()
	log.Println("Server shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}
}

// cleanupExpiredSessions periodically removes expired sessions
func cleanupExpiredSessions(ctx context.Context, sessions *service.SessionService) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := sessions.CleanupExpiredSessions(ctx); err != nil {
				log.Printf("Error cleaning up expired sessions: %v", err)
			}
		}
	}
}
