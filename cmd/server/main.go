package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"
	"golang.org/x/oauth2/google"

	"mathdrill/internal/config"
	"mathdrill/internal/database"
	"mathdrill/internal/handlers"
	"mathdrill/internal/metrics"
	"mathdrill/internal/repository"
	"mathdrill/internal/security"
	"mathdrill/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.InitializeWithConfig(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	log.Printf("Database connection established (type: %s)", cfg.DatabaseType)

	if err := db.RunMigrations(cfg.MigrationsPath); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	log.Println("Migrations completed successfully")

	templates, err := handlers.LoadTemplates(cfg.TemplatesPath)
	if err != nil {
		log.Fatalf("Failed to load templates: %v", err)
	}

	log.Println("Templates loaded successfully")

	// Repositories
	userRepo := repository.NewUserRepository(db)
	practiceRepo := repository.NewPracticeRepository(db)
	exerciseRepo := repository.NewExerciseRepository(db)
	progressRepo := repository.NewProgressRepository(db)
	activityRepo := repository.NewActivityRepository(db)

	// Services
	emailService, err := service.NewEmailService(context.Background(), cfg.AWSRegion, cfg.SESFromEmail, cfg.SESFromName, cfg.AppBaseURL, cfg.Debug)
	if err != nil {
		log.Printf("Warning: email disabled: %v", err)
	}
	authService := service.NewAuthService(db, userRepo, progressRepo, activityRepo, emailService, cfg.SessionDuration)
	accountService := service.NewAccountService(db, userRepo, progressRepo, activityRepo)
	practiceService := service.NewPracticeService(db, practiceRepo, exerciseRepo, progressRepo, activityRepo, nil)

	oauthProviders := map[string]handlers.OAuthProvider{
		"google": {
			Name:  "google",
			Label: "Google",
			Config: &oauth2.Config{
				ClientID:     cfg.GoogleClientID,
				ClientSecret: cfg.GoogleClientSecret,
				Endpoint:     google.Endpoint,
				Scopes:       []string{"openid", "email", "profile"},
			},
			UserInfoURL: "https://www.googleapis.com/oauth2/v2/userinfo",
		},
		"facebook": {
			Name:  "facebook",
			Label: "Facebook",
			Config: &oauth2.Config{
				ClientID:     cfg.FacebookClientID,
				ClientSecret: cfg.FacebookClientSecret,
				Endpoint:     facebook.Endpoint,
				Scopes:       []string{"email", "public_profile"},
			},
			UserInfoURL: "https://graph.facebook.com/me?fields=id,first_name,last_name,email",
		},
		"apple": {
			Name:  "apple",
			Label: "Apple",
			Config: &oauth2.Config{
				ClientID:     cfg.AppleClientID,
				ClientSecret: cfg.AppleClientSecret,
				Endpoint: oauth2.Endpoint{
					AuthURL:  "https://appleid.apple.com/auth/authorize",
					TokenURL: "https://appleid.apple.com/auth/token",
				},
				Scopes: []string{"name", "email"},
			},
			AuthParams: map[string]string{
				"response_mode": "query",
			},
		},
	}

	// Handlers
	limiter := security.NewRateLimiter(cfg.LoginRateLimit, cfg.LoginRateWindow)
	defer limiter.Stop()

	middleware := handlers.NewMiddleware(authService, security.NewCSRFGenerator(cfg.CSRFSecret), limiter)
	authHandler := handlers.NewAuthHandler(authService, templates, oauthProviders, cfg.OAuthRedirectBaseURL)
	accountHandler := handlers.NewAccountHandler(accountService, practiceService, middleware, templates)
	practiceHandler := handlers.NewPracticeHandler(practiceService, middleware, templates)

	mux := http.NewServeMux()
	registerRoutes(mux, cfg, middleware, authHandler, accountHandler, practiceHandler)

	addr := ":" + cfg.ServerPort
	server := &http.Server{
		Addr:         addr,
		Handler:      handlers.Logging(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go cleanupExpiredSessions(ctx, authService)

	go func() {
		log.Printf("Server starting on http://localhost%s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Server shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Graceful shutdown failed: %v", err)
	}
}

func registerRoutes(mux *http.ServeMux, cfg *config.Config, m *handlers.Middleware, auth *handlers.AuthHandler, account *handlers.AccountHandler, practice *handlers.PracticeHandler) {
	// Static files and metrics
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(cfg.StaticFilesPath))))
	mux.Handle("GET /metrics", metrics.Handler())

	// Public routes
	mux.HandleFunc("GET /", auth.Home)
	mux.HandleFunc("GET /login", auth.ShowLogin)
	mux.HandleFunc("POST /login", m.RateLimit(auth.Login))
	mux.HandleFunc("GET /register", auth.ShowRegister)
	mux.HandleFunc("POST /register", m.RateLimit(auth.Register))
	mux.HandleFunc("POST /logout", m.RequireAuth(m.CSRFProtect(auth.Logout)))
	mux.HandleFunc("GET /auth/{provider}/start", auth.StartOAuth)
	mux.HandleFunc("GET /auth/{provider}/callback", auth.OAuthCallback)

	// Account routes
	mux.HandleFunc("GET /dashboard", m.RequireAuth(account.Dashboard))
	mux.HandleFunc("GET /profile", m.RequireAuth(account.ShowProfile))
	mux.HandleFunc("POST /profile", m.RequireAuth(m.CSRFProtect(account.UpdateProfile)))
	mux.HandleFunc("GET /progress", m.RequireAuth(account.ShowProgress))
	mux.HandleFunc("GET /activity", m.RequireAuth(account.ShowActivity))

	// Practice routes
	mux.HandleFunc("GET /practice/config", m.RequireAuth(practice.ShowConfig))
	mux.HandleFunc("POST /practice/config", m.RequireAuth(m.CSRFProtect(practice.StartPractice)))
	mux.HandleFunc("GET /practice/solve", m.RequireAuth(practice.ShowSolve))
	mux.HandleFunc("POST /practice/solve", m.RequireAuth(m.CSRFProtect(practice.SubmitAnswer)))
	mux.HandleFunc("GET /practice/results/{id}", m.RequireAuth(practice.ShowResults))
	mux.HandleFunc("GET /practice/history", m.RequireAuth(practice.ShowHistory))
}

// cleanupExpiredSessions periodically removes expired login sessions
func cleanupExpiredSessions(ctx context.Context, authService *service.AuthService) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := authService.CleanupExpiredSessions()
			if err != nil {
				log.Printf("Error cleaning up expired sessions: %v", err)
				continue
			}
			log.Printf("Expired sessions cleaned up: %d", n)
		}
	}
}
