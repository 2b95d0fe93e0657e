package main

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	api "github.com/lpedia/review-player/internal/api/http"
	"github.com/lpedia/review-player/internal/auth"
	"github.com/lpedia/review-player/internal/config"
	"github.com/lpedia/review-player/internal/db"
	"github.com/lpedia/review-player/internal/logging"
	"github.com/lpedia/review-player/internal/rbac"
	"github.com/lpedia/review-player/internal/review"
	"github.com/lpedia/review-player/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log, err := logging.Init(logging.Options{
		Directory:  cfg.Logging.Directory,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
		Compress:   cfg.Logging.Compress,
		Debug:      cfg.Logging.Debug,
	})
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer log.Sync()
	zap.ReplaceGlobals(log)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.Database.Driver), cfg.Database.DSN)
	if err != nil {
		log.Fatal("db open failed", zap.Error(err))
	}
	if err := seedAdminUser(ctx, dbh, cfg.Auth.AdminUser, cfg.Auth.AdminPassHash); err != nil {
		log.Fatal("seed admin user failed", zap.Error(err))
	}

	store := review.NewSQLStore(dbh, log)
	authSvc := auth.NewAuthService(cfg.Auth.HMACSecret)
	signer := auth.NewMediaSigner(cfg.Auth.HMACSecret, time.Duration(cfg.Media.TokenTTLMin)*time.Minute)

	bs, err := storage.NewFSStore(cfg.Media.BasePath)
	if err != nil {
		log.Fatal("blob store", zap.Error(err))
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/login", auth.LoginHandler(authSvc, dbh, log))

	// Media proxy: authenticated by the signed query token, not the bearer
	// header, since the playback element cannot send one.
	r.Route("/media", func(mr chi.Router) {
		api.MountMedia(mr, bs, signer)
	})

	// Protected API (JWT -> role in context -> RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))

		// Instructor authoring
		pr.With(rbac.Require("package:create")).
			Post("/packages", api.UploadPackageHandler(store))
		pr.With(rbac.Require("package:view-full")).
			Get("/packages/{packageID}", api.GetPackageFullHandler(store))

		// Viewer session flow
		pr.With(rbac.Require("attempt:open")).
			Get("/packages/{packageID}/session", api.GetSessionHandler(store, signer, cfg.Server.PublicURL, log))
		pr.With(rbac.Require("attempt:progress")).
			Post("/attempts/{attemptID}/progress", api.ReportProgressHandler(store))
		pr.With(rbac.Require("attempt:answer")).
			Post("/attempts/{attemptID}/answers", api.SubmitAnswerHandler(store))
		pr.With(rbac.Require("attempt:finalize")).
			Post("/attempts/{attemptID}/finalize", api.FinalizeAttemptHandler(store))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/attempts/{attemptID}", api.GetAttemptHandler(store))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/attempts", api.ListAttemptsHandler(store))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	log.Info("listening",
		zap.String("addr", cfg.Server.Addr),
		zap.String("db", cfg.Database.Driver))
	log.Fatal("server exited", zap.Error(http.ListenAndServe(cfg.Server.Addr, r)))
}

// seedAdminUser creates the configured admin account when it is missing so a
// fresh deployment is reachable.
func seedAdminUser(ctx context.Context, dbh *sql.DB, username, passHash string) error {
	if username == "" || passHash == "" {
		return nil
	}
	var exists int
	err := dbh.QueryRowContext(ctx, `SELECT 1 FROM users WHERE username=$1`, username).Scan(&exists)
	if err == nil {
		return nil
	}
	if err != sql.ErrNoRows {
		return err
	}
	_, err = dbh.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, role) VALUES ($1,$2,$3,'admin')`,
		uuid.NewString(), username, passHash)
	return err
}
