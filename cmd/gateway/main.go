package main

import (
	"context"
	"database/sql"
	"log"
	"math/rand"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"

	api "github.com/rubricast/rubricast/internal/api/http"
	auth "github.com/rubricast/rubricast/internal/auth/middleware"
	"github.com/rubricast/rubricast/internal/config"
	"github.com/rubricast/rubricast/internal/db"
	"github.com/rubricast/rubricast/internal/rbac"
	"github.com/rubricast/rubricast/internal/rubric"
	syncx "github.com/rubricast/rubricast/internal/sync"
)

func main() {
	cfg := config.FromEnv()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	if err := ensureAdmin(ctx, dbh, cfg.AdminUser, cfg.AdminPassHash); err != nil {
		log.Fatalf("seed admin: %v", err)
	}

	store := rubric.NewSQLStore(dbh, cfg.DBDriver)
	events := syncx.NewEventRepo(dbh)
	assigner := rubric.NewAssigner(rand.New(rand.NewSource(time.Now().UnixNano())))

	authSvc := auth.NewAuthService(cfg.AuthSecret)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/login", auth.LoginHandler(dbh, authSvc))

	// Protected API (JWT → role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))

		// Rubric editing (teacher)
		pr.With(rbac.Require("rubric:create")).
			Post("/rubrics", api.UpsertRubricHandler(store, events))
		pr.With(rbac.Require("rubric:delete")).
			Delete("/rubrics/{rubricID}", api.DeleteRubricHandler(store, events))

		// Rubric and results (teacher or student)
		pr.With(rbac.Require("rubric:view")).
			Get("/rubrics", api.ListRubricsHandler(store))
		pr.With(rbac.Require("rubric:view")).
			Get("/rubrics/{rubricID}", api.GetRubricHandler(store))
		pr.With(rbac.Require("results:view")).
			Get("/rubrics/{rubricID}/results", api.ResultsHandler(store, cfg.MaxCombinations))

		// Roster and score assignment
		pr.With(rbac.Require("students:manage")).
			Post("/rubrics/{rubricID}/students", api.UpsertStudentHandler(store))
		pr.With(rbac.RequireAny("students:manage", "score:view-all")).
			Get("/rubrics/{rubricID}/students", api.ListStudentsHandler(store))
		pr.With(rbac.RequireAny("score:view-own", "score:view-all")).
			Get("/rubrics/{rubricID}/students/{studentID}", api.GetStudentHandler(store))
		pr.With(rbac.Require("score:assign")).
			Put("/rubrics/{rubricID}/students/{studentID}/score", api.AssignScoreHandler(store, assigner, events, cfg.MaxCombinations))

		pr.With(rbac.Require("export:csv")).
			Get("/rubrics/{rubricID}/export.csv", api.ExportCSVHandler(store))

		// Users (teacher/admin)
		pr.With(rbac.Require("users:bulk_upsert")).
			Post("/users/bulk", api.BulkUpsertUsersHandler(dbh, store))
		pr.With(rbac.Require("users:list")).
			Get("/users", api.ListUsersHandler(dbh))
		pr.With(rbac.Require("user:change_password")).
			Post("/users/change-password", api.ChangePasswordHandler(dbh))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	log.Printf("listening on %s (mode=%s, db=%s)", cfg.HTTPAddr, cfg.Mode, cfg.DBDriver)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}

// ensureAdmin seeds the bootstrap admin account on first start.
func ensureAdmin(ctx context.Context, dbh *sql.DB, user, passHash string) error {
	_, err := dbh.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, role, created_at)
		 VALUES ($1,$2,$3,'admin',$4)
		 ON CONFLICT (username) DO NOTHING`,
		uuid.NewString(), user, passHash, time.Now().Unix())
	return err
}
