// Package http exposes the exam, session and result services over a chi
// router.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/Vaibhav2824/IntegriGuard/internal/auth"
	"github.com/Vaibhav2824/IntegriGuard/internal/exam"
	"github.com/Vaibhav2824/IntegriGuard/internal/metrics"
	"github.com/Vaibhav2824/IntegriGuard/internal/proctor"
	"github.com/Vaibhav2824/IntegriGuard/internal/rbac"
	"github.com/Vaibhav2824/IntegriGuard/internal/result"
	"github.com/Vaibhav2824/IntegriGuard/internal/storage"
	"github.com/Vaibhav2824/IntegriGuard/internal/user"
)

// Deps are the services the handlers call into.
type Deps struct {
	Users    *user.Service
	Exams    *exam.Service
	Results  result.Store
	Attempts result.StudentExamStore
	Sessions *proctor.Manager
	Blobs    storage.BlobStore
	Issuer   *auth.Issuer

	EnableSignup bool
	CORSOrigins  []string

	// Ready checks back /readyz; each is given a short deadline.
	Ready map[string]func(context.Context) error

	// RequestTimeout bounds ordinary requests. The notice stream is exempt.
	RequestTimeout time.Duration
}

func NewRouter(d Deps) http.Handler {
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(metrics.Middleware)
	if len(d.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   d.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			ExposedHeaders:   []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/healthz", healthHandler)
	r.Get("/readyz", readyHandler(d.Ready))
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Group(func(pub chi.Router) {
		pub.Use(middleware.Timeout(d.RequestTimeout))
		pub.Post("/auth/signup", SignupHandler(d.Users, d.Issuer, d.EnableSignup))
		pub.Post("/auth/login", LoginHandler(d.Users, d.Issuer))
	})

	// Protected API (JWT → role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.Verifier(d.Issuer), auth.Authenticator)

		// long-lived
		pr.Get("/sessions/{sessionID}/stream", StreamNoticesHandler(d.Sessions))

		pr.Group(func(pr chi.Router) {
			pr.Use(middleware.Timeout(d.RequestTimeout))

			pr.Get("/users/me", MeHandler(d.Users))
			pr.Put("/users/me", UpdateMeHandler(d.Users))
			pr.Post("/users/me/password", ChangePasswordHandler(d.Users))
			pr.With(rbac.Require(rbac.PermUserList)).Get("/users", ListUsersHandler(d.Users))
			pr.With(rbac.Require(rbac.PermUserRole)).Put("/users/{userID}/role", SetRoleHandler(d.Users))

			pr.Route("/exams", func(er chi.Router) {
				er.With(rbac.Require(rbac.PermExamRead)).Get("/", ListExamsHandler(d.Exams))
				er.With(rbac.Require(rbac.PermExamCreate)).Post("/", CreateExamHandler(d.Exams))
				er.Route("/{examID}", func(er chi.Router) {
					er.With(rbac.Require(rbac.PermExamRead)).Get("/", GetExamHandler(d.Exams))
					er.With(rbac.Require(rbac.PermExamUpdate)).Put("/", UpdateExamHandler(d.Exams))
					er.With(rbac.Require(rbac.PermExamDelete)).Delete("/", DeleteExamHandler(d.Exams))
					er.With(rbac.Require(rbac.PermExamRead)).Get("/questions", ListQuestionsHandler(d.Exams))
					er.With(rbac.Require(rbac.PermExamUpdate)).Post("/questions", AddQuestionHandler(d.Exams))
					er.With(rbac.Require(rbac.PermExamResults)).Get("/results", ExamResultsHandler(d.Exams, d.Results))
					er.With(rbac.Require(rbac.PermSessionStart)).Post("/sessions", StartSessionHandler(d.Exams, d.Attempts, d.Sessions))
				})
			})

			pr.Route("/sessions/{sessionID}", func(sr chi.Router) {
				sr.Get("/", GetSessionHandler(d.Sessions))
				sr.Get("/notices", NoticesHandler(d.Sessions))
				sr.With(rbac.Require(rbac.PermAnalysisRun)).Get("/analysis", SessionAnalysisHandler(d.Sessions))
				sr.Group(func(sr chi.Router) {
					sr.Use(rbac.Require(rbac.PermSessionWrite))
					sr.Post("/signals", SignalsHandler(d.Sessions))
					sr.Put("/answers", SaveAnswerHandler(d.Sessions))
					sr.Post("/answers/{questionID}/file", UploadAnswerHandler(d.Sessions, d.Blobs))
					sr.Post("/ack", AckHandler(d.Sessions))
					sr.Post("/submit", SubmitHandler(d.Sessions))
				})
			})

			pr.Route("/students/{studentID}", func(sr chi.Router) {
				sr.Use(rbac.RequireOwnerOr(rbac.PermResultAny, isStudentSelf))
				sr.Get("/results", StudentResultsHandler(d.Results))
				sr.Get("/stats", StudentStatsHandler(d.Results))
				sr.Get("/exams/available", AvailableExamsHandler(d.Exams, d.Attempts))
				sr.Get("/exams/{examID}/result", ExamPerformanceHandler(d.Exams, d.Results))
			})

			pr.With(rbac.Require(rbac.PermAnalysisRun)).Post("/analysis/behavior", AnalyzeBehaviorHandler())

			pr.Route("/assets", func(ar chi.Router) {
				MountAssets(ar, d.Blobs)
			})
		})
	})

	return r
}
