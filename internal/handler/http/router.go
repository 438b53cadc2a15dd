package http

import (
	"log/slog"
	"net/http"

	"github.com/cmlabs-hris/payrun-backend-go/internal/domain/user"
	"github.com/cmlabs-hris/payrun-backend-go/internal/handler/http/middleware"
	"github.com/cmlabs-hris/payrun-backend-go/internal/pkg/jwt"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
	"github.com/go-chi/jwtauth/v5"
)

// RouterOptions carries the cross-cutting pieces the router wires in
type RouterOptions struct {
	Logger         *slog.Logger
	AllowedOrigins []string
	RateLimiter    *middleware.RateLimiter
}

func NewRouter(JWTService jwt.Service, payrollHandler PayrollHandler, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		MaxAge:           300,
	}))

	if opts.Logger != nil {
		r.Use(httplog.RequestLogger(opts.Logger, &httplog.Options{
			Level:  slog.LevelInfo,
			Schema: httplog.SchemaECS,
		}))
	}

	r.Use(chiMiddleware.AllowContentEncoding("application/json"))
	r.Use(chiMiddleware.CleanPath)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/"))

	limit := func(next http.Handler) http.Handler { return next }
	if opts.RateLimiter != nil {
		limit = opts.RateLimiter.PerActor
	}

	r.Route("/api/v1/payroll", func(r chi.Router) {

		// EventSource cannot set headers, so the stream also accepts ?jwt=
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verify(JWTService.JWTAuth(), jwtauth.TokenFromHeader, jwtauth.TokenFromQuery))
			r.Use(middleware.AuthRequired(JWTService.JWTAuth()))
			r.Use(middleware.RequirePermission(user.PermissionRunEvents))
			r.Get("/events", payrollHandler.Events)
		})

		// Requires authentication
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(JWTService.JWTAuth()))
			r.Use(middleware.AuthRequired(JWTService.JWTAuth()))

			r.Route("/runs", func(r chi.Router) {
				r.With(middleware.RequirePermission(user.PermissionRunView)).Get("/", payrollHandler.ListRuns)
				r.With(middleware.RequirePermission(user.PermissionRunCompute), limit).Post("/", payrollHandler.ComputeRun)
				r.With(middleware.RequirePermission(user.PermissionRunView)).Get("/pending/{stage}", payrollHandler.ListPending)

				r.Route("/{id}", func(r chi.Router) {
					r.With(middleware.RequirePermission(user.PermissionRunView)).Get("/", payrollHandler.GetRun)
					r.With(middleware.RequirePermission(user.PermissionRunReview), limit).Post("/transitions", payrollHandler.TransitionRun)
					r.With(middleware.RequireAnyPermission(user.PermissionPayslipViewOwn, user.PermissionPayslipViewAll)).
						Get("/payslips/{employeeID}", payrollHandler.GetPayslip)
				})
			})

			r.With(middleware.RequireAnyPermission(user.PermissionPayslipViewOwn, user.PermissionPayslipViewAll)).
				Get("/employees/{employeeID}/payslips", payrollHandler.ListEmployeePayslips)
		})
	})
	return r
}
