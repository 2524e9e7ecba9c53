package handler

import (
	"log/slog"
	"net/http"

	"github.com/aryan0dhankhar/rentaladmin/internal/security/middleware"
)

// Routes holds every handler the server mounts
type Routes struct {
	Auth       *AuthHandler
	Properties *PropertyHandler
	Bookings   *BookingHandler
	Users      *UserHandler
	Analytics  *AnalyticsHandler
	Storage    *StorageHandler
	Health     *HealthHandler
	Logger     *slog.Logger
}

func (rt *Routes) requireFields(h http.HandlerFunc, fields ...string) http.Handler {
	log := rt.Logger
	if log == nil {
		log = slog.Default()
	}
	return middleware.RequireJSONFields(fields, log)(h)
}

// Register mounts the public and admin routes on mux
func (rt *Routes) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", rt.Health.Health)
	mux.HandleFunc("GET /readyz", rt.Health.Ready)

	mux.HandleFunc("GET /auth/login", rt.Auth.LoginPage)
	mux.Handle("POST /auth/login", rt.requireFields(rt.Auth.Login, "email", "password"))
	mux.Handle("POST /auth/signup", rt.requireFields(rt.Auth.SignUp, "email", "password"))
	mux.HandleFunc("POST /auth/logout", rt.Auth.Logout)
	mux.Handle("POST /auth/verify-email", rt.requireFields(rt.Auth.VerifyEmail, "token"))
	mux.HandleFunc("POST /auth/resend-verification", rt.Auth.ResendVerification)
	mux.HandleFunc("GET /unauthorized", rt.Auth.Unauthorized)

	mux.Handle("GET /storage/v1/object/public/{bucket}/{path...}", rt.Storage)

	mux.HandleFunc("GET /admin/dashboard", rt.Analytics.Dashboard)
	mux.HandleFunc("GET /admin/activity", rt.Analytics.Activity)
	mux.HandleFunc("GET /admin/analytics", rt.Analytics.Analytics)
	mux.HandleFunc("GET /admin/analytics/export", rt.Analytics.Export)

	mux.HandleFunc("GET /admin/properties", rt.Properties.List)
	mux.HandleFunc("POST /admin/properties", rt.Properties.Create)
	mux.Handle("PATCH /admin/properties/status", rt.requireFields(rt.Properties.BulkUpdateStatus, "ids", "status"))
	mux.HandleFunc("GET /admin/properties/{id}", rt.Properties.Get)
	mux.HandleFunc("DELETE /admin/properties/{id}", rt.Properties.Delete)
	mux.Handle("PATCH /admin/properties/{id}/status", rt.requireFields(rt.Properties.UpdateStatus, "status"))

	mux.HandleFunc("GET /admin/bookings", rt.Bookings.List)
	mux.Handle("PATCH /admin/bookings/status", rt.requireFields(rt.Bookings.BulkUpdateStatus, "ids", "status"))
	mux.HandleFunc("GET /admin/bookings/{id}", rt.Bookings.Get)
	mux.Handle("PATCH /admin/bookings/{id}/status", rt.requireFields(rt.Bookings.UpdateStatus, "status"))

	mux.HandleFunc("GET /admin/users", rt.Users.List)
	mux.HandleFunc("GET /admin/users/{id}", rt.Users.Get)
	mux.HandleFunc("DELETE /admin/users/{id}", rt.Users.Delete)
	mux.Handle("PATCH /admin/users/{id}/role", rt.requireFields(rt.Users.UpdateRole, "role"))
	mux.Handle("PATCH /admin/users/{id}/status", rt.requireFields(rt.Users.UpdateStatus, "status"))

	// Messages and reviews have no backing store yet
	mux.HandleFunc("GET /admin/messages", NotImplemented)
	mux.HandleFunc("GET /admin/reviews", NotImplemented)
}
