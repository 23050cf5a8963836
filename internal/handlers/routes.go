package handlers

import (
	"net/http"

	"github.com/Varun5711/shortqr/internal/middleware"
)

type Router struct {
	Links     *LinkHandler
	Analytics *AnalyticsHandler
	Redirect  *RedirectHandler
	Health    *HealthHandler
	Auth      *middleware.Auth
}

func (rt *Router) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", rt.Health.Health)

	mux.HandleFunc("POST /api/urls", rt.Auth.Optional(rt.Links.CreateURL))
	mux.HandleFunc("GET /api/urls", rt.Auth.Require(rt.Links.ListURLs))
	mux.HandleFunc("DELETE /api/urls/{id}", rt.Auth.Require(rt.Links.DeleteURL))
	mux.HandleFunc("GET /api/urls/{id}/stats", rt.Auth.Require(rt.Analytics.GetStats))
	mux.HandleFunc("GET /api/urls/{id}/clicks", rt.Auth.Require(rt.Analytics.GetClicks))
	mux.HandleFunc("GET /api/analytics/dashboard", rt.Auth.Require(rt.Analytics.GetDashboard))

	mux.HandleFunc("GET /{code}", rt.Redirect.HandleRedirect)
}
