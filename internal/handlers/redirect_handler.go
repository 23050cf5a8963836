package handlers

import (
	"net/http"
	"strings"

	"github.com/Varun5711/shortqr/internal/logger"
	"github.com/Varun5711/shortqr/internal/middleware"
	"github.com/Varun5711/shortqr/internal/models"
	"github.com/Varun5711/shortqr/internal/service"
)

type RedirectHandler struct {
	links *service.LinkService
	log   *logger.Logger
}

func NewRedirectHandler(links *service.LinkService, log *logger.Logger) *RedirectHandler {
	return &RedirectHandler{links: links, log: log}
}

func (h *RedirectHandler) HandleRedirect(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")

	res, err := h.links.Resolve(r.Context(), code, models.RequestMeta{
		IPAddress: middleware.ClientIP(r),
		UserAgent: r.UserAgent(),
		Referer:   r.Referer(),
		Country:   r.Header.Get("CF-IPCountry"),
	})
	if err != nil {
		respondAppError(w, h.log, err)
		return
	}

	if wantsJSON(r) {
		respondJSON(w, http.StatusOK, models.RedirectResponse{
			Success:     true,
			ShortCode:   res.ShortCode,
			OriginalURL: res.Link.OriginalURL,
			TargetURL:   res.TargetURL,
			ShortURL:    res.ShortURL,
		})
		return
	}

	http.Redirect(w, r, res.TargetURL, http.StatusMovedPermanently)
}

// wantsJSON reports whether the client asked for a JSON body instead of a redirect.
func wantsJSON(r *http.Request) bool {
	if r.Header.Get("X-Requested-With") == "XMLHttpRequest" {
		return true
	}
	if strings.EqualFold(r.URL.Query().Get("format"), "json") {
		return true
	}
	accept := strings.ToLower(r.Header.Get("Accept"))
	return strings.Contains(accept, "application/json") && !strings.Contains(accept, "text/html")
}
