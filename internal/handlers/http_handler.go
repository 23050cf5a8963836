package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/Varun5711/shortqr/internal/apperrors"
	"github.com/Varun5711/shortqr/internal/logger"
	"github.com/Varun5711/shortqr/internal/middleware"
	"github.com/Varun5711/shortqr/internal/models"
	"github.com/Varun5711/shortqr/internal/service"
	"github.com/Varun5711/shortqr/internal/validation"
)

const maxBodyBytes = 1 << 20

type dataResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
}

type listResponse struct {
	Success    bool                  `json:"success"`
	Data       []models.LinkResponse `json:"data"`
	Pagination models.Pagination     `json:"pagination"`
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// LinkHandler serves link creation and owner management.
type LinkHandler struct {
	links   *service.LinkService
	baseURL string
	log     *logger.Logger
}

func NewLinkHandler(links *service.LinkService, baseURL string, log *logger.Logger) *LinkHandler {
	return &LinkHandler{links: links, baseURL: baseURL, log: log}
}

func (h *LinkHandler) CreateURL(w http.ResponseWriter, r *http.Request) {
	var req models.CreateLinkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validation.Struct(&req); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.links.Create(r.Context(), service.CreateLinkInput{
		OriginalURL:   req.OriginalURL,
		OwnerID:       middleware.GetUserID(r.Context()),
		CustomAlias:   req.CustomAlias,
		Title:         req.Title,
		ExpiresInDays: req.ExpiresIn,
	})
	if err != nil {
		respondAppError(w, h.log, err)
		return
	}

	resp := models.NewLinkResponse(created.Link, h.baseURL)
	resp.ShortURL = created.ShortURL
	respondJSON(w, http.StatusCreated, dataResponse{Success: true, Data: resp})
}

func (h *LinkHandler) ListURLs(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", service.DefaultPageSize)

	result, err := h.links.List(r.Context(), middleware.GetUserID(r.Context()), page, limit)
	if err != nil {
		respondAppError(w, h.log, err)
		return
	}

	data := make([]models.LinkResponse, 0, len(result.Links))
	for _, link := range result.Links {
		data = append(data, models.NewLinkResponse(link, h.baseURL))
	}
	respondJSON(w, http.StatusOK, listResponse{Success: true, Data: data, Pagination: result.Pagination})
}

func (h *LinkHandler) DeleteURL(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.links.Delete(r.Context(), middleware.GetUserID(r.Context()), id); err != nil {
		respondAppError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, messageResponse{Success: true, Message: "URL deleted successfully"})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return errors.New("request body is required")
		case errors.As(err, &tooLarge):
			return errors.New("request body too large")
		default:
			return errors.New("invalid JSON")
		}
	}
	return nil
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "Invalid URL id")
		return 0, false
	}
	return id, true
}

func queryInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return def
	}
	return v
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, models.ErrorResponse{Success: false, Error: message})
}

// respondAppError maps err to its status. Internal causes are logged, never sent.
func respondAppError(w http.ResponseWriter, log *logger.Logger, err error) {
	appErr := apperrors.From(err)
	if appErr.Kind == apperrors.KindInternal {
		log.Error("%s: %v", appErr.Message, appErr.Err)
	}
	respondError(w, appErr.StatusCode(), appErr.Message)
}
