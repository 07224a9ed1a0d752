package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/campaignwala/backend/internal/middleware"
	"github.com/campaignwala/backend/internal/models"
	"github.com/campaignwala/backend/internal/services"
	"go.uber.org/zap"
)

const maxBodyBytes = 1_048_576

// base carries what every handler needs to decode, validate and answer.
type base struct {
	validator    *services.ValidationHelper
	exposeErrors bool
	logger       *zap.Logger
}

func newBase(exposeErrors bool, logger *zap.Logger) base {
	return base{
		validator:    services.NewValidationHelper(),
		exposeErrors: exposeErrors,
		logger:       logger,
	}
}

// decode reads a single JSON object into dst and validates it. On failure the
// error response has already been written.
func (b base) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			services.SendErrorResponse(w, "Request body is required", http.StatusBadRequest, nil)
			return false
		}
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return false
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		services.SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return false
	}

	if err := b.validator.ValidateStruct(dst); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return false
	}
	return true
}

// decodeOptional is decode for endpoints whose body may be absent.
func (b base) decodeOptional(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	return b.decode(w, r, dst)
}

func (b base) fail(w http.ResponseWriter, err error) {
	if services.StatusFor(err) == http.StatusInternalServerError {
		b.logger.Error("request failed", zap.Error(err))
	}
	services.SendServiceError(w, err, b.exposeErrors)
}

func currentUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		services.SendErrorResponse(w, "Authentication required", http.StatusUnauthorized, nil)
		return nil, false
	}
	return user, true
}

// ownerOrAdmin lets a user act on their own resources; admins act on anyone's.
func ownerOrAdmin(w http.ResponseWriter, r *http.Request, ownerID string) (*models.User, bool) {
	user, ok := currentUser(w, r)
	if !ok {
		return nil, false
	}
	if !user.IsAdmin() && user.ID != ownerID {
		services.SendErrorResponse(w, "Access denied", http.StatusForbidden, nil)
		return nil, false
	}
	return user, true
}

type listResponse struct {
	Items      any                 `json:"items"`
	Pagination services.Pagination `json:"pagination"`
}

func pageRequest(r *http.Request) services.PageRequest {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	return services.PageRequest{Page: page, Limit: limit}
}

// boolQuery returns nil when the parameter is absent or not a boolean.
func boolQuery(r *http.Request, key string) *bool {
	v, err := strconv.ParseBool(strings.TrimSpace(r.URL.Query().Get(key)))
	if err != nil {
		return nil
	}
	return &v
}
