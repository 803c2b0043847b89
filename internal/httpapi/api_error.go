package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/John-Robertt/clashmerge/internal/cache"
	"github.com/John-Robertt/clashmerge/internal/clash"
	"github.com/John-Robertt/clashmerge/internal/fetch"
	"github.com/John-Robertt/clashmerge/internal/merge"
	"github.com/John-Robertt/clashmerge/internal/model"
	"github.com/John-Robertt/clashmerge/internal/profile"
	"github.com/John-Robertt/clashmerge/internal/rules"
	"github.com/John-Robertt/clashmerge/internal/ruleset"
	"github.com/John-Robertt/clashmerge/internal/sub"
)

// APIError is used by the HTTP layer for request validation and a few
// HTTP-specific errors.
type APIError struct {
	Status   int
	AppError model.AppError
	Cause    error
}

func (e *APIError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *APIError) Unwrap() error { return e.Cause }

func apiError(status int, app model.AppError, cause error) error {
	return &APIError{Status: status, AppError: app, Cause: cause}
}

func appErr(code, message, stage string) model.AppError {
	return model.AppError{Code: code, Message: message, Stage: stage}
}

func requestError(code, message, hint string) error {
	return apiError(http.StatusBadRequest, model.AppError{
		Code:    code,
		Message: message,
		Stage:   "validate_request",
		Hint:    hint,
	}, nil)
}

// statusOf maps an error to its HTTP status and payload. Errors caused by
// user content (subscription, template, profile, rule lists) are 422.
func statusOf(err error) (int, model.AppError) {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Status, ae.AppError
	}

	// The fetch error is checked before the wrappers around it so a
	// timeout stays a 504 even when it surfaced while expanding rule lists.
	var fe *fetch.FetchError
	if errors.As(err, &fe) {
		return fe.Status, fe.AppError
	}

	var se *sub.SubError
	if errors.As(err, &se) {
		return http.StatusUnprocessableEntity, se.AppError
	}
	var pe *profile.ParseError
	if errors.As(err, &pe) {
		return http.StatusUnprocessableEntity, pe.AppError
	}
	var rpe *rules.ParseError
	if errors.As(err, &rpe) {
		return http.StatusUnprocessableEntity, rpe.AppError
	}
	var cpe *clash.ParseError
	if errors.As(err, &cpe) {
		return http.StatusUnprocessableEntity, cpe.AppError
	}
	var me *merge.MergeError
	if errors.As(err, &me) {
		return http.StatusUnprocessableEntity, me.AppError
	}

	var ee *ruleset.ExpandError
	if errors.As(err, &ee) {
		return http.StatusUnprocessableEntity, ee.AppError
	}

	var ce *cache.CacheError
	if errors.As(err, &ce) {
		return http.StatusInternalServerError, ce.AppError
	}

	return http.StatusInternalServerError, model.AppError{
		Code:    "INTERNAL_ERROR",
		Message: "服务端内部错误",
		Stage:   "internal",
		Hint:    err.Error(),
	}
}

func (h *convertHandler) writeErrorFromErr(c *gin.Context, err error) {
	if err == nil {
		return
	}
	status, app := statusOf(err)
	h.metrics.incAppError(app.Stage, app.Code)
	entry := logrus.WithFields(logrus.Fields{"code": app.Code, "stage": app.Stage, "status": status})
	if status >= http.StatusInternalServerError {
		entry.WithError(err).Error("request failed")
	} else {
		entry.WithError(err).Warn("request rejected")
	}
	WriteError(c, status, app)
}
