package http

import (
	"errors"
	"net/http"

	"github.com/newsletterlab/pulse/internal/domain/newsletter/entity"
	"github.com/newsletterlab/pulse/internal/httpx/response"
)

// requestError is a malformed request parameter
type requestError struct {
	msg string
}

func (e *requestError) Error() string {
	return e.msg
}

func badRequest(msg string) error {
	return &requestError{msg: msg}
}

// handleDomainError maps domain errors to HTTP responses
func handleDomainError(w http.ResponseWriter, err error) {
	var (
		reqErr *requestError
		colErr *entity.MissingColumnError
		upErr  *entity.UpstreamError
	)

	switch {
	case errors.As(err, &reqErr):
		response.BadRequest(w, err.Error())
	case errors.Is(err, entity.ErrDatasetNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, entity.ErrEmptyNewsletter), errors.Is(err, entity.ErrNoPublicationID),
		errors.Is(err, entity.ErrUnknownMetric), errors.Is(err, entity.ErrInvalidGranularity),
		errors.Is(err, entity.ErrInvalidRange):
		response.BadRequest(w, err.Error())
	case errors.Is(err, entity.ErrEmptyInput), errors.Is(err, entity.ErrUnparseableFile),
		errors.As(err, &colErr):
		response.Unprocessable(w, err.Error())
	case errors.Is(err, entity.ErrStaleSync):
		response.Conflict(w, err.Error())
	case errors.Is(err, entity.ErrUpstreamLimited):
		response.TooManyRequests(w, err.Error(), "")
	case errors.As(err, &upErr):
		if upErr.Status == http.StatusTooManyRequests {
			response.TooManyRequests(w, err.Error(), "")
			return
		}
		response.BadGateway(w, err.Error())
	default:
		response.InternalError(w, "internal server error")
	}
}
