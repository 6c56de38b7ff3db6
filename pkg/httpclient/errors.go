package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/tmanjupriya-lang/inventory-management/pkg/errors"
)

// remoteErrorBody matches the {"error":{"code","message"}} envelope written by
// httputil.WriteError, which most webhook receivers built on this module share.
type remoteErrorBody struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ParseResponseError consumes and closes the body of a non-2xx response and
// turns it into an error. Structured bodies keep their code and message.
func ParseResponseError(resp *http.Response, target string) error {
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s returned status %d (failed to read body: %w)", target, resp.StatusCode, err)
	}

	var body remoteErrorBody
	if json.Unmarshal(raw, &body) == nil && body.Error != nil {
		return mapRemoteError(resp.StatusCode, body.Error.Code, body.Error.Message, target)
	}

	return fmt.Errorf("%s returned status %d: %s", target, resp.StatusCode, string(raw))
}

func mapRemoteError(status int, code, message, target string) error {
	msg := fmt.Sprintf("%s: %s", target, message)

	switch {
	case status == http.StatusNotFound:
		return apperrors.NotFoundMessage(msg)
	case status == http.StatusBadRequest:
		return apperrors.InvalidInput(msg)
	case status == http.StatusConflict:
		return apperrors.Conflict(msg)
	case status == http.StatusUnauthorized:
		return apperrors.Unauthorized(msg)
	case status == http.StatusForbidden:
		return apperrors.Forbidden(msg)
	case status == http.StatusGone:
		return apperrors.Gone(msg)
	case status == http.StatusUnprocessableEntity:
		return apperrors.Unprocessable(msg)
	case status >= 500:
		return fmt.Errorf("%s server error (%d/%s): %s", target, status, code, message)
	default:
		return &apperrors.AppError{Code: code, Message: msg, Status: status}
	}
}

// IsClientError reports whether status is a 4xx. Client errors are not
// retried by message consumers since resending the same payload cannot help.
func IsClientError(status int) bool {
	return status >= 400 && status < 500
}
