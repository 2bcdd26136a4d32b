package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

type errorBody struct {
	Error *Error `json:"error"`
}

// FromHTTPError converts router-level errors (unknown route, bind failures,
// middleware rejections) into the shared taxonomy.
func FromHTTPError(he *echo.HTTPError) *Error {
	msg := http.StatusText(he.Code)
	if he.Message != nil {
		msg = fmt.Sprint(he.Message)
	}
	e := &Error{Message: msg, Err: he.Internal}
	switch he.Code {
	case http.StatusBadRequest, http.StatusUnprocessableEntity, http.StatusRequestEntityTooLarge,
		http.StatusUnsupportedMediaType:
		e.Kind, e.Code = KindValidation, "VALIDATION_ERROR"
	case http.StatusNotFound:
		e.Kind, e.Code = KindNotFound, "NOT_FOUND"
	case http.StatusForbidden:
		e.Kind, e.Code = KindForbidden, "FORBIDDEN"
	case http.StatusUnauthorized:
		e.Kind, e.Code = KindUnauthorized, "UNAUTHORIZED"
	default:
		e.Kind, e.Code = KindInternal, http.StatusText(he.Code)
	}
	return e
}

// HTTPErrorHandler renders every error as {"error": {...}}. Non-app errors
// are logged and reported as internal without leaking their text.
func HTTPErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status := http.StatusInternalServerError
		var body *Error

		var appErr *Error
		var he *echo.HTTPError
		switch {
		case errors.As(err, &appErr):
			body = appErr
			status = appErr.HTTPStatus()
		case errors.As(err, &he):
			body = FromHTTPError(he)
			status = he.Code
		default:
			body = Internal("internal server error", err)
		}

		if status >= http.StatusInternalServerError {
			logger.Error().Err(err).
				Str("method", c.Request().Method).
				Str("path", c.Path()).
				Msg("request failed")
			if body.Kind == KindInternal {
				body = &Error{Kind: KindInternal, Code: body.Code, Message: "internal server error"}
			}
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(status)
		} else {
			err = c.JSON(status, errorBody{Error: body})
		}
		if err != nil {
			logger.Error().Err(err).Msg("write error response")
		}
	}
}
