package api

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"smartclass/internal/builder"
	"smartclass/internal/connection"
	"smartclass/internal/domain"
	"smartclass/internal/pagination"
	"smartclass/internal/service"
	"smartclass/internal/storage"
)

var (
	errUnauthorized   = echo.NewHTTPError(http.StatusUnauthorized, "missing or invalid token")
	errEditorDisabled = echo.NewHTTPError(http.StatusNotImplemented, "external editor is not available")
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrProjectNotFound),
		errors.Is(err, domain.ErrAssetNotFound),
		errors.Is(err, builder.ErrElementNotFound),
		errors.Is(err, pagination.ErrPageNotFound),
		errors.Is(err, storage.ErrRevisionNotFound),
		errors.Is(err, service.ErrSessionNotOpen):
		return http.StatusNotFound
	case errors.Is(err, builder.ErrUnknownType),
		errors.Is(err, builder.ErrUnknownTemplate),
		errors.Is(err, builder.ErrInvalidContent),
		errors.Is(err, builder.ErrDuplicateID),
		errors.Is(err, pagination.ErrMalformedContent),
		errors.Is(err, pagination.ErrUnknownVersion),
		errors.Is(err, service.ErrEmptyName),
		errors.Is(err, service.ErrMalformedDataURL),
		errors.Is(err, service.ErrAssetEmpty):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUnsupportedMedia):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, service.ErrAssetTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, builder.ErrInvalidParent),
		errors.Is(err, builder.ErrCycle),
		errors.Is(err, builder.ErrNotTextEditable),
		errors.Is(err, builder.ErrNoGesture),
		errors.Is(err, pagination.ErrLastPage),
		errors.Is(err, connection.ErrNotConnectable),
		errors.Is(err, connection.ErrNoPair),
		errors.Is(err, connection.ErrGroupOverflow),
		errors.Is(err, connection.ErrConnectionGroupFull),
		errors.Is(err, connection.ErrAlreadyConnected),
		errors.Is(err, connection.ErrRetryNotAllowed),
		errors.Is(err, service.ErrSaveInProgress):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// appHTTPErrorHandler renders every error as JSON: validation errors as a
// field map, domain errors with their mapped status, anything else as 500.
func appHTTPErrorHandler(err error, c echo.Context) {
	var code int
	var message any

	var herr *echo.HTTPError
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &herr):
		if herr.Internal != nil {
			if inner, ok := herr.Internal.(*echo.HTTPError); ok {
				herr = inner
			}
		}
		code = herr.Code
		message = herr.Message
	case errors.As(err, &verrs):
		fldErrs := make(map[string]string, len(verrs))
		for _, vErr := range verrs {
			fldErrs[vErr.Field()] = vErr.Translate(translator)
		}
		code = http.StatusBadRequest
		message = fldErrs
	default:
		code = statusFor(err)
		if code == http.StatusInternalServerError {
			c.Logger().Errorf("%s %s: %v", c.Request().Method, c.Path(), err)
			message = http.StatusText(code)
		} else {
			message = err.Error()
		}
	}

	if c.Echo().Debug {
		message = err.Error()
	}
	if m, ok := message.(string); ok {
		message = echo.Map{"error": m}
	}

	if !c.Response().Committed {
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, message)
		}
		if err != nil {
			c.Logger().Error(err)
		}
	}
}
