package apperror

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
)

// HTTPErrorHandler returns an Echo error handler rendering every error as
// {"error": {"code": ..., "message": ...}}.
func HTTPErrorHandler(log *slog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, response := ToHTTPError(err)

		if _, ok := As(err); !ok {
			if he, ok := err.(*echo.HTTPError); ok {
				code = he.Code
				response = echoErrorBody(he)
			}
		}

		if code >= 500 {
			log.Error("request error",
				slog.Int("status", code),
				slog.String("error", err.Error()),
			)
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
		} else {
			_ = c.JSON(code, response)
		}
	}
}

func echoErrorBody(he *echo.HTTPError) map[string]any {
	errorObj := map[string]any{
		"code":    statusCode(he.Code),
		"message": http.StatusText(he.Code),
	}
	switch msg := he.Message.(type) {
	case map[string]any:
		if inner, ok := msg["error"].(map[string]any); ok {
			for k, v := range inner {
				errorObj[k] = v
			}
		}
	case string:
		errorObj["message"] = msg
	}
	return map[string]any{"error": errorObj}
}

func statusCode(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return ErrUnauthorized.Code
	case http.StatusForbidden:
		return ErrForbidden.Code
	case http.StatusNotFound:
		return ErrNotFound.Code
	case http.StatusBadRequest:
		return ErrBadRequest.Code
	case http.StatusConflict:
		return ErrConflict.Code
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	default:
		return ErrInternal.Code
	}
}
