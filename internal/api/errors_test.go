package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fas-floormap/backend/internal/floor"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestErrorHandler(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		details     bool
		wantStatus  int
		wantCode    string
		wantDetails string
	}{
		{"api error", NewValidationError("station"), false, http.StatusBadRequest, CodeValidation, ""},
		{"echo error", echo.NewHTTPError(http.StatusMethodNotAllowed, "nope"), false, http.StatusMethodNotAllowed, "HTTP_ERROR", ""},
		{"unexpected hidden", errors.New("boom"), false, http.StatusInternalServerError, "UNKNOWN_ERROR", ""},
		{"unexpected with details", errors.New("boom"), true, http.StatusInternalServerError, "UNKNOWN_ERROR", "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SetErrorDetails(tt.details)
			defer SetErrorDetails(false)

			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/x", nil), rec)
			ErrorHandler(tt.err, c)

			assert.Equal(t, tt.wantStatus, rec.Code)
			var body APIError
			decode(t, rec, &body)
			assert.Equal(t, tt.wantCode, body.Code)
			assert.Equal(t, tt.wantDetails, body.Details)
		})
	}
}

func TestFloorError(t *testing.T) {
	err := floorError("abc", floor.ErrStopped)
	var apiErr *APIError
	if assert.True(t, errors.As(err, &apiErr)) {
		assert.Equal(t, http.StatusGone, apiErr.Status)
		assert.Equal(t, CodeSessionClosed, apiErr.Code)
	}

	err = floorError("abc", errors.New("wrapped"))
	if assert.True(t, errors.As(err, &apiErr)) {
		assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	}
}
