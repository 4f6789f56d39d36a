package common_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-kasir/internal/common"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) common.ErrorBody {
	t.Helper()
	var body struct {
		Error common.ErrorBody `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error
}

func TestWriteErrorKeepsAppErrorCode(t *testing.T) {
	rec := httptest.NewRecorder()
	common.WriteError(rec, common.NewAppError("INSUFFICIENT_STOCK", "not enough stock", http.StatusConflict, nil))

	require.Equal(t, http.StatusConflict, rec.Code)
	e := decodeError(t, rec)
	require.Equal(t, "INSUFFICIENT_STOCK", e.Code)
	require.Equal(t, "not enough stock", e.Message)
}

func TestWriteErrorHidesUnknownErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	common.WriteError(rec, errors.New("pgx: connection refused to 10.0.0.5:5432"))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	e := decodeError(t, rec)
	require.Equal(t, "INTERNAL", e.Code)
	require.Equal(t, "unknown error", e.Message)
	require.NotContains(t, rec.Body.String(), "10.0.0.5")
}

func TestWriteErrorNil(t *testing.T) {
	rec := httptest.NewRecorder()
	common.WriteError(rec, nil)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "INTERNAL", decodeError(t, rec).Code)
}
