package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func handle(t *testing.T, method string, data interface{}, err error) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, "/", nil)

	Handle(c, data, err)

	var decoded Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded))
	return w, decoded
}

func TestHandleSuccess(t *testing.T) {
	w, resp := handle(t, http.MethodGet, gin.H{"ok": true}, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)
	assert.Nil(t, resp.Error)

	// POST success means created
	w, _ = handle(t, http.MethodPost, gin.H{"ok": true}, nil)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestHandleNotFound(t *testing.T) {
	w, resp := handle(t, http.MethodGet, nil, gorm.ErrRecordNotFound)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
}

func TestHandleDuplicate(t *testing.T) {
	w, resp := handle(t, http.MethodPost, nil, gorm.ErrDuplicatedKey)
	assert.Equal(t, http.StatusConflict, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeDuplicateResource, resp.Error.Code)
}

func TestHandleUnknownError(t *testing.T) {
	w, resp := handle(t, http.MethodGet, nil, errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInternalError, resp.Error.Code)
	// Internal details never leak to the caller
	assert.NotContains(t, resp.Error.Message, "boom")
}
