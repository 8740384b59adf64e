package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func serve(origins []string, method, origin string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(New(origins))
	r.GET("/vacancies", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(method, "/vacancies", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestAllowAllOmitsCredentials(t *testing.T) {
	rec := serve(nil, http.MethodGet, "https://example.org")

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), "Content-Disposition")
}

func TestListedOriginIsEchoed(t *testing.T) {
	rec := serve([]string{"https://portal.example.org/"}, http.MethodGet, "https://portal.example.org")

	assert.Equal(t, "https://portal.example.org", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestUnlistedOriginIsNotAllowed(t *testing.T) {
	rec := serve([]string{"https://portal.example.org"}, http.MethodGet, "https://evil.example.com")

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPreflightShortCircuits(t *testing.T) {
	rec := serve(nil, http.MethodOptions, "https://example.org")

	assert.Equal(t, http.StatusNoContent, rec.Code)
}
