package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func newRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(JWTMiddleware(secret, zerolog.Nop()))
	r.GET("/api/wheel/state", func(c *gin.Context) {
		id, _ := GetOperatorID(c)
		name, _ := GetOperator(c)
		c.String(http.StatusOK, id+":"+name)
	})
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestGenerateAndParse(t *testing.T) {
	token, err := GenerateToken(secret, "op-1", "host", time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(secret, token)
	require.NoError(t, err)
	assert.Equal(t, "op-1", claims.OperatorID)
	assert.Equal(t, RoleOperator, claims.Role)

	_, err = ParseToken("other-secret", token)
	assert.Error(t, err)

	_, err = GenerateToken("", "op-1", "host", time.Hour)
	assert.Error(t, err)
}

func TestMiddleware(t *testing.T) {
	r := newRouter()
	valid, err := GenerateToken(secret, "op-1", "host", time.Hour)
	require.NoError(t, err)
	expired, err := GenerateToken(secret, "op-1", "host", -time.Minute)
	require.NoError(t, err)
	viewer, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{OperatorID: "v", Role: "viewer"}).SignedString([]byte(secret))
	require.NoError(t, err)

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"valid header", "/api/wheel/state", "Bearer " + valid, http.StatusOK},
		{"valid query", "/api/wheel/state?token=" + valid, "", http.StatusOK},
		{"missing", "/api/wheel/state", "", http.StatusUnauthorized},
		{"wrong scheme", "/api/wheel/state", "Basic " + valid, http.StatusUnauthorized},
		{"expired", "/api/wheel/state", "Bearer " + expired, http.StatusUnauthorized},
		{"not an operator", "/api/wheel/state", "Bearer " + viewer, http.StatusUnauthorized},
		{"skipped path", "/health", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusOK && tt.path != "/health" {
				assert.Equal(t, "op-1:host", rec.Body.String())
			}
		})
	}
}
