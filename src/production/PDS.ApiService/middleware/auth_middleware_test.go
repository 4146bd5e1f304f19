package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	jwt "gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.ApiService/implementation/jwt"
	logger "gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.Logger"
	api_models "gitlab.com/maplesense1/pds.dispenser_server/src/production/PDS.Models/api"
)

func newRouter(svc *jwt.Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogger(logger.NewNop()))
	auth := NewAuthMiddleware(svc, DefaultConfig())
	r.GET("/me", auth.Authenticate(), func(c *gin.Context) {
		userID, err := GetUserFromGinContext(c)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.String(http.StatusOK, userID)
	})
	return r
}

func TestAuthenticate(t *testing.T) {
	svc := jwt.NewService(api_models.Config{SecretKey: "test-secret"})
	r := newRouter(svc)

	token, err := svc.IssueAccessToken("user-1", "user", time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"bearer", "Bearer " + token, http.StatusOK},
		{"raw token", token, http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"invalid", "Bearer nope", http.StatusUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, w.Code, w.Body.String())
			}
			if tc.status == http.StatusOK && w.Body.String() != "user-1" {
				t.Fatalf("expected user-1, got %q", w.Body.String())
			}
			if w.Header().Get(RequestIDHeader) == "" {
				t.Fatalf("expected request id header")
			}
		})
	}
}

func TestAuthenticateCookie(t *testing.T) {
	svc := jwt.NewService(api_models.Config{SecretKey: "test-secret"})
	token, _ := svc.IssueAccessToken("user-2", "user", time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: token})
	req.Header.Set(RequestIDHeader, "req-42")
	w := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(w, req)

	if w.Code != http.StatusOK || w.Body.String() != "user-2" {
		t.Fatalf("unexpected response %d %q", w.Code, w.Body.String())
	}
	if w.Header().Get(RequestIDHeader) != "req-42" {
		t.Fatalf("expected request id to be echoed")
	}
}

func TestRequestLoggerRecordsCaller(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	zl := zerolog.New(&buf)

	svc := jwt.NewService(api_models.Config{SecretKey: "test-secret"})
	token, _ := svc.IssueAccessToken("user-3", "caregiver", time.Hour)
	claims, err := svc.ValidateAccessToken(token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r := gin.New()
	r.Use(RequestLogger(&logger.Logger{Logger: &zl}))
	r.GET("/me", NewAuthMiddleware(svc, DefaultConfig()).Authenticate(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(httptest.NewRecorder(), req)

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if line["user_id"] != "user-3" || line["user_role"] != "caregiver" || line["token_id"] != claims.TokenID {
		t.Fatalf("unexpected log line %v", line)
	}
	if line["status"] != float64(http.StatusNoContent) {
		t.Fatalf("unexpected status in log %v", line["status"])
	}
}
