package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestHealthCheckReportsPingFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		name string
		ping Pinger
		code int
	}{
		{"no ping", nil, http.StatusOK},
		{"ping ok", func(context.Context) error { return nil }, http.StatusOK},
		{"ping fails", func(context.Context) error { return errors.New("connection refused") }, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := gin.New()
			r.GET("/healthcheck", NewHealthHandler(tc.ping).HealthCheck)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthcheck", nil))
			if rec.Code != tc.code {
				t.Fatalf("status: got=%d want=%d", rec.Code, tc.code)
			}
		})
	}
}
