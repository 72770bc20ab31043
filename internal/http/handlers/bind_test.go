package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/geocoder89/bugzapp/internal/domain/bug"
	"github.com/geocoder89/bugzapp/internal/http/handlers"
	"github.com/gin-gonic/gin"
)

type errorResponse struct {
	Error string `json:"error"`
}

func bindRouter() *gin.Engine {
	r := gin.New()
	r.POST("/bugs", func(ctx *gin.Context) {
		var req bug.CreateBugRequest
		if !handlers.BindJSON(ctx, &req) {
			return
		}
		ctx.JSON(http.StatusCreated, req)
	})
	return r
}

func TestBindJSON(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantErr    string
	}{
		{
			name:       "valid body",
			body:       `{"title":"crash on save"}`,
			wantStatus: http.StatusCreated,
		},
		{
			name:       "empty body binds as zero value",
			body:       ``,
			wantStatus: http.StatusCreated,
		},
		{
			name:       "validation error uses json field name",
			body:       `{"title":"` + strings.Repeat("a", 201) + `"}`,
			wantStatus: http.StatusBadRequest,
			wantErr:    "title must be at most 200 characters",
		},
		{
			name:       "syntax error",
			body:       `{"title":`,
			wantStatus: http.StatusBadRequest,
			wantErr:    "Invalid JSON body",
		},
		{
			name:       "type mismatch",
			body:       `{"title":42}`,
			wantStatus: http.StatusBadRequest,
			wantErr:    "title must be of type string",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/bugs", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")

			w := httptest.NewRecorder()
			bindRouter().ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatus, w.Body.String())
			}

			if tt.wantErr == "" {
				return
			}

			var resp errorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to unmarshal error response: %v body=%s", err, w.Body.String())
			}
			if resp.Error != tt.wantErr {
				t.Fatalf("got error %q, want %q", resp.Error, tt.wantErr)
			}
		})
	}
}
