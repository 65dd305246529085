package shared

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/specsflow-next/internal/service"

	"github.com/gin-gonic/gin"
)

func TestCodeForServiceError(t *testing.T) {
	cases := []struct {
		err  error
		code int
		ok   bool
	}{
		{err: service.ErrOrderNotFound, code: 404, ok: true},
		{err: fmt.Errorf("wrap: %w", service.ErrTaskStatusInvalid), code: 409, ok: true},
		{err: service.ErrInvalidRating, code: 400, ok: true},
		{err: service.ErrPickupTokenExpired, code: 400, ok: true},
		{err: service.ErrActiveTaskExists, code: 409, ok: true},
		{err: errors.New("disk full"), code: 0, ok: false},
	}
	for _, tc := range cases {
		code, ok := CodeForServiceError(tc.err)
		if code != tc.code || ok != tc.ok {
			t.Fatalf("%v: want (%d,%v) got (%d,%v)", tc.err, tc.code, tc.ok, code, ok)
		}
	}
}

func TestRespondServiceErrorHidesUnknownCause(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/boom", func(c *gin.Context) {
		RespondServiceError(c, errors.New("pq: connection refused"), "order fetch failed")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	var resp struct {
		StatusCode int    `json:"status_code"`
		Msg        string `json:"msg"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response failed: %v", err)
	}
	if resp.StatusCode != 500 || resp.Msg != "order fetch failed" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}
