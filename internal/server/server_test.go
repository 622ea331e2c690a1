package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"meal-scheduler/internal/planner"
	"meal-scheduler/internal/query"
	"meal-scheduler/internal/source"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakePlanner struct {
	plan *planner.MealPlanResponse
	err  error
}

func (f *fakePlanner) GeneratePlan(_ context.Context, _ string) (*planner.MealPlanResponse, error) {
	return f.plan, f.err
}

func doRequest(t *testing.T, h *Handler, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/mealplan", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.Router().ServeHTTP(w, req)
	return w
}

func TestCreateMealPlanSuccess(t *testing.T) {
	h := New(&fakePlanner{plan: &planner.MealPlanResponse{
		MealPlanID:   "plan-1",
		DurationDays: 2,
	}}, t.TempDir(), "")

	w := doRequest(t, h, `{"query": "2 days vegetarian"}`, nil)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body %s", w.Code, w.Body.String())
	}
	var resp planner.MealPlanResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.MealPlanID != "plan-1" || resp.DurationDays != 2 {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestCreateMealPlanEmptyQuery(t *testing.T) {
	h := New(&fakePlanner{}, t.TempDir(), "")

	for _, body := range []string{`{}`, `{"query": ""}`, `not json`} {
		if w := doRequest(t, h, body, nil); w.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, w.Code)
		}
	}
}

func TestCreateMealPlanConflict(t *testing.T) {
	conflict := &query.ConflictError{Diets: [2]string{"vegan", "keto"}}
	h := New(&fakePlanner{err: conflict}, t.TempDir(), "")

	w := doRequest(t, h, `{"query": "vegan keto plan"}`, nil)

	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp["suggestion"] != conflict.Suggestion() {
		t.Errorf("suggestion = %q", resp["suggestion"])
	}
}

func TestCreateMealPlanSourcesDown(t *testing.T) {
	h := New(&fakePlanner{err: fmt.Errorf("fetching candidates: %w", source.ErrAllSourcesFailed)}, t.TempDir(), "")

	if w := doRequest(t, h, `{"query": "any"}`, nil); w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", w.Code)
	}
}

func TestCreateMealPlanInternalError(t *testing.T) {
	h := New(&fakePlanner{err: errors.New("boom")}, t.TempDir(), "")

	if w := doRequest(t, h, `{"query": "any"}`, nil); w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestAuthMiddleware(t *testing.T) {
	const secret = "test-secret"
	h := New(&fakePlanner{plan: &planner.MealPlanResponse{MealPlanID: "p"}}, t.TempDir(), secret)

	if w := doRequest(t, h, `{"query": "any"}`, nil); w.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", w.Code)
	}

	if w := doRequest(t, h, `{"query": "any"}`, map[string]string{
		"Authorization": "Bearer not.a.token",
	}); w.Code != http.StatusUnauthorized {
		t.Errorf("garbage token: status = %d, want 401", w.Code)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "tester",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}

	if w := doRequest(t, h, `{"query": "any"}`, map[string]string{
		"Authorization": "Bearer " + signed,
	}); w.Code != http.StatusOK {
		t.Errorf("valid token: status = %d, want 200; body %s", w.Code, w.Body.String())
	}
}

func TestHealthOpenWithoutAuth(t *testing.T) {
	h := New(&fakePlanner{}, t.TempDir(), "secret")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	h.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("status field = %v", resp["status"])
	}
}
