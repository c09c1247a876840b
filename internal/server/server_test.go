package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"forwardlab/internal/gate"
	"forwardlab/internal/lesson"
	"forwardlab/internal/session"
	"forwardlab/internal/storage"
)

func TestHealthAndLesson(t *testing.T) {
	router := newTestRouter(t)

	rec := doRequest(t, router, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected health status: %d", rec.Code)
	}

	rec = doRequest(t, router, http.MethodGet, "/api/lesson", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected lesson status: %d", rec.Code)
	}
	var body struct {
		Architecture []int `json:"architecture"`
		Steps        []struct {
			ID string `json:"id"`
		} `json:"steps"`
		Parameters []struct {
			ID string `json:"id"`
		} `json:"parameters"`
	}
	decodeBody(t, rec, &body)
	if len(body.Architecture) != 4 || len(body.Steps) != 7 || len(body.Parameters) != 6 {
		t.Fatalf("unexpected lesson payload: %+v", body)
	}
	if body.Steps[1].ID != "calc-z1" {
		t.Fatalf("unexpected second step: %s", body.Steps[1].ID)
	}
}

func TestSessionLifecycle(t *testing.T) {
	router := newTestRouter(t)

	rec := doRequest(t, router, http.MethodPost, "/api/sessions", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("unexpected create status: %d body=%s", rec.Code, rec.Body.String())
	}
	var created sessionResponse
	decodeBody(t, rec, &created)
	if created.ID == "" {
		t.Fatal("expected session id")
	}
	base := "/api/sessions/" + created.ID

	z1, _ := lesson.Default().Expected("calc-z1")
	rec = doRequest(t, router, http.MethodPost, base+"/steps/calc-z1/validate", map[string]any{"matrix": z1})
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected validate status: %d body=%s", rec.Code, rec.Body.String())
	}
	var validated validateResponse
	decodeBody(t, rec, &validated)
	if !validated.Accepted || validated.Status != gate.StatusCompleted {
		t.Fatalf("unexpected validate result: %+v", validated.Result)
	}
	if status, _ := validated.State.StatusOf("activate-a1"); status != gate.StatusPending {
		t.Fatalf("expected activate-a1 pending, got %s", status)
	}

	rec = doRequest(t, router, http.MethodGet, "/api/sessions", nil)
	var listed struct {
		Sessions []session.Summary `json:"sessions"`
	}
	decodeBody(t, rec, &listed)
	if len(listed.Sessions) != 1 || listed.Sessions[0].Completed != 2 {
		t.Fatalf("unexpected listing: %+v", listed.Sessions)
	}

	rec = doRequest(t, router, http.MethodPost, base+"/reset", nil)
	var reset sessionResponse
	decodeBody(t, rec, &reset)
	if rec.Code != http.StatusOK || len(reset.State.Completed) != 1 {
		t.Fatalf("unexpected reset: status=%d state=%+v", rec.Code, reset.State)
	}

	rec = doRequest(t, router, http.MethodDelete, base, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("unexpected delete status: %d", rec.Code)
	}
	rec = doRequest(t, router, http.MethodGet, base, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestValidateErrorMapping(t *testing.T) {
	router := newTestRouter(t)

	rec := doRequest(t, router, http.MethodPost, "/api/sessions", nil)
	var created sessionResponse
	decodeBody(t, rec, &created)
	base := "/api/sessions/" + created.ID

	tests := []struct {
		name string
		path string
		body any
		want int
		code string
	}{
		{
			name: "locked-step",
			path: base + "/steps/calc-z2/validate",
			body: map[string]any{"matrix": [][]float64{{0, 0, 0, 0}}},
			want: http.StatusConflict,
			code: "invalid_step_transition",
		},
		{
			name: "unknown-step",
			path: base + "/steps/calc-z9/validate",
			body: map[string]any{"matrix": [][]float64{{0}}},
			want: http.StatusNotFound,
			code: "unknown_step",
		},
		{
			name: "unknown-session",
			path: "/api/sessions/missing/steps/calc-z1/validate",
			body: map[string]any{"matrix": [][]float64{{0}}},
			want: http.StatusNotFound,
			code: "session_not_found",
		},
		{
			name: "missing-matrix",
			path: base + "/steps/calc-z1/validate",
			body: map[string]any{},
			want: http.StatusBadRequest,
			code: "invalid_request",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(t, router, http.MethodPost, tc.path, tc.body)
			if rec.Code != tc.want {
				t.Fatalf("unexpected status: got=%d want=%d body=%s", rec.Code, tc.want, rec.Body.String())
			}
			var envelope ErrorEnvelope
			decodeBody(t, rec, &envelope)
			if envelope.Error.Code != tc.code {
				t.Fatalf("unexpected error code: got=%s want=%s", envelope.Error.Code, tc.code)
			}
		})
	}
}

func TestValidateRejectedCellsReturnOK(t *testing.T) {
	router := newTestRouter(t)

	rec := doRequest(t, router, http.MethodPost, "/api/sessions", nil)
	var created sessionResponse
	decodeBody(t, rec, &created)

	rec = doRequest(t, router, http.MethodPost, "/api/sessions/"+created.ID+"/steps/calc-z1/validate",
		map[string]any{"matrix": [][]float64{{0.09, 0.5, -0.11, 0.07}}})
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status: %d", rec.Code)
	}
	var validated validateResponse
	decodeBody(t, rec, &validated)
	if validated.Accepted || validated.Status != gate.StatusPending {
		t.Fatalf("unexpected result: %+v", validated.Result)
	}
	want := []bool{false, false, true, false}
	for j, bad := range validated.CellErrors[0] {
		if bad != want[j] {
			t.Fatalf("unexpected cell errors: got=%v want=%v", validated.CellErrors[0], want)
		}
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := NewServer(RouterConfig{Sessions: newTestManager(t)})

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	address := listener.Addr().String()
	_ = listener.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx, address)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := http.Get("http://" + address + "/healthz")
		if err == nil {
			_ = resp.Body.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server never became ready: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(shutdownTimeout + time.Second):
		t.Fatal("server did not stop")
	}
}

func newTestManager(t *testing.T) *session.Manager {
	t.Helper()
	m := session.NewManager(session.Config{Graph: lesson.Default(), Store: storage.NewMemoryStore()})
	if err := m.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	return m
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	return NewRouter(RouterConfig{Sessions: newTestManager(t)})
}

func doRequest(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
		t.Fatalf("decode body: %v body=%s", err, rec.Body.String())
	}
}
