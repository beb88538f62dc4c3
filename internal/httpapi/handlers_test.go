package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"saedportal.org/internal/directory"
	"saedportal.org/internal/gateway"
	"saedportal.org/internal/portal"
	"saedportal.org/internal/review"
	"saedportal.org/internal/session"
)

type apiClient struct {
	baseURL string
	client  *http.Client
	mem     *gateway.InMemory
	t       *testing.T
}

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()

	mem := gateway.NewInMemory()
	dir := directory.New(mem)
	reviews := review.New(mem, dir)
	ctrl := session.New(mem, mem, dir, reviews)

	api := New(mem, mem, ctrl, dir, reviews, nil, "test")
	api.rateBurst = 1000
	api.ratePerSec = 1000

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL: srv.URL,
		client:  srv.Client(),
		mem:     mem,
		t:       t,
	}
}

func (c *apiClient) post(path string, body any) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) get(path string) *http.Response {
	c.t.Helper()
	resp, err := c.client.Get(c.baseURL + path)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHealthz(t *testing.T) {
	c := newTestAPI(t)
	resp := c.get("/healthz")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body map[string]any
	decode(t, resp, &body)
	if body["status"] != "ok" || body["service"] != "saed-portal" {
		t.Fatalf("unexpected body: %v", body)
	}
}

func TestReadyz(t *testing.T) {
	c := newTestAPI(t)
	resp := c.get("/readyz")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestSignupThenSessionReflectsRole(t *testing.T) {
	c := newTestAPI(t)

	resp := c.post("/v1/auth/signup", map[string]any{
		"name":       "Ada",
		"email":      "ada@example.com",
		"password":   "secret1",
		"role":       "CORPER",
		"state_code": "LA/23A/1234",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("signup: expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		Role string `json:"role"`
		User *struct {
			Name      string `json:"name"`
			Status    string `json:"status"`
			StateCode string `json:"state_code"`
		} `json:"user"`
	}
	decode(t, resp, &body)
	if body.Role != "CORPER" {
		t.Fatalf("unexpected role: %s", body.Role)
	}
	if body.User == nil || body.User.Name != "Ada" || body.User.Status != "PENDING" {
		t.Fatalf("unexpected user: %+v", body.User)
	}
}

func TestSignupValidationRejected(t *testing.T) {
	c := newTestAPI(t)
	resp := c.post("/v1/auth/signup", map[string]any{
		"name": "Ada", "email": "ada@example.com", "password": "12345", "role": "CORPER",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for short password, got %d", resp.StatusCode)
	}
	var body map[string]any
	decode(t, resp, &body)
	if body["error"] == "" || body["request_id"] == "" {
		t.Fatalf("expected error and request_id, got %v", body)
	}
}

func TestLoginWrongCredentials(t *testing.T) {
	c := newTestAPI(t)
	resp := c.post("/v1/auth/login", map[string]any{
		"email": "nobody@example.com", "password": "secret1",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestDirectoryFiltersBySkill(t *testing.T) {
	c := newTestAPI(t)
	ctx := context.Background()
	c.mem.UpsertInstructor(ctx, portal.InstructorRecord{
		ID: "i-1", Name: "Michael Ade", Skills: []string{"Web Design"}, Status: portal.ApprovalApproved,
	})
	c.mem.UpsertInstructor(ctx, portal.InstructorRecord{
		ID: "i-2", Name: "Chidimma Okeke", Skills: []string{"Tailoring"}, Status: portal.ApprovalApproved,
	})

	// Refresh through the engine path the UI uses.
	resp := c.post("/v1/auth/signup", map[string]any{
		"name": "Ada", "email": "ada@example.com", "password": "secret1", "role": "CORPER",
	})
	resp.Body.Close()

	resp = c.get("/v1/directory?skill=Tailoring")
	var body struct {
		Instructors []portal.InstructorRecord `json:"instructors"`
	}
	decode(t, resp, &body)
	if len(body.Instructors) != 1 || body.Instructors[0].ID != "i-2" {
		t.Fatalf("unexpected filter result: %+v", body.Instructors)
	}
}

func TestInstructorDetail(t *testing.T) {
	c := newTestAPI(t)
	ctx := context.Background()
	c.mem.UpsertInstructor(ctx, portal.InstructorRecord{
		ID: "i-1", Name: "Michael Ade", Status: portal.ApprovalApproved,
	})
	resp := c.post("/v1/auth/signup", map[string]any{
		"name": "Ada", "email": "ada@example.com", "password": "secret1", "role": "CORPER",
	})
	resp.Body.Close()

	resp = c.get("/v1/instructors/i-1")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var rec portal.InstructorRecord
	decode(t, resp, &rec)
	if rec.Name != "Michael Ade" {
		t.Fatalf("unexpected record: %+v", rec)
	}

	resp = c.get("/v1/instructors/ghost")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestRegistrationLifecycleOverHTTP(t *testing.T) {
	c := newTestAPI(t)

	resp := c.post("/v1/registrations", map[string]any{
		"corper_id":     "c-1",
		"corper_name":   "Ada",
		"instructor_id": "i-1",
		"skill_name":    "Web Design",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", resp.StatusCode)
	}
	var reg portal.Registration
	decode(t, resp, &reg)
	if reg.ID == "" || reg.Status != portal.RegistrationPending {
		t.Fatalf("unexpected registration: %+v", reg)
	}

	resp = c.post("/v1/registrations/"+reg.ID+"/status", map[string]any{
		"from": "PENDING", "to": "COMPLETED",
	})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("illegal transition: expected 422, got %d", resp.StatusCode)
	}

	// A legal-looking transition with a stale claimed status must be
	// refused by the stored row, not waved through.
	resp = c.post("/v1/registrations/"+reg.ID+"/status", map[string]any{
		"from": "ACCEPTED", "to": "COMPLETED",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("stale from: expected 409, got %d", resp.StatusCode)
	}

	resp = c.post("/v1/registrations/"+reg.ID+"/status", map[string]any{
		"from": "PENDING", "to": "ACCEPTED",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("accept: expected 200, got %d", resp.StatusCode)
	}

	regs, _ := c.mem.RegistrationsByCorper(context.Background(), "c-1")
	if len(regs) != 1 || regs[0].Status != portal.RegistrationAccepted {
		t.Fatalf("status not persisted: %+v", regs)
	}
}

func TestUserStatusEndpoint(t *testing.T) {
	c := newTestAPI(t)
	ctx := context.Background()
	c.mem.UpsertProfile(ctx, portal.Profile{
		ID: "i-1", Name: "Michael Ade", Role: portal.RoleInstructor, Status: portal.ApprovalPending,
	})
	c.mem.UpsertInstructor(ctx, portal.InstructorRecord{
		ID: "i-1", Name: "Michael Ade", Status: portal.ApprovalPending,
	})

	resp := c.post("/v1/users/i-1/status", map[string]any{
		"role": "INSTRUCTOR", "status": "APPROVED",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	p, _ := c.mem.ProfileByID(ctx, "i-1")
	rec, _ := c.mem.InstructorByID(ctx, "i-1")
	if p.Status != portal.ApprovalApproved || rec.Status != portal.ApprovalApproved {
		t.Fatalf("dual write incomplete: profile=%s instructor=%s", p.Status, rec.Status)
	}
}

func TestUserStatusMissingUser(t *testing.T) {
	c := newTestAPI(t)
	resp := c.post("/v1/users/ghost/status", map[string]any{
		"role": "CORPER", "status": "APPROVED",
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestUserStatusRejectsUnknownValues(t *testing.T) {
	c := newTestAPI(t)
	ctx := context.Background()
	c.mem.UpsertProfile(ctx, portal.Profile{
		ID: "u-1", Name: "Ada", Role: portal.RoleCorper, Status: portal.ApprovalPending,
	})

	resp := c.post("/v1/users/u-1/status", map[string]any{
		"role": "CORPER", "status": "SUPERSEDED",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad status: expected 400, got %d", resp.StatusCode)
	}

	resp = c.post("/v1/users/u-1/status", map[string]any{
		"role": "OVERLORD", "status": "APPROVED",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad role: expected 400, got %d", resp.StatusCode)
	}

	p, _ := c.mem.ProfileByID(ctx, "u-1")
	if p == nil || p.Status != portal.ApprovalPending {
		t.Fatalf("rejected request must not write: %+v", p)
	}
}

func TestAdvisorDisabled(t *testing.T) {
	c := newTestAPI(t)
	resp := c.post("/v1/advisor/skills", map[string]any{"interests": "photography"})
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without advisor, got %d", resp.StatusCode)
	}
}

func TestUnknownRouteIs404(t *testing.T) {
	c := newTestAPI(t)
	resp := c.get("/nope")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}
