// Package httpapi exposes the portal engine over HTTP: auth actions,
// the session snapshot, the public directory, status mutations, the
// advisor, and the operational probes.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"saedportal.org/internal/ai"
	"saedportal.org/internal/audit"
	"saedportal.org/internal/directory"
	"saedportal.org/internal/gateway"
	"saedportal.org/internal/obs"
	"saedportal.org/internal/portal"
	"saedportal.org/internal/review"
	"saedportal.org/internal/session"
)

// API wires the portal components to the HTTP mux.
type API struct {
	mux     *http.ServeMux
	store   gateway.Store
	auth    gateway.Auth
	ctrl    *session.Controller
	dir     *directory.Cache
	reviews *review.Gateway
	advisor *ai.Client
	version string

	rateBurst  int
	ratePerSec float64
}

// New builds the API. The advisor may be nil when no key is configured.
func New(store gateway.Store, auth gateway.Auth, ctrl *session.Controller, dir *directory.Cache, reviews *review.Gateway, advisor *ai.Client, version string) *API {
	a := &API{
		mux:        http.NewServeMux(),
		store:      store,
		auth:       auth,
		ctrl:       ctrl,
		dir:        dir,
		reviews:    reviews,
		advisor:    advisor,
		version:    version,
		rateBurst:  40,
		ratePerSec: 20,
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/v1/session", a.Session)
	a.mux.HandleFunc("/v1/auth/login", a.Login)
	a.mux.HandleFunc("/v1/auth/signup", a.Signup)
	a.mux.HandleFunc("/v1/auth/logout", a.Logout)
	a.mux.HandleFunc("/v1/auth/events", a.Stream)

	a.mux.HandleFunc("/v1/directory", a.Directory)
	a.mux.HandleFunc("/v1/instructors/", a.Instructor)

	a.mux.HandleFunc("/v1/registrations", a.CreateRegistration)
	a.mux.HandleFunc("/v1/registrations/", a.RegistrationStatus)
	a.mux.HandleFunc("/v1/users/", a.UserStatus)

	a.mux.HandleFunc("/v1/advisor/skills", a.RecommendSkills)
	a.mux.HandleFunc("/v1/advisor/resume", a.AnalyzeResume)
	a.mux.HandleFunc("/v1/advisor/summary", a.QuarterlySummary)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// SetRateLimit tunes the per-IP throttle before Handler is built.
func (a *API) SetRateLimit(burst int, perSecond float64) {
	if burst > 0 {
		a.rateBurst = burst
	}
	if perSecond > 0 {
		a.ratePerSec = perSecond
	}
}

// Handler wraps the mux with the middleware chain and metrics.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = MaxBodyBytes(h, 1<<20)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- probes ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "saed-portal",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.store.Health(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "saed-portal",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- session and auth ---

// Session returns the engine's current state snapshot.
func (a *API) Session(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r)
		return
	}
	st := a.ctrl.State()
	writeJSON(w, http.StatusOK, map[string]any{
		"role":               st.Role,
		"user":               st.CurrentUser,
		"registrations":      st.Registrations,
		"loading":            st.Loading,
		"syncing":            st.Syncing,
		"schema_fault":       st.SchemaFault,
		"connectivity_fault": st.ConnectivityFault,
		"demo":               st.Demo,
	})
}

func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r)
		return
	}
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := a.ctrl.Login(r.Context(), req.Email, req.Password); err != nil {
		if errors.Is(err, session.ErrValidation) {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, r, http.StatusUnauthorized, err.Error())
		return
	}
	a.Session(w, r)
}

func (a *API) Signup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r)
		return
	}
	var req session.SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := a.ctrl.Signup(r.Context(), req); err != nil {
		if errors.Is(err, session.ErrValidation) {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		if errors.Is(err, gateway.ErrEmailTaken) {
			writeError(w, r, http.StatusConflict, err.Error())
			return
		}
		writeError(w, r, http.StatusBadGateway, err.Error())
		return
	}
	a.Session(w, r)
}

func (a *API) Logout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r)
		return
	}
	if err := a.ctrl.SignOut(r.Context()); err != nil {
		writeError(w, r, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "signed_out"})
}

// --- directory ---

// Directory lists approved instructors, with an optional skill filter.
func (a *API) Directory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r)
		return
	}
	instructors := a.dir.ApprovedInstructors()
	if skill := r.URL.Query().Get("skill"); skill != "" {
		filtered := instructors[:0]
		for _, rec := range instructors {
			for _, s := range rec.Skills {
				if strings.EqualFold(s, skill) {
					filtered = append(filtered, rec)
					break
				}
			}
		}
		instructors = filtered
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"instructors": instructors,
		"sample_data": a.dir.UsingSampleData(),
	})
}

func (a *API) Instructor(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/v1/instructors/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	rec := a.dir.InstructorByID(id)
	if rec == nil {
		writeError(w, r, http.StatusNotFound, "instructor not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// --- mutations ---

func (a *API) CreateRegistration(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r)
		return
	}
	var reg portal.Registration
	if err := json.NewDecoder(r.Body).Decode(&reg); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json body")
		return
	}
	if reg.CorperID == "" || reg.InstructorID == "" || reg.SkillName == "" {
		writeError(w, r, http.StatusBadRequest, "corper_id, instructor_id and skill_name are required")
		return
	}
	ctx := a.actorContext(r)
	if err := a.reviews.CreateRegistration(ctx, &reg); err != nil {
		writeError(w, r, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, reg)
}

// RegistrationStatus handles POST /v1/registrations/{id}/status.
func (a *API) RegistrationStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r)
		return
	}
	id, ok := pathAction(r.URL.Path, "/v1/registrations/", "status")
	if !ok {
		http.NotFound(w, r)
		return
	}
	var req struct {
		From portal.RegistrationStatus `json:"from"`
		To   portal.RegistrationStatus `json:"to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json body")
		return
	}
	ctx := a.actorContext(r)
	if err := a.reviews.SetRegistrationStatus(ctx, id, req.From, req.To); err != nil {
		if errors.Is(err, portal.ErrInvalidTransition) {
			writeError(w, r, http.StatusUnprocessableEntity, err.Error())
			return
		}
		if errors.Is(err, gateway.ErrStatusConflict) {
			writeError(w, r, http.StatusConflict, err.Error())
			return
		}
		if errors.Is(err, gateway.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, r, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": req.To})
}

// UserStatus handles POST /v1/users/{id}/status.
func (a *API) UserStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r)
		return
	}
	id, ok := pathAction(r.URL.Path, "/v1/users/", "status")
	if !ok {
		http.NotFound(w, r)
		return
	}
	var req struct {
		Role   portal.Role           `json:"role"`
		Status portal.ApprovalStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json body")
		return
	}
	if !req.Role.Valid() {
		writeError(w, r, http.StatusBadRequest, "unknown role")
		return
	}
	if !req.Status.Valid() {
		writeError(w, r, http.StatusBadRequest, "unknown status")
		return
	}
	ctx := a.actorContext(r)
	if err := a.reviews.SetUserStatus(ctx, req.Role, id, req.Status); err != nil {
		var merr *review.MutationError
		if errors.As(err, &merr) {
			// Partial write: report it as a conflict the operator must
			// resolve, not a retryable gateway failure.
			writeError(w, r, http.StatusConflict, merr.Error())
			return
		}
		if errors.Is(err, gateway.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, r, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": req.Status})
}

// --- advisor ---

func (a *API) RecommendSkills(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r)
		return
	}
	if a.advisor == nil || !a.advisor.Enabled() {
		writeError(w, r, http.StatusServiceUnavailable, "advisor disabled")
		return
	}
	var req struct {
		Interests string `json:"interests"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Interests) == "" {
		writeError(w, r, http.StatusBadRequest, "interests are required")
		return
	}
	suggestions, err := a.advisor.RecommendSkills(r.Context(), req.Interests, a.dir.ApprovedInstructors())
	if err != nil {
		// Advice is best-effort: an empty list, not a failure page.
		obs.Warn("httpapi", "skill recommendation failed", map[string]any{"error": err.Error()})
		writeJSON(w, http.StatusOK, map[string]any{"suggestions": []ai.SkillSuggestion{}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"suggestions": suggestions})
}

func (a *API) AnalyzeResume(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r)
		return
	}
	if a.advisor == nil || !a.advisor.Enabled() {
		writeError(w, r, http.StatusServiceUnavailable, "advisor disabled")
		return
	}
	var req struct {
		Resume string `json:"resume"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Resume) == "" {
		writeError(w, r, http.StatusBadRequest, "resume text is required")
		return
	}
	feedback, err := a.advisor.AnalyzeResume(r.Context(), req.Resume)
	if err != nil {
		writeError(w, r, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"feedback": feedback})
}

// QuarterlySummary drafts a report over an instructor's enrollments.
func (a *API) QuarterlySummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r)
		return
	}
	if a.advisor == nil || !a.advisor.Enabled() {
		writeError(w, r, http.StatusServiceUnavailable, "advisor disabled")
		return
	}
	var req struct {
		InstructorID string `json:"instructor_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.InstructorID == "" {
		writeError(w, r, http.StatusBadRequest, "instructor_id is required")
		return
	}
	regs, err := a.store.RegistrationsByInstructor(r.Context(), req.InstructorID)
	if err != nil {
		writeError(w, r, http.StatusBadGateway, err.Error())
		return
	}
	summary, err := a.advisor.QuarterlySummary(r.Context(), regs)
	if err != nil {
		writeError(w, r, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"summary": summary})
}

// --- helpers ---

// actorContext stamps the audit actor from the active session.
func (a *API) actorContext(r *http.Request) context.Context {
	ctx := r.Context()
	st := a.ctrl.State()
	if st.CurrentUser != nil {
		ctx = audit.WithActor(ctx, st.CurrentUser.ID, st.Role)
	}
	return ctx
}

// pathAction extracts the id from prefix/{id}/action paths.
func pathAction(path, prefix, action string) (string, bool) {
	rest := strings.TrimPrefix(path, prefix)
	id, act, found := strings.Cut(rest, "/")
	if !found || id == "" || act != action {
		return "", false
	}
	return id, true
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	writeJSON(w, code, map[string]any{
		"error":      msg,
		"request_id": RequestIDFromContext(r.Context()),
	})
}
