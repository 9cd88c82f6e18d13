package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"polyvox.org/internal/authn"
	"polyvox.org/internal/authz"
	"polyvox.org/internal/follow"
	"polyvox.org/internal/notify"
	"polyvox.org/internal/outbox"
	"polyvox.org/internal/store/pg"
	"polyvox.org/internal/token"
)

const (
	testJurisdictionID = "7c9e6679-7425-40de-944b-e07fc1f90ae7"
	testIssueID        = "6ba7b810-9dad-11d1-80b4-00c04fd430c8"
	testUserID         = "550e8400-e29b-41d4-a716-446655440000"
)

type stubRoles struct {
	admins map[string]bool
	roles  map[string]authz.Role
}

func (s *stubRoles) GlobalAdminExists(_ context.Context, subjectID string) (bool, error) {
	return s.admins[subjectID], nil
}

func (s *stubRoles) JurisdictionRole(_ context.Context, subjectID, jurisdictionID string) (authz.Role, bool, error) {
	role, ok := s.roles[subjectID+"/"+jurisdictionID]
	return role, ok, nil
}

type relKey struct {
	subject string
	target  follow.Target
}

// memRelations backs both the follow service and the fan-out.
type memRelations struct {
	rows      map[relKey]time.Time
	inserted  []notify.Record
	insertErr error
}

func newMemRelations() *memRelations {
	return &memRelations{rows: make(map[relKey]time.Time)}
}

func (m *memRelations) Upsert(_ context.Context, rel follow.Relation) error {
	key := relKey{subject: rel.SubjectID, target: follow.Target{Type: rel.TargetType, ID: rel.TargetID}}
	if _, ok := m.rows[key]; !ok {
		m.rows[key] = rel.CreatedAt
	}
	return nil
}

func (m *memRelations) Delete(_ context.Context, subjectID string, target follow.Target) error {
	delete(m.rows, relKey{subject: subjectID, target: target})
	return nil
}

func (m *memRelations) Exists(_ context.Context, subjectID string, target follow.Target) (bool, error) {
	_, ok := m.rows[relKey{subject: subjectID, target: target}]
	return ok, nil
}

func (m *memRelations) FollowerIDs(_ context.Context, target follow.Target, limit int) ([]string, error) {
	var out []string
	for key := range m.rows {
		if key.target == target {
			out = append(out, key.subject)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memRelations) InsertNotifications(_ context.Context, records []notify.Record) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.inserted = append(m.inserted, records...)
	return nil
}

type stubOutboxStore struct {
	due        []outbox.Message
	dueErr     error
	suppressed map[string]bool
	sent       []string
}

func newStubOutboxStore() *stubOutboxStore {
	return &stubOutboxStore{suppressed: make(map[string]bool)}
}

func (s *stubOutboxStore) DueMessages(_ context.Context, _ time.Time, _ int) ([]outbox.Message, error) {
	return s.due, s.dueErr
}

func (s *stubOutboxStore) MarkSent(_ context.Context, id string, _ int, _ time.Time) error {
	s.sent = append(s.sent, id)
	return nil
}

func (s *stubOutboxStore) MarkRetry(context.Context, string, int, string, time.Time) error {
	return nil
}

func (s *stubOutboxStore) MarkFailed(context.Context, string, int, string) error { return nil }

func (s *stubOutboxStore) SuppressContact(_ context.Context, contactID string) error {
	s.suppressed[contactID] = true
	return nil
}

func (s *stubOutboxStore) RecordContactBounce(_ context.Context, contactID string) error {
	s.suppressed[contactID] = true
	return nil
}

func (s *stubOutboxStore) MarkContactEmailed(context.Context, string, time.Time) error { return nil }

type stubMailer struct{ sent int }

func (m *stubMailer) Send(context.Context, string, string, string) error {
	m.sent++
	return nil
}

type stubAdmin struct {
	activated   []string
	memberships map[string]authz.Role
	seeded      []string
	activateErr error
}

func newStubAdmin() *stubAdmin {
	return &stubAdmin{memberships: make(map[string]authz.Role)}
}

func (s *stubAdmin) ActivateJurisdiction(_ context.Context, id string, at time.Time) (pg.Jurisdiction, error) {
	if s.activateErr != nil {
		return pg.Jurisdiction{}, s.activateErr
	}
	s.activated = append(s.activated, id)
	return pg.Jurisdiction{ID: id, Name: "Riverton", Status: "active", ActivatedAt: &at}, nil
}

func (s *stubAdmin) SeedFounder(_ context.Context, subjectID, jurisdictionID string) error {
	s.seeded = append(s.seeded, subjectID+"/"+jurisdictionID)
	return nil
}

func (s *stubAdmin) UpsertMembership(_ context.Context, subjectID, jurisdictionID string, role authz.Role) error {
	s.memberships[subjectID+"/"+jurisdictionID] = role
	return nil
}

type testEnv struct {
	api    *API
	roles  *stubRoles
	rels   *memRelations
	queue  *stubOutboxStore
	mailer *stubMailer
	admin  *stubAdmin
	codec  *token.Codec
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	t.Setenv("POLYVOX_AUTH_SECRET", "handler-test-secret")
	authn.ResetSecretForTests()
	t.Cleanup(authn.ResetSecretForTests)

	roles := &stubRoles{admins: make(map[string]bool), roles: make(map[string]authz.Role)}
	resolver, err := authz.NewResolver(roles, roles)
	if err != nil {
		t.Fatalf("NewResolver: %v", err)
	}
	gate, err := authz.NewGate(resolver)
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}

	rels := newMemRelations()
	follows, err := follow.NewService(rels)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	fanout, err := notify.NewFanout(rels)
	if err != nil {
		t.Fatalf("NewFanout: %v", err)
	}

	queue := newStubOutboxStore()
	mailer := &stubMailer{}
	processor, err := outbox.NewProcessor(queue, mailer)
	if err != nil {
		t.Fatalf("NewProcessor: %v", err)
	}

	codec, err := token.NewCodec("unsubscribe-test-secret")
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}

	admin := newStubAdmin()
	api := New(Config{
		Version:     "test",
		Gate:        gate,
		Follows:     follows,
		Fanout:      fanout,
		Processor:   processor,
		Tokens:      codec,
		Admin:       admin,
		InternalKey: "internal-test-key",
	})
	return &testEnv{api: api, roles: roles, rels: rels, queue: queue, mailer: mailer, admin: admin, codec: codec}
}

func (e *testEnv) bearer(t *testing.T, subjectID string) string {
	t.Helper()
	tok, err := authn.GenerateToken(subjectID, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	return "Bearer " + tok
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	env.api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := rec.Header().Get("X-Request-Id"); got == "" {
		t.Fatal("expected request id header")
	}
}

func TestReadyWithoutDatabase(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	env.api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/nope", nil)
	rec := httptest.NewRecorder()
	env.api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestInvalidBearerRejected(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/follows/state?target_type=issue&target_id="+testIssueID, nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	env.api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestSecurityHeaders(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/info", nil)
	rec := httptest.NewRecorder()
	env.api.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("X-Content-Type-Options = %q", got)
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Fatalf("X-Frame-Options = %q", got)
	}
}

func TestRateLimitExceeded(t *testing.T) {
	env := newTestEnv(t)
	handler := env.api.Handler()

	var last *httptest.ResponseRecorder
	for i := 0; i < 50; i++ {
		req := httptest.NewRequest(http.MethodGet, "/v1/info", nil)
		req.RemoteAddr = "198.51.100.7:4411"
		last = httptest.NewRecorder()
		handler.ServeHTTP(last, req)
		if last.Code == http.StatusTooManyRequests {
			break
		}
	}
	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("expected a rate limited response, last status %d", last.Code)
	}
	if got := last.Header().Get("Retry-After"); got != "1" {
		t.Fatalf("Retry-After = %q", got)
	}
}
