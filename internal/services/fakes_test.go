package services

import (
	"context"
	"errors"
	"io"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/cvitapilot/cvitapilot/internal/cvstate"
	"github.com/cvitapilot/cvitapilot/internal/mailer"
	"github.com/cvitapilot/cvitapilot/internal/models"
	"github.com/cvitapilot/cvitapilot/internal/utils"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

type fakeUsers struct {
	mu   sync.Mutex
	byID map[string]*models.User
}

func newFakeUsers() *fakeUsers { return &fakeUsers{byID: map[string]*models.User{}} }

func (f *fakeUsers) Create(_ context.Context, u *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, x := range f.byID {
		if x.Email == u.Email {
			return utils.ErrDuplicate
		}
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	cp := *u
	f.byID[u.ID] = &cp
	return nil
}

func (f *fakeUsers) find(match func(*models.User) bool) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, utils.ErrNotFound
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	return f.find(func(u *models.User) bool { return u.ID == id })
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	return f.find(func(u *models.User) bool { return u.Email == email })
}

func (f *fakeUsers) GetByGoogleID(_ context.Context, id string) (*models.User, error) {
	return f.find(func(u *models.User) bool { return u.GoogleID != nil && *u.GoogleID == id })
}

func (f *fakeUsers) Update(_ context.Context, u *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[u.ID]; !ok {
		return utils.ErrNotFound
	}
	cp := *u
	f.byID[u.ID] = &cp
	return nil
}

func (f *fakeUsers) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return utils.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeUsers) unverifiedBefore(cutoff time.Time) []string {
	var ids []string
	for id, u := range f.byID {
		if u.EmailVerifiedAt == nil && u.CreatedAt.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids
}

func (f *fakeUsers) CountUnverifiedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.unverifiedBefore(cutoff))), nil
}

func (f *fakeUsers) DeleteUnverifiedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := f.unverifiedBefore(cutoff)
	for _, id := range ids {
		delete(f.byID, id)
	}
	return int64(len(ids)), nil
}

type fakeTokens struct {
	mu   sync.Mutex
	rows []*models.VerificationToken
}

func (f *fakeTokens) Create(_ context.Context, t *models.VerificationToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *t
	f.rows = append(f.rows, &cp)
	return nil
}

func (f *fakeTokens) GetByHash(_ context.Context, hash string) (*models.VerificationToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.rows {
		if t.TokenHash == hash {
			cp := *t
			return &cp, nil
		}
	}
	return nil, utils.ErrNotFound
}

func (f *fakeTokens) DeleteByUser(_ context.Context, userID string, kind models.TokenKind) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.rows[:0]
	for _, t := range f.rows {
		if t.UserID != userID || t.Kind != kind {
			kept = append(kept, t)
		}
	}
	f.rows = kept
	return nil
}

func (f *fakeTokens) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	kept := f.rows[:0]
	for _, t := range f.rows {
		if t.Expired(now) {
			n++
			continue
		}
		kept = append(kept, t)
	}
	f.rows = kept
	return n, nil
}

func (f *fakeTokens) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

type fakeCVs struct {
	mu    sync.Mutex
	byID  map[string]*models.CV
	saves int
}

func newFakeCVs() *fakeCVs { return &fakeCVs{byID: map[string]*models.CV{}} }

func (f *fakeCVs) Create(_ context.Context, cv *models.CV) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cv.CreatedAt.IsZero() {
		cv.CreatedAt = time.Now()
	}
	f.byID[cv.ID] = cvstate.Clone(cv)
	return nil
}

func (f *fakeCVs) Get(_ context.Context, id string) (*models.CV, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cv, ok := f.byID[id]
	if !ok {
		return nil, utils.ErrNotFound
	}
	return cvstate.Clone(cv), nil
}

func (f *fakeCVs) ListByUser(_ context.Context, userID string) ([]models.CV, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.CV
	for _, cv := range f.byID {
		if cv.UserID == userID {
			out = append(out, *cvstate.Clone(cv))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeCVs) CountByUser(ctx context.Context, userID string) (int64, error) {
	l, _ := f.ListByUser(ctx, userID)
	return int64(len(l)), nil
}

func (f *fakeCVs) SaveAggregate(_ context.Context, cv *models.CV) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[cv.ID]; !ok {
		return utils.ErrNotFound
	}
	f.saves++
	f.byID[cv.ID] = cvstate.Clone(cv)
	return nil
}

func (f *fakeCVs) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[id]; !ok {
		return utils.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

type fakeExports struct {
	mu   sync.Mutex
	byID map[string]*models.Export
}

func newFakeExports() *fakeExports { return &fakeExports{byID: map[string]*models.Export{}} }

func (f *fakeExports) Create(_ context.Context, e *models.Export) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	cp := *e
	f.byID[e.ID] = &cp
	return nil
}

func (f *fakeExports) Get(_ context.Context, id string) (*models.Export, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.byID[id]
	if !ok {
		return nil, utils.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (f *fakeExports) ListByCV(_ context.Context, cvID string, limit int) ([]models.Export, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Export
	for _, e := range f.byID {
		if e.CVID == cvID && len(out) < limit {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (f *fakeExports) keys(match func(*models.Export) bool) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, e := range f.byID {
		if e.ObjectKey != "" && match(e) {
			out = append(out, e.ObjectKey)
		}
	}
	sort.Strings(out)
	return out
}

func (f *fakeExports) ObjectKeysByUser(_ context.Context, userID string) ([]string, error) {
	return f.keys(func(e *models.Export) bool { return e.UserID == userID }), nil
}

func (f *fakeExports) ObjectKeysByCV(_ context.Context, cvID string) ([]string, error) {
	return f.keys(func(e *models.Export) bool { return e.CVID == cvID }), nil
}

// Update fails on a cancelled context the way a database driver does.
func (f *fakeExports) Update(ctx context.Context, e *models.Export) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[e.ID]; !ok {
		return utils.ErrNotFound
	}
	cp := *e
	f.byID[e.ID] = &cp
	return nil
}

type fakeEvents struct {
	mu     sync.Mutex
	events []models.ExportEvent
}

func (f *fakeEvents) Insert(_ context.Context, e *models.ExportEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e.Timestamp = time.Now().UTC()
	f.events = append(f.events, *e)
	return nil
}

func (f *fakeEvents) ListByExport(_ context.Context, exportID string, _ int64) ([]models.ExportEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ExportEvent
	for _, e := range f.events {
		if e.ExportID == exportID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeEvents) DeleteByUser(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.events[:0]
	for _, e := range f.events {
		if e.UserID != userID {
			kept = append(kept, e)
		}
	}
	f.events = kept
	return nil
}

type fakeTutorials struct {
	mu   sync.Mutex
	docs map[string]models.TutorialProgress
}

func newFakeTutorials() *fakeTutorials {
	return &fakeTutorials{docs: map[string]models.TutorialProgress{}}
}

func (f *fakeTutorials) Get(_ context.Context, userID string) (*models.TutorialProgress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.docs[userID]
	if !ok {
		return nil, utils.ErrNotFound
	}
	p.Completed = append([]string(nil), p.Completed...)
	return &p, nil
}

func (f *fakeTutorials) Upsert(_ context.Context, p *models.TutorialProgress) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *p
	cp.Completed = append([]string(nil), p.Completed...)
	f.docs[p.UserID] = cp
	return nil
}

func (f *fakeTutorials) Delete(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.docs, userID)
	return nil
}

type captureMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (m *captureMailer) Send(_ context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *captureMailer) last() mailer.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return mailer.Message{}
	}
	return m.sent[len(m.sent)-1]
}

// tokenFrom extracts the token query value from a mailed link.
func tokenFrom(body string) string {
	i := strings.Index(body, "?token=")
	if i < 0 {
		return ""
	}
	rest := body[i+len("?token="):]
	if j := strings.IndexAny(rest, "\"\n <&"); j >= 0 {
		rest = rest[:j]
	}
	return rest
}

type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
	failUp  bool
}

func newFakeStore() *fakeStore { return &fakeStore{objects: map[string][]byte{}} }

func (s *fakeStore) Upload(_ context.Context, name, _ string, r io.Reader) (string, error) {
	if s.failUp {
		return "", errors.New("bucket unavailable")
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[name] = b
	return "mem://" + name, nil
}

func (s *fakeStore) SignedGetURL(_ context.Context, name, downloadName string, _ time.Duration) (string, error) {
	return "https://files.test/" + name + "?name=" + url.QueryEscape(downloadName) + "&sig=x", nil
}

func (s *fakeStore) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, name)
	s.deleted = append(s.deleted, name)
	return nil
}

type fakePDF struct {
	err   error
	calls int
	// interrupt, when set, is called mid-render to simulate shutdown.
	interrupt context.CancelFunc
}

func (p *fakePDF) RenderPDF(ctx context.Context, html []byte, _ string) ([]byte, error) {
	p.calls++
	if p.interrupt != nil {
		p.interrupt()
		return nil, ctx.Err()
	}
	if p.err != nil {
		return nil, p.err
	}
	return append([]byte("%PDF-1.4\n"), html[:min(len(html), 16)]...), nil
}

type fakeQueue struct {
	mu       sync.Mutex
	jobs     []ExportJob
	statuses []ExportStatusMessage
	err      error
}

func (q *fakeQueue) Enqueue(_ context.Context, job ExportJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *fakeQueue) PublishStatus(_ context.Context, msg ExportStatusMessage) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.statuses = append(q.statuses, msg)
	return nil
}

type fakeLLM struct {
	chunks []string
	err    error
	prompt string
}

func (f *fakeLLM) StreamAnswer(_ context.Context, prompt string) (<-chan string, <-chan error) {
	f.prompt = prompt
	out := make(chan string, len(f.chunks))
	errs := make(chan error, 1)
	for _, c := range f.chunks {
		out <- c
	}
	if f.err != nil {
		errs <- f.err
	}
	close(out)
	close(errs)
	return out, errs
}

func (f *fakeLLM) Close() error { return nil }

type fakeGoogle struct {
	user *GoogleUser
	err  error
}

func (g *fakeGoogle) AuthURL(state string) string {
	return "https://accounts.test/auth?state=" + state
}

func (g *fakeGoogle) Exchange(context.Context, string) (*GoogleUser, error) {
	if g.err != nil {
		return nil, g.err
	}
	cp := *g.user
	return &cp, nil
}
