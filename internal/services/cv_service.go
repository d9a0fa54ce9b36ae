package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/cvitapilot/cvitapilot/internal/cache"
	"github.com/cvitapilot/cvitapilot/internal/cvstate"
	"github.com/cvitapilot/cvitapilot/internal/models"
	pgrepo "github.com/cvitapilot/cvitapilot/internal/repositories/postgres"
	"github.com/cvitapilot/cvitapilot/internal/storage"
	"github.com/cvitapilot/cvitapilot/internal/utils"
	"github.com/cvitapilot/cvitapilot/internal/validation"
)

const (
	CVDocumentVersion = 1
	defaultCVName     = "My CV"
)

// CVDocument is the portable JSON form of a CV used by export and import.
type CVDocument struct {
	Version    int        `json:"version"`
	ExportedAt time.Time  `json:"exported_at"`
	CV         *models.CV `json:"cv"`
}

type CVService interface {
	List(ctx context.Context, userID string) ([]models.CVSummary, error)
	Create(ctx context.Context, userID, name string) (*models.CV, error)
	Get(ctx context.Context, userID, cvID string) (*models.CV, error)
	Rename(ctx context.Context, userID, cvID, name string) (*models.CV, error)
	Duplicate(ctx context.Context, userID, cvID, name string) (*models.CV, error)
	Delete(ctx context.Context, userID, cvID string) error
	Apply(ctx context.Context, userID, cvID string, actions []cvstate.Action) (*cvstate.Result, error)
	Import(ctx context.Context, userID string, raw []byte) (*models.CV, error)
	ExportJSON(ctx context.Context, userID, cvID string) (*CVDocument, error)
}

type CVSettings struct {
	MaxPerUser int
	CacheTTL   time.Duration
}

type cvService struct {
	repo    pgrepo.CVRepository
	exports pgrepo.ExportRepository
	store   storage.Deleter // optional
	cache   cache.Cache
	reducer *cvstate.Reducer
	clean   *validation.Sanitizer
	log     *logrus.Logger
	cfg     CVSettings
	now     func() time.Time
	newID   func() string
}

func NewCVService(repo pgrepo.CVRepository, exports pgrepo.ExportRepository, store storage.Deleter, c cache.Cache, log *logrus.Logger, cfg CVSettings) CVService {
	if c == nil {
		c = cache.Nop{}
	}
	if log == nil {
		log = logrus.New()
	}
	if cfg.MaxPerUser <= 0 {
		cfg.MaxPerUser = 20
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 10 * time.Minute
	}
	san := validation.NewSanitizer()
	return &cvService{
		repo:    repo,
		exports: exports,
		store:   store,
		cache:   c,
		reducer: cvstate.NewReducer(san),
		clean:   san,
		log:     log,
		cfg:     cfg,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

func (s *cvService) List(ctx context.Context, userID string) ([]models.CVSummary, error) {
	const op = "CVService.List"

	if userID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}
	rows, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list cvs", err)
	}
	out := make([]models.CVSummary, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].Summarize())
	}
	return out, nil
}

func (s *cvService) checkLimit(ctx context.Context, op, userID string) error {
	n, err := s.repo.CountByUser(ctx, userID)
	if err != nil {
		return utils.E(utils.CodeInternal, op, "failed to count cvs", err)
	}
	if n >= int64(s.cfg.MaxPerUser) {
		return utils.E(utils.CodeLimitReached, op, "cv limit reached", nil)
	}
	return nil
}

func (s *cvService) cleanName(op, name string) (string, error) {
	name = s.clean.Clean(name)
	if name == "" {
		name = defaultCVName
	}
	if len(name) > 120 {
		return "", utils.E(utils.CodeInvalidArgument, op, "name must be at most 120 characters", nil)
	}
	return name, nil
}

func (s *cvService) Create(ctx context.Context, userID, name string) (*models.CV, error) {
	const op = "CVService.Create"

	if userID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}
	name, err := s.cleanName(op, name)
	if err != nil {
		return nil, err
	}
	if err := s.checkLimit(ctx, op, userID); err != nil {
		return nil, err
	}

	cv := &models.CV{
		ID:       s.newID(),
		UserID:   userID,
		Name:     name,
		Template: models.TemplateClassic,
	}
	if err := s.repo.Create(ctx, cv); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to create cv", err)
	}
	return cv, nil
}

// load returns the owned aggregate. A CV owned by someone else is reported as
// missing so ids of other users cannot be discovered.
func (s *cvService) load(ctx context.Context, op, userID, cvID string) (*models.CV, error) {
	if userID == "" || cvID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id and cv_id are required", nil)
	}

	var cv models.CV
	hit, err := s.cache.GetJSON(ctx, cache.CVKey(cvID), &cv)
	if err != nil {
		s.log.WithError(err).WithField("cv_id", cvID).Warn("cv cache read failed")
	}
	if !hit {
		got, err := s.repo.Get(ctx, cvID)
		if err != nil {
			if errors.Is(err, utils.ErrNotFound) {
				return nil, utils.E(utils.CodeNotFound, op, "cv not found", err)
			}
			return nil, utils.E(utils.CodeInternal, op, "failed to get cv", err)
		}
		cv = *got
		if err := s.cache.SetJSON(ctx, cache.CVKey(cvID), &cv, s.cfg.CacheTTL); err != nil {
			s.log.WithError(err).WithField("cv_id", cvID).Warn("cv cache write failed")
		}
	}
	if cv.UserID != userID {
		return nil, utils.E(utils.CodeNotFound, op, "cv not found", nil)
	}
	return &cv, nil
}

func (s *cvService) invalidate(ctx context.Context, cvID string) {
	if err := s.cache.Del(ctx, cache.CVKey(cvID)); err != nil {
		s.log.WithError(err).WithField("cv_id", cvID).Warn("cv cache invalidation failed")
	}
}

func (s *cvService) Get(ctx context.Context, userID, cvID string) (*models.CV, error) {
	return s.load(ctx, "CVService.Get", userID, cvID)
}

func (s *cvService) Rename(ctx context.Context, userID, cvID, name string) (*models.CV, error) {
	res, err := s.apply(ctx, "CVService.Rename", userID, cvID, []cvstate.Action{{Type: cvstate.ActionRename, Value: name}})
	if err != nil {
		return nil, err
	}
	return res.CV, nil
}

func (s *cvService) Duplicate(ctx context.Context, userID, cvID, name string) (*models.CV, error) {
	const op = "CVService.Duplicate"

	src, err := s.load(ctx, op, userID, cvID)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = src.Name + " (copy)"
	}
	name, err = s.cleanName(op, name)
	if err != nil {
		return nil, err
	}
	if err := s.checkLimit(ctx, op, userID); err != nil {
		return nil, err
	}

	cp := cvstate.CopyOf(src, userID, name, s.newID)
	if err := s.repo.Create(ctx, cp); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to create copy", err)
	}
	return cp, nil
}

func (s *cvService) Delete(ctx context.Context, userID, cvID string) error {
	const op = "CVService.Delete"

	if _, err := s.load(ctx, op, userID, cvID); err != nil {
		return err
	}
	keys, err := s.exports.ObjectKeysByCV(ctx, cvID)
	if err != nil {
		return utils.E(utils.CodeInternal, op, "failed to list exports", err)
	}
	if err := s.repo.Delete(ctx, cvID); err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return utils.E(utils.CodeNotFound, op, "cv not found", err)
		}
		return utils.E(utils.CodeInternal, op, "failed to delete cv", err)
	}
	s.invalidate(ctx, cvID)

	if s.store != nil {
		for _, k := range keys {
			if err := s.store.Delete(ctx, k); err != nil {
				s.log.WithError(err).WithField("object", k).Warn("failed to delete export file")
			}
		}
	}
	return nil
}

func (s *cvService) Apply(ctx context.Context, userID, cvID string, actions []cvstate.Action) (*cvstate.Result, error) {
	return s.apply(ctx, "CVService.Apply", userID, cvID, actions)
}

func (s *cvService) apply(ctx context.Context, op, userID, cvID string, actions []cvstate.Action) (*cvstate.Result, error) {
	if len(actions) == 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "at least one action is required", nil)
	}
	cv, err := s.load(ctx, op, userID, cvID)
	if err != nil {
		return nil, err
	}

	res, err := s.reducer.ReduceAll(cv, actions)
	if err != nil {
		return nil, reducerError(op, err)
	}
	res.CV.UpdatedAt = s.now().UTC()

	// last write wins: the whole aggregate is stored as reduced
	if err := s.repo.SaveAggregate(ctx, res.CV); err != nil {
		s.invalidate(ctx, cvID)
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "cv not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to save cv", err)
	}
	s.invalidate(ctx, cvID)
	return res, nil
}

// reducerError maps reducer failures onto the API error contract.
func reducerError(op string, err error) error {
	var invalid *cvstate.InvalidItemError
	switch {
	case errors.As(err, &invalid):
		return utils.ED(utils.CodeInvalidArgument, op, err.Error(), validation.FieldErrors(invalid.Err), err)
	case errors.Is(err, cvstate.ErrItemNotFound):
		return utils.E(utils.CodeNotFound, op, err.Error(), err)
	case errors.Is(err, cvstate.ErrLimitReached):
		return utils.E(utils.CodeLimitReached, op, err.Error(), err)
	case errors.Is(err, cvstate.ErrInvalidAction), errors.Is(err, cvstate.ErrUnknownSection):
		return utils.E(utils.CodeInvalidArgument, op, err.Error(), err)
	default:
		return utils.E(utils.CodeInternal, op, "failed to apply changes", err)
	}
}

func (s *cvService) Import(ctx context.Context, userID string, raw []byte) (*models.CV, error) {
	const op = "CVService.Import"

	if userID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}
	details, err := validation.ValidateCVDocument(raw)
	if err != nil {
		return nil, utils.ED(utils.CodeInvalidArgument, op, "invalid cv document", details, err)
	}
	var doc CVDocument
	if err := json.Unmarshal(raw, &doc); err != nil || doc.CV == nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, "invalid cv document", err)
	}

	name, err := s.cleanName(op, doc.CV.Name)
	if err != nil {
		return nil, err
	}
	if err := s.checkLimit(ctx, op, userID); err != nil {
		return nil, err
	}

	actions, err := cvstate.SeedActions(doc.CV)
	if err != nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, "invalid cv document", err)
	}
	empty := &models.CV{ID: s.newID(), UserID: userID, Name: name, Template: models.TemplateClassic}
	res, err := s.reducer.ReduceAll(empty, actions)
	if err != nil {
		return nil, reducerError(op, err)
	}
	if err := s.repo.Create(ctx, res.CV); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to create cv", err)
	}
	return res.CV, nil
}

func (s *cvService) ExportJSON(ctx context.Context, userID, cvID string) (*CVDocument, error) {
	cv, err := s.load(ctx, "CVService.ExportJSON", userID, cvID)
	if err != nil {
		return nil, err
	}
	return &CVDocument{Version: CVDocumentVersion, ExportedAt: s.now().UTC(), CV: cv}, nil
}
