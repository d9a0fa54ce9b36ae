package services

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/cvitapilot/cvitapilot/internal/models"
	mongorepo "github.com/cvitapilot/cvitapilot/internal/repositories/mongo"
	"github.com/cvitapilot/cvitapilot/internal/utils"
)

type TutorialState struct {
	Progress *models.TutorialProgress `json:"progress"`
	Current  *models.TutorialStep     `json:"current,omitempty"`
	Steps    []models.TutorialStep    `json:"steps"`
	Done     bool                     `json:"done"`
}

type TutorialService interface {
	State(ctx context.Context, userID string) (*TutorialState, error)
	Next(ctx context.Context, userID string) (*TutorialState, error)
	Back(ctx context.Context, userID string) (*TutorialState, error)
	Skip(ctx context.Context, userID string) (*TutorialState, error)
	Complete(ctx context.Context, userID string) (*TutorialState, error)
	Reset(ctx context.Context, userID string) (*TutorialState, error)
}

type tutorialService struct {
	repo  mongorepo.TutorialRepository
	steps []models.TutorialStep
	now   func() time.Time
}

func NewTutorialService(repo mongorepo.TutorialRepository, steps []models.TutorialStep) TutorialService {
	return &tutorialService{repo: repo, steps: steps, now: time.Now}
}

func (s *tutorialService) load(ctx context.Context, op, userID string) (*models.TutorialProgress, error) {
	if userID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}
	p, err := s.repo.Get(ctx, userID)
	if errors.Is(err, utils.ErrNotFound) {
		return &models.TutorialProgress{UserID: userID, Completed: []string{}, StartedAt: s.now().UTC()}, nil
	}
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to load tutorial progress", err)
	}
	return p, nil
}

func (s *tutorialService) view(p *models.TutorialProgress) *TutorialState {
	st := &TutorialState{Progress: p, Steps: s.steps, Done: p.Done()}
	if !st.Done && p.CurrentStep >= 0 && p.CurrentStep < len(s.steps) {
		cur := s.steps[p.CurrentStep]
		st.Current = &cur
	}
	return st
}

// mutate loads the progress, applies fn and stores the result.
func (s *tutorialService) mutate(ctx context.Context, op, userID string, fn func(p *models.TutorialProgress)) (*TutorialState, error) {
	p, err := s.load(ctx, op, userID)
	if err != nil {
		return nil, err
	}
	fn(p)
	if err := s.repo.Upsert(ctx, p); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to save tutorial progress", err)
	}
	return s.view(p), nil
}

func (s *tutorialService) finish(p *models.TutorialProgress) {
	at := s.now().UTC()
	p.CompletedAt = &at
	p.CurrentStep = len(s.steps) - 1
}

func (s *tutorialService) State(ctx context.Context, userID string) (*TutorialState, error) {
	p, err := s.load(ctx, "TutorialService.State", userID)
	if err != nil {
		return nil, err
	}
	return s.view(p), nil
}

// Next marks the current step seen; moving past the last step completes the tour.
func (s *tutorialService) Next(ctx context.Context, userID string) (*TutorialState, error) {
	return s.mutate(ctx, "TutorialService.Next", userID, func(p *models.TutorialProgress) {
		if p.Done() {
			return
		}
		if p.CurrentStep < len(s.steps) {
			id := s.steps[p.CurrentStep].ID
			if !slices.Contains(p.Completed, id) {
				p.Completed = append(p.Completed, id)
			}
		}
		p.CurrentStep++
		if p.CurrentStep >= len(s.steps) {
			s.finish(p)
		}
	})
}

func (s *tutorialService) Back(ctx context.Context, userID string) (*TutorialState, error) {
	return s.mutate(ctx, "TutorialService.Back", userID, func(p *models.TutorialProgress) {
		if !p.Done() && p.CurrentStep > 0 {
			p.CurrentStep--
		}
	})
}

func (s *tutorialService) Skip(ctx context.Context, userID string) (*TutorialState, error) {
	return s.mutate(ctx, "TutorialService.Skip", userID, func(p *models.TutorialProgress) {
		if p.Done() {
			return
		}
		p.Skipped = true
		s.finish(p)
	})
}

func (s *tutorialService) Complete(ctx context.Context, userID string) (*TutorialState, error) {
	return s.mutate(ctx, "TutorialService.Complete", userID, func(p *models.TutorialProgress) {
		for _, st := range s.steps {
			if !slices.Contains(p.Completed, st.ID) {
				p.Completed = append(p.Completed, st.ID)
			}
		}
		if !p.Done() {
			s.finish(p)
		}
	})
}

func (s *tutorialService) Reset(ctx context.Context, userID string) (*TutorialState, error) {
	return s.mutate(ctx, "TutorialService.Reset", userID, func(p *models.TutorialProgress) {
		p.CurrentStep = 0
		p.Completed = []string{}
		p.Skipped = false
		p.CompletedAt = nil
		p.StartedAt = s.now().UTC()
	})
}
