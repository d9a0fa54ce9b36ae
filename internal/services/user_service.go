package services

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/cvitapilot/cvitapilot/internal/cache"
	"github.com/cvitapilot/cvitapilot/internal/models"
	mongorepo "github.com/cvitapilot/cvitapilot/internal/repositories/mongo"
	pgrepo "github.com/cvitapilot/cvitapilot/internal/repositories/postgres"
	"github.com/cvitapilot/cvitapilot/internal/repositories/redisrepo"
	"github.com/cvitapilot/cvitapilot/internal/storage"
	"github.com/cvitapilot/cvitapilot/internal/utils"
	"github.com/cvitapilot/cvitapilot/internal/validation"
)

type UserService interface {
	Me(ctx context.Context, userID string) (*models.User, error)
	UpdateProfile(ctx context.Context, userID, name string) (*models.User, error)
	ChangePassword(ctx context.Context, userID, current, next string) error
	DeleteAccount(ctx context.Context, userID, password string) error
	SetRole(ctx context.Context, email string, role models.UserRole) (*models.User, error)
}

type UserDeps struct {
	Users     pgrepo.UserRepository
	CVs       pgrepo.CVRepository
	Exports   pgrepo.ExportRepository
	Sessions  redisrepo.SessionRepository
	Tutorials mongorepo.TutorialRepository    // optional
	Events    mongorepo.ExportEventRepository // optional
	Store     storage.Deleter                 // optional
	Cache     cache.Cache
	Logger    *logrus.Logger
}

type userService struct {
	UserDeps
	clean *validation.Sanitizer
}

func NewUserService(deps UserDeps) UserService {
	if deps.Cache == nil {
		deps.Cache = cache.Nop{}
	}
	if deps.Logger == nil {
		deps.Logger = logrus.New()
	}
	return &userService{UserDeps: deps, clean: validation.NewSanitizer()}
}

func (s *userService) Me(ctx context.Context, userID string) (*models.User, error) {
	const op = "UserService.Me"

	if userID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}
	u, err := s.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "user not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get user", err)
	}
	return u, nil
}

func (s *userService) UpdateProfile(ctx context.Context, userID, name string) (*models.User, error) {
	const op = "UserService.UpdateProfile"

	name = s.clean.Clean(name)
	if len(name) > 120 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "name must be at most 120 characters", nil)
	}
	u, err := s.Me(ctx, userID)
	if err != nil {
		return nil, err
	}
	u.Name = name
	if err := s.Users.Update(ctx, u); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to update user", err)
	}
	return u, nil
}

// ChangePassword requires the current password unless the account was created
// through Google and never had one.
func (s *userService) ChangePassword(ctx context.Context, userID, current, next string) error {
	const op = "UserService.ChangePassword"

	u, err := s.Me(ctx, userID)
	if err != nil {
		return err
	}
	if u.HasPassword() && utils.CheckPassword(u.PasswordHash, current) != nil {
		return utils.E(utils.CodeUnauthorized, op, "current password is incorrect", nil)
	}
	hash, err := utils.HashPassword(next)
	if errors.Is(err, utils.ErrWeakPassword) {
		return utils.E(utils.CodeInvalidArgument, op, err.Error(), err)
	}
	if err != nil {
		return utils.E(utils.CodeInternal, op, "failed to hash password", err)
	}
	u.PasswordHash = hash
	if err := s.Users.Update(ctx, u); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to update password", err)
	}
	return nil
}

func (s *userService) DeleteAccount(ctx context.Context, userID, password string) error {
	const op = "UserService.DeleteAccount"

	u, err := s.Me(ctx, userID)
	if err != nil {
		return err
	}
	if u.HasPassword() && utils.CheckPassword(u.PasswordHash, password) != nil {
		return utils.E(utils.CodeUnauthorized, op, "password is incorrect", nil)
	}

	log := s.Logger.WithField("user_id", userID)

	// collected before the rows cascade away
	keys, err := s.Exports.ObjectKeysByUser(ctx, userID)
	if err != nil {
		return utils.E(utils.CodeInternal, op, "failed to list exports", err)
	}
	cvs, err := s.CVs.ListByUser(ctx, userID)
	if err != nil {
		return utils.E(utils.CodeInternal, op, "failed to list cvs", err)
	}

	if err := s.Users.Delete(ctx, userID); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to delete user", err)
	}

	if err := s.Sessions.DeleteByUser(ctx, userID); err != nil {
		log.WithError(err).Warn("failed to revoke sessions")
	}
	cacheKeys := make([]string, 0, len(cvs))
	for _, cv := range cvs {
		cacheKeys = append(cacheKeys, cache.CVKey(cv.ID))
	}
	if err := s.Cache.Del(ctx, cacheKeys...); err != nil {
		log.WithError(err).Warn("failed to drop cached cvs")
	}
	if s.Store != nil {
		for _, k := range keys {
			if err := s.Store.Delete(ctx, k); err != nil {
				log.WithError(err).WithField("object", k).Warn("failed to delete export file")
			}
		}
	}
	if s.Tutorials != nil {
		if err := s.Tutorials.Delete(ctx, userID); err != nil {
			log.WithError(err).Warn("failed to delete tutorial progress")
		}
	}
	if s.Events != nil {
		if err := s.Events.DeleteByUser(ctx, userID); err != nil {
			log.WithError(err).Warn("failed to delete export events")
		}
	}
	log.Info("account deleted")
	return nil
}

func (s *userService) SetRole(ctx context.Context, email string, role models.UserRole) (*models.User, error) {
	const op = "UserService.SetRole"

	if role != models.RoleUser && role != models.RoleAdmin {
		return nil, utils.E(utils.CodeInvalidArgument, op, "unknown role", nil)
	}
	u, err := s.Users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "user not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get user", err)
	}
	u.Role = role
	if err := s.Users.Update(ctx, u); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to update user", err)
	}
	return u, nil
}
