package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"praxihub/backend/internal/dto"
	"praxihub/backend/internal/model"
	"praxihub/backend/internal/repository"
)

var (
	ErrNoPermission = errors.New("permission denied")
	ErrWrongRole    = errors.New("operation not available for this role")
)

// UserService profile maintenance
type UserService interface {
	UpdateProfile(ctx context.Context, caller Caller, req *dto.UpdateProfileRequest) (*dto.UserResponse, error)
	UpdateSkills(ctx context.Context, caller Caller, req *dto.UpdateSkillsRequest) (*dto.UserResponse, error)
	UpdateCompany(ctx context.Context, caller Caller, req *dto.UpdateCompanyRequest) (*dto.UserResponse, error)
	ListCompanies(ctx context.Context) ([]dto.CompanyResponse, error)
}

type userService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewUserService creates a UserService
func NewUserService(repo *repository.Repository, logger *zap.Logger) UserService {
	return &userService{repo: repo, logger: logger}
}

func (s *userService) UpdateProfile(ctx context.Context, caller Caller, req *dto.UpdateProfileRequest) (*dto.UserResponse, error) {
	return s.update(ctx, caller.UserID, func(u *model.User) error {
		u.DisplayName = strings.TrimSpace(req.DisplayName)
		return nil
	})
}

func (s *userService) UpdateSkills(ctx context.Context, caller Caller, req *dto.UpdateSkillsRequest) (*dto.UserResponse, error) {
	return s.update(ctx, caller.UserID, func(u *model.User) error {
		if u.Role != model.RoleStudent {
			return ErrWrongRole
		}
		u.Skills = NormalizeTags(req.Skills)
		return nil
	})
}

func (s *userService) UpdateCompany(ctx context.Context, caller Caller, req *dto.UpdateCompanyRequest) (*dto.UserResponse, error) {
	return s.update(ctx, caller.UserID, func(u *model.User) error {
		if u.Role != model.RoleCompany {
			return ErrWrongRole
		}
		if name := strings.TrimSpace(req.CompanyName); name != "" {
			u.CompanyName = name
		}
		u.CompanyICO = strings.TrimSpace(req.CompanyICO)
		u.LookingFor = NormalizeTags(req.LookingFor)
		return nil
	})
}

func (s *userService) ListCompanies(ctx context.Context) ([]dto.CompanyResponse, error) {
	companies, err := s.repo.User.ListByRole(ctx, model.RoleCompany)
	if err != nil {
		s.logger.Error("list companies failed", zap.Error(err))
		return nil, err
	}

	out := make([]dto.CompanyResponse, 0, len(companies))
	for _, c := range companies {
		out = append(out, dto.CompanyResponse{
			ID:          c.UserID,
			DisplayName: c.DisplayName,
			CompanyName: c.CompanyName,
			CompanyICO:  c.CompanyICO,
			Email:       c.Email,
			LookingFor:  []string(c.LookingFor),
		})
	}
	return out, nil
}

func (s *userService) update(ctx context.Context, userID string, mutate func(*model.User) error) (*dto.UserResponse, error) {
	user, err := s.repo.User.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if err := mutate(user); err != nil {
		return nil, err
	}
	if err := s.repo.User.Update(ctx, user); err != nil {
		s.logger.Error("update user failed", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	resp := toUserResponse(user)
	return &resp, nil
}

// NormalizeTags trims tags and drops empties and case-insensitive duplicates,
// keeping first-seen order
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.Join(strings.Fields(t), " ")
		if t == "" {
			continue
		}
		key := strings.ToLower(t)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	return out
}
