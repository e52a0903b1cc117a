package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"praxihub/backend/config"
	"praxihub/backend/internal/dto"
	"praxihub/backend/internal/model"
	"praxihub/backend/internal/repository"
	"praxihub/backend/pkg/ai"
)

var (
	// ErrMatchmakingFailed the model reply could not be used
	ErrMatchmakingFailed = errors.New("matchmaking failed")
	// ErrModelUnavailable no generative model is configured
	ErrModelUnavailable = errors.New("ai model is not configured")
)

const (
	msgNoSkills    = "Add at least one skill to your profile to get company matches."
	msgNoCompanies = "No companies are currently looking for candidates."
)

const matchmakingInstruction = `You are a recruitment assistant for a university internship programme.
Score how well the student fits each company on a scale from 0 to 100.
Return ONLY a JSON array, no markdown, where every element has the keys
"companyId" (string, copied from the input), "matchScore" (integer 0-100)
and "reasoning" (one short sentence).`

// MatchmakingService scores companies for a student
type MatchmakingService interface {
	Match(ctx context.Context, caller Caller) (*dto.MatchResponse, error)
}

type matchmakingService struct {
	cfg    *config.Config
	repo   *repository.Repository
	model  ai.Model
	logger *zap.Logger
}

// NewMatchmakingService creates a MatchmakingService. model may be nil.
func NewMatchmakingService(cfg *config.Config, repo *repository.Repository, m ai.Model, logger *zap.Logger) MatchmakingService {
	return &matchmakingService{cfg: cfg, repo: repo, model: m, logger: logger}
}

type companyCandidate struct {
	CompanyID  string   `json:"companyId"`
	LookingFor []string `json:"lookingFor"`
}

type scoredCompany struct {
	CompanyID  string      `json:"companyId"`
	MatchScore json.Number `json:"matchScore"`
	Reasoning  string      `json:"reasoning"`
}

func (s *matchmakingService) Match(ctx context.Context, caller Caller) (*dto.MatchResponse, error) {
	if caller.Role != model.RoleStudent {
		return nil, ErrWrongRole
	}
	student, err := s.repo.User.GetByID(ctx, caller.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	skills := NormalizeTags(student.Skills)
	if len(skills) == 0 {
		return &dto.MatchResponse{Matches: []dto.Match{}, Message: msgNoSkills}, nil
	}

	all, err := s.repo.User.ListByRole(ctx, model.RoleCompany)
	if err != nil {
		s.logger.Error("list companies failed", zap.Error(err))
		return nil, err
	}

	// companies without tags have nothing to score against
	byID := make(map[string]model.User, len(all))
	candidates := make([]companyCandidate, 0, len(all))
	for _, c := range all {
		tags := NormalizeTags(c.LookingFor)
		if len(tags) == 0 {
			continue
		}
		c.LookingFor = tags
		byID[c.UserID] = c
		candidates = append(candidates, companyCandidate{CompanyID: c.UserID, LookingFor: tags})
	}
	if len(candidates) == 0 {
		return &dto.MatchResponse{Matches: []dto.Match{}, Message: msgNoCompanies}, nil
	}

	if s.model == nil {
		return nil, ErrModelUnavailable
	}

	prompt, err := buildMatchPrompt(skills, candidates)
	if err != nil {
		return nil, err
	}
	reply, err := s.model.Generate(ctx, ai.Request{
		Model:  s.cfg.AI.ChatModel,
		System: matchmakingInstruction,
		Prompt: prompt,
		JSON:   true,
	})
	if err != nil {
		s.logger.Error("matchmaking model call failed", zap.String("user_id", caller.UserID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrMatchmakingFailed, err)
	}

	matches, err := mergeMatches(reply, byID)
	if err != nil {
		s.logger.Warn("unparseable matchmaking reply", zap.String("user_id", caller.UserID), zap.Error(err))
		return nil, err
	}
	return &dto.MatchResponse{Matches: matches}, nil
}

func buildMatchPrompt(skills []string, companies []companyCandidate) (string, error) {
	skillsJSON, err := json.Marshal(skills)
	if err != nil {
		return "", err
	}
	companiesJSON, err := json.Marshal(companies)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("Student skills: ")
	b.Write(skillsJSON)
	b.WriteString("\nCompanies: ")
	b.Write(companiesJSON)
	return b.String(), nil
}

// mergeMatches parses the model reply and joins it with the company rows.
// Unknown ids are dropped and scores clamped to 0..100.
func mergeMatches(reply string, companies map[string]model.User) ([]dto.Match, error) {
	var scored []scoredCompany
	if err := json.Unmarshal([]byte(ai.StripCodeFences(reply)), &scored); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMatchmakingFailed, err)
	}

	seen := make(map[string]bool, len(scored))
	out := make([]dto.Match, 0, len(scored))
	for _, sc := range scored {
		c, ok := companies[sc.CompanyID]
		if !ok || seen[sc.CompanyID] {
			continue
		}
		seen[sc.CompanyID] = true

		score, err := sc.MatchScore.Float64()
		if err != nil {
			return nil, fmt.Errorf("%w: bad score for %s", ErrMatchmakingFailed, sc.CompanyID)
		}
		name := c.DisplayName
		if name == "" {
			name = c.CompanyName
		}
		out = append(out, dto.Match{
			CompanyID:    c.UserID,
			CompanyName:  name,
			CompanyEmail: c.Email,
			MatchScore:   clampScore(score),
			Reasoning:    strings.TrimSpace(sc.Reasoning),
			LookingFor:   []string(c.LookingFor),
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].MatchScore > out[j].MatchScore })
	return out, nil
}

func clampScore(v float64) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return int(v + 0.5)
}
