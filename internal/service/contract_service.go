package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"praxihub/backend/internal/dto"
	"praxihub/backend/internal/model"
	"praxihub/backend/internal/repository"
	"praxihub/backend/pkg/blob"
	"praxihub/backend/pkg/pdf"
)

// ErrContractFieldsMissing required contract fields were empty
var ErrContractFieldsMissing = errors.New("missing required contract fields")

// ContractService renders and stores internship contracts
type ContractService interface {
	Generate(ctx context.Context, caller Caller, req *dto.GenerateContractRequest) (*dto.GenerateContractResponse, error)
}

type contractService struct {
	repo        *repository.Repository
	store       blob.Store
	fonts       FontSource
	internships InternshipService
	logger      *zap.Logger
}

// NewContractService creates a ContractService. store may be nil.
func NewContractService(
	repo *repository.Repository,
	store blob.Store,
	fonts FontSource,
	internships InternshipService,
	logger *zap.Logger,
) ContractService {
	return &contractService{
		repo:        repo,
		store:       store,
		fonts:       fonts,
		internships: internships,
		logger:      logger,
	}
}

func (s *contractService) Generate(ctx context.Context, caller Caller, req *dto.GenerateContractRequest) (*dto.GenerateContractResponse, error) {
	fields := pdf.ContractFields{
		StudentName: strings.TrimSpace(req.StudentName),
		CompanyName: strings.TrimSpace(req.CompanyName),
		ICO:         strings.TrimSpace(req.ICO),
		Position:    strings.TrimSpace(req.Position),
		StartDate:   strings.TrimSpace(req.StartDate),
		EndDate:     strings.TrimSpace(req.EndDate),
	}
	if missing := fields.Missing(); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrContractFieldsMissing, strings.Join(missing, ", "))
	}
	if req.CreateInternship && caller.Role != model.RoleStudent {
		return nil, ErrWrongRole
	}
	if s.store == nil {
		return nil, ErrStorageUnavailable
	}

	// no font, no document
	font, err := s.fonts.Fetch(ctx)
	if err != nil {
		s.logger.Error("fetch contract font failed", zap.Error(err))
		return nil, err
	}

	now := time.Now().UTC()
	doc, err := pdf.RenderContract(fields, font, now)
	if err != nil {
		s.logger.Error("render contract failed", zap.Error(err))
		return nil, err
	}

	fileName := fmt.Sprintf("generated_%d.pdf", now.Unix())
	key := blob.ContractKey(caller.UserID, fileName)
	url, err := s.store.Put(ctx, key, bytes.NewReader(doc), "application/pdf")
	if err != nil {
		s.logger.Error("upload generated contract failed", zap.String("key", key), zap.Error(err))
		return nil, err
	}

	resp := &dto.GenerateContractResponse{DownloadURL: url, FileName: fileName}
	if !req.CreateInternship {
		return resp, nil
	}

	user, err := s.repo.User.GetByID(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	rec := &model.Internship{
		StudentID:        user.UserID,
		StudentEmail:     user.Email,
		StudentName:      fields.StudentName,
		ContractURL:      url,
		ContractKey:      key,
		FileName:         fileName,
		Source:           model.SourceGenerated,
		Generated:        true,
		OrganizationName: fields.CompanyName,
		OrganizationICO:  fields.ICO,
		Position:         fields.Position,
		StartDate:        fields.StartDate,
		EndDate:          fields.EndDate,
		Status:           model.StatusAnalyzing,
		AnalysisToken:    newToken(),
	}
	if err := s.internships.CreateRecord(ctx, rec); err != nil {
		return nil, err
	}
	resp.InternshipID = rec.InternshipID
	return resp, nil
}
