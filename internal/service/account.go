package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/ayo6706/clubledger/internal/domain"
	"github.com/ayo6706/clubledger/internal/models"
	"github.com/ayo6706/clubledger/internal/repository"
	"github.com/google/uuid"
)

var ErrEmailTaken = errors.New("email already registered")

type AccountService struct {
	store QueryStore
}

func NewAccountService(store QueryStore) *AccountService {
	return &AccountService{store: store}
}

// CreateMember opens a member with an empty ledger and auto top-up OFF.
func (s *AccountService) CreateMember(ctx context.Context, name, email string) (*models.Member, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" {
		return nil, callerErrorf("name is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, callerErrorf("invalid email %q", email)
	}

	row, err := s.store.Queries().CreateMember(ctx, repository.CreateMemberParams{
		ID:             repository.ToPgUUID(uuid.New()),
		Name:           name,
		Email:          email,
		AutoTopupState: string(domain.AutoTopUpOff),
	})
	if err != nil {
		if constraint, ok := repository.ViolatedConstraint(err); ok && constraint == "members_email_key" {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create member: %w", err)
	}
	member := row.Model()
	return &member, nil
}

func (s *AccountService) CreateOrganisation(ctx context.Context, name string) (*models.Organisation, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, callerErrorf("name is required")
	}
	row, err := s.store.Queries().CreateOrganisation(ctx, repository.CreateOrganisationParams{
		ID:   repository.ToPgUUID(uuid.New()),
		Name: name,
	})
	if err != nil {
		return nil, fmt.Errorf("create organisation: %w", err)
	}
	org := row.Model()
	return &org, nil
}

func (s *AccountService) GetMember(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	row, err := s.store.Queries().GetMember(ctx, repository.ToPgUUID(id))
	if err != nil {
		return nil, accountLookupErr(MemberAccount(id), err)
	}
	member := row.Model()
	return &member, nil
}
