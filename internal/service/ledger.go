package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ayo6706/clubledger/internal/domain"
	"github.com/ayo6706/clubledger/internal/models"
	"github.com/ayo6706/clubledger/internal/observability"
	"github.com/ayo6706/clubledger/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrLedgerIntegrity     = errors.New("ledger integrity violation")
	ErrTransactionNotFound = errors.New("ledger transaction not found")
	ErrAlreadyVoided       = errors.New("ledger transaction already voided")
	ErrNotVoidable         = errors.New("ledger transaction cannot be voided")
)

const (
	defaultStatementLimit = 50
	maxStatementLimit     = 500
)

type AccountKind string

const (
	AccountMember       AccountKind = "member"
	AccountOrganisation AccountKind = "organisation"
)

// Account identifies one balance-carrying ledger.
type Account struct {
	Kind AccountKind
	ID   uuid.UUID
}

func MemberAccount(id uuid.UUID) Account       { return Account{Kind: AccountMember, ID: id} }
func OrganisationAccount(id uuid.UUID) Account { return Account{Kind: AccountOrganisation, ID: id} }

func (a Account) String() string {
	return string(a.Kind) + ":" + a.ID.String()
}

// Entry is a signed movement on one account. Positive amounts credit.
type Entry struct {
	Account         Account
	Amount          int64
	Description     string
	PaymentType     domain.PaymentType
	PendingChargeID *uuid.UUID
	Counterpart     *Account
	ReversesID      *int64
	// TransferID links the two legs of a Move.
	TransferID *uuid.UUID
	ActorID    *uuid.UUID
	// Source names the flow that wrote the row (settlement, webhook, ...).
	Source string
}

// Posting is the row an Entry produced.
type Posting struct {
	Account       Account `json:"-"`
	TransactionID int64   `json:"transaction_id"`
	Sequence      int64   `json:"sequence"`
	Amount        int64   `json:"amount"`
	Balance       int64   `json:"balance"`
}

// LedgerService owns the append-only member and organisation ledgers.
// Balances are never stored separately; the last row's snapshot is the balance.
type LedgerService struct {
	store QueryStore
	audit *AuditService
}

func NewLedgerService(store QueryStore) *LedgerService {
	return &LedgerService{store: store, audit: NewAuditService()}
}

func (s *LedgerService) MemberBalance(ctx context.Context, memberID uuid.UUID) (int64, error) {
	return s.balance(ctx, s.store.Queries(), MemberAccount(memberID), false)
}

func (s *LedgerService) OrganisationBalance(ctx context.Context, orgID uuid.UUID) (int64, error) {
	return s.balance(ctx, s.store.Queries(), OrganisationAccount(orgID), false)
}

// balance reads the latest snapshot; with lock the account row is locked first.
func (s *LedgerService) balance(ctx context.Context, q repository.Querier, acc Account, lock bool) (int64, error) {
	if lock {
		if err := s.lockAccount(ctx, q, acc); err != nil {
			return 0, err
		}
	} else if err := s.accountExists(ctx, q, acc); err != nil {
		return 0, err
	}
	last, _, err := s.lastRow(ctx, q, acc)
	return last, err
}

func (s *LedgerService) accountExists(ctx context.Context, q repository.Querier, acc Account) error {
	var err error
	switch acc.Kind {
	case AccountMember:
		_, err = q.GetMember(ctx, repository.ToPgUUID(acc.ID))
	case AccountOrganisation:
		_, err = q.GetOrganisation(ctx, repository.ToPgUUID(acc.ID))
	default:
		return fmt.Errorf("unknown account kind %q", acc.Kind)
	}
	return accountLookupErr(acc, err)
}

func (s *LedgerService) lockAccount(ctx context.Context, q repository.Querier, acc Account) error {
	var err error
	switch acc.Kind {
	case AccountMember:
		_, err = q.GetMemberForUpdate(ctx, repository.ToPgUUID(acc.ID))
	case AccountOrganisation:
		_, err = q.GetOrganisationForUpdate(ctx, repository.ToPgUUID(acc.ID))
	default:
		return fmt.Errorf("unknown account kind %q", acc.Kind)
	}
	return accountLookupErr(acc, err)
}

func accountLookupErr(acc Account, err error) error {
	if err == nil {
		return nil
	}
	if isNoRows(err) {
		if acc.Kind == AccountOrganisation {
			return fmt.Errorf("%w: %s", models.ErrOrganisationNotFound, acc.ID)
		}
		return fmt.Errorf("%w: %s", models.ErrMemberNotFound, acc.ID)
	}
	return fmt.Errorf("load %s: %w", acc, err)
}

// lastRow returns the balance and sequence of the newest row, zero for an empty ledger.
func (s *LedgerService) lastRow(ctx context.Context, q repository.Querier, acc Account) (int64, int64, error) {
	switch acc.Kind {
	case AccountMember:
		row, err := q.GetLastMemberTransaction(ctx, repository.ToPgUUID(acc.ID))
		if err != nil {
			if isNoRows(err) {
				return 0, 0, nil
			}
			return 0, 0, fmt.Errorf("read last member transaction: %w", err)
		}
		return row.Balance, row.Sequence, nil
	case AccountOrganisation:
		row, err := q.GetLastOrganisationTransaction(ctx, repository.ToPgUUID(acc.ID))
		if err != nil {
			if isNoRows(err) {
				return 0, 0, nil
			}
			return 0, 0, fmt.Errorf("read last organisation transaction: %w", err)
		}
		return row.Balance, row.Sequence, nil
	}
	return 0, 0, fmt.Errorf("unknown account kind %q", acc.Kind)
}

// Lock takes row locks on every account in a fixed order (members before
// organisations, then by id) so concurrent settlements cannot deadlock.
func (s *LedgerService) Lock(ctx context.Context, q repository.Querier, accounts ...Account) error {
	ordered := make([]Account, 0, len(accounts))
	seen := make(map[Account]struct{}, len(accounts))
	for _, acc := range accounts {
		if _, ok := seen[acc]; ok {
			continue
		}
		seen[acc] = struct{}{}
		ordered = append(ordered, acc)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].Kind != ordered[j].Kind {
			return ordered[i].Kind == AccountMember
		}
		return ordered[i].ID.String() < ordered[j].ID.String()
	})
	for _, acc := range ordered {
		if err := s.lockAccount(ctx, q, acc); err != nil {
			return err
		}
	}
	return nil
}

// Append writes one row to the entry's account. It must run inside
// QueryStore.RunInTx; the account row is locked before the last balance is read.
func (s *LedgerService) Append(ctx context.Context, q repository.Querier, e Entry) (Posting, error) {
	if err := s.lockAccount(ctx, q, e.Account); err != nil {
		return Posting{}, err
	}
	prevBalance, prevSeq, err := s.lastRow(ctx, q, e.Account)
	if err != nil {
		return Posting{}, err
	}

	posting := Posting{
		Account:  e.Account,
		Sequence: prevSeq + 1,
		Amount:   e.Amount,
		Balance:  prevBalance + e.Amount,
	}

	var counterpartMember, counterpartOrg *uuid.UUID
	if e.Counterpart != nil {
		id := e.Counterpart.ID
		if e.Counterpart.Kind == AccountOrganisation {
			counterpartOrg = &id
		} else {
			counterpartMember = &id
		}
	}

	entityType := domain.EntityMemberTransaction
	switch e.Account.Kind {
	case AccountMember:
		row, err := q.InsertMemberTransaction(ctx, repository.InsertMemberTransactionParams{
			MemberID:                  repository.ToPgUUID(e.Account.ID),
			Sequence:                  posting.Sequence,
			Amount:                    posting.Amount,
			Balance:                   posting.Balance,
			Description:               e.Description,
			PaymentType:               string(e.PaymentType),
			PendingChargeID:           repository.OptionalPgUUID(e.PendingChargeID),
			CounterpartMemberID:       repository.OptionalPgUUID(counterpartMember),
			CounterpartOrganisationID: repository.OptionalPgUUID(counterpartOrg),
			ReversesID:                e.ReversesID,
			TransferID:                repository.OptionalPgUUID(e.TransferID),
		})
		if err != nil {
			return Posting{}, s.insertErr(e, posting, err)
		}
		posting.TransactionID = row.ID
	case AccountOrganisation:
		entityType = domain.EntityOrganisationTransaction
		row, err := q.InsertOrganisationTransaction(ctx, repository.InsertOrganisationTransactionParams{
			OrganisationID:            repository.ToPgUUID(e.Account.ID),
			Sequence:                  posting.Sequence,
			Amount:                    posting.Amount,
			Balance:                   posting.Balance,
			Description:               e.Description,
			PaymentType:               string(e.PaymentType),
			PendingChargeID:           repository.OptionalPgUUID(e.PendingChargeID),
			CounterpartMemberID:       repository.OptionalPgUUID(counterpartMember),
			CounterpartOrganisationID: repository.OptionalPgUUID(counterpartOrg),
			TransferID:                repository.OptionalPgUUID(e.TransferID),
		})
		if err != nil {
			return Posting{}, s.insertErr(e, posting, err)
		}
		posting.TransactionID = row.ID
	default:
		return Posting{}, fmt.Errorf("unknown account kind %q", e.Account.Kind)
	}

	meta := map[string]any{
		"account":      e.Account.String(),
		"sequence":     posting.Sequence,
		"amount":       posting.Amount,
		"balance":      posting.Balance,
		"payment_type": e.PaymentType,
		"message":      e.Description,
	}
	if e.PendingChargeID != nil {
		meta["pending_charge_id"] = e.PendingChargeID.String()
	}
	if e.TransferID != nil {
		meta["transfer_id"] = e.TransferID.String()
	}
	if err := s.audit.Write(ctx, q, AuditEntry{
		EntityType: entityType,
		EntityID:   strconv.FormatInt(posting.TransactionID, 10),
		ActorID:    e.ActorID,
		Action:     e.Source,
		NextState:  strconv.FormatInt(posting.Balance, 10),
		Metadata:   meta,
	}); err != nil {
		return Posting{}, err
	}
	return posting, nil
}

func (s *LedgerService) insertErr(e Entry, posting Posting, err error) error {
	constraint, ok := repository.ViolatedConstraint(err)
	if !ok {
		return fmt.Errorf("insert %s transaction: %w", e.Account.Kind, err)
	}
	if strings.Contains(constraint, "reverses_id") {
		return ErrAlreadyVoided
	}
	observability.AddLedgerBreaks(string(e.Account.Kind), 1)
	zap.L().Error("CRITICAL: ledger sequence collision",
		zap.String("account", e.Account.String()),
		zap.Int64("sequence", posting.Sequence),
		zap.String("constraint", constraint),
		zap.Error(err))
	return fmt.Errorf("%w: %s sequence %d: %v", ErrLedgerIntegrity, e.Account, posting.Sequence, err)
}

// Move debits from and credits to by amount as a pair sharing one transfer id.
func (s *LedgerService) Move(ctx context.Context, q repository.Querier, from, to Account, amount int64, description string, pt domain.PaymentType, pendingChargeID *uuid.UUID, source string) ([]Posting, error) {
	if err := s.Lock(ctx, q, from, to); err != nil {
		return nil, err
	}
	transferID := uuid.New()
	debit, err := s.Append(ctx, q, Entry{
		Account:         from,
		Amount:          -amount,
		Description:     description,
		PaymentType:     pt,
		PendingChargeID: pendingChargeID,
		Counterpart:     &to,
		TransferID:      &transferID,
		Source:          source,
	})
	if err != nil {
		return nil, err
	}
	credit, err := s.Append(ctx, q, Entry{
		Account:         to,
		Amount:          amount,
		Description:     description,
		PaymentType:     pt,
		PendingChargeID: pendingChargeID,
		Counterpart:     &from,
		TransferID:      &transferID,
		Source:          source,
	})
	if err != nil {
		return nil, err
	}
	return []Posting{debit, credit}, nil
}

func clampPage(limit, offset int) (int32, int32) {
	if limit <= 0 {
		limit = defaultStatementLimit
	}
	if limit > maxStatementLimit {
		limit = maxStatementLimit
	}
	if offset < 0 {
		offset = 0
	}
	return int32(limit), int32(offset)
}

// MemberStatement lists rows newest first.
func (s *LedgerService) MemberStatement(ctx context.Context, memberID uuid.UUID, limit, offset int) ([]models.MemberTransaction, error) {
	q := s.store.Queries()
	if err := s.accountExists(ctx, q, MemberAccount(memberID)); err != nil {
		return nil, err
	}
	l, o := clampPage(limit, offset)
	rows, err := q.ListMemberTransactions(ctx, repository.ListMemberTransactionsParams{
		MemberID: repository.ToPgUUID(memberID),
		Limit:    l,
		Offset:   o,
	})
	if err != nil {
		return nil, fmt.Errorf("list member transactions: %w", err)
	}
	out := make([]models.MemberTransaction, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Model())
	}
	return out, nil
}

func (s *LedgerService) OrganisationStatement(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]models.OrganisationTransaction, error) {
	q := s.store.Queries()
	if err := s.accountExists(ctx, q, OrganisationAccount(orgID)); err != nil {
		return nil, err
	}
	l, o := clampPage(limit, offset)
	rows, err := q.ListOrganisationTransactions(ctx, repository.ListOrganisationTransactionsParams{
		OrganisationID: repository.ToPgUUID(orgID),
		Limit:          l,
		Offset:         o,
	})
	if err != nil {
		return nil, fmt.Errorf("list organisation transactions: %w", err)
	}
	out := make([]models.OrganisationTransaction, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Model())
	}
	return out, nil
}

// VoidMemberTransaction appends a MANUAL_CORRECTION row negating txID. When
// txID is one leg of a Move the other leg is negated too, so the total across
// both accounts is unchanged. Corrections cannot be voided and a row can be
// voided once.
func (s *LedgerService) VoidMemberTransaction(ctx context.Context, memberID uuid.UUID, txID int64, actorID *uuid.UUID, reason string) (*models.MemberTransaction, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, &CallerError{Reason: "void reason is required"}
	}

	var out models.MemberTransaction
	err := s.store.RunInTx(ctx, func(q repository.Querier) error {
		acc := MemberAccount(memberID)
		if err := s.accountExists(ctx, q, acc); err != nil {
			return err
		}
		// rows are immutable, so reading before the locks is safe
		orig, err := q.GetMemberTransaction(ctx, repository.GetMemberTransactionParams{
			ID:       txID,
			MemberID: repository.ToPgUUID(memberID),
		})
		if err != nil {
			if isNoRows(err) {
				return ErrTransactionNotFound
			}
			return fmt.Errorf("load member transaction: %w", err)
		}
		if domain.PaymentType(orig.PaymentType) == domain.PaymentTypeManualCorrection {
			return ErrNotVoidable
		}

		var counterpart *Account
		switch {
		case orig.CounterpartMemberID.Valid:
			cp := MemberAccount(repository.FromPgUUID(orig.CounterpartMemberID))
			counterpart = &cp
		case orig.CounterpartOrganisationID.Valid:
			cp := OrganisationAccount(repository.FromPgUUID(orig.CounterpartOrganisationID))
			counterpart = &cp
		}
		if counterpart != nil && !orig.TransferID.Valid {
			// an unlinked leg cannot be reversed without creating money
			return ErrNotVoidable
		}

		accounts := []Account{acc}
		if counterpart != nil {
			accounts = append(accounts, *counterpart)
		}
		if err := s.Lock(ctx, q, accounts...); err != nil {
			return err
		}

		description := fmt.Sprintf("Void of #%d: %s", orig.ID, reason)
		var correctionTransfer *uuid.UUID
		if counterpart != nil {
			id := uuid.New()
			correctionTransfer = &id
		}
		posting, err := s.Append(ctx, q, Entry{
			Account:     acc,
			Amount:      -orig.Amount,
			Description: description,
			PaymentType: domain.PaymentTypeManualCorrection,
			Counterpart: counterpart,
			ReversesID:  &orig.ID,
			TransferID:  correctionTransfer,
			ActorID:     actorID,
			Source:      "void",
		})
		if err != nil {
			return err
		}
		if counterpart != nil {
			if err := s.voidTransferLeg(ctx, q, *counterpart, acc, orig, description, correctionTransfer, actorID); err != nil {
				return err
			}
		}

		row, err := q.GetMemberTransaction(ctx, repository.GetMemberTransactionParams{
			ID:       posting.TransactionID,
			MemberID: repository.ToPgUUID(memberID),
		})
		if err != nil {
			return fmt.Errorf("reload correction: %w", err)
		}
		out = row.Model()
		return nil
	})
	if err != nil {
		return nil, err
	}
	zap.L().Info("member transaction voided",
		zap.String("member_id", memberID.String()),
		zap.Int64("transaction_id", txID),
		zap.Int64("correction_id", out.ID))
	return &out, nil
}

// voidTransferLeg negates the counterpart's leg of orig's transfer.
func (s *LedgerService) voidTransferLeg(ctx context.Context, q repository.Querier, counterpart, owner Account, orig repository.MemberTransaction, description string, transferID, actorID *uuid.UUID) error {
	e := Entry{
		Account:     counterpart,
		Description: description,
		PaymentType: domain.PaymentTypeManualCorrection,
		Counterpart: &owner,
		TransferID:  transferID,
		ActorID:     actorID,
		Source:      "void",
	}
	var legAmount int64
	switch counterpart.Kind {
	case AccountMember:
		leg, err := q.GetMemberTransferLeg(ctx, repository.GetMemberTransferLegParams{
			TransferID: orig.TransferID,
			MemberID:   repository.ToPgUUID(counterpart.ID),
		})
		if err != nil {
			return transferLegErr(orig, err)
		}
		legAmount = leg.Amount
		e.ReversesID = &leg.ID
	case AccountOrganisation:
		leg, err := q.GetOrganisationTransferLeg(ctx, repository.GetOrganisationTransferLegParams{
			TransferID:     orig.TransferID,
			OrganisationID: repository.ToPgUUID(counterpart.ID),
		})
		if err != nil {
			return transferLegErr(orig, err)
		}
		legAmount = leg.Amount
	}
	if legAmount != -orig.Amount {
		zap.L().Error("CRITICAL: transfer legs do not balance",
			zap.Int64("transaction_id", orig.ID),
			zap.Int64("amount", orig.Amount),
			zap.Int64("counterpart_amount", legAmount))
		return fmt.Errorf("%w: transfer of #%d does not balance", ErrLedgerIntegrity, orig.ID)
	}
	e.Amount = -legAmount
	_, err := s.Append(ctx, q, e)
	return err
}

func transferLegErr(orig repository.MemberTransaction, err error) error {
	if isNoRows(err) {
		zap.L().Error("CRITICAL: transfer counterpart leg missing", zap.Int64("transaction_id", orig.ID))
		return fmt.Errorf("%w: counterpart leg of #%d missing", ErrLedgerIntegrity, orig.ID)
	}
	return fmt.Errorf("load transfer leg: %w", err)
}

// Charge is one debit on the payer, credited to Counterpart when set.
type Charge struct {
	Amount          int64
	Description     string
	PaymentType     domain.PaymentType
	Counterpart     *Account
	PendingChargeID *uuid.UUID
}

// PostCharges debits every charge from payer inside q's transaction and
// returns the postings plus the payer's final balance. Unless allowOverdraft
// is set, a payer balance below the total fails with ErrInsufficientFunds
// after the locks are held.
func (s *LedgerService) PostCharges(ctx context.Context, q repository.Querier, payerID uuid.UUID, charges []Charge, allowOverdraft bool, source string) ([]Posting, int64, error) {
	payer := MemberAccount(payerID)
	accounts := []Account{payer}
	var total int64
	for _, c := range charges {
		total += c.Amount
		if c.Counterpart != nil {
			accounts = append(accounts, *c.Counterpart)
		}
	}
	if err := s.Lock(ctx, q, accounts...); err != nil {
		return nil, 0, err
	}

	balance, _, err := s.lastRow(ctx, q, payer)
	if err != nil {
		return nil, 0, err
	}
	if !allowOverdraft && total > balance {
		return nil, balance, models.ErrInsufficientFunds
	}

	postings := make([]Posting, 0, 2*len(charges))
	for _, c := range charges {
		if c.Counterpart != nil {
			pair, err := s.Move(ctx, q, payer, *c.Counterpart, c.Amount, c.Description, c.PaymentType, c.PendingChargeID, source)
			if err != nil {
				return nil, 0, err
			}
			postings = append(postings, pair...)
			balance = pair[0].Balance
			continue
		}
		debit, err := s.Append(ctx, q, Entry{
			Account:         payer,
			Amount:          -c.Amount,
			Description:     c.Description,
			PaymentType:     c.PaymentType,
			PendingChargeID: c.PendingChargeID,
			Source:          source,
		})
		if err != nil {
			return nil, 0, err
		}
		postings = append(postings, debit)
		balance = debit.Balance
	}
	return postings, balance, nil
}
