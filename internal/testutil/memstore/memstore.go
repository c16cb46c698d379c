// Package memstore is an in-memory repository.Querier used by service and
// handler tests. Transactions are serialised by a single mutex and rolled back
// by restoring a snapshot, which is enough to stand in for row locks.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ayo6706/clubledger/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

type state struct {
	members       map[uuid.UUID]repository.Member
	organisations map[uuid.UUID]repository.Organisation
	memberTxs     map[uuid.UUID][]repository.MemberTransaction
	orgTxs        map[uuid.UUID][]repository.OrganisationTransaction
	charges       map[uuid.UUID]repository.PendingGatewayCharge
	audit         []repository.AuditLog
	idempotency   map[string]repository.IdempotencyKey
	nextTxID      int64
	nextAuditID   int64
}

func newState() state {
	return state{
		members:       map[uuid.UUID]repository.Member{},
		organisations: map[uuid.UUID]repository.Organisation{},
		memberTxs:     map[uuid.UUID][]repository.MemberTransaction{},
		orgTxs:        map[uuid.UUID][]repository.OrganisationTransaction{},
		charges:       map[uuid.UUID]repository.PendingGatewayCharge{},
		idempotency:   map[string]repository.IdempotencyKey{},
	}
}

func (s state) clone() state {
	out := newState()
	for k, v := range s.members {
		out.members[k] = v
	}
	for k, v := range s.organisations {
		out.organisations[k] = v
	}
	for k, v := range s.memberTxs {
		out.memberTxs[k] = append([]repository.MemberTransaction(nil), v...)
	}
	for k, v := range s.orgTxs {
		out.orgTxs[k] = append([]repository.OrganisationTransaction(nil), v...)
	}
	for k, v := range s.charges {
		out.charges[k] = v
	}
	for k, v := range s.idempotency {
		out.idempotency[k] = v
	}
	out.audit = append([]repository.AuditLog(nil), s.audit...)
	out.nextTxID = s.nextTxID
	out.nextAuditID = s.nextAuditID
	return out
}

// Store satisfies the service layer's store contract without a database.
type Store struct {
	mu       sync.Mutex
	data     state
	failures map[string]error
	txCount  int
}

func New() *Store {
	return &Store{data: newState(), failures: map[string]error{}}
}

// Queries returns a querier whose calls each take the store lock.
func (s *Store) Queries() repository.Querier {
	return &querier{s: s, locked: true}
}

// RunInTx runs fn with the store locked and restores the prior state if fn fails.
func (s *Store) RunInTx(ctx context.Context, fn func(q repository.Querier) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	s.txCount++
	snapshot := s.data.clone()
	if err := fn(&querier{s: s}); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

// FailOn makes the next call of the named query return err.
func (s *Store) FailOn(query string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[query] = err
}

// TxCount reports how many transactions have been started.
func (s *Store) TxCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txCount
}

func (s *Store) AuditLogs() []repository.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]repository.AuditLog(nil), s.data.audit...)
}

func (s *Store) PendingCharges() []repository.PendingGatewayCharge {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]repository.PendingGatewayCharge, 0, len(s.data.charges))
	for _, c := range s.data.charges {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Time.Before(out[j].CreatedAt.Time) })
	return out
}

// MemberTransactions returns the member's rows in sequence order.
func (s *Store) MemberTransactions(memberID uuid.UUID) []repository.MemberTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]repository.MemberTransaction(nil), s.data.memberTxs[memberID]...)
}

func (s *Store) OrganisationTransactions(orgID uuid.UUID) []repository.OrganisationTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]repository.OrganisationTransaction(nil), s.data.orgTxs[orgID]...)
}

type querier struct {
	s      *Store
	locked bool
}

var _ repository.Querier = (*querier)(nil)

func (q *querier) enter(name string) (func(), error) {
	unlock := func() {}
	if q.locked {
		q.s.mu.Lock()
		unlock = q.s.mu.Unlock
	}
	if err, ok := q.s.failures[name]; ok {
		delete(q.s.failures, name)
		return unlock, err
	}
	return unlock, nil
}

func now() pgtype.Timestamptz {
	return repository.ToPgTimestamptz(time.Now().UTC())
}

func uniqueViolation(constraint string) error {
	return &repository.UniqueViolationError{Constraint: constraint}
}

func (q *querier) CreateMember(_ context.Context, arg repository.CreateMemberParams) (repository.Member, error) {
	unlock, err := q.enter("CreateMember")
	defer unlock()
	if err != nil {
		return repository.Member{}, err
	}
	id := repository.FromPgUUID(arg.ID)
	if _, ok := q.s.data.members[id]; ok {
		return repository.Member{}, uniqueViolation("members_pkey")
	}
	for _, m := range q.s.data.members {
		if m.Email == arg.Email {
			return repository.Member{}, uniqueViolation("members_email_key")
		}
	}
	autoState := arg.AutoTopupState
	if autoState == "" {
		autoState = "OFF"
	}
	m := repository.Member{
		ID:                 arg.ID,
		Name:               arg.Name,
		Email:              arg.Email,
		AutoTopupState:     autoState,
		AutoTopupAmount:    arg.AutoTopupAmount,
		GatewayCustomerRef: arg.GatewayCustomerRef,
		CreatedAt:          now(),
	}
	q.s.data.members[id] = m
	return m, nil
}

func (q *querier) CreateOrganisation(_ context.Context, arg repository.CreateOrganisationParams) (repository.Organisation, error) {
	unlock, err := q.enter("CreateOrganisation")
	defer unlock()
	if err != nil {
		return repository.Organisation{}, err
	}
	id := repository.FromPgUUID(arg.ID)
	if _, ok := q.s.data.organisations[id]; ok {
		return repository.Organisation{}, uniqueViolation("organisations_pkey")
	}
	o := repository.Organisation{ID: arg.ID, Name: arg.Name, CreatedAt: now()}
	q.s.data.organisations[id] = o
	return o, nil
}

func (q *querier) getMember(name string, id pgtype.UUID) (repository.Member, error) {
	unlock, err := q.enter(name)
	defer unlock()
	if err != nil {
		return repository.Member{}, err
	}
	m, ok := q.s.data.members[repository.FromPgUUID(id)]
	if !ok {
		return repository.Member{}, pgx.ErrNoRows
	}
	return m, nil
}

func (q *querier) GetMember(_ context.Context, id pgtype.UUID) (repository.Member, error) {
	return q.getMember("GetMember", id)
}

func (q *querier) GetMemberForUpdate(_ context.Context, id pgtype.UUID) (repository.Member, error) {
	return q.getMember("GetMemberForUpdate", id)
}

func (q *querier) getOrganisation(name string, id pgtype.UUID) (repository.Organisation, error) {
	unlock, err := q.enter(name)
	defer unlock()
	if err != nil {
		return repository.Organisation{}, err
	}
	o, ok := q.s.data.organisations[repository.FromPgUUID(id)]
	if !ok {
		return repository.Organisation{}, pgx.ErrNoRows
	}
	return o, nil
}

func (q *querier) GetOrganisation(_ context.Context, id pgtype.UUID) (repository.Organisation, error) {
	return q.getOrganisation("GetOrganisation", id)
}

func (q *querier) GetOrganisationForUpdate(_ context.Context, id pgtype.UUID) (repository.Organisation, error) {
	return q.getOrganisation("GetOrganisationForUpdate", id)
}

func (q *querier) updateMember(name string, id pgtype.UUID, apply func(*repository.Member)) (int64, error) {
	unlock, err := q.enter(name)
	defer unlock()
	if err != nil {
		return 0, err
	}
	key := repository.FromPgUUID(id)
	m, ok := q.s.data.members[key]
	if !ok {
		return 0, nil
	}
	apply(&m)
	q.s.data.members[key] = m
	return 1, nil
}

func (q *querier) SetMemberGatewayCustomer(_ context.Context, arg repository.SetMemberGatewayCustomerParams) (int64, error) {
	return q.updateMember("SetMemberGatewayCustomer", arg.ID, func(m *repository.Member) {
		m.GatewayCustomerRef = arg.GatewayCustomerRef
	})
}

func (q *querier) UpdateMemberAutoTopUpAmount(_ context.Context, arg repository.UpdateMemberAutoTopUpAmountParams) (int64, error) {
	return q.updateMember("UpdateMemberAutoTopUpAmount", arg.ID, func(m *repository.Member) {
		m.AutoTopupAmount = arg.AutoTopupAmount
	})
}

func (q *querier) UpdateMemberAutoTopUpState(_ context.Context, arg repository.UpdateMemberAutoTopUpStateParams) (int64, error) {
	return q.updateMember("UpdateMemberAutoTopUpState", arg.ID, func(m *repository.Member) {
		m.AutoTopupState = arg.AutoTopupState
	})
}

func (q *querier) GetLastMemberTransaction(_ context.Context, memberID pgtype.UUID) (repository.MemberTransaction, error) {
	unlock, err := q.enter("GetLastMemberTransaction")
	defer unlock()
	if err != nil {
		return repository.MemberTransaction{}, err
	}
	rows := q.s.data.memberTxs[repository.FromPgUUID(memberID)]
	if len(rows) == 0 {
		return repository.MemberTransaction{}, pgx.ErrNoRows
	}
	return rows[len(rows)-1], nil
}

func (q *querier) GetLastOrganisationTransaction(_ context.Context, organisationID pgtype.UUID) (repository.OrganisationTransaction, error) {
	unlock, err := q.enter("GetLastOrganisationTransaction")
	defer unlock()
	if err != nil {
		return repository.OrganisationTransaction{}, err
	}
	rows := q.s.data.orgTxs[repository.FromPgUUID(organisationID)]
	if len(rows) == 0 {
		return repository.OrganisationTransaction{}, pgx.ErrNoRows
	}
	return rows[len(rows)-1], nil
}

func (q *querier) InsertMemberTransaction(_ context.Context, arg repository.InsertMemberTransactionParams) (repository.MemberTransaction, error) {
	unlock, err := q.enter("InsertMemberTransaction")
	defer unlock()
	if err != nil {
		return repository.MemberTransaction{}, err
	}
	key := repository.FromPgUUID(arg.MemberID)
	if _, ok := q.s.data.members[key]; !ok {
		return repository.MemberTransaction{}, fmt.Errorf("member_transactions_member_id_fkey: member %s missing", key)
	}
	for _, row := range q.s.data.memberTxs[key] {
		if row.Sequence == arg.Sequence {
			return repository.MemberTransaction{}, uniqueViolation("member_transactions_member_id_sequence_key")
		}
	}
	if arg.ReversesID != nil {
		for _, rows := range q.s.data.memberTxs {
			for _, row := range rows {
				if row.ReversesID != nil && *row.ReversesID == *arg.ReversesID {
					return repository.MemberTransaction{}, uniqueViolation("member_transactions_reverses_id_key")
				}
			}
		}
	}
	q.s.data.nextTxID++
	row := repository.MemberTransaction{
		ID:                        q.s.data.nextTxID,
		MemberID:                  arg.MemberID,
		Sequence:                  arg.Sequence,
		Amount:                    arg.Amount,
		Balance:                   arg.Balance,
		Description:               arg.Description,
		PaymentType:               arg.PaymentType,
		PendingChargeID:           arg.PendingChargeID,
		CounterpartMemberID:       arg.CounterpartMemberID,
		CounterpartOrganisationID: arg.CounterpartOrganisationID,
		ReversesID:                arg.ReversesID,
		TransferID:                arg.TransferID,
		CreatedAt:                 now(),
	}
	rows := append(q.s.data.memberTxs[key], row)
	sort.Slice(rows, func(i, j int) bool { return rows[i].Sequence < rows[j].Sequence })
	q.s.data.memberTxs[key] = rows
	return row, nil
}

func (q *querier) InsertOrganisationTransaction(_ context.Context, arg repository.InsertOrganisationTransactionParams) (repository.OrganisationTransaction, error) {
	unlock, err := q.enter("InsertOrganisationTransaction")
	defer unlock()
	if err != nil {
		return repository.OrganisationTransaction{}, err
	}
	key := repository.FromPgUUID(arg.OrganisationID)
	if _, ok := q.s.data.organisations[key]; !ok {
		return repository.OrganisationTransaction{}, fmt.Errorf("organisation_transactions_organisation_id_fkey: organisation %s missing", key)
	}
	for _, row := range q.s.data.orgTxs[key] {
		if row.Sequence == arg.Sequence {
			return repository.OrganisationTransaction{}, uniqueViolation("organisation_transactions_organisation_id_sequence_key")
		}
	}
	q.s.data.nextTxID++
	row := repository.OrganisationTransaction{
		ID:                        q.s.data.nextTxID,
		OrganisationID:            arg.OrganisationID,
		Sequence:                  arg.Sequence,
		Amount:                    arg.Amount,
		Balance:                   arg.Balance,
		Description:               arg.Description,
		PaymentType:               arg.PaymentType,
		PendingChargeID:           arg.PendingChargeID,
		CounterpartMemberID:       arg.CounterpartMemberID,
		CounterpartOrganisationID: arg.CounterpartOrganisationID,
		TransferID:                arg.TransferID,
		CreatedAt:                 now(),
	}
	rows := append(q.s.data.orgTxs[key], row)
	sort.Slice(rows, func(i, j int) bool { return rows[i].Sequence < rows[j].Sequence })
	q.s.data.orgTxs[key] = rows
	return row, nil
}

func (q *querier) GetMemberTransaction(_ context.Context, arg repository.GetMemberTransactionParams) (repository.MemberTransaction, error) {
	unlock, err := q.enter("GetMemberTransaction")
	defer unlock()
	if err != nil {
		return repository.MemberTransaction{}, err
	}
	for _, row := range q.s.data.memberTxs[repository.FromPgUUID(arg.MemberID)] {
		if row.ID == arg.ID {
			return row, nil
		}
	}
	return repository.MemberTransaction{}, pgx.ErrNoRows
}

func sameUUID(a, b pgtype.UUID) bool {
	return a.Valid && b.Valid && a.Bytes == b.Bytes
}

func (q *querier) GetMemberTransferLeg(_ context.Context, arg repository.GetMemberTransferLegParams) (repository.MemberTransaction, error) {
	unlock, err := q.enter("GetMemberTransferLeg")
	defer unlock()
	if err != nil {
		return repository.MemberTransaction{}, err
	}
	for _, row := range q.s.data.memberTxs[repository.FromPgUUID(arg.MemberID)] {
		if sameUUID(row.TransferID, arg.TransferID) {
			return row, nil
		}
	}
	return repository.MemberTransaction{}, pgx.ErrNoRows
}

func (q *querier) GetOrganisationTransferLeg(_ context.Context, arg repository.GetOrganisationTransferLegParams) (repository.OrganisationTransaction, error) {
	unlock, err := q.enter("GetOrganisationTransferLeg")
	defer unlock()
	if err != nil {
		return repository.OrganisationTransaction{}, err
	}
	for _, row := range q.s.data.orgTxs[repository.FromPgUUID(arg.OrganisationID)] {
		if sameUUID(row.TransferID, arg.TransferID) {
			return row, nil
		}
	}
	return repository.OrganisationTransaction{}, pgx.ErrNoRows
}

func page(total int, limit, offset int32) (int, int) {
	start := int(offset)
	if start > total {
		start = total
	}
	end := start + int(limit)
	if end > total {
		end = total
	}
	return start, end
}

func (q *querier) ListMemberTransactions(_ context.Context, arg repository.ListMemberTransactionsParams) ([]repository.MemberTransaction, error) {
	unlock, err := q.enter("ListMemberTransactions")
	defer unlock()
	if err != nil {
		return nil, err
	}
	rows := q.s.data.memberTxs[repository.FromPgUUID(arg.MemberID)]
	desc := make([]repository.MemberTransaction, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		desc = append(desc, rows[i])
	}
	start, end := page(len(desc), arg.Limit, arg.Offset)
	return desc[start:end], nil
}

func (q *querier) ListOrganisationTransactions(_ context.Context, arg repository.ListOrganisationTransactionsParams) ([]repository.OrganisationTransaction, error) {
	unlock, err := q.enter("ListOrganisationTransactions")
	defer unlock()
	if err != nil {
		return nil, err
	}
	rows := q.s.data.orgTxs[repository.FromPgUUID(arg.OrganisationID)]
	desc := make([]repository.OrganisationTransaction, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		desc = append(desc, rows[i])
	}
	start, end := page(len(desc), arg.Limit, arg.Offset)
	return desc[start:end], nil
}

func (q *querier) CountMemberLedgerBreaks(_ context.Context) (int64, error) {
	unlock, err := q.enter("CountMemberLedgerBreaks")
	defer unlock()
	if err != nil {
		return 0, err
	}
	var breaks int64
	for _, rows := range q.s.data.memberTxs {
		var prevBalance, prevSeq int64
		for _, row := range rows {
			if row.Balance != prevBalance+row.Amount || row.Sequence != prevSeq+1 {
				breaks++
			}
			prevBalance, prevSeq = row.Balance, row.Sequence
		}
	}
	return breaks, nil
}

func (q *querier) CountOrganisationLedgerBreaks(_ context.Context) (int64, error) {
	unlock, err := q.enter("CountOrganisationLedgerBreaks")
	defer unlock()
	if err != nil {
		return 0, err
	}
	var breaks int64
	for _, rows := range q.s.data.orgTxs {
		var prevBalance, prevSeq int64
		for _, row := range rows {
			if row.Balance != prevBalance+row.Amount || row.Sequence != prevSeq+1 {
				breaks++
			}
			prevBalance, prevSeq = row.Balance, row.Sequence
		}
	}
	return breaks, nil
}

func (q *querier) InsertPendingCharge(_ context.Context, arg repository.InsertPendingChargeParams) (repository.PendingGatewayCharge, error) {
	unlock, err := q.enter("InsertPendingCharge")
	defer unlock()
	if err != nil {
		return repository.PendingGatewayCharge{}, err
	}
	key := repository.FromPgUUID(arg.ID)
	if _, ok := q.s.data.charges[key]; ok {
		return repository.PendingGatewayCharge{}, uniqueViolation("pending_gateway_charges_pkey")
	}
	if _, ok := q.s.data.members[repository.FromPgUUID(arg.MemberID)]; !ok {
		return repository.PendingGatewayCharge{}, fmt.Errorf("pending_gateway_charges_member_id_fkey: member missing")
	}
	if arg.LinkedMemberID.Valid && arg.LinkedOrganisationID.Valid {
		return repository.PendingGatewayCharge{}, fmt.Errorf("pending_gateway_charges_check: two linked counterparts")
	}
	ts := now()
	c := repository.PendingGatewayCharge{
		ID:                   arg.ID,
		MemberID:             arg.MemberID,
		Amount:               arg.Amount,
		Currency:             arg.Currency,
		RouteCode:            arg.RouteCode,
		RoutePayload:         arg.RoutePayload,
		LinkedAmount:         arg.LinkedAmount,
		LinkedMemberID:       arg.LinkedMemberID,
		LinkedOrganisationID: arg.LinkedOrganisationID,
		LinkedPaymentType:    arg.LinkedPaymentType,
		LinkedDescription:    arg.LinkedDescription,
		GatewayIntentID:      arg.GatewayIntentID,
		Status:               arg.Status,
		CreatedAt:            ts,
		UpdatedAt:            ts,
	}
	q.s.data.charges[key] = c
	return c, nil
}

func (q *querier) getCharge(name string, id pgtype.UUID) (repository.PendingGatewayCharge, error) {
	unlock, err := q.enter(name)
	defer unlock()
	if err != nil {
		return repository.PendingGatewayCharge{}, err
	}
	c, ok := q.s.data.charges[repository.FromPgUUID(id)]
	if !ok {
		return repository.PendingGatewayCharge{}, pgx.ErrNoRows
	}
	return c, nil
}

func (q *querier) GetPendingCharge(_ context.Context, id pgtype.UUID) (repository.PendingGatewayCharge, error) {
	return q.getCharge("GetPendingCharge", id)
}

func (q *querier) GetPendingChargeForUpdate(_ context.Context, id pgtype.UUID) (repository.PendingGatewayCharge, error) {
	return q.getCharge("GetPendingChargeForUpdate", id)
}

func (q *querier) GetPendingChargeByGatewayChargeID(_ context.Context, gatewayChargeID *string) (repository.PendingGatewayCharge, error) {
	unlock, err := q.enter("GetPendingChargeByGatewayChargeID")
	defer unlock()
	if err != nil {
		return repository.PendingGatewayCharge{}, err
	}
	if gatewayChargeID == nil {
		return repository.PendingGatewayCharge{}, pgx.ErrNoRows
	}
	for _, c := range q.s.data.charges {
		if c.GatewayChargeID != nil && *c.GatewayChargeID == *gatewayChargeID {
			return c, nil
		}
	}
	return repository.PendingGatewayCharge{}, pgx.ErrNoRows
}

func (q *querier) UpdatePendingChargeStatus(_ context.Context, arg repository.UpdatePendingChargeStatusParams) (int64, error) {
	unlock, err := q.enter("UpdatePendingChargeStatus")
	defer unlock()
	if err != nil {
		return 0, err
	}
	key := repository.FromPgUUID(arg.ID)
	c, ok := q.s.data.charges[key]
	if !ok {
		return 0, nil
	}
	c.Status = arg.Status
	c.UpdatedAt = now()
	q.s.data.charges[key] = c
	return 1, nil
}

func (q *querier) CompletePendingCharge(_ context.Context, arg repository.CompletePendingChargeParams) (int64, error) {
	unlock, err := q.enter("CompletePendingCharge")
	defer unlock()
	if err != nil {
		return 0, err
	}
	key := repository.FromPgUUID(arg.ID)
	c, ok := q.s.data.charges[key]
	if !ok || (c.Status != "CREATED" && c.Status != "INTENT_ISSUED") {
		return 0, nil
	}
	if arg.GatewayChargeID != nil {
		for id, other := range q.s.data.charges {
			if id != key && other.GatewayChargeID != nil && *other.GatewayChargeID == *arg.GatewayChargeID {
				return 0, uniqueViolation("pending_gateway_charges_gateway_charge_id_key")
			}
		}
	}
	ts := now()
	c.Status = "COMPLETE"
	c.GatewayChargeID = arg.GatewayChargeID
	c.CompletedAt = ts
	c.UpdatedAt = ts
	q.s.data.charges[key] = c
	return 1, nil
}

func (q *querier) CountStalePendingCharges(_ context.Context, createdAt pgtype.Timestamptz) (int64, error) {
	unlock, err := q.enter("CountStalePendingCharges")
	defer unlock()
	if err != nil {
		return 0, err
	}
	var n int64
	for _, c := range q.s.data.charges {
		if (c.Status == "CREATED" || c.Status == "INTENT_ISSUED") && c.CreatedAt.Time.Before(createdAt.Time) {
			n++
		}
	}
	return n, nil
}

func (q *querier) InsertAuditLog(_ context.Context, arg repository.InsertAuditLogParams) (int64, error) {
	unlock, err := q.enter("InsertAuditLog")
	defer unlock()
	if err != nil {
		return 0, err
	}
	q.s.data.nextAuditID++
	q.s.data.audit = append(q.s.data.audit, repository.AuditLog{
		ID:         q.s.data.nextAuditID,
		EntityType: arg.EntityType,
		EntityID:   arg.EntityID,
		ActorID:    arg.ActorID,
		Action:     arg.Action,
		PrevState:  arg.PrevState,
		NextState:  arg.NextState,
		Metadata:   arg.Metadata,
		CreatedAt:  now(),
	})
	return q.s.data.nextAuditID, nil
}

func (q *querier) GetIdempotencyKey(_ context.Context, idempotencyKey string) (repository.IdempotencyKey, error) {
	unlock, err := q.enter("GetIdempotencyKey")
	defer unlock()
	if err != nil {
		return repository.IdempotencyKey{}, err
	}
	k, ok := q.s.data.idempotency[idempotencyKey]
	if !ok {
		return repository.IdempotencyKey{}, pgx.ErrNoRows
	}
	return k, nil
}

func (q *querier) ReserveIdempotencyKey(_ context.Context, arg repository.ReserveIdempotencyKeyParams) (repository.IdempotencyKey, error) {
	unlock, err := q.enter("ReserveIdempotencyKey")
	defer unlock()
	if err != nil {
		return repository.IdempotencyKey{}, err
	}
	if _, ok := q.s.data.idempotency[arg.IdempotencyKey]; ok {
		return repository.IdempotencyKey{}, pgx.ErrNoRows
	}
	ts := now()
	k := repository.IdempotencyKey{
		IdempotencyKey: arg.IdempotencyKey,
		RequestHash:    arg.RequestHash,
		Method:         arg.Method,
		Path:           arg.Path,
		ContentType:    "application/json",
		InProgress:     true,
		CreatedAt:      ts,
		UpdatedAt:      ts,
	}
	q.s.data.idempotency[arg.IdempotencyKey] = k
	return k, nil
}

func (q *querier) ReleaseIdempotencyKey(_ context.Context, arg repository.ReleaseIdempotencyKeyParams) (int64, error) {
	unlock, err := q.enter("ReleaseIdempotencyKey")
	defer unlock()
	if err != nil {
		return 0, err
	}
	k, ok := q.s.data.idempotency[arg.IdempotencyKey]
	if !ok || k.RequestHash != arg.RequestHash || !k.InProgress {
		return 0, nil
	}
	delete(q.s.data.idempotency, arg.IdempotencyKey)
	return 1, nil
}

func (q *querier) ExpireIdempotencyKey(_ context.Context, arg repository.ExpireIdempotencyKeyParams) (int64, error) {
	unlock, err := q.enter("ExpireIdempotencyKey")
	defer unlock()
	if err != nil {
		return 0, err
	}
	k, ok := q.s.data.idempotency[arg.IdempotencyKey]
	if !ok {
		return 0, nil
	}
	cutoff := arg.FinishedBefore
	if k.InProgress {
		cutoff = arg.AbandonedBefore
	}
	if !k.UpdatedAt.Time.Before(cutoff.Time) {
		return 0, nil
	}
	delete(q.s.data.idempotency, arg.IdempotencyKey)
	return 1, nil
}

func (q *querier) FinalizeIdempotencyKey(_ context.Context, arg repository.FinalizeIdempotencyKeyParams) (repository.IdempotencyKey, error) {
	unlock, err := q.enter("FinalizeIdempotencyKey")
	defer unlock()
	if err != nil {
		return repository.IdempotencyKey{}, err
	}
	k, ok := q.s.data.idempotency[arg.IdempotencyKey]
	if !ok || k.RequestHash != arg.RequestHash {
		return repository.IdempotencyKey{}, pgx.ErrNoRows
	}
	k.ResponseStatus = arg.ResponseStatus
	k.ResponseBody = arg.ResponseBody
	k.ContentType = arg.ContentType
	k.InProgress = false
	k.UpdatedAt = now()
	q.s.data.idempotency[arg.IdempotencyKey] = k
	return k, nil
}
