package repository

import (
	"time"

	"github.com/ayo6706/clubledger/internal/domain"
	"github.com/ayo6706/clubledger/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

func ToPgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

// OptionalPgUUID maps nil to SQL NULL.
func OptionalPgUUID(id *uuid.UUID) pgtype.UUID {
	if id == nil {
		return pgtype.UUID{}
	}
	return ToPgUUID(*id)
}

func FromPgUUID(id pgtype.UUID) uuid.UUID {
	if !id.Valid {
		return uuid.Nil
	}
	return uuid.UUID(id.Bytes)
}

func optionalUUID(id pgtype.UUID) *uuid.UUID {
	if !id.Valid {
		return nil
	}
	v := uuid.UUID(id.Bytes)
	return &v
}

func ToPgTimestamptz(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func optionalTime(t pgtype.Timestamptz) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func (m Member) Model() models.Member {
	return models.Member{
		ID:                 FromPgUUID(m.ID),
		Name:               m.Name,
		Email:              m.Email,
		AutoTopUpState:     domain.AutoTopUpState(m.AutoTopupState),
		AutoTopUpAmount:    m.AutoTopupAmount,
		GatewayCustomerRef: m.GatewayCustomerRef,
		CreatedAt:          m.CreatedAt.Time,
	}
}

func (o Organisation) Model() models.Organisation {
	return models.Organisation{
		ID:        FromPgUUID(o.ID),
		Name:      o.Name,
		CreatedAt: o.CreatedAt.Time,
	}
}

func (t MemberTransaction) Model() models.MemberTransaction {
	return models.MemberTransaction{
		ID:                        t.ID,
		MemberID:                  FromPgUUID(t.MemberID),
		Sequence:                  t.Sequence,
		Amount:                    t.Amount,
		Balance:                   t.Balance,
		Description:               t.Description,
		PaymentType:               domain.PaymentType(t.PaymentType),
		PendingChargeID:           optionalUUID(t.PendingChargeID),
		CounterpartMemberID:       optionalUUID(t.CounterpartMemberID),
		CounterpartOrganisationID: optionalUUID(t.CounterpartOrganisationID),
		ReversesID:                t.ReversesID,
		TransferID:                optionalUUID(t.TransferID),
		CreatedAt:                 t.CreatedAt.Time,
	}
}

func (t OrganisationTransaction) Model() models.OrganisationTransaction {
	return models.OrganisationTransaction{
		ID:                        t.ID,
		OrganisationID:            FromPgUUID(t.OrganisationID),
		Sequence:                  t.Sequence,
		Amount:                    t.Amount,
		Balance:                   t.Balance,
		Description:               t.Description,
		PaymentType:               domain.PaymentType(t.PaymentType),
		PendingChargeID:           optionalUUID(t.PendingChargeID),
		CounterpartMemberID:       optionalUUID(t.CounterpartMemberID),
		CounterpartOrganisationID: optionalUUID(t.CounterpartOrganisationID),
		TransferID:                optionalUUID(t.TransferID),
		CreatedAt:                 t.CreatedAt.Time,
	}
}

func (c PendingGatewayCharge) Model() models.PendingCharge {
	out := models.PendingCharge{
		ID:                   FromPgUUID(c.ID),
		MemberID:             FromPgUUID(c.MemberID),
		Amount:               c.Amount,
		Currency:             c.Currency,
		Route:                domain.Route{Code: domain.RouteCode(c.RouteCode), Payload: c.RoutePayload},
		LinkedAmount:         c.LinkedAmount,
		LinkedMemberID:       optionalUUID(c.LinkedMemberID),
		LinkedOrganisationID: optionalUUID(c.LinkedOrganisationID),
		LinkedDescription:    c.LinkedDescription,
		GatewayIntentID:      c.GatewayIntentID,
		GatewayChargeID:      c.GatewayChargeID,
		Status:               c.Status,
		CreatedAt:            c.CreatedAt.Time,
		UpdatedAt:            c.UpdatedAt.Time,
		CompletedAt:          optionalTime(c.CompletedAt),
	}
	if c.LinkedPaymentType != nil {
		pt := domain.PaymentType(*c.LinkedPaymentType)
		out.LinkedPaymentType = &pt
	}
	return out
}
