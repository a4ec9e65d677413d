package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func linkedEscrow(creator, recipient uuid.UUID) *Escrow {
	return &Escrow{
		ID:                 uuid.New(),
		CreatorAccountID:   creator,
		RecipientEmail:     "r@x.com",
		RecipientAccountID: &recipient,
		Status:             EscrowStatusPending,
	}
}

func TestEscrow_PartyOf(t *testing.T) {
	creator, recipient, stranger := uuid.New(), uuid.New(), uuid.New()
	e := linkedEscrow(creator, recipient)

	assert.Equal(t, PartyCreator, e.PartyOf(creator))
	assert.Equal(t, PartyRecipient, e.PartyOf(recipient))
	assert.Equal(t, PartyNone, e.PartyOf(stranger))
	assert.Equal(t, PartyNone, e.PartyOf(uuid.Nil))

	e.RecipientAccountID = nil
	assert.Equal(t, PartyNone, e.PartyOf(recipient))
}

func TestEscrow_DisplayStatus(t *testing.T) {
	recipient := uuid.New()
	tests := []struct {
		name      string
		status    EscrowStatus
		recipient *uuid.UUID
		want      EscrowStatus
	}{
		{"pending unlinked", EscrowStatusPending, nil, EscrowStatusPending},
		{"pending linked", EscrowStatusPending, &recipient, EscrowStatusActive},
		{"completed", EscrowStatusCompleted, &recipient, EscrowStatusCompleted},
		{"disputed unlinked", EscrowStatusDisputed, nil, EscrowStatusDisputed},
		{"disputed linked", EscrowStatusDisputed, &recipient, EscrowStatusDisputed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &Escrow{Status: tt.status, RecipientAccountID: tt.recipient}
			assert.Equal(t, tt.want, e.DisplayStatus())
		})
	}
}

func TestEscrow_IsTerminal(t *testing.T) {
	tests := []struct {
		status EscrowStatus
		want   bool
	}{
		{EscrowStatusPending, false},
		{EscrowStatusCompleted, true},
		{EscrowStatusDisputed, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			e := &Escrow{Status: tt.status}
			assert.Equal(t, tt.want, e.IsTerminal())
		})
	}
}

func TestEscrow_WalletAndConfirmationAccessors(t *testing.T) {
	e := linkedEscrow(uuid.New(), uuid.New())

	assert.Nil(t, e.WalletOf(PartyCreator))
	e.SetWalletOf(PartyCreator, "0xabc")
	e.SetWalletOf(PartyNone, "0xdef")
	assert.Equal(t, "0xabc", *e.WalletOf(PartyCreator))
	assert.Nil(t, e.WalletOf(PartyRecipient))

	e.MarkConfirmed(PartyRecipient)
	assert.True(t, e.ConfirmedBy(PartyRecipient))
	assert.False(t, e.ConfirmedBy(PartyCreator))
	assert.False(t, e.BothConfirmed())

	e.MarkConfirmed(PartyCreator)
	assert.True(t, e.BothConfirmed())
}

func TestEscrow_CanBeViewedBy(t *testing.T) {
	creator, other := uuid.New(), uuid.New()
	e := &Escrow{CreatorAccountID: creator, RecipientEmail: "R@X.com", Status: EscrowStatusPending}

	assert.True(t, e.CanBeViewedBy(creator, "c@x.com"))
	assert.True(t, e.CanBeViewedBy(other, " r@x.COM "))
	assert.False(t, e.CanBeViewedBy(other, "someone@x.com"))

	e.RecipientAccountID = &creator
	assert.False(t, e.CanBeViewedBy(other, "r@x.com"), "linked escrows are visible to bound parties only")
}

func TestEscrow_CounterpartyOf(t *testing.T) {
	creator, recipient := uuid.New(), uuid.New()
	e := linkedEscrow(creator, recipient)

	assert.Equal(t, recipient, *e.CounterpartyOf(PartyCreator))
	assert.Equal(t, creator, *e.CounterpartyOf(PartyRecipient))
	assert.Nil(t, e.CounterpartyOf(PartyNone))
}

func TestEmailsMatch(t *testing.T) {
	assert.True(t, EmailsMatch("R@X.com", "r@x.com"))
	assert.True(t, EmailsMatch(" r@x.com", "r@x.com "))
	assert.False(t, EmailsMatch("r@x.com", "s@x.com"))
	assert.False(t, EmailsMatch("", ""))
}

func TestDefaultDisplayName(t *testing.T) {
	assert.Equal(t, "alice", DefaultDisplayName("Alice@Example.com"))
}

func TestIsValidAddress(t *testing.T) {
	tests := []struct {
		addr string
		want bool
	}{
		{"0x52908400098527886E0F7030069857D2E4169EE7", true},
		{"0x52908400098527886e0f7030069857d2e4169ee7", true},
		{"52908400098527886E0F7030069857D2E4169EE7", false},
		{"0x1234", false},
		{"0xZZ908400098527886E0F7030069857D2E4169EE7", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidAddress(tt.addr))
		})
	}
}

func TestNormalizeAddress(t *testing.T) {
	got := NormalizeAddress("0x52908400098527886e0f7030069857d2e4169ee7")
	assert.Equal(t, "0x52908400098527886E0F7030069857D2E4169EE7", got)
}

func TestNewEscrowEvent(t *testing.T) {
	actor := uuid.New()
	e := linkedEscrow(uuid.New(), uuid.New())
	e.Version = 3

	ev := NewEscrowEvent(EventConfirmed, e, &actor)
	assert.Equal(t, EventConfirmed, ev.Type)
	assert.Equal(t, e.ID, ev.EscrowID)
	assert.Equal(t, EscrowStatusActive, ev.Status)
	assert.Equal(t, int64(3), ev.Version)
	assert.Equal(t, actor, *ev.ActorID)
	assert.False(t, ev.OccurredAt.IsZero())
}

func TestBuildIdempotencyKey(t *testing.T) {
	id := uuid.MustParse("550e8400-e29b-41d4-a716-446655440000")
	key := BuildIdempotencyKey(id, "ORD-001")
	assert.Equal(t, "escrow:550e8400-e29b-41d4-a716-446655440000:ORD-001", key)
}
