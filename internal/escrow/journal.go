package escrow

import (
	"fmt"

	"github.com/google/uuid"
)

// JournalType is the purpose of a journal entry.
type JournalType int32

const (
	JournalTypeDeposit JournalType = iota
	JournalTypeEscrow
	JournalTypePayout
	JournalTypeRefund
)

func (jt JournalType) String() string {
	switch jt {
	case JournalTypeDeposit:
		return "Deposit"
	case JournalTypeEscrow:
		return "Escrow"
	case JournalTypePayout:
		return "Payout"
	case JournalTypeRefund:
		return "Refund"
	default:
		return "Unknown"
	}
}

// Journal is a single double-entry journal entry: a positive amount moves
// from the credit account to the debit account. Balance is guaranteed by
// construction.
type Journal struct {
	JournalID     uuid.UUID
	BatchID       uuid.UUID
	EventRef      string // idempotency key of the settlement event that caused the move
	DebitAccount  AccountKey
	CreditAccount AccountKey
	Asset         string
	Amount        int64 // always positive
	JournalType   JournalType
	Timestamp     int64 // epoch microseconds
}

// Batch groups the journal entries produced by one settlement transition.
type Batch struct {
	BatchID   uuid.UUID
	EventRef  string
	Timestamp int64
	Journals  []Journal
}

// Validate ensures the batch is well-formed: non-empty, positive amounts,
// consistent batch id, no self-transfers.
func (b *Batch) Validate() error {
	if len(b.Journals) == 0 {
		return fmt.Errorf("batch %s is empty", b.BatchID)
	}

	for _, j := range b.Journals {
		if j.Amount <= 0 {
			return fmt.Errorf("journal %s has non-positive amount: %d", j.JournalID, j.Amount)
		}
		if j.BatchID != b.BatchID {
			return fmt.Errorf("journal %s has mismatched batch_id", j.JournalID)
		}
		if j.DebitAccount == j.CreditAccount {
			return fmt.Errorf("journal %s has same debit and credit account", j.JournalID)
		}
	}

	return nil
}
