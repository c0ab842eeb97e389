package persistence

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"HeadToHead/internal/core"
	"HeadToHead/internal/escrow"
	"HeadToHead/internal/event"
	"HeadToHead/internal/testutil"
)

func sampleOutput(t *testing.T, seq int64) core.Output {
	t.Helper()

	player := uuid.New()
	batchID := uuid.New()
	key := fmt.Sprintf("game:%d:create", seq)

	var stateHash, prevHash [32]byte
	stateHash[0] = byte(seq)
	prevHash[0] = byte(seq - 1)

	return core.Output{
		Envelope: &event.Envelope{
			Sequence:       seq,
			IdempotencyKey: key,
			EventType:      event.TypeGameCreated,
			Timestamp:      time.UnixMicro(1_700_000_000_000_000 + seq),
			Payload: event.GameCreated{
				GameIndex:      0,
				Host:           player,
				HostPrediction: true,
				Amount:         1_000_000,
				PriceIndex:     0,
			},
			StateHash: stateHash,
			PrevHash:  prevHash,
		},
		Batch: &escrow.Batch{
			BatchID:   batchID,
			EventRef:  key,
			Timestamp: 1_700_000_000_000_000,
			Journals: []escrow.Journal{{
				JournalID:     uuid.New(),
				BatchID:       batchID,
				EventRef:      key,
				DebitAccount:  escrow.NewVaultAccountKey("USDC"),
				CreditAccount: escrow.NewPlayerAccountKey(player, "USDC"),
				Asset:         "USDC",
				Amount:        1_000_000,
				JournalType:   escrow.JournalTypeEscrow,
				Timestamp:     1_700_000_000_000_000,
			}},
		},
	}
}

func TestToRows_EncodesEnvelopeAndJournals(t *testing.T) {
	output := sampleOutput(t, 7)

	row, journals, err := toRows(output)
	if err != nil {
		t.Fatalf("toRows: %v", err)
	}

	if row.Sequence != 7 || row.EventType != "GameCreated" || row.IdempotencyKey != "game:7:create" {
		t.Fatalf("unexpected event row: %+v", row)
	}
	if len(row.Payload) == 0 {
		t.Fatal("expected JSON payload")
	}
	if len(row.StateHash) != 32 || len(row.PrevHash) != 32 {
		t.Fatalf("hash lengths %d/%d, want 32/32", len(row.StateHash), len(row.PrevHash))
	}

	if len(journals) != 1 {
		t.Fatalf("expected 1 journal row, got %d", len(journals))
	}
	j := journals[0]
	if j.Sequence != 7 || j.Amount != 1_000_000 || j.Asset != "USDC" {
		t.Fatalf("unexpected journal row: %+v", j)
	}
	if j.DebitAccount != "system:vault:USDC" {
		t.Fatalf("debit account %q", j.DebitAccount)
	}
	if j.EventRef != "game:7:create" {
		t.Fatalf("event ref %q", j.EventRef)
	}
}

func TestToRows_NilBatchHasNoJournals(t *testing.T) {
	output := sampleOutput(t, 1)
	output.Batch = nil

	_, journals, err := toRows(output)
	if err != nil {
		t.Fatalf("toRows: %v", err)
	}
	if len(journals) != 0 {
		t.Fatalf("expected no journal rows, got %d", len(journals))
	}
}

func TestEventLogWriter_WriteBatchIsIdempotent(t *testing.T) {
	testutil.RequireIntegration(t)

	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	migrator := NewMigrator(db, "../../migrations")
	if err := migrator.Up(ctx); err != nil {
		t.Fatalf("migrate up: %v", err)
	}

	writer := NewEventLogWriter(db)

	var events []EventRow
	var journals []JournalRow
	for seq := int64(1); seq <= 3; seq++ {
		row, jrows, err := toRows(sampleOutput(t, seq))
		if err != nil {
			t.Fatalf("toRows: %v", err)
		}
		events = append(events, row)
		journals = append(journals, jrows...)
	}

	// Write twice: the second pass must hit ON CONFLICT DO NOTHING.
	for i := 0; i < 2; i++ {
		if err := writer.WriteEventBatch(ctx, db, events); err != nil {
			t.Fatalf("write events (pass %d): %v", i, err)
		}
		if err := writer.WriteJournalBatch(ctx, db, journals); err != nil {
			t.Fatalf("write journals (pass %d): %v", i, err)
		}
	}

	var eventCount, journalCount int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM settlement.events`).Scan(&eventCount); err != nil {
		t.Fatalf("count events: %v", err)
	}
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM settlement.journal`).Scan(&journalCount); err != nil {
		t.Fatalf("count journals: %v", err)
	}

	if eventCount != 3 || journalCount != 3 {
		t.Fatalf("got %d events / %d journals, want 3/3", eventCount, journalCount)
	}
}
