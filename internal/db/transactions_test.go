package db

import (
	"context"
	"math/big"
	"os"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/susu3304/expensesplitter/internal/splitter"
)

// connect returns a migrated database, or skips when TEST_DATABASE_URL is unset.
func connect(t *testing.T) *DB {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	database, err := New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(database.Close)
	require.NoError(t, database.RunMigrations(ctx))
	return database
}

func TestRecordAndListTransactions(t *testing.T) {
	database := connect(t)
	ctx := context.Background()

	// a fresh contract address per run keeps runs independent
	runID, hashA, hashB := uuid.New(), uuid.New(), uuid.New()
	contract := common.BytesToAddress(runID[:])
	bob := common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	base := time.Now().UTC().Truncate(time.Second)

	expense := splitter.TxRecord{
		ChainID:     31337,
		Contract:    contract,
		Kind:        splitter.TxRecordExpense,
		Hash:        common.BytesToHash(hashA[:]),
		From:        bob,
		Amount:      big.NewInt(5e16),
		Description: "Lunch",
		Block:       10,
		GasUsed:     51234,
		ConfirmedAt: base,
	}
	added := splitter.TxRecord{
		ChainID:     31337,
		Contract:    contract,
		Kind:        splitter.TxAddParticipant,
		Hash:        common.BytesToHash(hashB[:]),
		From:        bob,
		Participant: &bob,
		Block:       11,
		GasUsed:     40000,
		ConfirmedAt: base.Add(time.Minute),
	}
	require.NoError(t, database.RecordTransaction(ctx, expense))
	require.NoError(t, database.RecordTransaction(ctx, added))
	require.NoError(t, database.RecordTransaction(ctx, added), "duplicate hashes are ignored")

	records, err := database.ListTransactions(ctx, 31337, contract, 0)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, splitter.TxAddParticipant, records[0].Kind)
	require.NotNil(t, records[0].Participant)
	assert.Equal(t, bob, *records[0].Participant)
	assert.Nil(t, records[0].Amount)

	assert.Equal(t, "Lunch", records[1].Description)
	assert.Equal(t, "50000000000000000", records[1].Amount.String())
	assert.Equal(t, expense.Hash, records[1].Hash)
	assert.Equal(t, uint64(51234), records[1].GasUsed)
	assert.NotEmpty(t, records[1].ID)

	other, err := database.ListTransactions(ctx, 1, contract, 10)
	require.NoError(t, err)
	assert.Empty(t, other)
}
