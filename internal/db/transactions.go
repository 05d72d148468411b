package db

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/susu3304/expensesplitter/internal/splitter"
)

// DefaultHistoryLimit caps ListTransactions when no limit is given.
const DefaultHistoryLimit = 50

// RecordTransaction stores a confirmed transaction. Recording the same hash
// twice is a no-op.
func (db *DB) RecordTransaction(ctx context.Context, rec splitter.TxRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	var amount *string
	if rec.Amount != nil {
		s := rec.Amount.String()
		amount = &s
	}
	var participant *string
	if rec.Participant != nil {
		s := rec.Participant.Hex()
		participant = &s
	}
	_, err := db.pool.Exec(ctx,
		`INSERT INTO splitter_transactions
			(id, chain_id, contract, kind, tx_hash, from_address, amount, description, participant, block_number, gas_used, confirmed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8, $9, $10, $11, $12)
		 ON CONFLICT (chain_id, tx_hash) DO NOTHING`,
		rec.ID, int64(rec.ChainID), rec.Contract.Hex(), string(rec.Kind), rec.Hash.Hex(), rec.From.Hex(),
		amount, rec.Description, participant, int64(rec.Block), int64(rec.GasUsed), rec.ConfirmedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record transaction %s: %w", rec.Hash.Hex(), err)
	}
	return nil
}

// ListTransactions returns the most recent transactions for contract on
// chainID, newest first.
func (db *DB) ListTransactions(ctx context.Context, chainID uint64, contract common.Address, limit int) ([]splitter.TxRecord, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	rows, err := db.pool.Query(ctx,
		`SELECT id::text, chain_id, contract, kind, tx_hash, from_address, amount::text, description,
		        participant, block_number, gas_used, confirmed_at
		   FROM splitter_transactions
		  WHERE chain_id = $1 AND contract = $2
		  ORDER BY confirmed_at DESC
		  LIMIT $3`,
		int64(chainID), contract.Hex(), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	records, err := pgx.CollectRows(rows, scanTransaction)
	if err != nil {
		return nil, fmt.Errorf("failed to scan transactions: %w", err)
	}
	return records, nil
}

func scanTransaction(row pgx.CollectableRow) (splitter.TxRecord, error) {
	var (
		rec                        splitter.TxRecord
		chainID, block, gasUsed    int64
		contract, kind, hash, from string
		amount, participant        *string
	)
	err := row.Scan(&rec.ID, &chainID, &contract, &kind, &hash, &from, &amount, &rec.Description,
		&participant, &block, &gasUsed, &rec.ConfirmedAt)
	if err != nil {
		return rec, err
	}
	rec.ChainID = uint64(chainID)
	rec.Contract = common.HexToAddress(contract)
	rec.Kind = splitter.TxKind(kind)
	rec.Hash = common.HexToHash(hash)
	rec.From = common.HexToAddress(from)
	rec.Block = uint64(block)
	rec.GasUsed = uint64(gasUsed)
	if amount != nil {
		v, ok := new(big.Int).SetString(*amount, 10)
		if !ok {
			return rec, fmt.Errorf("bad amount %q for %s", *amount, hash)
		}
		rec.Amount = v
	}
	if participant != nil {
		p := common.HexToAddress(*participant)
		rec.Participant = &p
	}
	return rec, nil
}
