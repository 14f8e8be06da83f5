package store

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"crowdgate/internal/sale/models"
	"crowdgate/pkg/platform/sentinel"
)

// PostgresStore persists the ledger as a single row plus an append-only
// purchase log. Amounts are stored as NUMERIC and travel as decimal strings.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Schema creates the tables the store needs. Deployments run this once at
// startup; it is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS sale_ledger (
	id               smallint PRIMARY KEY DEFAULT 1 CHECK (id = 1),
	price            numeric(78, 0) NOT NULL,
	team_wallet      bytea          NOT NULL,
	remaining_tokens numeric(78, 0) NOT NULL,
	wei_raised       numeric(78, 0) NOT NULL,
	finalized        boolean        NOT NULL DEFAULT false
);

CREATE TABLE IF NOT EXISTS sale_purchases (
	id        uuid PRIMARY KEY,
	sender    bytea          NOT NULL,
	buyer     bytea          NOT NULL,
	value     numeric(78, 0) NOT NULL,
	tokens    numeric(78, 0) NOT NULL,
	refund    numeric(78, 0) NOT NULL,
	bought_at timestamptz    NOT NULL
);

CREATE TABLE IF NOT EXISTS audit_outbox (
	id         uuid PRIMARY KEY,
	category   text        NOT NULL,
	action     text        NOT NULL,
	payload    jsonb       NOT NULL,
	created_at timestamptz NOT NULL
);
`

// EnsureSchema applies Schema.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure sale schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Init(ctx context.Context, ledger *models.Ledger) error {
	const q = `
		INSERT INTO sale_ledger (id, price, team_wallet, remaining_tokens, wei_raised, finalized)
		VALUES (1, $1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING`
	tag, err := s.pool.Exec(ctx, q,
		ledger.Price.String(),
		ledger.TeamWallet.Bytes(),
		ledger.RemainingTokens.String(),
		ledger.WeiRaised.String(),
		ledger.Finalized,
	)
	if err != nil {
		return fmt.Errorf("init sale ledger: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context) (*models.Ledger, error) {
	const q = `
		SELECT price::text, team_wallet, remaining_tokens::text, wei_raised::text, finalized
		FROM sale_ledger WHERE id = 1`

	var (
		price, remaining, raised string
		teamWallet               []byte
		finalized                bool
	)
	err := s.pool.QueryRow(ctx, q).Scan(&price, &teamWallet, &remaining, &raised, &finalized)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load sale ledger: %w", err)
	}

	ledger := &models.Ledger{
		TeamWallet: common.BytesToAddress(teamWallet),
		Finalized:  finalized,
	}
	if ledger.Price, err = parseNumeric(price); err != nil {
		return nil, err
	}
	if ledger.RemainingTokens, err = parseNumeric(remaining); err != nil {
		return nil, err
	}
	if ledger.WeiRaised, err = parseNumeric(raised); err != nil {
		return nil, err
	}
	return ledger, nil
}

func (s *PostgresStore) Save(ctx context.Context, ledger *models.Ledger) error {
	const q = `
		UPDATE sale_ledger
		SET price = $1, team_wallet = $2, remaining_tokens = $3, wei_raised = $4, finalized = $5
		WHERE id = 1`
	tag, err := s.pool.Exec(ctx, q,
		ledger.Price.String(),
		ledger.TeamWallet.Bytes(),
		ledger.RemainingTokens.String(),
		ledger.WeiRaised.String(),
		ledger.Finalized,
	)
	if err != nil {
		return fmt.Errorf("save sale ledger: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) AppendPurchase(ctx context.Context, receipt models.PurchaseReceipt) error {
	const q = `
		INSERT INTO sale_purchases (id, sender, buyer, value, tokens, refund, bought_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := s.pool.Exec(ctx, q,
		receipt.ID,
		receipt.Sender.Bytes(),
		receipt.Buyer.Bytes(),
		receipt.Value.String(),
		receipt.Tokens.String(),
		receipt.Refund.String(),
		receipt.BoughtAt,
	)
	if err != nil {
		return fmt.Errorf("append purchase: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListPurchases(ctx context.Context) ([]models.PurchaseReceipt, error) {
	const q = `
		SELECT id, sender, buyer, value::text, tokens::text, refund::text, bought_at
		FROM sale_purchases ORDER BY bought_at, id`

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	defer rows.Close()

	var out []models.PurchaseReceipt
	for rows.Next() {
		var (
			r                     models.PurchaseReceipt
			sender, buyer         []byte
			value, tokens, refund string
		)
		if err := rows.Scan(&r.ID, &sender, &buyer, &value, &tokens, &refund, &r.BoughtAt); err != nil {
			return nil, fmt.Errorf("scan purchase: %w", err)
		}
		r.Sender = common.BytesToAddress(sender)
		r.Buyer = common.BytesToAddress(buyer)
		if r.Value, err = parseNumeric(value); err != nil {
			return nil, err
		}
		if r.Tokens, err = parseNumeric(tokens); err != nil {
			return nil, err
		}
		if r.Refund, err = parseNumeric(refund); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate purchases: %w", err)
	}
	return out, nil
}

func parseNumeric(s string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("malformed numeric from store: %q", s)
	}
	return n, nil
}
