// Package sqlite stores execution receipts in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	_ "github.com/mattn/go-sqlite3"

	"github.com/fd1az/pair-arbitrage/business/arbitrage/domain"
	"github.com/fd1az/pair-arbitrage/internal/apperror"
	"github.com/fd1az/pair-arbitrage/internal/ledger"
)

//go:embed schema.sql
var schema string

const columns = `id, caller, input_asset, decimals, direction, amount_in, intermediate, final,
	profit, trail, rolled_back, error_code, error, started_at, finished_at`

// HistoryStore keeps every receipt, settled or not.
type HistoryStore struct {
	db *sql.DB
}

// Summary aggregates the stored receipts.
type Summary struct {
	Executions  int64
	Settled     int64
	RolledBack  int64
	TotalProfit ledger.Quantity
}

func NewHistoryStore(dbPath string) (*HistoryStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, storageErr("create history dir", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, storageErr("open history db", err)
	}
	// one writer; WAL lets readers run alongside it
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, storageErr("enable WAL", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, storageErr("initialise schema", err)
	}

	return &HistoryStore{db: db}, nil
}

func (s *HistoryStore) Close() error {
	return s.db.Close()
}

// Record inserts r, replacing any receipt with the same id.
func (s *HistoryStore) Record(ctx context.Context, r *domain.Receipt) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO executions ("+columns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		r.ID,
		r.Caller.Hex(),
		r.InputAsset,
		r.Decimals,
		string(r.Direction),
		r.AmountIn.String(),
		r.Intermediate.String(),
		r.Final.String(),
		r.Profit.String(),
		joinTrail(r.Trail),
		r.RolledBack,
		r.ErrorCode,
		r.Error,
		r.StartedAt.UnixNano(),
		r.FinishedAt.UnixNano(),
	)
	if err != nil {
		return storageErr("insert receipt "+r.ID, err)
	}
	return nil
}

// List returns up to limit receipts, newest first. A non-positive limit returns all.
func (s *HistoryStore) List(ctx context.Context, limit int) ([]*domain.Receipt, error) {
	query := "SELECT " + columns + " FROM executions ORDER BY started_at DESC, id"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("list receipts", err)
	}
	defer rows.Close()

	var out []*domain.Receipt
	for rows.Next() {
		r, err := scanReceipt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list receipts", err)
	}
	return out, nil
}

// Get loads one receipt by id.
func (s *HistoryStore) Get(ctx context.Context, id string) (*domain.Receipt, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+columns+" FROM executions WHERE id = ?", id)
	r, err := scanReceipt(row)
	if apperror.HasCode(err, apperror.CodeNotFound) {
		return nil, apperror.New(apperror.CodeNotFound, apperror.WithContext("receipt "+id))
	}
	return r, err
}

// Summary counts executions and sums realized profit.
func (s *HistoryStore) Summary(ctx context.Context) (Summary, error) {
	sum := Summary{TotalProfit: ledger.Zero()}

	rows, err := s.db.QueryContext(ctx, "SELECT profit, rolled_back, error_code FROM executions")
	if err != nil {
		return sum, storageErr("summarise receipts", err)
	}
	defer rows.Close()

	for rows.Next() {
		var profit, code string
		var rolledBack bool
		if err := rows.Scan(&profit, &rolledBack, &code); err != nil {
			return sum, storageErr("summarise receipts", err)
		}
		sum.Executions++
		if rolledBack {
			sum.RolledBack++
		}
		if code != "" {
			continue
		}
		sum.Settled++
		p, err := ledger.Parse(profit)
		if err != nil {
			return sum, err
		}
		if sum.TotalProfit, err = ledger.Add(sum.TotalProfit, p); err != nil {
			return sum, err
		}
	}
	return sum, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReceipt(row scanner) (*domain.Receipt, error) {
	var r domain.Receipt
	var caller, direction, trail string
	var amountIn, intermediate, final, profit string
	var startedAt, finishedAt int64
	err := row.Scan(
		&r.ID, &caller, &r.InputAsset, &r.Decimals, &direction,
		&amountIn, &intermediate, &final, &profit, &trail,
		&r.RolledBack, &r.ErrorCode, &r.Error, &startedAt, &finishedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperror.New(apperror.CodeNotFound)
	}
	if err != nil {
		return nil, storageErr("scan receipt", err)
	}

	d, ok := domain.ParseDirection(direction)
	if !ok {
		return nil, apperror.New(apperror.CodeStorageError,
			apperror.WithContextf("receipt %s has direction %q", r.ID, direction))
	}
	r.Direction = d
	r.Caller = common.HexToAddress(caller)
	r.Trail = splitTrail(trail)
	r.StartedAt = time.Unix(0, startedAt).UTC()
	r.FinishedAt = time.Unix(0, finishedAt).UTC()

	for _, f := range []struct {
		dst *ledger.Quantity
		src string
	}{
		{&r.AmountIn, amountIn},
		{&r.Intermediate, intermediate},
		{&r.Final, final},
		{&r.Profit, profit},
	} {
		q, err := ledger.Parse(f.src)
		if err != nil {
			return nil, fmt.Errorf("receipt %s: %w", r.ID, err)
		}
		*f.dst = q
	}
	return &r, nil
}

func joinTrail(trail []domain.State) string {
	parts := make([]string, len(trail))
	for i, s := range trail {
		parts[i] = string(s)
	}
	return strings.Join(parts, ",")
}

func splitTrail(s string) []domain.State {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]domain.State, len(parts))
	for i, p := range parts {
		out[i] = domain.State(p)
	}
	return out
}

func storageErr(op string, err error) error {
	return apperror.New(apperror.CodeStorageError, apperror.WithContext(op), apperror.WithCause(err))
}
