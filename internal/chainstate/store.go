// Package chainstate checkpoints token balances, allowances and pool reserves
// to SQLite so state outlives a single process.
package chainstate

import (
	"context"
	"database/sql"
	_ "embed"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	_ "github.com/mattn/go-sqlite3"

	"github.com/fd1az/pair-arbitrage/internal/apperror"
	"github.com/fd1az/pair-arbitrage/internal/ledger"
)

//go:embed schema.sql
var schema string

type Supply struct {
	Token  common.Address
	Amount ledger.Quantity
}

type Balance struct {
	Token  common.Address
	Owner  common.Address
	Amount ledger.Quantity
}

type Allowance struct {
	Token   common.Address
	Owner   common.Address
	Spender common.Address
	Amount  ledger.Quantity
}

type Reserves struct {
	PoolID string
	A      ledger.Quantity
	B      ledger.Quantity
}

// Snapshot is everything needed to resume the ledger and both pools.
type Snapshot struct {
	Supply     []Supply
	Balances   []Balance
	Allowances []Allowance
	Reserves   []Reserves
	SavedAt    time.Time
}

// Store reads and writes snapshots. Each Save replaces the previous one.
type Store struct {
	db *sql.DB
}

func Open(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, storageErr("create state dir", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, storageErr("open state db", err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, storageErr(pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, storageErr("initialise state schema", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Load returns the last saved snapshot. found is false when nothing was ever saved.
func (s *Store) Load(ctx context.Context) (snap Snapshot, found bool, err error) {
	var savedAt int64
	err = s.db.QueryRowContext(ctx, "SELECT saved_at FROM state_meta WHERE id = 1").Scan(&savedAt)
	if err == sql.ErrNoRows {
		return Snapshot{}, false, nil
	}
	if err != nil {
		return Snapshot{}, false, storageErr("load state meta", err)
	}
	snap.SavedAt = time.Unix(0, savedAt).UTC()

	err = s.each(ctx, "SELECT token, amount FROM token_supply ORDER BY token", func(cols []string) error {
		amount, err := ledger.Parse(cols[1])
		if err != nil {
			return err
		}
		snap.Supply = append(snap.Supply, Supply{Token: common.HexToAddress(cols[0]), Amount: amount})
		return nil
	}, 2)
	if err != nil {
		return Snapshot{}, false, err
	}

	err = s.each(ctx, "SELECT token, owner, amount FROM token_balances ORDER BY token, owner", func(cols []string) error {
		amount, err := ledger.Parse(cols[2])
		if err != nil {
			return err
		}
		snap.Balances = append(snap.Balances, Balance{
			Token:  common.HexToAddress(cols[0]),
			Owner:  common.HexToAddress(cols[1]),
			Amount: amount,
		})
		return nil
	}, 3)
	if err != nil {
		return Snapshot{}, false, err
	}

	err = s.each(ctx, "SELECT token, owner, spender, amount FROM token_allowances ORDER BY token, owner, spender", func(cols []string) error {
		amount, err := ledger.Parse(cols[3])
		if err != nil {
			return err
		}
		snap.Allowances = append(snap.Allowances, Allowance{
			Token:   common.HexToAddress(cols[0]),
			Owner:   common.HexToAddress(cols[1]),
			Spender: common.HexToAddress(cols[2]),
			Amount:  amount,
		})
		return nil
	}, 4)
	if err != nil {
		return Snapshot{}, false, err
	}

	err = s.each(ctx, "SELECT pool_id, reserve_a, reserve_b FROM pool_reserves ORDER BY pool_id", func(cols []string) error {
		a, err := ledger.Parse(cols[1])
		if err != nil {
			return err
		}
		b, err := ledger.Parse(cols[2])
		if err != nil {
			return err
		}
		snap.Reserves = append(snap.Reserves, Reserves{PoolID: cols[0], A: a, B: b})
		return nil
	}, 3)
	if err != nil {
		return Snapshot{}, false, err
	}

	return snap, true, nil
}

// Save replaces the stored snapshot in a single transaction.
func (s *Store) Save(ctx context.Context, snap Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("begin state save", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"token_supply", "token_balances", "token_allowances", "pool_reserves"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return storageErr("clear "+table, err)
		}
	}

	for _, sup := range snap.Supply {
		if _, err := tx.ExecContext(ctx, "INSERT INTO token_supply (token, amount) VALUES (?, ?)",
			sup.Token.Hex(), sup.Amount.String()); err != nil {
			return storageErr("save supply", err)
		}
	}
	for _, b := range snap.Balances {
		if b.Amount.IsZero() {
			continue
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO token_balances (token, owner, amount) VALUES (?, ?, ?)",
			b.Token.Hex(), b.Owner.Hex(), b.Amount.String()); err != nil {
			return storageErr("save balance", err)
		}
	}
	for _, a := range snap.Allowances {
		if a.Amount.IsZero() {
			continue
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO token_allowances (token, owner, spender, amount) VALUES (?, ?, ?, ?)",
			a.Token.Hex(), a.Owner.Hex(), a.Spender.Hex(), a.Amount.String()); err != nil {
			return storageErr("save allowance", err)
		}
	}
	for _, r := range snap.Reserves {
		if _, err := tx.ExecContext(ctx, "INSERT INTO pool_reserves (pool_id, reserve_a, reserve_b) VALUES (?, ?, ?)",
			r.PoolID, r.A.String(), r.B.String()); err != nil {
			return storageErr("save reserves "+r.PoolID, err)
		}
	}

	savedAt := snap.SavedAt
	if savedAt.IsZero() {
		savedAt = time.Now()
	}
	if _, err := tx.ExecContext(ctx, "INSERT OR REPLACE INTO state_meta (id, saved_at) VALUES (1, ?)",
		savedAt.UnixNano()); err != nil {
		return storageErr("save state meta", err)
	}

	if err := tx.Commit(); err != nil {
		return storageErr("commit state save", err)
	}
	return nil
}

// ReservesByPool indexes the snapshot's reserves.
func (snap Snapshot) ReservesByPool() map[string]Reserves {
	out := make(map[string]Reserves, len(snap.Reserves))
	for _, r := range snap.Reserves {
		out[r.PoolID] = r
	}
	return out
}

// Sort orders every section so equal states produce equal snapshots.
func (snap *Snapshot) Sort() {
	sort.Slice(snap.Supply, func(i, j int) bool {
		return snap.Supply[i].Token.Hex() < snap.Supply[j].Token.Hex()
	})
	sort.Slice(snap.Balances, func(i, j int) bool {
		bi, bj := snap.Balances[i], snap.Balances[j]
		if bi.Token != bj.Token {
			return bi.Token.Hex() < bj.Token.Hex()
		}
		return bi.Owner.Hex() < bj.Owner.Hex()
	})
	sort.Slice(snap.Allowances, func(i, j int) bool {
		ai, aj := snap.Allowances[i], snap.Allowances[j]
		if ai.Token != aj.Token {
			return ai.Token.Hex() < aj.Token.Hex()
		}
		if ai.Owner != aj.Owner {
			return ai.Owner.Hex() < aj.Owner.Hex()
		}
		return ai.Spender.Hex() < aj.Spender.Hex()
	})
	sort.Slice(snap.Reserves, func(i, j int) bool {
		return snap.Reserves[i].PoolID < snap.Reserves[j].PoolID
	})
}

func (s *Store) each(ctx context.Context, query string, fn func(cols []string) error, n int) error {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return storageErr("load state", err)
	}
	defer rows.Close()

	cols := make([]string, n)
	dest := make([]any, n)
	for i := range cols {
		dest[i] = &cols[i]
	}
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return storageErr("scan state", err)
		}
		if err := fn(cols); err != nil {
			return apperror.New(apperror.CodeStorageError, apperror.WithContext("decode state"), apperror.WithCause(err))
		}
	}
	if err := rows.Err(); err != nil {
		return storageErr("load state", err)
	}
	return nil
}

func storageErr(op string, err error) error {
	return apperror.New(apperror.CodeStorageError, apperror.WithContext(op), apperror.WithCause(err))
}
