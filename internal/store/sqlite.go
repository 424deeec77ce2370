package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"schicchi/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface checks.
var _ SignalStore = (*SQLiteStore)(nil)
var _ OrderStore = (*SQLiteStore)(nil)
var _ FillStore = (*SQLiteStore)(nil)
var _ StrategyStore = (*SQLiteStore)(nil)

// SQLiteStore implements SignalStore, OrderStore, and FillStore backed by a
// SQLite database. Timestamps are stored as Unix milliseconds.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS signals (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	trade_id     TEXT,
	strategy_id  TEXT NOT NULL,
	symbol       TEXT NOT NULL,
	side         TEXT NOT NULL,
	event        TEXT,
	signal_time  INTEGER NOT NULL,
	signal_price REAL NOT NULL DEFAULT 0,
	created_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_signals_strategy_time ON signals(strategy_id, signal_time);

CREATE TABLE IF NOT EXISTS orders (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	trade_id         TEXT,
	strategy_id      TEXT NOT NULL,
	symbol           TEXT NOT NULL,
	side             TEXT NOT NULL,
	qty              REAL NOT NULL DEFAULT 0,
	notional         REAL NOT NULL DEFAULT 0,
	broker_order_id  TEXT UNIQUE,
	status           TEXT,
	submitted_at     INTEGER,
	filled_at        INTEGER,
	filled_qty       REAL NOT NULL DEFAULT 0,
	filled_avg_price REAL NOT NULL DEFAULT 0,
	created_at       INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_orders_strategy ON orders(strategy_id, created_at);

CREATE TABLE IF NOT EXISTS strategies (
	id                 TEXT PRIMARY KEY,
	name               TEXT NOT NULL,
	active             INTEGER NOT NULL DEFAULT 1,
	notional_per_trade REAL NOT NULL DEFAULT 0,
	created_at         INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS fills (
	symbol    TEXT NOT NULL,
	order_id  TEXT NOT NULL,
	side      TEXT NOT NULL,
	qty       REAL NOT NULL,
	price     REAL NOT NULL,
	timestamp INTEGER NOT NULL,
	trade_id  TEXT,
	PRIMARY KEY (symbol, order_id)
);
CREATE INDEX IF NOT EXISTS idx_fills_symbol_time ON fills(symbol, timestamp);
`

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, applies the
// schema, and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// SignalStore implementation
// ---------------------------------------------------------------------------

// SaveSignal inserts a new signal and sets its ID.
func (s *SQLiteStore) SaveSignal(ctx context.Context, sig *domain.Signal) error {
	if sig.CreatedAt.IsZero() {
		sig.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO signals (trade_id, strategy_id, symbol, side, event, signal_time, signal_price, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sig.TradeID, sig.StrategyID, sig.Symbol, string(sig.Side), sig.Event,
		sig.SignalTime.UnixMilli(), sig.SignalPrice, sig.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert signal: %w", err)
	}
	sig.ID, err = res.LastInsertId()
	return err
}

// RecentSignals returns the most recent signals for a strategy, newest
// first, up to limit.
func (s *SQLiteStore) RecentSignals(ctx context.Context, strategyID string, limit int) ([]domain.Signal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, trade_id, strategy_id, symbol, side, event, signal_time, signal_price, created_at
		FROM signals WHERE strategy_id = ?
		ORDER BY signal_time DESC, id DESC LIMIT ?`, strategyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSignals(rows)
}

// SignalHistory returns all signals for a strategy in ascending signal-time
// order.
func (s *SQLiteStore) SignalHistory(ctx context.Context, strategyID string) ([]domain.Signal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, trade_id, strategy_id, symbol, side, event, signal_time, signal_price, created_at
		FROM signals WHERE strategy_id = ?
		ORDER BY signal_time ASC, id ASC`, strategyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSignals(rows)
}

func scanSignals(rows *sql.Rows) ([]domain.Signal, error) {
	var out []domain.Signal
	for rows.Next() {
		var sig domain.Signal
		var side string
		var signalTime, createdAt int64
		if err := rows.Scan(&sig.ID, &sig.TradeID, &sig.StrategyID, &sig.Symbol,
			&side, &sig.Event, &signalTime, &sig.SignalPrice, &createdAt); err != nil {
			return nil, err
		}
		sig.Side = domain.Side(side)
		sig.SignalTime = time.UnixMilli(signalTime).UTC()
		sig.CreatedAt = time.UnixMilli(createdAt).UTC()
		out = append(out, sig)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// OrderStore implementation
// ---------------------------------------------------------------------------

// SaveOrder inserts a new order and sets its ID.
func (s *SQLiteStore) SaveOrder(ctx context.Context, o *domain.Order) error {
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO orders (trade_id, strategy_id, symbol, side, qty, notional,
			broker_order_id, status, submitted_at, filled_at, filled_qty, filled_avg_price, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.TradeID, o.StrategyID, o.Symbol, string(o.Side), o.Qty, o.Notional,
		nullIfEmpty(o.BrokerOrderID), o.Status, unixMilliOrNil(o.SubmittedAt), unixMilliOrNil(o.FilledAt),
		o.FilledQty, o.FilledAvgPrice, o.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	o.ID, err = res.LastInsertId()
	return err
}

// GetOrderByBrokerID retrieves an order by its broker-assigned ID, or
// (nil, nil) when absent.
func (s *SQLiteStore) GetOrderByBrokerID(ctx context.Context, brokerOrderID string) (*domain.Order, error) {
	rows, err := s.db.QueryContext(ctx, selectOrders+` WHERE broker_order_id = ?`, brokerOrderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders, err := scanOrders(rows)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, nil
	}
	return &orders[0], nil
}

// ListOrders returns all orders for a strategy, newest first.
func (s *SQLiteStore) ListOrders(ctx context.Context, strategyID string) ([]domain.Order, error) {
	rows, err := s.db.QueryContext(ctx,
		selectOrders+` WHERE strategy_id = ? ORDER BY created_at DESC, id DESC`, strategyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOrders(rows)
}

// UpdateOrderFill records broker-reported fill state on an order.
func (s *SQLiteStore) UpdateOrderFill(ctx context.Context, brokerOrderID, status string, filledQty, filledAvgPrice float64, filledAt *time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE orders SET status = ?, filled_qty = ?, filled_avg_price = ?, filled_at = ?
		WHERE broker_order_id = ?`,
		status, filledQty, filledAvgPrice, unixMilliOrNil(filledAt), brokerOrderID)
	return err
}

const selectOrders = `
	SELECT id, trade_id, strategy_id, symbol, side, qty, notional,
		broker_order_id, status, submitted_at, filled_at, filled_qty, filled_avg_price, created_at
	FROM orders`

func scanOrders(rows *sql.Rows) ([]domain.Order, error) {
	var out []domain.Order
	for rows.Next() {
		var o domain.Order
		var side string
		var brokerID, status sql.NullString
		var submittedAt, filledAt sql.NullInt64
		var createdAt int64
		if err := rows.Scan(&o.ID, &o.TradeID, &o.StrategyID, &o.Symbol, &side,
			&o.Qty, &o.Notional, &brokerID, &status, &submittedAt, &filledAt,
			&o.FilledQty, &o.FilledAvgPrice, &createdAt); err != nil {
			return nil, err
		}
		o.Side = domain.Side(side)
		o.BrokerOrderID = brokerID.String
		o.Status = status.String
		o.SubmittedAt = timeOrNil(submittedAt)
		o.FilledAt = timeOrNil(filledAt)
		o.CreatedAt = time.UnixMilli(createdAt).UTC()
		out = append(out, o)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// StrategyStore implementation
// ---------------------------------------------------------------------------

// UpsertStrategy inserts or replaces a strategy record by ID.
func (s *SQLiteStore) UpsertStrategy(ctx context.Context, rec *domain.StrategyRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO strategies (id, name, active, notional_per_trade, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			active = excluded.active,
			notional_per_trade = excluded.notional_per_trade`,
		rec.ID, rec.Name, boolToInt(rec.Active), rec.NotionalPerTrade, rec.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert strategy: %w", err)
	}
	return nil
}

// GetStrategy retrieves a strategy record by ID, or (nil, nil) when absent.
func (s *SQLiteStore) GetStrategy(ctx context.Context, id string) (*domain.StrategyRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, active, notional_per_trade, created_at
		FROM strategies WHERE id = ?`, id)
	rec, err := scanStrategy(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

// ListStrategies returns all registered strategies sorted by ID.
func (s *SQLiteStore) ListStrategies(ctx context.Context) ([]domain.StrategyRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, active, notional_per_trade, created_at
		FROM strategies ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.StrategyRecord
	for rows.Next() {
		rec, err := scanStrategy(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStrategy(row rowScanner) (*domain.StrategyRecord, error) {
	var rec domain.StrategyRecord
	var active int
	var createdAt int64
	if err := row.Scan(&rec.ID, &rec.Name, &active, &rec.NotionalPerTrade, &createdAt); err != nil {
		return nil, err
	}
	rec.Active = active != 0
	rec.CreatedAt = time.UnixMilli(createdAt).UTC()
	return &rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// ---------------------------------------------------------------------------
// FillStore implementation
// ---------------------------------------------------------------------------

// SaveFills inserts fills, ignoring any already stored for the same
// (symbol, order id).
func (s *SQLiteStore) SaveFills(ctx context.Context, fills []domain.Fill) error {
	if len(fills) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO fills (symbol, order_id, side, qty, price, timestamp, trade_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, f := range fills {
		if _, err := stmt.ExecContext(ctx, f.Symbol, f.OrderID, string(f.Side),
			f.Qty, f.Price, f.Timestamp.UnixMilli(), f.TradeID); err != nil {
			return fmt.Errorf("insert fill %s/%s: %w", f.Symbol, f.OrderID, err)
		}
	}
	return tx.Commit()
}

// FillsForSymbol returns all stored fills for a symbol, sorted by
// (timestamp, order id).
func (s *SQLiteStore) FillsForSymbol(ctx context.Context, symbol string) ([]domain.Fill, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, order_id, side, qty, price, timestamp, trade_id
		FROM fills WHERE symbol = ?
		ORDER BY timestamp ASC, order_id ASC`, symbol)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Fill
	for rows.Next() {
		var f domain.Fill
		var side string
		var ts int64
		if err := rows.Scan(&f.Symbol, &f.OrderID, &side, &f.Qty, &f.Price, &ts, &f.TradeID); err != nil {
			return nil, err
		}
		f.Side = domain.Side(side)
		f.Timestamp = time.UnixMilli(ts).UTC()
		out = append(out, f)
	}
	return out, rows.Err()
}

// FillSymbols returns all distinct symbols with stored fills.
func (s *SQLiteStore) FillSymbols(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT symbol FROM fills ORDER BY symbol`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, err
		}
		out = append(out, sym)
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

func unixMilliOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}

func timeOrNil(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64).UTC()
	return &t
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
