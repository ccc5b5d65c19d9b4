package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"scadenze/internal/core"
	"scadenze/internal/ledger"

	_ "modernc.org/sqlite"
)

// SQLiteRepository stores obligations, rejections and ledger movements.
type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	repo := &SQLiteRepository{
		db:      db,
		queries: New(db),
	}

	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database connection, used by the health endpoint.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) CreateObligation(ctx context.Context, o core.Obligation) error {
	if err := r.queries.CreateObligation(ctx, obligationRow(o)); err != nil {
		if isUniqueConstraintError(err) {
			return core.ErrDuplicateObligation
		}
		return fmt.Errorf("create obligation: %w", err)
	}

	slog.InfoContext(ctx, "Obligation saved to SQLite",
		"label", o.Label,
		"amount", o.Amount.StringFixed(2),
		"frequency", o.Frequency())
	return nil
}

func (r *SQLiteRepository) UpdateObligation(ctx context.Context, o core.Obligation) error {
	n, err := r.queries.UpdateObligation(ctx, obligationRow(o))
	if err != nil {
		return fmt.Errorf("update obligation: %w", err)
	}
	if n == 0 {
		return core.ErrObligationNotFound
	}
	return nil
}

func (r *SQLiteRepository) GetObligation(ctx context.Context, label string) (core.Obligation, error) {
	row, err := r.queries.GetObligation(ctx, label)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Obligation{}, core.ErrObligationNotFound
	}
	if err != nil {
		return core.Obligation{}, fmt.Errorf("get obligation %s: %w", label, err)
	}
	return row.toCore()
}

func (r *SQLiteRepository) ListObligations(ctx context.Context) ([]core.Obligation, error) {
	rows, err := r.queries.ListObligations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list obligations: %w", err)
	}
	out := make([]core.Obligation, 0, len(rows))
	for _, row := range rows {
		o, err := row.toCore()
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

func (r *SQLiteRepository) DeleteObligation(ctx context.Context, label string) error {
	n, err := r.queries.DeleteObligation(ctx, label)
	if err != nil {
		return fmt.Errorf("delete obligation: %w", err)
	}
	if n == 0 {
		return core.ErrObligationNotFound
	}
	return nil
}

// Reject records the rejection; the primary key makes a repeat a no-op.
func (r *SQLiteRepository) Reject(ctx context.Context, rec core.RejectionRecord) error {
	err := r.queries.InsertRejection(ctx, Rejection{
		Label:       rec.Label,
		RejectedFor: rec.RejectedFor.String(),
		RejectedAt:  rec.RejectedAt.String(),
	})
	if err != nil {
		return fmt.Errorf("insert rejection: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) IsRejected(ctx context.Context, label string, expectedDate core.Date) (bool, error) {
	n, err := r.queries.CountRejection(ctx, label, expectedDate.String())
	if err != nil {
		return false, fmt.Errorf("check rejection: %w", err)
	}
	return n > 0, nil
}

func (r *SQLiteRepository) ClearFor(ctx context.Context, label string) error {
	if err := r.queries.DeleteRejectionsFor(ctx, label); err != nil {
		return fmt.Errorf("clear rejections: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) ListRejections(ctx context.Context) ([]core.RejectionRecord, error) {
	rows, err := r.queries.ListRejections(ctx)
	if err != nil {
		return nil, fmt.Errorf("list rejections: %w", err)
	}
	out := make([]core.RejectionRecord, 0, len(rows))
	for _, row := range rows {
		rejectedFor, err := core.ParseDate(row.RejectedFor)
		if err != nil {
			return nil, err
		}
		rejectedAt, err := core.ParseDate(row.RejectedAt)
		if err != nil {
			return nil, err
		}
		out = append(out, core.RejectionRecord{Label: row.Label, RejectedFor: rejectedFor, RejectedAt: rejectedAt})
	}
	return out, nil
}

// CreateMovement implements ledger.MovementWriter. The UNIQUE(label, date,
// origin) constraint turns a second insert into ledger.ErrDuplicateMovement.
func (r *SQLiteRepository) CreateMovement(ctx context.Context, m core.Movement) (core.MovementRef, error) {
	id, err := r.queries.CreateMovement(ctx, Movement{
		Label:  m.Label,
		Date:   m.Date.String(),
		Amount: m.Amount.StringFixed(2),
		Origin: string(m.Origin),
	})
	if err != nil {
		if isUniqueConstraintError(err) {
			return "", ledger.ErrDuplicateMovement
		}
		return "", fmt.Errorf("create movement: %w", err)
	}

	slog.InfoContext(ctx, "Movement saved to SQLite",
		"id", id,
		"label", m.Label,
		"date", m.Date.String(),
		"origin", m.Origin)

	return core.MovementRef(strconv.FormatInt(id, 10)), nil
}

// FindMovement implements ledger.MovementFinder.
func (r *SQLiteRepository) FindMovement(ctx context.Context, label string, date core.Date, origin core.Origin) (*core.Movement, error) {
	row, err := r.queries.FindMovement(ctx, label, date.String(), string(origin))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find movement: %w", err)
	}
	m, err := row.toCore()
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *SQLiteRepository) ListMovements(ctx context.Context, label string) ([]core.Movement, error) {
	rows, err := r.queries.ListMovements(ctx, label)
	if err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	out := make([]core.Movement, 0, len(rows))
	for _, row := range rows {
		m, err := row.toCore()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

func obligationRow(o core.Obligation) Obligation {
	spec := core.SpecOf(o.Rule)
	row := Obligation{
		Label:     o.Label,
		Amount:    o.Amount.StringFixed(2),
		Frequency: string(spec.Frequency),
		CreatedAt: o.CreatedAt.String(),
	}
	switch spec.Frequency {
	case core.Monthly:
		row.DayOfMonth = sql.NullInt64{Int64: int64(spec.DayOfMonth), Valid: true}
	case core.Weekly:
		row.Weekday = sql.NullString{String: spec.Weekday, Valid: true}
	case core.Annual:
		row.Month = sql.NullInt64{Int64: int64(spec.Month), Valid: true}
		row.Day = sql.NullInt64{Int64: int64(spec.Day), Valid: true}
	}
	return row
}

func (o Obligation) toCore() (core.Obligation, error) {
	amount, err := decimal.NewFromString(o.Amount)
	if err != nil {
		return core.Obligation{}, fmt.Errorf("obligation %s: parse amount: %w", o.Label, err)
	}
	rule, err := core.RuleSpec{
		Frequency:  core.Frequency(o.Frequency),
		DayOfMonth: int(o.DayOfMonth.Int64),
		Weekday:    o.Weekday.String,
		Month:      int(o.Month.Int64),
		Day:        int(o.Day.Int64),
	}.Rule()
	if err != nil {
		return core.Obligation{}, fmt.Errorf("obligation %s: %w", o.Label, err)
	}
	created, err := core.ParseDate(o.CreatedAt)
	if err != nil {
		return core.Obligation{}, fmt.Errorf("obligation %s: %w", o.Label, err)
	}
	return core.Obligation{Label: o.Label, Amount: amount, Rule: rule, CreatedAt: created}, nil
}

func (m Movement) toCore() (core.Movement, error) {
	date, err := core.ParseDate(m.Date)
	if err != nil {
		return core.Movement{}, fmt.Errorf("movement %d: %w", m.ID, err)
	}
	amount, err := decimal.NewFromString(m.Amount)
	if err != nil {
		return core.Movement{}, fmt.Errorf("movement %d: parse amount: %w", m.ID, err)
	}
	return core.Movement{
		Ref:    core.MovementRef(strconv.FormatInt(m.ID, 10)),
		Date:   date,
		Amount: amount,
		Label:  m.Label,
		Origin: core.Origin(m.Origin),
	}, nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "PRIMARY KEY constraint failed"))
}
