package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// Obligation is a row of the obligations table.
type Obligation struct {
	Label      string
	Amount     string
	Frequency  string
	DayOfMonth sql.NullInt64
	Weekday    sql.NullString
	Month      sql.NullInt64
	Day        sql.NullInt64
	CreatedAt  string
}

type Rejection struct {
	Label       string
	RejectedFor string
	RejectedAt  string
}

type Movement struct {
	ID     int64
	Label  string
	Date   string
	Amount string
	Origin string
}

const obligationColumns = `label, amount, frequency, day_of_month, weekday, month, day, created_at`

func scanObligation(row interface{ Scan(...interface{}) error }) (Obligation, error) {
	var o Obligation
	err := row.Scan(&o.Label, &o.Amount, &o.Frequency, &o.DayOfMonth, &o.Weekday, &o.Month, &o.Day, &o.CreatedAt)
	return o, err
}

const createObligation = `INSERT INTO obligations (` + obligationColumns + `)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateObligation(ctx context.Context, o Obligation) error {
	_, err := q.db.ExecContext(ctx, createObligation,
		o.Label, o.Amount, o.Frequency, o.DayOfMonth, o.Weekday, o.Month, o.Day, o.CreatedAt)
	return err
}

const updateObligation = `UPDATE obligations
SET amount = ?, frequency = ?, day_of_month = ?, weekday = ?, month = ?, day = ?, updated_at = CURRENT_TIMESTAMP
WHERE label = ?`

func (q *Queries) UpdateObligation(ctx context.Context, o Obligation) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateObligation,
		o.Amount, o.Frequency, o.DayOfMonth, o.Weekday, o.Month, o.Day, o.Label)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const getObligation = `SELECT ` + obligationColumns + ` FROM obligations WHERE label = ?`

func (q *Queries) GetObligation(ctx context.Context, label string) (Obligation, error) {
	return scanObligation(q.db.QueryRowContext(ctx, getObligation, label))
}

const listObligations = `SELECT ` + obligationColumns + ` FROM obligations ORDER BY label`

func (q *Queries) ListObligations(ctx context.Context) ([]Obligation, error) {
	rows, err := q.db.QueryContext(ctx, listObligations)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Obligation
	for rows.Next() {
		o, err := scanObligation(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, o)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const deleteObligation = `DELETE FROM obligations WHERE label = ?`

func (q *Queries) DeleteObligation(ctx context.Context, label string) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteObligation, label)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const insertRejection = `INSERT OR IGNORE INTO rejections (label, rejected_for, rejected_at) VALUES (?, ?, ?)`

func (q *Queries) InsertRejection(ctx context.Context, r Rejection) error {
	_, err := q.db.ExecContext(ctx, insertRejection, r.Label, r.RejectedFor, r.RejectedAt)
	return err
}

const countRejection = `SELECT COUNT(*) FROM rejections WHERE label = ? AND rejected_for = ?`

func (q *Queries) CountRejection(ctx context.Context, label, rejectedFor string) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countRejection, label, rejectedFor).Scan(&n)
	return n, err
}

const deleteRejectionsFor = `DELETE FROM rejections WHERE label = ?`

func (q *Queries) DeleteRejectionsFor(ctx context.Context, label string) error {
	_, err := q.db.ExecContext(ctx, deleteRejectionsFor, label)
	return err
}

const listRejections = `SELECT label, rejected_for, rejected_at FROM rejections ORDER BY label, rejected_for`

func (q *Queries) ListRejections(ctx context.Context) ([]Rejection, error) {
	rows, err := q.db.QueryContext(ctx, listRejections)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Rejection
	for rows.Next() {
		var r Rejection
		if err := rows.Scan(&r.Label, &r.RejectedFor, &r.RejectedAt); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const createMovement = `INSERT INTO movements (label, date, amount, origin) VALUES (?, ?, ?, ?) RETURNING id`

func (q *Queries) CreateMovement(ctx context.Context, m Movement) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, createMovement, m.Label, m.Date, m.Amount, m.Origin).Scan(&id)
	return id, err
}

const findMovement = `SELECT id, label, date, amount, origin FROM movements
WHERE label = ? AND date = ? AND origin = ?`

func (q *Queries) FindMovement(ctx context.Context, label, date, origin string) (Movement, error) {
	var m Movement
	err := q.db.QueryRowContext(ctx, findMovement, label, date, origin).
		Scan(&m.ID, &m.Label, &m.Date, &m.Amount, &m.Origin)
	return m, err
}

const listMovements = `SELECT id, label, date, amount, origin FROM movements WHERE label = ? ORDER BY date, id`

func (q *Queries) ListMovements(ctx context.Context, label string) ([]Movement, error) {
	rows, err := q.db.QueryContext(ctx, listMovements, label)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Movement
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.ID, &m.Label, &m.Date, &m.Amount, &m.Origin); err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}
