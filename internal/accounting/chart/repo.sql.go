package chart

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/ledger-core/internal/platform/db"
)

// Repository persists the chart of accounts in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx executes fn within a locking transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("chart repository not initialised")
	}
	return db.WithLockingTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, NewChartTx(tx))
	})
}

// ChartTx implements TxRepository on a pgx transaction. Other packages embed
// it to compose a single transaction across the ledger core.
type ChartTx struct {
	tx pgx.Tx
}

// NewChartTx wraps tx.
func NewChartTx(tx pgx.Tx) *ChartTx {
	return &ChartTx{tx: tx}
}

const groupColumns = `id, name, code, nature, parent_id, balance, is_active, created_at, updated_at`

func scanGroup(row pgx.Row) (AccountGroup, error) {
	var g AccountGroup
	err := row.Scan(&g.ID, &g.Name, &g.Code, &g.Nature, &g.ParentID, &g.Balance, &g.IsActive, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AccountGroup{}, ErrGroupNotFound
		}
		return AccountGroup{}, err
	}
	return g, nil
}

func (r *ChartTx) GetGroup(ctx context.Context, id int64) (AccountGroup, error) {
	return scanGroup(r.tx.QueryRow(ctx, `SELECT `+groupColumns+` FROM account_groups WHERE id=$1 AND is_active`, id))
}

func (r *ChartTx) GetGroupForUpdate(ctx context.Context, id int64) (AccountGroup, error) {
	return scanGroup(r.tx.QueryRow(ctx, `SELECT `+groupColumns+` FROM account_groups WHERE id=$1 AND is_active FOR UPDATE`, id))
}

func (r *ChartTx) ListGroups(ctx context.Context) ([]AccountGroup, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+groupColumns+` FROM account_groups WHERE is_active ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var groups []AccountGroup
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func (r *ChartTx) ListChildren(ctx context.Context, parentID *int64) ([]Child, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if parentID == nil {
		rows, err = r.tx.Query(ctx, `SELECT 'GROUP', id, name, code, 0::BIGINT FROM account_groups WHERE parent_id IS NULL AND is_active ORDER BY id`)
	} else {
		rows, err = r.tx.Query(ctx, `SELECT 'GROUP', id, name, code, 0::BIGINT FROM account_groups WHERE parent_id=$1 AND is_active
UNION ALL
SELECT 'LEDGER', id, name, code, branch_id FROM ledgers WHERE group_id=$1 AND is_active`, *parentID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var children []Child
	for rows.Next() {
		var c Child
		if err := rows.Scan(&c.Kind, &c.ID, &c.Name, &c.Code, &c.BranchID); err != nil {
			return nil, err
		}
		children = append(children, c)
	}
	return children, rows.Err()
}

func (r *ChartTx) InsertGroup(ctx context.Context, g AccountGroup) (AccountGroup, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO account_groups (name, code, nature, parent_id, is_active, created_at, updated_at)
VALUES ($1,$2,$3,$4,TRUE,$5,$5) RETURNING id`, g.Name, g.Code, g.Nature, g.ParentID, g.CreatedAt).Scan(&g.ID)
	if err != nil {
		return AccountGroup{}, err
	}
	return g, nil
}

func (r *ChartTx) CountActiveChildren(ctx context.Context, groupID int64) (int, error) {
	var n int
	err := r.tx.QueryRow(ctx, `SELECT
  (SELECT COUNT(*) FROM account_groups WHERE parent_id=$1 AND is_active) +
  (SELECT COUNT(*) FROM ledgers WHERE group_id=$1 AND is_active)`, groupID).Scan(&n)
	return n, err
}

func (r *ChartTx) DeactivateGroup(ctx context.Context, id int64, at time.Time) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE account_groups SET is_active=FALSE, updated_at=$2 WHERE id=$1 AND is_active`, id, at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrGroupNotFound
	}
	return nil
}

func (r *ChartTx) UpdateGroupParent(ctx context.Context, id int64, parentID *int64, at time.Time) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE account_groups SET parent_id=$2, updated_at=$3 WHERE id=$1 AND is_active`, id, parentID, at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrGroupNotFound
	}
	return nil
}

func (r *ChartTx) FindGroupByNature(ctx context.Context, nature Nature) (AccountGroup, error) {
	return scanGroup(r.tx.QueryRow(ctx, `SELECT `+groupColumns+` FROM account_groups
WHERE nature=$1 AND is_active ORDER BY (parent_id IS NULL) DESC, id LIMIT 1`, nature))
}

func (r *ChartTx) NextCodeSuffix(ctx context.Context, scope string, floor int) (int, error) {
	var next int
	err := r.tx.QueryRow(ctx, `INSERT INTO code_sequences (scope, last_value) VALUES ($1, $2::BIGINT + 1)
ON CONFLICT (scope) DO UPDATE SET last_value = GREATEST(code_sequences.last_value, $2::BIGINT) + 1
RETURNING last_value`, scope, floor).Scan(&next)
	return next, err
}

func (r *ChartTx) RewriteCodePrefix(ctx context.Context, oldPrefix, newPrefix string, at time.Time) error {
	pattern := escapeLike(oldPrefix) + `.%`
	if _, err := r.tx.Exec(ctx, `UPDATE account_groups SET code = $2 || substr(code, length($1) + 1), updated_at=$4
WHERE code = $1 OR code LIKE $3`, oldPrefix, newPrefix, pattern, at); err != nil {
		return err
	}
	_, err := r.tx.Exec(ctx, `UPDATE ledgers SET code = $2 || substr(code, length($1) + 1), updated_at=$4
WHERE code LIKE $3`, oldPrefix, newPrefix, pattern, at)
	return err
}

const ledgerColumns = `l.id, l.name, l.code, l.type, g.nature, l.opening_balance, l.balance, l.group_id, l.branch_id, l.is_active, l.created_at, l.updated_at`

func scanLedger(row pgx.Row) (Ledger, error) {
	var l Ledger
	err := row.Scan(&l.ID, &l.Name, &l.Code, &l.Type, &l.Nature, &l.OpeningBalance, &l.Balance, &l.GroupID, &l.BranchID, &l.IsActive, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Ledger{}, ErrLedgerNotFound
		}
		return Ledger{}, err
	}
	return l, nil
}

func (r *ChartTx) InsertLedger(ctx context.Context, l Ledger) (Ledger, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO ledgers (name, code, type, opening_balance, balance, group_id, branch_id, is_active, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,TRUE,$8,$8) RETURNING id`, l.Name, l.Code, l.Type, l.OpeningBalance, l.Balance, l.GroupID, l.BranchID, l.CreatedAt).Scan(&l.ID)
	if err != nil {
		return Ledger{}, err
	}
	return l, nil
}

func (r *ChartTx) GetLedger(ctx context.Context, id int64) (Ledger, error) {
	return scanLedger(r.tx.QueryRow(ctx, `SELECT `+ledgerColumns+` FROM ledgers l JOIN account_groups g ON g.id = l.group_id
WHERE l.id=$1 AND l.is_active`, id))
}

func (r *ChartTx) GetLedgerForUpdate(ctx context.Context, id int64) (Ledger, error) {
	return scanLedger(r.tx.QueryRow(ctx, `SELECT `+ledgerColumns+` FROM ledgers l JOIN account_groups g ON g.id = l.group_id
WHERE l.id=$1 AND l.is_active FOR UPDATE OF l`, id))
}

func (r *ChartTx) ListLedgers(ctx context.Context, filter LedgerFilter) ([]Ledger, error) {
	var (
		where []string
		args  []any
	)
	where = append(where, "l.is_active")
	if filter.BranchID > 0 {
		args = append(args, filter.BranchID)
		where = append(where, "l.branch_id=$"+strconv.Itoa(len(args)))
	}
	if filter.GroupID > 0 {
		args = append(args, filter.GroupID)
		where = append(where, "l.group_id=$"+strconv.Itoa(len(args)))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		where = append(where, "l.type=$"+strconv.Itoa(len(args)))
	}
	rows, err := r.tx.Query(ctx, `SELECT `+ledgerColumns+` FROM ledgers l JOIN account_groups g ON g.id = l.group_id
WHERE `+strings.Join(where, " AND ")+` ORDER BY l.code`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ledgers []Ledger
	for rows.Next() {
		l, err := scanLedger(rows)
		if err != nil {
			return nil, err
		}
		ledgers = append(ledgers, l)
	}
	return ledgers, rows.Err()
}

func (r *ChartTx) FindLedgerByType(ctx context.Context, branchID int64, t LedgerType) (Ledger, error) {
	return scanLedger(r.tx.QueryRow(ctx, `SELECT `+ledgerColumns+` FROM ledgers l JOIN account_groups g ON g.id = l.group_id
WHERE l.branch_id=$1 AND l.type=$2 AND l.is_active ORDER BY l.id LIMIT 1`, branchID, t))
}

func (r *ChartTx) CountLedgerEntries(ctx context.Context, ledgerID int64) (int, error) {
	var n int
	err := r.tx.QueryRow(ctx, `SELECT COUNT(*) FROM journal_entries WHERE ledger_id=$1`, ledgerID).Scan(&n)
	return n, err
}

func (r *ChartTx) DeactivateLedger(ctx context.Context, id int64, at time.Time) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE ledgers SET is_active=FALSE, updated_at=$2 WHERE id=$1 AND is_active`, id, at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrLedgerNotFound
	}
	return nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
