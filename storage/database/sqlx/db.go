package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
)

const uniqueViolation = "23505"

// Transactor runs units of work in postgres transactions.
type Transactor struct {
	db *sqlx.DB
}

var _ core.Transactor = (*Transactor)(nil) // interface compliance check

func NewTransactor(db *sqlx.DB) *Transactor {
	return &Transactor{db: db}
}

func (tr *Transactor) RunInTx(ctx context.Context, fn func(exec core.DBExecutor) error) (err error) {
	tx, err := tr.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Wrapf(err, "rolling back transaction: %v", rbErr)
		}
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

// base holds what every repository shares.
type base struct {
	db *sqlx.DB
}

func (b base) getExec(exec []core.DBExecutor) sqlx.ExtContext {
	if len(exec) > 0 && exec[0] != nil {
		if ext, ok := exec[0].(sqlx.ExtContext); ok {
			return ext
		}
	}
	return b.db
}

// lockClause locks the selected rows until the end of the transaction, if any.
func lockClause(exec []core.DBExecutor) string {
	if len(exec) > 0 && exec[0] != nil {
		return " FOR UPDATE"
	}
	return ""
}

// trapNoRowsErr maps psql "no rows" err to notFound
func trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == uniqueViolation
	}
	return false
}

// where accumulates the conditions of a query, with "?" bind vars.
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) add(cond string, args ...interface{}) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// paginate appends the LIMIT & OFFSET of page to q; a nil page selects every row.
func paginate(q string, args []interface{}, page *core.Pagination) (string, []interface{}) {
	if page == nil {
		return q, args
	}
	return q + " LIMIT ? OFFSET ?", append(args, page.Limit(), page.Offset())
}

// count returns the number of rows of table matching w.
func count(ctx context.Context, exe sqlx.ExtContext, table string, w where) (int, error) {
	var n int
	q := exe.Rebind("SELECT COUNT(*) FROM " + table + w.String())
	if err := sqlx.GetContext(ctx, exe, &n, q, w.args...); err != nil {
		return 0, errors.Wrap(err, "counting rows")
	}
	return n, nil
}
