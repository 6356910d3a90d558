package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"strings"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/mwakio/go-mizani/core/query"
	"github.com/mwakio/go-mizani/core/repo"
	"github.com/mwakio/go-mizani/core/schema"
)

// Adapter executes compiled queries against a SQLite database handle. The
// handle is owned by the caller (a supervisor or test harness); the adapter
// never opens, closes or pools connections itself and does only scoped
// execution. It is the sole I/O boundary of the module.
type Adapter struct {
	db     *sql.DB
	logger *zap.Logger
}

// Ensure Adapter implements the repo.Adapter interface.
var _ repo.Adapter = (*Adapter)(nil)

// NewAdapter wraps an open database handle. A nil logger disables logging.
func NewAdapter(db *sql.DB, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{db: db, logger: logger}
}

// Query executes a row-yielding compiled statement. Rows are decoded against
// the descriptor when one is given, otherwise returned with the driver's raw
// representation.
func (a *Adapter) Query(ctx context.Context, compiled *query.CompiledQuery, desc *schema.Descriptor) ([]schema.Entity, error) {
	a.logger.Debug("executing SQL", zap.String("sql", compiled.Text), zap.Any("params", compiled.Params))

	rows, err := a.db.QueryContext(ctx, compiled.Text, compiled.Params...)
	if err != nil {
		a.logger.Error("query failed", zap.Error(err), zap.String("sql", compiled.Text))
		return nil, a.storageError(err, desc)
	}
	defer rows.Close()

	decoded, err := decodeRows(a.logger, desc, rows)
	if err != nil {
		return nil, a.storageError(err, desc)
	}
	return decoded, nil
}

// Exec executes a compiled statement that yields no rows.
func (a *Adapter) Exec(ctx context.Context, compiled *query.CompiledQuery, desc *schema.Descriptor) (int64, error) {
	a.logger.Debug("executing SQL", zap.String("sql", compiled.Text), zap.Any("params", compiled.Params))

	result, err := a.db.ExecContext(ctx, compiled.Text, compiled.Params...)
	if err != nil {
		a.logger.Error("exec failed", zap.Error(err), zap.String("sql", compiled.Text))
		return 0, a.storageError(err, desc)
	}
	return result.RowsAffected()
}

// storageError classifies a driver failure into the façade's taxonomy. For
// uniqueness violations the violated declared constraint name is resolved
// through the descriptor's unique indexes.
func (a *Adapter) storageError(err error, desc *schema.Descriptor) *repo.StorageError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &repo.StorageError{Kind: repo.StorageTimeout, Err: err}
	}
	if errors.Is(err, driver.ErrBadConn) {
		return &repo.StorageError{Kind: repo.StorageConnection, Err: err}
	}

	var serr sqlite3.Error
	if errors.As(err, &serr) {
		switch {
		case serr.ExtendedCode == sqlite3.ErrConstraintUnique || serr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey:
			return &repo.StorageError{
				Kind:       repo.StorageConstraint,
				Constraint: constraintName(serr.Error(), desc),
				Err:        err,
			}
		case serr.Code == sqlite3.ErrConstraint:
			return &repo.StorageError{Kind: repo.StorageConstraint, Constraint: constraintName(serr.Error(), desc), Err: err}
		case serr.Code == sqlite3.ErrCantOpen || serr.Code == sqlite3.ErrBusy || serr.Code == sqlite3.ErrLocked:
			return &repo.StorageError{Kind: repo.StorageConnection, Err: err}
		}
	}

	return &repo.StorageError{Kind: repo.StorageInternal, Err: err}
}

// constraintName extracts the violated column from SQLite's
// "UNIQUE constraint failed: table.column" message and resolves it to the
// descriptor's declared unique index name. When no declaration covers the
// column the raw "table.column" token is returned; that token matches no
// declared constraint, so the violation stays a storage error.
func constraintName(message string, desc *schema.Descriptor) string {
	_, detail, found := strings.Cut(message, ": ")
	if !found {
		return message
	}
	token := strings.TrimSpace(strings.Split(detail, ",")[0])
	if desc != nil {
		if _, column, ok := strings.Cut(token, "."); ok {
			if name, declared := desc.UniqueIndexFor(column); declared {
				return name
			}
		}
	}
	return token
}
