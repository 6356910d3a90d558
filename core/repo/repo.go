// Package repo is the execution façade: the only component permitted to
// perform I/O. It compiles query IR and changeset commits through an
// injected Compiler, submits them to an injected storage Adapter, and maps
// store-reported constraint violations back onto the originating changeset.
// Everything upstream of it is pure and synchronous.
package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/asaidimu/go-events"
	"go.uber.org/zap"

	"github.com/mwakio/go-mizani/core/changeset"
	"github.com/mwakio/go-mizani/core/query"
	"github.com/mwakio/go-mizani/core/schema"
)

// Adapter is the narrow contract to the external storage collaborator:
// execute a compiled query with its bound parameters, return decoded rows or
// a structured failure. The descriptor guides row decoding and constraint
// name resolution; it may be nil for queries the adapter should decode
// verbatim. Implementations must honor context cancellation and report
// failures as *StorageError.
type Adapter interface {
	// Query executes a compiled statement that yields rows.
	Query(ctx context.Context, compiled *query.CompiledQuery, desc *schema.Descriptor) ([]schema.Entity, error)

	// Exec executes a compiled statement that yields no rows and reports the
	// number of affected rows.
	Exec(ctx context.Context, compiled *query.CompiledQuery, desc *schema.Descriptor) (int64, error)
}

// Repo coordinates compilation, execution and constraint mapping for one
// registry of descriptors. It holds no per-call state; a single Repo is safe
// for concurrent use.
type Repo struct {
	adapter  Adapter
	compiler query.Compiler
	registry *schema.Registry
	logger   *zap.Logger
	events   *eventHub
}

// New creates a Repo over an adapter and compiler. A nil logger disables
// logging.
func New(adapter Adapter, compiler query.Compiler, registry *schema.Registry, logger *zap.Logger) (*Repo, error) {
	if adapter == nil {
		return nil, fmt.Errorf("repo requires a storage adapter")
	}
	if compiler == nil {
		return nil, fmt.Errorf("repo requires a query compiler")
	}
	if registry == nil {
		return nil, fmt.Errorf("repo requires a descriptor registry")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	bus, err := events.NewTypedEventBus[Event](events.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("could not initialize event bus: %w", err)
	}

	return &Repo{
		adapter:  adapter,
		compiler: compiler,
		registry: registry,
		logger:   logger,
		events:   newEventHub(bus),
	}, nil
}

// All compiles and executes a query, returning every matched row decoded
// against the query's source descriptor.
func (r *Repo) All(ctx context.Context, q *query.Query) ([]schema.Entity, error) {
	plan, err := query.Analyze(q, r.registry)
	if err != nil {
		return nil, err
	}

	compiled, err := r.compiler.CompileSelect(q)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("executing select",
		zap.String("sql", compiled.Text),
		zap.Any("params", compiled.Params))

	rows, err := r.adapter.Query(ctx, compiled, plan.Source.Desc)
	if err != nil {
		r.logger.Error("select failed", zap.Error(err), zap.String("sql", compiled.Text))
		return nil, err
	}
	return rows, nil
}

// One executes a query expected to match at most one row. It returns
// ErrNotFound for zero rows and an error for more than one.
func (r *Repo) One(ctx context.Context, q *query.Query) (schema.Entity, error) {
	rows, err := r.All(ctx, q)
	if err != nil {
		return nil, err
	}
	switch len(rows) {
	case 0:
		return nil, ErrNotFound
	case 1:
		return rows[0], nil
	default:
		return nil, fmt.Errorf("expected at most one row, query matched %d", len(rows))
	}
}

// Insert commits a changeset as a new entity. It returns exactly one of:
// the stored entity; the changeset made invalid by local validation or by a
// store-reported constraint violation; or a storage error. Invalid
// changesets never reach the adapter.
func (r *Repo) Insert(ctx context.Context, cs *changeset.Changeset) (schema.Entity, *changeset.Changeset, error) {
	if !cs.Valid() {
		return nil, cs, nil
	}
	cs.WithAction(changeset.ActionInsert)

	compiled, err := r.compiler.CompileInsert(cs.Descriptor(), cs.InsertPayload())
	if err != nil {
		return nil, nil, err
	}

	r.logger.Debug("executing insert",
		zap.String("relation", cs.Descriptor().Relation()),
		zap.String("sql", compiled.Text))

	rows, err := r.adapter.Query(ctx, compiled, cs.Descriptor())
	if err != nil {
		if conflicted := r.applyConstraint(cs, err); conflicted {
			return nil, cs, nil
		}
		r.logger.Error("insert failed", zap.Error(err), zap.String("relation", cs.Descriptor().Relation()))
		return nil, nil, err
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("insert into '%s' returned no row", cs.Descriptor().Relation())
	}

	r.events.emit(EventInserted, cs.Descriptor().Relation(), rows[0])
	return rows[0], nil, nil
}

// Update commits a changeset against the entity addressed by its primary
// key. A changeset with no persistable changes returns the merged entity
// without touching the store.
func (r *Repo) Update(ctx context.Context, cs *changeset.Changeset) (schema.Entity, *changeset.Changeset, error) {
	if !cs.Valid() {
		return nil, cs, nil
	}
	cs.WithAction(changeset.ActionUpdate)

	changes := cs.CommitChanges()
	if len(changes) == 0 {
		return cs.ApplyChanges(), nil, nil
	}

	pk := cs.PrimaryKeyValue()
	if pk == nil {
		return nil, nil, fmt.Errorf("cannot update '%s': changeset has no primary key value", cs.Descriptor().Relation())
	}

	compiled, err := r.compiler.CompileUpdate(cs.Descriptor(), changes, pk)
	if err != nil {
		return nil, nil, err
	}

	r.logger.Debug("executing update",
		zap.String("relation", cs.Descriptor().Relation()),
		zap.String("sql", compiled.Text))

	rows, err := r.adapter.Query(ctx, compiled, cs.Descriptor())
	if err != nil {
		if conflicted := r.applyConstraint(cs, err); conflicted {
			return nil, cs, nil
		}
		r.logger.Error("update failed", zap.Error(err), zap.String("relation", cs.Descriptor().Relation()))
		return nil, nil, err
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("update of '%s' matched no row for primary key %v", cs.Descriptor().Relation(), pk)
	}

	r.events.emit(EventUpdated, cs.Descriptor().Relation(), rows[0])
	return rows[0], nil, nil
}

// Delete removes the entity a changeset is based on, addressed by its
// primary key. Constraint violations (e.g. restricted foreign keys declared
// on the changeset) map back the same way as on insert.
func (r *Repo) Delete(ctx context.Context, cs *changeset.Changeset) (schema.Entity, *changeset.Changeset, error) {
	if !cs.Valid() {
		return nil, cs, nil
	}
	cs.WithAction(changeset.ActionDelete)

	pk := cs.PrimaryKeyValue()
	if pk == nil {
		return nil, nil, fmt.Errorf("cannot delete from '%s': changeset has no primary key value", cs.Descriptor().Relation())
	}

	compiled, err := r.compiler.CompileDelete(cs.Descriptor(), pk)
	if err != nil {
		return nil, nil, err
	}

	r.logger.Debug("executing delete",
		zap.String("relation", cs.Descriptor().Relation()),
		zap.String("sql", compiled.Text))

	affected, err := r.adapter.Exec(ctx, compiled, cs.Descriptor())
	if err != nil {
		if conflicted := r.applyConstraint(cs, err); conflicted {
			return nil, cs, nil
		}
		r.logger.Error("delete failed", zap.Error(err), zap.String("relation", cs.Descriptor().Relation()))
		return nil, nil, err
	}
	if affected == 0 {
		return nil, nil, fmt.Errorf("delete from '%s' matched no row for primary key %v", cs.Descriptor().Relation(), pk)
	}

	entity := cs.ApplyChanges()
	r.events.emit(EventDeleted, cs.Descriptor().Relation(), entity)
	return entity, nil, nil
}

// Execute runs an already compiled query and returns its rows undecoded by
// any descriptor. It exists for callers that compile and cache queries
// themselves.
func (r *Repo) Execute(ctx context.Context, compiled *query.CompiledQuery) ([]schema.Entity, error) {
	r.logger.Debug("executing compiled query", zap.String("sql", compiled.Text))
	return r.adapter.Query(ctx, compiled, nil)
}

// applyConstraint maps a store-reported constraint violation onto the
// changeset's declared constraints. Matching is exact by name; an unmatched
// violation stays a storage error for the caller.
func (r *Repo) applyConstraint(cs *changeset.Changeset, err error) bool {
	var serr *StorageError
	if !errors.As(err, &serr) || serr.Kind != StorageConstraint {
		return false
	}
	if cs.MatchConstraint(serr.Constraint) {
		r.logger.Debug("constraint violation mapped to changeset",
			zap.String("constraint", serr.Constraint),
			zap.String("relation", cs.Descriptor().Relation()))
		return true
	}
	return false
}
