package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/zjrosen/suiteloader/internal/cachemanager"
	"github.com/zjrosen/suiteloader/internal/eid"
	"github.com/zjrosen/suiteloader/internal/item"
	"github.com/zjrosen/suiteloader/internal/log"
)

const itemColumns = `id, kind, source, label, description, refs, created_at, updated_at`

// itemRepository runs the SQL of the items table.
type itemRepository struct {
	db *sql.DB
}

func newItemRepository(db *sql.DB) *itemRepository {
	return &itemRepository{db: db}
}

func scanItem(scanner interface{ Scan(...any) error }) (*Record, error) {
	var m itemModel
	if err := scanner.Scan(&m.ID, &m.Kind, &m.Source, &m.Label, &m.Description, &m.Refs, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	return m.toRecord()
}

// save upserts rec. A row owned by another source is left untouched and a
// ConflictError is returned.
func (r *itemRepository) save(ctx context.Context, rec *Record) error {
	m, err := toItemModel(rec)
	if err != nil {
		return fmt.Errorf("failed to encode item %s: %w", rec.ID, err)
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO items (`+itemColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			label = excluded.label,
			description = excluded.description,
			refs = excluded.refs,
			updated_at = excluded.updated_at
		WHERE items.source = excluded.source`,
		m.ID, m.Kind, m.Source, m.Label, m.Description, m.Refs, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save item %s: %w", rec.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if n == 0 {
		owner, err := r.owner(ctx, rec.ID)
		if err != nil {
			return err
		}
		return &ConflictError{ID: rec.ID, Owner: owner, Source: rec.Source}
	}
	return nil
}

func (r *itemRepository) owner(ctx context.Context, id eid.EID) (string, error) {
	var source string
	err := r.db.QueryRowContext(ctx, `SELECT source FROM items WHERE id = ?`, id.String()).Scan(&source)
	if errors.Is(err, sql.ErrNoRows) {
		return "", &ItemNotFoundError{ID: id}
	}
	if err != nil {
		return "", fmt.Errorf("failed to read owner of %s: %w", id, err)
	}
	return source, nil
}

// delete removes the row of id if source owns it.
func (r *itemRepository) delete(ctx context.Context, id eid.EID, source string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM items WHERE id = ? AND source = ?`, id.String(), source)
	if err != nil {
		return false, fmt.Errorf("failed to delete item %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return n > 0, nil
}

func (r *itemRepository) findByID(ctx context.Context, id string) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	rec, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &ItemNotFoundError{ID: eid.MustNew(id)}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find item by id: %w", err)
	}
	return rec, nil
}

func (r *itemRepository) list(ctx context.Context, query string, args ...any) ([]*Record, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []*Record
	for rows.Next() {
		rec, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate items: %w", err)
	}
	return out, nil
}

func (r *itemRepository) sources(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT source FROM items ORDER BY source`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sources: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *itemRepository) deleteSource(ctx context.Context, source string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `DELETE FROM items WHERE source = ? RETURNING id`, source)
	if err != nil {
		return nil, fmt.Errorf("failed to delete items of %s: %w", source, err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Items is the item store used by build and release hooks. Writes go to the
// database and invalidate the read cache.
type Items struct {
	repo   *itemRepository
	reader *cachemanager.ReadThroughCache[string, *Record, string]
	ttl    time.Duration
}

// Save inserts or updates rec. CreatedAt is kept on update.
func (s *Items) Save(ctx context.Context, rec *Record) error {
	now := time.Now()
	rec = rec.Clone()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	if err := s.repo.save(ctx, rec); err != nil {
		return err
	}
	s.invalidate(ctx, rec.ID.String())
	log.Debug(log.CatStore, "Saved item", "id", rec.ID, "kind", rec.Kind, "source", rec.Source)
	return nil
}

// Delete removes id if source owns it. Deleting a row owned by another
// source or a missing row is a no-op.
func (s *Items) Delete(ctx context.Context, id eid.EID, source string) error {
	deleted, err := s.repo.delete(ctx, id, source)
	if err != nil {
		return err
	}
	s.invalidate(ctx, id.String())
	if deleted {
		log.Debug(log.CatStore, "Deleted item", "id", id, "source", source)
	}
	return nil
}

// FindByID returns the record of id. Reads are served from the cache.
func (s *Items) FindByID(ctx context.Context, id eid.EID) (*Record, error) {
	rec, err := s.reader.Get(ctx, id.String(), id.String(), s.ttl)
	if err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}

// ListByKind returns the records of kind ordered by id.
func (s *Items) ListByKind(ctx context.Context, kind item.Kind) ([]*Record, error) {
	return s.repo.list(ctx, `SELECT `+itemColumns+` FROM items WHERE kind = ? ORDER BY id`, string(kind))
}

// List returns all records ordered by kind and id.
func (s *Items) List(ctx context.Context) ([]*Record, error) {
	return s.repo.list(ctx, `SELECT `+itemColumns+` FROM items ORDER BY kind, id`)
}

// Prune deletes every row whose source is not kept and returns the number
// of removed rows. It removes items of files deleted while nothing watched.
func (s *Items) Prune(ctx context.Context, keep func(source string) bool) (int, error) {
	sources, err := s.repo.sources(ctx)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, src := range sources {
		if keep(src) {
			continue
		}
		ids, err := s.repo.deleteSource(ctx, src)
		if err != nil {
			return removed, err
		}
		s.invalidate(ctx, ids...)
		removed += len(ids)
	}
	if removed > 0 {
		log.Info(log.CatStore, "Pruned stale items", "count", removed)
	}
	return removed, nil
}

func (s *Items) invalidate(ctx context.Context, ids ...string) {
	if err := s.reader.Invalidate(ctx, ids...); err != nil {
		log.ErrorErr(log.CatStore, "Invalidating cache failed", err, "ids", ids)
	}
}
