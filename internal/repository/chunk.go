package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/cloo-solutions/kbase/internal/domain"
	"github.com/cloo-solutions/kbase/internal/pagination"
)

// chunkOrderColumns maps order_by request keys to columns. The wire keys
// carry the chunk_ prefix; sort_order is accepted as an alias since the
// JSON payload field uses that name.
var chunkOrderColumns = map[string]string{
	"created_at":   "created_at",
	"updated_at":   "updated_at",
	"chunk_order":  "sort_order",
	"chunk_status": "status",
	"sort_order":   "sort_order",
}

type ChunkRepository struct {
	db dbtx
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{db: pool}
}

func NewChunkRepositoryWithTx(tx dbtx) *ChunkRepository {
	return &ChunkRepository{db: tx}
}

func (r *ChunkRepository) Create(ctx context.Context, c *domain.Chunk) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO chunks (id, document_id, kb_id, content, status, sort_order, index_state, embedding, created_at, created_by, updated_at, updated_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		c.ID, c.DocumentID, c.KBID, c.Content, c.Status, c.Order, c.IndexState,
		nullableVector(c.Embedding), c.CreatedAt, c.CreatedBy, c.UpdatedAt, c.UpdatedBy,
	)
	return err
}

func (r *ChunkRepository) GetByID(ctx context.Context, id string) (*domain.Chunk, error) {
	var c domain.Chunk
	var embedding *pgvector.Vector
	err := r.db.QueryRow(ctx,
		`SELECT id, document_id, kb_id, content, status, sort_order, index_state, embedding, created_at, created_by, updated_at, updated_by
		 FROM chunks WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.DocumentID, &c.KBID, &c.Content, &c.Status, &c.Order, &c.IndexState,
		&embedding, &c.CreatedAt, &c.CreatedBy, &c.UpdatedAt, &c.UpdatedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrChunkNotFound
		}
		return nil, err
	}
	if embedding != nil {
		c.Embedding = embedding.Slice()
	}
	return &c, nil
}

// Update rewrites the mutable chunk fields. Callers set IndexState
// explicitly so the write and its propagation state land together.
func (r *ChunkRepository) Update(ctx context.Context, c *domain.Chunk) error {
	c.UpdatedAt = time.Now().UTC()
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE chunks SET content = $1, status = $2, sort_order = $3, index_state = $4, embedding = $5, updated_at = $6, updated_by = $7
		 WHERE id = $8`,
		c.Content, c.Status, c.Order, c.IndexState, nullableVector(c.Embedding), c.UpdatedAt, c.UpdatedBy, c.ID,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrChunkNotFound
	}
	return nil
}

func (r *ChunkRepository) UpdateIndexState(ctx context.Context, id string, state domain.IndexStatus) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE chunks SET index_state = $1, updated_at = $2 WHERE id = $3`,
		state, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrChunkNotFound
	}
	return nil
}

func (r *ChunkRepository) UpdateStatus(ctx context.Context, id string, status domain.ChunkStatus, state domain.IndexStatus, updatedBy string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE chunks SET status = $1, index_state = $2, updated_at = $3, updated_by = $4 WHERE id = $5`,
		status, state, time.Now().UTC(), updatedBy, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrChunkNotFound
	}
	return nil
}

// MarkPendingByDocument flags every chunk of a document as awaiting index
// propagation. Used by the document status cascade before the index-side
// metadata writes begin.
func (r *ChunkRepository) MarkPendingByDocument(ctx context.Context, documentID string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE chunks SET index_state = $1, updated_at = $2 WHERE document_id = $3`,
		domain.IndexStatusPendingUpdate, time.Now().UTC(), documentID,
	)
	return err
}

func (r *ChunkRepository) Delete(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM chunks WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrChunkNotFound
	}
	return nil
}

func (r *ChunkRepository) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID)
	return err
}

func (r *ChunkRepository) ListByDocument(ctx context.Context, documentID string) ([]*domain.Chunk, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, document_id, kb_id, content, status, sort_order, index_state, embedding, created_at, created_by, updated_at, updated_by
		 FROM chunks WHERE document_id = $1 ORDER BY sort_order ASC, id ASC`,
		documentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunkRows(rows)
}

// ListByKBPage returns one page of chunks for a knowledge base together
// with the total row count, optionally narrowed to one document.
func (r *ChunkRepository) ListByKBPage(ctx context.Context, kbID, documentID, orderBy string, desc bool, page pagination.Page) ([]*domain.Chunk, int64, error) {
	column, ok := chunkOrderColumns[orderBy]
	if !ok {
		if orderBy == "" {
			column = "sort_order"
		} else {
			return nil, 0, domain.ErrInvalidOrderColumn
		}
	}
	direction := "ASC"
	if desc {
		direction = "DESC"
	}

	where := `kb_id = $1`
	args := []any{kbID}
	if documentID != "" {
		where += ` AND document_id = $2`
		args = append(args, documentID)
	}

	var total int64
	if err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM chunks WHERE `+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(
		`SELECT id, document_id, kb_id, content, status, sort_order, index_state, embedding, created_at, created_by, updated_at, updated_by
		 FROM chunks WHERE %s
		 ORDER BY %s %s, id ASC
		 LIMIT $%d OFFSET $%d`,
		where, column, direction, len(args)+1, len(args)+2,
	)
	args = append(args, page.PerPage, page.Offset())

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items, err := scanChunkRows(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ListOutOfSync returns chunks whose index_state is anything other than
// indexed, oldest first. The reconcile sweep drains this set.
func (r *ChunkRepository) ListOutOfSync(ctx context.Context, limit int) ([]*domain.Chunk, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(ctx,
		`SELECT id, document_id, kb_id, content, status, sort_order, index_state, embedding, created_at, created_by, updated_at, updated_by
		 FROM chunks WHERE index_state <> $1
		 ORDER BY updated_at ASC
		 LIMIT $2`,
		domain.IndexStatusIndexed, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunkRows(rows)
}

// ListAll streams every chunk row, used for the boot-time index rebuild.
func (r *ChunkRepository) ListAll(ctx context.Context) ([]*domain.Chunk, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, document_id, kb_id, content, status, sort_order, index_state, embedding, created_at, created_by, updated_at, updated_by
		 FROM chunks ORDER BY kb_id ASC, document_id ASC, sort_order ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunkRows(rows)
}

func scanChunkRows(rows pgx.Rows) ([]*domain.Chunk, error) {
	var results []*domain.Chunk
	for rows.Next() {
		var c domain.Chunk
		var embedding *pgvector.Vector
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.KBID, &c.Content, &c.Status, &c.Order, &c.IndexState,
			&embedding, &c.CreatedAt, &c.CreatedBy, &c.UpdatedAt, &c.UpdatedBy); err != nil {
			return nil, err
		}
		if embedding != nil {
			c.Embedding = embedding.Slice()
		}
		results = append(results, &c)
	}
	return results, rows.Err()
}

func nullableVector(embedding []float32) *pgvector.Vector {
	if len(embedding) == 0 {
		return nil
	}
	v := pgvector.NewVector(embedding)
	return &v
}
