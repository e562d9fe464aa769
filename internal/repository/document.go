package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloo-solutions/kbase/internal/domain"
	"github.com/cloo-solutions/kbase/internal/pagination"
)

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx so repositories can
// run inside or outside a transaction.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// documentOrderColumns is the allow-list for the order_by listing
// parameter. Wire keys carry the document_ prefix; the bare column names
// are accepted as aliases.
var documentOrderColumns = map[string]string{
	"created_at":     "created_at",
	"updated_at":     "updated_at",
	"document_name":  "name",
	"document_order": "sort_order",
	"name":           "name",
	"sort_order":     "sort_order",
}

type DocumentRepository struct {
	db dbtx
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: pool}
}

func NewDocumentRepositoryWithTx(tx dbtx) *DocumentRepository {
	return &DocumentRepository{db: tx}
}

func (r *DocumentRepository) Create(ctx context.Context, d *domain.Document) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO documents (id, name, kb_id, status, error, sort_order, created_at, created_by, updated_at, updated_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		d.ID, d.Name, d.KBID, d.Status, nullableString(d.Error), d.Order, d.CreatedAt, d.CreatedBy, d.UpdatedAt, d.UpdatedBy,
	)
	return err
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	var d domain.Document
	var errMsg *string
	err := r.db.QueryRow(ctx,
		`SELECT id, name, kb_id, status, error, sort_order, created_at, created_by, updated_at, updated_by
		 FROM documents WHERE id = $1`,
		id,
	).Scan(&d.ID, &d.Name, &d.KBID, &d.Status, &errMsg, &d.Order, &d.CreatedAt, &d.CreatedBy, &d.UpdatedAt, &d.UpdatedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	if errMsg != nil {
		d.Error = *errMsg
	}
	return &d, nil
}

// ListByKB returns one page of documents for a knowledge base together
// with the total row count. orderBy must name an allow-listed column.
func (r *DocumentRepository) ListByKB(ctx context.Context, kbID, orderBy string, desc bool, page pagination.Page) ([]*domain.Document, int64, error) {
	column, ok := documentOrderColumns[orderBy]
	if !ok {
		if orderBy == "" {
			column = "created_at"
		} else {
			return nil, 0, domain.ErrInvalidOrderColumn
		}
	}
	direction := "ASC"
	if desc {
		direction = "DESC"
	}

	var total int64
	if err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM documents WHERE kb_id = $1`, kbID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(
		`SELECT id, name, kb_id, status, error, sort_order, created_at, created_by, updated_at, updated_by
		 FROM documents WHERE kb_id = $1
		 ORDER BY %s %s, id ASC
		 LIMIT $2 OFFSET $3`,
		column, direction,
	)
	rows, err := r.db.Query(ctx, query, kbID, page.PerPage, page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items, err := scanDocumentRows(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *DocumentRepository) Update(ctx context.Context, d *domain.Document) error {
	d.UpdatedAt = time.Now().UTC()
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE documents SET name = $1, status = $2, error = $3, sort_order = $4, updated_at = $5, updated_by = $6
		 WHERE id = $7`,
		d.Name, d.Status, nullableString(d.Error), d.Order, d.UpdatedAt, d.UpdatedBy, d.ID,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func (r *DocumentRepository) UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, updatedBy string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE documents SET status = $1, updated_at = $2, updated_by = $3 WHERE id = $4`,
		status, time.Now().UTC(), updatedBy, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

// MarkFailed records an ingestion failure on the document row.
func (r *DocumentRepository) MarkFailed(ctx context.Context, id, message string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE documents SET status = $1, error = $2, updated_at = $3 WHERE id = $4`,
		domain.DocumentStatusFailed, nullableString(message), time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func scanDocumentRows(rows pgx.Rows) ([]*domain.Document, error) {
	var results []*domain.Document
	for rows.Next() {
		var d domain.Document
		var errMsg *string
		if err := rows.Scan(&d.ID, &d.Name, &d.KBID, &d.Status, &errMsg, &d.Order, &d.CreatedAt, &d.CreatedBy, &d.UpdatedAt, &d.UpdatedBy); err != nil {
			return nil, err
		}
		if errMsg != nil {
			d.Error = *errMsg
		}
		results = append(results, &d)
	}
	return results, rows.Err()
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
