//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/kbase/internal/domain"
	"github.com/cloo-solutions/kbase/internal/pagination"
	"github.com/cloo-solutions/kbase/internal/testutil"
)

func newStoredDocument(ctx context.Context, t *testing.T, repo *DocumentRepository, kbID, name string) *domain.Document {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	doc := domain.NewDocument(uuid.NewString(), name, kbID, "tester", now)
	require.NoError(t, repo.Create(ctx, doc))
	return doc
}

func TestDocumentRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewDocumentRepository(pool)
	doc := newStoredDocument(ctx, t, repo, "kb1", "manual.pdf")

	got, err := repo.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, got.ID)
	assert.Equal(t, "manual.pdf", got.Name)
	assert.Equal(t, "kb1", got.KBID)
	assert.Equal(t, domain.DocumentStatusEnabled, got.Status)
	assert.Empty(t, got.Error)
}

func TestDocumentRepository_GetByIDNotFound(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewDocumentRepository(pool)
	_, err := repo.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}

func TestDocumentRepository_ListByKB(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewDocumentRepository(pool)
	for i := 0; i < 5; i++ {
		newStoredDocument(ctx, t, repo, "kb1", "doc")
	}
	newStoredDocument(ctx, t, repo, "kb2", "other")

	items, total, err := repo.ListByKB(ctx, "kb1", "created_at", true, pagination.Page{Page: 1, PerPage: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Len(t, items, 3)

	items, total, err = repo.ListByKB(ctx, "kb1", "created_at", true, pagination.Page{Page: 2, PerPage: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	assert.Len(t, items, 2)

	// Prefixed wire keys map onto the underlying columns.
	newStoredDocument(ctx, t, repo, "kb1", "aardvark")
	items, _, err = repo.ListByKB(ctx, "kb1", "document_name", false, pagination.Page{Page: 1, PerPage: 10})
	require.NoError(t, err)
	assert.Equal(t, "aardvark", items[0].Name)

	_, _, err = repo.ListByKB(ctx, "kb1", "document_order", false, pagination.Page{Page: 1, PerPage: 10})
	require.NoError(t, err)
}

func TestDocumentRepository_ListByKBRejectsUnknownOrderColumn(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewDocumentRepository(pool)
	_, _, err := repo.ListByKB(ctx, "kb1", "password; DROP TABLE documents", false, pagination.Page{Page: 1, PerPage: 10})
	assert.ErrorIs(t, err, domain.ErrInvalidOrderColumn)
}

func TestDocumentRepository_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewDocumentRepository(pool)
	doc := newStoredDocument(ctx, t, repo, "kb1", "manual.pdf")

	require.NoError(t, repo.UpdateStatus(ctx, doc.ID, domain.DocumentStatusDisabled, "admin"))

	got, err := repo.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentStatusDisabled, got.Status)
	assert.Equal(t, "admin", got.UpdatedBy)

	err = repo.UpdateStatus(ctx, uuid.NewString(), domain.DocumentStatusDisabled, "admin")
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}

func TestDocumentRepository_MarkFailed(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewDocumentRepository(pool)
	doc := newStoredDocument(ctx, t, repo, "kb1", "broken.docx")

	require.NoError(t, repo.MarkFailed(ctx, doc.ID, "unsupported encoding"))

	got, err := repo.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentStatusFailed, got.Status)
	assert.Equal(t, "unsupported encoding", got.Error)
}

func TestDocumentRepository_Delete(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewDocumentRepository(pool)
	doc := newStoredDocument(ctx, t, repo, "kb1", "manual.pdf")

	require.NoError(t, repo.Delete(ctx, doc.ID))
	_, err := repo.GetByID(ctx, doc.ID)
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)

	err = repo.Delete(ctx, doc.ID)
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}
