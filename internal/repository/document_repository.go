package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sreesaivardhan/SecureGov-sub000/internal/models"
)

// DocumentFilter narrows and pages document listings.
type DocumentFilter struct {
	Category string
	Status   string
	SortBy   string // upload_date | last_modified | title
	SortDesc bool
	Limit    int
	Offset   int
}

// MaxPageSize caps list pagination.
const MaxPageSize = 100

// DocumentStore owns document records and their permission projections.
// Update is a compare-and-set on (id, last_modified).
type DocumentStore interface {
	Create(ctx context.Context, doc *models.Document) error
	FindByID(ctx context.Context, id string) (*models.Document, error)
	FindVisibleTo(ctx context.Context, userID string, filter DocumentFilter) ([]*models.Document, int, error)
	Update(ctx context.Context, doc *models.Document, expectedLastModified time.Time) error
}

type pgDocumentStore struct {
	pool *pgxpool.Pool
}

func NewDocumentStore(pool *pgxpool.Pool) DocumentStore {
	return &pgDocumentStore{pool: pool}
}

const documentColumns = `id, uploaded_by, title, description, category, tags, classification,
	document_number, issuing_authority, verification_status, issue_date, expiry_date,
	blob_ref, file_name, file_size, content_type, upload_date, last_modified,
	status, deleted_by, deleted_at, permissions, individual_sharing, family_sharing`

func scanDocument(row pgx.Row) (*models.Document, error) {
	d := &models.Document{}
	var tags, permissions, individual, family []byte
	err := row.Scan(
		&d.ID, &d.UploadedBy, &d.Title, &d.Description, &d.Category, &tags, &d.Classification,
		&d.DocumentNumber, &d.IssuingAuthority, &d.VerificationStatus, &d.IssueDate, &d.ExpiryDate,
		&d.BlobRef, &d.FileName, &d.FileSize, &d.ContentType, &d.UploadDate, &d.LastModified,
		&d.Status, &d.DeletedBy, &d.DeletedAt, &permissions, &individual, &family,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(tags, &d.Tags); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(permissions, &d.Permissions); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(individual, &d.IndividualSharing); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(family, &d.FamilySharing); err != nil {
		return nil, err
	}
	if d.IndividualSharing == nil {
		d.IndividualSharing = make(map[string]models.IndividualShare)
	}
	if d.FamilySharing == nil {
		d.FamilySharing = make(map[string]models.FamilyShare)
	}
	return d, nil
}

func documentJSON(d *models.Document) (tags, permissions, individual, family []byte, err error) {
	if d.Tags == nil {
		d.Tags = []string{}
	}
	if tags, err = json.Marshal(d.Tags); err != nil {
		return
	}
	if permissions, err = json.Marshal(d.Permissions); err != nil {
		return
	}
	if individual, err = json.Marshal(d.IndividualSharing); err != nil {
		return
	}
	family, err = json.Marshal(d.FamilySharing)
	return
}

func (r *pgDocumentStore) Create(ctx context.Context, doc *models.Document) error {
	tags, permissions, individual, family, err := documentJSON(doc)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO documents (id, uploaded_by, title, description, category, tags, classification,
			document_number, issuing_authority, verification_status, issue_date, expiry_date,
			blob_ref, file_name, file_size, content_type, upload_date, last_modified,
			status, deleted_by, deleted_at, permissions, individual_sharing, family_sharing)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)
	`
	_, err = r.pool.Exec(ctx, query,
		doc.ID, doc.UploadedBy, doc.Title, doc.Description, doc.Category, tags, doc.Classification,
		doc.DocumentNumber, doc.IssuingAuthority, doc.VerificationStatus, doc.IssueDate, doc.ExpiryDate,
		doc.BlobRef, doc.FileName, doc.FileSize, doc.ContentType, doc.UploadDate, doc.LastModified,
		doc.Status, doc.DeletedBy, doc.DeletedAt, permissions, individual, family,
	)
	return err
}

func (r *pgDocumentStore) FindByID(ctx context.Context, id string) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	return scanDocument(r.pool.QueryRow(ctx, query, id))
}

var sortColumns = map[string]string{
	"upload_date":   "upload_date",
	"last_modified": "last_modified",
	"title":         "title",
}

func (r *pgDocumentStore) FindVisibleTo(ctx context.Context, userID string, filter DocumentFilter) ([]*models.Document, int, error) {
	where := `(uploaded_by = $1 OR permissions -> 'read' ? $1)`
	args := []interface{}{userID}

	status := filter.Status
	if status == "" {
		status = string(models.DocumentStatusActive)
	}
	args = append(args, status)
	where += fmt.Sprintf(" AND status = $%d", len(args))

	if filter.Category != "" {
		args = append(args, filter.Category)
		where += fmt.Sprintf(" AND category = $%d", len(args))
	}

	var total int
	countQuery := `SELECT COUNT(*) FROM documents WHERE ` + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	sortCol, ok := sortColumns[filter.SortBy]
	if !ok {
		sortCol = "upload_date"
	}
	dir := "ASC"
	if filter.SortDesc {
		dir = "DESC"
	}

	limit := filter.Limit
	if limit <= 0 || limit > MaxPageSize {
		limit = MaxPageSize
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	args = append(args, limit, offset)

	query := fmt.Sprintf(`SELECT %s FROM documents WHERE %s ORDER BY %s %s LIMIT $%d OFFSET $%d`,
		documentColumns, where, sortCol, dir, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var docs []*models.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, 0, err
		}
		docs = append(docs, d)
	}
	return docs, total, rows.Err()
}

func (r *pgDocumentStore) Update(ctx context.Context, doc *models.Document, expectedLastModified time.Time) error {
	tags, permissions, individual, family, err := documentJSON(doc)
	if err != nil {
		return err
	}
	query := `
		UPDATE documents
		SET title = $3, description = $4, category = $5, tags = $6, classification = $7,
		    document_number = $8, issuing_authority = $9, verification_status = $10,
		    issue_date = $11, expiry_date = $12, last_modified = $13, status = $14,
		    deleted_by = $15, deleted_at = $16, permissions = $17,
		    individual_sharing = $18, family_sharing = $19
		WHERE id = $1 AND last_modified = $2
	`
	result, err := r.pool.Exec(ctx, query,
		doc.ID, expectedLastModified,
		doc.Title, doc.Description, doc.Category, tags, doc.Classification,
		doc.DocumentNumber, doc.IssuingAuthority, doc.VerificationStatus,
		doc.IssueDate, doc.ExpiryDate, doc.LastModified, doc.Status,
		doc.DeletedBy, doc.DeletedAt, permissions, individual, family,
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}
