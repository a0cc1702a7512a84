// Package jobsinfra is the PostgreSQL implementation of jobs.Repository.
package jobsinfra

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/screencraft/api/pkg/errx"
	"github.com/screencraft/api/pkg/jobs"
	"github.com/screencraft/api/pkg/kernel"
	"github.com/screencraft/api/pkg/ptrx"
)

type PostgresJobRepository struct {
	db *sqlx.DB
}

func NewPostgresJobRepository(db *sqlx.DB) jobs.Repository {
	return &PostgresJobRepository{db: db}
}

// jobPersistence mirrors the jobs table. html/headers/cookies have no
// columns here at all — the privacy filter (§13) runs before a Job value
// ever reaches this package, not after.
type jobPersistence struct {
	ID          string     `db:"id"`
	TenantID    string     `db:"tenant_id"`
	Kind        string     `db:"kind"`
	Status      string     `db:"status"`
	SourceKind  string     `db:"source_kind"`
	SourceURL   *string    `db:"source_url"`
	Format      string     `db:"format"`
	URLHash     *string    `db:"url_hash"`
	URLDomain   *string    `db:"url_domain"`
	StorageKey  *string    `db:"storage_key"`
	DownloadURL *string    `db:"download_url"`
	FileSize    *int64     `db:"file_size"`
	PageCount   *int       `db:"page_count"`
	Error       *string    `db:"error"`
	WebhookURL  *string    `db:"webhook_url"`
	ExpiresAt   time.Time  `db:"expires_at"`
	CreatedAt   time.Time  `db:"created_at"`
	CompletedAt *time.Time `db:"completed_at"`
}

// toPersistence converts a domain Job to its nullable-column shape.
// database/sql scans NULL straight into a nil *T, and ptrx.String/Int64/Int
// are the pack's own allocate-a-pointer helpers, so the "only store a
// pointer when the field is actually set" guard is the only hand-rolled
// part left here.
func toPersistence(j jobs.Job) jobPersistence {
	p := jobPersistence{
		ID:          j.ID.String(),
		TenantID:    j.TenantID.String(),
		Kind:        string(j.Kind),
		Status:      string(j.Status),
		SourceKind:  string(j.SourceKind),
		Format:      j.Format,
		ExpiresAt:   j.ExpiresAt,
		CreatedAt:   j.CreatedAt,
		CompletedAt: j.CompletedAt,
	}
	if j.SourceURL != "" {
		p.SourceURL = ptrx.String(j.SourceURL)
	}
	if j.URLHash != "" {
		p.URLHash = ptrx.String(j.URLHash)
	}
	if j.URLDomain != "" {
		p.URLDomain = ptrx.String(j.URLDomain)
	}
	if j.StorageKey != "" {
		p.StorageKey = ptrx.String(j.StorageKey)
	}
	if j.DownloadURL != "" {
		p.DownloadURL = ptrx.String(j.DownloadURL)
	}
	if j.FileSize != 0 {
		p.FileSize = ptrx.Int64(j.FileSize)
	}
	if j.PageCount != 0 {
		p.PageCount = ptrx.Int(j.PageCount)
	}
	if j.Error != "" {
		p.Error = ptrx.String(j.Error)
	}
	if j.WebhookURL != "" {
		p.WebhookURL = ptrx.String(j.WebhookURL)
	}
	return p
}

// toDomain is the inverse conversion: every nullable column falls back to
// its Go zero value via ptrx's ValueOr helpers instead of a per-field
// Valid check.
func toDomain(p jobPersistence) jobs.Job {
	return jobs.Job{
		ID:          kernel.NewJobID(p.ID),
		TenantID:    kernel.NewTenantID(p.TenantID),
		Kind:        jobs.Kind(p.Kind),
		Status:      jobs.Status(p.Status),
		SourceKind:  jobs.SourceKind(p.SourceKind),
		SourceURL:   ptrx.StringValueOr(p.SourceURL, ""),
		Format:      p.Format,
		URLHash:     ptrx.StringValueOr(p.URLHash, ""),
		URLDomain:   ptrx.StringValueOr(p.URLDomain, ""),
		StorageKey:  ptrx.StringValueOr(p.StorageKey, ""),
		DownloadURL: ptrx.StringValueOr(p.DownloadURL, ""),
		FileSize:    ptrx.Int64ValueOr(p.FileSize, 0),
		PageCount:   ptrx.IntValueOr(p.PageCount, 0),
		Error:       ptrx.StringValueOr(p.Error, ""),
		WebhookURL:  ptrx.StringValueOr(p.WebhookURL, ""),
		ExpiresAt:   p.ExpiresAt,
		CreatedAt:   p.CreatedAt,
		CompletedAt: p.CompletedAt,
	}
}

func (r *PostgresJobRepository) Create(ctx context.Context, j jobs.Job) error {
	query := `
		INSERT INTO jobs (id, tenant_id, kind, status, source_kind, source_url, format, url_hash, url_domain,
		                   storage_key, download_url, file_size, page_count, error, webhook_url, expires_at, created_at, completed_at)
		VALUES (:id, :tenant_id, :kind, :status, :source_kind, :source_url, :format, :url_hash, :url_domain,
		        :storage_key, :download_url, :file_size, :page_count, :error, :webhook_url, :expires_at, :created_at, :completed_at)`
	_, err := r.db.NamedExecContext(ctx, query, toPersistence(j))
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return errx.Conflict("job id collision").WithDetail("job_id", j.ID.String())
		}
		return errx.Wrap(err, "failed to create job", errx.TypeInternal)
	}
	return nil
}

func (r *PostgresJobRepository) FindByIDAndTenant(ctx context.Context, id kernel.JobID, tenantID kernel.TenantID) (*jobs.Job, error) {
	var p jobPersistence
	err := r.db.GetContext(ctx, &p, `SELECT * FROM jobs WHERE id = $1 AND tenant_id = $2`, id.String(), tenantID.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, jobs.ErrNotFound()
		}
		return nil, errx.Wrap(err, "failed to find job", errx.TypeInternal)
	}
	j := toDomain(p)
	return &j, nil
}

// listRow adds the window-function total so a single round trip returns
// both the page and the count in one statement (§4.6's "one transaction").
type listRow struct {
	jobPersistence
	Total int `db:"total_count"`
}

var sortColumns = map[string]string{
	"created_at":   "created_at",
	"completed_at": "completed_at",
}

func (r *PostgresJobRepository) ListByTenant(ctx context.Context, tenantID kernel.TenantID, filter jobs.ListFilter, page kernel.PaginationOptions) (kernel.Paginated[*jobs.Job], error) {
	sortCol, ok := sortColumns[filter.SortBy]
	if !ok {
		sortCol = "created_at"
	}
	order := "DESC"
	if filter.SortOrder == "asc" {
		order = "ASC"
	}

	where := "WHERE tenant_id = $1"
	args := []interface{}{tenantID.String()}
	argN := 2
	if filter.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", argN)
		args = append(args, string(filter.Status))
		argN++
	}
	if filter.Kind != "" {
		where += fmt.Sprintf(" AND kind = $%d", argN)
		args = append(args, string(filter.Kind))
		argN++
	}

	limit := page.PageSize
	offset := (page.Page - 1) * page.PageSize
	query := fmt.Sprintf(
		`SELECT *, COUNT(*) OVER() AS total_count FROM jobs %s ORDER BY %s %s LIMIT $%d OFFSET $%d`,
		where, sortCol, order, argN, argN+1,
	)
	args = append(args, limit, offset)

	var rows []listRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return kernel.Paginated[*jobs.Job]{}, errx.Wrap(err, "failed to list jobs", errx.TypeInternal)
	}

	total := 0
	items := make([]*jobs.Job, 0, len(rows))
	for _, row := range rows {
		if row.Total > total {
			total = row.Total
		}
		j := toDomain(row.jobPersistence)
		items = append(items, &j)
	}

	return kernel.NewPaginated(items, page.Page, page.PageSize, total), nil
}

func (r *PostgresJobRepository) DeleteByIDAndTenant(ctx context.Context, id kernel.JobID, tenantID kernel.TenantID) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = $1 AND tenant_id = $2`, id.String(), tenantID.String())
	if err != nil {
		return false, errx.Wrap(err, "failed to delete job", errx.TypeInternal)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

func (r *PostgresJobRepository) Save(ctx context.Context, j jobs.Job) error {
	query := `
		UPDATE jobs SET
			status = :status, storage_key = :storage_key, download_url = :download_url,
			file_size = :file_size, page_count = :page_count, error = :error, completed_at = :completed_at
		WHERE id = :id AND tenant_id = :tenant_id`
	result, err := r.db.NamedExecContext(ctx, query, toPersistence(j))
	if err != nil {
		return errx.Wrap(err, "failed to update job", errx.TypeInternal)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return jobs.ErrNotFound()
	}
	return nil
}

// FindPending is the worker's polling query, tenant-blind by design.
func (r *PostgresJobRepository) FindPending(ctx context.Context, limit int) ([]*jobs.Job, error) {
	var rows []jobPersistence
	err := r.db.SelectContext(ctx, &rows, `SELECT * FROM jobs WHERE status = $1 ORDER BY created_at ASC LIMIT $2`, jobs.StatusPending, limit)
	if err != nil {
		return nil, errx.Wrap(err, "failed to find pending jobs", errx.TypeInternal)
	}
	out := make([]*jobs.Job, len(rows))
	for i, p := range rows {
		j := toDomain(p)
		out[i] = &j
	}
	return out, nil
}

// CleanupExpired prunes rows past their retention horizon (§3, §4.6).
func (r *PostgresJobRepository) CleanupExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM jobs WHERE expires_at < NOW()`)
	if err != nil {
		return 0, errx.Wrap(err, "failed to clean up expired jobs", errx.TypeInternal)
	}
	n, _ := result.RowsAffected()
	return n, nil
}
