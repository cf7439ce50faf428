package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/cuongbtq/tolkbooking/internal/booking/domain"
)

//go:embed schema/*.sql
var schemaFS embed.FS

const uniqueViolation = "23505"

const jobColumns = `
	id, user_id, status, job_type, from_language_id, immediate, due, duration,
	COALESCE(gender, '') AS gender, COALESCE(certified, '') AS certified,
	customer_phone_type, customer_physical_type, town, admin_comments, session_time,
	flagged, manually_handled, by_admin, reference, user_email, specific_translator_id,
	email_sent, email_sent_tovirpal, cust_16_hour_email, cust_48_hour_email,
	created_at, updated_at, will_expire_at, end_at, withdraw_at`

const userSelect = `
	SELECT u.id, u.user_type, u.enabled, u.email, u.name, u.mobile,
	       COALESCE(m.consumer_type, '') AS consumer_type,
	       COALESCE(m.translator_type, '') AS translator_type,
	       COALESCE(m.translator_level, '') AS translator_level,
	       COALESCE(m.gender, '') AS gender,
	       COALESCE(m.city, '') AS city,
	       COALESCE(m.not_get_emergency, '') AS not_get_emergency,
	       COALESCE(m.not_get_nighttime, '') AS not_get_nighttime,
	       COALESCE(m.not_get_notification, '') AS not_get_notification,
	       ARRAY(SELECT ul.language_id FROM user_languages ul
	             WHERE ul.user_id = u.id ORDER BY ul.language_id) AS languages
	FROM users u
	LEFT JOIN user_meta m ON m.user_id = u.id`

const assignmentColumns = `id, job_id, user_id, created_at, cancel_at, completed_at, completed_by`

// userRow flattens a user with its meta row and language ids.
type userRow struct {
	ID                 int64                  `db:"id"`
	Type               domain.UserType        `db:"user_type"`
	Enabled            bool                   `db:"enabled"`
	Email              string                 `db:"email"`
	Name               string                 `db:"name"`
	Mobile             string                 `db:"mobile"`
	ConsumerType       string                 `db:"consumer_type"`
	TranslatorType     domain.TranslatorType  `db:"translator_type"`
	TranslatorLevel    domain.TranslatorLevel `db:"translator_level"`
	Gender             domain.Gender          `db:"gender"`
	City               string                 `db:"city"`
	NotGetEmergency    string                 `db:"not_get_emergency"`
	NotGetNighttime    string                 `db:"not_get_nighttime"`
	NotGetNotification string                 `db:"not_get_notification"`
	Languages          pq.Int64Array          `db:"languages"`
}

func (r *userRow) toDomain() *domain.User {
	return &domain.User{
		ID:      r.ID,
		Type:    r.Type,
		Enabled: r.Enabled,
		Email:   r.Email,
		Name:    r.Name,
		Mobile:  r.Mobile,
		Meta: domain.UserMeta{
			UserID:             r.ID,
			ConsumerType:       r.ConsumerType,
			TranslatorType:     r.TranslatorType,
			TranslatorLevel:    r.TranslatorLevel,
			Gender:             r.Gender,
			City:               r.City,
			NotGetEmergency:    r.NotGetEmergency,
			NotGetNighttime:    r.NotGetNighttime,
			NotGetNotification: r.NotGetNotification,
		},
		Languages: []int64(r.Languages),
	}
}

// Postgres is a Store backed by PostgreSQL. Per-job serialization uses SELECT ... FOR UPDATE
// and the partial unique index on active assignments.
type Postgres struct {
	pgRepo
	db     *sqlx.DB
	logger *slog.Logger
}

// NewPostgres creates a new Postgres store
func NewPostgres(db *sqlx.DB, logger *slog.Logger) *Postgres {
	return &Postgres{
		pgRepo: pgRepo{q: db, logger: logger},
		db:     db,
		logger: logger,
	}
}

// Migrate applies the embedded schema files in name order. Every statement is idempotent.
func (p *Postgres) Migrate(ctx context.Context) error {
	entries, err := fs.ReadDir(schemaFS, "schema")
	if err != nil {
		return fmt.Errorf("failed to read schema: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		body, err := schemaFS.ReadFile("schema/" + name)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", name, err)
		}
		if _, err := p.db.ExecContext(ctx, string(body)); err != nil {
			return fmt.Errorf("failed to apply %s: %w", name, err)
		}
		p.logger.Info("Schema applied", slog.String("file", name))
	}
	return nil
}

// WithJobLock implements Store.
func (p *Postgres) WithJobLock(ctx context.Context, jobID int64, fn func(ctx context.Context, repo Repository) error) (err error) {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				p.logger.Error("Failed to rollback transaction",
					slog.Int64("job_id", jobID),
					slog.Any("error", rbErr),
				)
			}
		}
	}()

	var locked int64
	err = tx.QueryRowxContext(ctx, `SELECT id FROM jobs WHERE id = $1 FOR UPDATE`, jobID).Scan(&locked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NotFoundf("job %d", jobID)
		}
		return fmt.Errorf("failed to lock job: %w", err)
	}

	if err = fn(ctx, &pgRepo{q: tx, logger: p.logger}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// pgRepo runs repository queries on either the pool or an open transaction.
type pgRepo struct {
	q      sqlx.ExtContext
	logger *slog.Logger
}

func (r *pgRepo) FindJob(ctx context.Context, id int64) (*domain.Job, error) {
	var job domain.Job
	err := sqlx.GetContext(ctx, r.q, &job, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFoundf("job %d", id)
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

func (r *pgRepo) findUser(ctx context.Context, cond string, arg any, label string) (*domain.User, error) {
	var row userRow
	err := sqlx.GetContext(ctx, r.q, &row, userSelect+` WHERE `+cond, arg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFoundf("user %s", label)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return row.toDomain(), nil
}

func (r *pgRepo) FindUser(ctx context.Context, id int64) (*domain.User, error) {
	return r.findUser(ctx, `u.id = $1`, id, fmt.Sprint(id))
}

func (r *pgRepo) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findUser(ctx, `LOWER(u.email) = LOWER($1)`, email, fmt.Sprintf("%q", email))
}

func (r *pgRepo) findAssignment(ctx context.Context, query string, jobID int64) (*domain.Assignment, error) {
	var a domain.Assignment
	err := sqlx.GetContext(ctx, r.q, &a, query, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}
	return &a, nil
}

func (r *pgRepo) FindActiveAssignment(ctx context.Context, jobID int64) (*domain.Assignment, error) {
	return r.findAssignment(ctx, `
		SELECT `+assignmentColumns+`
		FROM translator_assignments
		WHERE job_id = $1 AND cancel_at IS NULL AND completed_at IS NULL`, jobID)
}

func (r *pgRepo) FindLatestAssignment(ctx context.Context, jobID int64) (*domain.Assignment, error) {
	return r.findAssignment(ctx, `
		SELECT `+assignmentColumns+`
		FROM translator_assignments
		WHERE job_id = $1
		ORDER BY id DESC
		LIMIT 1`, jobID)
}

// where accumulates positional predicates.
type where struct {
	clauses []string
	args    []any
}

func (w *where) add(clause string, arg any) {
	w.args = append(w.args, arg)
	w.clauses = append(w.clauses, fmt.Sprintf(clause, len(w.args)))
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

func (r *pgRepo) FilterUsers(ctx context.Context, criteria UserCriteria) ([]*domain.User, error) {
	var w where
	if criteria.Type != "" {
		w.add("u.user_type = $%d", string(criteria.Type))
	}
	if criteria.TranslatorType != "" {
		w.add("m.translator_type = $%d", string(criteria.TranslatorType))
	}
	if criteria.LanguageID != 0 {
		w.add("EXISTS (SELECT 1 FROM user_languages ul WHERE ul.user_id = u.id AND ul.language_id = $%d)", criteria.LanguageID)
	}
	if criteria.EnabledOnly {
		w.clauses = append(w.clauses, "u.enabled")
	}

	var rows []userRow
	if err := sqlx.SelectContext(ctx, r.q, &rows, userSelect+w.String()+` ORDER BY u.id`, w.args...); err != nil {
		return nil, fmt.Errorf("failed to filter users: %w", err)
	}
	users := make([]*domain.User, 0, len(rows))
	for i := range rows {
		users = append(users, rows[i].toDomain())
	}
	return users, nil
}

func (r *pgRepo) FilterJobs(ctx context.Context, criteria JobCriteria) ([]*domain.Job, error) {
	var w where
	if len(criteria.Statuses) > 0 {
		statuses := make([]string, len(criteria.Statuses))
		for i, s := range criteria.Statuses {
			statuses[i] = string(s)
		}
		w.add("status = ANY($%d)", pq.Array(statuses))
	}
	if criteria.JobType != "" {
		w.add("job_type = $%d", string(criteria.JobType))
	}
	if len(criteria.LanguageIDs) > 0 {
		w.add("from_language_id = ANY($%d)", pq.Array(criteria.LanguageIDs))
	}
	if !criteria.DueAfter.IsZero() {
		w.add("due > $%d", criteria.DueAfter)
	}
	if !criteria.ExpiresBefore.IsZero() {
		w.add("will_expire_at < $%d", criteria.ExpiresBefore)
	}

	var jobs []*domain.Job
	if err := sqlx.SelectContext(ctx, r.q, &jobs, `SELECT `+jobColumns+` FROM jobs`+w.String()+` ORDER BY due`, w.args...); err != nil {
		return nil, fmt.Errorf("failed to filter jobs: %w", err)
	}
	return jobs, nil
}

func (r *pgRepo) FilterAssignments(ctx context.Context, criteria AssignmentCriteria) ([]*domain.Assignment, error) {
	var w where
	if criteria.UserID != 0 {
		w.add("user_id = $%d", criteria.UserID)
	}
	if criteria.JobID != 0 {
		w.add("job_id = $%d", criteria.JobID)
	}
	if criteria.ActiveOnly {
		w.clauses = append(w.clauses, "cancel_at IS NULL AND completed_at IS NULL")
	}

	var out []*domain.Assignment
	query := `SELECT ` + assignmentColumns + ` FROM translator_assignments` + w.String() + ` ORDER BY id`
	if err := sqlx.SelectContext(ctx, r.q, &out, query, w.args...); err != nil {
		return nil, fmt.Errorf("failed to filter assignments: %w", err)
	}
	return out, nil
}

func (r *pgRepo) Blacklist(ctx context.Context, customerID int64) ([]int64, error) {
	var ids []int64
	err := sqlx.SelectContext(ctx, r.q, &ids,
		`SELECT translator_id FROM user_blacklist WHERE customer_id = $1 ORDER BY translator_id`, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get blacklist: %w", err)
	}
	return ids, nil
}

func (r *pgRepo) LanguageName(ctx context.Context, languageID int64) (string, error) {
	var name string
	err := sqlx.GetContext(ctx, r.q, &name, `SELECT name FROM languages WHERE id = $1`, languageID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.NotFoundf("language %d", languageID)
		}
		return "", fmt.Errorf("failed to get language: %w", err)
	}
	return name, nil
}

func (r *pgRepo) CreateJob(ctx context.Context, job *domain.Job) error {
	query := `
		INSERT INTO jobs (
			user_id, status, job_type, from_language_id, immediate, due, duration, gender, certified,
			customer_phone_type, customer_physical_type, town, admin_comments, session_time,
			flagged, manually_handled, by_admin, reference, user_email, specific_translator_id,
			email_sent, email_sent_tovirpal, cust_16_hour_email, cust_48_hour_email,
			created_at, updated_at, will_expire_at, end_at, withdraw_at
		) VALUES (
			:user_id, :status, :job_type, :from_language_id, :immediate, :due, :duration,
			NULLIF(:gender, ''), NULLIF(:certified, ''),
			:customer_phone_type, :customer_physical_type, :town, :admin_comments, :session_time,
			:flagged, :manually_handled, :by_admin, :reference, :user_email, :specific_translator_id,
			:email_sent, :email_sent_tovirpal, :cust_16_hour_email, :cust_48_hour_email,
			:created_at, :updated_at, :will_expire_at, :end_at, :withdraw_at
		)
		RETURNING id
	`
	rows, err := sqlx.NamedQueryContext(ctx, r.q, query, job)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	defer rows.Close()
	if !rows.Next() {
		return fmt.Errorf("failed to create job: %w", rows.Err())
	}
	if err := rows.Scan(&job.ID); err != nil {
		return fmt.Errorf("failed to read job id: %w", err)
	}

	r.logger.Info("Job created", slog.Int64("job_id", job.ID), slog.String("status", string(job.Status)))
	return nil
}

func (r *pgRepo) SaveJob(ctx context.Context, job *domain.Job) error {
	query := `
		UPDATE jobs SET
			status = :status, job_type = :job_type, from_language_id = :from_language_id,
			immediate = :immediate, due = :due, duration = :duration,
			gender = NULLIF(:gender, ''), certified = NULLIF(:certified, ''),
			customer_phone_type = :customer_phone_type, customer_physical_type = :customer_physical_type,
			town = :town, admin_comments = :admin_comments, session_time = :session_time,
			flagged = :flagged, manually_handled = :manually_handled, by_admin = :by_admin,
			reference = :reference, user_email = :user_email, specific_translator_id = :specific_translator_id,
			email_sent = :email_sent, email_sent_tovirpal = :email_sent_tovirpal,
			cust_16_hour_email = :cust_16_hour_email, cust_48_hour_email = :cust_48_hour_email,
			created_at = :created_at, updated_at = :updated_at, will_expire_at = :will_expire_at,
			end_at = :end_at, withdraw_at = :withdraw_at
		WHERE id = :id
	`
	result, err := sqlx.NamedExecContext(ctx, r.q, query, job)
	if err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return domain.NotFoundf("job %d", job.ID)
	}
	return nil
}

func (r *pgRepo) CreateAssignment(ctx context.Context, a *domain.Assignment) error {
	query := `
		INSERT INTO translator_assignments (job_id, user_id, created_at, cancel_at, completed_at, completed_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err := r.q.QueryRowxContext(ctx, query, a.JobID, a.UserID, a.CreatedAt, a.CancelAt, a.CompletedAt, a.CompletedBy).Scan(&a.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("job %d: %w", a.JobID, domain.ErrAlreadyAssigned)
		}
		return fmt.Errorf("failed to create assignment: %w", err)
	}

	r.logger.Info("Assignment created",
		slog.Int64("assignment_id", a.ID),
		slog.Int64("job_id", a.JobID),
		slog.Int64("user_id", a.UserID),
	)
	return nil
}

func (r *pgRepo) SaveAssignment(ctx context.Context, a *domain.Assignment) error {
	query := `
		UPDATE translator_assignments
		SET user_id = $2, cancel_at = $3, completed_at = $4, completed_by = $5
		WHERE id = $1
	`
	result, err := r.q.ExecContext(ctx, query, a.ID, a.UserID, a.CancelAt, a.CompletedAt, a.CompletedBy)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("job %d: %w", a.JobID, domain.ErrAlreadyAssigned)
		}
		return fmt.Errorf("failed to save assignment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return domain.NotFoundf("assignment %d", a.ID)
	}
	return nil
}

func (r *pgRepo) AppendAudit(ctx context.Context, entry *domain.AuditEntry) error {
	diff, err := json.Marshal(entry.Diff)
	if err != nil {
		return fmt.Errorf("failed to marshal diff: %w", err)
	}
	query := `
		INSERT INTO job_audit (id, actor_id, job_id, action, diff, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := r.q.ExecContext(ctx, query, entry.ID, entry.ActorID, entry.JobID, entry.Action, diff, entry.CreatedAt); err != nil {
		return fmt.Errorf("failed to append audit: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
