package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"servehours.org/internal/auth"
	"servehours.org/internal/hours"
)

// Store implements hours.Store and auth.ProfileStore on PostgreSQL.
type Store struct {
	db *sql.DB
}

var (
	_ hours.Store        = (*Store)(nil)
	_ auth.ProfileStore  = (*Store)(nil)
	_ auth.ProfileWriter = (*Store)(nil)
)

// Open connects with tuned pool defaults; adjust under load tests.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// New wraps an existing connection (used by tests).
func New(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

const entryColumns = `id, user_id, date, hours,
		coalesce(custom_title,''), coalesce(description,''), coalesce(proof_url,''),
		coalesce(opportunity_id,''), status, submitted_at`

func (s *Store) Insert(ctx context.Context, e *hours.Entry) error {
	_, err := s.db.ExecContext(ctx, `
		insert into hours(id, user_id, date, hours, custom_title, description, proof_url, opportunity_id, status, submitted_at)
		values ($1,$2,$3,$4,nullif($5,''),nullif($6,''),nullif($7,''),nullif($8,''),$9,$10)
	`, e.ID, e.UserID, e.Date, e.Hours, e.CustomTitle, e.Description, e.ProofURL, e.OpportunityID, string(e.Status), e.SubmittedAt)
	return err
}

func (s *Store) Get(ctx context.Context, id string) (hours.Entry, error) {
	row := s.db.QueryRowContext(ctx, `select `+entryColumns+` from hours where id=$1`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return hours.Entry{}, hours.ErrNotFound
	}
	return entry, err
}

func (s *Store) ListPending(ctx context.Context, filter hours.PendingFilter) ([]hours.Entry, error) {
	query := `select ` + entryColumns + ` from hours where status='pending'`
	args := []any{}
	if filter.OpportunityID != "" {
		query += ` and opportunity_id=$1`
		args = append(args, filter.OpportunityID)
	}
	query += ` order by submitted_at desc`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEntries(rows)
}

func (s *Store) ListByUser(ctx context.Context, userID string) ([]hours.Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+entryColumns+` from hours where user_id=$1 order by submitted_at desc`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEntries(rows)
}

// Archive writes the snapshot and removes the active row in one transaction.
// The row lock doubles as the concurrency guard: when the active row is gone
// the racing reviewer gets hours.ErrNotPending and no second archive row is
// ever written.
func (s *Store) Archive(ctx context.Context, rec hours.Archived) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var dummy int
	err = tx.QueryRowContext(ctx, `select 1 from hours where id=$1 for update`, rec.OriginalHoursID).Scan(&dummy)
	if errors.Is(err, sql.ErrNoRows) {
		return hours.ErrNotPending
	}
	if err != nil {
		return err
	}

	var approvedAt sql.NullTime
	if rec.ApprovedAt != nil {
		approvedAt = sql.NullTime{Time: *rec.ApprovedAt, Valid: true}
	}
	if _, err := tx.ExecContext(ctx, `
		insert into previous_hours(id, original_hours_id, user_id, date, hours, custom_title, description, proof_url,
			status, review_comment, admin_signature, submitted_at, approved_by, approved_at, processed_at)
		values ($1,$2,$3,$4,$5,nullif($6,''),nullif($7,''),nullif($8,''),$9,nullif($10,''),$11,$12,$13,$14,$15)
	`, rec.ID, rec.OriginalHoursID, rec.UserID, rec.Date, rec.Hours, rec.CustomTitle, rec.Description, rec.ProofURL,
		string(rec.Status), rec.ReviewComment, rec.AdminSignature, rec.SubmittedAt, rec.ApprovedBy, approvedAt, rec.ProcessedAt); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `delete from hours where id=$1`, rec.OriginalHoursID); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) ListArchivedByUser(ctx context.Context, userID string) ([]hours.Archived, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, original_hours_id, user_id, date, hours,
			coalesce(custom_title,''), coalesce(description,''), coalesce(proof_url,''),
			status, coalesce(review_comment,''), coalesce(admin_signature,''),
			submitted_at, coalesce(approved_by,''), approved_at, processed_at
		from previous_hours where user_id=$1 order by processed_at desc
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []hours.Archived
	for rows.Next() {
		var rec hours.Archived
		var status string
		var approvedAt sql.NullTime
		if err := rows.Scan(&rec.ID, &rec.OriginalHoursID, &rec.UserID, &rec.Date, &rec.Hours,
			&rec.CustomTitle, &rec.Description, &rec.ProofURL,
			&status, &rec.ReviewComment, &rec.AdminSignature,
			&rec.SubmittedAt, &rec.ApprovedBy, &approvedAt, &rec.ProcessedAt); err != nil {
			return nil, err
		}
		rec.Status = hours.Status(status)
		if approvedAt.Valid {
			t := approvedAt.Time
			rec.ApprovedAt = &t
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

func (s *Store) ApprovedTotal(ctx context.Context, userID string) (float64, error) {
	var total float64
	err := s.db.QueryRowContext(ctx,
		`select coalesce(sum(hours),0) from previous_hours where user_id=$1 and status='approved'`,
		userID).Scan(&total)
	return total, err
}

func (s *Store) ReconcileArchived(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`delete from hours h using previous_hours p where p.original_hours_id = h.id`)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// Save implements auth.ProfileWriter: sign-up provisioning and seeded
// reviewer promotion both land here. The hours foreign keys require the
// users row to exist before the first submission.
func (s *Store) Save(ctx context.Context, p auth.Profile) error {
	_, err := s.db.ExecContext(ctx, `
		insert into users(id, email, full_name, grade, is_admin, opportunity_id)
		values ($1,$2,$3,$4,$5,nullif($6,''))
		on conflict (id) do update set
			email=excluded.email, full_name=excluded.full_name, grade=excluded.grade,
			is_admin=excluded.is_admin, opportunity_id=excluded.opportunity_id
	`, p.ID, p.Email, p.FullName, p.Grade, p.IsAdmin, p.OpportunityID)
	return err
}

// Find implements auth.ProfileStore.
func (s *Store) Find(ctx context.Context, id string) (*auth.Profile, error) {
	row := s.db.QueryRowContext(ctx, `
		select id, email, full_name, grade, coalesce(is_admin,false), coalesce(opportunity_id,'')
		from users where id=$1
	`, id)
	var p auth.Profile
	if err := row.Scan(&p.ID, &p.Email, &p.FullName, &p.Grade, &p.IsAdmin, &p.OpportunityID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (hours.Entry, error) {
	var e hours.Entry
	var status string
	err := row.Scan(&e.ID, &e.UserID, &e.Date, &e.Hours,
		&e.CustomTitle, &e.Description, &e.ProofURL,
		&e.OpportunityID, &status, &e.SubmittedAt)
	if err != nil {
		return hours.Entry{}, err
	}
	e.Status = hours.Status(status)
	return e, nil
}

func collectEntries(rows *sql.Rows) ([]hours.Entry, error) {
	var res []hours.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, entry)
	}
	return res, rows.Err()
}
