package pg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"servehours.org/internal/auth"
	"servehours.org/internal/hours"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db), mock
}

func sampleArchived() hours.Archived {
	now := time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC)
	approvedAt := now
	return hours.Archived{
		ID:              "arch-1",
		OriginalHoursID: "entry-1",
		UserID:          "user-1",
		Date:            time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Hours:           2.5,
		CustomTitle:     "Food bank",
		Status:          hours.StatusApproved,
		AdminSignature:  "J. Smith",
		SubmittedAt:     now.Add(-24 * time.Hour),
		ApprovedBy:      "admin-1",
		ApprovedAt:      &approvedAt,
		ProcessedAt:     now,
	}
}

func TestArchiveMovesEntry(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("select 1 from hours where id=.+ for update").
		WithArgs("entry-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectExec("insert into previous_hours").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("delete from hours where id=").
		WithArgs("entry-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := store.Archive(context.Background(), sampleArchived()); err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestArchiveConflictWhenEntryGone(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("select 1 from hours where id=.+ for update").
		WithArgs("entry-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))
	mock.ExpectRollback()

	err := store.Archive(context.Background(), sampleArchived())
	if !errors.Is(err, hours.ErrNotPending) {
		t.Fatalf("expected ErrNotPending, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestArchiveDeleteFailureRollsBack(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("select 1 from hours where id=.+ for update").
		WithArgs("entry-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	mock.ExpectExec("insert into previous_hours").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("delete from hours where id=").
		WithArgs("entry-1").
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := store.Archive(context.Background(), sampleArchived())
	if err == nil || errors.Is(err, hours.ErrNotPending) {
		t.Fatalf("expected store error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListPendingScopedToOpportunity(t *testing.T) {
	store, mock := newMockStore(t)

	submitted := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"id", "user_id", "date", "hours", "custom_title", "description",
		"proof_url", "opportunity_id", "status", "submitted_at",
	}).AddRow("entry-1", "user-1", submitted, 2.5, "Food bank", "", "", "opp-1", "pending", submitted)

	mock.ExpectQuery("from hours where status='pending' and opportunity_id=.+ order by submitted_at desc").
		WithArgs("opp-1").
		WillReturnRows(rows)

	res, err := store.ListPending(context.Background(), hours.PendingFilter{OpportunityID: "opp-1"})
	if err != nil {
		t.Fatalf("ListPending: %v", err)
	}
	if len(res) != 1 || res[0].OpportunityID != "opp-1" || res[0].Status != hours.StatusPending {
		t.Fatalf("unexpected result: %+v", res)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestApprovedTotal(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("from previous_hours where user_id=.+ and status='approved'").
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(7.5))

	total, err := store.ApprovedTotal(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("ApprovedTotal: %v", err)
	}
	if total != 7.5 {
		t.Fatalf("expected 7.5, got %v", total)
	}
}

func TestReconcileArchivedCountsDeletions(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("delete from hours h using previous_hours p").
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := store.ReconcileArchived(context.Background())
	if err != nil {
		t.Fatalf("ReconcileArchived: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 reconciled rows, got %d", n)
	}
}

func TestSaveProfileUpserts(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("(?s)insert into users.+on conflict \\(id\\) do update").
		WithArgs("user-1", "student@wws.k12.in.us", "Sam Student", 10, false, "").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Save(context.Background(), auth.Profile{
		ID:       "user-1",
		Email:    "student@wws.k12.in.us",
		FullName: "Sam Student",
		Grade:    10,
	})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestFindProfile(t *testing.T) {
	store, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"id", "email", "full_name", "grade", "is_admin", "opportunity_id"}).
		AddRow("user-1", "student@wws.k12.in.us", "Sam Student", 11, false, "")
	mock.ExpectQuery("from users where id=").
		WithArgs("user-1").
		WillReturnRows(rows)

	profile, err := store.Find(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if profile.Email != "student@wws.k12.in.us" || profile.Grade != 11 || profile.IsAdmin {
		t.Fatalf("unexpected profile: %+v", profile)
	}
}
