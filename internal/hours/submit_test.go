package hours

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSubmitCreatesPendingEntry(t *testing.T) {
	store := NewInMemory()
	svc := NewService(store, WithClock(func() time.Time {
		return time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	}))

	entry, err := svc.Submit(context.Background(), student, SubmitInput{
		Date:        time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Hours:       2.5,
		CustomTitle: "  Food bank  ",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if entry.ID == "" {
		t.Fatalf("expected generated id")
	}
	if entry.Status != StatusPending {
		t.Fatalf("new entries must be pending, got %s", entry.Status)
	}
	if entry.UserID != student.ID {
		t.Fatalf("entry must be owned by the submitter")
	}
	if entry.CustomTitle != "Food bank" {
		t.Fatalf("title not trimmed: %q", entry.CustomTitle)
	}
	if !entry.SubmittedAt.Equal(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected submitted_at: %v", entry.SubmittedAt)
	}

	mine, err := svc.ListMine(context.Background(), student)
	if err != nil {
		t.Fatalf("ListMine: %v", err)
	}
	if len(mine) != 1 || mine[0].ID != entry.ID {
		t.Fatalf("exactly one entry expected, got %+v", mine)
	}
}

func TestSubmitValidation(t *testing.T) {
	svc := NewService(NewInMemory())
	ctx := context.Background()
	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name  string
		in    SubmitInput
		field string
	}{
		{"zero hours", SubmitInput{Date: date, Hours: 0}, "hours"},
		{"negative hours", SubmitInput{Date: date, Hours: -1}, "hours"},
		{"missing date", SubmitInput{Hours: 2}, "date"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Submit(ctx, student, tc.in)
			var verr *ValidationError
			if !errors.As(err, &verr) || verr.Field != tc.field {
				t.Fatalf("expected %s validation error, got %v", tc.field, err)
			}
		})
	}

	if _, err := svc.Submit(ctx, nil, SubmitInput{Date: date, Hours: 2}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("anonymous submission must fail, got %v", err)
	}
}
