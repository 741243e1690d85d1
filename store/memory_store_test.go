package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"vehicle-service-server/models"
)

type fixture struct {
	store      *MemoryStore
	owner      models.User
	other      models.User
	servicerUA models.User
	servicerUB models.User
	servicerA  models.Servicer
	servicerB  models.Servicer
	booking    models.Booking
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	f := fixture{store: NewMemoryStore()}
	ctx := context.Background()
	err := f.store.Transaction(ctx, func(repo Repository) error {
		f.owner = models.User{Email: "owner@example.com", Role: models.RoleUser, IsActive: true}
		f.other = models.User{Email: "other@example.com", Role: models.RoleUser, IsActive: true}
		f.servicerUA = models.User{Email: "a@garage.com", Role: models.RoleServicer, IsActive: true}
		f.servicerUB = models.User{Email: "b@garage.com", Role: models.RoleServicer, IsActive: true}
		for _, u := range []*models.User{&f.owner, &f.other, &f.servicerUA, &f.servicerUB} {
			if err := repo.CreateUser(ctx, u); err != nil {
				return err
			}
		}
		f.servicerA = models.Servicer{UserID: f.servicerUA.ID, Name: "A Motors", Location: "Kochi", WorkTypes: []string{"engine", "brakes"}}
		f.servicerB = models.Servicer{UserID: f.servicerUB.ID, Name: "B Auto", Location: "Trivandrum", WorkTypes: []string{"paint"}, Status: models.ServicerUnavailable}
		if err := repo.CreateServicer(ctx, &f.servicerA); err != nil {
			return err
		}
		if err := repo.CreateServicer(ctx, &f.servicerB); err != nil {
			return err
		}
		f.booking = models.Booking{UserID: f.owner.ID, ServicerID: f.servicerA.ID, VehicleNumber: "KL07AB1234"}
		return repo.CreateBooking(ctx, &f.booking)
	})
	if err != nil {
		t.Fatalf("fixture: %v", err)
	}
	return f
}

func TestFindBookingForActorScopes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		scope BookingScope
		found bool
	}{
		{"owner", BookingScope{ActorID: f.owner.ID, Role: models.RoleUser}, true},
		{"other user", BookingScope{ActorID: f.other.ID, Role: models.RoleUser}, false},
		{"assigned servicer", BookingScope{ActorID: f.servicerUA.ID, Role: models.RoleServicer}, true},
		{"other servicer", BookingScope{ActorID: f.servicerUB.ID, Role: models.RoleServicer}, false},
		{"owner id with servicer role", BookingScope{ActorID: f.owner.ID, Role: models.RoleServicer}, false},
		{"admin", BookingScope{ActorID: 999, Role: models.RoleAdmin}, true},
		{"no role", BookingScope{ActorID: f.owner.ID}, false},
	}

	for _, tt := range cases {
		err := f.store.Transaction(ctx, func(repo Repository) error {
			_, err := repo.FindBookingForActor(ctx, tt.scope, f.booking.ID, true)
			return err
		})
		if tt.found && err != nil {
			t.Fatalf("%s: unexpected error %v", tt.name, err)
		}
		if !tt.found && !errors.Is(err, ErrNotFound) {
			t.Fatalf("%s: err=%v, want ErrNotFound", tt.name, err)
		}
	}
}

func TestTransactionRollsBackOnError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := f.store.Transaction(ctx, func(repo Repository) error {
		b, err := repo.FindBookingForActor(ctx, BookingScope{ActorID: f.owner.ID, Role: models.RoleUser}, f.booking.ID, true)
		if err != nil {
			return err
		}
		b.Status = models.BookingPending
		if err := repo.SaveBooking(ctx, &b); err != nil {
			return err
		}
		if err := repo.AppendProgress(ctx, &models.WorkProgress{BookingID: b.ID, Title: "x", Status: models.ProgressInProgress}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err=%v, want boom", err)
	}

	_ = f.store.Transaction(ctx, func(repo Repository) error {
		b, err := repo.FindBookingForActor(ctx, BookingScope{Role: models.RoleAdmin}, f.booking.ID, false)
		if err != nil {
			t.Fatalf("find: %v", err)
		}
		if b.Status != models.BookingRequested {
			t.Fatalf("status=%s, want Requested after rollback", b.Status)
		}
		n, _ := repo.CountProgress(ctx, b.ID, "")
		if n != 0 {
			t.Fatalf("progress count=%d, want 0 after rollback", n)
		}
		return nil
	})
}

func TestListProgressOrdersByUpdatedAt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	_ = f.store.Transaction(ctx, func(repo Repository) error {
		entries := []models.WorkProgress{
			{BookingID: f.booking.ID, Title: "third", UpdatedAt: base.Add(2 * time.Hour), Source: models.ProgressServicer},
			{BookingID: f.booking.ID, Title: "first", UpdatedAt: base},
			{BookingID: f.booking.ID, Title: "second-a", UpdatedAt: base.Add(time.Hour), Source: models.ProgressServicer},
			{BookingID: f.booking.ID, Title: "second-b", UpdatedAt: base.Add(time.Hour)},
		}
		for i := range entries {
			if err := repo.AppendProgress(ctx, &entries[i]); err != nil {
				t.Fatalf("append: %v", err)
			}
		}
		return nil
	})

	_ = f.store.Transaction(ctx, func(repo Repository) error {
		list, err := repo.ListProgress(ctx, f.booking.ID)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		want := []string{"first", "second-a", "second-b", "third"}
		if len(list) != len(want) {
			t.Fatalf("len=%d, want %d", len(list), len(want))
		}
		for i, title := range want {
			if list[i].Title != title {
				t.Fatalf("list[%d]=%q, want %q", i, list[i].Title, title)
			}
		}
		all, _ := repo.CountProgress(ctx, f.booking.ID, "")
		manual, _ := repo.CountProgress(ctx, f.booking.ID, models.ProgressServicer)
		if all != 4 || manual != 2 {
			t.Fatalf("counts all=%d manual=%d", all, manual)
		}
		return nil
	})
}

func TestOneToOneConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.store.Transaction(ctx, func(repo Repository) error {
		if err := repo.CreateDiagnosis(ctx, &models.Diagnosis{BookingID: f.booking.ID, Report: "r"}); err != nil {
			return err
		}
		return repo.CreateDiagnosis(ctx, &models.Diagnosis{BookingID: f.booking.ID, Report: "r2"})
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("diagnosis err=%v, want ErrConflict", err)
	}

	err = f.store.Transaction(ctx, func(repo Repository) error {
		if err := repo.CreateFeedback(ctx, &models.Feedback{BookingID: f.booking.ID, Rating: 5, Message: "ok"}); err != nil {
			return err
		}
		return repo.CreateFeedback(ctx, &models.Feedback{BookingID: f.booking.ID, Rating: 4, Message: "again"})
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("feedback err=%v, want ErrConflict", err)
	}

	err = f.store.Transaction(ctx, func(repo Repository) error {
		return repo.CreateUser(ctx, &models.User{Email: "OWNER@example.com"})
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("user err=%v, want ErrConflict", err)
	}
}

func TestSearchServicers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		filter ServicerFilter
		want   []uint
	}{
		{"all", ServicerFilter{}, []uint{f.servicerA.ID, f.servicerB.ID}},
		{"work type", ServicerFilter{WorkType: "brakes"}, []uint{f.servicerA.ID}},
		{"location case-insensitive", ServicerFilter{Location: "triv"}, []uint{f.servicerB.ID}},
		{"available only", ServicerFilter{AvailableOnly: true}, []uint{f.servicerA.ID}},
		{"no match", ServicerFilter{WorkType: "tyres"}, nil},
	}

	for _, tt := range cases {
		_ = f.store.Transaction(ctx, func(repo Repository) error {
			got, err := repo.SearchServicers(ctx, tt.filter)
			if err != nil {
				t.Fatalf("%s: %v", tt.name, err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("%s: got %d servicers, want %d", tt.name, len(got), len(tt.want))
			}
			for i := range got {
				if got[i].ID != tt.want[i] {
					t.Fatalf("%s: got[%d]=%d, want %d", tt.name, i, got[i].ID, tt.want[i])
				}
			}
			return nil
		})
	}
}

func TestNotificationExistsSince(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bookingID := f.booking.ID
	sent := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	_ = f.store.Transaction(ctx, func(repo Repository) error {
		return repo.CreateNotification(ctx, &models.Notification{
			UserID: f.owner.ID, BookingID: &bookingID, Type: models.EventPaymentReminder, CreatedAt: sent,
		})
	})

	_ = f.store.Transaction(ctx, func(repo Repository) error {
		ok, _ := repo.NotificationExists(ctx, f.owner.ID, bookingID, models.EventPaymentReminder, sent.Add(-time.Hour))
		if !ok {
			t.Fatalf("expected reminder found")
		}
		ok, _ = repo.NotificationExists(ctx, f.owner.ID, bookingID, models.EventPaymentReminder, sent.Add(time.Hour))
		if ok {
			t.Fatalf("reminder before cutoff should not count")
		}
		return nil
	})
}

func TestLockServicer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	err := f.store.Transaction(ctx, func(repo Repository) error {
		sv, err := repo.LockServicer(ctx, f.servicerA.ID)
		if err != nil || sv.Name != "A Motors" {
			t.Fatalf("lock=%+v err=%v", sv, err)
		}
		if _, err := repo.LockServicer(ctx, 999); !errors.Is(err, ErrNotFound) {
			t.Fatalf("missing servicer err=%v, want ErrNotFound", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}
}
