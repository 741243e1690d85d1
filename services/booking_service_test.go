package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"vehicle-service-server/models"
	"vehicle-service-server/store"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.LifecycleEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev models.LifecycleEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type harness struct {
	t         *testing.T
	ctx       context.Context
	store     *store.MemoryStore
	svc       *BookingService
	pub       *recordingPublisher
	clock     *clock
	owner     models.User
	other     models.User
	garage    models.User
	rival     models.User
	admin     models.User
	servicer  models.Servicer
	rivalShop models.Servicer
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	h := &harness{
		t:     t,
		ctx:   context.Background(),
		store: store.NewMemoryStore(),
		pub:   &recordingPublisher{},
		clock: &clock{t: time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC)},
	}
	opts.Now = h.clock.Now
	h.svc = NewBookingService(h.store, h.pub, opts)

	err := h.store.Transaction(h.ctx, func(repo store.Repository) error {
		h.owner = models.User{FullName: "Anu", Email: "anu@example.com", Role: models.RoleUser, IsActive: true}
		h.other = models.User{FullName: "Ravi", Email: "ravi@example.com", Role: models.RoleUser, IsActive: true}
		h.garage = models.User{FullName: "Garage", Email: "garage@example.com", Role: models.RoleServicer, IsActive: true}
		h.rival = models.User{FullName: "Rival", Email: "rival@example.com", Role: models.RoleServicer, IsActive: true}
		h.admin = models.User{FullName: "Admin", Email: "admin@example.com", Role: models.RoleAdmin, IsActive: true}
		for _, u := range []*models.User{&h.owner, &h.other, &h.garage, &h.rival, &h.admin} {
			if err := repo.CreateUser(h.ctx, u); err != nil {
				return err
			}
		}
		h.servicer = models.Servicer{UserID: h.garage.ID, Name: "City Motors", Location: "Kochi", WorkTypes: []string{"General Service", "Engine"}}
		h.rivalShop = models.Servicer{UserID: h.rival.ID, Name: "Rival Auto", Location: "Kochi", WorkTypes: []string{"General Service"}}
		if err := repo.CreateServicer(h.ctx, &h.servicer); err != nil {
			return err
		}
		return repo.CreateServicer(h.ctx, &h.rivalShop)
	})
	if err != nil {
		t.Fatalf("harness: %v", err)
	}
	return h
}

func (h *harness) createBooking() models.Booking {
	h.t.Helper()
	b, err := h.svc.CreateBooking(h.ctx, h.owner.ID, models.BookingCreate{
		ServicerID:    h.servicer.ID,
		VehicleMake:   "Maruti",
		VehicleModel:  "Swift",
		OwnerName:     "Anu",
		FuelType:      "Petrol",
		Year:          2019,
		VehicleNumber: "kl07ab1234",
		WorkType:      "General Service",
		Complaints:    "Brake noise",
	})
	if err != nil {
		h.t.Fatalf("create booking: %v", err)
	}
	return b
}

// seedBooking stores a booking directly in the given state, bypassing the
// engine.
func (h *harness) seedBooking(status models.BookingStatus, approved bool, payment *models.PaymentStatus) models.Booking {
	h.t.Helper()
	var b models.Booking
	err := h.store.Transaction(h.ctx, func(repo store.Repository) error {
		b = models.Booking{UserID: h.owner.ID, ServicerID: h.servicer.ID, VehicleNumber: "KL01X1", WorkType: "Engine", Status: status}
		if payment != nil {
			amount := 1000.0
			b.PaymentRequested = true
			b.PaymentStatus = payment
			b.FinalAmount = &amount
		}
		if err := repo.CreateBooking(h.ctx, &b); err != nil {
			return err
		}
		if approved {
			return repo.CreateDiagnosis(h.ctx, &models.Diagnosis{BookingID: b.ID, Report: "seeded", UserApproved: true})
		}
		return nil
	})
	if err != nil {
		h.t.Fatalf("seed booking: %v", err)
	}
	return b
}

func (h *harness) servicerRecord() models.Servicer {
	h.t.Helper()
	var sv models.Servicer
	_ = h.store.Transaction(h.ctx, func(repo store.Repository) error {
		var err error
		sv, err = repo.ServicerByID(h.ctx, h.servicer.ID)
		return err
	})
	return sv
}

func TestScenarioHappyPath(t *testing.T) {
	h := newHarness(t, Options{})
	b := h.createBooking()
	if b.Status != models.BookingRequested || b.VehicleNumber != "KL07AB1234" {
		t.Fatalf("created booking %+v", b)
	}

	res, err := h.svc.AcceptBooking(h.ctx, h.garage.ID, b.ID, models.AcceptRequest{PickupChoice: models.PickupByServicer})
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if res.Booking.Status != models.BookingPending || res.Booking.PickupChoice == nil || *res.Booking.PickupChoice != models.PickupByServicer {
		t.Fatalf("after accept: %+v", res.Booking)
	}
	if len(res.Progress) != 1 || res.Progress[0].Title != "Request Accepted" {
		t.Fatalf("after accept progress: %+v", res.Progress)
	}

	cost := 5000.0
	res, err = h.svc.SubmitDiagnosis(h.ctx, h.garage.ID, b.ID, models.DiagnosisCreate{
		Report:        "Brake pads worn",
		WorkItems:     []string{"Replace brake pads", "Oil change"},
		EstimatedCost: &cost,
	})
	if err != nil {
		t.Fatalf("diagnosis: %v", err)
	}
	if res.Booking.Status != models.BookingPending {
		t.Fatalf("diagnosis changed status to %s", res.Booking.Status)
	}
	if res.Diagnosis == nil || res.Diagnosis.UserApproved {
		t.Fatalf("diagnosis result %+v", res.Diagnosis)
	}

	res, err = h.svc.ApproveDiagnosis(h.ctx, h.owner.ID, b.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if res.Booking.Status != models.BookingOngoing || !res.Diagnosis.UserApproved || res.Diagnosis.ApprovedAt == nil {
		t.Fatalf("after approve: %+v %+v", res.Booking, res.Diagnosis)
	}

	h.clock.advance(time.Hour)
	res, err = h.svc.AddProgress(h.ctx, h.garage.ID, b.ID, models.ProgressCreate{Title: "Work in progress", Description: "Pads replaced"})
	if err != nil {
		t.Fatalf("progress: %v", err)
	}
	if res.Booking.Status != models.BookingOngoing || len(res.Progress) < 2 {
		t.Fatalf("after progress: status=%s entries=%d", res.Booking.Status, len(res.Progress))
	}
	last := res.Progress[len(res.Progress)-1]
	if last.Title != "Work in progress" || last.Status != models.ProgressInProgress || last.Source != models.ProgressServicer {
		t.Fatalf("manual entry %+v", last)
	}

	res, err = h.svc.CompleteWork(h.ctx, h.garage.ID, b.ID, models.CompleteRequest{FinalAmount: 5500, CompletionNotes: "Work completed successfully"})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if res.Booking.Status != models.BookingCompleted || !res.Booking.PaymentRequested || !res.Booking.AwaitingPayment() {
		t.Fatalf("after complete: %+v", res.Booking)
	}
	if *res.Booking.FinalAmount != 5500 || *res.Booking.CompletionNotes != "Work completed successfully" {
		t.Fatalf("settlement fields: %+v", res.Booking)
	}
	if res.Progress[len(res.Progress)-1].Title != "Service Completed" {
		t.Fatalf("missing completion entry: %+v", res.Progress)
	}

	res, err = h.svc.ProcessPayment(h.ctx, h.owner.ID, b.ID)
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	if !res.Booking.IsPaid() || res.Booking.PaymentDate == nil {
		t.Fatalf("after pay: %+v", res.Booking)
	}

	res, err = h.svc.SubmitFeedback(h.ctx, h.owner.ID, b.ID, models.FeedbackCreate{Rating: 5, Message: "Great"})
	if err != nil {
		t.Fatalf("feedback: %v", err)
	}
	if res.Feedback == nil || res.Feedback.ServicerID != h.servicer.ID {
		t.Fatalf("feedback result %+v", res.Feedback)
	}
	sv := h.servicerRecord()
	if sv.Rating != 5.0 || sv.FeedbackCount != 1 {
		t.Fatalf("servicer rating=%v count=%d", sv.Rating, sv.FeedbackCount)
	}

	want := []string{
		models.EventBookingRequested, models.EventBookingAccepted, models.EventDiagnosisSubmitted,
		models.EventDiagnosisApproved, models.EventProgressAdded, models.EventBookingCompleted,
		models.EventPaymentReceived, models.EventFeedbackSubmitted,
	}
	got := h.pub.types()
	if len(got) != len(want) {
		t.Fatalf("events=%v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event[%d]=%s, want %s", i, got[i], want[i])
		}
	}

	events, err := h.svc.ListStatusEvents(h.ctx, h.owner.ID, b.ID)
	if err != nil {
		t.Fatalf("status events: %v", err)
	}
	if len(events) != 4 || events[len(events)-1].ToStatus != models.BookingCompleted {
		t.Fatalf("status events %+v", events)
	}
}

func TestScenarioRejectedBranch(t *testing.T) {
	h := newHarness(t, Options{})
	b := h.createBooking()

	res, err := h.svc.RejectBooking(h.ctx, h.garage.ID, b.ID, models.RejectRequest{Reason: "no capacity"})
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if res.Booking.Status != models.BookingRejected || res.Booking.RejectionReason == nil || *res.Booking.RejectionReason != "no capacity" {
		t.Fatalf("after reject: %+v", res.Booking)
	}
	if len(res.Progress) != 1 || res.Progress[0].Title != "Request Rejected" {
		t.Fatalf("progress %+v", res.Progress)
	}

	if _, err := h.svc.AddProgress(h.ctx, h.garage.ID, b.ID, models.ProgressCreate{Title: "Work update"}); !errors.Is(err, ErrWrongState) {
		t.Fatalf("add progress err=%v, want ErrWrongState", err)
	}
	if _, err := h.svc.CompleteWork(h.ctx, h.garage.ID, b.ID, models.CompleteRequest{FinalAmount: 100}); !errors.Is(err, ErrWrongState) {
		t.Fatalf("complete err=%v, want ErrWrongState", err)
	}
	if _, err := h.svc.AcceptBooking(h.ctx, h.garage.ID, b.ID, models.AcceptRequest{PickupChoice: models.PickupUserBrings}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("accept after reject err=%v, want ErrInvalidTransition", err)
	}
}

func TestScenarioProgressBeforeApproval(t *testing.T) {
	h := newHarness(t, Options{})
	b := h.createBooking()
	if _, err := h.svc.AcceptBooking(h.ctx, h.garage.ID, b.ID, models.AcceptRequest{PickupChoice: models.PickupUserBrings}); err != nil {
		t.Fatalf("accept: %v", err)
	}

	_, err := h.svc.AddProgress(h.ctx, h.garage.ID, b.ID, models.ProgressCreate{Title: "Work started"})
	if !errors.Is(err, ErrWrongState) {
		t.Fatalf("err=%v, want ErrWrongState", err)
	}
	list, err := h.svc.ListProgress(h.ctx, h.garage.ID, b.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("progress entries=%d, want only the accept entry", len(list))
	}
}

func TestAddProgressNeedsApprovedDiagnosis(t *testing.T) {
	h := newHarness(t, Options{})
	b := h.seedBooking(models.BookingOngoing, false, nil)

	_, err := h.svc.AddProgress(h.ctx, h.garage.ID, b.ID, models.ProgressCreate{Title: "Work started"})
	if !errors.Is(err, ErrWrongState) {
		t.Fatalf("err=%v, want ErrWrongState", err)
	}
}

func TestScenarioCompleteWithoutProgress(t *testing.T) {
	h := newHarness(t, Options{})
	b := h.seedBooking(models.BookingOngoing, true, nil)

	_, err := h.svc.CompleteWork(h.ctx, h.garage.ID, b.ID, models.CompleteRequest{FinalAmount: 500})
	if !errors.Is(err, ErrWrongState) {
		t.Fatalf("err=%v, want ErrWrongState", err)
	}
	view, err := h.svc.GetBookingView(h.ctx, h.garage.ID, b.ID)
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if view.Booking.Status != models.BookingOngoing || view.Booking.PaymentStatus != nil {
		t.Fatalf("booking changed: %+v", view.Booking)
	}
}

func TestCompleteCountsAuditEntriesByDefault(t *testing.T) {
	cases := []struct {
		name    string
		opts    Options
		wantErr error
	}{
		{"all entries", Options{}, nil},
		{"manual only", Options{RequireManualProgress: true}, ErrWrongState},
	}
	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.opts)
			b := h.createBooking()
			if _, err := h.svc.AcceptBooking(h.ctx, h.garage.ID, b.ID, models.AcceptRequest{PickupChoice: models.PickupByServicer}); err != nil {
				t.Fatalf("accept: %v", err)
			}
			if _, err := h.svc.SubmitDiagnosis(h.ctx, h.garage.ID, b.ID, models.DiagnosisCreate{Report: "Needs service"}); err != nil {
				t.Fatalf("diagnosis: %v", err)
			}
			if _, err := h.svc.ApproveDiagnosis(h.ctx, h.owner.ID, b.ID); err != nil {
				t.Fatalf("approve: %v", err)
			}
			_, err := h.svc.CompleteWork(h.ctx, h.garage.ID, b.ID, models.CompleteRequest{FinalAmount: 800})
			if tt.wantErr == nil && err != nil {
				t.Fatalf("complete: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("complete err=%v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestApproveDiagnosisIsIdempotent(t *testing.T) {
	h := newHarness(t, Options{})
	b := h.createBooking()
	_, _ = h.svc.AcceptBooking(h.ctx, h.garage.ID, b.ID, models.AcceptRequest{PickupChoice: models.PickupByServicer})
	if _, err := h.svc.ApproveDiagnosis(h.ctx, h.owner.ID, b.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("approve without diagnosis err=%v, want ErrNotFound", err)
	}
	_, _ = h.svc.SubmitDiagnosis(h.ctx, h.garage.ID, b.ID, models.DiagnosisCreate{Report: "Needs service"})

	first, err := h.svc.ApproveDiagnosis(h.ctx, h.owner.ID, b.ID)
	if err != nil {
		t.Fatalf("first approve: %v", err)
	}
	h.clock.advance(time.Minute)
	second, err := h.svc.ApproveDiagnosis(h.ctx, h.owner.ID, b.ID)
	if !errors.Is(err, ErrAlreadyDone) || !errors.Is(err, ErrAlreadyApproved) {
		t.Fatalf("second approve err=%v, want ErrAlreadyApproved", err)
	}
	if second.Warning == "" {
		t.Fatalf("expected a warning on repeated approval")
	}
	if second.Booking.Status != models.BookingOngoing || !second.Diagnosis.UserApproved {
		t.Fatalf("second result %+v", second)
	}
	if !second.Diagnosis.ApprovedAt.Equal(*first.Diagnosis.ApprovedAt) {
		t.Fatalf("approval time moved from %v to %v", first.Diagnosis.ApprovedAt, second.Diagnosis.ApprovedAt)
	}
}

func TestProcessPaymentKeepsFirstPaymentDate(t *testing.T) {
	h := newHarness(t, Options{})
	pending := models.PaymentPending
	b := h.seedBooking(models.BookingCompleted, true, &pending)

	first, err := h.svc.ProcessPayment(h.ctx, h.owner.ID, b.ID)
	if err != nil {
		t.Fatalf("first pay: %v", err)
	}
	h.clock.advance(2 * time.Hour)
	second, err := h.svc.ProcessPayment(h.ctx, h.owner.ID, b.ID)
	if !errors.Is(err, ErrAlreadyPaid) {
		t.Fatalf("second pay err=%v, want ErrAlreadyPaid", err)
	}
	if !second.Booking.IsPaid() || !second.Booking.PaymentDate.Equal(*first.Booking.PaymentDate) {
		t.Fatalf("payment date moved: first=%v second=%v", first.Booking.PaymentDate, second.Booking.PaymentDate)
	}
}

func TestProcessPaymentWrongState(t *testing.T) {
	h := newHarness(t, Options{})
	b := h.seedBooking(models.BookingOngoing, true, nil)
	if _, err := h.svc.ProcessPayment(h.ctx, h.owner.ID, b.ID); !errors.Is(err, ErrWrongState) {
		t.Fatalf("err=%v, want ErrWrongState", err)
	}
}

func TestDiagnosisVisibility(t *testing.T) {
	h := newHarness(t, Options{})
	b := h.createBooking()
	_, _ = h.svc.AcceptBooking(h.ctx, h.garage.ID, b.ID, models.AcceptRequest{PickupChoice: models.PickupByServicer})

	view, _ := h.svc.GetBookingView(h.ctx, h.owner.ID, b.ID)
	if view.Diagnosis != nil {
		t.Fatalf("no diagnosis yet, got %+v", view.Diagnosis)
	}

	_, _ = h.svc.SubmitDiagnosis(h.ctx, h.garage.ID, b.ID, models.DiagnosisCreate{Report: "Needs service"})
	view, _ = h.svc.GetBookingView(h.ctx, h.owner.ID, b.ID)
	if view.Diagnosis == nil || view.Diagnosis.Report != "Needs service" {
		t.Fatalf("pending booking should show diagnosis, got %+v", view.Diagnosis)
	}

	_, _ = h.svc.ApproveDiagnosis(h.ctx, h.owner.ID, b.ID)
	view, _ = h.svc.GetBookingView(h.ctx, h.owner.ID, b.ID)
	if view.Booking.Status != models.BookingOngoing || view.Diagnosis != nil {
		t.Fatalf("ongoing booking should hide diagnosis, got %+v", view.Diagnosis)
	}

	d, err := h.svc.DiagnosisFor(h.ctx, h.owner.ID, b.ID)
	if err != nil || !d.UserApproved {
		t.Fatalf("direct fetch d=%+v err=%v", d, err)
	}
	if _, err := h.svc.DiagnosisFor(h.ctx, h.other.ID, b.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign direct fetch err=%v, want ErrNotFound", err)
	}
}

func TestDuplicateDiagnosisKeepsFirst(t *testing.T) {
	h := newHarness(t, Options{})
	b := h.createBooking()
	_, _ = h.svc.AcceptBooking(h.ctx, h.garage.ID, b.ID, models.AcceptRequest{PickupChoice: models.PickupByServicer})
	if _, err := h.svc.SubmitDiagnosis(h.ctx, h.garage.ID, b.ID, models.DiagnosisCreate{Report: "first"}); err != nil {
		t.Fatalf("first: %v", err)
	}
	res, err := h.svc.SubmitDiagnosis(h.ctx, h.garage.ID, b.ID, models.DiagnosisCreate{Report: "second"})
	if !errors.Is(err, ErrDiagnosisExists) {
		t.Fatalf("err=%v, want ErrDiagnosisExists", err)
	}
	if res.Diagnosis == nil || res.Diagnosis.Report != "first" {
		t.Fatalf("diagnosis overwritten: %+v", res.Diagnosis)
	}
	if len(res.Progress) != 2 {
		t.Fatalf("progress entries=%d, want 2", len(res.Progress))
	}
}

func TestSubmitDiagnosisWrongState(t *testing.T) {
	h := newHarness(t, Options{})
	b := h.createBooking()
	_, err := h.svc.SubmitDiagnosis(h.ctx, h.garage.ID, b.ID, models.DiagnosisCreate{Report: "early"})
	if !errors.Is(err, ErrWrongState) {
		t.Fatalf("err=%v, want ErrWrongState", err)
	}
}

func TestOwnershipAndRoleChecks(t *testing.T) {
	h := newHarness(t, Options{})
	b := h.createBooking()

	cases := []struct {
		name string
		call func() error
		want error
	}{
		{"rival servicer accepts", func() error {
			_, err := h.svc.AcceptBooking(h.ctx, h.rival.ID, b.ID, models.AcceptRequest{PickupChoice: models.PickupByServicer})
			return err
		}, ErrNotFound},
		{"user accepts", func() error {
			_, err := h.svc.AcceptBooking(h.ctx, h.owner.ID, b.ID, models.AcceptRequest{PickupChoice: models.PickupByServicer})
			return err
		}, ErrForbidden},
		{"admin accepts", func() error {
			_, err := h.svc.AcceptBooking(h.ctx, h.admin.ID, b.ID, models.AcceptRequest{PickupChoice: models.PickupByServicer})
			return err
		}, ErrForbidden},
		{"unknown actor", func() error {
			_, err := h.svc.RejectBooking(h.ctx, 9999, b.ID, models.RejectRequest{Reason: "x"})
			return err
		}, ErrForbidden},
		{"other user approves", func() error {
			_, err := h.svc.ApproveDiagnosis(h.ctx, h.other.ID, b.ID)
			return err
		}, ErrNotFound},
		{"missing booking", func() error {
			_, err := h.svc.ApproveDiagnosis(h.ctx, h.owner.ID, 424242)
			return err
		}, ErrNotFound},
		{"other user views", func() error {
			_, err := h.svc.GetBookingView(h.ctx, h.other.ID, b.ID)
			return err
		}, ErrNotFound},
		{"servicer pays", func() error {
			_, err := h.svc.ProcessPayment(h.ctx, h.garage.ID, b.ID)
			return err
		}, ErrForbidden},
	}

	for _, tt := range cases {
		if err := tt.call(); !errors.Is(err, tt.want) {
			t.Fatalf("%s: err=%v, want %v", tt.name, err, tt.want)
		}
	}

	view, err := h.svc.GetBookingView(h.ctx, h.admin.ID, b.ID)
	if err != nil || view.Booking.Status != models.BookingRequested {
		t.Fatalf("admin view=%+v err=%v", view.Booking, err)
	}
}

func TestValidationErrors(t *testing.T) {
	h := newHarness(t, Options{})
	b := h.seedBooking(models.BookingOngoing, true, nil)

	cases := []struct {
		name  string
		call  func() error
		field string
	}{
		{"zero amount", func() error {
			_, err := h.svc.CompleteWork(h.ctx, h.garage.ID, b.ID, models.CompleteRequest{FinalAmount: 0})
			return err
		}, "final_amount"},
		{"negative amount", func() error {
			_, err := h.svc.CompleteWork(h.ctx, h.garage.ID, b.ID, models.CompleteRequest{FinalAmount: -5})
			return err
		}, "final_amount"},
		{"rating too high", func() error {
			_, err := h.svc.SubmitFeedback(h.ctx, h.owner.ID, b.ID, models.FeedbackCreate{Rating: 6, Message: "ok"})
			return err
		}, "rating"},
		{"empty message", func() error {
			_, err := h.svc.SubmitFeedback(h.ctx, h.owner.ID, b.ID, models.FeedbackCreate{Rating: 4, Message: "   "})
			return err
		}, "message"},
		{"blank reason", func() error {
			_, err := h.svc.RejectBooking(h.ctx, h.garage.ID, b.ID, models.RejectRequest{Reason: " "})
			return err
		}, "reason"},
		{"bad pickup", func() error {
			_, err := h.svc.AcceptBooking(h.ctx, h.garage.ID, b.ID, models.AcceptRequest{PickupChoice: "teleport"})
			return err
		}, "pickup_choice"},
		{"empty title", func() error {
			_, err := h.svc.AddProgress(h.ctx, h.garage.ID, b.ID, models.ProgressCreate{Title: ""})
			return err
		}, "title"},
	}

	for _, tt := range cases {
		err := tt.call()
		var verr *ValidationError
		if !errors.Is(err, ErrValidation) || !errors.As(err, &verr) {
			t.Fatalf("%s: err=%v, want validation error", tt.name, err)
		}
		if verr.Fields[0].Field != tt.field {
			t.Fatalf("%s: field=%q, want %q", tt.name, verr.Fields[0].Field, tt.field)
		}
	}
}

func TestFeedbackRules(t *testing.T) {
	h := newHarness(t, Options{})
	pending := models.PaymentPending
	unpaid := h.seedBooking(models.BookingCompleted, true, &pending)

	if _, err := h.svc.SubmitFeedback(h.ctx, h.owner.ID, unpaid.ID, models.FeedbackCreate{Rating: 5, Message: "Great"}); !errors.Is(err, ErrWrongState) {
		t.Fatalf("unpaid feedback err=%v, want ErrWrongState", err)
	}

	if _, err := h.svc.ProcessPayment(h.ctx, h.owner.ID, unpaid.ID); err != nil {
		t.Fatalf("pay: %v", err)
	}
	if _, err := h.svc.SubmitFeedback(h.ctx, h.owner.ID, unpaid.ID, models.FeedbackCreate{Rating: 4, Message: "Good"}); err != nil {
		t.Fatalf("feedback: %v", err)
	}
	res, err := h.svc.SubmitFeedback(h.ctx, h.owner.ID, unpaid.ID, models.FeedbackCreate{Rating: 1, Message: "Changed my mind"})
	if !errors.Is(err, ErrFeedbackExists) {
		t.Fatalf("second feedback err=%v, want ErrFeedbackExists", err)
	}
	if res.Feedback == nil || res.Feedback.Rating != 4 {
		t.Fatalf("feedback overwritten: %+v", res.Feedback)
	}
}

func TestRatingAggregation(t *testing.T) {
	h := newHarness(t, Options{})
	paid := models.PaymentPaid
	want := []float64{5.0, 4.5, 4.3}
	for i, rating := range []int{5, 4, 4} {
		b := h.seedBooking(models.BookingCompleted, true, &paid)
		if _, err := h.svc.SubmitFeedback(h.ctx, h.owner.ID, b.ID, models.FeedbackCreate{Rating: rating, Message: "ok"}); err != nil {
			t.Fatalf("feedback %d: %v", i, err)
		}
		sv := h.servicerRecord()
		if sv.Rating != want[i] || sv.FeedbackCount != i+1 {
			t.Fatalf("after %d ratings: rating=%v count=%d, want %v", i+1, sv.Rating, sv.FeedbackCount, want[i])
		}
	}
}

func TestAverageRating(t *testing.T) {
	cases := []struct {
		ratings []int
		want    float64
	}{
		{nil, models.DefaultServicerRating},
		{[]int{5}, 5.0},
		{[]int{5, 4}, 4.5},
		{[]int{5, 4, 3}, 4.0},
		{[]int{5, 4, 4}, 4.3},
		{[]int{1, 2}, 1.5},
		{[]int{4, 4, 5, 5, 5, 5}, 4.7},
		{[]int{4, 4, 4, 5}, 4.3},
		{[]int{1, 1, 2}, 1.3},
	}
	for _, tt := range cases {
		if got := AverageRating(tt.ratings); got != tt.want {
			t.Fatalf("AverageRating(%v)=%v, want %v", tt.ratings, got, tt.want)
		}
	}
}

func TestFailedTransitionPublishesNothing(t *testing.T) {
	h := newHarness(t, Options{})
	b := h.createBooking()
	before := len(h.pub.types())

	if _, err := h.svc.CompleteWork(h.ctx, h.garage.ID, b.ID, models.CompleteRequest{FinalAmount: 10}); err == nil {
		t.Fatalf("expected failure")
	}
	if after := len(h.pub.types()); after != before {
		t.Fatalf("events published on failure: %d -> %d", before, after)
	}
}

func TestPublishErrorDoesNotFailTransition(t *testing.T) {
	h := newHarness(t, Options{})
	b := h.createBooking()
	h.pub.err = errors.New("redis down")

	res, err := h.svc.AcceptBooking(h.ctx, h.garage.ID, b.ID, models.AcceptRequest{PickupChoice: models.PickupByServicer})
	if err != nil || res.Booking.Status != models.BookingPending {
		t.Fatalf("accept with failing publisher: res=%+v err=%v", res.Booking, err)
	}
}

func TestTransitionsNotifyBothParties(t *testing.T) {
	h := newHarness(t, Options{})
	b := h.createBooking()
	if _, err := h.svc.AcceptBooking(h.ctx, h.garage.ID, b.ID, models.AcceptRequest{PickupChoice: models.PickupByServicer}); err != nil {
		t.Fatalf("accept: %v", err)
	}

	_ = h.store.Transaction(h.ctx, func(repo store.Repository) error {
		for _, userID := range []uint{h.owner.ID, h.garage.ID} {
			ok, err := repo.NotificationExists(h.ctx, userID, b.ID, models.EventBookingAccepted, time.Time{})
			if err != nil || !ok {
				t.Fatalf("user %d missing accepted notification (err=%v)", userID, err)
			}
		}
		return nil
	})
}

func TestCreateBookingChecks(t *testing.T) {
	h := newHarness(t, Options{})
	base := models.BookingCreate{
		ServicerID: h.servicer.ID, VehicleMake: "Honda", VehicleModel: "City", OwnerName: "Anu",
		FuelType: "Petrol", Year: 2018, VehicleNumber: "KL01A1", WorkType: "Engine",
	}

	if _, err := h.svc.CreateBooking(h.ctx, h.garage.ID, base); !errors.Is(err, ErrForbidden) {
		t.Fatalf("servicer create err=%v, want ErrForbidden", err)
	}

	wrongType := base
	wrongType.WorkType = "Painting"
	if _, err := h.svc.CreateBooking(h.ctx, h.owner.ID, wrongType); !errors.Is(err, ErrValidation) {
		t.Fatalf("work type err=%v, want ErrValidation", err)
	}

	missing := base
	missing.ServicerID = 9999
	if _, err := h.svc.CreateBooking(h.ctx, h.owner.ID, missing); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing servicer err=%v, want ErrNotFound", err)
	}

	_ = h.store.Transaction(h.ctx, func(repo store.Repository) error {
		sv, _ := repo.ServicerByID(h.ctx, h.servicer.ID)
		sv.Status = models.ServicerUnavailable
		return repo.SaveServicer(h.ctx, &sv)
	})
	if _, err := h.svc.CreateBooking(h.ctx, h.owner.ID, base); !errors.Is(err, ErrValidation) {
		t.Fatalf("unavailable servicer err=%v, want ErrValidation", err)
	}
}

func TestValidateBookingRequestWritesNothing(t *testing.T) {
	h := newHarness(t, Options{})
	base := models.BookingCreate{
		ServicerID: h.servicer.ID, VehicleMake: "Honda", VehicleModel: "City", OwnerName: "Anu",
		FuelType: "Petrol", Year: 2018, VehicleNumber: "KL01A1", WorkType: "Engine",
	}
	wrongType := base
	wrongType.WorkType = "Painting"
	missing := base
	missing.ServicerID = 9999

	cases := []struct {
		name  string
		actor uint
		in    models.BookingCreate
		want  error
	}{
		{"ok", h.owner.ID, base, nil},
		{"servicer actor", h.garage.ID, base, ErrForbidden},
		{"work type", h.owner.ID, wrongType, ErrValidation},
		{"missing servicer", h.owner.ID, missing, ErrNotFound},
		{"empty payload", h.owner.ID, models.BookingCreate{}, ErrValidation},
	}
	for _, tt := range cases {
		err := h.svc.ValidateBookingRequest(h.ctx, tt.actor, tt.in)
		if (tt.want == nil && err != nil) || (tt.want != nil && !errors.Is(err, tt.want)) {
			t.Fatalf("%s: err=%v, want %v", tt.name, err, tt.want)
		}
	}

	all, err := h.svc.ListAllBookings(h.ctx, h.admin.ID)
	if err != nil || len(all) != 0 {
		t.Fatalf("bookings=%d err=%v, want none", len(all), err)
	}
	if len(h.pub.types()) != 0 {
		t.Fatalf("events published: %v", h.pub.types())
	}
}

func TestBookingLists(t *testing.T) {
	h := newHarness(t, Options{})
	pending := models.PaymentPending
	paid := models.PaymentPaid
	requested := h.createBooking()
	owed := h.seedBooking(models.BookingCompleted, true, &pending)
	done := h.seedBooking(models.BookingCompleted, true, &paid)

	cases := []struct {
		name string
		list func() ([]models.Booking, error)
		want []uint
	}{
		{"user all", func() ([]models.Booking, error) { return h.svc.ListUserBookings(h.ctx, h.owner.ID) }, []uint{done.ID, owed.ID, requested.ID}},
		{"user requested", func() ([]models.Booking, error) {
			return h.svc.ListUserBookings(h.ctx, h.owner.ID, models.BookingRequested)
		}, []uint{requested.ID}},
		{"pending payments", func() ([]models.Booking, error) { return h.svc.ListPendingPayments(h.ctx, h.owner.ID) }, []uint{owed.ID}},
		{"work history", func() ([]models.Booking, error) { return h.svc.ListWorkHistory(h.ctx, h.owner.ID) }, []uint{done.ID}},
		{"servicer worklist", func() ([]models.Booking, error) { return h.svc.ListServicerWorklist(h.ctx, h.garage.ID) }, []uint{requested.ID}},
		{"servicer history", func() ([]models.Booking, error) { return h.svc.ListServicerHistory(h.ctx, h.garage.ID) }, []uint{done.ID, owed.ID}},
		{"rival worklist", func() ([]models.Booking, error) { return h.svc.ListServicerWorklist(h.ctx, h.rival.ID) }, nil},
		{"other user", func() ([]models.Booking, error) { return h.svc.ListUserBookings(h.ctx, h.other.ID) }, nil},
		{"admin", func() ([]models.Booking, error) { return h.svc.ListAllBookings(h.ctx, h.admin.ID) }, []uint{done.ID, owed.ID, requested.ID}},
	}

	for _, tt := range cases {
		got, err := tt.list()
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if len(got) != len(tt.want) {
			t.Fatalf("%s: got %d bookings, want %d", tt.name, len(got), len(tt.want))
		}
		for i := range got {
			if got[i].ID != tt.want[i] {
				t.Fatalf("%s: got[%d]=%d, want %d", tt.name, i, got[i].ID, tt.want[i])
			}
		}
	}

	if _, err := h.svc.ListAllBookings(h.ctx, h.owner.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("user admin list err=%v, want ErrForbidden", err)
	}
	if _, err := h.svc.ListServicerWorklist(h.ctx, h.owner.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("user worklist err=%v, want ErrForbidden", err)
	}
}
