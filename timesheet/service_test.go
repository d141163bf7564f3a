package timesheet

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"timeledger/database"
	"timeledger/errs"
	"timeledger/identity"
	"timeledger/models"
	"timeledger/reconcile"
)

var testNow = time.Date(2024, 2, 1, 9, 30, 0, 0, time.UTC)

type fixture struct {
	db    *gorm.DB
	svc   *Service
	org   models.Organization
	admin models.User
	alice models.User
	bob   models.User
	carol models.User
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	f := &fixture{
		db:  db,
		svc: NewService(db, zerolog.Nop()).WithClock(func() time.Time { return testNow }),
		org: models.Organization{Name: "Acme"},
	}
	mustCreate(t, db, &f.org)

	f.admin = f.user(t, "admin@acme.test", models.RoleAdmin)
	f.alice = f.user(t, "alice@acme.test", models.RoleEmployee)
	f.bob = f.user(t, "bob@acme.test", models.RoleEmployee)
	f.carol = f.user(t, "carol@acme.test", models.RoleEmployee)
	return f
}

func mustCreate(t *testing.T, db *gorm.DB, v any) {
	t.Helper()
	if err := db.Create(v).Error; err != nil {
		t.Fatalf("create %T: %v", v, err)
	}
}

func (f *fixture) user(t *testing.T, email string, role models.Role) models.User {
	t.Helper()
	u := models.User{Email: email, FullName: email, PasswordHash: "x", Role: role, OrganizationID: f.org.ID}
	mustCreate(t, f.db, &u)
	return u
}

func (f *fixture) project(t *testing.T, name, start, end string, members ...models.User) models.Project {
	t.Helper()
	ctx := context.Background()
	p, err := f.svc.CreateProject(ctx, identity.FromUser(&f.admin), CreateProjectRequest{
		Name: name, StartDate: start, EndDate: end,
	})
	if err != nil {
		t.Fatalf("CreateProject: %v", err)
	}
	for _, m := range members {
		if _, err := f.svc.AddMember(ctx, identity.FromUser(&f.admin), p.ID, m.ID, models.MemberRoleMember); err != nil {
			t.Fatalf("AddMember: %v", err)
		}
	}
	return *p
}

func (f *fixture) save(t *testing.T, u models.User, p models.Project, entries ...reconcile.Entry) *models.Timesheet {
	t.Helper()
	ts, err := f.svc.SaveDraft(context.Background(), identity.FromUser(&u), p.ID, u.ID, entries)
	if err != nil {
		t.Fatalf("SaveDraft(%s): %v", u.Email, err)
	}
	return ts
}

func (f *fixture) submit(t *testing.T, u models.User, ts *models.Timesheet) *models.Timesheet {
	t.Helper()
	out, err := f.svc.Submit(context.Background(), identity.FromUser(&u), ts.ID)
	if err != nil {
		t.Fatalf("Submit(%s): %v", u.Email, err)
	}
	return out
}

func entry(date string, hours float64) reconcile.Entry {
	return reconcile.Entry{Date: date, Hours: reconcile.Hours(hours)}
}

func TestSaveDraftReplacesEntries(t *testing.T) {
	f := newFixture(t)
	p := f.project(t, "Alpha", "2024-01-01", "2024-01-31", f.alice)

	first := f.save(t, f.alice, p, entry("2024-01-02", 8), entry("2024-01-01", 6))
	if first.Status != models.StatusDraft {
		t.Errorf("Status = %s, want DRAFT", first.Status)
	}
	if len(first.Entries) != 2 || first.Entries[0].Date.Format(reconcile.DateLayout) != "2024-01-01" {
		t.Fatalf("entries = %+v", first.Entries)
	}

	second := f.save(t, f.alice, p, entry("2024-01-03", 4))
	if second.ID != first.ID {
		t.Error("a second save must reuse the timesheet")
	}
	if len(second.Entries) != 1 || second.Entries[0].Hours != 4 {
		t.Errorf("entries after replace = %+v", second.Entries)
	}

	var count int64
	f.db.Model(&models.Timesheet{}).Count(&count)
	if count != 1 {
		t.Errorf("timesheets = %d, want 1", count)
	}
}

func TestSaveDraftDailyCapAcrossProjects(t *testing.T) {
	f := newFixture(t)
	a := f.project(t, "A", "2024-01-01", "2024-01-31", f.alice)
	b := f.project(t, "B", "2024-01-01", "2024-01-31", f.alice)

	f.save(t, f.alice, a, entry("2024-01-01", 10))

	_, err := f.svc.SaveDraft(context.Background(), identity.FromUser(&f.alice), b.ID, f.alice.ID,
		[]reconcile.Entry{entry("2024-01-01", 15)})

	var capErr *errs.DailyCapExceeded
	if !errors.As(err, &capErr) {
		t.Fatalf("error = %v, want DailyCapExceeded", err)
	}
	if capErr.Date != "2024-01-01" || capErr.Total != 25 {
		t.Errorf("got %+v, want 2024-01-01 / 25", capErr)
	}

	var count int64
	f.db.Model(&models.Timesheet{}).Where("project_id = ?", b.ID).Count(&count)
	if count != 0 {
		t.Error("rejected save must not create a timesheet")
	}
}

func TestSaveDraftExcludesOwnPreviousEntries(t *testing.T) {
	f := newFixture(t)
	p := f.project(t, "Alpha", "2024-01-01", "2024-01-31", f.alice)

	f.save(t, f.alice, p, entry("2024-01-05", 20))
	ts := f.save(t, f.alice, p, entry("2024-01-05", 22))

	if ts.Entries[0].Hours != 22 {
		t.Errorf("hours = %v, want 22", ts.Entries[0].Hours)
	}
}

func TestSaveDraftCollectsEveryProblem(t *testing.T) {
	f := newFixture(t)
	a := f.project(t, "A", "2024-01-01", "2024-01-31", f.alice)
	b := f.project(t, "B", "2024-01-01", "2024-01-31", f.alice)
	f.save(t, f.alice, a, entry("2024-01-10", 20), entry("2024-01-11", 20))

	_, err := f.svc.SaveDraft(context.Background(), identity.FromUser(&f.alice), b.ID, f.alice.ID, []reconcile.Entry{
		entry("2023-12-31", 1),
		entry("2024-01-02", 25),
		entry("2024-01-03", 2),
		entry("2024-01-03", 3),
		entry("2024-01-10", 5),
		entry("2024-01-11", 8),
		entry("2024-01-12", 8),
	})

	var batch errs.ValidationErrors
	if !errors.As(err, &batch) {
		t.Fatalf("error = %v, want ValidationErrors", err)
	}
	if len(batch) != 5 {
		t.Fatalf("got %d problems, want 5: %v", len(batch), batch)
	}
	for _, target := range []error{errs.ErrDateOutOfRange, errs.ErrCellOutOfRange, errs.ErrDuplicateDate, errs.ErrDailyCapExceeded} {
		if !errors.Is(err, target) {
			t.Errorf("missing %v", target)
		}
	}

	var caps int
	for _, e := range batch {
		if errors.Is(e, errs.ErrDailyCapExceeded) {
			caps++
		}
	}
	if caps != 2 {
		t.Errorf("cap violations = %d, want 2", caps)
	}
}

func TestSaveDraftAuthorization(t *testing.T) {
	f := newFixture(t)
	p := f.project(t, "Alpha", "2024-01-01", "2024-01-31", f.alice)
	ctx := context.Background()

	_, err := f.svc.SaveDraft(ctx, identity.FromUser(&f.bob), p.ID, f.alice.ID, nil)
	if !errors.Is(err, errs.ErrForbidden) {
		t.Errorf("other user: error = %v, want ErrForbidden", err)
	}

	_, err = f.svc.SaveDraft(ctx, identity.FromUser(&f.bob), p.ID, f.bob.ID, nil)
	if !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("non-member: error = %v, want ErrNotFound", err)
	}

	stranger := identity.Identity{UserID: f.alice.ID, OrganizationID: uuid.New()}
	_, err = f.svc.SaveDraft(ctx, stranger, p.ID, f.alice.ID, nil)
	if !errors.Is(err, errs.ErrForbidden) {
		t.Errorf("other organization: error = %v, want ErrForbidden", err)
	}
}

func TestSubmit(t *testing.T) {
	f := newFixture(t)
	p := f.project(t, "Alpha", "2024-01-01", "2024-01-31", f.alice)
	ts := f.save(t, f.alice, p, entry("2024-01-02", 8))

	submitted := f.submit(t, f.alice, ts)
	if submitted.Status != models.StatusSubmitted {
		t.Errorf("Status = %s", submitted.Status)
	}
	if submitted.SubmittedAt == nil || !submitted.SubmittedAt.Equal(testNow) {
		t.Errorf("SubmittedAt = %v, want %v", submitted.SubmittedAt, testNow)
	}

	_, err := f.svc.Submit(context.Background(), identity.FromUser(&f.alice), ts.ID)
	var transition *errs.InvalidTransition
	if !errors.As(err, &transition) || transition.From != string(models.StatusSubmitted) {
		t.Errorf("second submit error = %v, want InvalidTransition from SUBMITTED", err)
	}

	_, err = f.svc.SaveDraft(context.Background(), identity.FromUser(&f.alice), p.ID, f.alice.ID,
		[]reconcile.Entry{entry("2024-01-02", 1)})
	if !errors.Is(err, errs.ErrInvalidTransition) {
		t.Errorf("save after submit error = %v, want ErrInvalidTransition", err)
	}

	var audits int64
	f.db.Model(&models.ApprovalAudit{}).Where("action = ?", models.AuditSubmit).Count(&audits)
	if audits != 1 {
		t.Errorf("submit audits = %d, want 1", audits)
	}
}

func TestSubmitRevalidatesDailyCap(t *testing.T) {
	f := newFixture(t)
	a := f.project(t, "A", "2024-01-01", "2024-01-31", f.alice)
	b := f.project(t, "B", "2024-01-01", "2024-01-31", f.alice)
	ts := f.save(t, f.alice, a, entry("2024-01-04", 20))

	// A concurrent writer got 10h onto the same day in another project.
	other := models.Timesheet{ProjectID: b.ID, UserID: f.alice.ID, Status: models.StatusDraft}
	mustCreate(t, f.db, &other)
	mustCreate(t, f.db, &models.TimesheetEntry{
		TimesheetID: other.ID,
		Date:        time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC),
		Hours:       10,
	})

	_, err := f.svc.Submit(context.Background(), identity.FromUser(&f.alice), ts.ID)
	var capErr *errs.DailyCapExceeded
	if !errors.As(err, &capErr) || capErr.Total != 30 {
		t.Fatalf("error = %v, want DailyCapExceeded total 30", err)
	}

	var reloaded models.Timesheet
	f.db.First(&reloaded, "id = ?", ts.ID)
	if reloaded.Status != models.StatusDraft {
		t.Errorf("Status = %s, want DRAFT", reloaded.Status)
	}
}

func TestApproveProjectIncomplete(t *testing.T) {
	f := newFixture(t)
	p := f.project(t, "Alpha", "2024-01-01", "2024-01-31", f.alice, f.bob, f.carol)

	f.submit(t, f.alice, f.save(t, f.alice, p, entry("2024-01-02", 8)))
	f.submit(t, f.bob, f.save(t, f.bob, p, entry("2024-01-02", 8)))
	f.save(t, f.carol, p, entry("2024-01-02", 8))

	_, err := f.svc.ApproveProject(context.Background(), identity.FromUser(&f.admin), p.ID)
	var incomplete *errs.IncompleteSubmission
	if !errors.As(err, &incomplete) {
		t.Fatalf("error = %v, want IncompleteSubmission", err)
	}
	if incomplete.PendingCount != 1 || incomplete.TotalMembers != 3 {
		t.Errorf("got %+v", incomplete)
	}
	if incomplete.Pending[0].Email != f.carol.Email || incomplete.Pending[0].State != string(models.StatusDraft) {
		t.Errorf("pending = %+v", incomplete.Pending)
	}

	var approved int64
	f.db.Model(&models.Timesheet{}).Where("status = ?", models.StatusApproved).Count(&approved)
	if approved != 0 {
		t.Errorf("approved = %d, want 0", approved)
	}
}

func TestApproveProjectMissingTimesheet(t *testing.T) {
	f := newFixture(t)
	p := f.project(t, "Alpha", "2024-01-01", "2024-01-31", f.alice, f.bob)
	f.submit(t, f.alice, f.save(t, f.alice, p, entry("2024-01-02", 8)))

	_, err := f.svc.ApproveProject(context.Background(), identity.FromUser(&f.admin), p.ID)
	var incomplete *errs.IncompleteSubmission
	if !errors.As(err, &incomplete) {
		t.Fatalf("error = %v, want IncompleteSubmission", err)
	}
	if incomplete.Pending[0].Email != f.bob.Email || incomplete.Pending[0].State != NotStarted {
		t.Errorf("pending = %+v", incomplete.Pending)
	}
}

func TestApproveProjectIsAllOrNothingAndIdempotent(t *testing.T) {
	f := newFixture(t)
	p := f.project(t, "Alpha", "2024-01-01", "2024-01-31", f.alice, f.bob, f.carol)
	for _, u := range []models.User{f.alice, f.bob, f.carol} {
		f.submit(t, u, f.save(t, u, p, entry("2024-01-02", 8)))
	}
	ctx := context.Background()

	res, err := f.svc.ApproveProject(ctx, identity.FromUser(&f.admin), p.ID)
	if err != nil {
		t.Fatalf("ApproveProject: %v", err)
	}
	if res.ApprovedCount != 3 || res.AlreadyApproved {
		t.Errorf("result = %+v", res)
	}

	var timesheets []models.Timesheet
	f.db.Where("project_id = ?", p.ID).Find(&timesheets)
	for _, ts := range timesheets {
		if ts.Status != models.StatusApproved || ts.ApprovedBy == nil || *ts.ApprovedBy != f.admin.ID {
			t.Errorf("timesheet %s = %s by %v", ts.ID, ts.Status, ts.ApprovedBy)
		}
		if ts.ApprovedAt == nil || !ts.ApprovedAt.Equal(testNow) {
			t.Errorf("ApprovedAt = %v", ts.ApprovedAt)
		}
	}

	f.svc.WithClock(func() time.Time { return testNow.Add(time.Hour) })
	again, err := f.svc.ApproveProject(ctx, identity.FromUser(&f.admin), p.ID)
	if err != nil {
		t.Fatalf("second ApproveProject: %v", err)
	}
	if !again.AlreadyApproved || again.ApprovedCount != 0 {
		t.Errorf("second result = %+v", again)
	}

	f.db.Where("project_id = ?", p.ID).Find(&timesheets)
	for _, ts := range timesheets {
		if !ts.ApprovedAt.Equal(testNow) {
			t.Errorf("second approval changed ApprovedAt to %v", ts.ApprovedAt)
		}
	}
}

func TestApproveProjectDetectsRace(t *testing.T) {
	f := newFixture(t)
	p := f.project(t, "Alpha", "2024-01-01", "2024-01-31", f.alice, f.bob)
	alice := f.submit(t, f.alice, f.save(t, f.alice, p, entry("2024-01-02", 8)))
	f.submit(t, f.bob, f.save(t, f.bob, p, entry("2024-01-02", 8)))

	// Another writer moves one timesheet out of SUBMITTED right before the
	// approval update runs.
	armed := true
	err := f.db.Callback().Update().Before("gorm:update").Register("test:concurrent_writer", func(tx *gorm.DB) {
		if !armed || tx.Statement.Table != "timesheets" {
			return
		}
		armed = false
		_, err := tx.Statement.ConnPool.ExecContext(tx.Statement.Context,
			"UPDATE timesheets SET status = ? WHERE id = ?", string(models.StatusApproved), alice.ID.String())
		if err != nil {
			tx.AddError(err)
		}
	})
	if err != nil {
		t.Fatal(err)
	}

	_, err = f.svc.ApproveProject(context.Background(), identity.FromUser(&f.admin), p.ID)
	if !errors.Is(err, errs.ErrApprovalRaceDetected) {
		t.Fatalf("error = %v, want ErrApprovalRaceDetected", err)
	}

	var approved int64
	f.db.Model(&models.Timesheet{}).Where("project_id = ? AND approved_by IS NOT NULL", p.ID).Count(&approved)
	if approved != 0 {
		t.Errorf("timesheets stamped approved_by = %d, want 0", approved)
	}
}

func TestApproveProjectRequiresApprover(t *testing.T) {
	f := newFixture(t)
	p := f.project(t, "Alpha", "2024-01-01", "2024-01-31", f.alice)

	_, err := f.svc.ApproveProject(context.Background(), identity.FromUser(&f.alice), p.ID)
	if !errors.Is(err, errs.ErrForbidden) {
		t.Errorf("error = %v, want ErrForbidden", err)
	}
}

func TestSaveDraftDailyCapAllowsExactlyTwentyFour(t *testing.T) {
	f := newFixture(t)
	a := f.project(t, "A", "2024-01-01", "2024-01-31", f.alice)
	b := f.project(t, "B", "2024-01-01", "2024-01-31", f.alice)
	c := f.project(t, "C", "2024-01-01", "2024-01-31", f.alice)

	f.save(t, f.alice, a, entry("2024-01-02", 3.1))
	f.save(t, f.alice, b, entry("2024-01-02", 16.1))
	f.save(t, f.alice, c, entry("2024-01-02", 4.8))

	_, err := f.svc.SaveDraft(context.Background(), identity.FromUser(&f.alice), c.ID, f.alice.ID,
		[]reconcile.Entry{entry("2024-01-02", 4.81)})
	var capErr *errs.DailyCapExceeded
	if !errors.As(err, &capErr) {
		t.Fatalf("error = %v, want DailyCapExceeded", err)
	}
	if capErr.Total != 24.01 {
		t.Errorf("Total = %v, want 24.01", capErr.Total)
	}
}

func TestApproveProjectRechecksRosterInsideTransaction(t *testing.T) {
	f := newFixture(t)
	p := f.project(t, "Alpha", "2024-01-01", "2024-01-31", f.alice)
	alice := f.submit(t, f.alice, f.save(t, f.alice, p, entry("2024-01-02", 8)))

	// Bob joins the project after the roster was first checked but before
	// the approval update runs.
	armed := true
	err := f.db.Callback().Update().Before("gorm:update").Register("test:late_member", func(tx *gorm.DB) {
		if !armed || tx.Statement.Table != "timesheets" {
			return
		}
		armed = false
		_, err := tx.Statement.ConnPool.ExecContext(tx.Statement.Context,
			"INSERT INTO project_members (id, created_at, updated_at, project_id, user_id, role) VALUES (?, ?, ?, ?, ?, ?)",
			uuid.NewString(), testNow, testNow, p.ID.String(), f.bob.ID.String(), string(models.MemberRoleMember))
		if err != nil {
			tx.AddError(err)
		}
	})
	if err != nil {
		t.Fatal(err)
	}

	result, err := f.svc.ApproveProject(context.Background(), identity.FromUser(&f.admin), p.ID)
	var incomplete *errs.IncompleteSubmission
	if !errors.As(err, &incomplete) {
		t.Fatalf("result = %+v, error = %v, want IncompleteSubmission", result, err)
	}
	if incomplete.PendingCount != 1 || incomplete.Pending[0].Email != f.bob.Email || incomplete.Pending[0].State != NotStarted {
		t.Errorf("pending = %+v", incomplete.Pending)
	}

	var reloaded models.Timesheet
	f.db.First(&reloaded, "id = ?", alice.ID)
	if reloaded.Status != models.StatusSubmitted || reloaded.ApprovedBy != nil {
		t.Errorf("alice = %s approved_by %v, want untouched SUBMITTED", reloaded.Status, reloaded.ApprovedBy)
	}
}

func TestIsWriteConflict(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, true},
		{"wrapped", fmt.Errorf("save entries: %w", &pgconn.PgError{Code: "40001"}), true},
		{"other pg error", &pgconn.PgError{Code: "23503"}, false},
		{"not a pg error", errors.New("connection refused"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isWriteConflict(tt.err); got != tt.want {
				t.Errorf("isWriteConflict(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestTransactionRetriesOnceOnConflict(t *testing.T) {
	conflict := &pgconn.PgError{Code: "40001"}
	plain := errors.New("boom")

	tests := []struct {
		name      string
		results   []error
		wantCalls int
		wantErr   error
	}{
		{"success", []error{nil}, 1, nil},
		{"plain failure", []error{plain}, 1, plain},
		{"conflict then success", []error{conflict, nil}, 2, nil},
		{"conflict twice", []error{conflict, conflict, nil}, 2, conflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(newTestDB(t), zerolog.Nop())
			calls := 0
			err := svc.transaction(context.Background(), func(tx *gorm.DB) error {
				res := tt.results[calls]
				calls++
				return res
			})

			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
