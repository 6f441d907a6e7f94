package jobs

import (
	"errors"
	"testing"

	"github.com/arlobright/signalbox/internal/fault"
	"github.com/arlobright/signalbox/internal/messaging"
	"github.com/arlobright/signalbox/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := gdb.AutoMigrate(
		&models.Message{},
		&models.MessageRecipient{},
		&models.DeliveryRecord{},
		&models.Job{},
	); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return gdb
}

func newTracker(t *testing.T) (*Tracker, *messaging.Log) {
	t.Helper()
	gdb := openTestDB(t)
	msgLog := messaging.New(gdb, nil)
	return New(gdb, msgLog), msgLog
}

// --- Create ---

func TestCreate_MissingOwner(t *testing.T) {
	tr, _ := newTracker(t)
	_, err := tr.Create("", CreateOpts{})
	if !errors.Is(err, fault.ErrValidation) {
		t.Errorf("error = %v, want fault.ErrValidation", err)
	}
}

func TestCreate_UnknownParent(t *testing.T) {
	tr, _ := newTracker(t)
	parent := uint(404)
	_, err := tr.Create("newhart", CreateOpts{ParentJobID: &parent})
	if !errors.Is(err, fault.ErrValidation) {
		t.Errorf("error = %v, want fault.ErrValidation", err)
	}
}

func TestCreate_PriorityOutOfRange(t *testing.T) {
	tr, _ := newTracker(t)
	for _, p := range []int{-1, 11} {
		_, err := tr.Create("newhart", CreateOpts{Priority: p})
		if !errors.Is(err, fault.ErrValidation) {
			t.Errorf("priority %d: error = %v, want fault.ErrValidation", p, err)
		}
	}
}

func TestCreate_Defaults(t *testing.T) {
	tr, _ := newTracker(t)
	job, err := tr.Create("newhart", CreateOpts{Requester: "mcp"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if job.Status != models.JobPending {
		t.Errorf("status = %q, want pending", job.Status)
	}
	if job.Priority != 5 {
		t.Errorf("priority = %d, want 5", job.Priority)
	}
}

func TestCreate_Tree(t *testing.T) {
	tr, _ := newTracker(t)
	parent, err := tr.Create("newhart", CreateOpts{})
	if err != nil {
		t.Fatalf("create parent: %v", err)
	}
	child, err := tr.Create("newhart", CreateOpts{ParentJobID: &parent.ID})
	if err != nil {
		t.Fatalf("create child: %v", err)
	}
	if child.ParentJobID == nil || *child.ParentJobID != parent.ID {
		t.Errorf("child.ParentJobID = %v, want %d", child.ParentJobID, parent.ID)
	}
}

// --- Transition ---

func TestTransition_HappyPath(t *testing.T) {
	tr, _ := newTracker(t)
	job, _ := tr.Create("newhart", CreateOpts{})

	if err := tr.Transition(job.ID, models.JobInProgress, "newhart"); err != nil {
		t.Fatalf("to in_progress: %v", err)
	}
	got, _ := tr.Get(job.ID)
	if got.StartedAt == nil {
		t.Error("StartedAt not set")
	}

	if err := tr.Transition(job.ID, models.JobCompleted, "newhart"); err != nil {
		t.Fatalf("to completed: %v", err)
	}
	got, _ = tr.Get(job.ID)
	if got.Status != models.JobCompleted {
		t.Errorf("status = %q, want completed", got.Status)
	}
	if got.CompletedAt == nil {
		t.Error("CompletedAt not set")
	}
}

func TestTransition_NonOwner(t *testing.T) {
	tr, _ := newTracker(t)
	job, _ := tr.Create("newhart", CreateOpts{})
	err := tr.Transition(job.ID, models.JobInProgress, "mcp")
	if !errors.Is(err, fault.ErrUnauthorized) {
		t.Errorf("error = %v, want fault.ErrUnauthorized", err)
	}
}

func TestTransition_Backward(t *testing.T) {
	tr, _ := newTracker(t)
	job, _ := tr.Create("newhart", CreateOpts{})
	tr.Transition(job.ID, models.JobInProgress, "newhart")
	tr.Transition(job.ID, models.JobCompleted, "newhart")

	err := tr.Transition(job.ID, models.JobInProgress, "newhart")
	if !errors.Is(err, fault.ErrInvalidTransition) {
		t.Errorf("error = %v, want fault.ErrInvalidTransition", err)
	}
}

func TestTransition_CancelOnlyFromPending(t *testing.T) {
	tr, _ := newTracker(t)

	job, _ := tr.Create("newhart", CreateOpts{})
	if err := tr.Transition(job.ID, models.JobCancelled, "newhart"); err != nil {
		t.Fatalf("cancel pending: %v", err)
	}

	job2, _ := tr.Create("newhart", CreateOpts{})
	tr.Transition(job2.ID, models.JobInProgress, "newhart")
	err := tr.Transition(job2.ID, models.JobCancelled, "newhart")
	if !errors.Is(err, fault.ErrInvalidTransition) {
		t.Errorf("cancel in_progress error = %v, want fault.ErrInvalidTransition", err)
	}
}

func TestTransition_CancelDoesNotCascade(t *testing.T) {
	tr, _ := newTracker(t)
	parent, _ := tr.Create("newhart", CreateOpts{})
	child, _ := tr.Create("newhart", CreateOpts{ParentJobID: &parent.ID})
	tr.Transition(child.ID, models.JobInProgress, "newhart")

	if err := tr.Transition(parent.ID, models.JobCancelled, "newhart"); err != nil {
		t.Fatalf("cancel parent: %v", err)
	}
	got, _ := tr.Get(child.ID)
	if got.Status != models.JobInProgress {
		t.Errorf("child status = %q, want in_progress (no cascade)", got.Status)
	}
}

func TestTransition_UnknownStatus(t *testing.T) {
	tr, _ := newTracker(t)
	job, _ := tr.Create("newhart", CreateOpts{})
	err := tr.Transition(job.ID, "paused", "newhart")
	if !errors.Is(err, fault.ErrValidation) {
		t.Errorf("error = %v, want fault.ErrValidation", err)
	}
}

func TestTransition_MissingJob(t *testing.T) {
	tr, _ := newTracker(t)
	err := tr.Transition(404, models.JobInProgress, "newhart")
	if !errors.Is(err, fault.ErrNotFound) {
		t.Errorf("error = %v, want fault.ErrNotFound", err)
	}
}

// --- Completion notification ---

func TestComplete_NotifiesOnce(t *testing.T) {
	tr, msgLog := newTracker(t)
	job, _ := tr.Create("newhart", CreateOpts{NotifyList: []string{"mcp", "scout"}})
	tr.Transition(job.ID, models.JobInProgress, "newhart")

	if err := tr.Complete(job.ID, "newhart", "/out/report.md", "report written"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	// Second completion must fail and must not re-notify.
	if err := tr.Complete(job.ID, "newhart", "", ""); !errors.Is(err, fault.ErrInvalidTransition) {
		t.Errorf("second complete error = %v, want fault.ErrInvalidTransition", err)
	}

	for _, recipient := range []string{"mcp", "scout"} {
		msgs, err := msgLog.ListPending(recipient, 0)
		if err != nil {
			t.Fatalf("list pending %s: %v", recipient, err)
		}
		if len(msgs) != 1 {
			t.Errorf("%s got %d completion messages, want exactly 1", recipient, len(msgs))
		}
	}

	got, _ := tr.Get(job.ID)
	if got.Deliverable != "/out/report.md" || got.Summary != "report written" {
		t.Errorf("deliverable/summary not recorded: %q / %q", got.Deliverable, got.Summary)
	}
}

func TestComplete_RejectedCallLeavesRowUntouched(t *testing.T) {
	tr, _ := newTracker(t)
	job, _ := tr.Create("newhart", CreateOpts{})
	tr.Transition(job.ID, models.JobInProgress, "newhart")
	if err := tr.Complete(job.ID, "newhart", "/out/report.md", "report written"); err != nil {
		t.Fatalf("complete: %v", err)
	}

	// A non-owner retry and an owner retry must both fail without
	// rewriting the terminal record.
	if err := tr.Complete(job.ID, "mcp", "/tmp/bogus.txt", "clobbered"); !errors.Is(err, fault.ErrUnauthorized) {
		t.Errorf("non-owner complete error = %v, want fault.ErrUnauthorized", err)
	}
	if err := tr.Complete(job.ID, "newhart", "/tmp/bogus.txt", "clobbered"); !errors.Is(err, fault.ErrInvalidTransition) {
		t.Errorf("repeat complete error = %v, want fault.ErrInvalidTransition", err)
	}

	got, _ := tr.Get(job.ID)
	if got.Deliverable != "/out/report.md" || got.Summary != "report written" {
		t.Errorf("terminal record mutated by rejected call: %q / %q", got.Deliverable, got.Summary)
	}
}

func TestFail_NonOwnerLeavesRowUntouched(t *testing.T) {
	tr, _ := newTracker(t)
	job, _ := tr.Create("newhart", CreateOpts{})
	tr.Transition(job.ID, models.JobInProgress, "newhart")

	if err := tr.Fail(job.ID, "mcp", "not yours"); !errors.Is(err, fault.ErrUnauthorized) {
		t.Errorf("non-owner fail error = %v, want fault.ErrUnauthorized", err)
	}
	got, _ := tr.Get(job.ID)
	if got.Status != models.JobInProgress || got.ErrorDetail != "" {
		t.Errorf("job mutated by rejected fail: status=%q detail=%q", got.Status, got.ErrorDetail)
	}
}

func TestComplete_EmptyNotifyList(t *testing.T) {
	tr, _ := newTracker(t)
	job, _ := tr.Create("newhart", CreateOpts{})
	tr.Transition(job.ID, models.JobInProgress, "newhart")
	if err := tr.Complete(job.ID, "newhart", "", ""); err != nil {
		t.Fatalf("complete: %v", err)
	}
}

func TestFail_RecordsDetail(t *testing.T) {
	tr, _ := newTracker(t)
	job, _ := tr.Create("newhart", CreateOpts{NotifyList: []string{"mcp"}})
	tr.Transition(job.ID, models.JobInProgress, "newhart")

	if err := tr.Fail(job.ID, "newhart", "build broke"); err != nil {
		t.Fatalf("fail: %v", err)
	}
	got, _ := tr.Get(job.ID)
	if got.Status != models.JobFailed {
		t.Errorf("status = %q, want failed", got.Status)
	}
	if got.ErrorDetail != "build broke" {
		t.Errorf("ErrorDetail = %q", got.ErrorDetail)
	}
}

// --- ListPending ordering ---

func TestListPending_Ordering(t *testing.T) {
	tr, _ := newTracker(t)

	low, _ := tr.Create("newhart", CreateOpts{Priority: 2})
	highOld, _ := tr.Create("newhart", CreateOpts{Priority: 9})
	highNew, _ := tr.Create("newhart", CreateOpts{Priority: 9})
	done, _ := tr.Create("newhart", CreateOpts{Priority: 10})
	tr.Transition(done.ID, models.JobInProgress, "newhart")
	tr.Transition(done.ID, models.JobCompleted, "newhart")
	tr.Create("mcp", CreateOpts{Priority: 10}) // other owner

	got, err := tr.ListPending("newhart")
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	wantOrder := []uint{highOld.ID, highNew.ID, low.ID}
	for i, want := range wantOrder {
		if got[i].ID != want {
			t.Errorf("position %d: id = %d, want %d", i, got[i].ID, want)
		}
	}
}

// --- Message-driven completion ---

func TestCompleteFromMessage(t *testing.T) {
	tr, msgLog := newTracker(t)
	msg, _ := msgLog.Submit("mcp", "please do the thing", []string{"newhart"}, nil)
	job, _ := tr.Create("newhart", CreateOpts{
		OriginMessageID: &msg.ID,
		NotifyList:      []string{"mcp"},
	})

	msgLog.OnResponded = tr.CompleteFromMessage
	msgLog.MarkReceived(msg.ID, "newhart")
	msgLog.MarkRouted(msg.ID, "newhart")
	if err := msgLog.MarkResponded(msg.ID, "newhart"); err != nil {
		t.Fatalf("mark responded: %v", err)
	}

	got, _ := tr.Get(job.ID)
	if got.Status != models.JobCompleted {
		t.Errorf("job status = %q, want completed", got.Status)
	}

	// Completion message landed back at mcp.
	msgs, _ := msgLog.ListPending("mcp", msg.ID)
	if len(msgs) != 1 {
		t.Errorf("mcp got %d completion messages, want 1", len(msgs))
	}
}

func TestCompleteFromMessage_NoJob(t *testing.T) {
	tr, msgLog := newTracker(t)
	msg, _ := msgLog.Submit("mcp", "just chatting", []string{"newhart"}, nil)
	if err := tr.CompleteFromMessage(msg.ID, "newhart"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestCompleteFromMessage_OtherOwnerUntouched(t *testing.T) {
	tr, msgLog := newTracker(t)
	msg, _ := msgLog.Submit("mcp", "for coder", []string{"coder", "newhart"}, nil)
	job, _ := tr.Create("coder", CreateOpts{OriginMessageID: &msg.ID})

	if err := tr.CompleteFromMessage(msg.ID, "newhart"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := tr.Get(job.ID)
	if got.Status != models.JobPending {
		t.Errorf("coder's job status = %q, want pending", got.Status)
	}
}
