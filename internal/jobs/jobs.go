// Package jobs tracks delegated work as a tree of jobs and drives
// completion notification.
package jobs

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/arlobright/signalbox/internal/db"
	"github.com/arlobright/signalbox/internal/fault"
	"github.com/arlobright/signalbox/internal/messaging"
	"github.com/arlobright/signalbox/internal/models"
	"gorm.io/gorm"
)

// requiredPrior maps each target status to the only status a job may
// hold immediately before it. pending → in_progress → {completed|failed},
// or pending → cancelled.
var requiredPrior = map[string]string{
	models.JobInProgress: models.JobPending,
	models.JobCompleted:  models.JobInProgress,
	models.JobFailed:     models.JobInProgress,
	models.JobCancelled:  models.JobPending,
}

// Tracker is the job-tracker handle. Log is used for completion fan-out;
// it may be nil in contexts that never complete jobs.
type Tracker struct {
	DB  *gorm.DB
	Log *messaging.Log
}

// New creates a Tracker.
func New(gdb *gorm.DB, msgLog *messaging.Log) *Tracker {
	return &Tracker{DB: gdb, Log: msgLog}
}

// CreateOpts holds optional parameters for creating a job.
type CreateOpts struct {
	Requester       string
	ParentJobID     *uint
	OriginMessageID *uint
	Priority        int // 1–10, defaults to 5
	NotifyList      []string
}

// Create registers a new pending job owned by owner.
func (t *Tracker) Create(owner string, opts CreateOpts) (*models.Job, error) {
	if owner == "" {
		return nil, fmt.Errorf("jobs: owner is required: %w", fault.ErrValidation)
	}
	priority := opts.Priority
	if priority == 0 {
		priority = 5
	}
	if priority < 1 || priority > 10 {
		return nil, fmt.Errorf("jobs: priority %d out of range 1-10: %w", priority, fault.ErrValidation)
	}
	if opts.ParentJobID != nil {
		var n int64
		if err := t.DB.Model(&models.Job{}).Where("id = ?", *opts.ParentJobID).Count(&n).Error; err != nil {
			return nil, fmt.Errorf("jobs: check parent %d: %w", *opts.ParentJobID, err)
		}
		if n == 0 {
			return nil, fmt.Errorf("jobs: parent job %d does not exist: %w", *opts.ParentJobID, fault.ErrValidation)
		}
	}
	if opts.OriginMessageID != nil {
		var n int64
		if err := t.DB.Model(&models.Message{}).Where("id = ?", *opts.OriginMessageID).Count(&n).Error; err != nil {
			return nil, fmt.Errorf("jobs: check origin message %d: %w", *opts.OriginMessageID, err)
		}
		if n == 0 {
			return nil, fmt.Errorf("jobs: origin message %d does not exist: %w", *opts.OriginMessageID, fault.ErrValidation)
		}
	}

	notifyJSON, err := json.Marshal(opts.NotifyList)
	if err != nil {
		return nil, fmt.Errorf("jobs: marshal notify list: %w", err)
	}

	job := models.Job{
		OwnerAgent:      owner,
		RequesterAgent:  opts.Requester,
		ParentJobID:     opts.ParentJobID,
		OriginMessageID: opts.OriginMessageID,
		Status:          models.JobPending,
		Priority:        priority,
		NotifyList:      string(notifyJSON),
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	if err := t.DB.Create(&job).Error; err != nil {
		return nil, fmt.Errorf("jobs: create: %w", db.Classify(err))
	}
	return &job, nil
}

// Get returns one job by id.
func (t *Tracker) Get(jobID uint) (*models.Job, error) {
	var job models.Job
	err := t.DB.First(&job, jobID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("jobs: job %d: %w", jobID, fault.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("jobs: get %d: %w", jobID, err)
	}
	return &job, nil
}

// Transition moves a job to newStatus on behalf of actor. Only the
// owner may transition a job. The update is guarded on the required
// prior status, so a concurrent loser surfaces InvalidStateTransition
// rather than clobbering a terminal state.
//
// Cancelling a job does not cascade to its children; in-progress
// sub-jobs keep running and must be handled by their own owners.
func (t *Tracker) Transition(jobID uint, newStatus, actor string) error {
	return t.transition(jobID, newStatus, actor, nil)
}

// transition applies the guarded status update. Extra columns ride in
// the same UPDATE, so a rejected call writes nothing at all.
func (t *Tracker) transition(jobID uint, newStatus, actor string, extra map[string]interface{}) error {
	prior, ok := requiredPrior[newStatus]
	if !ok {
		return fmt.Errorf("jobs: unknown target status %q: %w", newStatus, fault.ErrValidation)
	}

	job, err := t.Get(jobID)
	if err != nil {
		return err
	}
	if job.OwnerAgent != actor {
		return fmt.Errorf("jobs: %q does not own job %d (owner %q): %w",
			actor, jobID, job.OwnerAgent, fault.ErrUnauthorized)
	}

	now := time.Now()
	updates := map[string]interface{}{"status": newStatus, "updated_at": now}
	switch newStatus {
	case models.JobInProgress:
		updates["started_at"] = now
	case models.JobCompleted, models.JobFailed, models.JobCancelled:
		updates["completed_at"] = now
	}
	for col, val := range extra {
		updates[col] = val
	}

	res := t.DB.Model(&models.Job{}).
		Where("id = ? AND status = ?", jobID, prior).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("jobs: transition %d to %s: %w", jobID, newStatus, db.Classify(res.Error))
	}
	if res.RowsAffected == 0 {
		cur, err := t.Get(jobID)
		if err != nil {
			return err
		}
		return fmt.Errorf("jobs: cannot move job %d from %s to %s: %w",
			jobID, cur.Status, newStatus, fault.ErrInvalidTransition)
	}

	// The guarded update means this branch runs at most once per job
	// lifetime, which is what keeps the notify fan-out exactly-once.
	if newStatus == models.JobCompleted {
		t.notifyCompletion(jobID)
	}
	return nil
}

// Complete records the deliverable and moves the job to completed in a
// single guarded update, then fans out its notify-list messages. A call
// rejected for ownership or state leaves the row untouched.
func (t *Tracker) Complete(jobID uint, actor, deliverable, summary string) error {
	extra := map[string]interface{}{}
	if deliverable != "" {
		extra["deliverable"] = deliverable
	}
	if summary != "" {
		extra["summary"] = summary
	}
	return t.transition(jobID, models.JobCompleted, actor, extra)
}

// Fail moves a job to failed, recording the error detail in the same
// guarded update.
func (t *Tracker) Fail(jobID uint, actor, errorDetail string) error {
	extra := map[string]interface{}{}
	if errorDetail != "" {
		extra["error_detail"] = errorDetail
	}
	return t.transition(jobID, models.JobFailed, actor, extra)
}

// ListPending returns owner's jobs still in flight, highest priority
// first, ties broken oldest-first.
func (t *Tracker) ListPending(owner string) ([]models.Job, error) {
	if owner == "" {
		return nil, fmt.Errorf("jobs: owner is required: %w", fault.ErrValidation)
	}
	var jobsOut []models.Job
	err := t.DB.Where("owner_agent = ? AND status IN ?",
		owner, []string{models.JobPending, models.JobInProgress}).
		Order("priority DESC").
		Order("created_at ASC").
		Find(&jobsOut).Error
	if err != nil {
		return nil, fmt.Errorf("jobs: list pending for %s: %w", owner, err)
	}
	return jobsOut, nil
}

// CompleteFromMessage completes the recipient-owned job that originated
// messageID, if one exists and is still in flight. Wired as the message
// log's OnResponded hook. A pending job is started first so the
// transition chain stays legal.
func (t *Tracker) CompleteFromMessage(messageID uint, recipient string) error {
	var job models.Job
	err := t.DB.Where("origin_message_id = ? AND owner_agent = ? AND status IN ?",
		messageID, recipient, []string{models.JobPending, models.JobInProgress}).
		Order("id ASC").
		First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil // message did not originate a live job for this recipient
	}
	if err != nil {
		return fmt.Errorf("jobs: find job for message %d: %w", messageID, err)
	}

	if job.Status == models.JobPending {
		if err := t.Transition(job.ID, models.JobInProgress, recipient); err != nil {
			return err
		}
	}
	return t.Transition(job.ID, models.JobCompleted, recipient)
}

// notifyCompletion appends an informational message to every identity in
// the job's notify-list. Fan-out failures are logged, never retried: the
// job is already completed and re-running would double-notify.
func (t *Tracker) notifyCompletion(jobID uint) {
	job, err := t.Get(jobID)
	if err != nil {
		log.Printf("jobs: notify completion %d: %v", jobID, err)
		return
	}
	var notifyList []string
	if job.NotifyList != "" {
		if err := json.Unmarshal([]byte(job.NotifyList), &notifyList); err != nil {
			log.Printf("jobs: parse notify list for %d: %v", jobID, err)
			return
		}
	}
	if len(notifyList) == 0 || t.Log == nil {
		return
	}

	body := fmt.Sprintf("job %d completed", job.ID)
	if job.Summary != "" {
		body += ": " + job.Summary
	}
	if job.Deliverable != "" {
		body += " (deliverable: " + job.Deliverable + ")"
	}
	if _, err := t.Log.Submit(job.OwnerAgent, body, notifyList, nil); err != nil {
		log.Printf("jobs: notify completion %d: %v", jobID, err)
	}
}
