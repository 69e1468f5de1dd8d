// internal/lifecycle/controller.go
//
// The client's view of the job/application/escrow aggregate and the legal
// transition operations over it. Holds a version-tagged cache of the
// last-known server state plus a per-job optimistic overlay (the applied
// flag) that authoritative refreshes always win over.

package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/trustwork/trustwork/internal/api"
	"github.com/trustwork/trustwork/internal/logbook"
)

var (
	// ErrBusy rejects a second mutating call for a job while one is still
	// in flight. These are user-initiated financial actions; a double
	// click must never become a double submission.
	ErrBusy = errors.New("lifecycle: another request for this job is still in flight")

	// ErrAlreadyApplied surfaces the server's repeat-apply answer.
	ErrAlreadyApplied = errors.New("lifecycle: already applied to this job")

	// ErrNoEscrow is the valid "no funding action yet" outcome of Escrow,
	// distinct from a fetch failure.
	ErrNoEscrow = errors.New("lifecycle: job has no escrow yet")

	// ErrUnknownJob means the job id is not in the cache.
	ErrUnknownJob = errors.New("lifecycle: job not in local state")
)

// ValidationError is a client-side input failure; no network call was made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// Backend is the slice of the gateway client the controller drives.
type Backend interface {
	ListJobs(ctx context.Context) ([]api.Job, error)
	GetJob(ctx context.Context, jobID int) (*api.Job, error)
	CreateJob(ctx context.Context, title, description, budget string) (*api.Job, error)
	AssignApplicant(ctx context.Context, jobID, applicantID int) (*api.Job, error)
	UpdateStatus(ctx context.Context, jobID int, status string) (*api.Job, error)
	Apply(ctx context.Context, jobID int) (*api.ApplyResult, error)
	WithdrawApplication(ctx context.Context, jobID int) error
	Applicants(ctx context.Context, jobID int) ([]api.Applicant, error)
	CompleteJob(ctx context.Context, jobID int, workSummary string) error
	Escrow(ctx context.Context, jobID int) (*api.EscrowInfo, error)
	MyApplications(ctx context.Context) ([]api.MyApplication, error)
	Transactions(ctx context.Context) ([]api.Transaction, error)
	WorkersOverview(ctx context.Context) (*api.WorkersOverview, error)
	WorkHistory(ctx context.Context) ([]api.WorkHistoryEntry, error)
	Chats(ctx context.Context) ([]api.ChatThread, error)
	Messages(ctx context.Context, jobID int) ([]api.Message, error)
	SendMessage(ctx context.Context, jobID int, text string) (*api.Message, error)
}

// Principal exposes who is driving the controller.
type Principal interface {
	Role() string
	UserID() int
}

// JobView is a read-only snapshot of one cached aggregate.
type JobView struct {
	Job           api.Job
	Applicants    []api.Applicant
	Escrow        *api.EscrowInfo
	Version       uint64
	AppliedByMe   bool
	ApplicationID int
}

// Status returns the job's parsed lifecycle status.
func (v JobView) Status() Status {
	return Status(v.Job.Status)
}

type aggregate struct {
	job        api.Job
	applicants []api.Applicant
	escrow     *api.EscrowInfo
	version    uint64

	// Authoritative applied state, from the my-applications merge.
	appliedByMe   bool
	applicationID int
}

// overlayEntry is the optimistic "applied-by-me, pending" marker set before
// server confirmation. Keyed by job id so it survives a wholesale list
// replacement until an authoritative refresh for that job lands.
type overlayEntry struct {
	applied       bool
	applicationID int
}

// Controller reconciles optimistic UI state with authoritative responses.
type Controller struct {
	backend   Backend
	principal Principal
	log       *logbook.Logbook

	mu       sync.Mutex
	jobs     map[int]*aggregate
	overlay  map[int]overlayEntry
	inflight map[int]bool
}

// New creates a controller. principal may not be nil; log may be nil.
func New(backend Backend, principal Principal, log *logbook.Logbook) *Controller {
	return &Controller{
		backend:   backend,
		principal: principal,
		log:       log.With("lifecycle"),
		jobs:      make(map[int]*aggregate),
		overlay:   make(map[int]overlayEntry),
		inflight:  make(map[int]bool),
	}
}

// acquire marks a job's mutation slot. The release func is safe to defer.
func (c *Controller) acquire(jobID int) (func(), error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight[jobID] {
		return nil, ErrBusy
	}
	c.inflight[jobID] = true
	return func() {
		c.mu.Lock()
		delete(c.inflight, jobID)
		c.mu.Unlock()
	}, nil
}

// InFlight reports whether a mutation for the job is outstanding; views
// disable the triggering control while this is true.
func (c *Controller) InFlight(jobID int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inflight[jobID]
}

// storeAuthoritative merges one server-confirmed job record into the cache:
// bumps the version, clears the optimistic overlay for that job (server
// wins), and logs backward status deltas as data inconsistencies.
// Caller holds c.mu.
func (c *Controller) storeAuthoritative(job api.Job) *aggregate {
	agg, ok := c.jobs[job.ID]
	if !ok {
		agg = &aggregate{}
		c.jobs[job.ID] = agg
	} else if isBackward(Status(agg.job.Status), Status(job.Status)) {
		c.log.Error("job %d status went backward: %s -> %s (server data kept)",
			job.ID, agg.job.Status, job.Status)
	}
	agg.job = job
	agg.version++
	delete(c.overlay, job.ID)
	return agg
}

// view builds a snapshot with the overlay merged in. Caller holds c.mu.
func (c *Controller) view(agg *aggregate) JobView {
	v := JobView{
		Job:           agg.job,
		Applicants:    append([]api.Applicant(nil), agg.applicants...),
		Escrow:        agg.escrow,
		Version:       agg.version,
		AppliedByMe:   agg.appliedByMe,
		ApplicationID: agg.applicationID,
	}
	if ov, ok := c.overlay[agg.job.ID]; ok && ov.applied {
		v.AppliedByMe = true
		if v.ApplicationID == 0 {
			v.ApplicationID = ov.applicationID
		}
	}
	return v
}

// Job returns the cached view of one job.
func (c *Controller) Job(jobID int) (JobView, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	agg, ok := c.jobs[jobID]
	if !ok {
		return JobView{}, false
	}
	return c.view(agg), true
}

// ListJobs fetches all jobs visible to the caller and replaces the cache
// wholesale. For workers the authoritative applied flags are merged from
// the my-applications endpoint in the same pass.
func (c *Controller) ListJobs(ctx context.Context) ([]JobView, error) {
	jobs, err := c.backend.ListJobs(ctx)
	if err != nil {
		return nil, err
	}

	var mine map[int]api.MyApplication
	if c.principal.Role() == "employee" {
		apps, err := c.backend.MyApplications(ctx)
		if err != nil {
			// The list itself is good; applied flags just stay optimistic.
			c.log.Warn("my-applications merge failed: %v", err)
		} else {
			mine = make(map[int]api.MyApplication, len(apps))
			for _, a := range apps {
				mine[a.JobID] = a
			}
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	fresh := make(map[int]*aggregate, len(jobs))
	views := make([]JobView, 0, len(jobs))
	for _, job := range jobs {
		prev, existed := c.jobs[job.ID]
		agg := &aggregate{job: job, version: 1}
		if existed {
			if isBackward(Status(prev.job.Status), Status(job.Status)) {
				c.log.Error("job %d status went backward: %s -> %s (server data kept)",
					job.ID, prev.job.Status, job.Status)
			}
			agg.version = prev.version + 1
			agg.applicants = prev.applicants
			agg.escrow = prev.escrow
		}
		if mine != nil {
			if app, ok := mine[job.ID]; ok && app.Status == "pending" {
				agg.appliedByMe = true
				agg.applicationID = app.ApplicationID
			}
			// Authoritative refresh for this entity: overlay no longer needed.
			delete(c.overlay, job.ID)
		}
		fresh[job.ID] = agg
		views = append(views, c.view(agg))
	}
	c.jobs = fresh
	return views, nil
}

// CreateJob validates inputs locally (no wasted round trip) and posts the
// job. The server assigns the id and sets status open.
func (c *Controller) CreateJob(ctx context.Context, title, description, budget string) (JobView, error) {
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)
	budget = strings.TrimSpace(budget)
	if title == "" {
		return JobView{}, &ValidationError{Field: "title", Reason: "is required"}
	}
	if description == "" {
		return JobView{}, &ValidationError{Field: "description", Reason: "is required"}
	}
	amount, err := strconv.ParseFloat(budget, 64)
	if err != nil || amount <= 0 {
		return JobView{}, &ValidationError{Field: "budget", Reason: "must be a positive amount"}
	}

	job, err := c.backend.CreateJob(ctx, title, description, budget)
	if err != nil {
		return JobView{}, err
	}
	c.log.Info("job %d created (%s, budget %s)", job.ID, job.Title, job.Budget)

	c.mu.Lock()
	defer c.mu.Unlock()
	agg := c.storeAuthoritative(*job)
	return c.view(agg), nil
}

// Apply submits the worker's application. The cache is not a hard block
// (the server is authoritative) but a stale non-open status is logged.
// On success the job is optimistically marked applied-by-me without
// waiting for a list refresh.
func (c *Controller) Apply(ctx context.Context, jobID int) (int, error) {
	if c.principal.Role() != "employee" {
		return 0, &ValidationError{Field: "role", Reason: "only workers can apply"}
	}
	release, err := c.acquire(jobID)
	if err != nil {
		return 0, err
	}
	defer release()

	if v, ok := c.Job(jobID); ok && v.Status() != StatusOpen {
		c.log.Warn("applying to job %d while local status is %s", jobID, v.Job.Status)
	}

	res, err := c.backend.Apply(ctx, jobID)
	if err != nil {
		return 0, err
	}
	if strings.EqualFold(strings.TrimSpace(res.Message), "already applied") {
		return res.ApplicationID, fmt.Errorf("%w (application %d)", ErrAlreadyApplied, res.ApplicationID)
	}

	c.mu.Lock()
	c.overlay[jobID] = overlayEntry{applied: true, applicationID: res.ApplicationID}
	c.mu.Unlock()
	c.log.Info("applied to job %d (application %d)", jobID, res.ApplicationID)
	return res.ApplicationID, nil
}

// Withdraw removes the worker's pending application and clears the applied
// flag exactly once. Safe against double invocation: the in-flight guard
// rejects the overlapping call, and a settled repeat fails server-side
// without touching local state.
func (c *Controller) Withdraw(ctx context.Context, jobID int) error {
	if c.principal.Role() != "employee" {
		return &ValidationError{Field: "role", Reason: "only workers can withdraw applications"}
	}
	release, err := c.acquire(jobID)
	if err != nil {
		return err
	}
	defer release()

	if err := c.backend.WithdrawApplication(ctx, jobID); err != nil {
		return err
	}

	c.mu.Lock()
	delete(c.overlay, jobID)
	if agg, ok := c.jobs[jobID]; ok {
		agg.appliedByMe = false
		agg.applicationID = 0
		agg.version++
	}
	c.mu.Unlock()
	c.log.Info("withdrew application for job %d", jobID)
	return nil
}

// LoadApplicants fetches the pending applicants for a job into the cache.
func (c *Controller) LoadApplicants(ctx context.Context, jobID int) ([]api.Applicant, error) {
	apps, err := c.backend.Applicants(ctx, jobID)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	agg, ok := c.jobs[jobID]
	if !ok {
		agg = &aggregate{}
		c.jobs[jobID] = agg
	}
	agg.applicants = apps
	agg.version++
	return apps, nil
}

// Assign hands the job to one applicant: open --assign--> assigned.
// Fails without mutating local state when the cached status is not open or
// the applicant is not in the pending list.
func (c *Controller) Assign(ctx context.Context, jobID, applicantID int) (JobView, error) {
	if c.principal.Role() != "employer" {
		return JobView{}, &ValidationError{Field: "role", Reason: "only employers can assign"}
	}
	release, err := c.acquire(jobID)
	if err != nil {
		return JobView{}, err
	}
	defer release()

	c.mu.Lock()
	agg, ok := c.jobs[jobID]
	if !ok {
		c.mu.Unlock()
		return JobView{}, ErrUnknownJob
	}
	if Status(agg.job.Status) != StatusOpen {
		status := agg.job.Status
		c.mu.Unlock()
		return JobView{}, &ValidationError{
			Field:  "status",
			Reason: fmt.Sprintf("job is %s, not open", status),
		}
	}
	applicants := append([]api.Applicant(nil), agg.applicants...)
	c.mu.Unlock()

	if len(applicants) == 0 {
		if applicants, err = c.LoadApplicants(ctx, jobID); err != nil {
			return JobView{}, err
		}
	}
	found := false
	for _, a := range applicants {
		if a.ID == applicantID {
			found = true
			break
		}
	}
	if !found {
		return JobView{}, &ValidationError{
			Field:  "applicant",
			Reason: fmt.Sprintf("%d is not a pending applicant for job %d", applicantID, jobID),
		}
	}

	job, err := c.backend.AssignApplicant(ctx, jobID, applicantID)
	if err != nil {
		return JobView{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	agg = c.storeAuthoritative(*job)
	// The assigned applicant leaves the pending pool; the others remain,
	// superseded server-side.
	remaining := agg.applicants[:0]
	for _, a := range agg.applicants {
		if a.ID != applicantID {
			remaining = append(remaining, a)
		}
	}
	agg.applicants = remaining
	c.log.Info("job %d assigned via application %d", jobID, applicantID)
	return c.view(agg), nil
}

// Complete marks the job done, triggering the server-side escrow release,
// and re-fetches escrow state (which settles asynchronously via webhook
// confirmation, so it is refreshed rather than assumed).
func (c *Controller) Complete(ctx context.Context, jobID int, workSummary string) (JobView, error) {
	if c.principal.Role() != "employer" {
		return JobView{}, &ValidationError{Field: "role", Reason: "only employers can complete jobs"}
	}
	release, err := c.acquire(jobID)
	if err != nil {
		return JobView{}, err
	}
	defer release()

	c.mu.Lock()
	agg, ok := c.jobs[jobID]
	if !ok {
		c.mu.Unlock()
		return JobView{}, ErrUnknownJob
	}
	status := Status(agg.job.Status)
	if status != StatusAssigned && status != StatusInProgress {
		c.mu.Unlock()
		return JobView{}, &ValidationError{
			Field:  "status",
			Reason: fmt.Sprintf("job is %s; only assigned or in-progress work can be completed", status),
		}
	}
	if agg.job.Employee == nil {
		c.mu.Unlock()
		return JobView{}, &ValidationError{Field: "employee", Reason: "job has no assigned worker"}
	}
	c.mu.Unlock()

	if err := c.backend.CompleteJob(ctx, jobID, strings.TrimSpace(workSummary)); err != nil {
		return JobView{}, err
	}

	now := time.Now().UTC().Format(time.RFC3339)
	c.mu.Lock()
	agg.job.Status = string(StatusCompleted)
	agg.job.CompletedAt = &now
	agg.version++
	v := c.view(agg)
	c.mu.Unlock()
	c.log.Info("job %d completed", jobID)

	// Escrow release is asynchronous; refresh the projection best-effort.
	if _, err := c.Escrow(ctx, jobID); err != nil && !errors.Is(err, ErrNoEscrow) {
		c.log.Warn("escrow refresh after completing job %d: %v", jobID, err)
	}
	return v, nil
}

// Cancel moves any non-terminal job to cancelled (employer only).
func (c *Controller) Cancel(ctx context.Context, jobID int) (JobView, error) {
	if c.principal.Role() != "employer" {
		return JobView{}, &ValidationError{Field: "role", Reason: "only employers can cancel jobs"}
	}
	release, err := c.acquire(jobID)
	if err != nil {
		return JobView{}, err
	}
	defer release()

	if v, ok := c.Job(jobID); ok && v.Status().Terminal() {
		return JobView{}, &ValidationError{
			Field:  "status",
			Reason: fmt.Sprintf("job is already %s", v.Job.Status),
		}
	}

	job, err := c.backend.UpdateStatus(ctx, jobID, string(StatusCancelled))
	if err != nil {
		return JobView{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	agg := c.storeAuthoritative(*job)
	c.log.Info("job %d cancelled", jobID)
	return c.view(agg), nil
}

// Escrow fetches the escrow projection for a job. ErrNoEscrow is the valid
// "no funding action yet" outcome; callers must treat it distinctly from a
// fetch failure.
func (c *Controller) Escrow(ctx context.Context, jobID int) (*api.EscrowInfo, error) {
	info, err := c.backend.Escrow(ctx, jobID)
	if err != nil {
		var reqErr *api.RequestError
		if errors.As(err, &reqErr) && reqErr.Status == http.StatusNotFound {
			return nil, ErrNoEscrow
		}
		return nil, err
	}
	if info.Zero() {
		return nil, ErrNoEscrow
	}
	c.mu.Lock()
	if agg, ok := c.jobs[jobID]; ok {
		agg.escrow = info
		agg.version++
	}
	c.mu.Unlock()
	return info, nil
}

// RefreshJob replaces one cached job with the server's record.
func (c *Controller) RefreshJob(ctx context.Context, jobID int) (JobView, error) {
	job, err := c.backend.GetJob(ctx, jobID)
	if err != nil {
		return JobView{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	agg := c.storeAuthoritative(*job)
	return c.view(agg), nil
}

// Read-throughs for the views. No caching: these lists are server-owned
// projections with no client-side transitions to reconcile.

func (c *Controller) Transactions(ctx context.Context) ([]api.Transaction, error) {
	return c.backend.Transactions(ctx)
}

func (c *Controller) WorkersOverview(ctx context.Context) (*api.WorkersOverview, error) {
	return c.backend.WorkersOverview(ctx)
}

func (c *Controller) WorkHistory(ctx context.Context) ([]api.WorkHistoryEntry, error) {
	return c.backend.WorkHistory(ctx)
}

func (c *Controller) Chats(ctx context.Context) ([]api.ChatThread, error) {
	return c.backend.Chats(ctx)
}

func (c *Controller) Messages(ctx context.Context, jobID int) ([]api.Message, error) {
	return c.backend.Messages(ctx, jobID)
}

func (c *Controller) SendMessage(ctx context.Context, jobID int, text string) (*api.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &ValidationError{Field: "text", Reason: "is required"}
	}
	return c.backend.SendMessage(ctx, jobID, text)
}
