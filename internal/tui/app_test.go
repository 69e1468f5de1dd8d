package tui

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trustwork/trustwork/internal/api"
	"github.com/trustwork/trustwork/internal/lifecycle"
	"github.com/trustwork/trustwork/internal/logbook"
	"github.com/trustwork/trustwork/internal/session"
)

// testApp builds an App wired to a temp session store and logbook, with no
// live backend behind the controller. Tests here exercise state handling and
// rendering only; they never dial out.
func testApp(t *testing.T, role string) *App {
	t.Helper()
	dir := t.TempDir()
	lb, err := logbook.New(filepath.Join(dir, "client.log"))
	require.NoError(t, err)
	sessions := session.NewStore(filepath.Join(dir, "session.json"))
	require.NoError(t, sessions.Set("token-1", api.User{
		ID:        1,
		FirstName: "Jane",
		LastName:  "Mwangi",
		UserType:  role,
	}))

	a := &App{
		sessions:   sessions,
		controller: lifecycle.New(nil, sessions, lb),
		logbook:    lb.With("tui"),
	}
	a.authInputs = buildAuthInputs()
	a.jobInputs = buildJobInputs()
	return a
}

func newTestMenu() list.Model {
	m := list.New(nil, list.NewDefaultDelegate(), 40, 20)
	m.SetShowStatusBar(false)
	return m
}

var errNotStubbed = errors.New("not wired in this test")

// stubBackend backs the controller in key-handling tests. Only the routes a
// test stubs out respond; everything else fails loudly.
type stubBackend struct {
	listJobs        func(ctx context.Context) ([]api.Job, error)
	applicants      func(ctx context.Context, jobID int) ([]api.Applicant, error)
	assignApplicant func(ctx context.Context, jobID, applicantID int) (*api.Job, error)
}

func (s *stubBackend) ListJobs(ctx context.Context) ([]api.Job, error) { return s.listJobs(ctx) }
func (s *stubBackend) Applicants(ctx context.Context, jobID int) ([]api.Applicant, error) {
	return s.applicants(ctx, jobID)
}
func (s *stubBackend) AssignApplicant(ctx context.Context, jobID, applicantID int) (*api.Job, error) {
	return s.assignApplicant(ctx, jobID, applicantID)
}
func (s *stubBackend) GetJob(ctx context.Context, jobID int) (*api.Job, error) {
	return nil, errNotStubbed
}
func (s *stubBackend) CreateJob(ctx context.Context, title, description, budget string) (*api.Job, error) {
	return nil, errNotStubbed
}
func (s *stubBackend) UpdateStatus(ctx context.Context, jobID int, status string) (*api.Job, error) {
	return nil, errNotStubbed
}
func (s *stubBackend) Apply(ctx context.Context, jobID int) (*api.ApplyResult, error) {
	return nil, errNotStubbed
}
func (s *stubBackend) WithdrawApplication(ctx context.Context, jobID int) error {
	return errNotStubbed
}
func (s *stubBackend) CompleteJob(ctx context.Context, jobID int, workSummary string) error {
	return errNotStubbed
}
func (s *stubBackend) Escrow(ctx context.Context, jobID int) (*api.EscrowInfo, error) {
	return nil, errNotStubbed
}
func (s *stubBackend) MyApplications(ctx context.Context) ([]api.MyApplication, error) {
	return nil, errNotStubbed
}
func (s *stubBackend) Transactions(ctx context.Context) ([]api.Transaction, error) {
	return nil, errNotStubbed
}
func (s *stubBackend) WorkersOverview(ctx context.Context) (*api.WorkersOverview, error) {
	return nil, errNotStubbed
}
func (s *stubBackend) WorkHistory(ctx context.Context) ([]api.WorkHistoryEntry, error) {
	return nil, errNotStubbed
}
func (s *stubBackend) Chats(ctx context.Context) ([]api.ChatThread, error) {
	return nil, errNotStubbed
}
func (s *stubBackend) Messages(ctx context.Context, jobID int) ([]api.Message, error) {
	return nil, errNotStubbed
}
func (s *stubBackend) SendMessage(ctx context.Context, jobID int, text string) (*api.Message, error) {
	return nil, errNotStubbed
}

func testAppWithBackend(t *testing.T, role string, b *stubBackend) *App {
	t.Helper()
	a := testApp(t, role)
	a.controller = lifecycle.New(b, a.sessions, a.logbook)
	return a
}

func pressKey(a *App, key rune) tea.Cmd {
	_, cmd := a.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{key}})
	return cmd
}

func TestFormatAmountGroupsDigits(t *testing.T) {
	assert.Equal(t, "KES 12,500.00", formatAmount("KES", "12500.00"))
	assert.Equal(t, "KES 800.00", formatAmount("", "800"))
	// Unparseable amounts pass through rather than becoming zero.
	assert.Equal(t, "KES n/a", formatAmount("KES", "n/a"))
}

func TestJobItemLabels(t *testing.T) {
	item := jobItem{view: lifecycle.JobView{
		Job: api.Job{ID: 7, Title: "House cleaning", Budget: "12500.00", Status: "open"},
	}}
	assert.Equal(t, "#7  House cleaning", item.Title())
	assert.Equal(t, "Open · KES 12,500.00", item.Description())

	item.view.AppliedByMe = true
	assert.Contains(t, item.Title(), "✓ applied")
}

func TestMenuIsRoleScoped(t *testing.T) {
	titles := func(a *App) []string {
		var out []string
		for _, it := range a.mainMenu.Items() {
			out = append(out, it.(menuItem).title)
		}
		return out
	}

	employer := testApp(t, session.RoleEmployer)
	employer.mainMenu = newTestMenu()
	employer.refreshMenu()
	assert.Contains(t, titles(employer), "Post a Job")
	assert.NotContains(t, titles(employer), "Work History")

	worker := testApp(t, session.RoleWorker)
	worker.mainMenu = newTestMenu()
	worker.refreshMenu()
	assert.Contains(t, titles(worker), "Work History")
	assert.NotContains(t, titles(worker), "Post a Job")
}

func TestUnauthorizedErrorClearsSession(t *testing.T) {
	a := testApp(t, session.RoleWorker)
	a.state = stateJobs

	a.handleErr(fmt.Errorf("listing jobs: %w",
		&api.RequestError{Status: 401, Message: "Token expired"}))

	assert.Equal(t, stateAuth, a.state)
	assert.False(t, a.sessions.Authenticated())
	assert.Contains(t, a.errMsg, "log in again")
}

func TestOtherErrorsShownInline(t *testing.T) {
	a := testApp(t, session.RoleWorker)
	a.state = stateJobs

	a.handleErr(&api.RequestError{Status: 503, Message: "down for maintenance"})

	assert.Equal(t, stateJobs, a.state)
	assert.True(t, a.sessions.Authenticated())
	assert.Contains(t, a.errMsg, "down for maintenance")
}

func TestDetailKeyHintsFollowRoleAndStatus(t *testing.T) {
	worker := testApp(t, session.RoleWorker)
	openJob := lifecycle.JobView{Job: api.Job{ID: 1, Status: "open"}}
	assert.Contains(t, worker.detailKeyHints(openJob), "a → apply")
	assert.NotContains(t, worker.detailKeyHints(openJob), "f → fund")

	applied := openJob
	applied.AppliedByMe = true
	hints := worker.detailKeyHints(applied)
	assert.Contains(t, hints, "w → withdraw")
	assert.NotContains(t, hints, "a → apply")

	employer := testApp(t, session.RoleEmployer)
	assigned := lifecycle.JobView{Job: api.Job{ID: 1, Status: "assigned"}}
	hints = employer.detailKeyHints(assigned)
	assert.Contains(t, hints, "d → mark done")
	assert.Contains(t, hints, "f → fund escrow")

	done := lifecycle.JobView{Job: api.Job{ID: 1, Status: "completed"}}
	hints = employer.detailKeyHints(done)
	assert.NotContains(t, hints, "c → cancel")
	assert.NotContains(t, hints, "f → fund escrow")
}

func TestAssignKeyAfterPoolShrinksDoesNotPanic(t *testing.T) {
	emp := 70
	b := &stubBackend{
		listJobs: func(ctx context.Context) ([]api.Job, error) {
			return []api.Job{{ID: 42, Title: "Gardening", Status: "open", Budget: "8000"}}, nil
		},
		applicants: func(ctx context.Context, jobID int) ([]api.Applicant, error) {
			return []api.Applicant{
				{ID: 7, EmployeeName: "Amina"},
				{ID: 8, EmployeeName: "Brian"},
			}, nil
		},
		assignApplicant: func(ctx context.Context, jobID, applicantID int) (*api.Job, error) {
			return &api.Job{ID: 42, Title: "Gardening", Status: "assigned", Budget: "8000", Employee: &emp}, nil
		},
	}
	a := testAppWithBackend(t, session.RoleEmployer, b)
	ctx := context.Background()
	_, err := a.controller.ListJobs(ctx)
	require.NoError(t, err)
	_, err = a.controller.LoadApplicants(ctx, 42)
	require.NoError(t, err)

	a.state = stateJobDetail
	a.selectedJob = 42
	a.applicantSel = 1 // cursor on the second applicant

	// Assigning removes that applicant from the pending pool and moves the
	// job off open; a repeat press of "a" must not index past the end.
	_, err = a.controller.Assign(ctx, 42, 8)
	require.NoError(t, err)

	cmd := pressKey(a, 'a')
	assert.Nil(t, cmd)
	assert.Contains(t, a.statusMsg, "Only open jobs")
}

func TestAssignKeyClampsCursorToShrunkPool(t *testing.T) {
	emp := 70
	pool := []api.Applicant{
		{ID: 7, EmployeeName: "Amina"},
		{ID: 8, EmployeeName: "Brian"},
	}
	var assigned []int
	b := &stubBackend{
		listJobs: func(ctx context.Context) ([]api.Job, error) {
			return []api.Job{{ID: 42, Title: "Gardening", Status: "open", Budget: "8000"}}, nil
		},
		applicants: func(ctx context.Context, jobID int) ([]api.Applicant, error) {
			return pool, nil
		},
		assignApplicant: func(ctx context.Context, jobID, applicantID int) (*api.Job, error) {
			assigned = append(assigned, applicantID)
			return &api.Job{ID: 42, Title: "Gardening", Status: "assigned", Budget: "8000", Employee: &emp}, nil
		},
	}
	a := testAppWithBackend(t, session.RoleEmployer, b)
	ctx := context.Background()
	_, err := a.controller.ListJobs(ctx)
	require.NoError(t, err)
	_, err = a.controller.LoadApplicants(ctx, 42)
	require.NoError(t, err)

	a.state = stateJobDetail
	a.selectedJob = 42
	a.applicantSel = 1

	// The pool shrinks under the cursor (e.g. a withdrawal) while the job
	// stays open; the press assigns the last remaining applicant instead of
	// crashing.
	pool = pool[:1]
	_, err = a.controller.LoadApplicants(ctx, 42)
	require.NoError(t, err)

	cmd := pressKey(a, 'a')
	require.NotNil(t, cmd)
	msg, ok := cmd().(actionDoneMsg)
	require.True(t, ok)
	require.NoError(t, msg.err)
	assert.Equal(t, []int{7}, assigned)
}

func TestLateEscrowResponseForAnotherJobIsDropped(t *testing.T) {
	a := testApp(t, session.RoleEmployer)
	a.state = stateJobDetail
	a.selectedJob = 1

	_, _ = a.Update(escrowLoadedMsg{jobID: 2, info: &api.EscrowInfo{JobID: 2, ContractID: "esc-2", Status: "funded"}})
	assert.Nil(t, a.escrow, "escrow for a job we navigated away from must not render")

	_, _ = a.Update(escrowLoadedMsg{jobID: 1, info: &api.EscrowInfo{JobID: 1, ContractID: "esc-1", Status: "funded"}})
	require.NotNil(t, a.escrow)
	assert.Equal(t, "esc-1", a.escrow.ContractID)
}
