// internal/tui/app.go
//
// Main TUI for the TrustWork client, following The Elm Architecture:
//
// 1. Model: application state (App)
// 2. Update: state changes driven by messages
// 3. View: renders state to a string
//
// All network I/O runs inside tea.Cmd functions; the event loop itself
// never blocks on the backend.

package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/trustwork/trustwork/internal/api"
	"github.com/trustwork/trustwork/internal/config"
	"github.com/trustwork/trustwork/internal/lifecycle"
	"github.com/trustwork/trustwork/internal/logbook"
	"github.com/trustwork/trustwork/internal/payment"
	"github.com/trustwork/trustwork/internal/session"
)

// appState represents which "screen" we're on.
type appState int

const (
	stateAuth         appState = iota // login / register form
	stateMenu                         // role-scoped main menu
	stateJobs                         // job list
	stateJobDetail                    // one job with applicants and actions
	stateCreateJob                    // new job form (employer)
	stateCompleteJob                  // work summary prompt before completing
	stateTransactions                 // deposits / payouts
	stateWorkHistory                  // worker's completed jobs
)

const requestTimeout = 30 * time.Second

// Messages produced by tea.Cmd functions.

type authDoneMsg struct {
	resp *api.AuthResponse
	err  error
}

type jobsLoadedMsg struct {
	views []lifecycle.JobView
	err   error
}

type applicantsLoadedMsg struct {
	jobID int
	apps  []api.Applicant
	err   error
}

type escrowLoadedMsg struct {
	jobID int
	info  *api.EscrowInfo
	err   error
}

type actionDoneMsg struct {
	jobID int
	note  string
	err   error
}

type fundDoneMsg struct {
	jobID int
	err   error
}

type transactionsLoadedMsg struct {
	items []api.Transaction
	err   error
}

type historyLoadedMsg struct {
	items []api.WorkHistoryEntry
	err   error
}

// menuItem implements list.Item for the main menu.
type menuItem struct {
	title string
	desc  string
}

func (i menuItem) Title() string       { return i.title }
func (i menuItem) Description() string { return i.desc }
func (i menuItem) FilterValue() string { return i.title }

// App is the main application model; it holds ALL the state.
type App struct {
	state      appState
	cfg        *config.Config
	sessions   *session.Store
	client     *api.Client
	controller *lifecycle.Controller
	bridge     *payment.Bridge
	logbook    *logbook.Logbook

	// Auth form
	authInputs   []textinput.Model
	authFocus    int
	registerMode bool
	registerRole string

	// Create-job form
	jobInputs []textinput.Model
	jobFocus  int

	// Complete-job prompt
	summaryInput  textinput.Model
	completeJobID int

	// Data panels
	mainMenu     list.Model
	jobList      list.Model
	jobs         []lifecycle.JobView
	selectedJob  int // job id shown in detail view
	applicantSel int
	escrow       *api.EscrowInfo
	escrowAbsent bool
	transactions []api.Transaction
	history      []api.WorkHistoryEntry

	statusMsg string
	errMsg    string

	width  int
	height int
}

// NewApp wires the application together from the loaded config.
func NewApp(cfg *config.Config) (*App, error) {
	lb, err := logbook.New(cfg.LogPath())
	if err != nil {
		return nil, err
	}
	sessions := session.NewStore(cfg.SessionPath())
	client := api.New(cfg.APIBaseURL(), sessions, api.WithLogbook(lb))
	controller := lifecycle.New(client, sessions, lb)
	widget := payment.NewHostedCheckout(cfg.PaystackPublicKey(), cfg.CallbackAddr())
	bridge := payment.NewBridge(client, controller, widget, lb)

	a := &App{
		cfg:          cfg,
		sessions:     sessions,
		client:       client,
		controller:   controller,
		bridge:       bridge,
		logbook:      lb.With("tui"),
		registerRole: session.RoleEmployer,
	}
	a.authInputs = buildAuthInputs()
	a.jobInputs = buildJobInputs()
	a.summaryInput = textinput.New()
	a.summaryInput.Placeholder = "Work summary (optional)"
	a.summaryInput.CharLimit = 240

	a.mainMenu = list.New(nil, list.NewDefaultDelegate(), 0, 0)
	a.mainMenu.Title = "⛨ TRUSTWORK"
	a.mainMenu.SetShowStatusBar(false)
	a.mainMenu.SetFilteringEnabled(false)
	a.jobList = list.New(nil, list.NewDefaultDelegate(), 0, 0)
	a.jobList.Title = "Jobs"
	a.jobList.SetShowStatusBar(false)

	if sessions.Authenticated() {
		a.state = stateMenu
		a.refreshMenu()
		a.logbook.Info("session resumed (%s)", sessions.Role())
	} else {
		a.state = stateAuth
		a.authInputs[0].Focus()
	}
	return a, nil
}

func buildAuthInputs() []textinput.Model {
	identifier := textinput.New()
	identifier.Placeholder = "Email or phone number"
	identifier.CharLimit = 120

	password := textinput.New()
	password.Placeholder = "Password"
	password.EchoMode = textinput.EchoPassword
	password.CharLimit = 120

	firstName := textinput.New()
	firstName.Placeholder = "First name"
	lastName := textinput.New()
	lastName.Placeholder = "Last name"
	phone := textinput.New()
	phone.Placeholder = "Phone number"

	return []textinput.Model{identifier, password, firstName, lastName, phone}
}

func buildJobInputs() []textinput.Model {
	title := textinput.New()
	title.Placeholder = "Title"
	title.CharLimit = 120
	desc := textinput.New()
	desc.Placeholder = "Description"
	desc.CharLimit = 500
	budget := textinput.New()
	budget.Placeholder = "Budget (KES)"
	budget.CharLimit = 20
	return []textinput.Model{title, desc, budget}
}

// refreshMenu rebuilds the main menu for the current role.
func (a *App) refreshMenu() {
	items := []list.Item{
		menuItem{title: "Jobs", desc: "Browse jobs and take action"},
	}
	if a.sessions.IsEmployer() {
		items = append(items,
			menuItem{title: "Post a Job", desc: "Create a new open job"},
			menuItem{title: "Transactions", desc: "Escrow deposits"},
		)
	} else {
		items = append(items,
			menuItem{title: "Work History", desc: "Your completed jobs"},
			menuItem{title: "Transactions", desc: "Your payouts"},
		)
	}
	items = append(items, menuItem{title: "Log Out", desc: "Clear this session"},
		menuItem{title: "Exit", desc: "Quit TrustWork"})
	a.mainMenu.SetItems(items)
}

// Init is called once when the program starts.
func (a *App) Init() tea.Cmd {
	return textinput.Blink
}

func (a *App) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), requestTimeout)
}

// Commands

func (a *App) loadJobs() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := a.ctx()
		defer cancel()
		views, err := a.controller.ListJobs(ctx)
		return jobsLoadedMsg{views: views, err: err}
	}
}

func (a *App) loadApplicants(jobID int) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := a.ctx()
		defer cancel()
		apps, err := a.controller.LoadApplicants(ctx, jobID)
		return applicantsLoadedMsg{jobID: jobID, apps: apps, err: err}
	}
}

func (a *App) loadEscrow(jobID int) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := a.ctx()
		defer cancel()
		info, err := a.controller.Escrow(ctx, jobID)
		return escrowLoadedMsg{jobID: jobID, info: info, err: err}
	}
}

func (a *App) loadTransactions() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := a.ctx()
		defer cancel()
		items, err := a.controller.Transactions(ctx)
		return transactionsLoadedMsg{items: items, err: err}
	}
}

func (a *App) loadHistory() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := a.ctx()
		defer cancel()
		items, err := a.controller.WorkHistory(ctx)
		return historyLoadedMsg{items: items, err: err}
	}
}

func (a *App) submitAuth() tea.Cmd {
	identifier := strings.TrimSpace(a.authInputs[0].Value())
	password := a.authInputs[1].Value()
	register := a.registerMode
	in := api.RegisterInput{
		Email:       "",
		Password:    password,
		FirstName:   strings.TrimSpace(a.authInputs[2].Value()),
		LastName:    strings.TrimSpace(a.authInputs[3].Value()),
		PhoneNumber: strings.TrimSpace(a.authInputs[4].Value()),
		UserType:    a.registerRole,
	}
	if strings.Contains(identifier, "@") {
		in.Email = identifier
	} else if in.PhoneNumber == "" {
		in.PhoneNumber = identifier
	}
	return func() tea.Msg {
		ctx, cancel := a.ctx()
		defer cancel()
		var resp *api.AuthResponse
		var err error
		if register {
			resp, err = a.client.Register(ctx, in)
		} else {
			resp, err = a.client.Login(ctx, identifier, password)
		}
		return authDoneMsg{resp: resp, err: err}
	}
}

func (a *App) applyCmd(jobID int) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := a.ctx()
		defer cancel()
		_, err := a.controller.Apply(ctx, jobID)
		return actionDoneMsg{jobID: jobID, note: "Application submitted", err: err}
	}
}

func (a *App) withdrawCmd(jobID int) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := a.ctx()
		defer cancel()
		err := a.controller.Withdraw(ctx, jobID)
		return actionDoneMsg{jobID: jobID, note: "Application withdrawn", err: err}
	}
}

func (a *App) assignCmd(jobID, applicantID int) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := a.ctx()
		defer cancel()
		_, err := a.controller.Assign(ctx, jobID, applicantID)
		return actionDoneMsg{jobID: jobID, note: "Worker assigned", err: err}
	}
}

func (a *App) completeCmd(jobID int, summary string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := a.ctx()
		defer cancel()
		_, err := a.controller.Complete(ctx, jobID, summary)
		return actionDoneMsg{jobID: jobID, note: "Job completed — escrow release requested", err: err}
	}
}

func (a *App) cancelCmd(jobID int) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := a.ctx()
		defer cancel()
		_, err := a.controller.Cancel(ctx, jobID)
		return actionDoneMsg{jobID: jobID, note: "Job cancelled", err: err}
	}
}

func (a *App) fundCmd(jobID int) tea.Cmd {
	return func() tea.Msg {
		// No timeout: the user may take minutes inside the checkout.
		err := a.bridge.Fund(context.Background(), jobID)
		return fundDoneMsg{jobID: jobID, err: err}
	}
}

// handleErr routes an operation error: a rejected token clears the session
// and returns to the auth screen; everything else is shown inline.
func (a *App) handleErr(err error) {
	if err == nil {
		return
	}
	if errors.Is(err, api.ErrUnauthorized) {
		_ = a.sessions.Clear()
		a.state = stateAuth
		a.authFocus = 0
		a.authInputs[0].Focus()
		a.errMsg = "Session expired — please log in again"
		a.logbook.Warn("session cleared after authorization failure")
		return
	}
	a.errMsg = err.Error()
}

// Update is called when a message is received.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.mainMenu.SetSize(max(0, msg.Width-6), max(0, msg.Height-12))
		a.jobList.SetSize(max(0, msg.Width-6), max(0, msg.Height-12))
		return a, nil

	case authDoneMsg:
		if msg.err != nil {
			a.errMsg = msg.err.Error()
			return a, nil
		}
		if err := a.sessions.Set(msg.resp.Access, msg.resp.User); err != nil {
			a.errMsg = err.Error()
			return a, nil
		}
		a.errMsg = ""
		a.statusMsg = fmt.Sprintf("Signed in as %s (%s)", msg.resp.User.FullName(), msg.resp.User.UserType)
		a.logbook.Info("signed in as %s", msg.resp.User.FullName())
		a.state = stateMenu
		a.refreshMenu()
		return a, nil

	case jobsLoadedMsg:
		if !a.sessions.Authenticated() {
			return a, nil // logged out while the request was in flight
		}
		if msg.err != nil {
			a.handleErr(msg.err)
			return a, nil
		}
		a.errMsg = ""
		a.jobs = msg.views
		a.jobList.SetItems(jobListItems(msg.views))
		if len(msg.views) == 0 {
			a.statusMsg = "No jobs yet"
		} else {
			a.statusMsg = fmt.Sprintf("%d job(s)", len(msg.views))
		}
		return a, nil

	case applicantsLoadedMsg:
		if msg.err != nil {
			a.handleErr(msg.err)
			return a, nil
		}
		a.applicantSel = 0
		a.statusMsg = fmt.Sprintf("%d pending applicant(s)", len(msg.apps))
		return a, nil

	case escrowLoadedMsg:
		if msg.jobID != a.selectedJob {
			return a, nil // late response for a job we navigated away from
		}
		if msg.err != nil {
			if errors.Is(msg.err, lifecycle.ErrNoEscrow) {
				a.escrow = nil
				a.escrowAbsent = true
				return a, nil
			}
			a.handleErr(msg.err)
			return a, nil
		}
		a.escrow = msg.info
		a.escrowAbsent = false
		return a, nil

	case actionDoneMsg:
		if msg.err != nil {
			a.handleErr(msg.err)
			return a, nil
		}
		a.errMsg = ""
		a.statusMsg = msg.note
		a.applicantSel = 0
		if a.state == stateCreateJob {
			a.state = stateJobs
		}
		// Re-fetch: the server owns the resulting state.
		return a, tea.Batch(a.loadJobs(), a.loadEscrow(msg.jobID))

	case fundDoneMsg:
		if msg.err != nil {
			if errors.Is(msg.err, payment.ErrCancelled) {
				a.statusMsg = msg.err.Error()
				return a, a.loadEscrow(msg.jobID)
			}
			a.handleErr(msg.err)
			return a, nil
		}
		a.statusMsg = "Deposit submitted — escrow updates once the payment is confirmed"
		return a, a.loadEscrow(msg.jobID)

	case transactionsLoadedMsg:
		if msg.err != nil {
			a.handleErr(msg.err)
			return a, nil
		}
		a.transactions = msg.items
		return a, nil

	case historyLoadedMsg:
		if msg.err != nil {
			a.handleErr(msg.err)
			return a, nil
		}
		a.history = msg.items
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)
	}

	return a.updateFocusedComponent(msg)
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		return a, tea.Quit
	}

	switch a.state {
	case stateAuth:
		return a.handleAuthKey(msg)
	case stateCreateJob:
		return a.handleCreateJobKey(msg)
	case stateCompleteJob:
		return a.handleCompleteKey(msg)
	case stateJobDetail:
		return a.handleDetailKey(msg)
	case stateJobs:
		switch key {
		case "esc":
			a.state = stateMenu
			return a, nil
		case "r":
			a.statusMsg = "Refreshing..."
			return a, a.loadJobs()
		case "enter":
			if item, ok := a.jobList.SelectedItem().(jobItem); ok {
				a.selectedJob = item.view.Job.ID
				a.escrow = nil
				a.escrowAbsent = false
				a.state = stateJobDetail
				cmds := []tea.Cmd{a.loadEscrow(item.view.Job.ID)}
				if a.sessions.IsEmployer() && item.view.Status() == lifecycle.StatusOpen {
					cmds = append(cmds, a.loadApplicants(item.view.Job.ID))
				}
				return a, tea.Batch(cmds...)
			}
		}
	case stateTransactions, stateWorkHistory:
		if key == "esc" {
			a.state = stateMenu
			return a, nil
		}
	case stateMenu:
		switch key {
		case "q":
			return a, tea.Quit
		case "enter":
			return a.handleMenuSelection()
		}
	}

	return a.updateFocusedComponent(msg)
}

func (a *App) handleMenuSelection() (tea.Model, tea.Cmd) {
	item, ok := a.mainMenu.SelectedItem().(menuItem)
	if !ok {
		return a, nil
	}
	switch item.title {
	case "Jobs":
		a.state = stateJobs
		a.statusMsg = "Loading jobs..."
		return a, a.loadJobs()
	case "Post a Job":
		a.state = stateCreateJob
		a.jobFocus = 0
		for i := range a.jobInputs {
			a.jobInputs[i].SetValue("")
			a.jobInputs[i].Blur()
		}
		a.jobInputs[0].Focus()
		return a, nil
	case "Transactions":
		a.state = stateTransactions
		return a, a.loadTransactions()
	case "Work History":
		a.state = stateWorkHistory
		return a, a.loadHistory()
	case "Log Out":
		_ = a.sessions.Clear()
		a.logbook.Info("logged out")
		a.state = stateAuth
		a.authFocus = 0
		for i := range a.authInputs {
			a.authInputs[i].SetValue("")
			a.authInputs[i].Blur()
		}
		a.authInputs[0].Focus()
		a.statusMsg = "Logged out"
		return a, nil
	case "Exit":
		return a, tea.Quit
	}
	return a, nil
}

func (a *App) handleAuthKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	visible := 2
	if a.registerMode {
		visible = len(a.authInputs)
	}
	switch msg.String() {
	case "ctrl+r":
		a.registerMode = !a.registerMode
		a.errMsg = ""
		return a, nil
	case "ctrl+t":
		if a.registerMode {
			if a.registerRole == session.RoleEmployer {
				a.registerRole = session.RoleWorker
			} else {
				a.registerRole = session.RoleEmployer
			}
		}
		return a, nil
	case "tab", "down":
		a.authFocus = (a.authFocus + 1) % visible
		return a, a.focusAuthInput()
	case "shift+tab", "up":
		a.authFocus = (a.authFocus - 1 + visible) % visible
		return a, a.focusAuthInput()
	case "enter":
		if strings.TrimSpace(a.authInputs[0].Value()) == "" || a.authInputs[1].Value() == "" {
			a.errMsg = "Enter your credentials first"
			return a, nil
		}
		a.statusMsg = "Contacting server..."
		return a, a.submitAuth()
	}
	return a.updateFocusedComponent(msg)
}

func (a *App) focusAuthInput() tea.Cmd {
	for i := range a.authInputs {
		if i == a.authFocus {
			a.authInputs[i].Focus()
		} else {
			a.authInputs[i].Blur()
		}
	}
	return textinput.Blink
}

func (a *App) handleCreateJobKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		a.state = stateMenu
		return a, nil
	case "tab", "down":
		a.jobFocus = (a.jobFocus + 1) % len(a.jobInputs)
		return a, a.focusJobInput()
	case "shift+tab", "up":
		a.jobFocus = (a.jobFocus - 1 + len(a.jobInputs)) % len(a.jobInputs)
		return a, a.focusJobInput()
	case "enter":
		title := a.jobInputs[0].Value()
		desc := a.jobInputs[1].Value()
		budget := a.jobInputs[2].Value()
		a.statusMsg = "Posting job..."
		return a, func() tea.Msg {
			ctx, cancel := a.ctx()
			defer cancel()
			v, err := a.controller.CreateJob(ctx, title, desc, budget)
			return actionDoneMsg{jobID: v.Job.ID, note: "Job posted", err: err}
		}
	}
	return a.updateFocusedComponent(msg)
}

func (a *App) focusJobInput() tea.Cmd {
	for i := range a.jobInputs {
		if i == a.jobFocus {
			a.jobInputs[i].Focus()
		} else {
			a.jobInputs[i].Blur()
		}
	}
	return textinput.Blink
}

func (a *App) handleCompleteKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		a.state = stateJobDetail
		return a, nil
	case "enter":
		summary := a.summaryInput.Value()
		a.state = stateJobDetail
		a.statusMsg = "Completing job..."
		return a, a.completeCmd(a.completeJobID, summary)
	}
	var cmd tea.Cmd
	a.summaryInput, cmd = a.summaryInput.Update(msg)
	return a, cmd
}

func (a *App) handleDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	view, ok := a.controller.Job(a.selectedJob)
	if !ok {
		a.state = stateJobs
		return a, nil
	}
	if a.controller.InFlight(a.selectedJob) {
		a.statusMsg = "Request in flight — hold on"
		return a, nil
	}

	switch msg.String() {
	case "esc":
		a.state = stateJobs
		return a, a.loadJobs()
	case "r":
		return a, tea.Batch(a.loadJobs(), a.loadEscrow(a.selectedJob))
	case "up", "k":
		if a.applicantSel > 0 {
			a.applicantSel--
		}
		return a, nil
	case "down", "j":
		if a.applicantSel < len(view.Applicants)-1 {
			a.applicantSel++
		}
		return a, nil
	case "a":
		if a.sessions.IsWorker() {
			if view.AppliedByMe {
				a.statusMsg = "Already applied"
				return a, nil
			}
			a.statusMsg = "Applying..."
			return a, a.applyCmd(a.selectedJob)
		}
		if view.Status() != lifecycle.StatusOpen {
			a.statusMsg = "Only open jobs can be assigned"
			return a, nil
		}
		if len(view.Applicants) == 0 {
			a.statusMsg = "No pending applicants"
			return a, nil
		}
		// The pending pool can shrink between renders (assign, withdraw);
		// the cursor may point past the end of the refreshed list.
		if a.applicantSel >= len(view.Applicants) {
			a.applicantSel = len(view.Applicants) - 1
		}
		applicant := view.Applicants[a.applicantSel]
		a.statusMsg = fmt.Sprintf("Assigning %s...", applicant.EmployeeName)
		return a, a.assignCmd(a.selectedJob, applicant.ID)
	case "w":
		if a.sessions.IsWorker() && view.AppliedByMe {
			a.statusMsg = "Withdrawing..."
			return a, a.withdrawCmd(a.selectedJob)
		}
		return a, nil
	case "f":
		if a.sessions.IsEmployer() {
			a.statusMsg = "Opening checkout in your browser..."
			return a, a.fundCmd(a.selectedJob)
		}
		return a, nil
	case "d":
		if a.sessions.IsEmployer() {
			status := view.Status()
			if status != lifecycle.StatusAssigned && status != lifecycle.StatusInProgress {
				a.statusMsg = "Only assigned or in-progress work can be completed"
				return a, nil
			}
			a.completeJobID = a.selectedJob
			a.summaryInput.SetValue("")
			a.summaryInput.Focus()
			a.state = stateCompleteJob
			return a, textinput.Blink
		}
		return a, nil
	case "c":
		if a.sessions.IsEmployer() && !view.Status().Terminal() {
			a.statusMsg = "Cancelling..."
			return a, a.cancelCmd(a.selectedJob)
		}
		return a, nil
	}
	return a, nil
}

// updateFocusedComponent forwards unhandled messages to whichever list or
// input owns the focus.
func (a *App) updateFocusedComponent(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch a.state {
	case stateMenu:
		a.mainMenu, cmd = a.mainMenu.Update(msg)
	case stateJobs:
		a.jobList, cmd = a.jobList.Update(msg)
	case stateAuth:
		for i := range a.authInputs {
			if a.authInputs[i].Focused() {
				a.authInputs[i], cmd = a.authInputs[i].Update(msg)
				break
			}
		}
	case stateCreateJob:
		for i := range a.jobInputs {
			if a.jobInputs[i].Focused() {
				a.jobInputs[i], cmd = a.jobInputs[i].Update(msg)
				break
			}
		}
	case stateCompleteJob:
		a.summaryInput, cmd = a.summaryInput.Update(msg)
	}
	return a, cmd
}

// View renders the current state.
func (a *App) View() string {
	width := a.width
	if width <= 0 {
		width = 100
	}

	var content string
	switch a.state {
	case stateAuth:
		content = a.renderAuth()
	case stateMenu:
		content = a.mainMenu.View()
	case stateJobs:
		content = a.jobList.View()
	case stateJobDetail:
		content = a.renderJobDetail()
	case stateCreateJob:
		content = a.renderCreateJob()
	case stateCompleteJob:
		content = a.renderCompletePrompt()
	case stateTransactions:
		content = a.renderTransactions()
	case stateWorkHistory:
		content = a.renderWorkHistory()
	}

	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#2EB086")).
		MarginBottom(1).
		Render("⛨ TRUSTWORK")
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		Padding(0, 1).
		Width(max(40, width-2)).
		Render(content)

	sections := []string{header, box}
	if logPanel := a.renderLogPanel(); logPanel != "" {
		sections = append(sections, logPanel)
	}

	footer := a.statusMsg
	if a.errMsg != "" {
		footer = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Render("⚠ " + a.errMsg)
	}
	sections = append(sections, lipgloss.NewStyle().
		Foreground(lipgloss.Color("#888888")).
		MarginTop(1).
		Render(footer))
	return strings.Join(sections, "\n")
}

func (a *App) renderLogPanel() string {
	lines := a.logbook.Tail(6)
	if len(lines) == 0 {
		return ""
	}
	head := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		Render("LOG")
	body := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AAAAAA")).
		Render(strings.Join(lines, "\n"))
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		Padding(0, 1).
		Render(head + "\n" + body)
}

func (a *App) renderAuth() string {
	mode := "Sign In"
	if a.registerMode {
		mode = fmt.Sprintf("Register (%s)", a.registerRole)
	}
	lines := []string{
		lipgloss.NewStyle().Bold(true).Render(mode),
		"",
		a.authInputs[0].View(),
		a.authInputs[1].View(),
	}
	if a.registerMode {
		lines = append(lines, a.authInputs[2].View(), a.authInputs[3].View(), a.authInputs[4].View())
	}
	lines = append(lines, "",
		"Enter → submit    Ctrl+R → toggle register    Ctrl+T → toggle role    Ctrl+C → quit")
	return strings.Join(lines, "\n")
}

func (a *App) renderCreateJob() string {
	lines := []string{
		lipgloss.NewStyle().Bold(true).Render("Post a Job"),
		"",
		a.jobInputs[0].View(),
		a.jobInputs[1].View(),
		a.jobInputs[2].View(),
		"",
		"Enter → post    Esc → back",
	}
	return strings.Join(lines, "\n")
}

func (a *App) renderCompletePrompt() string {
	return strings.Join([]string{
		lipgloss.NewStyle().Bold(true).Render("Mark work done"),
		"",
		"Completing releases the escrow to the worker.",
		a.summaryInput.View(),
		"",
		"Enter → complete    Esc → back",
	}, "\n")
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
