// Scriptable subcommands. Each one wires the same client stack the TUI
// uses, runs a single operation, and prints a plain-text result.

package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/trustwork/trustwork/internal/api"
	"github.com/trustwork/trustwork/internal/config"
	"github.com/trustwork/trustwork/internal/lifecycle"
	"github.com/trustwork/trustwork/internal/logbook"
	"github.com/trustwork/trustwork/internal/payment"
	"github.com/trustwork/trustwork/internal/session"
)

const cmdTimeout = 30 * time.Second

// deps is the client stack shared by every subcommand.
type deps struct {
	cfg        *config.Config
	log        *logbook.Logbook
	sessions   *session.Store
	client     *api.Client
	controller *lifecycle.Controller
}

func buildDeps() (*deps, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, err
	}
	lb, err := logbook.New(cfg.LogPath())
	if err != nil {
		return nil, err
	}
	sessions := session.NewStore(cfg.SessionPath())
	client := api.New(cfg.APIBaseURL(), sessions, api.WithLogbook(lb))
	return &deps{
		cfg:        cfg,
		log:        lb,
		sessions:   sessions,
		client:     client,
		controller: lifecycle.New(client, sessions, lb),
	}, nil
}

func (d *deps) requireAuth() error {
	if !d.sessions.Authenticated() {
		return errors.New("not logged in (run: trustwork login <email-or-phone> --password ...)")
	}
	return nil
}

func cmdCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), cmdTimeout)
}

func parseID(raw, what string) (int, error) {
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%q is not a valid %s id", raw, what)
	}
	return id, nil
}

func newLoginCmd() *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "login <email-or-phone>",
		Short: "Sign in and persist the session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDeps()
			if err != nil {
				return err
			}
			ctx, cancel := cmdCtx()
			defer cancel()
			resp, err := d.client.Login(ctx, args[0], password)
			if err != nil {
				return err
			}
			if err := d.sessions.Set(resp.Access, resp.User); err != nil {
				return err
			}
			fmt.Printf("Signed in as %s (%s)\n", resp.User.FullName(), resp.User.UserType)
			return nil
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "account password")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newRegisterCmd() *cobra.Command {
	var in api.RegisterInput
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		RunE: func(cmd *cobra.Command, args []string) error {
			if in.UserType != session.RoleEmployer && in.UserType != session.RoleWorker {
				return fmt.Errorf("--role must be %q or %q", session.RoleEmployer, session.RoleWorker)
			}
			d, err := buildDeps()
			if err != nil {
				return err
			}
			ctx, cancel := cmdCtx()
			defer cancel()
			resp, err := d.client.Register(ctx, in)
			if err != nil {
				return err
			}
			if err := d.sessions.Set(resp.Access, resp.User); err != nil {
				return err
			}
			fmt.Printf("Registered %s (%s)\n", resp.User.FullName(), resp.User.UserType)
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Email, "email", "", "email address")
	cmd.Flags().StringVar(&in.PhoneNumber, "phone", "", "phone number")
	cmd.Flags().StringVar(&in.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&in.LastName, "last-name", "", "last name")
	cmd.Flags().StringVarP(&in.Password, "password", "p", "", "account password")
	cmd.Flags().StringVar(&in.UserType, "role", "", "employer or employee")
	_ = cmd.MarkFlagRequired("password")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the persisted session",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDeps()
			if err != nil {
				return err
			}
			if err := d.sessions.Clear(); err != nil {
				return err
			}
			fmt.Println("Logged out")
			return nil
		},
	}
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current session",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDeps()
			if err != nil {
				return err
			}
			s := d.sessions.Get()
			if s == nil {
				fmt.Println("Not logged in")
				return nil
			}
			fmt.Printf("%s (%s, user %d)\n", s.User.FullName(), s.User.UserType, s.User.ID)
			return nil
		},
	}
}

func newJobsCmd() *cobra.Command {
	jobs := &cobra.Command{
		Use:   "jobs",
		Short: "List jobs and run lifecycle actions",
	}
	jobs.AddCommand(
		newJobsListCmd(),
		newJobsCreateCmd(),
		newJobsApplyCmd(),
		newJobsWithdrawCmd(),
		newJobsApplicantsCmd(),
		newJobsAssignCmd(),
		newJobsCompleteCmd(),
		newJobsCancelCmd(),
	)
	return jobs
}

func newJobsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List jobs visible to you",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDeps()
			if err != nil {
				return err
			}
			if err := d.requireAuth(); err != nil {
				return err
			}
			ctx, cancel := cmdCtx()
			defer cancel()
			views, err := d.controller.ListJobs(ctx)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS\tBUDGET\tTITLE\tAPPLIED")
			for _, v := range views {
				applied := ""
				if v.AppliedByMe {
					applied = "yes"
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
					v.Job.ID, v.Job.Status, v.Job.Budget, v.Job.Title, applied)
			}
			return w.Flush()
		},
	}
}

func newJobsCreateCmd() *cobra.Command {
	var title, description, budget string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Post a new job (employer)",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDeps()
			if err != nil {
				return err
			}
			if err := d.requireAuth(); err != nil {
				return err
			}
			ctx, cancel := cmdCtx()
			defer cancel()
			v, err := d.controller.CreateJob(ctx, title, description, budget)
			if err != nil {
				return err
			}
			fmt.Printf("Job %d posted: %s (budget %s)\n", v.Job.ID, v.Job.Title, v.Job.Budget)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "job title")
	cmd.Flags().StringVar(&description, "description", "", "what the work involves")
	cmd.Flags().StringVar(&budget, "budget", "", "budget in KES, e.g. 12500.00")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("description")
	_ = cmd.MarkFlagRequired("budget")
	return cmd
}

func newJobsApplyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apply <job-id>",
		Short: "Apply to an open job (worker)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := parseID(args[0], "job")
			if err != nil {
				return err
			}
			d, err := buildDeps()
			if err != nil {
				return err
			}
			if err := d.requireAuth(); err != nil {
				return err
			}
			ctx, cancel := cmdCtx()
			defer cancel()
			appID, err := d.controller.Apply(ctx, jobID)
			if errors.Is(err, lifecycle.ErrAlreadyApplied) {
				fmt.Printf("Already applied to job %d\n", jobID)
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Printf("Applied to job %d (application %d)\n", jobID, appID)
			return nil
		},
	}
}

func newJobsWithdrawCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "withdraw <job-id>",
		Short: "Withdraw your pending application (worker)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := parseID(args[0], "job")
			if err != nil {
				return err
			}
			d, err := buildDeps()
			if err != nil {
				return err
			}
			if err := d.requireAuth(); err != nil {
				return err
			}
			ctx, cancel := cmdCtx()
			defer cancel()
			if err := d.controller.Withdraw(ctx, jobID); err != nil {
				return err
			}
			fmt.Printf("Withdrew application for job %d\n", jobID)
			return nil
		},
	}
}

func newJobsApplicantsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "applicants <job-id>",
		Short: "List pending applicants for a job (employer)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := parseID(args[0], "job")
			if err != nil {
				return err
			}
			d, err := buildDeps()
			if err != nil {
				return err
			}
			if err := d.requireAuth(); err != nil {
				return err
			}
			ctx, cancel := cmdCtx()
			defer cancel()
			apps, err := d.controller.LoadApplicants(ctx, jobID)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "APPLICATION\tNAME\tPHONE\tPRIOR JOBS")
			for _, a := range apps {
				fmt.Fprintf(w, "%d\t%s\t%s\t%d\n",
					a.ID, a.EmployeeName, a.EmployeePhone, len(a.WorkHistory))
			}
			return w.Flush()
		},
	}
}

func newJobsAssignCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "assign <job-id> <application-id>",
		Short: "Assign an applicant to your open job (employer)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := parseID(args[0], "job")
			if err != nil {
				return err
			}
			applicantID, err := parseID(args[1], "application")
			if err != nil {
				return err
			}
			d, err := buildDeps()
			if err != nil {
				return err
			}
			if err := d.requireAuth(); err != nil {
				return err
			}
			ctx, cancel := cmdCtx()
			defer cancel()
			// Prime the cache so the controller can run its pre-checks.
			if _, err := d.controller.RefreshJob(ctx, jobID); err != nil {
				return err
			}
			v, err := d.controller.Assign(ctx, jobID, applicantID)
			if err != nil {
				return err
			}
			fmt.Printf("Job %d is now %s\n", jobID, v.Job.Status)
			return nil
		},
	}
}

func newJobsCompleteCmd() *cobra.Command {
	var summary string
	cmd := &cobra.Command{
		Use:   "complete <job-id>",
		Short: "Mark assigned work done and release the escrow (employer)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := parseID(args[0], "job")
			if err != nil {
				return err
			}
			d, err := buildDeps()
			if err != nil {
				return err
			}
			if err := d.requireAuth(); err != nil {
				return err
			}
			ctx, cancel := cmdCtx()
			defer cancel()
			if _, err := d.controller.RefreshJob(ctx, jobID); err != nil {
				return err
			}
			v, err := d.controller.Complete(ctx, jobID, summary)
			if err != nil {
				return err
			}
			fmt.Printf("Job %d completed; escrow release requested\n", v.Job.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&summary, "summary", "", "short description of the finished work")
	return cmd
}

func newJobsCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a non-terminal job (employer)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := parseID(args[0], "job")
			if err != nil {
				return err
			}
			d, err := buildDeps()
			if err != nil {
				return err
			}
			if err := d.requireAuth(); err != nil {
				return err
			}
			ctx, cancel := cmdCtx()
			defer cancel()
			if _, err := d.controller.RefreshJob(ctx, jobID); err != nil {
				return err
			}
			v, err := d.controller.Cancel(ctx, jobID)
			if err != nil {
				return err
			}
			fmt.Printf("Job %d is now %s\n", jobID, v.Job.Status)
			return nil
		},
	}
}

func newEscrowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "escrow <job-id>",
		Short: "Show the escrow state for a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := parseID(args[0], "job")
			if err != nil {
				return err
			}
			d, err := buildDeps()
			if err != nil {
				return err
			}
			if err := d.requireAuth(); err != nil {
				return err
			}
			ctx, cancel := cmdCtx()
			defer cancel()
			info, err := d.controller.Escrow(ctx, jobID)
			if errors.Is(err, lifecycle.ErrNoEscrow) {
				fmt.Printf("Job %d has no escrow yet\n", jobID)
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Printf("Job %d: %s, %s KES held (contract %s)\n",
				jobID, info.Status, info.AmountHeldKES, info.ContractID)
			if info.FundedAt != nil {
				fmt.Printf("Funded at %s\n", *info.FundedAt)
			}
			if info.ReleasedAt != nil {
				fmt.Printf("Released at %s\n", *info.ReleasedAt)
			}
			return nil
		},
	}
}

func newFundCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fund <job-id>",
		Short: "Fund a job's escrow through the hosted checkout (employer)",
		Long: `Opens the payment checkout in your browser and waits for the redirect.
The deposit becomes authoritative only once the payment provider confirms
it to the TrustWork backend; check "trustwork escrow <job-id>" afterwards.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := parseID(args[0], "job")
			if err != nil {
				return err
			}
			d, err := buildDeps()
			if err != nil {
				return err
			}
			if err := d.requireAuth(); err != nil {
				return err
			}
			widget := payment.NewHostedCheckout(d.cfg.PaystackPublicKey(), d.cfg.CallbackAddr())
			bridge := payment.NewBridge(d.client, d.controller, widget, d.log)
			// No timeout: the user may take minutes inside the checkout.
			err = bridge.Fund(context.Background(), jobID)
			if errors.Is(err, payment.ErrCancelled) {
				fmt.Println(err.Error())
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Println("Deposit submitted; escrow updates once the payment is confirmed")
			return nil
		},
	}
}

func newWorkersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "workers",
		Short: "Show your hired workers and open jobs with applicants (employer)",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDeps()
			if err != nil {
				return err
			}
			if err := d.requireAuth(); err != nil {
				return err
			}
			ctx, cancel := cmdCtx()
			defer cancel()
			overview, err := d.controller.WorkersOverview(ctx)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "JOB\tWORKER\tPHONE\tSTATUS\tDAYS")
			for _, hw := range overview.HiredWorkers {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n",
					hw.JobTitle, hw.EmployeeName, hw.EmployeePhone, hw.Status, hw.DurationDays)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			for _, open := range overview.OpenJobsWithApplicants {
				fmt.Printf("\nJob %d %q — %d pending applicant(s)\n",
					open.JobID, open.JobTitle, open.ApplicantCount)
				for _, a := range open.Applicants {
					fmt.Printf("  application %d: %s (%s), %d prior job(s)\n",
						a.ID, a.EmployeeName, a.EmployeePhone, len(a.WorkHistory))
				}
			}
			return nil
		},
	}
}

func newChatsCmd() *cobra.Command {
	chats := &cobra.Command{
		Use:   "chats",
		Short: "List jobs you can chat about",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDeps()
			if err != nil {
				return err
			}
			if err := d.requireAuth(); err != nil {
				return err
			}
			ctx, cancel := cmdCtx()
			defer cancel()
			threads, err := d.controller.Chats(ctx)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "JOB\tWITH\tSTATUS\tTITLE")
			for _, th := range threads {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", th.JobID, th.OtherName, th.Status, th.JobTitle)
			}
			return w.Flush()
		},
	}
	chats.AddCommand(newChatsShowCmd(), newChatsSendCmd())
	return chats
}

func newChatsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show the message thread for a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := parseID(args[0], "job")
			if err != nil {
				return err
			}
			d, err := buildDeps()
			if err != nil {
				return err
			}
			if err := d.requireAuth(); err != nil {
				return err
			}
			ctx, cancel := cmdCtx()
			defer cancel()
			msgs, err := d.controller.Messages(ctx, jobID)
			if err != nil {
				return err
			}
			for _, m := range msgs {
				who := m.SenderName
				if m.IsMine {
					who = "you"
				}
				fmt.Printf("[%s] %s: %s\n", m.CreatedAt, who, m.Text)
			}
			return nil
		},
	}
}

func newChatsSendCmd() *cobra.Command {
	var text string
	cmd := &cobra.Command{
		Use:   "send <job-id>",
		Short: "Send a message on a job thread",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID, err := parseID(args[0], "job")
			if err != nil {
				return err
			}
			d, err := buildDeps()
			if err != nil {
				return err
			}
			if err := d.requireAuth(); err != nil {
				return err
			}
			ctx, cancel := cmdCtx()
			defer cancel()
			m, err := d.controller.SendMessage(ctx, jobID, text)
			if err != nil {
				return err
			}
			fmt.Printf("Sent message %d on job %d\n", m.ID, jobID)
			return nil
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "message text")
	_ = cmd.MarkFlagRequired("text")
	return cmd
}

func newTransactionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transactions",
		Short: "List your deposits and payouts",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDeps()
			if err != nil {
				return err
			}
			if err := d.requireAuth(); err != nil {
				return err
			}
			ctx, cancel := cmdCtx()
			defer cancel()
			items, err := d.controller.Transactions(ctx)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TYPE\tAMOUNT\tSTATUS\tJOB\tREFERENCE")
			for _, tx := range items {
				fmt.Fprintf(w, "%s\t%s %s\t%s\t%s\t%s\n",
					tx.Type, tx.Amount, tx.Currency, tx.Status, tx.JobTitle, tx.Reference)
			}
			return w.Flush()
		},
	}
}
