// Wire types for the TrustWork backend contract. Field names and JSON tags
// follow the server's serializers; decimal amounts stay strings so budgets
// round-trip without drift.

package api

// User is the authenticated principal returned by auth and profile routes.
type User struct {
	ID          int    `json:"id"`
	Email       string `json:"email,omitempty"`
	PhoneNumber string `json:"phone_number"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	UserType    string `json:"user_type"` // "employer" or "employee"
}

// FullName returns the display name for the user.
func (u User) FullName() string {
	switch {
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	case u.Email != "":
		return u.Email
	default:
		return u.PhoneNumber
	}
}

// AuthResponse is returned by login and register.
type AuthResponse struct {
	User    User   `json:"user"`
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
	Message string `json:"message,omitempty"`
}

// RegisterInput carries the fields for account creation.
type RegisterInput struct {
	Email       string `json:"email,omitempty"`
	Password    string `json:"password"`
	PhoneNumber string `json:"phone_number"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	UserType    string `json:"user_type"`
}

// Job is one posted work engagement.
type Job struct {
	ID               int     `json:"id"`
	Title            string  `json:"title"`
	Description      string  `json:"description"`
	Budget           string  `json:"budget"`
	Status           string  `json:"status"`
	Employer         int     `json:"employer"`
	EmployerName     string  `json:"employer_name,omitempty"`
	Employee         *int    `json:"employee"`
	CreatedAt        string  `json:"created_at"`
	UpdatedAt        string  `json:"updated_at"`
	AssignedAt       *string `json:"assigned_at"`
	CompletedAt      *string `json:"completed_at"`
	EscrowContractID *string `json:"escrow_contract_id"`
}

// WorkHistoryItem is a server-computed snapshot of one prior completed job,
// attached read-only to an applicant.
type WorkHistoryItem struct {
	JobTitle     string  `json:"job_title"`
	EmployerName *string `json:"employer_name"`
	CompletedAt  *string `json:"completed_at"`
	DurationDays int     `json:"duration_days"`
	WorkSummary  *string `json:"work_summary"`
}

// Applicant is a worker's pending application as seen by the employer.
type Applicant struct {
	ID            int               `json:"id"`
	Employee      int               `json:"employee"`
	EmployeeName  string            `json:"employee_name"`
	EmployeePhone string            `json:"employee_phone"`
	EmployeeEmail *string           `json:"employee_email"`
	Status        string            `json:"status"`
	CreatedAt     string            `json:"created_at"`
	WorkHistory   []WorkHistoryItem `json:"work_history,omitempty"`
}

// ApplyResult is the response to POST /jobs/{id}/apply/.
type ApplyResult struct {
	Message       string `json:"message"`
	ApplicationID int    `json:"application_id"`
}

// EscrowInfo is the client-visible projection of funds held for a job.
// The server returns a zero record (empty contract id, pending_deposit)
// for jobs with no funding action yet.
type EscrowInfo struct {
	JobID         int     `json:"job_id"`
	JobTitle      string  `json:"job_title"`
	ContractID    string  `json:"contract_id"`
	AmountHeld    string  `json:"amount_held"`
	AmountHeldKES string  `json:"amount_held_kes"`
	AmountHeldXLM string  `json:"amount_held_xlm"`
	Status        string  `json:"status"`
	FundedAt      *string `json:"funded_at"`
	ReleasedAt    *string `json:"released_at"`
	WhenRelease   *string `json:"when_release"`
}

// Zero reports whether this record is the server's "no escrow yet" shape.
func (e EscrowInfo) Zero() bool {
	return e.ContractID == ""
}

// CheckoutIntent is the payment-intent payload for the hosted checkout.
type CheckoutIntent struct {
	Reference      string  `json:"reference"`
	AmountSubunits int64   `json:"amount_kobo"`
	AmountKES      float64 `json:"amount_kes"`
	Currency       string  `json:"currency"`
	Email          string  `json:"email"`
	JobID          int     `json:"job_id"`
	JobTitle       string  `json:"job_title"`
}

// Transaction is one deposit or payout row.
type Transaction struct {
	Type        string  `json:"type"` // "deposit" or "payout"
	ID          int     `json:"id"`
	JobID       int     `json:"job_id"`
	JobTitle    string  `json:"job_title"`
	Amount      string  `json:"amount"`
	Currency    string  `json:"currency"`
	Reference   string  `json:"reference"`
	Status      string  `json:"status"`
	CreatedAt   string  `json:"created_at"`
	CompletedAt *string `json:"completed_at"`
}

// MyApplication is one of the worker's own applications.
type MyApplication struct {
	JobID         int    `json:"job_id"`
	ApplicationID int    `json:"application_id"`
	Status        string `json:"status"`
}

// WorkHistoryEntry is one completed job in the worker's verifiable history.
type WorkHistoryEntry struct {
	JobID        int     `json:"job_id"`
	JobTitle     string  `json:"job_title"`
	EmployerName *string `json:"employer_name"`
	CompletedAt  *string `json:"completed_at"`
	DurationDays int     `json:"duration_days"`
	WorkSummary  *string `json:"work_summary"`
	Budget       string  `json:"budget"`
}

// HiredWorker is one row of the employer's hired-workers overview.
type HiredWorker struct {
	JobID         int     `json:"job_id"`
	JobTitle      string  `json:"job_title"`
	EmployeeID    int     `json:"employee_id"`
	EmployeeName  string  `json:"employee_name"`
	EmployeePhone string  `json:"employee_phone"`
	AssignedAt    *string `json:"assigned_at"`
	CompletedAt   *string `json:"completed_at"`
	Status        string  `json:"status"`
	DurationDays  int     `json:"duration_days"`
}

// ApplicantSummary is a compact applicant row inside the employer overview.
type ApplicantSummary struct {
	ID            int               `json:"id"`
	EmployeeID    int               `json:"employee_id"`
	EmployeeName  string            `json:"employee_name"`
	EmployeePhone string            `json:"employee_phone"`
	WorkHistory   []WorkHistoryItem `json:"work_history,omitempty"`
}

// OpenJobWithApplicants groups pending applicants under an open job.
type OpenJobWithApplicants struct {
	JobID          int                `json:"job_id"`
	JobTitle       string             `json:"job_title"`
	ApplicantCount int                `json:"applicant_count"`
	Applicants     []ApplicantSummary `json:"applicants"`
}

// WorkersOverview is the employer's find-workers payload.
type WorkersOverview struct {
	HiredWorkers          []HiredWorker           `json:"hired_workers"`
	OpenJobsWithApplicants []OpenJobWithApplicants `json:"open_jobs_with_applicants"`
}

// ChatThread is one job the current user can chat about.
type ChatThread struct {
	JobID     int    `json:"job_id"`
	JobTitle  string `json:"job_title"`
	OtherName string `json:"other_name"`
	Status    string `json:"status"`
}

// Message is one chat message on a job.
type Message struct {
	ID         int    `json:"id"`
	SenderID   int    `json:"sender_id"`
	SenderName string `json:"sender_name"`
	IsMine     bool   `json:"is_mine"`
	Text       string `json:"text"`
	CreatedAt  string `json:"created_at"`
}
