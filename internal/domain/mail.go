package domain

const (
	MailTypeCreateUser      = "create_user"
	MailTypeResetPassword   = "reset_password"
	MailTypeSizingCompleted = "sizing_completed"
)

type MailMessage struct {
	Type string `json:"type"`
	To   string `json:"to"`
	Data any    `json:"data"`
}

type CreateUserMailData struct {
	FullName string `json:"fullName"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type ResetPasswordMailData struct {
	FullName   string `json:"fullName"`
	OTP        string `json:"otp"`
	Expiration int    `json:"expiration"` // 分钟
}

type SizingCompletedMailData struct {
	FullName       string              `json:"fullName"`
	RunID          string              `json:"runId"`
	FlightCount    int                 `json:"flightCount"`
	CandidateCount int                 `json:"candidateCount"`
	AssignmentNum  int                 `json:"assignmentNum"`
	WorkerCount    int                 `json:"workerCount"`
	Uncovered      []*UncoveredFlights `json:"uncovered"`
}
