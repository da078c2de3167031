package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// JobView describes a job in a transport-friendly format.
type JobView struct {
	ID            string      `json:"id"`
	SourceKind    string      `json:"sourceKind"`
	Source        string      `json:"source"`
	Status        string      `json:"status"`
	Model         string      `json:"model"`
	Language      string      `json:"language,omitempty"`
	Format        string      `json:"format"`
	MaxLineLength int         `json:"maxLineLength,omitempty"`
	Device        string      `json:"device"`
	HalfPrecision bool        `json:"halfPrecision,omitempty"`
	Progress      JobProgress `json:"progress"`
	ResultPath    string      `json:"resultPath,omitempty"`
	ErrorKind     string      `json:"errorKind,omitempty"`
	ErrorStage    string      `json:"errorStage,omitempty"`
	ErrorMessage  string      `json:"errorMessage,omitempty"`
	Warnings      []string    `json:"warnings,omitempty"`
	CreatedAt     string      `json:"createdAt,omitempty"`
	UpdatedAt     string      `json:"updatedAt,omitempty"`
}

// JobProgress captures stage progress information for a job.
type JobProgress struct {
	Stage   string  `json:"stage"`
	Percent float64 `json:"percent"`
	Message string  `json:"message"`
}

// SubmitRequest carries a new job submission.
type SubmitRequest struct {
	SourceKind    string `json:"sourceKind"`
	Source        string `json:"source"`
	Model         string `json:"model,omitempty"`
	Language      string `json:"language,omitempty"`
	Format        string `json:"format,omitempty"`
	MaxLineLength int    `json:"maxLineLength,omitempty"`
	Device        string `json:"device,omitempty"`
	HalfPrecision bool   `json:"halfPrecision,omitempty"`
}

// JobResponse wraps a single job.
type JobResponse struct {
	Job JobView `json:"job"`
}

// JobListResponse wraps a collection of jobs.
type JobListResponse struct {
	Jobs []JobView `json:"jobs"`
}

// CancelResponse reports whether a cancel request landed.
type CancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

// DeleteResponse reports whether a job record was removed.
type DeleteResponse struct {
	Deleted bool `json:"deleted"`
}

// WorkflowStatus summarizes worker pool state.
type WorkflowStatus struct {
	Running    bool           `json:"running"`
	QueueStats map[string]int `json:"queueStats"`
}

// DependencyStatus captures availability of an external binary.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	Version      string             `json:"version,omitempty"`
	QueueDBPath  string             `json:"queueDbPath"`
	LockFilePath string             `json:"lockFilePath"`
	Workflow     WorkflowStatus     `json:"workflow"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}
