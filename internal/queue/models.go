package queue

import (
	"encoding/json"
	"strings"
	"time"
)

// Status represents the lifecycle of a job.
type Status string

const (
	StatusPending         Status = "pending"
	StatusAcquiring       Status = "acquiring"
	StatusExtracting      Status = "extracting"
	StatusSelectingDevice Status = "selecting_device"
	StatusTranscribing    Status = "transcribing"
	StatusFormatting      Status = "formatting"
	StatusDone            Status = "done"
	StatusFailed          Status = "failed"
	StatusCancelled       Status = "cancelled"
)

// UserCancelMessage is the error message recorded when a user cancels a job.
const UserCancelMessage = "cancelled by user"

// DaemonStopMessage is recorded when in-flight jobs are released during shutdown.
const DaemonStopMessage = "daemon stopped"

var allStatuses = []Status{
	StatusPending,
	StatusAcquiring,
	StatusExtracting,
	StatusSelectingDevice,
	StatusTranscribing,
	StatusFormatting,
	StatusDone,
	StatusFailed,
	StatusCancelled,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusAcquiring:       {},
	StatusExtracting:      {},
	StatusSelectingDevice: {},
	StatusTranscribing:    {},
	StatusFormatting:      {},
}

var terminalStatuses = map[Status]struct{}{
	StatusDone:      {},
	StatusFailed:    {},
	StatusCancelled: {},
}

// forwardTransitions encodes the legal stage order. Extraction may be
// skipped when the source is already normalized audio, so acquiring has
// two successors.
var forwardTransitions = map[Status][]Status{
	StatusPending:         {StatusAcquiring},
	StatusAcquiring:       {StatusExtracting, StatusSelectingDevice},
	StatusExtracting:      {StatusSelectingDevice},
	StatusSelectingDevice: {StatusTranscribing},
	StatusTranscribing:    {StatusFormatting},
	StatusFormatting:      {StatusDone},
}

// SourceKind identifies how a job's input arrives.
type SourceKind string

const (
	SourceLocal  SourceKind = "local"
	SourceUpload SourceKind = "upload"
	SourceURL    SourceKind = "url"
)

// Options captures the per-job settings chosen at submission.
type Options struct {
	Model         string
	Language      string
	Format        string
	MaxLineLength int
	Device        string
	HalfPrecision bool
}

// Job represents a transcription job persisted in SQLite.
type Job struct {
	ID              string
	SourceKind      SourceKind
	SourceValue     string
	Options         Options
	Status          Status
	ProgressStage   string
	ProgressPercent float64
	ProgressMessage string
	ResultPath      string
	ErrorKind       string
	ErrorStage      string
	ErrorMessage    string
	Warnings        []string
	CancelRequested bool
	LastHeartbeat   *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// HealthSummary describes aggregated job counts per key lifecycle states.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Done       int
	Failed     int
	Cancelled  int
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a status admits no further transitions.
func (s Status) IsTerminal() bool {
	_, ok := terminalStatuses[s]
	return ok
}

// IsProcessing reports whether a status reflects an in-flight stage.
func (s Status) IsProcessing() bool {
	_, ok := processingStatuses[s]
	return ok
}

// CanTransition reports whether moving from one status to another is
// legal. Failure and cancellation are reachable from every non-terminal
// status; terminal statuses admit nothing.
func CanTransition(from, to Status) bool {
	if from.IsTerminal() {
		return false
	}
	if to == StatusFailed || to == StatusCancelled {
		return true
	}
	for _, next := range forwardTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsProcessing returns true when the job is between claim and a terminal
// status.
func (j Job) IsProcessing() bool {
	return j.Status.IsProcessing()
}

// SetProgress updates all three progress fields together.
func (j *Job) SetProgress(stage, message string, percent float64) {
	j.ProgressStage = stage
	j.ProgressMessage = message
	j.ProgressPercent = percent
}

// SetFailed marks the job failed with a structured error record.
// Clears the heartbeat so the reclaimer ignores it.
func (j *Job) SetFailed(kind, stage, message string) {
	j.Status = StatusFailed
	j.ErrorKind = kind
	j.ErrorStage = stage
	j.ErrorMessage = message
	j.ProgressMessage = message
	j.LastHeartbeat = nil
}

// SetCancelled marks the job cancelled after cleanup has run.
func (j *Job) SetCancelled() {
	j.Status = StatusCancelled
	j.ErrorMessage = UserCancelMessage
	j.ProgressMessage = UserCancelMessage
	j.LastHeartbeat = nil
}

// AddWarning appends a non-fatal note preserved in submission order.
func (j *Job) AddWarning(message string) {
	if strings.TrimSpace(message) == "" {
		return
	}
	j.Warnings = append(j.Warnings, message)
}

func encodeWarnings(warnings []string) (string, error) {
	if len(warnings) == 0 {
		return "", nil
	}
	data, err := json.Marshal(warnings)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeWarnings(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var warnings []string
	if err := json.Unmarshal([]byte(raw), &warnings); err != nil {
		return nil
	}
	return warnings
}
