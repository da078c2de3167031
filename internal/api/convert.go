package api

import (
	"sort"

	"scriber/internal/queue"
)

// FromJob converts a queue record to its API representation.
func FromJob(job *queue.Job) JobView {
	if job == nil {
		return JobView{}
	}
	view := JobView{
		ID:            job.ID,
		SourceKind:    string(job.SourceKind),
		Source:        job.SourceValue,
		Status:        string(job.Status),
		Model:         job.Options.Model,
		Language:      job.Options.Language,
		Format:        job.Options.Format,
		MaxLineLength: job.Options.MaxLineLength,
		Device:        job.Options.Device,
		HalfPrecision: job.Options.HalfPrecision,
		Progress: JobProgress{
			Stage:   job.ProgressStage,
			Percent: job.ProgressPercent,
			Message: job.ProgressMessage,
		},
		ResultPath:   job.ResultPath,
		ErrorKind:    job.ErrorKind,
		ErrorStage:   job.ErrorStage,
		ErrorMessage: job.ErrorMessage,
	}
	if len(job.Warnings) > 0 {
		view.Warnings = append([]string(nil), job.Warnings...)
	}
	if !job.CreatedAt.IsZero() {
		view.CreatedAt = job.CreatedAt.UTC().Format(dateTimeFormat)
	}
	if !job.UpdatedAt.IsZero() {
		view.UpdatedAt = job.UpdatedAt.UTC().Format(dateTimeFormat)
	}
	return view
}

// FromJobs converts a slice of queue records into API DTOs.
func FromJobs(jobs []*queue.Job) []JobView {
	if len(jobs) == 0 {
		return nil
	}
	out := make([]JobView, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, FromJob(job))
	}
	return out
}

// MergeJobStats normalizes queue counts so every known status has an
// entry even when zero.
func MergeJobStats(stats map[queue.Status]int) map[string]int {
	merged := make(map[string]int, len(queue.AllStatuses()))
	for _, status := range queue.AllStatuses() {
		merged[string(status)] = 0
	}
	for status, count := range stats {
		merged[string(status)] = count
	}
	return merged
}

// SortJobsNewestFirst orders job views by creation time descending,
// breaking ties by id so output is stable.
func SortJobsNewestFirst(jobs []JobView) []JobView {
	if len(jobs) == 0 {
		return nil
	}
	sorted := make([]JobView, len(jobs))
	copy(sorted, jobs)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].CreatedAt == sorted[j].CreatedAt {
			return sorted[i].ID > sorted[j].ID
		}
		return sorted[i].CreatedAt > sorted[j].CreatedAt
	})
	return sorted
}
