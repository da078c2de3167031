package queue

import (
	"database/sql"
	"errors"
	"time"
)

const jobColumns = "id, source_kind, source_value, model, language, format, max_line_length, device, half_precision, status, progress_stage, progress_percent, progress_message, result_path, error_kind, error_stage, error_message, warnings_json, cancel_requested, last_heartbeat, created_at, updated_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id               string
		sourceKind       string
		sourceValue      string
		model            string
		languageCode     sql.NullString
		format           string
		maxLineLength    sql.NullInt64
		device           sql.NullString
		halfPrecision    sql.NullInt64
		statusStr        string
		progressStage    sql.NullString
		progressPercent  sql.NullFloat64
		progressMessage  sql.NullString
		resultPath       sql.NullString
		errorKind        sql.NullString
		errorStage       sql.NullString
		errorMessage     sql.NullString
		warningsRaw      sql.NullString
		cancelRequested  sql.NullInt64
		lastHeartbeatRaw sql.NullString
		createdRaw       sql.NullString
		updatedRaw       sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&sourceKind,
		&sourceValue,
		&model,
		&languageCode,
		&format,
		&maxLineLength,
		&device,
		&halfPrecision,
		&statusStr,
		&progressStage,
		&progressPercent,
		&progressMessage,
		&resultPath,
		&errorKind,
		&errorStage,
		&errorMessage,
		&warningsRaw,
		&cancelRequested,
		&lastHeartbeatRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:          id,
		SourceKind:  SourceKind(sourceKind),
		SourceValue: sourceValue,
		Options: Options{
			Model:         model,
			Language:      languageCode.String,
			Format:        format,
			MaxLineLength: int(maxLineLength.Int64),
			Device:        device.String,
			HalfPrecision: halfPrecision.Int64 != 0,
		},
		Status:          Status(statusStr),
		ProgressStage:   progressStage.String,
		ProgressPercent: progressPercent.Float64,
		ProgressMessage: progressMessage.String,
		ResultPath:      resultPath.String,
		ErrorKind:       errorKind.String,
		ErrorStage:      errorStage.String,
		ErrorMessage:    errorMessage.String,
		Warnings:        decodeWarnings(warningsRaw.String),
		CancelRequested: cancelRequested.Int64 != 0,
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
	}
	if lastHeartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(lastHeartbeatRaw.String); err == nil {
			job.LastHeartbeat = &heartbeat
		}
	}
	return job, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
