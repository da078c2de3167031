// Package language normalizes language hints supplied with a job.
//
// Whisper expects ISO 639-1 codes ("en", "de"). Callers may hand us
// 2-letter codes, 3-letter codes, BCP 47 tags ("en-US"), or English
// names ("english"); everything funnels through Normalize so the rest
// of the pipeline only ever sees the 2-letter form.
package language
