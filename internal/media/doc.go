// Package media brings job inputs into the staging area and inspects them.
//
// Acquisition accepts local paths, uploaded files, and remote URLs.
// Remote sources are downloaded with bounded retry into a per-job staging
// directory; every acquired artifact is reported back so the pipeline can
// clean it up on any exit path. Inspection wraps ffprobe JSON output in
// typed accessors used for passthrough detection and progress estimation.
package media
