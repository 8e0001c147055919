// Package pipeline implements the ten ordered stages that turn a job's source
// documents into a narrated video: extraction, key points, script, narration,
// audio synthesis, visual concepts, descriptions, frame rendering, compilation,
// and finalization.
//
// Stages communicate exclusively through per-job workspace artifacts under
// staging_dir/job-<id>; a stage never runs before its predecessor succeeded.
// Every stage except the best-effort description pass is fatal on error, and
// partial artifacts are always left on disk for postmortem inspection.
package pipeline
