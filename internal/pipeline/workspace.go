package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"loom/internal/config"
	"loom/internal/queue"
)

// Workspace is the per-job staging layout. Each stage writes its results here
// and reads its inputs from the previous stage's files, so the orchestrator
// carries no pipeline state between stages.
//
//	job-<id>/
//	  source.txt          extraction output
//	  metadata.json       finalization summary
//	  script/             key_points.json, script.txt, narration.txt
//	  audio/              narration.wav, narration.json (measured duration)
//	  frames/             concepts.json, frame_%06d.png
//	  video/              silent.mp4 (removed after mux), final.mp4
type Workspace struct {
	Root string
}

// NewWorkspace derives the workspace root for a job id.
func NewWorkspace(stagingDir, jobID string) Workspace {
	return Workspace{Root: filepath.Join(strings.TrimSpace(stagingDir), "job-"+strings.TrimSpace(jobID))}
}

// WorkspaceFor derives the workspace for a job from configuration.
func WorkspaceFor(cfg *config.Config, job *queue.Job) Workspace {
	return NewWorkspace(cfg.Paths.StagingDir, job.ID)
}

// Ensure creates the workspace directory tree.
func (w Workspace) Ensure() error {
	for _, dir := range []string{w.ScriptDir(), w.AudioDir(), w.FramesDir(), w.VideoDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create workspace directory %q: %w", dir, err)
		}
	}
	return nil
}

func (w Workspace) ScriptDir() string { return filepath.Join(w.Root, "script") }
func (w Workspace) AudioDir() string  { return filepath.Join(w.Root, "audio") }
func (w Workspace) FramesDir() string { return filepath.Join(w.Root, "frames") }
func (w Workspace) VideoDir() string  { return filepath.Join(w.Root, "video") }

func (w Workspace) SourcePath() string    { return filepath.Join(w.Root, "source.txt") }
func (w Workspace) KeyPointsPath() string { return filepath.Join(w.ScriptDir(), "key_points.json") }
func (w Workspace) ScriptPath() string    { return filepath.Join(w.ScriptDir(), "script.txt") }
func (w Workspace) NarrationPath() string { return filepath.Join(w.ScriptDir(), "narration.txt") }
func (w Workspace) AudioPath() string     { return filepath.Join(w.AudioDir(), "narration.wav") }
func (w Workspace) AudioMeasurePath() string {
	return filepath.Join(w.AudioDir(), "narration.json")
}
func (w Workspace) ConceptsPath() string    { return filepath.Join(w.FramesDir(), "concepts.json") }
func (w Workspace) SilentVideoPath() string { return filepath.Join(w.VideoDir(), "silent.mp4") }
func (w Workspace) FinalVideoPath() string  { return filepath.Join(w.VideoDir(), "final.mp4") }
func (w Workspace) MetadataPath() string    { return filepath.Join(w.Root, "metadata.json") }

// FramePattern returns the printf-style frame path consumed by the encoder.
func (w Workspace) FramePattern() string {
	return filepath.Join(w.FramesDir(), "frame_%06d.png")
}

// FramePath returns the path of one rendered frame by global index.
func (w Workspace) FramePath(index int) string {
	return filepath.Join(w.FramesDir(), fmt.Sprintf("frame_%06d.png", index))
}

// FrameCount counts the rendered frame images currently on disk.
func (w Workspace) FrameCount() (int, error) {
	entries, err := os.ReadDir(w.FramesDir())
	if err != nil {
		return 0, err
	}
	count := 0
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, "frame_") && strings.HasSuffix(name, ".png") {
			count++
		}
	}
	return count, nil
}

// audioMeasure is the probe summary written next to the synthesized waveform.
// The measured duration is authoritative for all later sizing; the requested
// target duration is never consulted again once this file exists.
type audioMeasure struct {
	DurationSeconds float64 `json:"duration_seconds"`
	SizeBytes       int64   `json:"size_bytes"`
	SampleRate      string  `json:"sample_rate,omitempty"`
	Channels        int     `json:"channels,omitempty"`
}

// concept is one visual scene of the final video. Description may be empty:
// elaboration is best-effort and degrades to a bare title.
type concept struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type keyPointsArtifact struct {
	KeyPoints []string `json:"key_points"`
}

type conceptsArtifact struct {
	Concepts []concept `json:"concepts"`
}

func (w Workspace) saveKeyPoints(points []string) error {
	return writeJSONArtifact(w.KeyPointsPath(), keyPointsArtifact{KeyPoints: points})
}

func (w Workspace) loadKeyPoints() ([]string, error) {
	var artifact keyPointsArtifact
	if err := readJSONArtifact(w.KeyPointsPath(), &artifact); err != nil {
		return nil, err
	}
	return artifact.KeyPoints, nil
}

func (w Workspace) saveAudioMeasure(measure audioMeasure) error {
	return writeJSONArtifact(w.AudioMeasurePath(), measure)
}

func (w Workspace) loadAudioMeasure() (audioMeasure, error) {
	var measure audioMeasure
	err := readJSONArtifact(w.AudioMeasurePath(), &measure)
	return measure, err
}

func (w Workspace) saveConcepts(concepts []concept) error {
	return writeJSONArtifact(w.ConceptsPath(), conceptsArtifact{Concepts: concepts})
}

func (w Workspace) loadConcepts() ([]concept, error) {
	var artifact conceptsArtifact
	if err := readJSONArtifact(w.ConceptsPath(), &artifact); err != nil {
		return nil, err
	}
	return artifact.Concepts, nil
}

func writeJSONArtifact(path string, payload any) error {
	encoded, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	encoded = append(encoded, '\n')
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func readJSONArtifact(path string, target any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}
