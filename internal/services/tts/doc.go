// Package tts wraps the espeak-ng command-line synthesizer so the audio stage
// can turn narration text into a WAV file.
//
// It exposes a Client interface and a CLI implementation. Tests swap the
// command constructor to avoid invoking the real engine while still
// exercising argument construction and failure handling.
package tts
