// Package ffmpeg wraps the ffmpeg command line for the two compilation
// passes: encoding a rendered PNG sequence into a silent H.264 video, then
// muxing the narration WAV on top with the video stream copied untouched.
//
// Tests swap the command constructor to exercise argument construction and
// failure handling without a real encoder.
package ffmpeg
