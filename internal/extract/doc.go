// Package extract normalizes job inputs to the transcriber's audio
// contract: mono 16 kHz PCM WAV.
//
// Video containers always run through ffmpeg; audio containers run
// through ffmpeg unless ffprobe shows they already match the contract,
// in which case the stage is skipped. Cancellation kills the child
// process and removes the partial output before returning.
package extract
