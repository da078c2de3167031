// Package subtitle renders transcript segments as SRT or WebVTT
// documents.
//
// Rendering is byte-deterministic: the same segments and options always
// produce the same document. Cue text wraps at word boundaries, a cue
// that fits two lines takes the most balanced split, and degenerate
// timings (end at or before start) are stretched to one millisecond.
package subtitle
