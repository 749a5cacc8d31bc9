// Package opus converts raw audio into the fixed-cadence Opus frames
// that Discord voice expects.
//
// Audio moves through the package as length-prefixed frames
// ([uint16 LE length][opus bytes]). No headers, no metadata. Encode
// transcodes any audio to Opus via FFmpeg and produces length-prefixed
// frames. FrameReader reads them back. FrameStream buffers a bounded
// number of frames ahead of real-time need and distinguishes a stalled
// source from a terminated one.
package opus
