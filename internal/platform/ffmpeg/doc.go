// Package ffmpeg drives the ffmpeg binary for the two media operations the
// render pipeline needs: extracting a reference frame from a finished clip
// and concatenating an ordered set of clips into one file.
//
// Frame extraction accepts a frame index where negative values count from
// the end of the clip, so -1 is the final frame. Extracted frames are
// normalized to the configured generation input size so the provider
// receives consistent dimensions regardless of the source clip.
//
// Concatenation uses the concat demuxer with a generated list file, copying
// streams without re-encoding. All clips come from the same generator, so
// their codecs match.
//
// Failures carry the tail of ffmpeg's stderr for diagnosis. Callers decide
// whether a failure is fatal; frame extraction failures in particular are
// expected to degrade upstream rather than abort a render.
package ffmpeg
