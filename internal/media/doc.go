// Package media inspects source videos and renders extracted frames.
//
// Inspector runs ffprobe and reduces its JSON report to a MediaProbe:
// duration, display dimensions, bitrate, frame rate, container and codecs.
// RenderThumbnail turns a raw frame captured by FFmpeg into a bounded JPEG,
// optionally stamped with a text watermark.
package media
