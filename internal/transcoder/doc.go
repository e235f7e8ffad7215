// Package transcoder drives FFmpeg for each pipeline operation.
//
// It supports:
//   - Single encodes to MP4 with streamed progress (Transcode)
//   - One HLS rendition plus its sub-manifest per call (BuildSegmentedOutput)
//   - Evenly spaced thumbnail extraction (ExtractThumbnails)
//   - Short preview clips (GeneratePreview)
//
// Argument vectors are built from a validated Options struct; inputs must be
// local paths or http(s) URLs and watermark text is restricted to a safe
// character set, so nothing caller-supplied is ever read as an option or a
// filter directive.
//
// Video watermarks use ffmpeg's drawtext filter. Unless a font file is set
// with SetFontFile (WATERMARK_FONT), ffmpeg resolves the default font
// through fontconfig, and builds without fontconfig fail every encode that
// carries a watermark. Thumbnail watermarks are drawn in Go and need no font.
package transcoder
