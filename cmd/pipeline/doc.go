// Command pipeline runs the transcoding pipeline once from the command line,
// without the HTTP service.
//
// Usage:
//
//	pipeline run [flags] <input> <outputDir>
//	pipeline probe <input>
//
// Commands:
//
//	run    Probe the input, encode every ladder rung to HLS, write the
//	       master manifest and, if requested, thumbnails and a preview
//	       clip. Progress is drawn as a bar when stderr is a terminal.
//	       The exit status is 0 only if the job completed.
//
//	probe  Print the ffprobe summary of the input as JSON.
//
// Flags for run:
//
//	-thumbnails N       number of thumbnails (default 0)
//	-preview            generate a preview clip
//	-preview-seconds S  preview length (default 10)
//	-watermark TEXT     text drawn on previews and thumbnails
//	-timeout D          abort the job after D (e.g. 30m)
//
// Environment:
//
//	FFMPEG_PATH, FFPROBE_PATH  tool locations (default: resolved via PATH)
//	VIDEO_PRESET               x264 preset (default: veryfast)
//	SEGMENT_DURATION           HLS segment length in seconds (default: 4)
//	WATERMARK_FONT             font file for video watermarks (default: fontconfig)
//	LOG_LEVEL                  logging level (debug/info/warn/error)
package main
