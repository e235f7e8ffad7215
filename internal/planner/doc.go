// Package planner chooses the renditions to encode for a source video.
//
// The ladder is fixed: 360p at 800 kbps, 480p at 1200 kbps, 720p at
// 2500 kbps and 1080p at 5000 kbps. A source gets every rung that fits
// inside it, lowest first; a source smaller than 640x360 gets one fallback
// rendition at its own size. Planning is a pure function of the source
// dimensions and duration.
package planner
