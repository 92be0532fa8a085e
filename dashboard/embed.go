// Package dashboard provides the embedded web UI for the console.
//
// The page renders widget snapshots streamed over /api/sse, relays key
// presses to /api/keys over a websocket and drives the theme, speed and
// power controls. The server substitutes {{.Title}} before serving it.
package dashboard

import "embed"

// Assets is an embedded filesystem containing the dashboard web UI.
//
// The filesystem structure is:
//
//	assets/
//	  index.html    - Main dashboard page with inline CSS and JavaScript
//
//go:embed assets/*
var Assets embed.FS
