// Package server is the console's HTTP surface.
//
// Routes:
//
//   - GET /: the embedded dashboard page
//   - GET /api/widgets and GET /api/sse: widget snapshots, polled or streamed
//   - POST and DELETE /api/widgets/{name}/mount: start or stop a widget
//   - GET /api/keys: websocket relay for browser key reports
//   - GET /api/bindings: the key map
//   - GET /api/speed, POST /api/speed/reset: the drive speed scale
//   - GET /api/connection: the latest link health sample
//   - POST /api/power/{action}: poweroff or reboot
//   - GET and POST /api/theme, POST /api/theme/cycle: theme preference
//
// The server shuts down when the context given to [Server.Start] ends; SSE
// streams and key relays end with it.
package server
