// Package ui embeds the admin single-page app served under /admin.
package ui

import "embed"

// Dist holds the built admin app. The app keeps the session token in
// localStorage, sends it as a Bearer header and discards it on any 401.
//
//go:embed all:dist
var Dist embed.FS
