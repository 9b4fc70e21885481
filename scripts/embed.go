// Package scripts embeds the example scripts shipped with automaple. They
// run against the simulated backend with `automaple run <name>`.
package scripts

import "embed"

//go:embed *.lua
var FS embed.FS
