//go:build !unix && !windows

package recon

import "syscall"

// No errno table on this platform: refusals and unreachable routes surface
// as Error, dial timeouts still classify as Filtered.
var (
	refusedErrnos     []syscall.Errno
	unreachableErrnos []syscall.Errno
)
