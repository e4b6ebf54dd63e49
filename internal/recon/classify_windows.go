//go:build windows

package recon

import "syscall"

// Winsock error codes as returned by connect.
const (
	wsaeNetUnreach  syscall.Errno = 10051
	wsaeTimedOut    syscall.Errno = 10060
	wsaeConnRefused syscall.Errno = 10061
	wsaeHostUnreach syscall.Errno = 10065
)

var (
	refusedErrnos = []syscall.Errno{
		wsaeConnRefused,
	}
	unreachableErrnos = []syscall.Errno{
		wsaeHostUnreach,
		wsaeNetUnreach,
		wsaeTimedOut,
	}
)
