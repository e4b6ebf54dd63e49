//go:build unix

package recon

import "syscall"

var (
	refusedErrnos = []syscall.Errno{
		syscall.ECONNREFUSED,
	}
	unreachableErrnos = []syscall.Errno{
		syscall.EHOSTUNREACH,
		syscall.ENETUNREACH,
		syscall.ETIMEDOUT,
	}
)
