//go:build linux

package action

import "golang.org/x/sys/unix"

func systemReboot() error {
	unix.Sync()
	return unix.Reboot(unix.LINUX_REBOOT_CMD_RESTART)
}
