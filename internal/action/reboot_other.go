//go:build !linux

package action

import (
	"fmt"
	"runtime"
)

func systemReboot() error {
	return fmt.Errorf("syscall reboot is not supported on %s", runtime.GOOS)
}
