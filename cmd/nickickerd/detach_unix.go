//go:build unix

package main

import (
	"os"
	"os/exec"
	"syscall"
)

// detach re-executes the binary in a new session with envKey set and
// returns the child's pid without waiting for it.
func detach(args []string, envKey string) (int, error) {
	exe, err := os.Executable()
	if err != nil {
		return 0, err
	}
	devnull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return 0, err
	}
	defer devnull.Close()

	c := exec.Command(exe, args[1:]...)
	c.Env = append(os.Environ(), envKey+"=1")
	c.Stdin, c.Stdout, c.Stderr = devnull, devnull, devnull
	c.Dir = "/"
	c.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := c.Start(); err != nil {
		return 0, err
	}
	pid := c.Process.Pid
	return pid, c.Process.Release()
}
