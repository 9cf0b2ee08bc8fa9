//go:build !unix

package main

import "errors"

func detach([]string, string) (int, error) {
	return 0, errors.New("daemon mode is not supported on this platform, use --foreground")
}
