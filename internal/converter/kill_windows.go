//go:build windows

package converter

import (
	"os/exec"
	"strconv"
)

func setProcessGroup(*exec.Cmd) {}

// killProcessGroup kills a process and all its children using taskkill.
func killProcessGroup(pid int) {
	_ = exec.Command("taskkill", "/F", "/T", "/PID", strconv.Itoa(pid)).Run()
}
