//go:build windows

package audio

import (
	"errors"
	"os"
)

var errNoSuspend = errors.New("audio: pausing a process is not supported on windows")

func suspend(*os.Process) error { return errNoSuspend }

func resume(*os.Process) error { return errNoSuspend }
