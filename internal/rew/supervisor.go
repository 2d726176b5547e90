package rew

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"github.com/jensen-user/rew-bridge/internal/logging"
)

// Process supervision error kinds.
var (
	ErrExecutableNotFound  = errors.New("rew executable not found")
	ErrUnsupportedPlatform = errors.New("no known rew install location for this platform")
)

// windowsInstallPaths are the conventional REW install locations on Windows,
// checked in order.
var windowsInstallPaths = []string{
	`C:\Program Files\REW\roomeqwizard.exe`,
	`C:\Program Files (x86)\REW\roomeqwizard.exe`,
}

const macInstallPath = "/Applications/REW.app"

// FindExecutable resolves the REW executable. An explicitly configured path
// wins when it exists (a configured-but-missing path logs a warning and
// falls through to the conventional locations).
func FindExecutable(configured string, logger logging.Logger) (string, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if configured != "" {
		if _, err := os.Stat(configured); err == nil {
			return configured, nil
		}
		logger.Warn("configured rew_path does not exist", logging.Field{Key: "path", Value: configured})
	}

	switch runtime.GOOS {
	case "windows":
		for _, path := range windowsInstallPaths {
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}
		return "", ErrExecutableNotFound
	case "darwin":
		if _, err := os.Stat(macInstallPath); err == nil {
			return macInstallPath, nil
		}
		return "", ErrExecutableNotFound
	default:
		return "", ErrUnsupportedPlatform
	}
}

// Supervisor owns the REW process handle: locating, launching with the API
// enabled and the GUI suppressed, and terminating with a force-kill backstop.
type Supervisor struct {
	mu             sync.Mutex
	configuredPath string
	logger         logging.Logger
	cmd            *exec.Cmd
	waitCh         chan error
}

// NewSupervisor builds a supervisor. configuredPath may be empty, in which
// case the platform's conventional install locations are searched at launch.
func NewSupervisor(configuredPath string, logger logging.Logger) *Supervisor {
	if logger == nil {
		logger = logging.Default()
	}
	return &Supervisor{configuredPath: configuredPath, logger: logger}
}

// Launch locates and spawns REW in headless API mode. Launch failures are
// reported, not retried; a restart command is the recovery path.
func (s *Supervisor) Launch() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd != nil {
		return nil
	}

	path, err := FindExecutable(s.configuredPath, s.logger)
	if err != nil {
		return err
	}

	var cmd *exec.Cmd
	if runtime.GOOS == "darwin" {
		// .app bundles launch through open; the flags ride along as
		// application arguments.
		cmd = exec.Command("open", "-a", path, "--args", "-api", "-nogui")
	} else {
		cmd = exec.Command(path, "-api", "-nogui")
	}

	s.logger.Info("launching rew", logging.Field{Key: "path", Value: path})
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("spawn rew: %w", err)
	}

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	s.cmd = cmd
	s.waitCh = waitCh
	return nil
}

// Running reports whether the supervisor currently holds a process handle.
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cmd != nil
}

// Terminate signals the process and waits up to grace for it to exit,
// force-killing afterwards. A graceful application-level shutdown is assumed
// to have been requested through the API already. Terminating with no live
// handle is a no-op.
func (s *Supervisor) Terminate(grace time.Duration) {
	s.mu.Lock()
	cmd, waitCh := s.cmd, s.waitCh
	s.cmd = nil
	s.waitCh = nil
	s.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return
	}

	if err := cmd.Process.Signal(os.Interrupt); err != nil {
		// Interrupt is unsupported on some platforms (Windows); go
		// straight to the hard stop below by skipping the grace wait.
		grace = 0
	}

	if grace > 0 {
		select {
		case <-waitCh:
			s.logger.Info("rew process exited")
			return
		case <-time.After(grace):
			s.logger.Warn("rew did not exit within grace period, killing",
				logging.Field{Key: "grace", Value: grace})
		}
	}

	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		s.logger.Error("kill rew process", logging.Field{Key: "error", Value: err})
	}
	<-waitCh
	s.logger.Info("rew process terminated")
}
