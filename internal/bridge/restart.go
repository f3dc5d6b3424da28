// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bridge

import (
	"io"
	"os"
	"syscall"

	"go.uber.org/zap"

	"github.com/Thermoquad/radarstat/internal/logging"
	"github.com/Thermoquad/radarstat/pkg/r60afd1"
)

// ExecRestarter restarts the process by re-executing its own binary with the
// same arguments and environment.
type ExecRestarter struct {
	// Closers are closed before the exec, in order
	Closers []io.Closer
	Logger  *zap.Logger

	exec func(argv0 string, argv []string, envv []string) error
}

var _ r60afd1.Restarter = (*ExecRestarter)(nil)

// NewExecRestarter creates a restarter that closes closers before re-executing
func NewExecRestarter(logger *zap.Logger, closers ...io.Closer) *ExecRestarter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExecRestarter{Closers: closers, Logger: logger, exec: syscall.Exec}
}

// Restart does not return unless the exec fails, in which case the process
// exits so a supervisor can start it again.
func (r *ExecRestarter) Restart(reason string) {
	r.Logger.Info("restarting", zap.String("reason", reason))
	for _, c := range r.Closers {
		if err := c.Close(); err != nil {
			r.Logger.Warn("close before restart failed", zap.Error(err))
		}
	}
	logging.Sync()

	self, err := os.Executable()
	if err == nil {
		err = r.exec(self, os.Args, os.Environ())
	}
	r.Logger.Error("re-exec failed, exiting", zap.Error(err))
	logging.Sync()
	os.Exit(1)
}
