// -*- Mode: Go; indent-tabs-mode: t -*-

/*
 * Copyright (C) 2026 The openzfsboot authors
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License version 3 as
 * published by the Free Software Foundation.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

// Package scdaemon supervises the PC/SC daemon (pcscd) that the PKCS#11
// smartcard backend needs running before it can open a session -- the Go
// shape of original_source/loadkey/pcscd.c's YK_StartPCSCD/YK_StopPCSCD,
// using gopkg.in/tomb.v2 the way the teacher supervises its own
// long-running daemon children instead of a bare os/exec.Cmd.Wait.
package scdaemon

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"gopkg.in/tomb.v2"

	"github.com/openzfsboot/zfsboot/dirs"
	"github.com/openzfsboot/zfsboot/logger"
)

// Path is the pcscd binary location, matching the original's hard-coded
// "/sbin/pcscd".
var Path = "/sbin/pcscd"

// Args are the flags YK_StartPCSCD passes: foreground polling mode
// instead of relying on udev hotplug events, appropriate for an
// initramfs that has no udev running yet.
var Args = []string{"-f", "-x", "--force-reader-polling"}

// SocketWaitTimeout bounds how long Start waits for pcscd's control
// socket to appear before giving up.
var SocketWaitTimeout = 5 * time.Second

// Daemon supervises one running pcscd child process.
type Daemon struct {
	t   tomb.Tomb
	cmd *exec.Cmd
}

// execCommand is indirected so tests substitute testutil.MockCommand's
// installed script instead of spawning a real pcscd.
var execCommand = exec.CommandContext

// Start launches pcscd and waits for its control socket to appear,
// returning a handle whose Stop terminates it. Unlike the original's
// fork+PR_SET_PDEATHSIG dance, tomb.Tomb's Kill/Wait gives this the same
// "child dies with its supervisor" guarantee without relying on a Linux-
// specific prctl.
func Start(ctx context.Context) (*Daemon, error) {
	d := &Daemon{}
	d.cmd = execCommand(ctx, Path, Args...)
	if err := d.cmd.Start(); err != nil {
		return nil, fmt.Errorf("scdaemon: start pcscd: %w", err)
	}

	d.t.Go(func() error {
		return d.cmd.Wait()
	})

	if err := waitForSocket(ctx, SocketWaitTimeout); err != nil {
		d.t.Kill(err)
		d.t.Wait()
		return nil, err
	}

	logger.Noticef("scdaemon: pcscd started, pid %d", d.cmd.Process.Pid)
	return d, nil
}

// Stop terminates pcscd and waits for it to exit, mirroring
// YK_StopPCSCD's SIGTERM-by-pid behavior but via the process handle this
// package already holds rather than re-deriving the pid from
// /run/pcscd/pcscd.pid.
func (d *Daemon) Stop() error {
	d.t.Kill(nil)
	if d.cmd.Process != nil {
		_ = d.cmd.Process.Signal(os.Interrupt)
	}
	err := d.t.Wait()
	logger.Noticef("scdaemon: pcscd stopped")
	return err
}

func socketPath() string {
	return filepath.Join(dirs.GlobalRootDir(), "/run/pcscd/pcscd.comm")
}

func waitForSocket(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if _, err := os.Stat(socketPath()); err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("scdaemon: pcscd did not create its socket within %s", timeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}
