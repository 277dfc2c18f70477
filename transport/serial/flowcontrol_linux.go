//go:build linux

package serial

import (
	"os"

	"golang.org/x/sys/unix"
)

// DisableFlowControl clears IXON/IXOFF on the line for the duration of a
// file transfer. Software flow control characters (XON/XOFF, 0x11/0x13)
// can legitimately occur inside a binary payload byte and must not be
// intercepted by the driver while one is in progress.
//
// tarm/serial does not expose the line's file descriptor, so this opens a
// second fd on the same device purely to issue the ioctl; termios state is
// a property of the tty line in the kernel, not of the fd that set it, so
// this affects the port already in use by p without disturbing its reads
// or writes.
func (p *Port) DisableFlowControl() error {
	return p.withTermios(func(t *unix.Termios) {
		t.Iflag &^= unix.IXON | unix.IXOFF
	})
}

// RestoreFlowControl re-enables IXON/IXOFF after a transfer completes.
func (p *Port) RestoreFlowControl() error {
	return p.withTermios(func(t *unix.Termios) {
		t.Iflag |= unix.IXON | unix.IXOFF
	})
}

func (p *Port) withTermios(mutate func(*unix.Termios)) error {
	f, err := os.OpenFile(p.cfg.Device, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	defer f.Close()

	fd := int(f.Fd())
	t, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return err
	}
	mutate(t)
	return unix.IoctlSetTermios(fd, unix.TCSETS, t)
}
