//go:build linux

package transport

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// openPTY allocates a pseudo-terminal in raw mode. The master stays
// non-blocking so read deadlines work.
func openPTY() (*ptyPair, error) {
	master, err := os.OpenFile("/dev/ptmx", os.O_RDWR|unix.O_NOCTTY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open ptmx: %w", err)
	}

	var (
		num    uint32
		ctlErr error
	)
	raw, err := master.SyscallConn()
	if err != nil {
		_ = master.Close()
		return nil, err
	}
	err = raw.Control(func(fd uintptr) {
		ctlErr = setupPTY(int(fd), &num)
	})
	if err == nil {
		err = ctlErr
	}
	if err != nil {
		_ = master.Close()
		return nil, err
	}

	path := fmt.Sprintf("/dev/pts/%d", num)
	device, err := os.OpenFile(path, os.O_RDWR|unix.O_NOCTTY|unix.O_CLOEXEC, 0)
	if err != nil {
		_ = master.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &ptyPair{master: master, device: device, path: path}, nil
}

func setupPTY(fd int, num *uint32) error {
	if err := unix.IoctlSetPointerInt(fd, unix.TIOCSPTLCK, 0); err != nil {
		return fmt.Errorf("unlock pty: %w", err)
	}
	n, err := unix.IoctlGetUint32(fd, unix.TIOCGPTN)
	if err != nil {
		return fmt.Errorf("get pty number: %w", err)
	}
	*num = n

	// Terminal settings set through the master apply to the device side.
	t, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return fmt.Errorf("get termios: %w", err)
	}
	makeRaw(t)
	if err := unix.IoctlSetTermios(fd, unix.TCSETS, t); err != nil {
		return fmt.Errorf("set termios: %w", err)
	}
	return nil
}

// makeRaw is cfmakeraw(3): 8-bit bytes, no echo, no line editing, no
// translation.
func makeRaw(t *unix.Termios) {
	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag &^= unix.CSIZE | unix.PARENB
	t.Cflag |= unix.CS8
	t.Cc[unix.VMIN] = 1
	t.Cc[unix.VTIME] = 0
}
