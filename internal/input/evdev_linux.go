//go:build linux

package input

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// epollTimeoutMs bounds how long Run waits before rechecking ctx.
const epollTimeoutMs = 250

// Run reads all devices until ctx is cancelled or every device has gone
// away. Devices are opened non-blocking and multiplexed with epoll.
func (s *EvdevSource) Run(ctx context.Context) error {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return fmt.Errorf("epoll_create1: %w", err)
	}
	defer unix.Close(epfd)

	fdToPath := make(map[int]string, len(s.paths))
	defer func() {
		for fd := range fdToPath {
			_ = unix.Close(fd)
		}
	}()

	for _, path := range s.paths {
		fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
		if err != nil {
			return fmt.Errorf("open %s: %w", path, err)
		}
		fdToPath[fd] = path

		event := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
		if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, fd, &event); err != nil {
			return fmt.Errorf("epoll_ctl_add %s: %w", path, err)
		}
	}

	s.logger.Info("evdev source started", "devices", len(fdToPath))

	const maxEvents = 16
	epollEvents := make([]unix.EpollEvent, maxEvents)
	buf := make([]byte, 64*inputEventSize)

	for {
		if ctx.Err() != nil {
			return nil
		}

		n, err := unix.EpollWait(epfd, epollEvents, epollTimeoutMs)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return fmt.Errorf("epoll_wait: %w", err)
		}

		for i := 0; i < n; i++ {
			fd := int(epollEvents[i].Fd)
			path := fdToPath[fd]

			if epollEvents[i].Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
				s.logger.Warn("input device lost", "device", path)
				_ = unix.EpollCtl(epfd, unix.EPOLL_CTL_DEL, fd, nil)
				_ = unix.Close(fd)
				delete(fdToPath, fd)
				continue
			}

			if err := s.drain(fd, buf); err != nil {
				s.logger.Warn("input device read failed", "device", path, "error", err.Error())
			}
		}

		if len(fdToPath) == 0 {
			return errors.New("all input devices closed")
		}
	}
}

// drain reads every pending event from fd.
func (s *EvdevSource) drain(fd int, buf []byte) error {
	for {
		n, err := unix.Read(fd, buf)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) {
				return nil
			}
			return err
		}
		if n <= 0 {
			return nil
		}
		for off := 0; off+inputEventSize <= n; off += inputEventSize {
			if raw, ok := decodeInputEvent(buf[off:]).toRawKeyEvent(); ok {
				s.Emit(raw)
			}
		}
	}
}
