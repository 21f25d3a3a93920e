//go:build linux

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"syscall"

	"golang.org/x/sys/unix"
)

// epollWaitMS bounds each epoll_wait so context cancellation is observed.
const epollWaitMS = 100

// readInputEventsEpoll reads from all input devices using epoll and sends
// translated daemon events to events.
//
// Instead of:
//   - N goroutines, each blocking on read()
//
// We use:
//   - 1 goroutine with epoll
//   - Kernel wakes us only when events are available
//
// A device that hangs up (unplugged) is dropped; the reader only fails once
// no devices remain.
func readInputEventsEpoll(ctx context.Context, devs []*inputDevice, events chan<- Event, logger *slog.Logger) error {
	if len(devs) == 0 {
		return errors.New("no input devices provided")
	}

	// Create epoll instance
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return fmt.Errorf("epoll_create1: %w", err)
	}
	defer unix.Close(epfd)

	// Map file descriptors to devices for later identification
	fdToDev := make(map[int]*inputDevice)

	// Register all input devices with epoll
	for _, d := range devs {
		fd := int(d.file.Fd())
		fdToDev[fd] = d

		event := unix.EpollEvent{
			Events: unix.EPOLLIN, // Notify when readable
			Fd:     int32(fd),
		}
		if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, fd, &event); err != nil {
			return fmt.Errorf("epoll_ctl_add %s: %w", d.cfg.Path, err)
		}
	}

	// Reusable buffers
	const maxEvents = 32     // Process up to 32 ready fds per epoll_wait call
	const eventsPerRead = 64 // Read up to 64 input_events per read()
	epollEvents := make([]unix.EpollEvent, maxEvents)
	buf := make([]byte, inputEventSize*eventsPerRead)

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		n, err := unix.EpollWait(epfd, epollEvents, epollWaitMS)
		if err != nil {
			// Handle interrupted system call (e.g., SIGINT)
			if errors.Is(err, syscall.EINTR) {
				continue
			}
			return fmt.Errorf("epoll_wait: %w", err)
		}

		for i := 0; i < n; i++ {
			fd := int(epollEvents[i].Fd)
			d, ok := fdToDev[fd]
			if !ok {
				continue
			}

			if epollEvents[i].Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
				logger.Warn("input device hung up, dropping", "path", d.cfg.Path, "role", d.cfg.Role)
				_ = unix.EpollCtl(epfd, unix.EPOLL_CTL_DEL, fd, nil)
				delete(fdToDev, fd)
				if len(fdToDev) == 0 {
					return errors.New("all input devices are gone")
				}
				continue
			}

			nr, err := d.file.Read(buf)
			if err != nil {
				return fmt.Errorf("read from %s: %w", d.cfg.Path, err)
			}

			for _, raw := range decodeInputEvents(buf[:nr]) {
				for _, ev := range d.tr.translate(raw) {
					select {
					case events <- ev:
					case <-ctx.Done():
						return nil
					}
				}
			}
		}
	}
}
