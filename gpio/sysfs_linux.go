//go:build linux

package gpio

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"syscall"

	"golang.org/x/sys/unix"
)

// sysfsRoot is the legacy GPIO class directory. Tests point it elsewhere.
var sysfsRoot = "/sys/class/gpio"

type sysfsLine struct {
	f *os.File
}

func (s sysfsLine) Value() (int, error) {
	var buf [2]byte
	n, err := s.f.ReadAt(buf[:], 0)
	if err != nil && n == 0 {
		return 0, fmt.Errorf("read %s: %w", s.f.Name(), err)
	}
	switch buf[0] {
	case '0':
		return 0, nil
	case '1':
		return 1, nil
	default:
		return 0, fmt.Errorf("read %s: unexpected value %q", s.f.Name(), buf[:n])
	}
}

func openSysfs(spec Spec, onEdge func(), logger *slog.Logger) (*Pair, error) {
	offA, err := parseOffset("a", spec.A)
	if err != nil {
		return nil, err
	}
	offB, err := parseOffset("b", spec.B)
	if err != nil {
		return nil, err
	}
	if spec.PullUp || spec.Debounce > 0 {
		logger.Warn("sysfs backend ignores pull_up and debounce", "a", offA, "b", offB)
	}

	fa, err := exportSysfs(offA, spec.ActiveLow)
	if err != nil {
		return nil, err
	}
	fb, err := exportSysfs(offB, spec.ActiveLow)
	if err != nil {
		fa.Close()
		return nil, err
	}

	w, err := newSysfsWatcher([]*os.File{fa, fb}, onEdge, logger)
	if err != nil {
		fa.Close()
		fb.Close()
		return nil, err
	}
	go w.run()

	return &Pair{
		A: sysfsLine{f: fa},
		B: sysfsLine{f: fb},
		closeFn: func() error {
			werr := w.stop()
			return errors.Join(werr, fa.Close(), fb.Close())
		},
	}, nil
}

// exportSysfs exports a line when needed, configures it as a both-edge
// input and opens its value file.
func exportSysfs(offset int, activeLow bool) (*os.File, error) {
	dir := filepath.Join(sysfsRoot, "gpio"+strconv.Itoa(offset))
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		if err := writeSysfs(filepath.Join(sysfsRoot, "export"), strconv.Itoa(offset)); err != nil {
			return nil, err
		}
	}

	if err := writeSysfs(filepath.Join(dir, "direction"), "in"); err != nil {
		return nil, err
	}
	if err := writeSysfs(filepath.Join(dir, "edge"), "both"); err != nil {
		return nil, err
	}
	al := "0"
	if activeLow {
		al = "1"
	}
	if err := writeSysfs(filepath.Join(dir, "active_low"), al); err != nil {
		return nil, err
	}

	f, err := os.Open(filepath.Join(dir, "value"))
	if err != nil {
		return nil, fmt.Errorf("gpio: open value for line %d: %w", offset, err)
	}
	return f, nil
}

func writeSysfs(path, v string) error {
	if err := os.WriteFile(path, []byte(v), 0o644); err != nil {
		return fmt.Errorf("gpio: write %s: %w", path, err)
	}
	return nil
}

// sysfsWatcher waits for EPOLLPRI on the value files. A pipe registered in
// the same epoll set wakes it for shutdown.
type sysfsWatcher struct {
	epfd   int
	files  map[int32]*os.File
	wakeR  int
	wakeW  int
	done   chan struct{}
	onEdge func()
	logger *slog.Logger
}

func newSysfsWatcher(files []*os.File, onEdge func(), logger *slog.Logger) (*sysfsWatcher, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll_create1: %w", err)
	}

	var p [2]int
	if err := unix.Pipe2(p[:], unix.O_CLOEXEC|unix.O_NONBLOCK); err != nil {
		unix.Close(epfd)
		return nil, fmt.Errorf("pipe2: %w", err)
	}

	w := &sysfsWatcher{
		epfd:   epfd,
		files:  make(map[int32]*os.File, len(files)),
		wakeR:  p[0],
		wakeW:  p[1],
		done:   make(chan struct{}),
		onEdge: onEdge,
		logger: logger,
	}

	add := func(fd int, events uint32) error {
		ev := unix.EpollEvent{Events: events, Fd: int32(fd)}
		if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
			return fmt.Errorf("epoll_ctl_add fd=%d: %w", fd, err)
		}
		return nil
	}

	if err := add(w.wakeR, unix.EPOLLIN); err != nil {
		w.closeFds()
		return nil, err
	}
	for _, f := range files {
		fd := int(f.Fd())
		w.files[int32(fd)] = f
		if err := add(fd, unix.EPOLLPRI|unix.EPOLLERR); err != nil {
			w.closeFds()
			return nil, err
		}
		// Clear the initial readiness so the first wakeup is a real edge.
		var buf [2]byte
		_, _ = f.ReadAt(buf[:], 0)
	}
	return w, nil
}

func (w *sysfsWatcher) run() {
	defer close(w.done)

	events := make([]unix.EpollEvent, 4)
	var buf [2]byte
	for {
		n, err := unix.EpollWait(w.epfd, events, -1)
		if err != nil {
			if err == syscall.EINTR {
				continue
			}
			w.logger.Error("sysfs epoll_wait failed", "error", err)
			return
		}

		edge := false
		for i := 0; i < n; i++ {
			if int(events[i].Fd) == w.wakeR {
				return
			}
			if f, ok := w.files[events[i].Fd]; ok {
				// Reading re-arms the sysfs notification.
				_, _ = f.ReadAt(buf[:], 0)
				edge = true
			}
		}
		if edge {
			w.onEdge()
		}
	}
}

func (w *sysfsWatcher) stop() error {
	_, err := unix.Write(w.wakeW, []byte{0})
	if err == nil {
		<-w.done
	}
	w.closeFds()
	return err
}

func (w *sysfsWatcher) closeFds() {
	unix.Close(w.wakeW)
	unix.Close(w.wakeR)
	unix.Close(w.epfd)
}
