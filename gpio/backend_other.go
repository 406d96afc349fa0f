//go:build !linux

package gpio

import (
	"fmt"
	"log/slog"
)

func openCdev(Spec, func(), *slog.Logger) (*Pair, error) {
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, BackendCdev)
}

func openSysfs(Spec, func(), *slog.Logger) (*Pair, error) {
	return nil, fmt.Errorf("%w: %s", ErrUnsupported, BackendSysfs)
}
