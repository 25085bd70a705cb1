package internal

import (
	"context"
	"runtime"

	"github.com/xaionaro-go/avencmux/logger"
)

// SetFinalizerFree makes the garbage collector call Free on freer
// if it was never released explicitly.
func SetFinalizerFree[T interface{ Free() }](
	ctx context.Context,
	freer T,
) {
	runtime.SetFinalizer(freer, func(freer T) {
		logger.Debugf(ctx, "freeing %T", freer)
		freer.Free()
	})
}
