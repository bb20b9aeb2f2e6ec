//go:build !linux

package sampler

import (
	"context"
	"time"
)

func sample(context.Context, time.Duration) (Sample, error) {
	return Sample{}, ErrUnsupportedPlatform
}
