//go:build !darwin && !linux

package keepawake

import (
	"context"

	hostErrors "github.com/wakesentry/host/internal/errors"
)

// NewDefaultAsserter returns an asserter that safely degrades on platforms
// without a supported sleep inhibitor.
func NewDefaultAsserter() Asserter {
	return &unsupportedAsserter{}
}

type unsupportedAsserter struct{}

func (a *unsupportedAsserter) Assert(ctx context.Context, req AssertRequest) (Handle, error) {
	return nil, hostErrors.UnsupportedEnvironment("keep-awake is unsupported on this host")
}
