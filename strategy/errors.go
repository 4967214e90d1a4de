package strategy

import (
	"errors"

	"github.com/hupe1980/runmesh/core"
)

// errorMessage returns the human part of err, without a code prefix.
func errorMessage(err error) string {
	var ce *core.Error
	if errors.As(err, &ce) && ce.Message != "" {
		return ce.Message
	}
	return err.Error()
}
