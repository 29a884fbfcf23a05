package recovery

import (
	"fmt"

	"github.com/siftdocs/pdfsift/observability"
)

// StrictStrategy fails on the first defect.
type StrictStrategy struct{}

func NewStrictStrategy() *StrictStrategy { return &StrictStrategy{} }

func (s *StrictStrategy) OnError(ctx Context, err error, location Location) Action {
	return ActionFail
}

// LenientStrategy repairs what it can and records every defect it saw.
type LenientStrategy struct {
	Logger observability.Logger
	Errors []error
}

func NewLenientStrategy() *LenientStrategy {
	return &LenientStrategy{Logger: observability.NopLogger{}}
}

func (s *LenientStrategy) OnError(ctx Context, err error, location Location) Action {
	wrapped := fmt.Errorf("%s at offset %d: %w", location.Component, location.ByteOffset, err)
	s.Errors = append(s.Errors, wrapped)
	if s.Logger != nil {
		s.Logger.Warn("recovered from malformed construct",
			observability.String("component", location.Component),
			observability.Int64("offset", location.ByteOffset),
			observability.Error("error", err))
	}
	return ActionFix
}
