package recovery

import (
	"fmt"

	"github.com/wudi/flipbook/observability"
)

// StrictStrategy aborts the whole render pass on the first page failure.
type StrictStrategy struct{}

func NewStrictStrategy() *StrictStrategy {
	return &StrictStrategy{}
}

func (s *StrictStrategy) OnError(err error, location Location) Action {
	return ActionFail
}

// LenientStrategy skips failed pages and keeps rendering. This matches the
// historical viewer behavior where a single bad page does not take down the
// whole spread. Accumulated errors remain inspectable by the caller.
type LenientStrategy struct {
	Errors []error
}

func NewLenientStrategy() *LenientStrategy {
	return &LenientStrategy{}
}

func (s *LenientStrategy) OnError(err error, location Location) Action {
	s.Errors = append(s.Errors, fmt.Errorf("[%s] page %d: %w", location.Stage, location.PageIndex, err))
	return ActionSkip
}

// WarnStrategy skips failed pages like LenientStrategy but reports each
// failure through the supplied logger.
type WarnStrategy struct {
	logger observability.Logger
}

func NewWarnStrategy(logger observability.Logger) *WarnStrategy {
	if logger == nil {
		logger = observability.NopLogger{}
	}
	return &WarnStrategy{logger: logger}
}

func (s *WarnStrategy) OnError(err error, location Location) Action {
	s.logger.Warn("page render failed",
		observability.Int("page", location.PageIndex),
		observability.String("stage", location.Stage),
		observability.Error("err", err))
	return ActionWarn
}
