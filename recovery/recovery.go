package recovery

// Strategy decides how the render pipeline reacts to a page-level
// rasterization failure.
type Strategy interface {
	OnError(err error, location Location) Action
}

// Location identifies where in the pipeline an error occurred.
type Location struct {
	PageIndex int
	Stage     string
}

type Action int

const (
	ActionFail Action = iota
	ActionSkip
	ActionWarn
)
