package handler

const (
	// RootPath is the root path the route group.
	RootPath = "/"

	// ErrNilACDFatalLogMsg is used if app or cfg or db var pointer is nil.
	ErrNilACDFatalLogMsg = "app, cfg or db is nil"
)
