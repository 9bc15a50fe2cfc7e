package builder

import "errors"

var (
	ErrElementNotFound = errors.New("element not found")
	ErrUnknownType     = errors.New("unknown element type")
	ErrInvalidParent   = errors.New("parent must be an existing container")
	ErrCycle           = errors.New("element cannot be nested inside itself")
	ErrDuplicateID     = errors.New("duplicate element id")
	ErrInvalidContent  = errors.New("invalid project content")
	ErrUnknownTemplate = errors.New("unknown template")
	ErrNotTextEditable = errors.New("element is not text editable")
)
