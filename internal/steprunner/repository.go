package steprunner

import (
	"context"
)

// EntryFunc is a step's entry routine.
type EntryFunc func(ctx context.Context, step *Context) (any, error)

// Handle identifies a located step unit.
type Handle struct {
	Name string
	Path string
}

// CodeRepository locates and loads step units.
type CodeRepository interface {
	Find(name string) (Handle, error)
	Load(handle Handle) (EntryFunc, error)
	List() ([]string, error)
}
