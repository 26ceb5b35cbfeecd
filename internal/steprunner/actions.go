package steprunner

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"rigproc/internal/services"
)

// ErrStepFailed is returned when an action calls fail().
var ErrStepFailed = errors.New("step reported failure")

// actionEnv exposes the facade to expr actions. With a nil step it returns
// stubs of the same shape, used only for compile-time type checking.
func actionEnv(ctx context.Context, step *Context) map[string]any {
	if step == nil {
		step = &Context{}
	}
	return map[string]any{
		"step":    step.Step,
		"process": step.Process,
		"option": func(name string, group ...string) any {
			return step.Option(name, firstOrEmpty(group))
		},
		"has_option": func(name string, group ...string) bool {
			return step.HasOption(name, firstOrEmpty(group))
		},
		"set_option": func(name string, value any, group ...string) (any, error) {
			if err := step.SetOption(name, value, firstOrEmpty(group)); err != nil {
				return nil, err
			}
			return value, nil
		},
		"add_option": func(name string, value any, group ...string) (bool, error) {
			return step.AddOption(name, value, firstOrEmpty(group))
		},
		"set_enabled": func(name string, enabled bool) (bool, error) {
			if err := step.SetEnabled(name, enabled); err != nil {
				return false, err
			}
			return enabled, nil
		},
		"set": func(name string, value any) any {
			step.Put(name, value)
			return value
		},
		"get": func(name string) any {
			v, _ := step.Fetch(name)
			return v
		},
		"runtime_keys": func() []string {
			if step.Runtime == nil {
				return nil
			}
			return step.Runtime.Keys()
		},
		"skip": func() bool {
			step.Skip()
			return true
		},
		"stop_requested": func() bool {
			if ctx != nil && ctx.Err() != nil {
				return true
			}
			return step.StopRequested()
		},
		"fail": func(message string) (any, error) {
			return nil, fmt.Errorf("%w: %s", ErrStepFailed, strings.TrimSpace(message))
		},
		"stop": func() (any, error) {
			return nil, services.ErrStopRequested
		},
		"log": func(message string, args ...any) bool {
			if step.Logger != nil {
				step.Logger.Info(message, args...)
			}
			return true
		},
		"children": func(name string) []string {
			if step.Steps == nil {
				return nil
			}
			return step.Steps.Children(name)
		},
		"enabled": func(name string) bool {
			if step.Steps == nil {
				return false
			}
			enabled, _ := step.Steps.State(name)
			return enabled
		},
	}
}

func firstOrEmpty(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
