package compiler

import (
	"context"
	"fmt"
)

// RunFunc is tapped into BeforeRun and WatchRun.
type RunFunc func(ctx context.Context, c *Compiler) error

// CompilationFunc is tapped into ThisCompilation.
type CompilationFunc func(comp *Compilation)

// EmitFunc is tapped into AfterEmit.
type EmitFunc func(ctx context.Context, comp *Compilation) error

// AlterFunc rewrites one HTML document.
type AlterFunc func(doc HTMLDoc) (HTMLDoc, error)

type tap[F any] struct {
	name string
	fn   F
}

// RunHook runs its taps in registration order and stops at the first error.
type RunHook struct{ taps []tap[RunFunc] }

// Tap registers fn under name.
func (h *RunHook) Tap(name string, fn RunFunc) {
	h.taps = append(h.taps, tap[RunFunc]{name, fn})
}

func (h *RunHook) call(ctx context.Context, c *Compiler) error {
	for _, t := range h.taps {
		if err := t.fn(ctx, c); err != nil {
			return fmt.Errorf("%s: %w", t.name, err)
		}
	}
	return nil
}

// CompilationHook notifies taps that a compilation was created.
type CompilationHook struct{ taps []tap[CompilationFunc] }

// Tap registers fn under name.
func (h *CompilationHook) Tap(name string, fn CompilationFunc) {
	h.taps = append(h.taps, tap[CompilationFunc]{name, fn})
}

func (h *CompilationHook) call(comp *Compilation) {
	for _, t := range h.taps {
		t.fn(comp)
	}
}

// EmitHook runs its taps after assets are written.
type EmitHook struct{ taps []tap[EmitFunc] }

// Tap registers fn under name.
func (h *EmitHook) Tap(name string, fn EmitFunc) {
	h.taps = append(h.taps, tap[EmitFunc]{name, fn})
}

func (h *EmitHook) call(ctx context.Context, comp *Compilation) error {
	for _, t := range h.taps {
		if err := t.fn(ctx, comp); err != nil {
			return fmt.Errorf("%s: %w", t.name, err)
		}
	}
	return nil
}

// Hooks are the lifecycle points plugins attach to.
type Hooks struct {
	// BeforeRun fires once before a single build.
	BeforeRun RunHook
	// WatchRun fires before every build in watch mode, including the first.
	WatchRun RunHook
	// ThisCompilation fires when a compilation has collected its assets.
	ThisCompilation CompilationHook
	// AfterEmit fires once assets are on disk.
	AfterEmit EmitHook
}

// HTMLDoc is an HTML asset passing through the alter taps.
type HTMLDoc struct {
	Name string
	HTML []byte
}

// HTMLHooks exposes the HTML generation stage. It exists only when the
// compiler runs with HTML processing enabled.
type HTMLHooks struct{ alter []tap[AlterFunc] }

// TapAlter registers fn to rewrite every HTML asset before it is emitted.
func (h *HTMLHooks) TapAlter(name string, fn AlterFunc) {
	h.alter = append(h.alter, tap[AlterFunc]{name, fn})
}
