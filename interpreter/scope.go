package interpreter

import (
	"github.com/oarkflow/script/ast"
)

type binding struct {
	kind  ast.DeclKind
	value Value
}

type frame map[string]*binding

// scopeStack holds one frame per nesting depth; frame 0 is the top level.
// Depth is passed explicitly by the evaluator so a frame is only visible
// to code running at or above its index.
type scopeStack struct {
	frames []frame
}

func newScopeStack() *scopeStack {
	return &scopeStack{frames: []frame{make(frame)}}
}

// push opens a fresh frame at depth+1, discarding anything that was left
// above depth, and returns the new depth. Pair every push with a deferred
// pop of the returned depth.
func (s *scopeStack) push(depth int) int {
	if depth >= len(s.frames) {
		depth = len(s.frames) - 1
	}
	s.frames = append(s.frames[:depth+1], make(frame))
	return depth + 1
}

// pop drops the frame at depth and everything above it.
func (s *scopeStack) pop(depth int) {
	if depth <= 0 || depth > len(s.frames) {
		return
	}
	clear(s.frames[depth:])
	s.frames = s.frames[:depth]
}

func (s *scopeStack) depth() int {
	return len(s.frames) - 1
}

func (s *scopeStack) frameAt(depth int) frame {
	if depth >= len(s.frames) {
		depth = len(s.frames) - 1
	}
	return s.frames[depth]
}

// lookup walks from depth down to frame 0.
func (s *scopeStack) lookup(depth int, name string) (*binding, bool) {
	if depth >= len(s.frames) {
		depth = len(s.frames) - 1
	}
	for d := depth; d >= 0; d-- {
		if b, ok := s.frames[d][name]; ok {
			return b, true
		}
	}
	return nil, false
}

func (s *scopeStack) declare(depth int, name string, kind ast.DeclKind, value Value) {
	s.frameAt(depth)[name] = &binding{kind: kind, value: value}
}

// withFrame runs fn in a new frame and pops it on every exit path.
func (p *Program) withFrame(depth int, fn func(depth int) (Value, error)) (Value, error) {
	d := p.scopes.push(depth)
	defer p.scopes.pop(d)
	return fn(d)
}
