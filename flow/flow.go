package flow

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/mohitkumar/intake/util"
)

var ErrStepNotFound = errors.New("step not found")
var ErrUnknownWorkflow = errors.New("unknown workflow")

// Flow is a validated, immutable step graph.
type Flow struct {
	def   Definition
	index map[string]int
}

func New(def Definition) (*Flow, error) {
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("workflow %q: %w", def.Name, err)
	}
	index := make(map[string]int, len(def.Steps))
	for i, s := range def.Steps {
		index[s.Id] = i
	}
	return &Flow{def: def, index: index}, nil
}

func (f *Flow) Name() string {
	return f.def.Name
}

func (f *Flow) Definition() Definition {
	return f.def
}

func (f *Flow) First() string {
	return f.def.Steps[0].Id
}

func (f *Flow) Step(id string) (StepDef, bool) {
	i, ok := f.index[id]
	if !ok {
		return StepDef{}, false
	}
	return f.def.Steps[i], true
}

// Successor is the static forward target of a step, ignoring branches.
// Terminal steps have none.
func (f *Flow) Successor(id string) string {
	i, ok := f.index[id]
	if !ok {
		return ""
	}
	s := f.def.Steps[i]
	if s.Terminal {
		return ""
	}
	if s.Next != "" {
		return s.Next
	}
	if i+1 < len(f.def.Steps) {
		return f.def.Steps[i+1].Id
	}
	return ""
}

// Forward resolves the step entered after id is accepted. Branch rules are
// evaluated against facts; other steps use Successor.
func (f *Flow) Forward(id string, facts map[string]any) (string, error) {
	s, ok := f.Step(id)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrStepNotFound, id)
	}
	if s.Branch == nil {
		return f.Successor(id), nil
	}
	value, err := util.Lookup(facts, s.Branch.Expression)
	if err == nil {
		if target, ok := s.Branch.Cases[fmt.Sprintf("%v", value)]; ok {
			return target, nil
		}
	}
	if s.Branch.Default != "" {
		return s.Branch.Default, nil
	}
	return "", fmt.Errorf("step %s: no branch case for %v", id, value)
}

// BackTarget picks where Back leads from id. The step the user actually came
// from wins when it is a listed candidate; otherwise the first visited
// candidate. Unvisited steps are never returned.
func (f *Flow) BackTarget(id string, enteredFrom string, visited func(string) bool) (string, bool) {
	s, ok := f.Step(id)
	if !ok || s.BackLocked {
		return "", false
	}
	if enteredFrom != "" && util.Contains(s.Back, enteredFrom) && visited(enteredFrom) {
		return enteredFrom, true
	}
	for _, candidate := range s.Back {
		if visited(candidate) {
			return candidate, true
		}
	}
	return "", false
}

type Registry struct {
	mu    sync.RWMutex
	flows map[string]*Flow
}

func NewRegistry(flows ...*Flow) *Registry {
	r := &Registry{flows: make(map[string]*Flow)}
	for _, f := range flows {
		r.Register(f)
	}
	return r
}

func (r *Registry) Register(f *Flow) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flows[f.Name()] = f
}

func (r *Registry) Get(name string) (*Flow, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.flows[name]
	return f, ok
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.flows))
	for n := range r.flows {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
