package conversation

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyGroup is returned when a group is declared without states.
	ErrEmptyGroup = errors.New("conversation: group has no states")
	// ErrDuplicateState is returned when a state name is registered twice.
	ErrDuplicateState = errors.New("conversation: duplicate state name")
)

// State is a named point in a conversation flow carrying the questions
// to present when entered. States are created through NewGroup and are
// immutable afterwards.
type State struct {
	name      string
	questions QuestionSet
	group     *Group
}

// Name returns the process-wide unique state name.
func (s *State) Name() string { return s.name }

// Questions returns the question set presented when the state is entered.
func (s *State) Questions() QuestionSet { return s.questions }

// Group returns the group owning this state.
func (s *State) Group() *Group { return s.group }

// StateDef declares one state of a group: its unique name and the
// questions asked when the state becomes active.
type StateDef struct {
	Name      string
	Questions QuestionSet
}

// Group is an immutable ordered sequence of states defining one
// conversation flow. Construct it once at startup with NewGroup.
type Group struct {
	name   string
	states []*State
	index  map[string]int
}

// NewGroup validates the declared states and builds a group. Insertion
// order is flow order.
func NewGroup(name string, defs ...StateDef) (*Group, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyGroup, name)
	}
	g := &Group{
		name:   name,
		states: make([]*State, 0, len(defs)),
		index:  make(map[string]int, len(defs)),
	}
	for i, def := range defs {
		if def.Name == "" {
			return nil, fmt.Errorf("conversation: group %s: state %d has empty name", name, i)
		}
		if len(def.Questions) == 0 {
			return nil, fmt.Errorf("conversation: group %s: state %s has no questions", name, def.Name)
		}
		if _, exists := g.index[def.Name]; exists {
			return nil, fmt.Errorf("%w: %s in group %s", ErrDuplicateState, def.Name, name)
		}
		st := &State{name: def.Name, questions: def.Questions, group: g}
		g.index[def.Name] = i
		g.states = append(g.states, st)
	}
	return g, nil
}

// MustGroup is NewGroup that panics on configuration errors. Intended
// for static flow declarations at process start.
func MustGroup(name string, defs ...StateDef) *Group {
	g, err := NewGroup(name, defs...)
	if err != nil {
		panic(err)
	}
	return g
}

// Name returns the group name.
func (g *Group) Name() string { return g.name }

// States returns the ordered states. Callers must not mutate the slice.
func (g *Group) States() []*State { return g.states }

// First returns the first state of the group.
func (g *Group) First() *State {
	if len(g.states) == 0 {
		return nil
	}
	return g.states[0]
}

// Last returns the last state of the group.
func (g *Group) Last() *State {
	if len(g.states) == 0 {
		return nil
	}
	return g.states[len(g.states)-1]
}

// Next returns the state following current in flow order. A current
// state that does not belong to the group falls back to the first state
// (a lost conversation restarts). Nil is returned past the last state,
// signalling completion.
func (g *Group) Next(current *State) *State {
	pos, ok := g.position(current)
	if !ok {
		return g.First()
	}
	if pos+1 >= len(g.states) {
		return nil
	}
	return g.states[pos+1]
}

// Previous returns the state preceding current. Unlike Next there is no
// fallback: a first or unknown current state yields nil. Kept
// deliberately asymmetric for compatibility with existing flows.
func (g *Group) Previous(current *State) *State {
	pos, ok := g.position(current)
	if !ok || pos == 0 {
		return nil
	}
	return g.states[pos-1]
}

func (g *Group) position(current *State) (int, bool) {
	if current == nil {
		return 0, false
	}
	pos, ok := g.index[current.name]
	if !ok || g.states[pos] != current {
		return 0, false
	}
	return pos, true
}

// Registry maps state names to their state and group. It is built once
// at startup from all declared groups and is read-only afterwards.
type Registry struct {
	states map[string]*State
}

// BuildRegistry indexes the given groups by state name. A name that is
// reused across groups is a configuration error.
func BuildRegistry(groups ...*Group) (*Registry, error) {
	r := &Registry{states: make(map[string]*State)}
	for _, g := range groups {
		if g == nil {
			continue
		}
		if len(g.states) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrEmptyGroup, g.name)
		}
		for _, st := range g.states {
			if existing, ok := r.states[st.name]; ok {
				return nil, fmt.Errorf("%w: %s declared in groups %s and %s",
					ErrDuplicateState, st.name, existing.group.name, g.name)
			}
			r.states[st.name] = st
		}
	}
	return r, nil
}

// Lookup resolves a state by name. The second return value is false
// when the name does not correspond to any registered state, meaning no
// conversation is in progress for that name.
func (r *Registry) Lookup(name string) (*State, bool) {
	if r == nil || name == "" {
		return nil, false
	}
	st, ok := r.states[name]
	return st, ok
}

// Contains reports whether the exact state instance is registered.
func (r *Registry) Contains(st *State) bool {
	if r == nil || st == nil {
		return false
	}
	registered, ok := r.states[st.name]
	return ok && registered == st
}
