package conversation

// Directive is a typed signal returned by application handler code
// instructing the engine to update data and/or transition state.
// Handlers return a flat ordered list; the engine honors the first
// directive of each kind and ignores later duplicates.
type Directive interface {
	directive()
}

// DataUpdate mutates the conversation scratch map. Set overwrites keys
// unconditionally, Extend appends to list values (initializing absent
// keys to an empty list), Delete removes keys and ignores absent ones.
type DataUpdate struct {
	Set    map[string]any
	Extend map[string]any
	Delete []string
}

// targetKind enumerates the navigation modes of a StateTarget.
type targetKind int

const (
	targetNone targetKind = iota
	targetNext
	targetPrevious
	targetExit
	targetState
	targetGroup
)

// Target names the destination of a state transition. Build values with
// Next, Previous, Exit, ToState or ToGroup.
type Target struct {
	kind  targetKind
	state *State
	group *Group
}

// Next targets the state following the current one in its group.
func Next() Target { return Target{kind: targetNext} }

// Previous targets the state preceding the current one.
func Previous() Target { return Target{kind: targetPrevious} }

// Exit explicitly terminates the conversation.
func Exit() Target { return Target{kind: targetExit} }

// ToState targets an explicit state.
func ToState(st *State) Target { return Target{kind: targetState, state: st} }

// ToGroup targets the first state of an explicit group, starting that
// group's flow.
func ToGroup(g *Group) Target { return Target{kind: targetGroup, group: g} }

// StateTarget directs the engine to transition the conversation. OnExit
// is rendered instead of a state's questions when the transition ends
// the conversation.
type StateTarget struct {
	Target Target
	OnExit QuestionSet
}

// ExceptionSignal short-circuits normal advancement: its question (if
// any) is rendered and the active state is left untouched. Present
// alongside a StateTarget, the signal wins.
type ExceptionSignal struct {
	Question QuestionSet
}

func (DataUpdate) directive()      {}
func (StateTarget) directive()     {}
func (ExceptionSignal) directive() {}

// Switch is shorthand for a StateTarget without an exit question.
func Switch(t Target) StateTarget {
	return StateTarget{Target: t}
}

// collect picks the first directive of each kind from the handler
// result, in traversal order. Later duplicates are silently ignored.
func collect(results []Directive) (update *DataUpdate, target *StateTarget, signal *ExceptionSignal) {
	for _, d := range results {
		switch v := d.(type) {
		case DataUpdate:
			if update == nil {
				u := v
				update = &u
			}
		case StateTarget:
			if target == nil {
				t := v
				target = &t
			}
		case ExceptionSignal:
			if signal == nil {
				s := v
				signal = &s
			}
		}
	}
	return update, target, signal
}
