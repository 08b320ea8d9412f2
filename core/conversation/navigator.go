package conversation

// resolveTarget computes the destination state for a transition, or nil
// when the transition ends the conversation. Inconsistent targets (an
// explicit state or group unknown to the registry, a current state name
// that resolves to nothing) collapse to nil so the conversation
// terminates safely instead of being left in a broken state.
func resolveTarget(reg *Registry, c *Context, t StateTarget) *State {
	switch t.Target.kind {
	case targetState:
		if !reg.Contains(t.Target.state) {
			return nil
		}
		return t.Target.state
	case targetGroup:
		if t.Target.group == nil {
			return nil
		}
		first := t.Target.group.First()
		if !reg.Contains(first) {
			return nil
		}
		return first
	case targetNext:
		current, ok := reg.Lookup(c.Active)
		if !ok {
			return nil
		}
		return current.Group().Next(current)
	case targetPrevious:
		current, ok := reg.Lookup(c.Active)
		if !ok {
			return nil
		}
		return current.Group().Previous(current)
	case targetExit:
		return nil
	default:
		// Unknown targets never advance.
		return nil
	}
}

// applyTransition moves the context to next and returns the question
// set to render. A nil next ends the conversation: active state and
// scratch data are cleared and the exit set (possibly empty) is
// returned.
func applyTransition(c *Context, next *State, onExit QuestionSet) QuestionSet {
	if next != nil {
		c.Active = next.Name()
		return next.Questions()
	}
	c.reset()
	return onExit
}
