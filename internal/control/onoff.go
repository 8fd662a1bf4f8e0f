package control

// OnOff is the bare bang-bang controller: no timing policy, only the
// optional transition handlers can refuse a change.
type OnOff struct {
	state     State
	handleOn  Handler
	handleOff Handler
}

// NewOnOff creates a bare controller in the given initial state.
// handleOn and handleOff are called before a transition to ON or OFF
// respectively commits; either may be nil. Construction never invokes
// the handlers.
func NewOnOff(initial State, handleOn, handleOff Handler) *OnOff {
	return &OnOff{
		state:     initial,
		handleOn:  handleOn,
		handleOff: handleOff,
	}
}

// State returns the most recently committed state.
func (c *OnOff) State() State {
	return c.state
}

// Set transitions to next. Setting the current state is a no-op success:
// it is not a transition, so no handler runs.
func (c *OnOff) Set(next State) error {
	if next == c.state {
		return nil
	}

	handler := c.handleOff
	if next == StateOn {
		handler = c.handleOn
	}
	if handler != nil {
		if err := handler(); err != nil {
			return err
		}
	}

	c.state = next
	return nil
}

// Bang flips the state.
func (c *OnOff) Bang() error {
	return c.Set(c.State().Opposite())
}

// IsOn reports whether the controller is in the ON state.
func (c *OnOff) IsOn() bool {
	return c.state == StateOn
}

// IsOff reports whether the controller is in the OFF state.
func (c *OnOff) IsOff() bool {
	return c.state == StateOff
}
