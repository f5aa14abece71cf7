package handshake

import "fmt"

// OpenerChannel is a dependent login window's link to its opener. PostMessage delivers to
// the opener; Close closes the login window itself.
type OpenerChannel interface {
	PostMessage(data string, targetOrigin string) error
	Close() error
}

// Instruction tells a landing page what to do on load.
type Instruction struct {
	Callback     bool   `json:"callback"`
	Signal       Signal `json:"signal,omitempty"`
	TargetOrigin string `json:"target_origin,omitempty"`
}

// Responder runs the secondary-context side of the handshake.
type Responder struct {
	origin string
}

// NewResponder restricts signals to pageOrigin.
func NewResponder(pageOrigin string) (*Responder, error) {
	origin, err := OriginOf(pageOrigin)
	if err != nil {
		return nil, fmt.Errorf("page origin: %w", err)
	}
	return &Responder{origin: origin}, nil
}

// Instruction describes the landing for rawURL.
func (r *Responder) Instruction(rawURL string) Instruction {
	if !IsCallback(rawURL) {
		return Instruction{}
	}
	return Instruction{Callback: true, Signal: SignalAuthSuccess, TargetOrigin: r.origin}
}

// Handle posts the success signal to the opener and closes the login window. A window
// without an opener, or a page off the callback landing, is inert and reports false.
func (r *Responder) Handle(rawURL string, opener OpenerChannel) (bool, error) {
	instruction := r.Instruction(rawURL)
	if !instruction.Callback || opener == nil {
		return false, nil
	}
	if err := opener.PostMessage(string(instruction.Signal), instruction.TargetOrigin); err != nil {
		return false, fmt.Errorf("post auth signal: %w", err)
	}
	if err := opener.Close(); err != nil {
		return true, fmt.Errorf("close login window: %w", err)
	}
	return true, nil
}
