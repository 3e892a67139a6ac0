package decision

import (
	"errors"
	"fmt"
)

var ErrRecipientUnresolved = errors.New("recipient address cannot be resolved from event context")

// InputError aborts evaluation of a single template.
type InputError struct {
	TemplateID string
	Key        string
}

func (e *InputError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("template %s: %v: no recipient key configured", e.TemplateID, ErrRecipientUnresolved)
	}
	return fmt.Sprintf("template %s: %v: key %q", e.TemplateID, ErrRecipientUnresolved, e.Key)
}

func (e *InputError) Unwrap() error {
	return ErrRecipientUnresolved
}

func IsInputError(err error) bool {
	var inErr *InputError
	return errors.As(err, &inErr)
}

// LookupError is a store failure raised while evaluating a filter. It aborts
// the whole event.
type LookupError struct {
	Filter     string
	TemplateID string
	Err        error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("filter %s on template %s: %v", e.Filter, e.TemplateID, e.Err)
}

func (e *LookupError) Unwrap() error {
	return e.Err
}
