package generate

import "fmt"

// UnsupportedInputError indicates a request whose content cannot be
// translated for the target provider. It is raised before any provider
// call is made.
type UnsupportedInputError struct {
	Reason string
}

func (e *UnsupportedInputError) Error() string {
	return fmt.Sprintf("unsupported input: %s", e.Reason)
}
