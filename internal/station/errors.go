package station

import "fmt"

// FatalDataError aborts a session before any phase runs.
type FatalDataError struct {
	CaseKey string
	Message string
	Err     error
}

func (e *FatalDataError) Error() string {
	if e.CaseKey != "" {
		return fmt.Sprintf("case %q: %s", e.CaseKey, e.Message)
	}
	return e.Message
}

func (e *FatalDataError) Unwrap() error {
	return e.Err
}

// TransientIOError is an input or speech failure. The engine logs it and
// carries on as if the candidate were silent.
type TransientIOError struct {
	Operation string
	Err       error
}

func (e *TransientIOError) Error() string {
	return fmt.Sprintf("%s: %v", e.Operation, e.Err)
}

func (e *TransientIOError) Unwrap() error {
	return e.Err
}

// TransientProviderError is a reply or narrative generation failure. It is
// replaced with canned text.
type TransientProviderError struct {
	Provider string
	Err      error
}

func (e *TransientProviderError) Error() string {
	return fmt.Sprintf("%s provider: %v", e.Provider, e.Err)
}

func (e *TransientProviderError) Unwrap() error {
	return e.Err
}
