package agent

import "fmt"

// LLMError is returned by ChatClient for every failed completion.
type LLMError struct {
	Type    string
	Message string
	Code    int
	Err     error
}

// Error types.
const (
	ErrorTypeNetwork = "network"
	ErrorTypeAPI     = "api"
	ErrorTypeTimeout = "timeout"
	ErrorTypeParse   = "parse"
)

func (e *LLMError) Error() string {
	if e.Code > 0 {
		return fmt.Sprintf("LLM %s error (code %d): %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("LLM %s error: %s", e.Type, e.Message)
}

func (e *LLMError) Unwrap() error {
	return e.Err
}

func NewNetworkError(err error) *LLMError {
	return &LLMError{
		Type:    ErrorTypeNetwork,
		Message: "failed to reach the chat completions API",
		Err:     err,
	}
}

func NewAPIError(code int, message string) *LLMError {
	return &LLMError{
		Type:    ErrorTypeAPI,
		Code:    code,
		Message: message,
	}
}

func NewTimeoutError(err error) *LLMError {
	return &LLMError{
		Type:    ErrorTypeTimeout,
		Message: "request timed out, the model may be under heavy load",
		Err:     err,
	}
}

func NewParseError(err error) *LLMError {
	return &LLMError{
		Type:    ErrorTypeParse,
		Message: "failed to decode chat completion response",
		Err:     err,
	}
}
