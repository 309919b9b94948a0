package auth

// ValidationError represents a specific type of authentication failure.
type ValidationError struct {
	Type    ValidationErrorType
	Message string
	Err     error
}

// ValidationErrorType categorizes authentication failures.
type ValidationErrorType int

const (
	// ErrTypeNoCredentials indicates no username/password was provided.
	ErrTypeNoCredentials ValidationErrorType = iota
	// ErrTypeInvalidCredentials indicates the service rejected the login.
	ErrTypeInvalidCredentials
	// ErrTypeNetwork indicates a connectivity or server-side issue.
	ErrTypeNetwork
	// ErrTypeUnknown indicates an unknown error occurred.
	ErrTypeUnknown
)

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
