package guard

// IdentifierError rejects a statement that names tables or columns the database does not have
type IdentifierError struct {
	Details Result
	Message string
	Hint    string
}

func (e *IdentifierError) Error() string {
	return e.Message
}

// Retryable reports that the caller may fix the statement using Hint and try again
func (e *IdentifierError) Retryable() bool {
	return true
}
