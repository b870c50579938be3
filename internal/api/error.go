package api

var _ error = (*APIError)(nil)

// APIError carries the status code and the message safe to show to a client
// alongside the internal cause.
type APIError struct {
	Err       error
	ClientMsg string
	Code      int
}

func (e *APIError) Error() string {
	return e.Err.Error()
}

func (e *APIError) Unwrap() error {
	return e.Err
}
