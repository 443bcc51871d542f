package cryptox

import "fmt"

// Error reports a structural failure of a cryptographic operation (bad key
// size, corrupt ciphertext, malformed armor). It never carries partial
// plaintext. The pipeline collapses it into an authentication failure at
// its boundary so remote callers cannot distinguish corrupt data from a
// wrong credential.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("cryptox: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func opError(op string, err error) *Error {
	return &Error{Op: op, Err: err}
}
