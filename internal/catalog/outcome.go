package catalog

import "github.com/xenking/catalog-engine/internal/domain/catalogerr"

// Outcome is the uniform result shape handed to the request-handling layer:
// a success flag and a human-readable message. Reads carry their payload
// alongside in the operation's typed return value.
type Outcome struct {
	OK      bool
	Message string
}

// genericFailure is shown for infrastructure faults, whose details must not
// leak to users.
const genericFailure = "The operation could not be completed. Please try again later."

// OutcomeFrom maps an operation error to the uniform outcome. Business
// errors surface their message verbatim; faults collapse to a generic
// failure message.
func OutcomeFrom(err error) Outcome {
	if err == nil {
		return Outcome{OK: true}
	}
	if catalogerr.IsBusiness(err) {
		return Outcome{OK: false, Message: err.Error()}
	}
	return Outcome{OK: false, Message: genericFailure}
}
