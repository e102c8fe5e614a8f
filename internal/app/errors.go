package app

import "fmt"

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

// notFound deliberately covers "absent" and "not yours" with one
// answer, so probing ids reveals nothing.
func notFound() *DomainError {
	return domainError(404, "NOT_FOUND", "Not found", nil)
}

func permissionDenied() *DomainError {
	return domainError(403, "PERMISSION_DENIED", "One or more ids in the batch are not yours", nil)
}

func invalidCredential() *DomainError {
	return domainError(401, "INVALID_CREDENTIAL", "Credential could not be verified", nil)
}

func misconfigured(message string) *DomainError {
	return domainError(500, "MISCONFIGURED", message, nil)
}

func validationError(message string) *DomainError {
	return domainError(422, "VALIDATION_ERROR", message, nil)
}
