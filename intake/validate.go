package intake

import (
	"net/mail"
	"strings"
	"unicode"

	almalead "github.com/phbpx/almalead"
	"github.com/phbpx/almalead/storage"
)

const maxNameLength = 100

func validate(sub *Submission, policy storage.Policy) error {
	sub.FirstName = strings.TrimSpace(sub.FirstName)
	sub.LastName = strings.TrimSpace(sub.LastName)
	sub.Email = strings.TrimSpace(sub.Email)

	if err := validateName("first_name", sub.FirstName); err != nil {
		return err
	}
	if err := validateName("last_name", sub.LastName); err != nil {
		return err
	}
	if err := validateEmail(sub.Email); err != nil {
		return err
	}

	if sub.Resume.Body == nil {
		return &almalead.ValidationError{Field: "resume", Reason: "file is required"}
	}
	if err := policy.Check(sub.Resume.Filename, sub.Resume.ContentType, sub.Resume.Size); err != nil {
		if almalead.IsValidation(err) {
			return err
		}
		return &almalead.ValidationError{Field: "resume", Reason: "rejected", Err: err}
	}
	return nil
}

func validateName(field, name string) error {
	if name == "" {
		return &almalead.ValidationError{Field: field, Reason: "must not be empty"}
	}
	if len(name) > maxNameLength {
		return &almalead.ValidationError{Field: field, Reason: "too long"}
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return &almalead.ValidationError{Field: field, Reason: "contains control characters"}
		}
	}
	return nil
}

// validateEmail checks syntax only. Deliverability is never verified and the
// address need not be unique across leads.
func validateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return &almalead.ValidationError{Field: "email", Reason: "not a valid email address"}
	}

	at := strings.LastIndex(email, "@")
	domain := email[at+1:]
	if !strings.Contains(domain, ".") || strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		return &almalead.ValidationError{Field: "email", Reason: "not a valid email address"}
	}
	return nil
}
