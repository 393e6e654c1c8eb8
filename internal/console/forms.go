package console

import (
	"regexp"
	"strings"

	"github.com/hyprpranav/Visitor-Management-System/internal/backend"
)

// Operator-facing validation messages.
const (
	MsgContactFormat      = "Contact number must be exactly 10 digits."
	MsgCheckInRequired    = "Please fill in all required fields (Name, Contact, Purpose)"
	MsgContactRequired    = "Please enter a contact number"
	MsgPreRegRequired     = "Please fill in all required fields"
	MsgFeedbackRequired   = "Please enter a feedback message"
	MsgFeedbackTypeFormat = "Please choose a feedback type: help, report or suggest"
)

var contactPattern = regexp.MustCompile(`^\d{10}$`)

// ValidContact reports whether contact is exactly ten digits once trimmed.
func ValidContact(contact string) bool {
	return contactPattern.MatchString(strings.TrimSpace(contact))
}

// ValidationError blocks a submission before any request is sent.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(msg string) error {
	return &ValidationError{Message: msg}
}

// CheckInForm is the check-in draft.
type CheckInForm struct {
	Name        string `json:"name"`
	Contact     string `json:"contact"`
	Email       string `json:"email"`
	Company     string `json:"company"`
	Purpose     string `json:"purpose"`
	NDASigned   bool   `json:"nda_signed"`
	EntryMethod string `json:"entry_method"`
}

func (f CheckInForm) normalized() CheckInForm {
	f.Name = strings.TrimSpace(f.Name)
	f.Contact = strings.TrimSpace(f.Contact)
	f.Email = strings.TrimSpace(f.Email)
	f.Company = strings.TrimSpace(f.Company)
	f.Purpose = strings.TrimSpace(f.Purpose)
	f.EntryMethod = strings.TrimSpace(f.EntryMethod)
	return f
}

// Validate checks the contact format first, then the required fields.
func (f CheckInForm) Validate() error {
	f = f.normalized()
	if !ValidContact(f.Contact) {
		return invalid(MsgContactFormat)
	}
	if f.Name == "" || f.Contact == "" || f.Purpose == "" {
		return invalid(MsgCheckInRequired)
	}
	return nil
}

// Request builds the backend payload.
func (f CheckInForm) Request() backend.CheckInRequest {
	f = f.normalized()
	entry := f.EntryMethod
	if entry == "" {
		entry = "manual"
	}
	return backend.CheckInRequest{
		Name:          f.Name,
		Contact:       f.Contact,
		Email:         f.Email,
		Company:       f.Company,
		Purpose:       f.Purpose,
		NDASigned:     f.NDASigned,
		EntryMethod:   entry,
		Photo:         "placeholder.png",
		LivenessCheck: "N/A",
	}
}

// CheckOutForm is the check-out draft.
type CheckOutForm struct {
	Contact string `json:"contact"`
}

// Validate requires a contact.
func (f CheckOutForm) Validate() error {
	if strings.TrimSpace(f.Contact) == "" {
		return invalid(MsgContactRequired)
	}
	return nil
}

// PreRegistrationForm is the pre-registration draft.
type PreRegistrationForm struct {
	Name      string `json:"name"`
	Contact   string `json:"contact"`
	Email     string `json:"email"`
	Company   string `json:"company"`
	Purpose   string `json:"purpose"`
	VisitDate string `json:"visit_date"`
	VisitTime string `json:"visit_time"`
	NDASigned bool   `json:"nda_signed"`
}

func (f PreRegistrationForm) normalized() PreRegistrationForm {
	f.Name = strings.TrimSpace(f.Name)
	f.Contact = strings.TrimSpace(f.Contact)
	f.Email = strings.TrimSpace(f.Email)
	f.Company = strings.TrimSpace(f.Company)
	f.Purpose = strings.TrimSpace(f.Purpose)
	f.VisitDate = strings.TrimSpace(f.VisitDate)
	f.VisitTime = strings.TrimSpace(f.VisitTime)
	return f
}

// Validate requires name, contact, purpose, visit date and visit time.
func (f PreRegistrationForm) Validate() error {
	f = f.normalized()
	if f.Name == "" || f.Contact == "" || f.Purpose == "" || f.VisitDate == "" || f.VisitTime == "" {
		return invalid(MsgPreRegRequired)
	}
	return nil
}

// Request builds the backend payload.
func (f PreRegistrationForm) Request() backend.PreRegistration {
	f = f.normalized()
	return backend.PreRegistration{
		Name:      f.Name,
		Contact:   f.Contact,
		Email:     f.Email,
		Company:   f.Company,
		Purpose:   f.Purpose,
		VisitDate: f.VisitDate,
		VisitTime: f.VisitTime,
		NDASigned: f.NDASigned,
	}
}

// FeedbackForm is the feedback draft. An empty Type means help.
type FeedbackForm struct {
	Type    string `json:"type"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

func (f FeedbackForm) feedbackType() backend.FeedbackType {
	t := strings.ToLower(strings.TrimSpace(f.Type))
	if t == "" {
		return backend.FeedbackHelp
	}
	return backend.FeedbackType(t)
}

// Validate requires a message and a known type.
func (f FeedbackForm) Validate() error {
	if strings.TrimSpace(f.Message) == "" {
		return invalid(MsgFeedbackRequired)
	}
	if !f.feedbackType().Valid() {
		return invalid(MsgFeedbackTypeFormat)
	}
	return nil
}

// Request builds the backend payload.
func (f FeedbackForm) Request() backend.Feedback {
	return backend.Feedback{
		Type:    f.feedbackType(),
		Name:    strings.TrimSpace(f.Name),
		Email:   strings.TrimSpace(f.Email),
		Message: strings.TrimSpace(f.Message),
	}
}
