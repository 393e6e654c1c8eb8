package backend

import (
	"encoding/json"
	"time"
)

// Visitor statuses as reported by the backend.
const (
	StatusCheckedIn  = "Checked In"
	StatusCheckedOut = "Checked Out"
)

// FeedbackType enumerates the feedback categories the backend accepts.
type FeedbackType string

const (
	FeedbackHelp    FeedbackType = "help"
	FeedbackReport  FeedbackType = "report"
	FeedbackSuggest FeedbackType = "suggest"
)

// Valid reports whether t is one of the known feedback types.
func (t FeedbackType) Valid() bool {
	switch t {
	case FeedbackHelp, FeedbackReport, FeedbackSuggest:
		return true
	}
	return false
}

// Visitor is a check-in record.
type Visitor struct {
	ID            int64  `json:"id,omitempty"`
	Name          string `json:"name"`
	Contact       string `json:"contact"`
	Email         string `json:"email"`
	Company       string `json:"company"`
	Purpose       string `json:"purpose"`
	NDASigned     bool   `json:"nda_signed"`
	Photo         string `json:"photo,omitempty"`
	EntryMethod   string `json:"entry_method"`
	LivenessCheck string `json:"liveness_check"`
	CheckinTime   string `json:"checkin_time"`
	CheckoutTime  string `json:"checkout_time"`
	Status        string `json:"status"`
	Overstay      bool   `json:"overstay"`
}

// UnmarshalJSON tolerates nda_signed stored as 0/1 and null timestamps.
func (v *Visitor) UnmarshalJSON(data []byte) error {
	type alias Visitor
	aux := struct {
		*alias
		NDASigned    flexBool `json:"nda_signed"`
		CheckoutTime *string  `json:"checkout_time"`
		CheckinTime  *string  `json:"checkin_time"`
	}{alias: (*alias)(v)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	v.NDASigned = bool(aux.NDASigned)
	if aux.CheckinTime != nil {
		v.CheckinTime = *aux.CheckinTime
	}
	if aux.CheckoutTime != nil {
		v.CheckoutTime = *aux.CheckoutTime
	}
	return nil
}

// Stats holds aggregate visitor counts.
type Stats struct {
	CheckedIn  int `json:"checked_in"`
	CheckedOut int `json:"checked_out"`
	Total      int `json:"total"`
}

// PreRegistration is a visitor-submitted future visit awaiting approval.
type PreRegistration struct {
	ID        int64  `json:"id,omitempty"`
	Name      string `json:"name"`
	Contact   string `json:"contact"`
	Email     string `json:"email"`
	Company   string `json:"company"`
	Purpose   string `json:"purpose"`
	VisitDate string `json:"visitDate"`
	VisitTime string `json:"visitTime"`
	NDASigned bool   `json:"nda_signed"`
	Status    string `json:"status,omitempty"`
}

// UnmarshalJSON accepts both camelCase and snake_case visit fields.
func (p *PreRegistration) UnmarshalJSON(data []byte) error {
	type alias PreRegistration
	aux := struct {
		*alias
		NDASigned      flexBool `json:"nda_signed"`
		VisitDateSnake string   `json:"visit_date"`
		VisitTimeSnake string   `json:"visit_time"`
	}{alias: (*alias)(p)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	p.NDASigned = bool(aux.NDASigned)
	if p.VisitDate == "" {
		p.VisitDate = aux.VisitDateSnake
	}
	if p.VisitTime == "" {
		p.VisitTime = aux.VisitTimeSnake
	}
	return nil
}

// Feedback is a write-only feedback submission.
type Feedback struct {
	Type    FeedbackType `json:"type"`
	Name    string       `json:"name"`
	Email   string       `json:"email"`
	Message string       `json:"message"`
}

// CheckInRequest is the POST /checkin body.
type CheckInRequest struct {
	Name          string `json:"name"`
	Contact       string `json:"contact"`
	Email         string `json:"email"`
	Company       string `json:"company"`
	Purpose       string `json:"purpose"`
	NDASigned     bool   `json:"nda_signed"`
	EntryMethod   string `json:"entry_method"`
	Photo         string `json:"photo"`
	LivenessCheck string `json:"liveness_check"`
}

// CheckOutRequest is the POST /checkout body.
type CheckOutRequest struct {
	Contact string `json:"contact"`
}

// MessageResponse is the common success envelope.
type MessageResponse struct {
	Message string `json:"message"`
}

// VisitorResponse is returned by check-in and check-out.
type VisitorResponse struct {
	Message string   `json:"message"`
	Visitor *Visitor `json:"visitor,omitempty"`
}

// File is a binary download (QR image, CSV export).
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// ConnectionStatus represents the backend connection status
type ConnectionStatus struct {
	Connected bool      `json:"connected"`
	LastError string    `json:"last_error,omitempty"`
	LastSeen  time.Time `json:"last_seen"`
	Pending   int       `json:"pending"`
}

// flexBool decodes JSON booleans as well as SQLite-style 0/1 integers.
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case "true", "1":
		*b = true
	case "false", "0", "null":
		*b = false
	default:
		var v bool
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*b = flexBool(v)
	}
	return nil
}
