package console

import (
	"fmt"

	"github.com/hyprpranav/Visitor-Management-System/internal/backend"
)

// Section is one of the console's screens.
type Section string

const (
	SectionDashboard   Section = "dashboard"
	SectionCheckIn     Section = "checkin"
	SectionCheckOut    Section = "checkout"
	SectionDetails     Section = "details"
	SectionAdmin       Section = "admin"
	SectionPreRegister Section = "preregister"

	// sectionExit is accepted by ShowSection and returns to the dashboard.
	sectionExit Section = "exit"
)

// ParseSection maps a section name to a Section.
func ParseSection(name string) (Section, error) {
	s := Section(name)
	switch s {
	case sectionExit:
		return SectionDashboard, nil
	case SectionDashboard, SectionCheckIn, SectionCheckOut, SectionDetails, SectionAdmin, SectionPreRegister:
		return s, nil
	}
	return "", fmt.Errorf("unknown section %q", name)
}

// Table identifies a visitor table.
type Table string

const (
	TableVisitors Table = "visitorTable"
	TableAdmin    Table = "adminVisitorTable"
)

const notAvailable = "N/A"

// VisitorRow is a visitor rendered for display. Values are raw text; the
// template layer escapes them.
type VisitorRow struct {
	Name          string `json:"name"`
	Contact       string `json:"contact"`
	Email         string `json:"email"`
	Company       string `json:"company"`
	Purpose       string `json:"purpose"`
	NDA           string `json:"nda"`
	EntryMethod   string `json:"entry_method"`
	LivenessCheck string `json:"liveness_check"`
	CheckinTime   string `json:"checkin_time"`
	CheckoutTime  string `json:"checkout_time"`
	Status        string `json:"status"`
	StatusBadge   string `json:"status_badge"`
	Overstay      string `json:"overstay,omitempty"`
	OverstayBadge string `json:"overstay_badge,omitempty"`
}

func orNA(s string) string {
	if s == "" {
		return notAvailable
	}
	return s
}

func newVisitorRow(v backend.Visitor, admin bool) VisitorRow {
	row := VisitorRow{
		Name:          orNA(v.Name),
		Contact:       orNA(v.Contact),
		Email:         orNA(v.Email),
		Company:       orNA(v.Company),
		Purpose:       orNA(v.Purpose),
		NDA:           "No",
		EntryMethod:   orNA(v.EntryMethod),
		LivenessCheck: orNA(v.LivenessCheck),
		CheckinTime:   orNA(v.CheckinTime),
		CheckoutTime:  orNA(v.CheckoutTime),
		Status:        v.Status,
		StatusBadge:   "warning",
	}
	if v.NDASigned {
		row.NDA = "Yes"
	}
	if v.Status == backend.StatusCheckedIn {
		row.StatusBadge = "success"
	}
	if admin {
		row.Overstay, row.OverstayBadge = "Normal", "success"
		if v.Overstay {
			row.Overstay, row.OverstayBadge = "Overstay", "danger"
		}
	}
	return row
}

// TableView is a rendered visitor table.
type TableView struct {
	ID     Table        `json:"id"`
	Search string       `json:"search"`
	Loaded bool         `json:"loaded"`
	Empty  bool         `json:"empty"`
	Admin  bool         `json:"admin"`
	Rows   []VisitorRow `json:"rows"`
}

// StatsView holds the dashboard counters.
type StatsView struct {
	backend.Stats
	Loaded bool `json:"loaded"`
}

// PendingItem is one pre-registration in the notification feed.
type PendingItem struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Contact   string `json:"contact"`
	Email     string `json:"email"`
	Company   string `json:"company"`
	Purpose   string `json:"purpose"`
	VisitDate string `json:"visit_date"`
	VisitTime string `json:"visit_time"`
}

// PendingView is the admin notification feed and badge.
type PendingView struct {
	Open  bool          `json:"open"`
	Badge int           `json:"badge"`
	Items []PendingItem `json:"items"`
}

// PreRegistrationView is the pre-registration screen state.
type PreRegistrationView struct {
	Form      PreRegistrationForm `json:"form"`
	Submitted bool                `json:"submitted"`
}

// QRView describes the last generated QR code.
type QRView struct {
	Contact      string `json:"contact"`
	ShareLink    string `json:"share_link"`
	WhatsAppLink string `json:"whatsapp_link"`
	Version      int    `json:"version"`
}

// Snapshot is a consistent copy of the console view model.
type Snapshot struct {
	Section         Section             `json:"section"`
	Stats           StatsView           `json:"stats"`
	Visitors        TableView           `json:"visitors"`
	Admin           TableView           `json:"admin"`
	Pending         PendingView         `json:"pending"`
	CheckIn         CheckInForm         `json:"check_in"`
	CheckOut        CheckOutForm        `json:"check_out"`
	PreRegistration PreRegistrationView `json:"preregistration"`
	Feedback        FeedbackForm        `json:"feedback"`
	QR              *QRView             `json:"qr,omitempty"`
	Notifications   []Notification      `json:"notifications"`
}
