package models

import "time"

// Outlook message classes seen in a training mailbox.
const (
	ClassNote           = "IPM.Note"
	ClassPositive       = "IPM.Schedule.Meeting.Resp.Pos"
	ClassNegative       = "IPM.Schedule.Meeting.Resp.Neg"
	ClassTentative      = "IPM.Schedule.Meeting.Resp.Tent"
	ClassForward        = "IPM.Schedule.Meeting.Notification.Forward"
	ClassMeetingRequest = "IPM.Schedule.Meeting.Request"
)

// RawResponseItem is one mailbox item as delivered by an item source.
// Field names follow the Outlook MeetingItem properties they are read from.
type RawResponseItem struct {
	ReminderTime       time.Time // Date and time of the training event
	ConversationTopic  string    // Subject, usually prefixed with "WG: "
	MessageClass       string    // Item kind, see the Class* constants
	SenderName         string    // "LastName, FirstName"
	SenderEmailAddress string    // Exchange legacy DN, e.g. "/o=Company/ou=.../cn=Recipients/cn=xy000ab12"
	Origin             string    // Where the item was read from (file:line, .ics path, CalDAV href)
}

// ResponseKind is the answer a participant gave to an invitation.
type ResponseKind string

const (
	ResponsePositive  ResponseKind = "positive"
	ResponseNegative  ResponseKind = "negative"
	ResponseTentative ResponseKind = "tentative"
)

var responseLabels = map[ResponseKind]string{
	ResponsePositive:  "Zusage",
	ResponseNegative:  "Absage",
	ResponseTentative: "Vorbehalt",
}

// Label returns the value written to the report's Antwort column.
func (k ResponseKind) Label() string {
	if label, ok := responseLabels[k]; ok {
		return label
	}
	return string(k)
}

// AttendanceRecord is the normalized form of a single invitation response.
type AttendanceRecord struct {
	TrainingName  string
	TrainingDate  string // DD.MM.YYYY
	FirstName     string
	LastName      string
	ParticipantID string
	Response      ResponseKind
}
