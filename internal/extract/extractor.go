// Package extract turns raw mailbox items into attendance records.
package extract

import (
	"strings"
	"time"

	"respreport/internal/models"
)

const dateLayout = "02.01.2006"

// AddressPattern locates the participant identifier inside the common name
// that follows the second "cn=" segment of an Exchange legacy DN.
// The defaults match one directory schema; they are not universal.
type AddressPattern struct {
	Marker string // literal the identifier starts with
	Width  int    // identifier length in bytes
}

// Config controls extraction. Use DefaultConfig and adjust.
type Config struct {
	TopicPrefix     string
	IgnoredClasses  []string
	ResponseClasses map[string]models.ResponseKind
	Address         AddressPattern
	Location        *time.Location // converts ReminderTime before formatting; nil keeps it as is
}

// DefaultConfig returns the settings for an Outlook training mailbox.
func DefaultConfig() Config {
	return Config{
		TopicPrefix:    "WG: ",
		IgnoredClasses: []string{models.ClassNote, models.ClassForward},
		ResponseClasses: map[string]models.ResponseKind{
			models.ClassPositive:  models.ResponsePositive,
			models.ClassNegative:  models.ResponseNegative,
			models.ClassTentative: models.ResponseTentative,
		},
		Address: AddressPattern{Marker: "xy000", Width: 9},
	}
}

// Extractor applies a Config to items. It holds no mutable state.
type Extractor struct {
	cfg     Config
	ignored map[string]struct{}
	marker  string
}

// New creates an Extractor. Unset class tables and Address fields fall
// back to DefaultConfig.
func New(cfg Config) *Extractor {
	def := DefaultConfig()
	if cfg.IgnoredClasses == nil {
		cfg.IgnoredClasses = def.IgnoredClasses
	}
	if cfg.Address.Marker == "" {
		cfg.Address.Marker = def.Address.Marker
	}
	if cfg.Address.Width <= 0 {
		cfg.Address.Width = def.Address.Width
	}
	if cfg.ResponseClasses == nil {
		cfg.ResponseClasses = def.ResponseClasses
	}

	ignored := make(map[string]struct{}, len(cfg.IgnoredClasses))
	for _, c := range cfg.IgnoredClasses {
		ignored[c] = struct{}{}
	}
	return &Extractor{
		cfg:     cfg,
		ignored: ignored,
		marker:  strings.ToLower(cfg.Address.Marker),
	}
}

// IsResponse reports whether the item should be treated as an invitation response.
func (x *Extractor) IsResponse(item models.RawResponseItem) bool {
	_, skip := x.ignored[item.MessageClass]
	return !skip
}

// Extract derives an AttendanceRecord from item. It returns ErrNotAResponse
// for filtered message classes and an *ExtractionError when the item is
// malformed. No partially filled record is ever returned.
func (x *Extractor) Extract(item models.RawResponseItem) (models.AttendanceRecord, error) {
	if !x.IsResponse(item) {
		return models.AttendanceRecord{}, ErrNotAResponse
	}

	kind, ok := x.cfg.ResponseClasses[item.MessageClass]
	if !ok {
		return models.AttendanceRecord{}, x.fail(item, ErrUnrecognizedMessageClass, item.MessageClass)
	}

	training := strings.TrimPrefix(item.ConversationTopic, x.cfg.TopicPrefix)
	if strings.TrimSpace(training) == "" {
		return models.AttendanceRecord{}, x.fail(item, ErrEmptyTopic, item.ConversationTopic)
	}

	if item.ReminderTime.IsZero() {
		return models.AttendanceRecord{}, x.fail(item, ErrMissingReminderTime, "")
	}
	when := item.ReminderTime
	if x.cfg.Location != nil {
		when = when.In(x.cfg.Location)
	}

	first, last, ok := splitSenderName(item.SenderName)
	if !ok {
		return models.AttendanceRecord{}, x.fail(item, ErrMalformedSenderName, item.SenderName)
	}

	id, err := x.participantID(item.SenderEmailAddress)
	if err != nil {
		return models.AttendanceRecord{}, x.fail(item, err, item.SenderEmailAddress)
	}

	return models.AttendanceRecord{
		TrainingName:  training,
		TrainingDate:  when.Format(dateLayout),
		FirstName:     first,
		LastName:      last,
		ParticipantID: id,
		Response:      kind,
	}, nil
}

// splitSenderName splits "LastName, FirstName" on the first comma.
func splitSenderName(name string) (first, last string, ok bool) {
	before, after, found := strings.Cut(name, ",")
	if !found {
		return "", "", false
	}
	last = strings.TrimSpace(before)
	first = strings.TrimSpace(after)
	if first == "" || last == "" {
		return "", "", false
	}
	return first, last, true
}

// participantID reads the identifier from the third "cn=" piece of the
// lower-cased address, e.g. "/o=c/ou=x/cn=recipients/cn=xy000ab12" -> "xy000ab12".
func (x *Extractor) participantID(address string) (string, error) {
	pieces := strings.Split(strings.ToLower(address), "cn=")
	if len(pieces) < 3 {
		return "", ErrMalformedAddress
	}
	commonName := pieces[2]

	pos := strings.Index(commonName, x.marker)
	if pos < 0 {
		return "", ErrIDMarkerNotFound
	}
	end := pos + x.cfg.Address.Width
	if end > len(commonName) {
		return "", ErrTruncatedID
	}
	return commonName[pos:end], nil
}

func (x *Extractor) fail(item models.RawResponseItem, reason error, detail string) error {
	return &ExtractionError{Reason: reason, Origin: item.Origin, Detail: detail}
}
