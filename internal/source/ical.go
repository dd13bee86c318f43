package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"respreport/internal/models"

	"github.com/emersion/go-ical"
)

// Properties written by the mailbox exporter next to the standard iTIP ones.
const (
	PropSenderDN  = "X-RESPREPORT-SENDER-DN"
	PropForwarded = "X-RESPREPORT-FORWARDED"
)

var partstatClasses = map[string]string{
	"ACCEPTED":  models.ClassPositive,
	"DECLINED":  models.ClassNegative,
	"TENTATIVE": models.ClassTentative,
}

// ItemsFromCalendar converts every VEVENT of an iTIP message into a raw
// item. Floating times are read in loc.
func ItemsFromCalendar(cal *ical.Calendar, origin string, loc *time.Location) []models.RawResponseItem {
	method, _ := cal.Props.Text(ical.PropMethod)

	events := cal.Events()
	items := make([]models.RawResponseItem, 0, len(events))
	for i, event := range events {
		item := models.RawResponseItem{Origin: origin}
		if len(events) > 1 {
			item.Origin = fmt.Sprintf("%s#%d", origin, i+1)
		}

		item.ConversationTopic, _ = event.Props.Text(ical.PropSummary)
		if start, err := event.DateTimeStart(loc); err == nil {
			item.ReminderTime = start
		}

		attendee := event.Props.Get(ical.PropAttendee)
		if attendee != nil {
			item.SenderName = attendee.Params.Get(ical.ParamCommonName)
			item.SenderEmailAddress = trimMailto(attendee.Value)
		}
		if dn := event.Props.Get(PropSenderDN); dn != nil && dn.Value != "" {
			item.SenderEmailAddress = dn.Value
		}

		item.MessageClass = messageClass(method, event.Component, attendee)
		items = append(items, item)
	}
	return items
}

// messageClass maps the iTIP method and participation status onto the
// Outlook message class the extractor understands.
func messageClass(method string, event *ical.Component, attendee *ical.Prop) string {
	switch strings.ToUpper(method) {
	case "":
		return models.ClassNote
	case "REPLY":
		partstat := ""
		if attendee != nil {
			partstat = strings.ToUpper(attendee.Params.Get(ical.ParamParticipationStatus))
		}
		if class, ok := partstatClasses[partstat]; ok {
			return class
		}
		return "IPM.Schedule.Meeting.Resp." + partstat
	case "REQUEST":
		if fwd := event.Props.Get(PropForwarded); fwd != nil && strings.EqualFold(fwd.Value, "TRUE") {
			return models.ClassForward
		}
		return models.ClassMeetingRequest
	case "CANCEL":
		return "IPM.Schedule.Meeting.Canceled"
	default:
		return "IPM.Schedule.Meeting." + strings.ToUpper(method)
	}
}

func trimMailto(v string) string {
	if len(v) >= 7 && strings.EqualFold(v[:7], "mailto:") {
		return v[7:]
	}
	return v
}

// ICSSource reads iTIP messages from a single .ics file or every .ics file
// in a directory, in name order.
type ICSSource struct {
	Path     string
	Location *time.Location // for floating times; defaults to time.Local
}

// NewICSSource creates a source for path.
func NewICSSource(path string, loc *time.Location) *ICSSource {
	if loc == nil {
		loc = time.Local
	}
	return &ICSSource{Path: path, Location: loc}
}

// Items decodes all calendars found under Path.
func (s *ICSSource) Items(ctx context.Context) ([]models.RawResponseItem, error) {
	files, err := s.files()
	if err != nil {
		return nil, err
	}

	var items []models.RawResponseItem
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fileItems, err := s.readFile(file)
		if err != nil {
			return nil, err
		}
		items = append(items, fileItems...)
	}
	return items, nil
}

func (s *ICSSource) files() ([]string, error) {
	info, err := os.Stat(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat ics source: %w", err)
	}
	if !info.IsDir() {
		return []string{s.Path}, nil
	}

	entries, err := os.ReadDir(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to list ics directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".ics") {
			continue
		}
		files = append(files, filepath.Join(s.Path, e.Name()))
	}
	return files, nil
}

func (s *ICSSource) readFile(path string) ([]models.RawResponseItem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var items []models.RawResponseItem
	dec := ical.NewDecoder(f)
	for n := 1; ; n++ {
		cal, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", path, err)
		}
		origin := path
		if n > 1 {
			origin = fmt.Sprintf("%s[%d]", path, n)
		}
		items = append(items, ItemsFromCalendar(cal, origin, s.Location)...)
	}
	return items, nil
}
