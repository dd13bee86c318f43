// Package caldav reads invitation responses from a CalDAV collection.
package caldav

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"respreport/internal/models"
	"respreport/internal/source"

	"github.com/emersion/go-webdav/caldav"
)

// customTransport handles adding Basic Auth and custom headers to requests.
type customTransport struct {
	Username  string
	Password  string
	Transport http.RoundTripper
}

// RoundTrip adds required headers and authentication to each request.
func (t *customTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.SetBasicAuth(t.Username, t.Password)
	req.Header.Set("User-Agent", "respreport/1.0")
	return t.Transport.RoundTrip(req)
}

// Source queries every calendar object of one named collection, such as a
// scheduling inbox, and converts them to raw items.
type Source struct {
	client       *caldav.Client
	logger       *slog.Logger
	endpoint     string
	calendarName string
	location     *time.Location
}

var _ source.Source = (*Source)(nil)

// NewSource creates a CalDAV source. The collection is resolved on every
// Items call so a renamed collection is reported instead of silently reused.
func NewSource(logger *slog.Logger, endpoint, username, password, calendarName string, loc *time.Location) (*Source, error) {
	transport := &customTransport{
		Username:  username,
		Password:  password,
		Transport: http.DefaultTransport,
	}
	httpClient := &http.Client{Transport: transport, Timeout: 60 * time.Second}

	client, err := caldav.NewClient(httpClient, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create caldav client: %w", err)
	}
	if loc == nil {
		loc = time.Local
	}

	return &Source{
		client:       client,
		logger:       logger,
		endpoint:     endpoint,
		calendarName: calendarName,
		location:     loc,
	}, nil
}

// Items fetches all objects of the collection.
func (s *Source) Items(ctx context.Context) ([]models.RawResponseItem, error) {
	s.logger.Info("Finding CalDAV collection", "calendarName", s.calendarName)
	calendarPath, err := s.findCalendar(ctx, s.calendarName)
	if err != nil {
		return nil, fmt.Errorf("could not find calendar '%s': %w", s.calendarName, err)
	}

	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name:     "VCALENDAR",
			AllProps: true,
			AllComps: true,
		},
		CompFilter: caldav.CompFilter{
			Name:  "VCALENDAR",
			Comps: []caldav.CompFilter{{Name: "VEVENT"}},
		},
	}
	objects, err := s.client.QueryCalendar(ctx, calendarPath, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query calendar objects: %w", err)
	}

	items := itemsFromObjects(objects, s.location)
	s.logger.Info("Fetched CalDAV objects", "objects", len(objects), "items", len(items), "path", calendarPath)
	return items, nil
}

func itemsFromObjects(objects []caldav.CalendarObject, loc *time.Location) []models.RawResponseItem {
	var items []models.RawResponseItem
	for _, obj := range objects {
		if obj.Data == nil {
			continue
		}
		items = append(items, source.ItemsFromCalendar(obj.Data, obj.Path, loc)...)
	}
	return items
}

// findCalendar discovers the user's calendars and returns the path for the one with the matching name.
func (s *Source) findCalendar(ctx context.Context, name string) (string, error) {
	principalPath, err := s.client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to find principal path: %w", err)
	}

	homeSetPath, err := s.client.FindCalendarHomeSet(ctx, principalPath)
	if err != nil {
		return "", fmt.Errorf("failed to find calendar home set: %w", err)
	}

	calendars, err := s.client.FindCalendars(ctx, homeSetPath)
	if err != nil {
		return "", fmt.Errorf("failed to find calendars: %w", err)
	}

	for _, cal := range calendars {
		if cal.Name == name {
			return cal.Path, nil
		}
	}

	return "", fmt.Errorf("no calendar found with name '%s' at %s", name, s.endpoint)
}
