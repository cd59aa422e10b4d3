// Package calendar lists upcoming events from the Google Calendar API on
// behalf of the signed-in user.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgellow/gsession/internal/log"
	"github.com/dgellow/gsession/internal/metrics"
	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const requestTimeout = 15 * time.Second

// Event is one upcoming calendar entry
type Event struct {
	// Start is the RFC3339 start time, or the date for all-day events
	Start   string
	Summary string
}

// Lister fetches the next events of the user's calendar
type Lister interface {
	ListUpcoming(ctx context.Context, ts oauth2.TokenSource, now time.Time) ([]Event, error)
}

// APIError is returned when the Calendar API answered with an error status
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("calendar API error %d: %s", e.Code, e.Message)
}

// GoogleLister implements Lister against the Calendar v3 API
type GoogleLister struct {
	calendarID string
	maxResults int64
	endpoint   string
}

var _ Lister = (*GoogleLister)(nil)

// Option configures a GoogleLister
type Option func(*GoogleLister)

// WithEndpoint points the client at a different API base URL
func WithEndpoint(endpoint string) Option {
	return func(l *GoogleLister) {
		l.endpoint = endpoint
	}
}

// NewGoogleLister lists up to maxResults events from calendarID
func NewGoogleLister(calendarID string, maxResults int, opts ...Option) *GoogleLister {
	l := &GoogleLister{
		calendarID: calendarID,
		maxResults: int64(maxResults),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ListUpcoming returns single events starting at or after now, ordered by
// start time.
func (l *GoogleLister) ListUpcoming(ctx context.Context, ts oauth2.TokenSource, now time.Time) ([]Event, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	clientOpts := []option.ClientOption{option.WithHTTPClient(oauth2.NewClient(ctx, ts))}
	if l.endpoint != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(l.endpoint))
	}

	srv, err := gcal.NewService(ctx, clientOpts...)
	if err != nil {
		metrics.CalendarRequests.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, fmt.Errorf("creating calendar client: %w", err)
	}

	resp, err := srv.Events.List(l.calendarID).
		Context(ctx).
		TimeMin(now.Format(time.RFC3339)).
		MaxResults(l.maxResults).
		SingleEvents(true).
		OrderBy("startTime").
		Do()
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) {
			metrics.CalendarRequests.WithLabelValues(metrics.OutcomeAPIError).Inc()
			log.LogWarnWithFields("calendar", "Calendar API returned an error", map[string]any{
				"code":    gerr.Code,
				"message": gerr.Message,
			})
			return nil, &APIError{Code: gerr.Code, Message: gerr.Message}
		}
		metrics.CalendarRequests.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, fmt.Errorf("listing events: %w", err)
	}

	events := make([]Event, 0, len(resp.Items))
	for _, item := range resp.Items {
		events = append(events, Event{Start: eventStart(item), Summary: item.Summary})
	}

	metrics.CalendarRequests.WithLabelValues(metrics.OutcomeSuccess).Inc()
	return events, nil
}

// eventStart prefers the timed start and falls back to the all-day date
func eventStart(item *gcal.Event) string {
	if item.Start == nil {
		return ""
	}
	if item.Start.DateTime != "" {
		return item.Start.DateTime
	}
	return item.Start.Date
}
