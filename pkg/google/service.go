package google

import (
	"context"
	"fmt"
	"time"

	"github.com/klokku/slotfinder/pkg/user"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

type CalendarItem struct {
	ID      string
	Summary string
	Primary bool
}

type Service interface {
	// GetCalendar returns ErrUnauthenticated when the current user has not connected Google.
	GetCalendar(ctx context.Context) (*Calendar, error)
	ListCalendars(ctx context.Context) ([]CalendarItem, error)
}

type ServiceImpl struct {
	auth *GoogleAuth
}

func NewService(auth *GoogleAuth) *ServiceImpl {
	return &ServiceImpl{
		auth: auth,
	}
}

func (s *ServiceImpl) GetCalendar(ctx context.Context) (*Calendar, error) {
	currentUser, err := user.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	service, err := s.prepareGoogleService(ctx, currentUser.Id)
	if err != nil {
		return nil, err
	}
	return newGoogleCalendar(service, userLocation(currentUser), 0), nil
}

func (s *ServiceImpl) ListCalendars(ctx context.Context) ([]CalendarItem, error) {
	userId, err := user.CurrentId(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}

	googleService, err := s.prepareGoogleService(ctx, userId)
	if err != nil {
		return nil, err
	}

	var googleCalendars []CalendarItem
	err = googleService.CalendarList.List().Pages(ctx, func(list *calendar.CalendarList) error {
		for _, cal := range list.Items {
			googleCalendars = append(googleCalendars, CalendarItem{
				ID:      cal.Id,
				Summary: cal.Summary,
				Primary: cal.Primary,
			})
		}
		return nil
	})
	if err != nil {
		err := fmt.Errorf("unable to retrieve calendars from Google Calendar: %w", err)
		log.Error(err)
		return nil, err
	}
	return googleCalendars, nil
}

func (s *ServiceImpl) prepareGoogleService(ctx context.Context, userId int) (*calendar.Service, error) {
	client, err := s.auth.getClient(ctx, userId)
	if err != nil {
		err := fmt.Errorf("unable to retrieve Google auth client: %w", err)
		log.Error(err)
		return nil, err
	}
	if client == nil {
		log.Debug("user is unauthenticated, authentication is required")
		return nil, ErrUnauthenticated
	}
	service, err := calendar.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		err := fmt.Errorf("unable to retrieve Calendar client: %w", err)
		log.Error(err)
		return nil, err
	}

	return service, nil
}

func userLocation(u user.User) *time.Location {
	if u.Timezone == "" {
		return time.UTC
	}
	location, err := time.LoadLocation(u.Timezone)
	if err != nil {
		log.Warnf("could not load location for timezone %s, falling back to UTC: %v", u.Timezone, err)
		return time.UTC
	}
	return location
}
