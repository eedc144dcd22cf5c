package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/storefront/internal/events"
)

// UserEventsService reacts to identity lifecycle events in the catalog.
type UserEventsService struct {
	dispatcher events.Dispatcher
	catalog    *CatalogService
	logger     *zap.Logger
}

// NewUserEventsService creates the service.
func NewUserEventsService(dispatcher events.Dispatcher, catalog *CatalogService, logger *zap.Logger) *UserEventsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserEventsService{dispatcher: dispatcher, catalog: catalog, logger: logger}
}

// RegisterHandlers subscribes to events.
func (s *UserEventsService) RegisterHandlers() {
	if s.dispatcher == nil {
		return
	}
	s.dispatcher.Subscribe(events.EventUserCreated, s.handleUserCreated)
	s.dispatcher.Subscribe(events.EventUserDeleted, s.handleUserDeleted)
}

func (s *UserEventsService) handleUserCreated(_ context.Context, event events.Event) error {
	var payload events.UserCreatedPayload
	if err := event.Decode(&payload); err != nil {
		return fmt.Errorf("decode %s: %w", event.Type, err)
	}
	s.logger.Info("UserCreated",
		zap.String("event_id", event.ID),
		zap.String("user_id", payload.User.ID),
		zap.String("user_type", string(payload.User.UserType)))
	return nil
}

func (s *UserEventsService) handleUserDeleted(ctx context.Context, event events.Event) error {
	var payload events.UserDeletedPayload
	if err := event.Decode(&payload); err != nil {
		return fmt.Errorf("decode %s: %w", event.Type, err)
	}
	if payload.UserID == "" {
		s.logger.Warn("UserDeleted without user id", zap.String("event_id", event.ID))
		return nil
	}
	_, err := s.catalog.DeleteAllForUser(ctx, payload.UserID)
	return err
}
