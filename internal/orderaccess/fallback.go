package orderaccess

import (
	"context"
	"fmt"

	"fabline/internal/api"
	"fabline/internal/apiclient"
)

// Session represents an order access handle and its cleanup function.
type Session struct {
	Access Access
	close  func() error
}

// Close releases resources associated with the session.
func (s Session) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// OpenWithFallback tries HTTP-backed access first, then falls back to a
// direct store-backed service. The daemon owns the database when it runs;
// direct access is for when it does not.
func OpenWithFallback(
	ctx context.Context,
	dial func() *apiclient.Client,
	openService func() (*api.WorkflowService, func() error, error),
) (Session, error) {
	if dial != nil {
		if client := dial(); client != nil && client.Ping(ctx) {
			return Session{Access: NewHTTPAccess(client)}, nil
		}
	}

	if openService == nil {
		return Session{}, fmt.Errorf("open order store: no store opener configured")
	}
	service, closeFn, err := openService()
	if err != nil {
		return Session{}, fmt.Errorf("open order store: %w", err)
	}
	return Session{
		Access: NewServiceAccess(service),
		close:  closeFn,
	}, nil
}
