package adapters

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"smartlib/internal/gateway"
	"smartlib/internal/loan/models"
	id "smartlib/pkg/domain"
	"smartlib/pkg/platform/sentinel"
)

// IdentityClient talks to the service that owns users.
type IdentityClient struct {
	gw *gateway.Client
}

func NewIdentityClient(gw *gateway.Client) *IdentityClient {
	return &IdentityClient{gw: gw}
}

type userPayload struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// GetUser checks that a user exists and returns its summary.
func (c *IdentityClient) GetUser(ctx context.Context, userID id.UserID) (*models.UserSummary, error) {
	resp, err := c.gw.Do(ctx, gateway.Request{
		Operation:  "get_user",
		Method:     http.MethodGet,
		Path:       "/users/" + url.PathEscape(userID.String()),
		Idempotent: true,
	})
	if err != nil {
		return nil, translate("get user", err)
	}

	var payload userPayload
	if err := resp.DecodeJSON(&payload); err != nil {
		return nil, fmt.Errorf("get user: %w: %w", sentinel.ErrUnavailable, err)
	}
	return &models.UserSummary{ID: userID, Name: payload.Name, Email: payload.Email}, nil
}
