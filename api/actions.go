package api

import (
	"context"
	"log/slog"
	"net/http"
)

// QuickAction is a user-defined automation that can be triggered on
// demand.
type QuickAction struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// Actions lists the account's quick actions.
func (c *Client) Actions(ctx context.Context) ([]QuickAction, error) {
	resp, err := c.doAuthRequest(ctx, http.MethodGet, "/actions", nil)
	if err != nil {
		return nil, err
	}

	var actions []QuickAction
	if err := decodeJSON(resp, &actions, http.StatusOK); err != nil {
		return nil, err
	}

	return actions, nil
}

// ActivateAction triggers the quick action with the given id.
func (c *Client) ActivateAction(ctx context.Context, id string) error {
	resp, err := c.doAuthRequest(ctx, http.MethodPost, "/actions/"+id+"/quick-action", nil)
	if err != nil {
		return err
	}

	if err := decodeJSON(resp, nil, http.StatusOK); err != nil {
		return err
	}

	c.logger.Debug("quick action activated", slog.String("action_id", id))
	return nil
}
