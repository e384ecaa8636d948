package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"
)

// Temperature is a reading with its unit (for example "C").
type Temperature struct {
	Unit  string          `json:"unit"`
	Value decimal.Decimal `json:"value"`
}

// Weather is the current outside weather for a postcode.
type Weather struct {
	Icon        string      `json:"icon"`
	Description string      `json:"description"`
	Temperature Temperature `json:"temperature"`
}

type weatherResponse struct {
	Weather Weather `json:"weather"`
}

// Weather fetches the current weather for a postcode. The weather
// endpoint is separate from the API base and does not require
// authorization.
func (c *Client) Weather(ctx context.Context, postcode string) (*Weather, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.weatherURL+"?postcode="+url.QueryEscape(postcode), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	var out weatherResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}

	return &out.Weather, nil
}
