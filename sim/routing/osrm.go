package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// OSRMRouter queries an OSRM (Open Source Routing Machine) HTTP endpoint.
type OSRMRouter struct {
	baseURL    string
	httpClient *http.Client
}

type osrmRouteResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Routes  []struct {
		Duration float64 `json:"duration"`
		Distance float64 `json:"distance"`
	} `json:"routes"`
}

// NewOSRMRouter creates a router backed by the OSRM server at baseURL
// (e.g. "http://127.0.0.1:5000").
func NewOSRMRouter(baseURL string) *OSRMRouter {
	return &OSRMRouter{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

func (r *OSRMRouter) Route(ctx context.Context, from, to Point) (Leg, error) {
	// OSRM expects lon,lat order.
	url := fmt.Sprintf("%s/route/v1/driving/%f,%f;%f,%f?overview=false&steps=false",
		r.baseURL, from.Lon, from.Lat, to.Lon, to.Lat)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Leg{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return Leg{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		logrus.Warnf("OSRM HTTP %d: %s", resp.StatusCode, string(body))
		return Leg{}, fmt.Errorf("%w: HTTP %d", ErrUnavailable, resp.StatusCode)
	}

	var parsed osrmRouteResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Leg{}, fmt.Errorf("%w: decode: %v", ErrUnavailable, err)
	}
	if parsed.Code != "Ok" || len(parsed.Routes) == 0 {
		return Leg{}, fmt.Errorf("%w: OSRM code %s: %s", ErrUnavailable, parsed.Code, parsed.Message)
	}

	return Leg{
		DistanceMeters: parsed.Routes[0].Distance,
		DurationSecs:   parsed.Routes[0].Duration,
	}, nil
}
