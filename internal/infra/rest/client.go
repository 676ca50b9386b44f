// Package rest implements the marketplace REST client with a three-tier
// degradation ladder: live backend behind a circuit breaker, locally cached
// snapshots, and generated placeholder data as the floor. Callers always get
// an answer; the provenance flags disclose which tier produced it.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"
	"github.com/sony/gobreaker"

	"mandi/config"
	"mandi/internal/domain/entity"
	"mandi/internal/domain/repository"
	"mandi/internal/domain/service"
)

// Client implements service.MarketplaceClient.
type Client struct {
	cfg     *config.APIConfig
	session *config.SessionConfig
	logger  *slog.Logger
	httpc   *http.Client
	store   repository.LocationStore
	breaker *gobreaker.CircuitBreaker
	now     func() time.Time
}

// NewClient creates the marketplace client. The store backs the offline
// cache tier; a nil store disables it and failures fall straight through to
// placeholder data.
func NewClient(cfg *config.APIConfig, session *config.SessionConfig, logger *slog.Logger, store repository.LocationStore) *Client {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "marketplace-api",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		// A 404 is an answer, not an outage.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, errStatusNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})

	return &Client{
		cfg:     cfg,
		session: session,
		logger:  logger,
		httpc:   &http.Client{Timeout: cfg.Timeout},
		store:   store,
		breaker: breaker,
		now:     time.Now,
	}
}

// doJSON performs one authenticated request through the circuit breaker and
// decodes the response body into out when non-nil.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	_, err := c.breaker.Execute(func() (any, error) {
		var reader io.Reader
		if body != nil {
			payload, err := json.Marshal(body)
			if err != nil {
				return nil, errors.Wrap(err, "marshal request body")
			}
			reader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
		if err != nil {
			return nil, errors.Wrap(err, "build request")
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.session.Token != "" {
			req.Header.Set("Authorization", "Bearer "+c.session.Token)
		}

		resp, err := c.httpc.Do(req)
		if err != nil {
			return nil, errors.Wrapf(err, "%s %s", method, path)
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return nil, errStatusNotFound
		}
		if resp.StatusCode >= 400 {
			return nil, errors.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
		}

		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return nil, errors.Wrapf(err, "decode %s response", path)
			}
		}

		return nil, nil
	})

	return err
}

// errStatusNotFound distinguishes a 404 from transport failures so callers
// can treat "not shared yet" as an empty result rather than an outage.
var errStatusNotFound = errors.New("not found")

// wirePoint mirrors the server's GeoJSON geometry.
type wirePoint struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"` // [lng, lat]
}

type wireCounterparty struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Location  wirePoint `json:"location"`
	UpdatedAt int64     `json:"updatedAt"` // epoch milliseconds
}

func (w wireCounterparty) toRecord(role entity.Role) (entity.CounterpartyRecord, bool) {
	if w.ID == "" || len(w.Location.Coordinates) < 2 {
		return entity.CounterpartyRecord{}, false
	}

	rec := entity.CounterpartyRecord{
		ID:          w.ID,
		Role:        role,
		DisplayName: w.Name,
		Coordinate:  orb.Point{w.Location.Coordinates[0], w.Location.Coordinates[1]},
		Source:      entity.SourceSnapshot,
	}
	if w.UpdatedAt > 0 {
		rec.LastUpdated = time.UnixMilli(w.UpdatedAt)
	}

	return rec, true
}

type wireLocationBody struct {
	Role      string    `json:"role"`
	Location  wirePoint `json:"location"`
	Accuracy  float64   `json:"accuracy,omitempty"`
	Timestamp int64     `json:"timestamp"`
}

func locationBody(loc entity.Location, role entity.Role) wireLocationBody {
	return wireLocationBody{
		Role:      role.String(),
		Location:  wirePoint{Type: "Point", Coordinates: []float64{loc.Longitude, loc.Latitude}},
		Accuracy:  loc.Accuracy,
		Timestamp: loc.Timestamp.UnixMilli(),
	}
}

func (c *Client) UpdateLocation(ctx context.Context, loc entity.Location, role entity.Role) error {
	return c.doJSON(ctx, http.MethodPost, "/users/update-location", locationBody(loc, role), nil)
}

func (c *Client) NearbyVendors(ctx context.Context, lat, lng, radiusMeters float64) (*service.NearbyResult, error) {
	return c.nearby(ctx, entity.RoleVendor, lat, lng, radiusMeters)
}

func (c *Client) NearbyConsumers(ctx context.Context, lat, lng, radiusMeters float64) (*service.NearbyResult, error) {
	return c.nearby(ctx, entity.RoleConsumer, lat, lng, radiusMeters)
}

// nearby walks the degradation ladder for one counterparty role.
func (c *Client) nearby(ctx context.Context, role entity.Role, lat, lng, radiusMeters float64) (*service.NearbyResult, error) {
	path := fmt.Sprintf("/users/nearby-vendors?lat=%f&lng=%f&radius=%.0f", lat, lng, radiusMeters)
	if role == entity.RoleConsumer {
		path = fmt.Sprintf("/vendors/nearby-consumers?lat=%f&lng=%f&radius=%.0f", lat, lng, radiusMeters)
	}

	var payload struct {
		Records []wireCounterparty `json:"records"`
	}
	err := c.doJSON(ctx, http.MethodGet, path, nil, &payload)
	if err == nil {
		records := make([]entity.CounterpartyRecord, 0, len(payload.Records))
		for _, w := range payload.Records {
			if rec, ok := w.toRecord(role); ok {
				records = append(records, rec)
			}
		}
		c.cacheSnapshot(ctx, role, lat, lng, records)

		return &service.NearbyResult{Records: records}, nil
	}

	c.logger.Warn("live nearby query failed, degrading",
		slog.String("role", role.String()),
		slog.Any("error", err))

	if cached := c.cachedSnapshot(ctx, role, lat, lng); cached != nil {
		return &service.NearbyResult{
			Records:    cached,
			Provenance: service.Provenance{IsOffline: true},
		}, nil
	}

	return &service.NearbyResult{
		Records:    c.placeholderRecords(role, lat, lng, radiusMeters),
		Provenance: service.Provenance{IsOffline: true, IsMock: true},
	}, nil
}

// snapshotKey rounds the query center so nearby queries from the same area
// share one cache entry.
func snapshotKey(role entity.Role, lat, lng float64) string {
	return fmt.Sprintf("%s:%.2f:%.2f", role, lat, lng)
}

func (c *Client) cacheSnapshot(ctx context.Context, role entity.Role, lat, lng float64, records []entity.CounterpartyRecord) {
	if c.store == nil || len(records) == 0 {
		return
	}
	if err := c.store.SaveNearbySnapshot(ctx, snapshotKey(role, lat, lng), records); err != nil {
		c.logger.Debug("cache nearby snapshot failed", slog.Any("error", err))
	}
}

func (c *Client) cachedSnapshot(ctx context.Context, role entity.Role, lat, lng float64) []entity.CounterpartyRecord {
	if c.store == nil {
		return nil
	}

	records, err := c.store.NearbySnapshot(ctx, snapshotKey(role, lat, lng))
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			c.logger.Debug("read cached snapshot failed", slog.Any("error", err))
		}

		return nil
	}

	return records
}

var placeholderVendors = []string{
	"Sharma Fresh Vegetables",
	"Gupta Fruit Cart",
	"Devi Organic Greens",
	"Anand Dairy & Produce",
	"Kisan Direct Farm Stall",
}

var placeholderConsumers = []string{
	"Asha",
	"Rohan",
	"Meera",
	"Kabir",
	"Tara",
}

// placeholderRecords generates plausible counterparties scattered around the
// query center, used only when both the backend and the cache are unavailable.
func (c *Client) placeholderRecords(role entity.Role, lat, lng, radiusMeters float64) []entity.CounterpartyRecord {
	names := placeholderVendors
	if role == entity.RoleConsumer {
		names = placeholderConsumers
	}

	rng := rand.New(rand.NewSource(c.now().UnixNano()))
	now := c.now()
	records := make([]entity.CounterpartyRecord, 0, len(names))
	for i, name := range names {
		// Roughly meters-to-degrees near the equator; close enough for
		// placeholder scatter.
		offset := radiusMeters / 111195 * (0.1 + 0.8*rng.Float64())
		angle := rng.Float64() * 2 * math.Pi
		records = append(records, entity.CounterpartyRecord{
			ID:          fmt.Sprintf("mock-%s-%d", role, i+1),
			Role:        role,
			DisplayName: name,
			Coordinate: orb.Point{
				lng + offset*math.Cos(angle),
				lat + offset*math.Sin(angle),
			},
			LastUpdated: now,
			Source:      entity.SourceSimulated,
		})
	}

	return records
}

func (c *Client) ConsumerLocationForOrder(ctx context.Context, orderID string) (*entity.Location, error) {
	var payload struct {
		Location  wirePoint `json:"location"`
		Accuracy  float64   `json:"accuracy"`
		Timestamp int64     `json:"timestamp"`
	}
	err := c.doJSON(ctx, http.MethodGet, "/orders/"+orderID+"/consumer-location", nil, &payload)
	if errors.Is(err, errStatusNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(payload.Location.Coordinates) < 2 {
		return nil, nil
	}

	return &entity.Location{
		Latitude:  payload.Location.Coordinates[1],
		Longitude: payload.Location.Coordinates[0],
		Accuracy:  payload.Accuracy,
		Timestamp: time.UnixMilli(payload.Timestamp),
	}, nil
}

func (c *Client) ShareLocationForOrder(ctx context.Context, orderID string, loc entity.Location) error {
	return c.doJSON(ctx, http.MethodPost, "/orders/"+orderID+"/share-location", locationBody(loc, entity.RoleConsumer), nil)
}

func (c *Client) Products(ctx context.Context) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.doJSON(ctx, http.MethodGet, "/products", nil, &raw); err != nil {
		return nil, err
	}

	return raw, nil
}

func (c *Client) CreateOrder(ctx context.Context, order json.RawMessage) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.doJSON(ctx, http.MethodPost, "/orders", order, &raw); err != nil {
		return nil, err
	}

	return raw, nil
}
