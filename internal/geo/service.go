package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/netip"
	"strings"
	"time"

	pkgerrors "github.com/YeLlowseaG/clientseeker/pkg/errors"
	"github.com/YeLlowseaG/clientseeker/pkg/geoip"
	"github.com/YeLlowseaG/clientseeker/pkg/logger"
	"github.com/YeLlowseaG/clientseeker/pkg/redis"
)

type cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	GeoKey(ip string) string
}

type lookuper interface {
	Lookup(ctx context.Context, ip string) (*geoip.Location, error)
}

// Service resolves caller IPs to a coarse location, caching answers in Redis.
type Service struct {
	cache  cache
	client lookuper
	ttl    time.Duration
	logg   *logger.Logger
}

func NewService(c cache, client lookuper, ttl time.Duration, logg *logger.Logger) (*Service, error) {
	if c == nil {
		return nil, fmt.Errorf("geo cache required")
	}
	if client == nil {
		return nil, fmt.Errorf("geolocation client required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("geo cache ttl must be positive")
	}
	return &Service{cache: c, client: client, ttl: ttl, logg: logg}, nil
}

// Locate returns the location of ip. Private, loopback and link-local
// addresses resolve to an empty location without a lookup. Cache failures are
// logged and fall through to the API.
func (s *Service) Locate(ctx context.Context, ip string) (*geoip.Location, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid ip address")
	}
	addr = addr.Unmap()
	if !addr.IsGlobalUnicast() || addr.IsPrivate() {
		return &geoip.Location{IP: addr.String()}, nil
	}
	key := s.cache.GeoKey(addr.String())

	cached, err := s.cache.Get(ctx, key)
	switch {
	case err == nil:
		var loc geoip.Location
		if jsonErr := json.Unmarshal([]byte(cached), &loc); jsonErr == nil {
			return &loc, nil
		}
	case !redis.IsNil(err):
		s.warn(ctx, "geo cache read failed", err)
	}

	loc, err := s.client.Lookup(ctx, addr.String())
	if err != nil {
		return nil, err
	}
	if payload, err := json.Marshal(loc); err == nil {
		if err := s.cache.Set(ctx, key, payload, s.ttl); err != nil {
			s.warn(ctx, "geo cache write failed", err)
		}
	}
	return loc, nil
}

func (s *Service) warn(ctx context.Context, msg string, err error) {
	if s.logg == nil {
		return
	}
	s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), msg)
}
