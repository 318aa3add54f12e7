package service

import (
	"context"
	"encoding/json"
	"math"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/weathermate/server/internal/weather"
)

// The aggregate endpoints answer "what is it like around here, and across
// the country": today's conditions for the most populous cities near a base
// city, drawn from the bundled city table.
const (
	aggregateCityCount   = 8
	aggregateConcurrency = 4
	regionRadiusKm       = 200.0
	regionWideRadiusKm   = 400.0
)

// AggregateScope identifies the area an aggregate covers.
type AggregateScope struct {
	CountryCode string `json:"country_code"`
	Admin1      string `json:"admin1,omitempty"`
}

// CityConditions is one city's slice of an aggregate.
type CityConditions struct {
	Location Location        `json:"location"`
	Current  json.RawMessage `json:"current"`
	Units    json.RawMessage `json:"units,omitempty"`
}

// AggregateResult is the payload of the region and country endpoints.
type AggregateResult struct {
	Kind      string           `json:"kind"`
	Base      Location         `json:"base"`
	Scope     AggregateScope   `json:"scope"`
	Cities    []CityConditions `json:"cities"`
	FetchedAt time.Time        `json:"fetched_at"`
}

// RegionToday resolves the query and returns current conditions for the most
// populous cities around it. The search radius widens when the immediate
// area is sparse, and falls back to the whole country.
func (s *WeatherService) RegionToday(ctx context.Context, query string) (*AggregateResult, error) {
	base, err := s.ResolveCity(ctx, query)
	if err != nil {
		return nil, err
	}

	pool, err := s.countryCandidates(*base)
	if err != nil {
		return nil, err
	}

	candidates := withinRadius(pool, base.Latitude, base.Longitude, regionRadiusKm)
	if len(candidates) < aggregateCityCount {
		candidates = withinRadius(pool, base.Latitude, base.Longitude, regionWideRadiusKm)
	}
	if len(candidates) < aggregateCityCount {
		candidates = pool
	}

	cities, err := s.fetchCities(ctx, *base, topByPopulation(candidates, aggregateCityCount), base.Admin1)
	if err != nil {
		return nil, err
	}

	return &AggregateResult{
		Kind:      "region",
		Base:      *base,
		Scope:     AggregateScope{CountryCode: base.CountryCode, Admin1: base.Admin1},
		Cities:    cities,
		FetchedAt: time.Now().UTC(),
	}, nil
}

// CountryToday resolves the query and returns current conditions for its
// country's most populous cities.
func (s *WeatherService) CountryToday(ctx context.Context, query string) (*AggregateResult, error) {
	base, err := s.ResolveCity(ctx, query)
	if err != nil {
		return nil, err
	}

	pool, err := s.countryCandidates(*base)
	if err != nil {
		return nil, err
	}

	cities, err := s.fetchCities(ctx, *base, topByPopulation(pool, aggregateCityCount), "")
	if err != nil {
		return nil, err
	}

	return &AggregateResult{
		Kind:      "country",
		Base:      *base,
		Scope:     AggregateScope{CountryCode: base.CountryCode},
		Cities:    cities,
		FetchedAt: time.Now().UTC(),
	}, nil
}

// countryCandidates merges the city table with the base city itself, so a
// country missing from the table still aggregates something.
func (s *WeatherService) countryCandidates(base Location) ([]weather.City, error) {
	cities, err := weather.CitiesByCountry(base.CountryCode)
	if err != nil {
		return nil, err
	}

	for _, c := range cities {
		if strings.EqualFold(c.Name, base.Name) {
			return cities, nil
		}
	}

	pool := make([]weather.City, 0, len(cities)+1)
	pool = append(pool, cities...)
	pool = append(pool, weather.City{
		Name:        base.Name,
		CountryCode: base.CountryCode,
		Latitude:    base.Latitude,
		Longitude:   base.Longitude,
	})
	return pool, nil
}

// fetchCities fans out current-conditions fetches with bounded concurrency.
// Results keep the candidate order. Country and admin1 come from the base,
// not from the table.
func (s *WeatherService) fetchCities(ctx context.Context, base Location, candidates []weather.City, admin1 string) ([]CityConditions, error) {
	results := make([]CityConditions, len(candidates))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(aggregateConcurrency)
	for i, c := range candidates {
		g.Go(func() error {
			loc := Location{
				Name:        c.Name,
				Latitude:    c.Latitude,
				Longitude:   c.Longitude,
				Country:     base.Country,
				CountryCode: base.CountryCode,
				Admin1:      admin1,
			}
			cur, err := s.currentFor(ctx, loc)
			if err != nil {
				return err
			}
			results[i] = CityConditions{
				Location: loc,
				Current:  cur.Current,
				Units:    cur.CurrentUnits,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

func withinRadius(cities []weather.City, lat, lon, radiusKm float64) []weather.City {
	var out []weather.City
	for _, c := range cities {
		if haversineKm(lat, lon, c.Latitude, c.Longitude) <= radiusKm {
			out = append(out, c)
		}
	}
	return out
}

func topByPopulation(cities []weather.City, n int) []weather.City {
	sorted := make([]weather.City, len(cities))
	copy(sorted, cities)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Population > sorted[j].Population })
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// haversineKm is the great-circle distance between two points.
func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusKm = 6371

	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Pow(math.Sin(dLat/2), 2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Pow(math.Sin(dLon/2), 2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(a))
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
