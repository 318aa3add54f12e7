package weather

import (
	_ "embed"
	"encoding/csv"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

//go:embed cities.csv
var citiesCSV string

// City is one entry of the bundled major-cities table. The aggregate
// endpoints pick their candidates from it.
type City struct {
	Name        string
	CountryCode string
	Latitude    float64
	Longitude   float64
	Population  int64
}

var loadCities = sync.OnceValues(parseCityTable)

// CitiesByCountry returns the bundled cities for an ISO 3166-1 alpha-2
// country code, most populous first. Countries missing from the table get an
// empty slice.
func CitiesByCountry(countryCode string) ([]City, error) {
	byCountry, err := loadCities()
	if err != nil {
		return nil, err
	}
	return byCountry[strings.ToUpper(countryCode)], nil
}

func parseCityTable() (map[string][]City, error) {
	records, err := csv.NewReader(strings.NewReader(citiesCSV)).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse city table: %w", err)
	}

	byCountry := make(map[string][]City)
	for i, rec := range records {
		if i == 0 {
			continue
		}
		if len(rec) != 5 {
			return nil, fmt.Errorf("city table row %d: want 5 fields, got %d", i+1, len(rec))
		}

		lat, err := strconv.ParseFloat(rec[2], 64)
		if err != nil {
			return nil, fmt.Errorf("city table row %d: latitude: %w", i+1, err)
		}
		lon, err := strconv.ParseFloat(rec[3], 64)
		if err != nil {
			return nil, fmt.Errorf("city table row %d: longitude: %w", i+1, err)
		}
		pop, err := strconv.ParseInt(rec[4], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("city table row %d: population: %w", i+1, err)
		}

		cc := strings.ToUpper(rec[1])
		byCountry[cc] = append(byCountry[cc], City{
			Name:        rec[0],
			CountryCode: cc,
			Latitude:    lat,
			Longitude:   lon,
			Population:  pop,
		})
	}

	for _, list := range byCountry {
		sort.Slice(list, func(i, j int) bool { return list[i].Population > list[j].Population })
	}

	return byCountry, nil
}
