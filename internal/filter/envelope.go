package filter

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gonum.org/v1/gonum/floats"

	"ifgstack/internal/request"
	"ifgstack/internal/services"
)

// FootprintEnvelope unions the footprints of the given product directories.
// Each product contributes the GeoJSON location of its *.dataset.json, or
// the bbox of its *.met.json when no dataset descriptor is present.
func FootprintEnvelope(products []string) (request.Region, error) {
	var lats, lons []float64
	for _, product := range products {
		points, err := productFootprint(product)
		if err != nil {
			return request.Region{}, services.Wrap(services.ErrValidation, "filter", "envelope", "Failed to read footprint of "+product, err)
		}
		for _, p := range points {
			lons = append(lons, p[0])
			lats = append(lats, p[1])
		}
	}
	if len(lats) == 0 {
		return request.Region{}, services.Wrap(services.ErrValidation, "filter", "envelope", "No product footprints found", nil)
	}
	return request.RegionFromBounds(floats.Min(lats), floats.Max(lats), floats.Min(lons), floats.Max(lons)), nil
}

// productFootprint returns [lon, lat] pairs.
func productFootprint(dir string) ([][2]float64, error) {
	if matches := globSorted(dir, "*.dataset.json"); len(matches) > 0 {
		var doc struct {
			Location struct {
				Coordinates json.RawMessage `json:"coordinates"`
			} `json:"location"`
		}
		if err := readJSON(matches[0], &doc); err != nil {
			return nil, err
		}
		var points [][2]float64
		if err := collectPositions(doc.Location.Coordinates, &points); err != nil {
			return nil, fmt.Errorf("%s: %w", matches[0], err)
		}
		if len(points) > 0 {
			return points, nil
		}
	}
	if matches := globSorted(dir, "*.met.json"); len(matches) > 0 {
		var met struct {
			BBox [][]float64 `json:"bbox"`
		}
		if err := readJSON(matches[0], &met); err != nil {
			return nil, err
		}
		points := make([][2]float64, 0, len(met.BBox))
		for _, latLon := range met.BBox {
			if len(latLon) < 2 {
				return nil, fmt.Errorf("%s: bbox entry needs [lat, lon]", matches[0])
			}
			points = append(points, [2]float64{latLon[1], latLon[0]})
		}
		if len(points) > 0 {
			return points, nil
		}
	}
	return nil, errors.New("no dataset.json location or met.json bbox")
}

// collectPositions walks arbitrarily nested GeoJSON coordinate arrays.
func collectPositions(raw json.RawMessage, out *[][2]float64) error {
	if len(raw) == 0 {
		return nil
	}
	var position []float64
	if err := json.Unmarshal(raw, &position); err == nil {
		if len(position) == 0 {
			return nil
		}
		if len(position) < 2 {
			return errors.New("position needs [lon, lat]")
		}
		*out = append(*out, [2]float64{position[0], position[1]})
		return nil
	}
	var nested []json.RawMessage
	if err := json.Unmarshal(raw, &nested); err != nil {
		return fmt.Errorf("coordinates: %w", err)
	}
	for _, child := range nested {
		if err := collectPositions(child, out); err != nil {
			return err
		}
	}
	return nil
}

func globSorted(dir, pattern string) []string {
	matches, _ := filepath.Glob(filepath.Join(dir, pattern))
	sort.Strings(matches)
	return matches
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}
