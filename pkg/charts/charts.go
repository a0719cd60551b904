// Package charts builds renderable chart specifications from tabular data.
//
// Generate is a pure function: it reads no shared state, writes none, and the
// output depends only on its inputs. It is also fail-soft by contract. An
// unrecognized chart kind degrades to a placeholder spec, and a referenced
// column missing from the data silently drops that series or point set.
// Chart generation never returns an error to the caller.
package charts

import "github.com/pivotlabs/chatlens/pkg/dataset"

// Kind identifies a chart type.
type Kind string

const (
	KindLine Kind = "line"
	KindMap  Kind = "map"
)

// Config carries display options for chart generation.
type Config struct {
	Title string `json:"title,omitempty"`

	// X and Y select columns for line charts. Each Y column becomes one
	// rendered trace.
	X string   `json:"x,omitempty"`
	Y []string `json:"y,omitempty"`

	// Lat and Lon select columns for map charts.
	Lat string `json:"lat,omitempty"`
	Lon string `json:"lon,omitempty"`
}

// Trace is one rendered series of a line chart.
type Trace struct {
	Name string    `json:"name"`
	X    []any     `json:"x"`
	Y    []float64 `json:"y"`
}

// Point is one marker of a map chart.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Spec is an opaque, serializable chart description.
type Spec struct {
	Kind   Kind    `json:"type"`
	Title  string  `json:"title"`
	Traces []Trace `json:"traces,omitempty"`
	Points []Point `json:"points,omitempty"`
}

// Generate maps (kind, data, config) to a chart spec.
func Generate(kind Kind, data dataset.Dataset, cfg Config) Spec {
	switch kind {
	case KindLine:
		return lineSpec(data, cfg)
	case KindMap:
		return mapSpec(data, cfg)
	default:
		return Spec{Kind: kind, Title: "Unknown Chart Type"}
	}
}

func lineSpec(data dataset.Dataset, cfg Config) Spec {
	title := cfg.Title
	if title == "" {
		title = "Line Chart"
	}

	xCol := cfg.X
	if xCol == "" {
		xCol = "date"
	}

	spec := Spec{Kind: KindLine, Title: title}

	xValues, ok := data.Column(xCol)
	if !ok {
		return spec
	}

	for _, name := range cfg.Y {
		values, ok := data.Column(name)
		if !ok {
			continue
		}
		trace := Trace{Name: name, X: xValues, Y: make([]float64, 0, len(values))}
		for _, v := range values {
			f, ok := dataset.Float(v)
			if !ok {
				f = 0
			}
			trace.Y = append(trace.Y, f)
		}
		spec.Traces = append(spec.Traces, trace)
	}
	return spec
}

func mapSpec(data dataset.Dataset, cfg Config) Spec {
	title := cfg.Title
	if title == "" {
		title = "Map Distribution"
	}

	latCol := cfg.Lat
	if latCol == "" {
		latCol = "lat"
	}
	lonCol := cfg.Lon
	if lonCol == "" {
		lonCol = "lon"
	}

	spec := Spec{Kind: KindMap, Title: title}

	lats, ok := data.Column(latCol)
	if !ok {
		return spec
	}
	lons, ok := data.Column(lonCol)
	if !ok {
		return spec
	}

	n := min(len(lats), len(lons))
	spec.Points = make([]Point, 0, n)
	for i := range n {
		lat, okLat := dataset.Float(lats[i])
		lon, okLon := dataset.Float(lons[i])
		if !okLat || !okLon {
			continue
		}
		spec.Points = append(spec.Points, Point{Lat: lat, Lon: lon})
	}
	return spec
}
