package domain

// SeriesPoint is one (date, value) pair of a chart series
type SeriesPoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// ExportSeries is a named, colored chart series for one platform
type ExportSeries struct {
	Name  string        `json:"name"`
	Color string        `json:"color"`
	Data  []SeriesPoint `json:"data"`
}

// ExportMetadata describes the origin of an export bundle
type ExportMetadata struct {
	Source      string `json:"source"`
	LastUpdated string `json:"lastUpdated"`
	SampleSize  string `json:"sampleSize"`
	Methodology string `json:"methodology"`
}

// ExportBundle is the chart-ready file consumed by the presentation layer
type ExportBundle struct {
	Series   []ExportSeries `json:"series"`
	Metadata ExportMetadata `json:"metadata"`
}
