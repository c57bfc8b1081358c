package charts

// Point is one charted day.
type Point struct {
	Date  string  `json:"date"`
	Close float64 `json:"close"`
}

// Overlay is a named indicator series aligned with the price points.
// Positions before the indicator warms up hold nil.
type Overlay struct {
	Name   string     `json:"name"`
	Values []*float64 `json:"values"`
}

// Chart is a price series with indicator overlays.
type Chart struct {
	Symbol   string    `json:"symbol"`
	Range    string    `json:"range"`
	Points   []Point   `json:"points"`
	Overlays []Overlay `json:"overlays"`
}
