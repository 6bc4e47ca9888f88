package keywords

import "time"

// Keyword is a remote-owned list item. While IsLocked is true the valuable
// fields (Term, Growth, ProfitEstimate) are withheld or replaced by teaser
// data server-side; the client never computes or reveals them locally.
type Keyword struct {
	ID       string `json:"id"`
	Term     string `json:"term,omitempty"`
	IsLocked bool   `json:"is_locked"`
	// Highlight is the teaser shown for locked items.
	Highlight      string    `json:"highlight,omitempty"`
	Growth         float64   `json:"growth,omitempty"`
	Volume         int       `json:"volume,omitempty"`
	ProfitEstimate float64   `json:"profit_estimate,omitempty"`
	Category       string    `json:"category,omitempty"`
	UpdatedAt      time.Time `json:"updated_at,omitempty"`
}

// listPayload is the list endpoint's data field.
type listPayload struct {
	Items []Keyword `json:"items"`
	Total int       `json:"total"`
}
