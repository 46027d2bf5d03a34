package alphavantage

// GlobalQuoteResponse represents the AlphaVantage GLOBAL_QUOTE response
type GlobalQuoteResponse struct {
	GlobalQuote GlobalQuote `json:"Global Quote"`
	// Set instead of a quote when the key is throttled
	Note        string `json:"Note,omitempty"`
	Information string `json:"Information,omitempty"`
}

// GlobalQuote is the payload of a GLOBAL_QUOTE response. AlphaVantage sends every field as a string.
type GlobalQuote struct {
	Symbol        string `json:"01. symbol"`
	Price         string `json:"05. price"`
	LatestDay     string `json:"07. latest trading day"`
	PreviousClose string `json:"08. previous close"`
	ChangePercent string `json:"10. change percent"`
}

// ParsedQuote represents a parsed quote
type ParsedQuote struct {
	Symbol        string
	Price         float64
	ChangePercent float64
}
