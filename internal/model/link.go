package model

// Link is an onion-service URL reported by a discovery engine.
type Link struct {
	URL    string `json:"url"`
	Title  string `json:"title,omitempty"`
	Engine string `json:"engine"`
}
