package model

// Restaurant is a featured restaurant shown in the carousel.
type Restaurant struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Cuisine      string        `json:"cuisine"`
	PriceRange   string        `json:"priceRange"`
	Neighborhood string        `json:"neighborhood"`
	Description  string        `json:"description"`
	Rating       float64       `json:"rating"`
	Address      string        `json:"address"`
	Images       []ImageResult `json:"images"`
}

// Recommendation is a single restaurant suggested by the concierge.
type Recommendation struct {
	Name        string        `json:"name"`
	Type        string        `json:"type"`
	Cuisine     string        `json:"cuisine"`
	Location    string        `json:"location"`
	PriceRange  string        `json:"priceRange"`
	Rating      float64       `json:"rating"`
	OpenHours   string        `json:"openHours"`
	Description string        `json:"description"`
	Website     string        `json:"website"`
	Images      []ImageResult `json:"images"`
}

// Chat roles accepted from clients.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one turn of a concierge conversation.
type ChatMessage struct {
	Role    string `json:"role" binding:"required"`
	Content string `json:"content" binding:"required"`
}
