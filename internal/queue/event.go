// Package queue defines message payloads exchanged over the message
// broker and the background consumer that turns them into audit log
// lines.
package queue

// CoffeeRecommendedEvent is published after a recommendation has been
// committed to the database.  It carries enough information for
// downstream consumers to log, notify or feed analytics without
// querying the catalog.
type CoffeeRecommendedEvent struct {
	CoffeeID        uint64 `json:"coffee_id"`
	Title           string `json:"title"`
	Brand           string `json:"brand"`
	Recommendations uint32 `json:"recommendations"`
	RecommendedAt   string `json:"recommended_at"`
}
