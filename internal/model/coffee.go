package model

import "time"

// Coffee is the catalog's primary aggregate: a named, branded item
// carrying an ordered set of flavour tags and a recommendation
// counter.  This struct corresponds to a row in the `coffees` table;
// the Flavours slice is populated from the `coffee_flavours` join
// table in input order.
//
// Fields:
//  ID              – primary key identifier.
//  Title           – display title of the coffee.
//  Brand           – brand the coffee is sold under.
//  Description     – free-text description, empty by default.
//  Recommendations – non-negative recommendation counter, 0 by default.
//  Flavours        – associated flavour tags, ordered as supplied.
//  CreatedAt       – timestamp when the row was created.
//  UpdatedAt       – timestamp of last update.
type Coffee struct {
	ID              uint64    `json:"id"`              // coffees.id
	Title           string    `json:"title"`           // coffees.title
	Brand           string    `json:"brand"`           // coffees.brand
	Description     string    `json:"description"`     // coffees.description
	Recommendations uint32    `json:"recommendations"` // coffees.recommendations
	Flavours        []Flavour `json:"flavours"`        // via coffee_flavours join
	CreatedAt       time.Time `json:"created_at"`      // coffees.created_at
	UpdatedAt       time.Time `json:"updated_at"`      // coffees.updated_at
}
