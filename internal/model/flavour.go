package model

// Flavour is a shared tag entity referenced by any number of coffees.
// The name acts as a natural dedup key: the catalog reuses an existing
// row whenever an incoming name matches, so no two rows should ever
// share the same name.  A Flavour with ID 0 is unsaved; the store
// assigns the identifier when the owning coffee is persisted.
//
// Fields:
//  ID   – primary key identifier (0 until persisted).
//  Name – unique flavour name, e.g. "Vanilla".
type Flavour struct {
	ID   uint64 `json:"id"`   // flavours.id
	Name string `json:"name"` // flavours.name
}
