package domain

import (
	"slices"
	"strings"
)

// Unit is the unit of measure for an item's quantity.
type Unit string

// Units accepted for items.
const (
	UnitPiece      Unit = "piece(s)"
	UnitKilogram   Unit = "kilogram(s)"
	UnitLitre      Unit = "litre(s)"
	UnitBox        Unit = "box(es)"
	UnitMillilitre Unit = "millilitre(s)"
	UnitMilligram  Unit = "milligram(s)"
	UnitCarton     Unit = "carton(s)"
	UnitBottle     Unit = "bottle(s)"
)

// Units lists every valid unit in display order.
//
//nolint:gochecknoglobals // Static enumeration
var Units = []Unit{
	UnitPiece, UnitKilogram, UnitLitre, UnitBox,
	UnitMillilitre, UnitMilligram, UnitCarton, UnitBottle,
}

// Valid reports whether u is a known unit.
func (u Unit) Valid() bool {
	return slices.Contains(Units, u)
}

// Status is the purchase state of an item.
type Status string

// Item statuses.
const (
	StatusNew       Status = "New"
	StatusUpdated   Status = "Updated"
	StatusPurchased Status = "Purchased"
)

// Statuses lists every valid status in display order.
//
//nolint:gochecknoglobals // Static enumeration
var Statuses = []Status{StatusNew, StatusUpdated, StatusPurchased}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return slices.Contains(Statuses, s)
}

// ShoppingItem is an entry nested inside a ShoppingList.
type ShoppingItem struct {
	ID       string  `json:"id" bson:"id"`
	Name     string  `json:"name" bson:"name"`
	Quantity float64 `json:"quantity" bson:"quantity"`
	Unit     Unit    `json:"unit" bson:"unit"`
	Status   Status  `json:"status" bson:"status"`
	// Version is the optimistic concurrency token. It starts at 1 and grows
	// by one on every stored write of the item.
	Version int64 `json:"-" bson:"version"`
}

// ItemPatch carries the item fields supplied by a caller. A nil field was not
// supplied; a non-nil pointer to a zero value is a real value.
type ItemPatch struct {
	Name     *string
	Quantity *float64
	Unit     *Unit
	Status   *Status
}

// NewItem builds a fresh item from a patch. Missing fields get defaults:
// unit piece(s), status New and quantity 0.
func NewItem(id string, p ItemPatch) ShoppingItem {
	item := ShoppingItem{
		ID:      id,
		Unit:    UnitPiece,
		Status:  StatusNew,
		Version: 1,
	}
	return item.Apply(p)
}

// Apply returns a copy of the item with every supplied field replaced.
func (it ShoppingItem) Apply(p ItemPatch) ShoppingItem {
	if p.Name != nil {
		it.Name = NormalizeName(*p.Name)
	}
	if p.Quantity != nil {
		it.Quantity = *p.Quantity
	}
	if p.Unit != nil {
		it.Unit = *p.Unit
	}
	if p.Status != nil {
		it.Status = *p.Status
	}
	return it
}

// Merge combines an incoming same-name item into this one. Supplied name,
// unit and status win; the quantity is the sum of both.
func (it ShoppingItem) Merge(p ItemPatch) ShoppingItem {
	total := it.Quantity
	if p.Quantity != nil {
		total += *p.Quantity
	}
	merged := it.Apply(p)
	merged.Quantity = total
	return merged
}

// ValidUnits renders the unit list as "[piece(s), kilogram(s), ...]".
func ValidUnits() string {
	names := make([]string, len(Units))
	for i, u := range Units {
		names[i] = string(u)
	}
	return "[" + strings.Join(names, ", ") + "]"
}

// ValidStatuses renders the status list as "[New, Updated, Purchased]".
func ValidStatuses() string {
	names := make([]string, len(Statuses))
	for i, s := range Statuses {
		names[i] = string(s)
	}
	return "[" + strings.Join(names, ", ") + "]"
}
