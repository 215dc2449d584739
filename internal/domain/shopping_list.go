package domain

import "golang.org/x/text/unicode/norm"

// Name length limits for lists and items.
const (
	ListNameMinLength = 2
	ListNameMaxLength = 50
	ItemNameMinLength = 3
	ItemNameMaxLength = 50
)

// ShoppingList is a named, owner-scoped collection of items.
// Items keep insertion order; a list never has a nil Items slice once stored.
type ShoppingList struct {
	ID    string         `json:"id" bson:"id"`
	Name  string         `json:"name" bson:"name"`
	Items []ShoppingItem `json:"items" bson:"items"`
	Sub   string         `json:"sub" bson:"sub"` // Owner, taken from the token's subject claim
}

// NewShoppingList returns an empty list owned by sub.
func NewShoppingList(name, sub string) *ShoppingList {
	return &ShoppingList{
		Name:  NormalizeName(name),
		Items: []ShoppingItem{},
		Sub:   sub,
	}
}

// FindItem returns the item with the given id.
func (l *ShoppingList) FindItem(itemID string) (ShoppingItem, bool) {
	for _, it := range l.Items {
		if it.ID == itemID {
			return it, true
		}
	}
	return ShoppingItem{}, false
}

// FindItemByName returns the first item whose name equals name exactly.
func (l *ShoppingList) FindItemByName(name string) (ShoppingItem, bool) {
	name = NormalizeName(name)
	for _, it := range l.Items {
		if it.Name == name {
			return it, true
		}
	}
	return ShoppingItem{}, false
}

// EnsureItems replaces a nil Items slice with an empty one.
func (l *ShoppingList) EnsureItems() {
	if l.Items == nil {
		l.Items = []ShoppingItem{}
	}
}

// NormalizeName puts a list or item name in Unicode NFC form so that
// visually identical names compare equal. Case and whitespace are kept.
func NormalizeName(name string) string {
	return norm.NFC.String(name)
}
