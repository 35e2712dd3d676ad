package memory

import (
	"time"

	"stockline/internal/core/id"
	"stockline/internal/core/types"
	"stockline/internal/domain/catalog"
	"stockline/internal/domain/stock"
)

// SeedItem stores an item with the given unit and sale price.
func (s *Store) SeedItem(name string, unit catalog.UnitKind, salePrice types.MinorUnits) catalog.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.nextCreatedAt()
	item := catalog.Item{
		ID:        id.New(),
		Name:      name,
		Unit:      unit,
		SalePrice: salePrice,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.st.items[item.ID] = item
	return item
}

// SeedLocation stores an active location. owner may be nil.
func (s *Store) SeedLocation(name string, typ catalog.LocationType, owner *id.ID) catalog.Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	loc := catalog.Location{
		ID:        id.New(),
		Name:      name,
		Type:      typ,
		OwnerID:   owner,
		Active:    true,
		CreatedAt: s.nextCreatedAt(),
	}
	s.st.locations[loc.ID] = loc
	return loc
}

// SeedPaymentMethod stores a payment method.
func (s *Store) SeedPaymentMethod(code, name string) catalog.PaymentMethod {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := catalog.PaymentMethod{ID: id.New(), Code: code, Name: name}
	s.st.methods[m.ID] = m
	return m
}

// Deactivate flips a location to inactive.
func (s *Store) Deactivate(locationID id.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if loc, ok := s.st.locations[locationID]; ok {
		loc.Active = false
		s.st.locations[locationID] = loc
	}
}

// SetStock overwrites the quantities of (item, location).
func (s *Store) SetStock(itemID, locationID id.ID, onHand, reserved types.Quantity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := stockKey{itemID, locationID}
	rec := s.st.stock[key]
	rec.ItemID = itemID
	rec.LocationID = locationID
	rec.OnHand = onHand
	rec.Reserved = reserved
	rec.UpdatedAt = time.Now()
	s.st.stock[key] = rec
}

// StockOf returns the record of (item, location), zero when absent.
func (s *Store) StockOf(itemID, locationID id.ID) stock.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.stock[stockKey{itemID, locationID}]
}
