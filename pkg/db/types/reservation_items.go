package types

// ReservationItem is a line on a pickup or delivery reservation.
type ReservationItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// ReservationItems is stored as a JSON column.
type ReservationItems []ReservationItem
