package core

// FundWithMovements joins a fund with the two partitions of movements
// that reference it. It is a read-only view computed on every read, not
// a persisted entity.
type FundWithMovements struct {
	Fund         Fund       `json:"fund"`
	MovementsIn  []Movement `json:"movementsIn"`
	MovementsOut []Movement `json:"movementsOut"`
}
