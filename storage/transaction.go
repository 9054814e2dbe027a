package storage

import "github.com/google/uuid"

// TransactionID is an opaque, globally unique identifier minted when a
// transaction begins. It is comparable and safe to use as a map key.
type TransactionID struct {
	id uuid.UUID
}

// NewTransactionID mints a fresh, globally unique transaction identifier.
func NewTransactionID() TransactionID {
	return TransactionID{id: uuid.New()}
}

func (t TransactionID) String() string {
	return t.id.String()
}
