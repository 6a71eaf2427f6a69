package gridb

import (
	"fmt"

	"github.com/google/uuid"
)

// TableID, RowID and ColumnID are random UUIDs. Their 16 raw bytes are used
// as storage keys.
type (
	TableID  uuid.UUID
	RowID    uuid.UUID
	ColumnID uuid.UUID
)

func newTableID() TableID   { return TableID(uuid.New()) }
func newRowID() RowID       { return RowID(uuid.New()) }
func newColumnID() ColumnID { return ColumnID(uuid.New()) }

func (id TableID) String() string  { return uuid.UUID(id).String() }
func (id RowID) String() string    { return uuid.UUID(id).String() }
func (id ColumnID) String() string { return uuid.UUID(id).String() }

func (id TableID) IsZero() bool { return id == TableID{} }

func ParseTableID(s string) (TableID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return TableID{}, fmt.Errorf("invalid table id %q: %w", s, err)
	}
	return TableID(u), nil
}

func ParseRowID(s string) (RowID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return RowID{}, fmt.Errorf("invalid row id %q: %w", s, err)
	}
	return RowID(u), nil
}

func ParseColumnID(s string) (ColumnID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ColumnID{}, fmt.Errorf("invalid column id %q: %w", s, err)
	}
	return ColumnID(u), nil
}
