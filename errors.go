package gridb

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound                  = errors.New("not found")
	ErrAtLeastOneRowAndOneColumn = errors.New("table must have at least one row and one column")
	ErrInvalidPosition           = errors.New("invalid position")
	ErrInvalidOwner              = errors.New("invalid owner")
)

type Kind int

const (
	KindTable Kind = iota
	KindRow
	KindColumn
	KindCell
	KindDataType
	KindCard
)

func (k Kind) String() string {
	switch k {
	case KindTable:
		return "table"
	case KindRow:
		return "row"
	case KindColumn:
		return "column"
	case KindCell:
		return "cell"
	case KindDataType:
		return "data type"
	case KindCard:
		return "card"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// NotFoundError reports a missing entity, or one that belongs to a different
// table than the caller claimed.
type NotFoundError struct {
	Kind Kind
	ID   string
}

func notFound(kind Kind, id fmt.Stringer) error {
	return &NotFoundError{Kind: kind, ID: id.String()}
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return e.Kind.String() + " not found"
	}
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// IsNotFound returns whether err is a NotFoundError of the given kind.
func IsNotFound(err error, kind Kind) bool {
	var nf *NotFoundError
	return errors.As(err, &nf) && nf.Kind == kind
}

type InvariantError struct {
	Table TableID
	Axis  Axis
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("table %v: cannot remove the last %s: %v", e.Table, e.Axis.entityName(), ErrAtLeastOneRowAndOneColumn)
}

func (e *InvariantError) Unwrap() error {
	return ErrAtLeastOneRowAndOneColumn
}

// PositionError reports an index outside [0, Count] for insertion or
// [0, Count-1] for addressing.
type PositionError struct {
	Axis   Axis
	Index  int
	Count  int
	Insert bool
}

func (e *PositionError) Error() string {
	hi := e.Count - 1
	if e.Insert {
		hi = e.Count
	}
	return fmt.Sprintf("%s index %d out of range [0, %d]: %v", e.Axis.entityName(), e.Index, hi, ErrInvalidPosition)
}

func (e *PositionError) Unwrap() error {
	return ErrInvalidPosition
}

type DataError struct {
	Data []byte
	Off  int
	Err  error
	Msg  string
}

func dataErrf(data []byte, off int, err error, format string, args ...any) error {
	return &DataError{data, off, err, fmt.Sprintf(format, args...)}
}

func (e *DataError) Unwrap() error {
	return e.Err
}

func (e *DataError) Error() string {
	const prefixLen = 64
	const suffixLen = 32
	n := len(e.Data)
	if n <= prefixLen+suffixLen {
		if e.Err != nil {
			return fmt.Sprintf("%s: %v: (%d) %x", e.Msg, e.Err, n, e.Data)
		} else {
			return fmt.Sprintf("%s: (%d) %x", e.Msg, n, e.Data)
		}
	} else {
		p, s := e.Data[:prefixLen], e.Data[n-suffixLen:]
		if e.Err != nil {
			return fmt.Sprintf("%s: %v: (%d) %x...%x", e.Msg, e.Err, n, p, s)
		} else {
			return fmt.Sprintf("%s: (%d) %x...%x", e.Msg, n, p, s)
		}
	}
}
