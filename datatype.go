package gridb

import (
	"strconv"
	"strings"
)

// DataType is the type tag of a column. Values are not validated or
// converted; changing a column's type blanks its cells instead.
type DataType int

const (
	Textual DataType = iota
	Numeric
	Date
	Boolean
)

var dataTypeNames = [...]string{
	Textual: "Textual",
	Numeric: "Numeric",
	Date:    "Date",
	Boolean: "Boolean",
}

func (dt DataType) String() string {
	if dt.valid() {
		return dataTypeNames[dt]
	}
	return "DataType(" + strconv.Itoa(int(dt)) + ")"
}

func (dt DataType) valid() bool {
	return dt >= 0 && int(dt) < len(dataTypeNames)
}

// LookupDataType returns the data type with the given code.
func LookupDataType(code int) (DataType, error) {
	dt := DataType(code)
	if !dt.valid() {
		return 0, &NotFoundError{Kind: KindDataType, ID: strconv.Itoa(code)}
	}
	return dt, nil
}

// DataTypeNamed finds a data type by name, ignoring case. A decimal code is
// accepted too.
func DataTypeNamed(name string) (DataType, error) {
	for i, n := range dataTypeNames {
		if strings.EqualFold(n, name) {
			return DataType(i), nil
		}
	}
	if code, err := strconv.Atoi(name); err == nil {
		return LookupDataType(code)
	}
	return 0, &NotFoundError{Kind: KindDataType, ID: name}
}

// DataTypes returns all data types ordered by code.
func DataTypes() []DataType {
	result := make([]DataType, len(dataTypeNames))
	for i := range result {
		result[i] = DataType(i)
	}
	return result
}
