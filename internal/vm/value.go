package vm

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// ValueType identifies the type of value stored in the Value struct
type ValueType uint8

const (
	ValNil ValueType = iota
	ValInt
	ValFloat
	ValBool
	ValString
	ValDuration // microseconds
	ValSize     // bytes
)

func (t ValueType) String() string {
	switch t {
	case ValInt:
		return "int"
	case ValFloat:
		return "float"
	case ValBool:
		return "bool"
	case ValString:
		return "string"
	case ValDuration:
		return "duration"
	case ValSize:
		return "size"
	}
	return "nil"
}

// Value is a compile-time constant.
// Scalars live in Data; strings in Str.
type Value struct {
	Type ValueType
	Data uint64
	Str  string
}

// Constructors

func NilVal() Value {
	return Value{Type: ValNil}
}

func IntVal(v int64) Value {
	return Value{Type: ValInt, Data: uint64(v)}
}

func FloatVal(v float64) Value {
	return Value{Type: ValFloat, Data: math.Float64bits(v)}
}

func BoolVal(v bool) Value {
	var data uint64
	if v {
		data = 1
	}
	return Value{Type: ValBool, Data: data}
}

func StringVal(s string) Value {
	return Value{Type: ValString, Str: s}
}

func DurationVal(us int64) Value {
	return Value{Type: ValDuration, Data: uint64(us)}
}

func SizeVal(bytes int64) Value {
	return Value{Type: ValSize, Data: uint64(bytes)}
}

// Accessors

func (v Value) AsInt() int64 {
	return int64(v.Data)
}

func (v Value) AsFloat() float64 {
	return math.Float64frombits(v.Data)
}

func (v Value) AsBool() bool {
	return v.Data != 0
}

// IsIntegral reports whether the value is stored as an int64.
func (v Value) IsIntegral() bool {
	switch v.Type {
	case ValInt, ValDuration, ValSize:
		return true
	}
	return false
}

func (v Value) Equal(o Value) bool {
	return v.Type == o.Type && v.Data == o.Data && v.Str == o.Str
}

func (v Value) String() string {
	switch v.Type {
	case ValInt:
		return strconv.FormatInt(v.AsInt(), 10)
	case ValFloat:
		return strconv.FormatFloat(v.AsFloat(), 'g', -1, 64)
	case ValBool:
		return strconv.FormatBool(v.AsBool())
	case ValString:
		return strconv.Quote(v.Str)
	case ValDuration:
		return (time.Duration(v.AsInt()) * time.Microsecond).String()
	case ValSize:
		return fmt.Sprintf("%db", v.AsInt())
	}
	return "nil"
}
