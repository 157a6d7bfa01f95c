package utils

import (
	"reflect"
)

// SamePointer reports whether a and b point to the same value, it also works for functions.
func SamePointer(a, b interface{}) bool {
	return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
}
