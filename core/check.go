package core

import (
	"reflect"

	"github.com/kat-co/vala"
)

// IsNotNil is a vala.Checker that accepts values of any kind.
// vala.IsNotNil panics on struct values, which is how most collaborators are passed around.
func IsNotNil(obtained interface{}, paramName string) vala.Checker {
	return func() (bool, string) {
		return !isNil(obtained), "Parameter was nil: " + paramName
	}
}

func isNil(obtained interface{}) bool {
	if obtained == nil {
		return true
	}
	switch v := reflect.ValueOf(obtained); v.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Ptr, reflect.Slice:
		return v.IsNil()
	}
	return false
}
