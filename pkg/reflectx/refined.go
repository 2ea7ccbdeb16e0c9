package reflectx

import "reflect"

// IsRefinedType reports whether value is exactly the type of the generic
// parameter R.
func IsRefinedType[R any](value reflect.Type) bool {
	var toMatch R
	return reflect.TypeOf(toMatch) == value
}
