package httpx

import "reflect"

// resetZero sets *dst back to its zero value when dst is a non-nil pointer.
func resetZero(dst any) {
	v := reflect.ValueOf(dst)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return
	}
	e := v.Elem()
	e.Set(reflect.Zero(e.Type()))
}
