package generic

import "reflect"

// TypeOf 返回 T 的 reflect.Type，对接口类型同样有效。
func TypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Reverse 返回元素顺序反转的新切片。
func Reverse[S ~[]E, E any](s S) S {
	d := make(S, len(s))
	for i := 0; i < len(s); i++ {
		d[i] = s[len(s)-i-1]
	}

	return d
}
