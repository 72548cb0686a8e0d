package internal

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/favbox/streamwork/internal/generic"
)

// concatFuncs 按类型注册的流块合并函数。
// 字符串拼接，数值和时间取最后一个数据块。
var concatFuncs = map[reflect.Type]any{
	generic.TypeOf[string]():        concatStrings,
	generic.TypeOf[int8]():          useLast[int8],
	generic.TypeOf[int16]():         useLast[int16],
	generic.TypeOf[int32]():         useLast[int32],
	generic.TypeOf[int64]():         useLast[int64],
	generic.TypeOf[int]():           useLast[int],
	generic.TypeOf[uint8]():         useLast[uint8],
	generic.TypeOf[uint16]():        useLast[uint16],
	generic.TypeOf[uint32]():        useLast[uint32],
	generic.TypeOf[uint64]():        useLast[uint64],
	generic.TypeOf[uint]():          useLast[uint],
	generic.TypeOf[bool]():          useLast[bool],
	generic.TypeOf[float32]():       useLast[float32],
	generic.TypeOf[float64]():       useLast[float64],
	generic.TypeOf[time.Time]():     useLast[time.Time],
	generic.TypeOf[time.Duration](): useLast[time.Duration],
}

func concatStrings(ss []string) (string, error) {
	var n int
	for _, s := range ss {
		n += len(s)
	}

	var b strings.Builder
	b.Grow(n)
	for _, s := range ss {
		if _, err := b.WriteString(s); err != nil {
			return "", err
		}
	}

	return b.String(), nil
}

func useLast[T any](s []T) (T, error) {
	return s[len(s)-1], nil
}

// RegisterStreamChunkConcatFunc 注册类型 T 的流块合并函数。
// 非并发安全，应在 init 阶段调用。
func RegisterStreamChunkConcatFunc[T any](fn func([]T) (T, error)) {
	concatFuncs[generic.TypeOf[T]()] = fn
}

// GetConcatFunc 返回指定类型已注册的合并函数，未注册时返回 nil。
func GetConcatFunc(typ reflect.Type) func(reflect.Value) (reflect.Value, error) {
	fn, ok := concatFuncs[typ]
	if !ok {
		return nil
	}

	return func(a reflect.Value) (reflect.Value, error) {
		rvs := reflect.ValueOf(fn).Call([]reflect.Value{a})
		var err error
		if !rvs[1].IsNil() {
			err = rvs[1].Interface().(error)
		}
		return rvs[0], err
	}
}

// ConcatItems 将同一流中收集到的多个数据块合并为一个完整值。
// map 类型按键合并，重复键取靠后的数据块；其他类型走注册的合并函数，
// 未注册时要求至多一个非零值。
func ConcatItems[T any](items []T) (T, error) {
	typ := generic.TypeOf[T]()
	v := reflect.ValueOf(items)

	var cv reflect.Value
	var err error

	if typ.Kind() == reflect.Map {
		cv, err = concatMaps(v)
	} else {
		cv, err = concatSliceValue(v)
	}

	if err != nil {
		var t T
		return t, err
	}

	return cv.Interface().(T), nil
}

// concatMaps 按键合并多个 map，同一键以靠后的数据块为准。
func concatMaps(ms reflect.Value) (reflect.Value, error) {
	typ := ms.Type().Elem()
	ret := reflect.MakeMap(typ)

	n := ms.Len()
	for i := 0; i < n; i++ {
		m := ms.Index(i)

		for _, key := range m.MapKeys() {
			val := m.MapIndex(key)
			if val.Kind() == reflect.Interface && val.IsNil() {
				// SetMapIndex 传 nil 会删除键，用零值代替
				ret.SetMapIndex(key, reflect.Zero(typ.Elem()))
				continue
			}

			ret.SetMapIndex(key, val)
		}
	}

	return ret, nil
}

// concatSliceValue 合并单一类型的数据块切片。
func concatSliceValue(val reflect.Value) (reflect.Value, error) {
	elmType := val.Type().Elem()

	if val.Len() == 1 {
		return val.Index(0), nil
	}

	if f := GetConcatFunc(elmType); f != nil {
		return f(val)
	}

	// 未注册合并函数时，仅允许唯一的非零数据块
	var filtered reflect.Value
	for i := 0; i < val.Len(); i++ {
		oneVal := val.Index(i)
		if !oneVal.IsZero() {
			if filtered.IsValid() {
				return reflect.Value{}, fmt.Errorf("cannot concat multiple non-zero value of type %s", elmType)
			}

			filtered = oneVal
		}
	}
	if !filtered.IsValid() {
		filtered = reflect.New(elmType).Elem()
	}

	return filtered, nil
}
