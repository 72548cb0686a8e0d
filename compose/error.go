package compose

import (
	"errors"
	"fmt"
	"reflect"
)

// TypeMismatchError 表示运行时的值与期望类型不符。
// 典型场景：记录流中混入了非记录类型的数据块。
type TypeMismatchError struct {
	Expected reflect.Type
	Got      reflect.Type

	// role 不符的是哪一侧，"input" 或 "output"
	role string
}

func (e *TypeMismatchError) Error() string {
	role := e.role
	if role == "" {
		role = "input"
	}

	return fmt.Sprintf("unexpected %s type. expected: %v, got: %v", role, e.Expected, e.Got)
}

func newUnexpectedInputTypeErr(expected reflect.Type, got reflect.Type) error {
	return &TypeMismatchError{Expected: expected, Got: got, role: "input"}
}

func newUnexpectedOutputTypeErr(expected reflect.Type, got reflect.Type) error {
	return &TypeMismatchError{Expected: expected, Got: got, role: "output"}
}

// UnitFailureError 表示某个执行单元失败，携带单元标识和原始错误。
// 组合器内的子单元失败时以此错误上浮，不做重试。
type UnitFailureError struct {
	// Unit 失败单元的标识，如 Parallel 中的子任务键
	Unit string

	origError error
}

func (e *UnitFailureError) Error() string {
	return fmt.Sprintf("unit %q failed: %s", e.Unit, e.origError.Error())
}

func (e *UnitFailureError) Unwrap() error {
	return e.origError
}

func newUnitFailureErr(unit string, err error) error {
	var ue *UnitFailureError
	if errors.As(err, &ue) {
		return err
	}

	return &UnitFailureError{Unit: unit, origError: err}
}

func newStreamReadError(err error) error {
	return fmt.Errorf("failed to read from stream. error: %w", err)
}
