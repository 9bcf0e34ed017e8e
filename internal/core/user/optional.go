package user

import (
	"bytes"
	"encoding/json"
)

// Optional は部分更新のフィールド値です。
// 未指定 (absent)、明示的な null、値あり の 3 状態を区別します。
type Optional[T any] struct {
	set   bool
	null  bool
	value T
}

// Some は値ありの Optional を返します。
func Some[T any](v T) Optional[T] {
	return Optional[T]{set: true, value: v}
}

// Null は明示的な null を表す Optional を返します。
func Null[T any]() Optional[T] {
	return Optional[T]{set: true, null: true}
}

// IsSet はフィールドが入力に含まれていたかを返します。
func (o Optional[T]) IsSet() bool { return o.set }

// IsNull は明示的な null が指定されたかを返します。
func (o Optional[T]) IsNull() bool { return o.set && o.null }

// Get は値ありの場合に値と true を返します。
func (o Optional[T]) Get() (T, bool) {
	if !o.set || o.null {
		var zero T
		return zero, false
	}
	return o.value, true
}

// Ptr は値ありなら値へのポインタ、null なら nil を返します。
func (o Optional[T]) Ptr() *T {
	v, ok := o.Get()
	if !ok {
		return nil
	}
	return &v
}

// UnmarshalJSON は JSON に現れたフィールドを set として記録します。
func (o *Optional[T]) UnmarshalJSON(b []byte) error {
	o.set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		var zero T
		o.null = true
		o.value = zero
		return nil
	}
	o.null = false
	return json.Unmarshal(b, &o.value)
}
