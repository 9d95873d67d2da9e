package model

import (
	"bytes"
	"encoding/json"
)

// Optional は部分更新のフィールドを表す。
// Set=false は未指定、Set=true かつ Value=nil は明示的なクリア（null）を意味する。
type Optional[T any] struct {
	Set   bool
	Value *T
}

// Some は値を指定したOptionalを返す。
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: &v}
}

// Null は明示的にクリアを指定したOptionalを返す。
func Null[T any]() Optional[T] {
	return Optional[T]{Set: true}
}

// IsNull は明示的なクリア指定かどうかを返す。
func (o Optional[T]) IsNull() bool {
	return o.Set && o.Value == nil
}

// UnmarshalJSON はjson.Unmarshalerを実装する。
// キーが存在する場合のみ呼ばれるため、呼ばれた時点でSetとなる。
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}
