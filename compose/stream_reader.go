package compose

import (
	"reflect"

	"github.com/favbox/streamwork/internal/generic"
	"github.com/favbox/streamwork/schema"
)

// streamReader 类型擦除后的流读取器接口。
// 将具体的 *schema.StreamReader[T] 统一为可在 any 层操作的对象。
type streamReader interface {
	copy(n int) []streamReader
	getType() reflect.Type
	getChunkType() reflect.Type
	withKey(string) streamReader
	merge([]streamReader) streamReader
	toAnyStreamReader() *schema.StreamReader[any]
	close()
}

// streamReaderPacker 将 *schema.StreamReader[T] 包装为 streamReader。
type streamReaderPacker[T any] struct {
	sr *schema.StreamReader[T]
}

func (srp streamReaderPacker[T]) copy(n int) []streamReader {
	ret := make([]streamReader, n)
	srs := srp.sr.Copy(n)

	for i := 0; i < n; i++ {
		ret[i] = streamReaderPacker[T]{srs[i]}
	}

	return ret
}

func (srp streamReaderPacker[T]) getType() reflect.Type {
	return reflect.TypeOf(srp.sr)
}

func (srp streamReaderPacker[T]) getChunkType() reflect.Type {
	return generic.TypeOf[T]()
}

// withKey 将每个数据块包装为单键记录 {key: chunk}。
func (srp streamReaderPacker[T]) withKey(key string) streamReader {
	cvt := func(v T) (map[string]any, error) {
		return map[string]any{key: v}, nil
	}
	ret := schema.StreamReaderWithConvert[T, map[string]any](srp.sr, cvt)
	return packStreamReader(ret)
}

func (srp streamReaderPacker[T]) toStreamReaders(srs []streamReader) []*schema.StreamReader[T] {
	ret := make([]*schema.StreamReader[T], len(srs)+1)
	ret[0] = srp.sr
	for i := 1; i < len(ret); i++ {
		sr, ok := unpackStreamReader[T](srs[i-1])
		if !ok {
			return nil
		}

		ret[i] = sr
	}

	return ret
}

func (srp streamReaderPacker[T]) merge(isrs []streamReader) streamReader {
	srs := srp.toStreamReaders(isrs)

	sr := schema.MergeStreamReaders(srs)

	return packStreamReader(sr)
}

func (srp streamReaderPacker[T]) toAnyStreamReader() *schema.StreamReader[any] {
	return schema.StreamReaderWithConvert(srp.sr, func(t T) (any, error) {
		return t, nil
	})
}

func (srp streamReaderPacker[T]) close() {
	srp.sr.Close()
}

func packStreamReader[T any](sr *schema.StreamReader[T]) streamReader {
	return streamReaderPacker[T]{sr}
}

// unpackStreamReader 从擦除接口还原具体类型的流读取器。
// T 为接口类型时通过逐块断言还原。
func unpackStreamReader[T any](isr streamReader) (*schema.StreamReader[T], bool) {
	c, ok := isr.(streamReaderPacker[T])
	if ok {
		return c.sr, true
	}

	typ := generic.TypeOf[T]()
	if typ.Kind() == reflect.Interface {
		return schema.StreamReaderWithConvert(isr.toAnyStreamReader(), func(t any) (T, error) {
			return t.(T), nil
		}), true
	}

	return nil, false
}
