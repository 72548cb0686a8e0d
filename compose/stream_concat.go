package compose

import (
	"errors"
	"io"

	"github.com/favbox/streamwork/internal"
	"github.com/favbox/streamwork/schema"
)

// RegisterStreamChunkConcatFunc 注册类型 T 的流块合并函数。
// 流转为单值时（如对流式单元发起 Invoke），框架按块类型查找合并函数：
// 字符串拼接、记录按键合并（重复键取靠后的数据块）为内置规则，
// 其他类型可在进程初始化时注册。非并发安全。
func RegisterStreamChunkConcatFunc[T any](fn func([]T) (T, error)) {
	internal.RegisterStreamChunkConcatFunc(fn)
}

// emptyStreamConcatErr 区分"流为空"与"流读取失败"。
var emptyStreamConcatErr = errors.New("stream reader is empty, concat failed")

// concatStreamReader 排空流并把所有数据块合并为单值。
func concatStreamReader[T any](sr *schema.StreamReader[T]) (T, error) {
	defer sr.Close()

	var items []T

	for {
		chunk, err := sr.Recv()
		if err != nil {
			if err == io.EOF {
				break
			}

			var t T

			return t, newStreamReadError(err)
		}

		items = append(items, chunk)
	}

	if len(items) == 0 {
		var t T
		return t, emptyStreamConcatErr
	}

	if len(items) == 1 {
		return items[0], nil
	}

	res, err := internal.ConcatItems(items)
	if err != nil {
		var t T
		return t, err
	}

	return res, nil
}
