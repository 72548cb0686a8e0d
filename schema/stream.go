package schema

import (
	"errors"
	"io"
	"reflect"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/favbox/streamwork/internal/safe"
)

// Pipe 创建指定缓冲容量的流，返回流的读取端和写入端。
// 容量表示流中可缓冲的最大数据块数量，写入端在缓冲满时阻塞，
// 由此形成显式的背压。
//
// 示例:
//
//	sr, sw := schema.Pipe[string](3)
//	go func() {
//	        defer sw.Close()
//	        for i := 0; i < 10; i++ {
//	                sw.Send(fmt.Sprintf("chunk_%d", i), nil)
//	        }
//	}()
//
//	defer sr.Close()
//	for {
//	        chunk, err := sr.Recv()
//	        if errors.Is(err, io.EOF) {
//	                break
//	        }
//	        fmt.Println(chunk)
//	}
func Pipe[T any](cap int) (*StreamReader[T], *StreamWriter[T]) {
	stm := newStream[T](cap)
	return stm.asReader(), &StreamWriter[T]{stm: stm}
}

// StreamReaderFromArray 从给定切片创建流读取器。
// 数据已全部就绪，读取不会阻塞。
func StreamReaderFromArray[T any](arr []T) *StreamReader[T] {
	return &StreamReader[T]{ar: &arrayReader[T]{arr: arr}, typ: readerTypeArray}
}

// MergeStreamReaders 合并多个流读取器为一个。
// 合并后的流中，来自同一源流的数据块保持原有顺序，
// 不同源流之间按就绪先后交织，次序不做保证。
func MergeStreamReaders[T any](srs []*StreamReader[T]) *StreamReader[T] {
	if len(srs) < 1 {
		return nil
	}

	if len(srs) < 2 {
		return srs[0]
	}

	var arr []T
	var ss []*stream[T]

	for _, sr := range srs {
		switch sr.typ {
		case readerTypeStream:
			ss = append(ss, sr.st)
		case readerTypeArray:
			arr = append(arr, sr.ar.arr[sr.ar.index:]...)
		case readerTypeMultiStream:
			ss = append(ss, sr.msr.nonClosedStreams()...)
		case readerTypeWithConvert:
			ss = append(ss, sr.srw.toStream())
		case readerTypeChild:
			ss = append(ss, sr.csr.toStream())
		default:
			panic("impossible")
		}
	}

	if len(ss) == 0 {
		return &StreamReader[T]{
			typ: readerTypeArray,
			ar:  &arrayReader[T]{arr: arr},
		}
	}

	if len(arr) != 0 {
		ss = append(ss, arrToStream(arr))
	}

	return &StreamReader[T]{
		typ: readerTypeMultiStream,
		msr: newMultiStreamReader(ss),
	}
}

// StreamReaderWithConvert 将流读取器逐块转换为另一种类型的流读取器。
// 转换函数返回 ErrNoValue 时，该数据块被丢弃，读取继续。
//
// 示例：
//
//	intReader := schema.StreamReaderFromArray([]int{1, 2, 3})
//	strReader := schema.StreamReaderWithConvert(intReader, func(i int) (string, error) {
//		return fmt.Sprintf("val_%d", i), nil
//	})
func StreamReaderWithConvert[T, D any](sr *StreamReader[T], convert func(T) (D, error)) *StreamReader[D] {
	c := func(a any) (D, error) {
		return convert(a.(T))
	}

	return newStreamReaderWithConvert(sr, c)
}

// ErrNoValue 用于 StreamReaderWithConvert 的转换函数中跳过数据块。
// 请勿在其他场景下使用。
var ErrNoValue = errors.New("no value")

// ErrRecvAfterClosed 表示在流读取器关闭后又调用了接收操作。
// 正常使用不应出现此错误，如出现请检查应用代码。
var ErrRecvAfterClosed = errors.New("recv after stream reader closed")

// reader 流读取器内部接口。
type reader[T any] interface {
	recv() (T, error)
	close()
}

// iStreamReader 类型擦除后的流读取器接口，供跨类型的流操作使用。
type iStreamReader interface {
	recvAny() (any, error)
	copyAny(int) []iStreamReader
	Close()
}

// StreamReader 流数据接收器。
// 单遍读取，不可重放；使用完毕务必调用 Close 释放发送端。
type StreamReader[T any] struct {
	typ readerType

	st  *stream[T]
	ar  *arrayReader[T]
	msr *multiStreamReader[T]
	srw *streamReaderWithConvert[T]
	csr *childStreamReader[T]
}

// StreamWriter 流数据发送器。
// 发送完所有数据后务必调用 Close，接收端由此收到 io.EOF。
type StreamWriter[T any] struct {
	stm *stream[T]
}

// Recv 从流中接收下一个数据块。
// 流结束时返回 io.EOF。
func (sr *StreamReader[T]) Recv() (T, error) {
	switch sr.typ {
	case readerTypeStream:
		return sr.st.recv()
	case readerTypeArray:
		return sr.ar.recv()
	case readerTypeMultiStream:
		return sr.msr.recv()
	case readerTypeWithConvert:
		return sr.srw.recv()
	case readerTypeChild:
		return sr.csr.recv()
	default:
		panic("impossible")
	}
}

// Close 关闭流读取器，通知发送端停止发送。
// 只应调用一次。
func (sr *StreamReader[T]) Close() {
	switch sr.typ {
	case readerTypeStream:
		sr.st.closeRecv()
	case readerTypeArray:
		// 数组读取器无需关闭
	case readerTypeMultiStream:
		sr.msr.close()
	case readerTypeWithConvert:
		sr.srw.close()
	case readerTypeChild:
		sr.csr.close()
	default:
		panic("impossible")
	}
}

// Copy 将流读取器复制为 n 个独立读取器，各自可按不同节奏消费同一序列。
// 源流对每个逻辑数据块至多拉取一次，快慢分支之间的差距以链表缓冲。
// 复制后原读取器不可再使用。
func (sr *StreamReader[T]) Copy(n int) []*StreamReader[T] {
	if n < 2 {
		return []*StreamReader[T]{sr}
	}

	if sr.typ == readerTypeArray {
		ret := make([]*StreamReader[T], n)
		for i, ar := range sr.ar.copy(n) {
			ret[i] = &StreamReader[T]{typ: readerTypeArray, ar: ar}
		}
		return ret
	}

	return copyStreamReaders[T](sr, n)
}

func (sr *StreamReader[T]) recvAny() (any, error) {
	return sr.Recv()
}

func (sr *StreamReader[T]) copyAny(n int) []iStreamReader {
	ret := make([]iStreamReader, n)

	for i, c := range sr.Copy(n) {
		ret[i] = c
	}

	return ret
}

func (sr *StreamReader[T]) toStream() *stream[T] {
	switch sr.typ {
	case readerTypeStream:
		return sr.st
	case readerTypeArray:
		return sr.ar.toStream()
	case readerTypeMultiStream:
		return toStream[T, *multiStreamReader[T]](sr.msr)
	case readerTypeWithConvert:
		return sr.srw.toStream()
	case readerTypeChild:
		return sr.csr.toStream()
	default:
		panic("impossible")
	}
}

// Send 向流中发送一个数据块，或一个将由接收端观察到的错误。
// 返回值表示接收端是否已关闭流。
func (sw *StreamWriter[T]) Send(chunk T, err error) (closed bool) {
	return sw.stm.send(chunk, err)
}

// Close 关闭流的发送端，接收端将在消费完缓冲后收到 io.EOF。
func (sw *StreamWriter[T]) Close() {
	sw.stm.closeSend()
}

type readerType int

const (
	readerTypeStream readerType = iota
	readerTypeArray
	readerTypeMultiStream
	readerTypeWithConvert
	readerTypeChild
)

// stream 基于 channel 的底层流，1 个发送者和 1 个接收者。
// 发送者 closeSend 通知流结束，接收者 closeRecv 通知发送者停止。
type stream[T any] struct {
	items  chan streamItem[T]
	closed chan struct{}

	closeRecvOnce sync.Once
}

type streamItem[T any] struct {
	chunk T
	err   error
}

func newStream[T any](cap int) *stream[T] {
	return &stream[T]{
		items:  make(chan streamItem[T], cap),
		closed: make(chan struct{}),
	}
}

func (s *stream[T]) asReader() *StreamReader[T] {
	return &StreamReader[T]{typ: readerTypeStream, st: s}
}

func (s *stream[T]) recv() (chunk T, err error) {
	item, ok := <-s.items
	if !ok {
		item.err = io.EOF
	}

	return item.chunk, item.err
}

// send 发送数据块，接收端已关闭时返回 true。
func (s *stream[T]) send(chunk T, err error) (closed bool) {
	select {
	case <-s.closed:
		return true
	default:
	}

	select {
	case <-s.closed:
		return true
	case s.items <- streamItem[T]{chunk, err}:
		return false
	}
}

func (s *stream[T]) closeSend() {
	close(s.items)
}

func (s *stream[T]) closeRecv() {
	s.closeRecvOnce.Do(func() {
		close(s.closed)
	})
}

// arrayReader 基于切片的读取器，按序返回元素。
type arrayReader[T any] struct {
	arr   []T
	index int
}

func (ar *arrayReader[T]) recv() (T, error) {
	if ar.index < len(ar.arr) {
		ret := ar.arr[ar.index]
		ar.index++

		return ret, nil
	}

	var t T
	return t, io.EOF
}

// copy 复制出 n 个读取器，共享底层切片，读取位置各自独立。
func (ar *arrayReader[T]) copy(n int) []*arrayReader[T] {
	ret := make([]*arrayReader[T], n)

	for i := range ret {
		ret[i] = &arrayReader[T]{
			arr:   ar.arr,
			index: ar.index,
		}
	}

	return ret
}

func (ar *arrayReader[T]) toStream() *stream[T] {
	return arrToStream(ar.arr[ar.index:])
}

// multiStreamReader 同时从多个底层流接收数据的读取器。
// 流数量超过 maxSelectNum 时改用 reflect.Select。
type multiStreamReader[T any] struct {
	sts        []*stream[T]
	itemsCases []reflect.SelectCase
	nonClosed  []int
}

func newMultiStreamReader[T any](sts []*stream[T]) *multiStreamReader[T] {
	var itemsCases []reflect.SelectCase
	if len(sts) > maxSelectNum {
		itemsCases = make([]reflect.SelectCase, len(sts))
		for i, st := range sts {
			itemsCases[i] = reflect.SelectCase{
				Dir:  reflect.SelectRecv,
				Chan: reflect.ValueOf(st.items),
			}
		}
	}

	nonClosed := make([]int, len(sts))
	for i := range sts {
		nonClosed[i] = i
	}

	return &multiStreamReader[T]{
		sts:        sts,
		itemsCases: itemsCases,
		nonClosed:  nonClosed,
	}
}

func (msr *multiStreamReader[T]) recv() (T, error) {
	for len(msr.nonClosed) > 0 {
		var chosen int
		var ok bool
		if len(msr.nonClosed) > maxSelectNum {
			var recv reflect.Value
			chosen, recv, ok = reflect.Select(msr.itemsCases)
			if ok {
				item := recv.Interface().(streamItem[T])
				return item.chunk, item.err
			}
			msr.itemsCases[chosen].Chan = reflect.Value{}
		} else {
			var item *streamItem[T]
			chosen, item, ok = receiveN(msr.nonClosed, msr.sts)
			if ok {
				return item.chunk, item.err
			}
		}

		// 该源流已结束，从候选中移除
		for i := range msr.nonClosed {
			if msr.nonClosed[i] == chosen {
				msr.nonClosed = append(msr.nonClosed[:i], msr.nonClosed[i+1:]...)
				break
			}
		}
	}

	var t T
	return t, io.EOF
}

func (msr *multiStreamReader[T]) nonClosedStreams() []*stream[T] {
	ret := make([]*stream[T], len(msr.nonClosed))

	for i, idx := range msr.nonClosed {
		ret[i] = msr.sts[idx]
	}

	return ret
}

func (msr *multiStreamReader[T]) close() {
	for _, s := range msr.sts {
		s.closeRecv()
	}
}

// streamReaderWithConvert 带逐块转换的流读取器。
type streamReaderWithConvert[T any] struct {
	sr      iStreamReader
	convert func(any) (T, error)
}

func newStreamReaderWithConvert[T any](origin iStreamReader, convert func(any) (T, error)) *StreamReader[T] {
	return &StreamReader[T]{
		typ: readerTypeWithConvert,
		srw: &streamReaderWithConvert[T]{
			sr:      origin,
			convert: convert,
		},
	}
}

func (srw *streamReaderWithConvert[T]) recv() (T, error) {
	for {
		out, err := srw.sr.recvAny()
		if err != nil {
			var t T
			return t, err
		}

		t, err := srw.convert(out)
		if err == nil {
			return t, nil
		}

		if !errors.Is(err, ErrNoValue) {
			return t, err
		}
	}
}

func (srw *streamReaderWithConvert[T]) close() {
	srw.sr.Close()
}

func (srw *streamReaderWithConvert[T]) toStream() *stream[T] {
	return toStream[T, *streamReaderWithConvert[T]](srw)
}

// parentStreamReader 复制流的共享侧：持有原始读取器和每个子流的读取进度。
type parentStreamReader[T any] struct {
	sr *StreamReader[T]

	// subStreamList 每个子流当前指向的链表节点。
	// 节点一经写入便不再修改，子流只向前移动自己的指针。
	subStreamList []*cpStreamElement[T]

	closedNum uint32
}

// childStreamReader 复制流的单个分支。
type childStreamReader[T any] struct {
	parent *parentStreamReader[T]
	index  int
}

// cpStreamElement 复制流缓冲链表的节点。
// sync.Once 保证对应的源数据块只被拉取一次，落后的分支读取已填充的节点。
type cpStreamElement[T any] struct {
	once sync.Once
	next *cpStreamElement[T]
	item streamItem[T]
}

// peek 读取指定子流的下一个数据块。
// 同一子流不可并发调用；不同子流之间并发安全，
// 拉取源流并扇出这一步由 once 构成唯一的临界区。
func (p *parentStreamReader[T]) peek(idx int) (t T, err error) {
	elem := p.subStreamList[idx]
	if elem == nil {
		return t, ErrRecvAfterClosed
	}

	elem.once.Do(func() {
		t, err = p.sr.Recv()
		elem.item = streamItem[T]{chunk: t, err: err}
		if err != io.EOF {
			elem.next = &cpStreamElement[T]{}
			p.subStreamList[idx] = elem.next
		}
	})

	t = elem.item.chunk
	err = elem.item.err
	if err != io.EOF {
		p.subStreamList[idx] = elem.next
	}

	return t, err
}

// close 关闭一个子流；全部子流关闭后才关闭原始读取器，
// 个别分支被放弃不会强行终结共享的源。
func (p *parentStreamReader[T]) close(idx int) {
	if p.subStreamList[idx] == nil {
		return
	}
	p.subStreamList[idx] = nil

	if int(atomic.AddUint32(&p.closedNum, 1)) == len(p.subStreamList) {
		p.sr.Close()
	}
}

func (csr *childStreamReader[T]) recv() (T, error) {
	return csr.parent.peek(csr.index)
}

func (csr *childStreamReader[T]) toStream() *stream[T] {
	return toStream[T, *childStreamReader[T]](csr)
}

func (csr *childStreamReader[T]) close() {
	csr.parent.close(csr.index)
}

func copyStreamReaders[T any](sr *StreamReader[T], n int) []*StreamReader[T] {
	cpsr := &parentStreamReader[T]{
		sr:            sr,
		subStreamList: make([]*cpStreamElement[T], n),
	}

	// 所有子流从同一个空尾节点出发
	elem := &cpStreamElement[T]{}
	for i := range cpsr.subStreamList {
		cpsr.subStreamList[i] = elem
	}

	ret := make([]*StreamReader[T], n)
	for i := range ret {
		ret[i] = &StreamReader[T]{
			typ: readerTypeChild,
			csr: &childStreamReader[T]{
				parent: cpsr,
				index:  i,
			},
		}
	}

	return ret
}

// toStream 启动后台协程把任意读取器的数据搬运到底层流。
// panic 被转为错误块发送，读取器随流一起关闭。
func toStream[T any, Reader reader[T]](r Reader) *stream[T] {
	ret := newStream[T](5)

	go func() {
		defer func() {
			panicErr := recover()
			if panicErr != nil {
				var chunk T
				_ = ret.send(chunk, safe.NewPanicErr(panicErr, debug.Stack()))
			}

			ret.closeSend()
			r.close()
		}()

		for {
			out, err := r.recv()
			if err == io.EOF {
				break
			}

			if ret.send(out, err) {
				break
			}
		}
	}()

	return ret
}

func arrToStream[T any](arr []T) *stream[T] {
	s := newStream[T](len(arr))
	for i := range arr {
		s.send(arr[i], nil)
	}
	s.closeSend()

	return s
}
