package schema

// maxSelectNum 静态 select 分支上限，超过则回退到 reflect.Select。
const maxSelectNum = 5

// receiveN 从候选流中接收一个数据块，候选数量不超过 maxSelectNum。
// 按候选数量展开为静态 select，避免反射开销。
func receiveN[T any](chosenList []int, ss []*stream[T]) (int, *streamItem[T], bool) {
	switch len(chosenList) {
	case 1:
		item, ok := <-ss[chosenList[0]].items
		return chosenList[0], &item, ok
	case 2:
		select {
		case item, ok := <-ss[chosenList[0]].items:
			return chosenList[0], &item, ok
		case item, ok := <-ss[chosenList[1]].items:
			return chosenList[1], &item, ok
		}
	case 3:
		select {
		case item, ok := <-ss[chosenList[0]].items:
			return chosenList[0], &item, ok
		case item, ok := <-ss[chosenList[1]].items:
			return chosenList[1], &item, ok
		case item, ok := <-ss[chosenList[2]].items:
			return chosenList[2], &item, ok
		}
	case 4:
		select {
		case item, ok := <-ss[chosenList[0]].items:
			return chosenList[0], &item, ok
		case item, ok := <-ss[chosenList[1]].items:
			return chosenList[1], &item, ok
		case item, ok := <-ss[chosenList[2]].items:
			return chosenList[2], &item, ok
		case item, ok := <-ss[chosenList[3]].items:
			return chosenList[3], &item, ok
		}
	case 5:
		select {
		case item, ok := <-ss[chosenList[0]].items:
			return chosenList[0], &item, ok
		case item, ok := <-ss[chosenList[1]].items:
			return chosenList[1], &item, ok
		case item, ok := <-ss[chosenList[2]].items:
			return chosenList[2], &item, ok
		case item, ok := <-ss[chosenList[3]].items:
			return chosenList[3], &item, ok
		case item, ok := <-ss[chosenList[4]].items:
			return chosenList[4], &item, ok
		}
	}
	panic("impossible")
}
