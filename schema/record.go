package schema

import (
	"github.com/bytedance/sonic"
)

// Record 结构化记录，流水线中在各执行单元之间传递的键值载荷。
type Record = map[string]any

// MergeRecords 按键合并多条记录，返回新记录。
// 重复键以靠后的记录为准，这与记录流的数据块合并规则一致。
func MergeRecords(records ...Record) Record {
	merged := make(Record)
	for _, r := range records {
		for k, v := range r {
			merged[k] = v
		}
	}

	return merged
}

// FilterRecord 返回剔除指定键之后的新记录，原记录不变。
func FilterRecord(r Record, excludes ...string) Record {
	filtered := CloneRecord(r)
	for _, k := range excludes {
		delete(filtered, k)
	}

	return filtered
}

// CloneRecord 返回记录的浅副本。
func CloneRecord(r Record) Record {
	if r == nil {
		return nil
	}

	cloned := make(Record, len(r))
	for k, v := range r {
		cloned[k] = v
	}

	return cloned
}

// MarshalRecord 将记录序列化为 JSON。
func MarshalRecord(r Record) ([]byte, error) {
	return sonic.Marshal(r)
}
