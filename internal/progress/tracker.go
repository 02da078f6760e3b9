// Package progress 跟踪模型资源文件的下载进度
package progress

import (
	"errors"
	"fmt"
	"math"
)

// ErrDuplicateFile 同一文件重复 initiate，保留已有条目
var ErrDuplicateFile = errors.New("download already tracked")

// Item 一个正在下载的文件
type Item struct {
	FileID   string
	Progress float64 // 0-100
	Total    float64 // 字节数，未知时为 NaN
	Metadata map[string]any
}

// Name 显示名称，优先使用 metadata 中的 name
func (it Item) Name() string {
	if name, ok := it.Metadata["name"].(string); ok && name != "" {
		return name + " " + shortID(it.FileID)
	}
	return it.FileID
}

// Label 名称加大小，大小未知时省略
func (it Item) Label() string {
	if size := FormatSize(it.Total); size != "" {
		return fmt.Sprintf("%s (%s)", it.Name(), size)
	}
	return it.Name()
}

// Fraction 进度比例，用于进度条
func (it Item) Fraction() float64 {
	switch {
	case math.IsNaN(it.Progress) || it.Progress <= 0:
		return 0
	case it.Progress >= 100:
		return 1
	}
	return it.Progress / 100
}

// Tracker 按 initiate 顺序保存的下载条目，FileID 唯一
// 值类型且不可变，所有修改返回新 Tracker
type Tracker struct {
	items []Item
}

// Len 正在下载的文件数
func (t Tracker) Len() int {
	return len(t.items)
}

// Items 返回条目副本
func (t Tracker) Items() []Item {
	out := make([]Item, len(t.items))
	copy(out, t.items)
	return out
}

// Get 按 FileID 查找
func (t Tracker) Get(fileID string) (Item, bool) {
	if i := t.index(fileID); i >= 0 {
		return t.items[i], true
	}
	return Item{}, false
}

// Initiate 新增 0% 的条目；FileID 已存在时返回 ErrDuplicateFile 且不修改
func (t Tracker) Initiate(fileID string, metadata map[string]any) (Tracker, error) {
	if t.index(fileID) >= 0 {
		return t, fmt.Errorf("%w: %s", ErrDuplicateFile, fileID)
	}
	items := make([]Item, len(t.items), len(t.items)+1)
	copy(items, t.items)
	items = append(items, Item{
		FileID:   fileID,
		Total:    math.NaN(),
		Metadata: metadata,
	})
	return Tracker{items: items}, nil
}

// Update 更新进度和总大小，未知 FileID 直接忽略
func (t Tracker) Update(fileID string, percent, total float64) Tracker {
	i := t.index(fileID)
	if i < 0 {
		return t
	}
	items := t.Items()
	items[i].Progress = percent
	items[i].Total = total
	return Tracker{items: items}
}

// Complete 移除条目，未知 FileID 直接忽略
func (t Tracker) Complete(fileID string) Tracker {
	i := t.index(fileID)
	if i < 0 {
		return t
	}
	items := make([]Item, 0, len(t.items)-1)
	items = append(items, t.items[:i]...)
	items = append(items, t.items[i+1:]...)
	return Tracker{items: items}
}

// Clear 移除全部条目
func (t Tracker) Clear() Tracker {
	return Tracker{}
}

func (t Tracker) index(fileID string) int {
	for i := range t.items {
		if t.items[i].FileID == fileID {
			return i
		}
	}
	return -1
}

func shortID(id string) string {
	if len(id) > 19 {
		return id[:19]
	}
	return id
}
