package canvas

import "sync"

/*
History 维护两个有序集合：

	strokes: 当前历史（旧 -> 新），按顺序重放即可还原画布
	redo:    被撤销的笔画（栈顶为最近一次撤销）

状态迁移：

	Append: strokes 入栈，redo 清空（线性撤销模型）
	Undo:   strokes 栈顶 -> redo
	Redo:   redo 栈顶 -> strokes
	Clear:  两者都清空

任何时刻一个笔画只会在 strokes / redo 中的一个里（Clear 之后都不在）。
*/
type History struct {
	mu      sync.Mutex
	strokes []*Stroke
	redo    []*Stroke
}

func NewHistory() *History {
	return &History{}
}

// Append 保存 s 的副本；不负责广播
func (h *History) Append(s Stroke) {
	cp := s.Clone()
	h.mu.Lock()
	defer h.mu.Unlock()
	h.strokes = append(h.strokes, &cp)
	h.redo = nil
}

// Undo 历史为空时返回 false
func (h *History) Undo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := len(h.strokes)
	if n == 0 {
		return false
	}
	top := h.strokes[n-1]
	h.strokes[n-1] = nil
	h.strokes = h.strokes[:n-1]
	h.redo = append(h.redo, top)
	return true
}

// Redo 重做栈为空时返回 false
func (h *History) Redo() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := len(h.redo)
	if n == 0 {
		return false
	}
	top := h.redo[n-1]
	h.redo[n-1] = nil
	h.redo = h.redo[:n-1]
	h.strokes = append(h.strokes, top)
	return true
}

func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.strokes = nil
	h.redo = nil
}

// 按 id 线性查找，第一个匹配的胜出（id 重复时也不做特殊处理）。调用方需持有 mu
func (h *History) findLocked(strokeID string) *Stroke {
	for _, s := range h.strokes {
		if s.ID == strokeID {
			return s
		}
	}
	return nil
}

// FindInProgress 返回匹配笔画的副本；已撤销或不存在时 ok=false，这是正常路径
func (h *History) FindInProgress(strokeID string) (Stroke, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := h.findLocked(strokeID)
	if s == nil {
		return Stroke{}, false
	}
	return s.Clone(), true
}

// AppendPoint 查找 + 原地追加作为一个原子操作；找不到时丢弃
func (h *History) AppendPoint(strokeID string, p Point) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := h.findLocked(strokeID)
	if s == nil {
		return false
	}
	s.Points = append(s.Points, p)
	return true
}

// Snapshot 当前历史的深拷贝，可以安全地交给写协程序列化
func (h *History) Snapshot() []Stroke {
	h.mu.Lock()
	defer h.mu.Unlock()
	return cloneAll(h.strokes)
}

func (h *History) RedoSnapshot() []Stroke {
	h.mu.Lock()
	defer h.mu.Unlock()
	return cloneAll(h.redo)
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.strokes)
}

func (h *History) RedoLen() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.redo)
}

func cloneAll(in []*Stroke) []Stroke {
	out := make([]Stroke, len(in))
	for i, s := range in {
		out[i] = s.Clone()
	}
	return out
}
