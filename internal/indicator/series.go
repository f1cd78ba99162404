package indicator

import "math"

// Window 为固定容量的滚动窗口，超出容量时淘汰最旧的样本。
type Window struct {
	values   []float64
	capacity int
}

// NewWindow 创建容量为 capacity 的窗口，容量至少为1。
func NewWindow(capacity int) *Window {
	if capacity < 1 {
		capacity = 1
	}
	return &Window{
		values:   make([]float64, 0, capacity),
		capacity: capacity,
	}
}

// Push 追加样本。
func (w *Window) Push(v float64) {
	if len(w.values) == w.capacity {
		copy(w.values, w.values[1:])
		w.values[len(w.values)-1] = v
		return
	}
	w.values = append(w.values, v)
}

// Len 返回当前样本数。
func (w *Window) Len() int {
	return len(w.values)
}

// Cap 返回窗口容量。
func (w *Window) Cap() int {
	return w.capacity
}

// Full 判断窗口是否已填满。
func (w *Window) Full() bool {
	return len(w.values) == w.capacity
}

// Values 返回按时间升序排列的样本副本。
func (w *Window) Values() []float64 {
	dst := make([]float64, len(w.values))
	copy(dst, w.values)
	return dst
}

// Last 返回最新样本，若为空则返回 NaN。
func (w *Window) Last() float64 {
	return Last(w.values)
}

// Tail 返回末尾 n 个样本。
func (w *Window) Tail(n int) []float64 {
	return SliceTail(w.values, n)
}

// Reset 清空窗口。
func (w *Window) Reset() {
	w.values = w.values[:0]
}

// Last 返回序列最后一个值，若为空则返回 NaN。
func Last(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	return values[len(values)-1]
}

// SliceTail 返回序列末尾 n 个值，不足时返回全部。
func SliceTail(values []float64, n int) []float64 {
	if n <= 0 || len(values) == 0 {
		return nil
	}
	if len(values) <= n {
		dst := make([]float64, len(values))
		copy(dst, values)
		return dst
	}
	dst := make([]float64, n)
	copy(dst, values[len(values)-n:])
	return dst
}
