package container

import "container/heap"

// item 堆中的元素
type item[T any] struct {
	value    T
	priority float64 // 越小越先弹出
}

// minHeap 实现heap.Interface的小顶堆
type minHeap[T any] []item[T]

func (h minHeap[T]) Len() int           { return len(h) }
func (h minHeap[T]) Less(i, j int) bool { return h[i].priority < h[j].priority }
func (h minHeap[T]) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *minHeap[T]) Push(x any) {
	*h = append(*h, x.(item[T]))
}

func (h *minHeap[T]) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	var zero item[T]
	old[n-1] = zero
	*h = old[:n-1]
	return it
}

// PriorityQueue 按优先级数值从小到大弹出的优先队列
// 说明：批量加入时先Push再Heapify，逐个加入时使用HeapPush
type PriorityQueue[T any] struct {
	heap minHeap[T]
}

// NewPriorityQueue 创建空的优先队列
func NewPriorityQueue[T any]() *PriorityQueue[T] {
	return &PriorityQueue[T]{heap: make(minHeap[T], 0)}
}

// Len 元素个数
func (q *PriorityQueue[T]) Len() int {
	return len(q.heap)
}

// Push 追加元素但不调整堆，之后必须调用Heapify
func (q *PriorityQueue[T]) Push(value T, priority float64) {
	q.heap = append(q.heap, item[T]{value: value, priority: priority})
}

// Heapify 重建堆
func (q *PriorityQueue[T]) Heapify() {
	heap.Init(&q.heap)
}

// HeapPush 加入元素并保持堆性质
func (q *PriorityQueue[T]) HeapPush(value T, priority float64) {
	heap.Push(&q.heap, item[T]{value: value, priority: priority})
}

// HeapPop 弹出优先级数值最小的元素
func (q *PriorityQueue[T]) HeapPop() (value T, priority float64) {
	it := heap.Pop(&q.heap).(item[T])
	return it.value, it.priority
}
