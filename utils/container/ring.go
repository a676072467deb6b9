package container

// Ring 定长环形缓冲区
// 功能：保存最近Len()个周期的数据，第n个周期（从0计）写入第 n mod Len() 个槽位
// 说明：底层数组在创建时分配且不会扩容，初始各槽位为零值
type Ring[T any] struct {
	slots  []T
	count  int      // 已完成的周期数
	cursor int      // 当前周期写入的槽位
	zero   func() T // 槽位的零值
}

// NewRing 创建环形缓冲区
// 参数：size-槽位数（必须为正），zero-生成槽位零值的函数
// 返回：全部槽位为零值的缓冲区
func NewRing[T any](size int, zero func() T) *Ring[T] {
	if size <= 0 {
		panic("container: ring size must be positive")
	}
	r := &Ring[T]{
		slots: make([]T, size),
		zero:  zero,
	}
	r.Reset()
	return r
}

// Reset 所有槽位恢复零值，周期计数清零
func (r *Ring[T]) Reset() {
	for i := range r.slots {
		r.slots[i] = r.zero()
	}
	r.count = 0
	r.cursor = 0
}

// Len 槽位数
func (r *Ring[T]) Len() int {
	return len(r.slots)
}

// Count 已完成的周期数
func (r *Ring[T]) Count() int {
	return r.count
}

// Cursor 当前周期写入的槽位
func (r *Ring[T]) Cursor() int {
	return r.cursor
}

// Set 覆盖当前槽位
func (r *Ring[T]) Set(v T) {
	r.slots[r.cursor] = v
}

// Advance 结束当前周期，游标移动到下一个槽位
func (r *Ring[T]) Advance() {
	r.count++
	r.cursor = r.count % len(r.slots)
}

// At 第i个槽位
func (r *Ring[T]) At(i int) T {
	return r.slots[i]
}

// Snapshot 按槽位顺序复制所有槽位
// 说明：只复制槽位本身，T为引用类型时与缓冲区共享底层数据，调用者不应修改
func (r *Ring[T]) Snapshot() []T {
	out := make([]T, len(r.slots))
	copy(out, r.slots)
	return out
}

// SnapshotFunc 按槽位顺序深复制所有槽位
// 参数：clone-复制单个槽位的函数
// 说明：返回值与缓冲区不共享数据，调用者可随意修改
func (r *Ring[T]) SnapshotFunc(clone func(T) T) []T {
	out := make([]T, len(r.slots))
	for i, v := range r.slots {
		out[i] = clone(v)
	}
	return out
}

// Ordered 按时间顺序（从旧到新）复制已完成周期所在的槽位
// 说明：未满时只返回已写入的槽位
func (r *Ring[T]) Ordered() []T {
	n := min(r.count, len(r.slots))
	out := make([]T, 0, n)
	start := (r.count - n) % len(r.slots)
	for i := 0; i < n; i++ {
		out = append(out, r.slots[(start+i)%len(r.slots)])
	}
	return out
}
