package scheduler

// Combinations 惰性地枚举 {0, 1, ..., n-1} 的子集。
// 子集按大小递增，同样大小的子集按下标字典序，不会一次性把所有子集放进内存。
type Combinations struct {
	n       int
	minSize int
	idx     []int
	started bool
	done    bool
}

func NewCombinations(n, minSize int) *Combinations {
	if minSize < 1 {
		minSize = 1
	}
	return &Combinations{
		n:       n,
		minSize: minSize,
	}
}

// Next 前进到下一个子集，没有更多子集时返回 false
func (c *Combinations) Next() bool {
	if c.done {
		return false
	}

	if !c.started {
		c.started = true
		return c.first(c.minSize)
	}

	k := len(c.idx)
	i := k - 1
	for i >= 0 && c.idx[i] == c.n-k+i {
		i--
	}
	if i < 0 {
		// 当前大小的子集已经枚举完，换下一个大小
		return c.first(k + 1)
	}

	c.idx[i]++
	for j := i + 1; j < k; j++ {
		c.idx[j] = c.idx[j-1] + 1
	}
	return true
}

func (c *Combinations) first(size int) bool {
	if size > c.n {
		c.done = true
		return false
	}
	c.idx = make([]int, size)
	for i := range c.idx {
		c.idx[i] = i
	}
	return true
}

// Indices 返回当前子集的下标，调用方不能修改返回的切片
func (c *Combinations) Indices() []int {
	return c.idx
}

// Reset 回到第一个子集之前，可以重新枚举一遍
func (c *Combinations) Reset() {
	c.idx = nil
	c.started = false
	c.done = false
}
