package fixed

// Ring keeps the most recent values of a fixed size window.
type Ring struct {
	values []Point
	next   int
	size   int
}

func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		panic("ring capacity must be positive")
	}
	return &Ring{values: make([]Point, capacity)}
}

func (r *Ring) Add(p Point) {
	r.values[r.next] = p
	r.next = (r.next + 1) % len(r.values)
	if r.size < len(r.values) {
		r.size++
	}
}

func (r *Ring) Size() int     { return r.size }
func (r *Ring) Capacity() int { return len(r.values) }
func (r *Ring) IsFull() bool  { return r.size == len(r.values) }

func (r *Ring) Clear() {
	r.next = 0
	r.size = 0
}

// Latest returns the most recently added value, or Zero when the ring is empty.
func (r *Ring) Latest() Point {
	if r.size == 0 {
		return Zero
	}
	return r.values[(r.next-1+len(r.values))%len(r.values)]
}

// Values returns the window oldest first.
func (r *Ring) Values() []Point {
	out := make([]Point, 0, r.size)
	start := (r.next - r.size + len(r.values)) % len(r.values)
	for i := 0; i < r.size; i++ {
		out = append(out, r.values[(start+i)%len(r.values)])
	}
	return out
}

func (r *Ring) Mean() Point {
	return Mean(r.Values())
}

// SampleStdDev uses the n-1 denominator and is Zero for fewer than two values.
func (r *Ring) SampleStdDev() Point {
	if r.size <= 1 {
		return Zero
	}
	values := r.Values()
	mean := Mean(values)
	sum := Zero
	for _, v := range values {
		diff := v.Sub(mean)
		sum = sum.Add(diff.Mul(diff))
	}
	return sum.DivInt(r.size - 1).Sqrt()
}
