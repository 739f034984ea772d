package model

// Allocation assigns one solver (by index into the model's solver order)
// a contiguous run of bin+1 planning bins.
type Allocation struct {
	Solver int `json:"solver"`
	Bin    int `json:"bin"`
}

// Plan is an ordered sequence of allocations. The executor runs them
// head-first; the total allocated bins never exceed the capacity the
// plan was produced for.
type Plan []Allocation

// TotalBins returns the summed bin cost of the plan, where an allocation
// at bin b costs b+1 bins.
func (p Plan) TotalBins() int {
	total := 0
	for _, a := range p {
		total += a.Bin + 1
	}
	return total
}
