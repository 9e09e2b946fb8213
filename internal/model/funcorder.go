package model

// FunctionOrder is an insertion-ordered string-keyed map of *Function,
// used as a ControllerModel's model-function registry. Iteration order for
// step invocation is defined as registration order; tests must not assume
// any order beyond that.
type FunctionOrder struct {
	index map[string]int
	names []string
	vals  []*Function
}

// NewFunctionOrder returns an empty, ready-to-use FunctionOrder.
func NewFunctionOrder() *FunctionOrder {
	return &FunctionOrder{index: make(map[string]int)}
}

// Set inserts fn keyed by name. The caller is responsible for rejecting
// duplicates before calling Set (see controller.RegisterModelFunction).
func (f *FunctionOrder) Set(name string, fn *Function) {
	if i, ok := f.index[name]; ok {
		f.vals[i] = fn
		return
	}
	f.index[name] = len(f.names)
	f.names = append(f.names, name)
	f.vals = append(f.vals, fn)
}

// Get returns the function registered under name, or nil if absent.
func (f *FunctionOrder) Get(name string) *Function {
	if i, ok := f.index[name]; ok {
		return f.vals[i]
	}
	return nil
}

// Range calls fn for each registered function in insertion order, stopping
// early if fn returns false.
func (f *FunctionOrder) Range(fn func(name string, mf *Function) bool) {
	for i, name := range f.names {
		if !fn(name, f.vals[i]) {
			return
		}
	}
}

// Len returns the number of registered functions.
func (f *FunctionOrder) Len() int { return len(f.names) }
