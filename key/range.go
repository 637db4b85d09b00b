package key

import "fmt"

// ShardRange is a half-open interval [Low, High) of keys of the same kind.
// High may be the +infinity sentinel; Low never is.
type ShardRange struct {
	Low  ShardKey
	High ShardKey
}

// NewRange builds a range, validating that both keys share a kind and that
// Low < High.
func NewRange(low, high ShardKey) (ShardRange, error) {
	if low.Kind() != high.Kind() {
		return ShardRange{}, fmt.Errorf("key: range bounds have different kinds %s and %s", low.Kind(), high.Kind())
	}
	if low.IsMax() {
		return ShardRange{}, fmt.Errorf("key: range low bound cannot be +infinity")
	}
	if low.Compare(high) >= 0 {
		return ShardRange{}, fmt.Errorf("key: range low bound must be strictly less than high bound")
	}
	return ShardRange{Low: low, High: high}, nil
}

// Kind reports the key kind shared by both bounds.
func (r ShardRange) Kind() Kind { return r.Low.Kind() }

// Contains reports whether k falls within [Low, High).
func (r ShardRange) Contains(k ShardKey) bool {
	return r.Low.Compare(k) <= 0 && k.Compare(r.High) < 0
}

// Intersects reports whether r and other, both half-open ranges of the same
// kind, share any key.
func (r ShardRange) Intersects(other ShardRange) bool {
	return r.Low.Compare(other.High) < 0 && other.Low.Compare(r.High) < 0
}

// Equal reports whether r and other denote the same interval.
func (r ShardRange) Equal(other ShardRange) bool {
	return r.Low.Equal(other.Low) && r.High.Equal(other.High)
}

// Adjacent reports whether r immediately precedes other with no gap, i.e.
// r.High == other.Low. This is the precondition merge checks before
// combining two mappings into one.
func (r ShardRange) Adjacent(other ShardRange) bool {
	return r.High.Equal(other.Low)
}

// Split partitions r at splitPoint into two half-open ranges [Low,
// splitPoint) and [splitPoint, High). splitPoint must lie strictly inside
// r, i.e. Low < splitPoint < High.
func (r ShardRange) Split(splitPoint ShardKey) (left, right ShardRange, err error) {
	if splitPoint.Kind() != r.Kind() {
		return ShardRange{}, ShardRange{}, fmt.Errorf("key: split point kind %s does not match range kind %s", splitPoint.Kind(), r.Kind())
	}
	if r.Low.Compare(splitPoint) >= 0 || splitPoint.Compare(r.High) >= 0 {
		return ShardRange{}, ShardRange{}, fmt.Errorf("key: split point must lie strictly inside %v", r)
	}
	left = ShardRange{Low: r.Low, High: splitPoint}
	right = ShardRange{Low: splitPoint, High: r.High}
	return left, right, nil
}

// String renders the range as "[low, high)" for logs and error messages.
func (r ShardRange) String() string {
	high := "+inf"
	if !r.High.IsMax() {
		high = fmt.Sprintf("%x", r.High.Bytes())
	}
	return fmt.Sprintf("[%x, %s)", r.Low.Bytes(), high)
}
