package types

// Output is the item emitted by a framer: either a new format or an
// access unit, never both.
type Output struct {
	Format     *VideoFormat
	AccessUnit *AccessUnit
}

func (o Output) String() string {
	switch {
	case o.Format != nil:
		return "format:" + o.Format.String()
	case o.AccessUnit != nil:
		return o.AccessUnit.String()
	default:
		return "<empty>"
	}
}
