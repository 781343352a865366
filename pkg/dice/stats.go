package dice

// Statistics describes the outcome range of an expression without rolling it.
type Statistics struct {
	Min  int
	Max  int
	Mean float64
}

// Stats computes the minimum, maximum and mean totals of the expression.
// Min and max are exact. Mean is the single-roll mean: an advantage or
// disadvantage flag shifts the true expectation but leaves min and max
// unchanged, and the flag is ignored here.
func (e *Expression) Stats() Statistics {
	var s Statistics
	for _, g := range e.Groups {
		s.Min += g.Count + g.Modifier
		s.Max += g.Count*g.Sides + g.Modifier
		s.Mean += float64(g.Count)*float64(g.Sides+1)/2 + float64(g.Modifier)
	}
	for _, m := range e.Modifiers {
		s.Min += m
		s.Max += m
		s.Mean += float64(m)
	}
	return s
}
