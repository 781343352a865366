package dice

// Service is the one-call surface for working with dice notation. It
// composes the parser and roller and adds no semantics of its own.
type Service struct {
	roller *Roller
}

// NewService returns a Service rolling from the system CSPRNG.
func NewService() *Service {
	return &Service{roller: NewRoller()}
}

// NewServiceWithSource returns a Service drawing faces from src, for
// reproducible rolls in tests and simulations.
func NewServiceWithSource(src Source) *Service {
	return &Service{roller: NewRollerWithSource(src)}
}

// Roll parses and evaluates the expression in one call.
func (s *Service) Roll(text string) (*Result, error) {
	e, err := Parse(text)
	if err != nil {
		return nil, err
	}
	return s.roller.Roll(e)
}

// RollExpression evaluates an already parsed or programmatically built
// expression. Built groups may exceed the parser's count bound, e.g.
// after critical-hit doubling.
func (s *Service) RollExpression(e *Expression) (*Result, error) {
	return s.roller.Roll(e)
}

// ValidateExpression parses the expression without rolling it.
func (s *Service) ValidateExpression(text string) (*Expression, error) {
	return Parse(text)
}

// Statistics parses the expression and reports its min, max and mean.
func (s *Service) Statistics(text string) (Statistics, error) {
	e, err := Parse(text)
	if err != nil {
		return Statistics{}, err
	}
	return e.Stats(), nil
}
