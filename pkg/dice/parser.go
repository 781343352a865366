package dice

import (
	"strconv"
	"strings"
)

// Parse converts dice notation like "2d6+1d4+3" or "1d20a" into an
// Expression. The grammar is a non-empty sequence of terms joined by '+'
// or '-', where a term is either a dice group "NdS" (case-insensitive d)
// or a bare integer modifier, with an optional trailing 'a'/'d' flag
// marking the whole expression for advantage or disadvantage.
//
// Whitespace is permitted at the ends and around operators, nowhere else.
// Syntax problems return ErrInvalidExpression; counts or sides outside
// [1,1000] return ErrOutOfRange.
func Parse(text string) (*Expression, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, invalidf("empty expression")
	}

	body, adv, dis := stripFlag(trimmed)

	terms, err := splitTerms(body)
	if err != nil {
		return nil, err
	}

	e := &Expression{Text: text, Advantage: adv, Disadvantage: dis}
	for _, t := range terms {
		if strings.ContainsAny(t.text, "dD") {
			if t.negative {
				return nil, invalidf("cannot subtract a dice group: %q", t.text)
			}
			g, err := parseGroup(t.text)
			if err != nil {
				return nil, err
			}
			e.Groups = append(e.Groups, g)
			continue
		}
		v, err := strconv.Atoi(t.text)
		if err != nil {
			return nil, invalidf("bad term %q", t.text)
		}
		if t.negative {
			v = -v
		}
		e.Modifiers = append(e.Modifiers, v)
	}

	if len(e.Groups) == 0 {
		return nil, invalidf("expression has no dice group")
	}
	if (adv || dis) && len(e.Groups) > 1 {
		return nil, invalidf("advantage applies to single-group expressions only")
	}
	return e, nil
}

// stripFlag removes a trailing advantage/disadvantage letter when it
// directly follows a digit. "1d20a" reads as 1d20 with advantage while
// "1d20ad" keeps its tail and fails later as ungrammatical.
func stripFlag(s string) (body string, adv, dis bool) {
	n := len(s)
	if n < 2 || !isDigit(s[n-2]) {
		return s, false, false
	}
	switch s[n-1] {
	case 'a', 'A':
		return s[:n-1], true, false
	case 'd', 'D':
		return s[:n-1], false, true
	}
	return s, false, false
}

// term is one signed chunk between operators, e.g. "2d6" or "-3".
type term struct {
	negative bool
	text     string
}

// splitTerms cuts the expression body at '+'/'-' boundaries. Whitespace
// next to an operator is skipped; whitespace inside a term is an error.
func splitTerms(s string) ([]term, error) {
	var terms []term
	i, n := 0, len(s)
	negative := false
	for {
		for i < n && isSpace(s[i]) {
			i++
		}
		if i >= n {
			if len(terms) == 0 {
				return nil, invalidf("empty expression")
			}
			return nil, invalidf("trailing operator")
		}
		if s[i] == '+' || s[i] == '-' {
			if len(terms) == 0 {
				return nil, invalidf("leading operator")
			}
			return nil, invalidf("consecutive operators")
		}

		start := i
		for i < n && !isSpace(s[i]) && s[i] != '+' && s[i] != '-' {
			i++
		}
		terms = append(terms, term{negative: negative, text: s[start:i]})

		for i < n && isSpace(s[i]) {
			i++
		}
		if i >= n {
			return terms, nil
		}
		switch s[i] {
		case '+':
			negative = false
		case '-':
			negative = true
		default:
			return nil, invalidf("unexpected %q", string(s[i]))
		}
		i++
	}
}

// parseGroup parses a single "NdS" term.
func parseGroup(s string) (Group, error) {
	cut := strings.IndexAny(s, "dD")
	countStr, sidesStr := s[:cut], s[cut+1:]

	if countStr == "" {
		return Group{}, invalidf("missing dice count in %q", s)
	}
	if sidesStr == "" {
		return Group{}, invalidf("missing sides in %q", s)
	}

	count, err := strconv.Atoi(countStr)
	if err != nil {
		return Group{}, invalidf("bad dice count in %q", s)
	}
	sides, err := strconv.Atoi(sidesStr)
	if err != nil {
		return Group{}, invalidf("bad sides in %q", s)
	}

	if count < 1 || count > MaxDice {
		return Group{}, rangef("dice count %d outside [1,%d]", count, MaxDice)
	}
	if sides < 1 || sides > MaxSides {
		return Group{}, rangef("sides %d outside [1,%d]", sides, MaxSides)
	}
	return Group{Count: count, Sides: sides}, nil
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
