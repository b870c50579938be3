package graphql

import "fmt"

// checkDepth rejects documents whose braces nest deeper than MaxDepth
// before the recursive parser sees them. Strings and comments are skipped.
func checkDepth(document string) error {
	depth := 0

	for i := 0; i < len(document); i++ {
		switch document[i] {
		case '#':
			for i < len(document) && document[i] != '\n' && document[i] != '\r' {
				i++
			}
		case '"':
			if i+2 < len(document) && document[i+1] == '"' && document[i+2] == '"' {
				i = skipBlockString(document, i+3)

				continue
			}

			i = skipString(document, i+1)
		case '{':
			depth++
			if depth > MaxDepth {
				return fmt.Errorf("%w: selections nest deeper than %d levels", ErrSyntax, MaxDepth)
			}
		case '}':
			if depth > 0 {
				depth--
			}
		}
	}

	return nil
}

// skipString returns the index of the closing quote of a string starting at i.
func skipString(document string, i int) int {
	for ; i < len(document); i++ {
		switch document[i] {
		case '\\':
			i++
		case '"', '\n', '\r':
			return i
		}
	}

	return i
}

// skipBlockString returns the index of the last quote closing a block string
// whose body starts at i.
func skipBlockString(document string, i int) int {
	for ; i < len(document); i++ {
		switch {
		case document[i] == '\\' && i+3 < len(document) && document[i+1:i+4] == `"""`:
			i += 3
		case i+2 < len(document) && document[i:i+3] == `"""`:
			return i + 2
		}
	}

	return i
}
