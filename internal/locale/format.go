package locale

import (
	"fmt"
	"strings"
)

// Format substitutes {name} placeholders from args. Literal braces are written
// as {{ and }}. An unknown placeholder or a stray brace is an error.
func Format(template string, args Args) (string, error) {
	if !strings.ContainsAny(template, "{}") {
		return template, nil
	}

	var b strings.Builder
	b.Grow(len(template))
	for i := 0; i < len(template); i++ {
		c := template[i]
		switch c {
		case '{':
			if i+1 < len(template) && template[i+1] == '{' {
				b.WriteByte('{')
				i++
				continue
			}
			end := strings.IndexByte(template[i+1:], '}')
			if end < 0 {
				return "", fmt.Errorf("unclosed placeholder at offset %d", i)
			}
			name := template[i+1 : i+1+end]
			if name == "" || strings.ContainsAny(name, "{ ") {
				return "", fmt.Errorf("malformed placeholder %q", name)
			}
			value, ok := args[name]
			if !ok {
				return "", fmt.Errorf("no value for placeholder %q", name)
			}
			fmt.Fprint(&b, value)
			i += end + 1
		case '}':
			if i+1 < len(template) && template[i+1] == '}' {
				b.WriteByte('}')
				i++
				continue
			}
			return "", fmt.Errorf("single '}' at offset %d", i)
		default:
			b.WriteByte(c)
		}
	}
	return b.String(), nil
}
