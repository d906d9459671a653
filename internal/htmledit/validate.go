package htmledit

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// ValidationError reports HTML that does not parse cleanly. It is the
// editor's signal that neither the patched nor the raw rewrite is
// usable.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return "invalid HTML: " + e.Msg
}

// voidElements have no closing tag.
var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"param": true, "source": true, "track": true, "wbr": true,
}

// impliedClose elements may be closed by an enclosing end tag or by
// the end of input, per the HTML parsing rules.
var impliedClose = map[string]bool{
	"html": true, "head": true, "body": true,
	"p": true, "li": true, "dt": true, "dd": true,
	"td": true, "th": true, "tr": true,
	"tbody": true, "thead": true, "tfoot": true,
	"option": true, "optgroup": true,
	"caption": true, "colgroup": true,
}

// Validate tokenizes doc and checks tag balance. Elements the HTML
// parser closes implicitly are allowed to stay open; anything else
// left open, or closed out of order, is a *ValidationError. Plain text
// with no tags is valid.
func Validate(doc string) error {
	z := html.NewTokenizer(strings.NewReader(doc))
	var stack []string

	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return &ValidationError{Msg: err.Error()}
			}
			for i := len(stack) - 1; i >= 0; i-- {
				if !impliedClose[stack[i]] {
					return &ValidationError{Msg: fmt.Sprintf("unclosed <%s> at end of document", stack[i])}
				}
			}
			return nil

		case html.StartTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if !voidElements[tag] {
				stack = append(stack, tag)
			}

		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if voidElements[tag] {
				continue
			}

			match := -1
			for i := len(stack) - 1; i >= 0; i-- {
				if stack[i] == tag {
					match = i
					break
				}
			}
			if match == -1 {
				return &ValidationError{Msg: fmt.Sprintf("unexpected closing tag </%s>", tag)}
			}
			for i := len(stack) - 1; i > match; i-- {
				if !impliedClose[stack[i]] {
					return &ValidationError{Msg: fmt.Sprintf("<%s> closed by </%s> before its own closing tag", stack[i], tag)}
				}
			}
			stack = stack[:match]
		}
	}
}
