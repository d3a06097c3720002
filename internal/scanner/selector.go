package scanner

import "github.com/Shubhamsk2000/Smart-basket-Mini-project/internal/types"

// Selection is the one code acted on for a frame.
type Selection struct {
	Payload string
	Code    types.DetectedCode
	Index   int
}

// Select picks the first decodable code with non-empty text, in detector order.
// At most one payload is acted on per frame even when several codes are visible.
func Select(codes []types.DetectedCode) (Selection, bool) {
	for i, c := range codes {
		if !c.Decodable {
			continue
		}
		text := c.Text()
		if text == "" {
			continue
		}
		return Selection{Payload: text, Code: c, Index: i}, true
	}
	return Selection{}, false
}
