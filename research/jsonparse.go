package research

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// ErrNoJSON is returned when model output holds no decodable JSON value.
var ErrNoJSON = errors.New("no JSON value in model output")

var codeFence = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*\n?(.*?)```")

// ExtractJSON decodes the first JSON value in text that fits v. Fenced code
// blocks are tried before the surrounding prose.
func ExtractJSON(text string, v any) error {
	var candidates []string
	for _, m := range codeFence.FindAllStringSubmatch(text, -1) {
		candidates = append(candidates, m[1])
	}
	candidates = append(candidates, text)

	var lastErr error
	for _, c := range candidates {
		for start := 0; start < len(c); {
			i := strings.IndexAny(c[start:], "[{")
			if i < 0 {
				break
			}
			start += i
			dec := json.NewDecoder(strings.NewReader(c[start:]))
			var raw json.RawMessage
			if dec.Decode(&raw) == nil {
				err := json.Unmarshal(raw, v)
				if err == nil {
					return nil
				}
				lastErr = err
			}
			start++
		}
	}
	if lastErr != nil {
		return errors.Join(ErrNoJSON, lastErr)
	}
	return ErrNoJSON
}
