package schema

import (
	"fmt"
	"strings"
)

// NormalizeTag trims whitespace and rejects empty tags.
func NormalizeTag(tag Tag) (Tag, error) {
	trimmed := Tag(strings.TrimSpace(string(tag)))
	if trimmed == "" {
		return "", ErrInvalidTag
	}
	return trimmed, nil
}

// NormalizeRequest validates a request received over the control socket.
func NormalizeRequest(req Request) (Request, error) {
	verb := Verb(strings.ToLower(strings.TrimSpace(string(req.Verb))))
	if verb == "" {
		return Request{}, fmt.Errorf("%w: missing verb", ErrInvalidRequest)
	}
	if !verb.Known() {
		return Request{}, fmt.Errorf("%w %q", ErrUnknownVerb, verb)
	}
	if verb == VerbInit {
		return Request{}, ErrDaemonOnly
	}
	out := Request{Verb: verb}
	if verb.TakesTag() {
		tag, err := NormalizeTag(req.Tag)
		if err != nil {
			return Request{}, err
		}
		out.Tag = tag
	}
	return out, nil
}
