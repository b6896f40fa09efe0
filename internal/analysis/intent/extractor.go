// Package intent finds the system intents a model embeds in its replies and turns them
// into typed application actions.
//
// The embedded sub-language is `<system>actionName: {json payload}</system>`.
package intent

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	intentModel "github.com/zhouzirui/z-mentor/backend/internal/model/intent"
)

const (
	OpenTag  = "<system>"
	CloseTag = "</system>"
)

var errEmptyAction = errors.New("missing action name")

var actionNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_ -]*$`)

// Result is the outcome of one extraction.
type Result struct {
	// VisibleText is the reply with every recognized occurrence removed.
	VisibleText string
	Intents     []intentModel.SystemIntent
	// Failures lists the occurrences of the raw text that could not be parsed. They are
	// left in VisibleText.
	Failures []*intentModel.ParseError
}

// Extract scans raw for tagged occurrences. A malformed occurrence never aborts the scan.
// Scanning repeats on its own output until nothing more is removed, so the visible text
// never contains a recognizable occurrence.
func Extract(raw string) Result {
	text, intents, failures := scan(raw)
	res := Result{Intents: intents, Failures: failures}

	reported := make(map[string]struct{}, len(failures))
	for _, f := range failures {
		reported[f.Fragment] = struct{}{}
	}
	for len(intents) > 0 {
		text, intents, failures = scan(text)
		res.Intents = append(res.Intents, intents...)
		// 只补充移除后才出现的坏片段
		for _, f := range failures {
			if _, ok := reported[f.Fragment]; ok {
				continue
			}
			reported[f.Fragment] = struct{}{}
			res.Failures = append(res.Failures, f)
		}
	}

	res.VisibleText = strings.TrimSpace(text)
	return res
}

// HasMarkers reports whether text contains an opening marker at all.
func HasMarkers(text string) bool {
	return strings.Contains(text, OpenTag)
}

func scan(text string) (string, []intentModel.SystemIntent, []*intentModel.ParseError) {
	var (
		out      strings.Builder
		intents  []intentModel.SystemIntent
		failures []*intentModel.ParseError
	)
	out.Grow(len(text))

	pos := 0
	for pos < len(text) {
		openRel := strings.Index(text[pos:], OpenTag)
		if openRel < 0 {
			break
		}
		open := pos + openRel
		bodyStart := open + len(OpenTag)

		closeRel := strings.Index(text[bodyStart:], CloseTag)
		if closeRel < 0 {
			// unclosed marker: everything from here on stays visible
			break
		}
		bodyEnd := bodyStart + closeRel
		end := bodyEnd + len(CloseTag)

		// an earlier opener without its own closer is plain text
		if inner := strings.LastIndex(text[bodyStart:bodyEnd], OpenTag); inner >= 0 {
			open = bodyStart + inner
			bodyStart = open + len(OpenTag)
		}

		out.WriteString(text[pos:open])
		parsed, err := parseBody(text[bodyStart:bodyEnd])
		if err != nil {
			failures = append(failures, &intentModel.ParseError{
				Fragment: text[open:end],
				Offset:   open,
				Err:      err,
			})
			out.WriteString(text[open:end])
		} else {
			intents = append(intents, parsed)
		}
		pos = end
	}
	out.WriteString(text[pos:])

	return out.String(), intents, failures
}

func parseBody(body string) (intentModel.SystemIntent, error) {
	name, payload, _ := strings.Cut(strings.TrimSpace(body), ":")
	name = strings.TrimSpace(name)
	payload = strings.TrimSpace(payload)

	if name == "" {
		return intentModel.SystemIntent{}, errEmptyAction
	}
	if !actionNamePattern.MatchString(name) {
		return intentModel.SystemIntent{}, fmt.Errorf("invalid action name %q", name)
	}

	data := map[string]any{}
	if payload != "" {
		if err := json.Unmarshal([]byte(payload), &data); err != nil {
			return intentModel.SystemIntent{}, fmt.Errorf("decode %s payload: %w", name, err)
		}
		if data == nil {
			data = map[string]any{}
		}
	}

	return intentModel.SystemIntent{Action: name, Data: data}, nil
}
