// Package extract recovers a structured workout program from free-form
// model output. Extraction tries, in order, a fenced JSON block, the same
// block after light repair, and finally the whole body. Anything that
// cannot be decoded or fails validation is replaced by a built-in program.
package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"regexp"
	"strings"

	"github.com/raphaelgruber/fitplan/internal/models"
)

var (
	// ErrExtraction means no parseable structured data was found.
	ErrExtraction = errors.New("no structured data found in model output")

	// ErrSchemaValidation means data was found but does not match the program schema.
	ErrSchemaValidation = errors.New("program failed schema validation")
)

// Strategy names the step that produced the extracted data.
type Strategy string

const (
	StrategyFenced   Strategy = "fenced"
	StrategyRepaired Strategy = "repaired"
	StrategyBody     Strategy = "body"
	StrategyNone     Strategy = "none"
)

var (
	jsonFenceRe = regexp.MustCompile("(?s)```(?:json|JSON)[ \\t]*\\r?\\n?(.*?)```")
	anyFenceRe  = regexp.MustCompile("(?s)```[A-Za-z0-9_-]*[ \\t]*\\r?\\n?(.*?)```")

	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
	unquotedKeyRe   = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_-]*)(\s*):`)
)

// JSON returns the first JSON document found in text and the strategy
// that found it. ok is false when every strategy fails.
func JSON(text string) (raw json.RawMessage, strategy Strategy, ok bool) {
	if block, found := fencedBlock(text); found {
		if json.Valid([]byte(block)) {
			return json.RawMessage(block), StrategyFenced, true
		}
		if repaired := Repair(block); json.Valid([]byte(repaired)) {
			return json.RawMessage(repaired), StrategyRepaired, true
		}
	}

	body := strings.TrimSpace(text)
	if body != "" && json.Valid([]byte(body)) {
		return json.RawMessage(body), StrategyBody, true
	}

	// Prose around a bare object: take the outermost braces.
	start, end := strings.Index(body, "{"), strings.LastIndex(body, "}")
	if start >= 0 && end > start {
		candidate := body[start : end+1]
		if json.Valid([]byte(candidate)) {
			return json.RawMessage(candidate), StrategyBody, true
		}
		if repaired := Repair(candidate); json.Valid([]byte(repaired)) {
			return json.RawMessage(repaired), StrategyRepaired, true
		}
	}

	return nil, StrategyNone, false
}

// Repair applies syntactic fixes models commonly need: trailing commas
// before a closing bracket are removed and bare object keys are quoted.
func Repair(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 16)
	for code, str := range splitStrings(s) {
		code = trailingCommaRe.ReplaceAllString(code, "$1")
		code = unquotedKeyRe.ReplaceAllString(code, `$1"$2"$3:`)
		b.WriteString(code)
		b.WriteString(str)
	}
	return strings.TrimSpace(b.String())
}

// splitStrings yields s as pairs of text outside string literals followed
// by the string literal after it, quotes included. Fixes are only applied
// to the former so values like "rest, then: stretch" stay intact.
func splitStrings(s string) iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		start := 0
		for start < len(s) {
			open := strings.IndexByte(s[start:], '"')
			if open < 0 {
				break
			}
			open += start
			end := open + 1
			for end < len(s) && s[end] != '"' {
				if s[end] == '\\' {
					end++
				}
				end++
			}
			end = min(end+1, len(s))
			if !yield(s[start:open], s[open:end]) {
				return
			}
			start = end
		}
		if start < len(s) {
			yield(s[start:], "")
		}
	}
}

func fencedBlock(text string) (string, bool) {
	if m := jsonFenceRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	if m := anyFenceRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1]), true
	}
	return "", false
}

// Result is the outcome of ParseProgram.
type Result struct {
	Program  models.WorkoutProgram
	Strategy Strategy
	// Fallback is true when Program is the built-in program.
	Fallback bool
	// Err explains why the fallback was used.
	Err error
}

// Message describes the result for the completion event.
func (r Result) Message() string {
	if r.Fallback {
		return "Model output could not be used; returned the default program"
	}
	return "Workout program generated"
}

// ParseProgram extracts, decodes and validates a program from model output.
// It never fails: unusable output yields the fallback program.
func ParseProgram(text string) Result {
	raw, strategy, ok := JSON(text)
	if !ok {
		return fallback(StrategyNone, ErrExtraction)
	}

	var program models.WorkoutProgram
	if err := json.Unmarshal(raw, &program); err != nil {
		return fallback(strategy, fmt.Errorf("%w: decode: %v", ErrSchemaValidation, err))
	}

	if err := Validate(&program); err != nil {
		return fallback(strategy, err)
	}

	return Result{Program: program, Strategy: strategy}
}

func fallback(strategy Strategy, err error) Result {
	return Result{
		Program:  FallbackProgram(),
		Strategy: strategy,
		Fallback: true,
		Err:      err,
	}
}
