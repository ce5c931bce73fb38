// Package license normalizes free-form license text into canonical license codes.
package license

import (
	"fmt"
	"sort"
	"strings"
)

// Code is a canonical license code.
type Code string

const (
	// CodeBY is Creative Commons Attribution.
	CodeBY Code = "BY"
	// CodeBYSA is Attribution-ShareAlike.
	CodeBYSA Code = "BY-SA"
	// CodeBYND is Attribution-NoDerivatives.
	CodeBYND Code = "BY-ND"
	// CodeBYNC is Attribution-NonCommercial.
	CodeBYNC Code = "BY-NC"
	// CodeBYNCSA is Attribution-NonCommercial-ShareAlike.
	CodeBYNCSA Code = "BY-NC-SA"
	// CodeBYNCND is Attribution-NonCommercial-NoDerivatives.
	CodeBYNCND Code = "BY-NC-ND"
	// CodeCC0 is the CC0 public domain dedication.
	CodeCC0 Code = "CC0"
	// CodePrivate is all rights reserved.
	CodePrivate Code = "PRIVATE"
	// CodePDM is the Public Domain Mark.
	CodePDM Code = "PDM"
)

// ValidCodes returns all canonical license codes.
func ValidCodes() []Code {
	return []Code{CodeBY, CodeBYSA, CodeBYND, CodeBYNC, CodeBYNCSA, CodeBYNCND, CodeCC0, CodePrivate, CodePDM}
}

// IsValid checks if the code is one of the canonical codes.
func (c Code) IsValid() bool {
	for _, valid := range ValidCodes() {
		if c == valid {
			return true
		}
	}
	return false
}

// Parts returns the code's parts in canonical order.
func (c Code) Parts() []Part {
	if c == "" {
		return nil
	}
	raw := strings.Split(string(c), "-")
	parts := make([]Part, len(raw))
	for i, p := range raw {
		parts[i] = Part(p)
	}
	return parts
}

// Has reports whether the code contains the given part.
func (c Code) Has(part Part) bool {
	for _, p := range c.Parts() {
		if p == part {
			return true
		}
	}
	return false
}

func (c Code) String() string {
	return string(c)
}

// Part is a single license term, e.g. BY or NC.
type Part string

const (
	PartCC        Part = "CC"
	PartBY        Part = "BY"
	PartSA        Part = "SA"
	PartND        Part = "ND"
	PartNC        Part = "NC"
	PartCC0       Part = "CC0"
	PartPrivate   Part = "PRIVATE"
	PartCopyright Part = "COPYRIGHT"
	PartPDM       Part = "PDM"
	PartEdLib     Part = "EDLL"
)

// partOrder is the precedence used when rendering a code.
var partOrder = []Part{PartBY, PartNC, PartSA, PartND, PartCC0, PartPrivate, PartPDM}

// ValidationError reports license text that does not normalize to a canonical code.
type ValidationError struct {
	Input string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("unsupported license %q", e.Input)
}

// Parse normalizes text and returns a *ValidationError when no canonical code results.
func Parse(text string) (Code, error) {
	code, ok := Normalize(text)
	if !ok {
		return "", &ValidationError{Input: text}
	}
	return code, nil
}

// SplitCode uppercases a license string and returns its hyphen-separated parts sorted.
func SplitCode(code string) []string {
	parts := strings.Split(strings.ToUpper(code), "-")
	sort.Strings(parts)
	return parts
}
