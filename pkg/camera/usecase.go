package camera

import (
	"fmt"
	"strings"
)

// Selector picks one physical camera.
type Selector string

const (
	Back  Selector = "back"
	Front Selector = "front"
)

func ParseSelector(s string) (Selector, error) {
	switch Selector(strings.ToLower(strings.TrimSpace(s))) {
	case Back:
		return Back, nil
	case Front:
		return Front, nil
	}
	return "", fmt.Errorf("unknown camera selector %q", s)
}

// UseCase is a named stream a session can deliver frames to.
type UseCase uint8

const (
	Preview UseCase = 1 << iota
	StillCapture
	VideoCapture
	FrameAnalysis
)

var useCaseNames = []struct {
	u    UseCase
	name string
}{
	{Preview, "preview"},
	{StillCapture, "still"},
	{VideoCapture, "video"},
	{FrameAnalysis, "analysis"},
}

func (u UseCase) String() string {
	for _, n := range useCaseNames {
		if n.u == u {
			return n.name
		}
	}
	return fmt.Sprintf("usecase(%d)", uint8(u))
}

// UseCaseSet is a bit set of use-cases.
type UseCaseSet uint8

func NewUseCaseSet(useCases ...UseCase) UseCaseSet {
	var s UseCaseSet
	for _, u := range useCases {
		s |= UseCaseSet(u)
	}
	return s
}

// ParseUseCases parses names such as "preview", "still", "video", "analysis".
func ParseUseCases(names []string) (UseCaseSet, error) {
	var s UseCaseSet
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		found := false
		for _, n := range useCaseNames {
			if n.name == name {
				s = s.With(n.u)
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown use-case %q", name)
		}
	}
	return s, nil
}

func (s UseCaseSet) Has(u UseCase) bool {
	return s&UseCaseSet(u) != 0
}

func (s UseCaseSet) With(u UseCase) UseCaseSet {
	return s | UseCaseSet(u)
}

func (s UseCaseSet) Without(u UseCase) UseCaseSet {
	return s &^ UseCaseSet(u)
}

func (s UseCaseSet) Empty() bool {
	return s == 0
}

func (s UseCaseSet) Len() int {
	n := 0
	for _, c := range useCaseNames {
		if s.Has(c.u) {
			n++
		}
	}
	return n
}

func (s UseCaseSet) Names() []string {
	res := make([]string, 0, 4)
	for _, n := range useCaseNames {
		if s.Has(n.u) {
			res = append(res, n.name)
		}
	}
	return res
}

func (s UseCaseSet) String() string {
	return "{" + strings.Join(s.Names(), ",") + "}"
}
