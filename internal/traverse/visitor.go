// Package traverse reconstructs the operation hierarchy of a build trace and
// drives visitors over it.
package traverse

import (
	"fmt"
	"regexp"

	"gtc/internal/model"
)

// PostVisit is called once an operation and all of its visited children
// have finished.
type PostVisit func(start *model.Start, finish *model.Finish)

// Visitor is called when an operation starts. The returned PostVisit, which
// may be nil, is called when it finishes.
type Visitor interface {
	Visit(start *model.Start) PostVisit
}

// ProgressVisitor is implemented by visitors interested in progress events
// of open operations.
type ProgressVisitor interface {
	VisitProgress(progress *model.Progress)
}

// VisitorFunc adapts a function to the Visitor interface.
type VisitorFunc func(start *model.Start) PostVisit

func (f VisitorFunc) Visit(start *model.Start) PostVisit {
	return f(start)
}

type multiVisitor []Visitor

// Multi combines visitors into one. Every visitor sees every operation; the
// post-visits run in reverse order.
func Multi(visitors ...Visitor) Visitor {
	if len(visitors) == 1 {
		return visitors[0]
	}
	return multiVisitor(visitors)
}

func (m multiVisitor) Visit(start *model.Start) PostVisit {
	posts := make([]PostVisit, len(m))
	for i, v := range m {
		posts[i] = v.Visit(start)
	}
	return func(start *model.Start, finish *model.Finish) {
		for i := len(posts) - 1; i >= 0; i-- {
			if posts[i] != nil {
				posts[i](start, finish)
			}
		}
	}
}

func (m multiVisitor) VisitProgress(progress *model.Progress) {
	for _, v := range m {
		if pv, ok := v.(ProgressVisitor); ok {
			pv.VisitProgress(progress)
		}
	}
}

// Filter selects operations by display name. A nil *Filter visits
// everything.
type Filter struct {
	Include *regexp.Regexp
	Exclude *regexp.Regexp
}

// NewFilter compiles the include and exclude patterns. Patterns must match
// the whole display name; an empty pattern is ignored.
func NewFilter(include, exclude string) (*Filter, error) {
	f := &Filter{}
	var err error
	if f.Include, err = compileWhole(include); err != nil {
		return nil, fmt.Errorf("compile include pattern: %w", err)
	}
	if f.Exclude, err = compileWhole(exclude); err != nil {
		return nil, fmt.Errorf("compile exclude pattern: %w", err)
	}
	return f, nil
}

func compileWhole(pattern string) (*regexp.Regexp, error) {
	if pattern == "" {
		return nil, nil
	}
	return regexp.Compile(`^(?:` + pattern + `)$`)
}

// Matches reports whether an operation is visited. parentVisited tells
// whether its parent is open and was visited.
func (f *Filter) Matches(name string, parentVisited bool) bool {
	if f == nil {
		return true
	}
	included := f.Include == nil || parentVisited || f.Include.MatchString(name)
	if !included {
		return false
	}
	return f.Exclude == nil || !f.Exclude.MatchString(name)
}
