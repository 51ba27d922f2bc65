package flow

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mohitkumar/intake/gate"
	"github.com/mohitkumar/intake/model"
	"github.com/mohitkumar/intake/util"
)

// Validate checks that the step graph is complete: every target exists,
// every step has a back mapping or is explicitly locked, and every forward
// edge is mirrored by the target's back table.
func (d Definition) Validate() error {
	var errs []error
	if d.Name == "" {
		errs = append(errs, errors.New("workflow name is empty"))
	}
	if len(d.Steps) == 0 {
		return errors.Join(append(errs, errors.New("workflow has no steps"))...)
	}
	ids := make(map[string]StepDef, len(d.Steps))
	for _, s := range d.Steps {
		if s.Id == "" {
			errs = append(errs, errors.New("step with empty id"))
			continue
		}
		if _, ok := ids[s.Id]; ok {
			errs = append(errs, fmt.Errorf("duplicate step %s", s.Id))
		}
		ids[s.Id] = s
	}
	terminals := 0
	for i, s := range d.Steps {
		if !s.Kind.Valid() {
			errs = append(errs, fmt.Errorf("step %s: unknown kind %q", s.Id, s.Kind))
		}
		if !gate.KnownValidator(s.Validator) {
			errs = append(errs, fmt.Errorf("step %s: unknown validator %q", s.Id, s.Validator))
		}
		if s.Confirmable && s.Kind != model.INPUT_PHOTO {
			errs = append(errs, fmt.Errorf("step %s: only photo steps can be confirmable", s.Id))
		}
		if s.Terminal {
			terminals++
			if s.Next != "" || s.Branch != nil {
				errs = append(errs, fmt.Errorf("step %s: terminal step cannot have a successor", s.Id))
			}
		} else if s.Next == "" && s.Branch == nil && i == len(d.Steps)-1 {
			errs = append(errs, fmt.Errorf("step %s: no successor and not terminal", s.Id))
		}
		if s.Next != "" {
			if _, ok := ids[s.Next]; !ok {
				errs = append(errs, fmt.Errorf("step %s: next %s does not exist", s.Id, s.Next))
			}
		}
		if s.Branch != nil {
			errs = append(errs, validateBranch(s, ids)...)
		}
		if s.BackLocked && len(s.Back) > 0 {
			errs = append(errs, fmt.Errorf("step %s: back_locked step cannot list back targets", s.Id))
		}
		if !s.BackLocked && len(s.Back) == 0 {
			errs = append(errs, fmt.Errorf("step %s: no back mapping, list back targets or set back_locked", s.Id))
		}
		for _, b := range s.Back {
			if _, ok := ids[b]; !ok {
				errs = append(errs, fmt.Errorf("step %s: back target %s does not exist", s.Id, b))
			}
		}
	}
	if terminals == 0 {
		errs = append(errs, errors.New("workflow has no terminal step"))
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	for i, s := range d.Steps {
		for _, target := range forwardEdges(d.Steps, i) {
			t := ids[target]
			if !t.BackLocked && !util.Contains(t.Back, s.Id) {
				errs = append(errs, fmt.Errorf("step %s: reachable from %s but %s is not in its back targets", target, s.Id, s.Id))
			}
		}
	}
	return errors.Join(errs...)
}

func validateBranch(s StepDef, ids map[string]StepDef) []error {
	var errs []error
	expr := strings.TrimSuffix(strings.TrimPrefix(s.Branch.Expression, "{"), "}")
	if !strings.HasPrefix(expr, "$") {
		errs = append(errs, fmt.Errorf("step %s: branch expression must be a jsonpath", s.Id))
	}
	if len(s.Branch.Cases) == 0 {
		errs = append(errs, fmt.Errorf("step %s: branch has no cases", s.Id))
	}
	for k, target := range s.Branch.Cases {
		if _, ok := ids[target]; !ok {
			errs = append(errs, fmt.Errorf("step %s: branch case %s target %s does not exist", s.Id, k, target))
		}
	}
	if s.Branch.Default != "" {
		if _, ok := ids[s.Branch.Default]; !ok {
			errs = append(errs, fmt.Errorf("step %s: branch default %s does not exist", s.Id, s.Branch.Default))
		}
	}
	return errs
}

// forwardEdges lists every step reachable in one forward move from steps[i].
func forwardEdges(steps []StepDef, i int) []string {
	s := steps[i]
	if s.Terminal {
		return nil
	}
	var edges []string
	if s.Branch != nil {
		for _, t := range s.Branch.Cases {
			if !util.Contains(edges, t) {
				edges = append(edges, t)
			}
		}
		if s.Branch.Default != "" && !util.Contains(edges, s.Branch.Default) {
			edges = append(edges, s.Branch.Default)
		}
		return edges
	}
	if s.Next != "" {
		return []string{s.Next}
	}
	if i+1 < len(steps) {
		return []string{steps[i+1].Id}
	}
	return nil
}
