package exam

import "fmt"

// MinOptions is the smallest option count a single-choice question can have.
const MinOptions = 2

// Validate checks the option invariant. optionCount > 0 additionally pins the
// exact number of options.
func (q Question) Validate(optionCount int) error {
	if len(q.Options) < MinOptions {
		return fmt.Errorf("%w: question %s has %d options", ErrMalformedQuestion, q.ID, len(q.Options))
	}
	if optionCount > 0 && len(q.Options) != optionCount {
		return fmt.Errorf("%w: question %s has %d options, want %d", ErrMalformedQuestion, q.ID, len(q.Options), optionCount)
	}
	if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
		return fmt.Errorf("%w: question %s correct index %d out of range", ErrMalformedQuestion, q.ID, q.CorrectIndex)
	}
	return nil
}

// Valid is Validate without the exact count constraint.
func (q Question) Valid() bool { return q.Validate(0) == nil }

// Validate rejects modules that cannot be authored.
func (m Module) Validate() error {
	if len(m.SubjectConfigs) == 0 {
		return fmt.Errorf("%w: module %s has no subject configs", ErrMalformedModuleConfig, m.ID)
	}
	seen := make(map[string]bool, len(m.SubjectConfigs))
	for _, c := range m.SubjectConfigs {
		if c.SubjectID == "" {
			return fmt.Errorf("%w: module %s has a config without subject", ErrMalformedModuleConfig, m.ID)
		}
		if c.QuestionCount <= 0 {
			return fmt.Errorf("%w: module %s subject %s question count %d", ErrMalformedModuleConfig, m.ID, c.SubjectID, c.QuestionCount)
		}
		if seen[c.SubjectID] {
			return fmt.Errorf("%w: module %s repeats subject %s", ErrMalformedModuleConfig, m.ID, c.SubjectID)
		}
		seen[c.SubjectID] = true
	}
	return m.Runnable()
}

// Runnable is the subset of Validate a session needs at start: a known kind
// and usable settings. Subject configs with a non-positive count are left
// for the draw to skip.
func (m Module) Runnable() error {
	s := m.Settings
	if s.DurationMinutes <= 0 {
		return fmt.Errorf("%w: module %s duration %d", ErrMalformedModuleConfig, m.ID, s.DurationMinutes)
	}
	if s.PointsPerAnswer < 0 || s.PassingScore < 0 {
		return fmt.Errorf("%w: module %s has negative scoring settings", ErrMalformedModuleConfig, m.ID)
	}
	switch m.Kind {
	case KindGraded, KindPractice:
	default:
		return fmt.Errorf("%w: module %s kind %q", ErrMalformedModuleConfig, m.ID, m.Kind)
	}
	return nil
}

// Validate checks every record and the references between them.
func (c Catalog) Validate(optionCount int) error {
	subjects := make(map[string]bool, len(c.Subjects))
	for _, s := range c.Subjects {
		if s.ID == "" {
			return fmt.Errorf("%w: subject without id", ErrMalformedModuleConfig)
		}
		subjects[s.ID] = true
	}
	groups := make(map[string]bool, len(c.Groups))
	for _, g := range c.Groups {
		if g.ID == "" {
			return fmt.Errorf("%w: group without id", ErrMalformedModuleConfig)
		}
		groups[g.ID] = true
	}
	for _, m := range c.Modules {
		if m.ID == "" {
			return fmt.Errorf("%w: module without id", ErrMalformedModuleConfig)
		}
		if err := m.Validate(); err != nil {
			return err
		}
		for _, cfg := range m.SubjectConfigs {
			if !subjects[cfg.SubjectID] {
				return fmt.Errorf("%w: module %s references unknown subject %s", ErrMalformedModuleConfig, m.ID, cfg.SubjectID)
			}
		}
		for _, g := range m.GroupIDs {
			if !groups[g] {
				return fmt.Errorf("%w: module %s references unknown group %s", ErrMalformedModuleConfig, m.ID, g)
			}
		}
	}
	for _, q := range c.Questions {
		if q.ID == "" {
			return fmt.Errorf("%w: question without id", ErrMalformedQuestion)
		}
		if !subjects[q.SubjectID] {
			return fmt.Errorf("%w: question %s references unknown subject %s", ErrMalformedQuestion, q.ID, q.SubjectID)
		}
		if err := q.Validate(optionCount); err != nil {
			return err
		}
	}
	return nil
}

// LinkGroups fills Group.ModuleIDs from the modules' group assignments.
func (c *Catalog) LinkGroups() {
	byGroup := map[string][]string{}
	for _, m := range c.Modules {
		for _, g := range m.GroupIDs {
			byGroup[g] = append(byGroup[g], m.ID)
		}
	}
	for i := range c.Groups {
		c.Groups[i].ModuleIDs = byGroup[c.Groups[i].ID]
	}
}
