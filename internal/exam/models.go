package exam

import "time"

// Kind separates single-attempt graded modules from practice (demo) modules.
type Kind string

const (
	KindGraded   Kind = "graded"
	KindPractice Kind = "practice"
)

type Role string

const (
	RoleAdmin       Role = "ADMIN"
	RoleManager     Role = "MANAGER"
	RoleParticipant Role = "PARTICIPANT"
)

type Subject struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	IsDemo bool   `json:"isDemo,omitempty"`
}

// Question is one single-choice item. CorrectIndex points into Options.
type Question struct {
	ID           string   `json:"id"`
	SubjectID    string   `json:"subjectId"`
	Text         string   `json:"text"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
}

type SubjectConfig struct {
	SubjectID     string `json:"subjectId"`
	QuestionCount int    `json:"questionCount"`
}

type Settings struct {
	PointsPerAnswer int  `json:"pointsPerAnswer"`
	DurationMinutes int  `json:"durationMinutes"`
	PassingScore    int  `json:"passingScore"`
	Randomize       bool `json:"randomize"`
	IsActive        bool `json:"isActive"`
}

// Duration is the wall-clock budget of one session.
func (s Settings) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

type Module struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Kind           Kind            `json:"kind"`
	GroupIDs       []string        `json:"groupIds"`
	SubjectConfigs []SubjectConfig `json:"subjectConfigs"`
	Settings       Settings        `json:"settings"`
}

func (m Module) IsPractice() bool { return m.Kind == KindPractice }

// AssignedTo reports whether the module is visible to the group.
func (m Module) AssignedTo(groupID string) bool {
	if groupID == "" {
		return false
	}
	for _, g := range m.GroupIDs {
		if g == groupID {
			return true
		}
	}
	return false
}

// SubjectIDs lists the configured subjects in config order.
func (m Module) SubjectIDs() []string {
	out := make([]string, 0, len(m.SubjectConfigs))
	for _, c := range m.SubjectConfigs {
		out = append(out, c.SubjectID)
	}
	return out
}

type Group struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	IsArchived bool     `json:"isArchived"`
	ModuleIDs  []string `json:"moduleIds"` // derived from Module.GroupIDs
}

// InScope reports whether a module falls under the group's assignment.
// A group with no assigned modules scopes every module.
func (g Group) InScope(moduleID string) bool {
	if len(g.ModuleIDs) == 0 {
		return true
	}
	for _, id := range g.ModuleIDs {
		if id == moduleID {
			return true
		}
	}
	return false
}

type Participant struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	FullName  string `json:"fullName"`
	Workplace string `json:"workplace,omitempty"`
	Role      Role   `json:"role"`
	GroupID   string `json:"groupId,omitempty"`
}

type TestResult struct {
	ID             string    `json:"id"`
	ParticipantID  string    `json:"participantId"`
	ModuleID       string    `json:"moduleId"`
	GroupID        string    `json:"groupId,omitempty"`
	CorrectAnswers int       `json:"correctAnswers"`
	TotalQuestions int       `json:"totalQuestions"`
	Score          int       `json:"score"`
	IsPassed       bool      `json:"isPassed"`
	Date           time.Time `json:"date"`
	TimeTaken      *int      `json:"timeTaken,omitempty"` // seconds
}

// ResultDate truncates t to the millisecond precision results are stored with.
func ResultDate(t time.Time) time.Time {
	return time.UnixMilli(t.UnixMilli()).UTC()
}

// Catalog is a whole-collection snapshot handed over by the data-sync side.
type Catalog struct {
	Groups    []Group    `json:"groups"`
	Subjects  []Subject  `json:"subjects"`
	Modules   []Module   `json:"modules"`
	Questions []Question `json:"questions"`
}

// ResultFilter narrows result queries. Empty fields do not filter.
// A nil ModuleIDs does not filter; a non-nil empty slice matches nothing.
type ResultFilter struct {
	ParticipantID string
	ModuleID      string
	GroupID       string
	ModuleIDs     []string
	Kind          Kind
	FailedOnly    bool
}
