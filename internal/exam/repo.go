package exam

import "context"

// CatalogStore is the read side of the data-sync collaborator plus the
// snapshot write used by administrators.
type CatalogStore interface {
	PutCatalog(ctx context.Context, c Catalog) error
	Catalog(ctx context.Context) (Catalog, error)
	GetModule(ctx context.Context, id string) (Module, error)
	GetGroup(ctx context.Context, id string) (Group, error)
	// SubjectPool returns every question owned by the given subjects.
	SubjectPool(ctx context.Context, subjectIDs []string) ([]Question, error)
	// Questions returns the questions with the given ids, in no particular order.
	Questions(ctx context.Context, ids []string) ([]Question, error)
}

// ResultStore persists TestResults. Writes are append-only; the only removal
// is DeleteFailing, used by restart grants.
type ResultStore interface {
	// InsertResult stores r unless a result with the same participant, module
	// and date exists; in both cases the stored row is returned.
	InsertResult(ctx context.Context, r TestResult) (TestResult, bool, error)
	FindResult(ctx context.Context, id string) (TestResult, error)
	ListResults(ctx context.Context, f ResultFilter) ([]TestResult, error)
	// DeleteFailing removes results matching f that are not passing.
	DeleteFailing(ctx context.Context, f ResultFilter) (int, error)
}

type UserStore interface {
	GetParticipant(ctx context.Context, id string) (Participant, error)
	FindByUsername(ctx context.Context, username string) (Participant, string, error) // participant, password hash
	UpsertParticipants(ctx context.Context, rows []ParticipantRow) (inserted, updated int, err error)
	ListParticipants(ctx context.Context, role Role) ([]Participant, error)
	SetPasswordHash(ctx context.Context, id, hash string) error
}

// ParticipantRow is an account upsert. An empty PasswordHash keeps the stored one.
type ParticipantRow struct {
	Participant
	PasswordHash string `json:"-"`
}
