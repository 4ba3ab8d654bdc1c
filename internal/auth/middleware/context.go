package auth

import (
	"context"

	"github.com/mind-engage/examroom/internal/exam"
)

type subjectKey struct{}
type groupKey struct{}
type participantKey struct{}

func value[T any](ctx context.Context, key any) (T, bool) {
	v, ok := ctx.Value(key).(T)
	return v, ok
}

// WithSubject stores the token subject (participant id).
func WithSubject(ctx context.Context, sub string) context.Context {
	return context.WithValue(ctx, subjectKey{}, sub)
}

func SubjectFromContext(ctx context.Context) string {
	s, _ := value[string](ctx, subjectKey{})
	return s
}

func WithGroup(ctx context.Context, group string) context.Context {
	return context.WithValue(ctx, groupKey{}, group)
}

func GroupFromContext(ctx context.Context) string {
	g, _ := value[string](ctx, groupKey{})
	return g
}

func WithParticipant(ctx context.Context, p exam.Participant) context.Context {
	return context.WithValue(ctx, participantKey{}, p)
}

// ParticipantFromContext returns the account loaded by AttachParticipant.
func ParticipantFromContext(ctx context.Context) (exam.Participant, bool) {
	return value[exam.Participant](ctx, participantKey{})
}
