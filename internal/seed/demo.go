// Package seed loads the demo catalog and accounts into empty stores.
package seed

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/examroom/internal/exam"
)

const DemoPassword = "123"

func q(id, subject, text string, correct int, opts ...string) exam.Question {
	return exam.Question{ID: id, SubjectID: subject, Text: text, Options: opts, CorrectIndex: correct}
}

// DemoCatalog is one group with a graded module and a practice module.
func DemoCatalog() exam.Catalog {
	return exam.Catalog{
		Groups: []exam.Group{{ID: "grp-2024-01", Name: "Tasviriy San'at - 2024-01"}},
		Subjects: []exam.Subject{
			{ID: "subj-nazariya", Name: "Tasviriy San'at Nazariyasi"},
			{ID: "subj-demo", Name: "Demo: Tasviriy San'at Nazariyasi", IsDemo: true},
		},
		Modules: []exam.Module{
			{
				ID: "mod-rangtasvir", Name: "Rangtasvir va Kompozitsiya", Kind: exam.KindGraded,
				GroupIDs:       []string{"grp-2024-01"},
				SubjectConfigs: []exam.SubjectConfig{{SubjectID: "subj-nazariya", QuestionCount: 5}},
				Settings:       exam.Settings{PointsPerAnswer: 5, DurationMinutes: 10, PassingScore: 15, Randomize: true, IsActive: true},
			},
			{
				ID: "mod-demo-ranglar", Name: "Demo: Ranglar asoslari", Kind: exam.KindPractice,
				GroupIDs:       []string{"grp-2024-01"},
				SubjectConfigs: []exam.SubjectConfig{{SubjectID: "subj-demo", QuestionCount: 3}},
				Settings:       exam.Settings{PointsPerAnswer: 5, DurationMinutes: 8, PassingScore: 10, Randomize: true, IsActive: true},
			},
		},
		Questions: []exam.Question{
			q("q-1", "subj-nazariya", "Guanash bo'yog'i qanday asosga ega?", 0, "Suv", "Moy", "Sirt", "Lola"),
			q("q-2", "subj-nazariya", "Kompozitsiya qonuniyatlariga nima kirmaydi?", 1, "Yaxlitlik", "Mantiqsizlik", "Kontrast", "Muvozanat"),
			q("q-3", "subj-nazariya", "Asosiy ranglar necha xil?", 1, "2 ta", "3 ta", "5 ta", "7 ta"),
			q("q-4", "subj-nazariya", "Akvarel texnikasida eng muhim vosita nima?", 2, "Loyiha", "Qalam", "Suv", "Yog'"),
			q("q-5", "subj-nazariya", "Portret janri nimani tasvirlaydi?", 2, "Tabiatni", "Hayvonlarni", "Insonni", "Binolarni"),
			q("q-6", "subj-demo", "Sariq va ko'k aralashsa qaysi rang hosil bo'ladi?", 0, "Yashil", "Qizil", "Binafsha", "Qora"),
			q("q-7", "subj-demo", "Kontrast nimani anglatadi?", 1, "Bir xil ranglar", "Farqli elementlar kuchi", "Faqat qora rang", "Faqat oq rang"),
			q("q-8", "subj-demo", "Kompozitsiyada muvozanat nima?", 1, "Tasodifiy joylashuv", "Elementlar uyg'unligi", "Faqat markaz", "Rangsizlik"),
		},
	}
}

// DemoAccounts all share DemoPassword.
func DemoAccounts() []exam.Participant {
	return []exam.Participant{
		{ID: "usr-admin", Username: "admin", FullName: "Admin User", Workplace: "Markaz", Role: exam.RoleAdmin},
		{ID: "usr-manager", Username: "manager", FullName: "Menejer Bekzod", Workplace: "Markaz", Role: exam.RoleManager},
		{ID: "usr-tinglovchi", Username: "tinglovchi", FullName: "Ali Valiyev", Workplace: "Maktab 1", Role: exam.RoleParticipant, GroupID: "grp-2024-01"},
	}
}

// Demo writes the demo data unless an "admin" account already exists. It
// reports whether anything was written.
func Demo(ctx context.Context, catalog exam.CatalogStore, users exam.UserStore, cost int, log *zap.Logger) (bool, error) {
	_, _, err := users.FindByUsername(ctx, "admin")
	switch {
	case err == nil:
		log.Warn("seed already exists, skipping")
		return false, nil
	case !errors.Is(err, exam.ErrParticipantNotFound):
		return false, err
	}

	c := DemoCatalog()
	if err := c.Validate(4); err != nil {
		return false, fmt.Errorf("demo catalog: %w", err)
	}
	if err := catalog.PutCatalog(ctx, c); err != nil {
		return false, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), cost)
	if err != nil {
		return false, err
	}
	var rows []exam.ParticipantRow
	for _, p := range DemoAccounts() {
		rows = append(rows, exam.ParticipantRow{Participant: p, PasswordHash: string(hash)})
	}
	if _, _, err := users.UpsertParticipants(ctx, rows); err != nil {
		return false, err
	}
	log.Info("demo data seeded",
		zap.Int("modules", len(c.Modules)),
		zap.Int("questions", len(c.Questions)),
		zap.Int("accounts", len(rows)))
	return true, nil
}
