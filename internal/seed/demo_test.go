package seed

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/examroom/internal/exam"
)

func TestDemoSeedsOnce(t *testing.T) {
	ctx := context.Background()
	s := exam.NewInMemoryStore()
	wrote, err := Demo(ctx, s, s, bcrypt.MinCost, zap.NewNop())
	if err != nil || !wrote {
		t.Fatalf("first seed = %v, %v", wrote, err)
	}
	m, err := s.GetModule(ctx, "mod-rangtasvir")
	if err != nil || m.Settings.PassingScore != 15 || m.IsPractice() {
		t.Fatalf("graded module = %+v, %v", m, err)
	}
	pool, _ := s.SubjectPool(ctx, []string{"subj-demo"})
	if len(pool) != 3 {
		t.Fatalf("demo pool = %d", len(pool))
	}
	p, hash, err := s.FindByUsername(ctx, "tinglovchi")
	if err != nil || p.GroupID != "grp-2024-01" || bcrypt.CompareHashAndPassword([]byte(hash), []byte(DemoPassword)) != nil {
		t.Fatalf("participant = %+v, %v", p, err)
	}

	// a changed catalog is left alone on the second run
	if err := s.PutCatalog(ctx, exam.Catalog{}); err != nil {
		t.Fatal(err)
	}
	wrote, err = Demo(ctx, s, s, bcrypt.MinCost, zap.NewNop())
	if err != nil || wrote {
		t.Fatalf("second seed = %v, %v", wrote, err)
	}
	if _, err := s.GetModule(ctx, "mod-rangtasvir"); err == nil {
		t.Fatalf("second run rewrote the catalog")
	}
}
