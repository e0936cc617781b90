package service

import (
	"errors"
	"testing"
	"time"

	"signage-server/internal/model"
)

// seedPresentation 创建一个带两页的演示文稿
func seedPresentation(t *testing.T, env *testEnv, name string, isDefault, active bool) *model.Presentation {
	t.Helper()
	p := &model.Presentation{
		Name:          name,
		IsDefault:     isDefault,
		IsActive:      active,
		SlideDuration: 10,
		Transition:    "fade",
		Loop:          true,
		Slides: []model.Slide{
			{Position: 2, ImageURL: "https://cdn.example.com/" + name + "/2.png"},
			{Position: 1, ImageURL: "https://cdn.example.com/" + name + "/1.png"},
		},
	}
	if err := env.db.Create(p).Error; err != nil {
		t.Fatalf("seed presentation: %v", err)
	}
	return p
}

func TestDefaultPresentation(t *testing.T) {
	env := newTestEnv(t)

	got, err := env.presentations.Default(bg)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatalf("default with empty table = %+v, want nil", got)
	}

	seedPresentation(t, env, "inactive", true, false)
	want := seedPresentation(t, env, "welcome", true, true)
	seedPresentation(t, env, "menu", false, true)

	got, err = env.presentations.Default(bg)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.ID != want.ID {
		t.Fatalf("default = %+v, want %d", got, want.ID)
	}
	if len(got.Slides) != 2 || got.Slides[0].Position != 1 {
		t.Errorf("slides not ordered by position: %+v", got.Slides)
	}
}

func TestAssignedPresentationUnknownDevice(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.presentations.Assigned(bg, "ghost"); !errors.Is(err, ErrDeviceNotFound) {
		t.Fatalf("err = %v, want ErrDeviceNotFound", err)
	}
}

func TestAssignedPresentationDeactivatedLater(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "D1")
	p := seedPresentation(t, env, "promo", false, true)
	if err := env.devices.AssignPresentation(bg, "D1", &p.ID, ""); err != nil {
		t.Fatal(err)
	}

	env.clock.Advance(time.Minute)
	if err := env.db.Model(&model.Presentation{}).Where("id = ?", p.ID).Update("is_active", false).Error; err != nil {
		t.Fatal(err)
	}

	got, err := env.presentations.Assigned(bg, "D1")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("assigned = %+v, want nil for an inactive presentation", got)
	}
}
