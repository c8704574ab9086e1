package store

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/veloma/internal/gesture"
)

func newPreset(name string) *Preset {
	return &Preset{
		ID:         uuid.NewString(),
		Name:       name,
		StartNote:  60,
		Octaves:    2,
		Scale:      "major",
		Instrument: "piano",
		Mode:       gesture.ModeDiscrete,
		Hands:      gesture.HandsSingle,
	}
}

func TestPresetRepository_Create(t *testing.T) {
	s := newTestStore(t)
	repo := s.Presets()

	p := newPreset("warmup")
	p.Mode = gesture.ModeContinuous
	p.Hands = gesture.HandsTwo

	if err := repo.Create(p); err != nil {
		t.Fatalf("failed to create preset: %v", err)
	}
	if p.CreatedAt.IsZero() || p.UpdatedAt.IsZero() {
		t.Error("timestamps should be set after create")
	}

	got, err := repo.GetByID(p.ID)
	if err != nil {
		t.Fatalf("failed to get preset by ID: %v", err)
	}
	if got.Name != p.Name || got.StartNote != 60 || got.Octaves != 2 {
		t.Errorf("preset mismatch: got %+v", got)
	}
	if got.Scale != "major" || got.Instrument != "piano" {
		t.Errorf("scale/instrument mismatch: got %q/%q", got.Scale, got.Instrument)
	}
	if got.Mode != gesture.ModeContinuous {
		t.Errorf("Mode = %v, want continuous", got.Mode)
	}
	if got.Hands != gesture.HandsTwo {
		t.Errorf("Hands = %v, want two", got.Hands)
	}

	byName, err := repo.GetByName("warmup")
	if err != nil {
		t.Fatalf("failed to get preset by name: %v", err)
	}
	if byName.ID != p.ID {
		t.Errorf("GetByName ID = %q, want %q", byName.ID, p.ID)
	}
}

func TestPresetRepository_DuplicateName(t *testing.T) {
	s := newTestStore(t)
	repo := s.Presets()

	if err := repo.Create(newPreset("blues jam")); err != nil {
		t.Fatalf("failed to create preset: %v", err)
	}
	err := repo.Create(newPreset("blues jam"))
	if !errors.Is(err, ErrDuplicateName) {
		t.Errorf("duplicate create error = %v, want ErrDuplicateName", err)
	}
}

func TestPresetRepository_NotFound(t *testing.T) {
	s := newTestStore(t)
	repo := s.Presets()

	if _, err := repo.GetByID("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID error = %v, want ErrNotFound", err)
	}
	if _, err := repo.GetByName("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByName error = %v, want ErrNotFound", err)
	}
	if err := repo.Update(newPreset("ghost")); !errors.Is(err, ErrNotFound) {
		t.Errorf("Update error = %v, want ErrNotFound", err)
	}
	if err := repo.Delete("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete error = %v, want ErrNotFound", err)
	}
}

func TestPresetRepository_List(t *testing.T) {
	s := newTestStore(t)
	repo := s.Presets()

	presets, err := repo.List()
	if err != nil {
		t.Fatalf("List on empty store: %v", err)
	}
	if len(presets) != 0 {
		t.Errorf("expected no presets, got %d", len(presets))
	}

	for _, name := range []string{"first", "second", "third"} {
		if err := repo.Create(newPreset(name)); err != nil {
			t.Fatalf("failed to create %q: %v", name, err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	presets, err = repo.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(presets) != 3 {
		t.Fatalf("expected 3 presets, got %d", len(presets))
	}
	if presets[0].Name != "third" {
		t.Errorf("most recent preset first: got %q", presets[0].Name)
	}
}

func TestPresetRepository_Update(t *testing.T) {
	s := newTestStore(t)
	repo := s.Presets()

	p := newPreset("lead")
	if err := repo.Create(p); err != nil {
		t.Fatalf("failed to create preset: %v", err)
	}
	created := p.UpdatedAt

	time.Sleep(5 * time.Millisecond)
	p.Scale = "blues"
	p.StartNote = 57
	p.Mode = gesture.ModeContinuous
	if err := repo.Update(p); err != nil {
		t.Fatalf("failed to update preset: %v", err)
	}
	if !p.UpdatedAt.After(created) {
		t.Error("UpdatedAt should advance on update")
	}

	got, err := repo.GetByID(p.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Scale != "blues" || got.StartNote != 57 || got.Mode != gesture.ModeContinuous {
		t.Errorf("update not persisted: %+v", got)
	}

	other := newPreset("other")
	if err := repo.Create(other); err != nil {
		t.Fatalf("failed to create preset: %v", err)
	}
	other.Name = "lead"
	if err := repo.Update(other); !errors.Is(err, ErrDuplicateName) {
		t.Errorf("rename onto existing name: error = %v, want ErrDuplicateName", err)
	}
}

func TestPresetRepository_Delete(t *testing.T) {
	s := newTestStore(t)
	repo := s.Presets()

	p := newPreset("temp")
	if err := repo.Create(p); err != nil {
		t.Fatalf("failed to create preset: %v", err)
	}
	if err := repo.Delete(p.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.GetByID(p.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID after delete = %v, want ErrNotFound", err)
	}
}

func TestSettingsRepository(t *testing.T) {
	s := newTestStore(t)
	repo := s.Settings()

	t.Run("missing key", func(t *testing.T) {
		if _, err := repo.Get("absent"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get error = %v, want ErrNotFound", err)
		}
		if err := repo.Delete("absent"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Delete error = %v, want ErrNotFound", err)
		}
	})

	t.Run("set replaces", func(t *testing.T) {
		if err := repo.Set(SettingLastPreset, "a"); err != nil {
			t.Fatal(err)
		}
		if err := repo.Set(SettingLastPreset, "b"); err != nil {
			t.Fatal(err)
		}
		got, err := repo.Get(SettingLastPreset)
		if err != nil || got != "b" {
			t.Errorf("Get = %q, %v; want b", got, err)
		}
	})

	t.Run("json", func(t *testing.T) {
		want := gesture.DefaultSettings()
		want.Mode = gesture.ModeContinuous
		want.HoldTimeoutMs = 150
		if err := repo.SetJSON(SettingMapping, want); err != nil {
			t.Fatalf("SetJSON: %v", err)
		}

		var got gesture.Settings
		if err := repo.GetJSON(SettingMapping, &got); err != nil {
			t.Fatalf("GetJSON: %v", err)
		}
		if got.Mode != want.Mode || got.HoldTimeoutMs != 150 || got.PitchRange != want.PitchRange {
			t.Errorf("round trip mismatch: got %+v", got)
		}
	})

	t.Run("delete", func(t *testing.T) {
		if err := repo.Delete(SettingLastPreset); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if _, err := repo.Get(SettingLastPreset); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get after delete = %v", err)
		}
	})
}
