package strategy

import (
	"errors"
	"testing"

	"schicchi/internal/domain"
)

type fakeStrategy struct{ name string }

func (f *fakeStrategy) Name() string { return f.name }
func (f *fakeStrategy) Generate(bars []domain.Bar) ([]Signal, error) {
	return make([]Signal, len(bars)), nil
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register("beta", func(Params) (Strategy, error) { return &fakeStrategy{"beta"}, nil })
	r.Register("alpha", func(Params) (Strategy, error) { return &fakeStrategy{"alpha"}, nil })

	names := r.List()
	if len(names) != 2 || names[0] != "alpha" || names[1] != "beta" {
		t.Errorf("List() = %v, want [alpha beta]", names)
	}

	s, err := r.New("alpha", nil)
	if err != nil {
		t.Fatalf("New(alpha) error = %v", err)
	}
	if s.Name() != "alpha" {
		t.Errorf("Name() = %q, want alpha", s.Name())
	}

	if _, err := r.New("missing", nil); err == nil {
		t.Error("New(missing) error = nil, want error")
	}
	if _, ok := r.Get("missing"); ok {
		t.Error("Get(missing) ok = true, want false")
	}
}

func TestParamsGet(t *testing.T) {
	p := Params{"a": 1.5}
	if got := p.Get("a", 9); got != 1.5 {
		t.Errorf("Get(a) = %v, want 1.5", got)
	}
	if got := p.Get("b", 9); got != 9 {
		t.Errorf("Get(b) = %v, want default 9", got)
	}
}

func TestParamsGetInt(t *testing.T) {
	p := Params{"n": 14, "frac": 2.5}

	n, err := p.GetInt("n", 0)
	if err != nil || n != 14 {
		t.Errorf("GetInt(n) = %d, %v, want 14, nil", n, err)
	}
	n, err = p.GetInt("absent", 7)
	if err != nil || n != 7 {
		t.Errorf("GetInt(absent) = %d, %v, want default 7, nil", n, err)
	}
	if _, err := p.GetInt("frac", 0); !errors.Is(err, domain.ErrBadParameter) {
		t.Errorf("GetInt(frac) error = %v, want ErrBadParameter", err)
	}
}
