package colony

import (
	"errors"
	"math"
	"testing"

	"ticksim/internal/pulse"
)

func TestHeatSourceOutput(t *testing.T) {
	env := NewEnvironment(295)

	tests := []struct {
		src  HeatSource
		want float64
	}{
		{HeatSource{Kind: SolarHeat, MaxHeat: 10}, 5},
		{HeatSource{Kind: ElectricHeat, MaxHeat: 10, Load: 0.25}, 2.5},
		{HeatSource{Kind: FuelHeat, MaxHeat: 10, Load: 3}, 10},
		{HeatSource{Kind: ThermalNuclear, MaxHeat: 10, Load: 0}, 10},
		{HeatSource{Kind: HeatKind(42), MaxHeat: 10}, 0},
	}
	for _, tt := range tests {
		if got := tt.src.Output(env); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("%v output = %v, want %v", tt.src.Kind, got, tt.want)
		}
	}
}

func TestEnvironmentIsShared(t *testing.T) {
	env := NewEnvironment(0)
	a := NewBuilding("a", env, HeatSource{Kind: SolarHeat, MaxHeat: 1})
	b := NewBuilding("b", env, HeatSource{Kind: SolarHeat, MaxHeat: 1})

	a.TimePassing(&pulse.Pulse{ID: 1, Elapsed: 1})
	env.SetIrradiance(10_000) // clamped to MaxIrradiance
	b.TimePassing(&pulse.Pulse{ID: 1, Elapsed: 1})

	if a.Heat() != 0 {
		t.Fatalf("a heat = %v, want 0 in the dark", a.Heat())
	}
	if math.Abs(b.Heat()-SecondsPerMillisol) > 1e-9 {
		t.Fatalf("b heat = %v, want %v", b.Heat(), SecondsPerMillisol)
	}
}

func TestBuildingRejectsStalePulses(t *testing.T) {
	b := NewBuilding("hab", NewEnvironment(0), HeatSource{Kind: ElectricHeat, MaxHeat: 2, Load: 1})

	if err := b.TimePassing(&pulse.Pulse{ID: 2, Elapsed: 1}); err != nil {
		t.Fatalf("TimePassing: %v", err)
	}
	err := b.TimePassing(&pulse.Pulse{ID: 2, Elapsed: 1})
	if !errors.Is(err, ErrStalePulse) {
		t.Fatalf("err = %v, want ErrStalePulse", err)
	}
	if b.Pulses() != 1 {
		t.Fatalf("Pulses() = %d, want 1", b.Pulses())
	}

	b.SetLoad(0.5)
	b.TimePassing(&pulse.Pulse{ID: 3, Elapsed: 2})
	want := 2*SecondsPerMillisol + 2*0.5*2*SecondsPerMillisol
	if math.Abs(b.Heat()-want) > 1e-9 {
		t.Fatalf("Heat() = %v, want %v", b.Heat(), want)
	}
}
