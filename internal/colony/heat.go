// Package colony holds the settlement entities driven by the clock: heat
// sources and the buildings that own them.
package colony

import (
	"math"
	"sync"
)

// MaxIrradiance is the solar irradiance at the top of the Martian
// atmosphere, in W/m2. Solar heat scales against it.
const MaxIrradiance = 590.0

// HeatKind selects how a heat source produces heat.
type HeatKind int

const (
	SolarHeat HeatKind = iota
	ElectricHeat
	FuelHeat
	ThermalNuclear
)

func (k HeatKind) String() string {
	switch k {
	case SolarHeat:
		return "solar"
	case ElectricHeat:
		return "electric"
	case FuelHeat:
		return "fuel"
	case ThermalNuclear:
		return "thermal-nuclear"
	default:
		return "unknown"
	}
}

// HeatSource is one heater of a building.
type HeatSource struct {
	Kind    HeatKind
	MaxHeat float64 // kW
	Load    float64 // 0..1, used by electric and fuel heaters
}

// Output returns the current heat output in kW.
func (h HeatSource) Output(env *Environment) float64 {
	switch h.Kind {
	case SolarHeat:
		return h.MaxHeat * env.Irradiance() / MaxIrradiance
	case ElectricHeat, FuelHeat:
		return h.MaxHeat * clamp01(h.Load)
	case ThermalNuclear:
		return h.MaxHeat
	default:
		return 0
	}
}

// Environment is the surface state shared by every building of a
// settlement. It is passed to each building explicitly.
type Environment struct {
	mu         sync.RWMutex
	irradiance float64
}

func NewEnvironment(irradiance float64) *Environment {
	env := &Environment{}
	env.SetIrradiance(irradiance)
	return env
}

func (e *Environment) SetIrradiance(v float64) {
	e.mu.Lock()
	e.irradiance = math.Max(0, math.Min(v, MaxIrradiance))
	e.mu.Unlock()
}

func (e *Environment) Irradiance() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.irradiance
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(v, 1))
}
