/*package drag contains the gas-particle drag laws. A Law returns the
normalised drag force F(Re, ep_g); the momentum exchange coefficient of a
particle with diameter d is then beta = 3 pi mu d ep_g F.
*/
package drag

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
)

// Law is a drag correlation.
type Law interface {
	// Coefficient returns the normalised drag F for a particle Reynolds
	// number re = ep_g ro_g |u_g - v_p| d / mu_g and gas volume fraction epg.
	Coefficient(re, epg float64) float64
	Name() string
}

// Beta returns the momentum exchange coefficient of a single particle.
func Beta(law Law, mu, ro, epg, d float64, slip [3]float64) float64 {
	w := math.Sqrt(slip[0]*slip[0] + slip[1]*slip[1] + slip[2]*slip[2])
	re := epg * ro * w * d / mu
	return 3 * math.Pi * mu * d * epg * law.Coefficient(re, epg)
}

// WenYu is the Wen & Yu (1966) correlation.
type WenYu struct{}

// Gidaspow blends the Ergun equation in dense regions with Wen & Yu in
// dilute ones.
type Gidaspow struct{}

// BVK2 is the Beetstra, van der Hoef & Kuipers (2007) correlation.
type BVK2 struct{}

// User wraps a user-supplied function.
type User struct {
	Label string
	F     func(re, epg float64) float64
}

func (WenYu) Name() string    { return "WenYu" }
func (Gidaspow) Name() string { return "Gidaspow" }
func (BVK2) Name() string     { return "BVK2" }
func (u User) Name() string   { return u.Label }

func (WenYu) Coefficient(re, epg float64) float64 {
	return cdRe(re) / 24 * math.Pow(epg, -3.65)
}

// cdRe returns C_D * Re for a single sphere.
func cdRe(re float64) float64 {
	if re < 1000 {
		return 24 * (1 + 0.15*math.Pow(re, 0.687))
	}
	return 0.44 * re
}

func (Gidaspow) Coefficient(re, epg float64) float64 {
	if epg < 0.8 {
		phis := 1 - epg
		return 150*phis/(18*epg*epg) + 1.75*re/(18*epg*epg)
	}
	return WenYu{}.Coefficient(re, epg)
}

func (BVK2) Coefficient(re, epg float64) float64 {
	phis := 1 - epg
	f := 10*phis/(epg*epg) + epg*epg*(1+1.5*math.Sqrt(phis))
	if re > 0 {
		num := 1/epg + 3*epg*phis + 8.4*math.Pow(re, -0.343)
		den := 1 + math.Pow(10, 3*phis)*math.Pow(re, -(1+4*phis)/2)
		f += 0.413 * re / (24 * epg * epg) * num / den
	}
	return f
}

func (u User) Coefficient(re, epg float64) float64 { return u.F(re, epg) }

var (
	registryLock sync.RWMutex
	registry     = map[string]Law{}
)

func init() {
	for _, law := range []Law{WenYu{}, Gidaspow{}, BVK2{}} {
		registry[strings.ToLower(law.Name())] = law
	}
}

// Register makes a law available to Lookup under its name. Built-in laws
// can't be replaced.
func Register(law Law) error {
	registryLock.Lock()
	defer registryLock.Unlock()

	key := strings.ToLower(law.Name())
	if key == "" {
		return fmt.Errorf("drag law has an empty name")
	}
	if old, ok := registry[key]; ok {
		if _, user := old.(User); !user {
			return fmt.Errorf("drag law '%s' is built in", law.Name())
		}
	}
	registry[key] = law
	return nil
}

// Lookup returns the law with the given (case-insensitive) name.
func Lookup(name string) (Law, error) {
	registryLock.RLock()
	defer registryLock.RUnlock()

	law, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("'%s' is not a drag law. Options are %s",
			name, strings.Join(namesLocked(), ", "))
	}
	return law, nil
}

// Names returns the names of every registered law.
func Names() []string {
	registryLock.RLock()
	defer registryLock.RUnlock()
	return namesLocked()
}

func namesLocked() []string {
	names := make([]string, 0, len(registry))
	for _, law := range registry {
		names = append(names, law.Name())
	}
	sort.Strings(names)
	return names
}
