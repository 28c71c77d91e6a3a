package game

// Rand is the random source used by placement and event parameters.
// *math/rand/v2.Rand satisfies it.
type Rand interface {
	IntN(n int) int
	Float64() float64
}

// PinGenerator places pins inside a polygon.
type PinGenerator struct {
	area   Polygon
	bounds Bounds
	center Coordinate
	rng    Rand
}

// NewPinGenerator creates a generator for the given area. center is used for
// the deterministic fallback and should lie inside the area.
func NewPinGenerator(area Polygon, center Coordinate, rng Rand) *PinGenerator {
	return &PinGenerator{
		area:   area,
		bounds: area.Bounds(),
		center: center,
		rng:    rng,
	}
}

// Generate returns exactly count coordinates inside the area whose keys are
// pairwise distinct and not in excluded. When rejection sampling runs out of
// attempts the remainder comes from a fixed sequence around the center, which
// keeps the count exact at the cost of placement quality.
func (g *PinGenerator) Generate(count int, excluded map[string]struct{}) []Coordinate {
	if count <= 0 {
		return []Coordinate{}
	}

	used := make(map[string]struct{}, len(excluded)+count)
	for k := range excluded {
		used[k] = struct{}{}
	}

	out := make([]Coordinate, 0, count)
	budget := count * attemptsPerPinTotal
	for len(out) < count && budget > 0 {
		c, ok := g.sample(used, &budget)
		if !ok {
			break
		}
		used[c.Key()] = struct{}{}
		out = append(out, c)
	}

	for step := 1; len(out) < count; step++ {
		c := g.fallbackAt(step)
		if _, taken := used[c.Key()]; taken {
			continue
		}
		used[c.Key()] = struct{}{}
		out = append(out, c)
	}

	return out
}

// sample draws random points until one is inside the area and unused, or the
// per-pin cap or shared budget runs out.
func (g *PinGenerator) sample(used map[string]struct{}, budget *int) (Coordinate, bool) {
	for i := 0; i < maxAttemptsPerPin && *budget > 0; i++ {
		*budget--
		c := Coordinate{
			Lat: g.bounds.MinLat + g.rng.Float64()*(g.bounds.MaxLat-g.bounds.MinLat),
			Lng: g.bounds.MinLng + g.rng.Float64()*(g.bounds.MaxLng-g.bounds.MinLng),
		}
		if !g.area.Contains(c) {
			continue
		}
		if _, taken := used[c.Key()]; taken {
			continue
		}
		return Coordinate{Lat: round(c.Lat), Lng: round(c.Lng)}, true
	}
	return Coordinate{}, false
}

// fallbackAt walks outward from the center along a diagonal.
func (g *PinGenerator) fallbackAt(step int) Coordinate {
	offset := float64(step) * FallbackStep
	return Coordinate{Lat: round(g.center.Lat + offset), Lng: round(g.center.Lng + offset)}
}
