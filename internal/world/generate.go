package world

import (
	"fmt"
	"math"
	"math/rand"
	"time"
)

// GenConfig captures the knobs used when generating a room's map.
type GenConfig struct {
	Seed            int64
	Bounds          Bounds
	ObjectCount     int
	WalnutCount     int
	Landmarks       []Landmark
	ExclusionRadius float64
	RedrawAttempts  int
	SpawnMargin     float64
}

// DefaultGenConfig returns the generation knobs for a standard room.
func DefaultGenConfig(seed int64) GenConfig {
	return GenConfig{
		Seed:            seed,
		Bounds:          DefaultBounds(),
		ObjectCount:     120,
		WalnutCount:     40,
		Landmarks:       DefaultLandmarks(),
		ExclusionRadius: 12,
		RedrawAttempts:  8,
		SpawnMargin:     10,
	}
}

// DefaultLandmarks lists the fixed clearings generation must keep open.
func DefaultLandmarks() []Landmark {
	return []Landmark{
		{Name: "spawn-clearing", Position: Vec3{X: 0, Z: 0}, Radius: 20},
		{Name: "great-oak", Position: Vec3{X: 120, Z: -80}, Radius: 15},
		{Name: "pond", Position: Vec3{X: -150, Z: 110}, Radius: 18},
	}
}

var objectTypes = []ObjectType{ObjectTree, ObjectTree, ObjectTree, ObjectBush, ObjectRock, ObjectStump}

// Generate produces the forest objects and system walnuts for a seed.
// Identical seeds produce identical maps on every run.
func Generate(cfg GenConfig) ([]ForestObject, []Walnut) {
	rng := rand.New(rand.NewSource(cfg.Seed))

	objects := make([]ForestObject, 0, cfg.ObjectCount)
	for i := 0; i < cfg.ObjectCount; i++ {
		pos := drawPlacement(rng, cfg)
		kind := objectTypes[rng.Intn(len(objectTypes))]
		objects = append(objects, ForestObject{
			ID:       fmt.Sprintf("obj-%d", i+1),
			Type:     kind,
			Position: pos,
			Scale:    0.8 + rng.Float64()*0.7,
			Variant:  rng.Intn(4),
		})
	}

	walnuts := make([]Walnut, 0, cfg.WalnutCount)
	for i := 0; i < cfg.WalnutCount; i++ {
		pos := drawPlacement(rng, cfg)
		method := MethodBuried
		if rng.Intn(2) == 1 {
			method = MethodBush
		}
		walnuts = append(walnuts, Walnut{
			ID:        fmt.Sprintf("walnut-sys-%d", i+1),
			Origin:    OriginSystem,
			Method:    method,
			Position:  pos,
			CreatedAt: time.Unix(0, 0),
		})
	}

	return objects, walnuts
}

// drawPlacement rejects draws inside a landmark exclusion zone and redraws
// up to the configured attempt budget. The final draw is pushed out of any
// remaining overlap so a pathological seed still terminates.
func drawPlacement(rng *rand.Rand, cfg GenConfig) Vec3 {
	half := cfg.Bounds.HalfExtent - cfg.SpawnMargin
	attempts := cfg.RedrawAttempts
	if attempts < 1 {
		attempts = 1
	}

	var x, z float64
	for i := 0; i < attempts; i++ {
		x = rng.Float64()*2*half - half
		z = rng.Float64()*2*half - half
		if !insideExclusion(x, z, cfg) {
			return SurfacePoint(cfg.Seed, x, z, 0)
		}
	}

	x, z = pushOutOfExclusion(x, z, cfg)
	return SurfacePoint(cfg.Seed, x, z, 0)
}

func insideExclusion(x, z float64, cfg GenConfig) bool {
	for _, lm := range cfg.Landmarks {
		radius := lm.Radius
		if cfg.ExclusionRadius > radius {
			radius = cfg.ExclusionRadius
		}
		if math.Hypot(x-lm.Position.X, z-lm.Position.Z) < radius {
			return true
		}
	}
	return false
}

func pushOutOfExclusion(x, z float64, cfg GenConfig) (float64, float64) {
	half := cfg.Bounds.HalfExtent - cfg.SpawnMargin
	for _, lm := range cfg.Landmarks {
		radius := lm.Radius
		if cfg.ExclusionRadius > radius {
			radius = cfg.ExclusionRadius
		}
		dx := x - lm.Position.X
		dz := z - lm.Position.Z
		dist := math.Hypot(dx, dz)
		if dist >= radius {
			continue
		}
		if dist == 0 {
			dx, dz, dist = 1, 0, 1
		}
		x = lm.Position.X + dx/dist*radius
		z = lm.Position.Z + dz/dist*radius
	}
	x = clamp(x, -half, half)
	z = clamp(z, -half, half)
	return x, z
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
