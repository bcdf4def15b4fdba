package world

import "math"

// Terrain height is a pure function of the room seed and (x, z) so every
// peer and the server agree on the ground without exchanging geometry.
// Two sine octaves plus a seed-derived phase keep it cheap and smooth.

const (
	terrainBaseAmplitude   = 4.0
	terrainDetailAmplitude = 1.2
	terrainBaseFrequency   = 0.015
	terrainDetailFrequency = 0.07
)

// TerrainHeight returns the ground height at (x, z) for the given seed.
func TerrainHeight(seed int64, x, z float64) float64 {
	phaseA := float64(seed%7919) * 0.013
	phaseB := float64(seed%104729) * 0.0007

	base := math.Sin(x*terrainBaseFrequency+phaseA) * math.Cos(z*terrainBaseFrequency+phaseB)
	detail := math.Sin(x*terrainDetailFrequency+phaseB) * math.Sin(z*terrainDetailFrequency+phaseA)

	return base*terrainBaseAmplitude + detail*terrainDetailAmplitude
}

// SurfacePoint places p on the terrain surface plus the given clearance.
func SurfacePoint(seed int64, x, z, clearance float64) Vec3 {
	return Vec3{X: x, Y: TerrainHeight(seed, x, z) + clearance, Z: z}
}
