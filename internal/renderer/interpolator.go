package renderer

import (
	"cogentcore.org/core/math32"

	"github.com/ivlev/simcapture/internal/scene"
)

// CameraState is the camera pose at a specific moment
type CameraState struct {
	Position math32.Vector3
	Target   math32.Vector3
}

// InterpolateKeyframes calculates the camera pose at a given time by easing between keyframes
func InterpolateKeyframes(keyframes []scene.CameraKeyframe, currentTime float64) CameraState {
	if len(keyframes) == 0 {
		return CameraState{Position: math32.Vec3(0, 0, 10)}
	}

	first, last := keyframes[0], keyframes[len(keyframes)-1]
	if currentTime <= first.Time {
		return CameraState{Position: first.Position, Target: first.Target}
	}
	if currentTime >= last.Time {
		return CameraState{Position: last.Position, Target: last.Target}
	}

	// Find surrounding keyframes
	prevKf, nextKf := first, last
	for i := 0; i < len(keyframes)-1; i++ {
		if currentTime >= keyframes[i].Time && currentTime < keyframes[i+1].Time {
			prevKf = keyframes[i]
			nextKf = keyframes[i+1]
			break
		}
	}

	timeDelta := nextKf.Time - prevKf.Time
	if timeDelta == 0 {
		timeDelta = 0.001
	}
	t := easeInOutCubic((currentTime - prevKf.Time) / timeDelta)

	return CameraState{
		Position: lerpVec(prevKf.Position, nextKf.Position, t),
		Target:   lerpVec(prevKf.Target, nextKf.Target, t),
	}
}

func lerpVec(a, b math32.Vector3, t float64) math32.Vector3 {
	return math32.Vec3(
		float32(lerp(float64(a.X), float64(b.X), t)),
		float32(lerp(float64(a.Y), float64(b.Y), t)),
		float32(lerp(float64(a.Z), float64(b.Z), t)),
	)
}

// lerp performs linear interpolation between a and b
func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// easeInOutCubic applies smooth easing function
func easeInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	return 1 - pow(-2*t+2, 3)/2
}

// pow calculates x^n
func pow(x float64, n int) float64 {
	result := 1.0
	for i := 0; i < n; i++ {
		result *= x
	}
	return result
}
