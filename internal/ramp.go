package anttop

import (
	"fmt"
	"image/color"
	"math"

	"github.com/spf13/cast"
)

// RampPoint is a vertex of the virtual user curve
type RampPoint struct {
	Second float64
	Users  float64
}

// RampUpCurve returns the stepped virtual user curve of a load test: users
// are added in rampUpSteps equal steps over rampUpTime seconds, then held for
// duration seconds
func RampUpCurve(virtualUsers, duration, rampUpTime, rampUpSteps int) ([]RampPoint, error) {
	if rampUpSteps <= 0 {
		return nil, fmt.Errorf("ramp-up steps %d must be positive: %w", rampUpSteps, ErrInvalidArgument)
	}
	if virtualUsers < 0 || duration < 0 || rampUpTime < 0 {
		return nil, fmt.Errorf("virtual users, duration and ramp-up time must not be negative: %w", ErrInvalidArgument)
	}

	stepDuration := float64(rampUpTime) / float64(rampUpSteps)
	usersPerStep := float64(virtualUsers) / float64(rampUpSteps)

	points := []RampPoint{{Second: 0, Users: 0}}
	for i := 0; i < rampUpSteps; i++ {
		points = append(points, RampPoint{Second: stepDuration * float64(i), Users: usersPerStep * float64(i+1)})
		if i+1 != rampUpSteps {
			points = append(points, RampPoint{Second: stepDuration * float64(i+1), Users: usersPerStep * float64(i+1)})
		}
	}
	points = append(points,
		RampPoint{Second: float64(rampUpTime), Users: float64(virtualUsers)},
		RampPoint{Second: float64(duration + rampUpTime), Users: float64(virtualUsers)},
	)
	return points, nil
}

// UsersAt reads the curve at second t: the users of the last vertex at or
// before t
func UsersAt(points []RampPoint, t float64) float64 {
	users := 0.0
	for _, p := range points {
		if p.Second > t {
			break
		}
		users = p.Users
	}
	return users
}

// RampCurve computes the curve of a load test definition
func (c LoadTestConfig) RampCurve() ([]RampPoint, error) {
	vu, err := cast.ToIntE(c.VirtualUsers)
	if err != nil {
		return nil, fmt.Errorf("virtual users %q: %w", c.VirtualUsers, ErrInvalidArgument)
	}
	duration, err := cast.ToIntE(c.Duration)
	if err != nil {
		return nil, fmt.Errorf("duration %q: %w", c.Duration, ErrInvalidArgument)
	}
	rampUpTime, err := cast.ToIntE(c.RampUpTime)
	if err != nil {
		return nil, fmt.Errorf("ramp-up time %q: %w", c.RampUpTime, ErrInvalidArgument)
	}
	steps, err := cast.ToIntE(c.RampUpSteps)
	if err != nil {
		return nil, fmt.Errorf("ramp-up steps %q: %w", c.RampUpSteps, ErrInvalidArgument)
	}
	return RampUpCurve(vu, duration, rampUpTime, steps)
}

// RampChart reads the curve once per second, spread over at most width
// points including the final second, as a single series chart
func RampChart(points []RampPoint, width int, surface Surface) (*Chart, error) {
	if len(points) == 0 {
		return nil, fmt.Errorf("empty ramp-up curve: %w", ErrInvalidArgument)
	}
	end := int(math.Ceil(points[len(points)-1].Second))
	seconds := make([]int, end+1)
	for i := range seconds {
		seconds[i] = i
	}
	sampled, err := Spread(seconds, max(width, 1))
	if err != nil {
		return nil, err
	}

	chart := NewChart("Virtual Users", surface)
	values := make([]float64, len(sampled))
	chart.Timestamps = make([]string, len(sampled))
	for i, s := range sampled {
		values[i] = UsersAt(points, float64(s))
		chart.Timestamps[i] = fmt.Sprintf("%ds", s)
	}
	chart.Series = []Series{{Name: "Virtual Users", Color: color.RGBA{54, 162, 235, 255}, Values: values}}
	return chart, nil
}
