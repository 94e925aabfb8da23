package circles

import "math"

// Orbit is one ring of avatars: how many fit, how far from the center,
// and how large, the last two as fractions of the canvas edge.
type Orbit struct {
	Count    int
	Distance float64
	Radius   float64
}

// orbits is the two-ring layout. Slot counts follow the Fibonacci
// numbers so the rings stay visually balanced as they grow.
var orbits = []Orbit{
	{Count: fib(6), Distance: 0.23, Radius: 0.07},
	{Count: fib(7), Distance: 0.38, Radius: 0.06},
}

// Slots is how many counterparty avatars fit on the orbits.
func Slots() int {
	n := 0
	for _, o := range orbits {
		n += o.Count
	}
	return n
}

// fib computes the nth Fibonacci number in closed form.
func fib(n int) int {
	phi := (1 + math.Sqrt(5)) / 2
	val := (math.Pow(phi, float64(n)) - math.Pow(1-phi, float64(n))) / math.Sqrt(5)
	return int(math.Round(val))
}
