package normalize

import (
	"digitprep/pkg/geometry"

	"gonum.org/v1/gonum/stat"
)

// GridStats summarizes an intensity grid.
type GridStats struct {
	Mean        float64          `json:"mean"`
	StdDev      float64          `json:"std_dev"`
	InkFraction float64          `json:"ink_fraction"`
	Centroid    geometry.Point2D `json:"centroid"`
}

// Stats computes the mean and standard deviation of the values, the
// fraction of non-zero cells and the intensity-weighted centroid. A blank
// grid reports the geometric center as its centroid.
func (g IntensityGrid) Stats() GridStats {
	n := len(g.Values)
	if n == 0 || g.Width <= 0 {
		return GridStats{}
	}

	values := make([]float64, n)
	xs := make([]float64, n)
	ys := make([]float64, n)
	ink := 0
	for i, v := range g.Values {
		values[i] = float64(v)
		xs[i] = float64(i % g.Width)
		ys[i] = float64(i / g.Width)
		if v > 0 {
			ink++
		}
	}

	var s GridStats
	if n > 1 {
		s.Mean, s.StdDev = stat.MeanStdDev(values, nil)
	} else {
		s.Mean = values[0]
	}
	s.InkFraction = float64(ink) / float64(n)

	if ink == 0 {
		s.Centroid = geometry.NewPoint2D(float64(g.Width-1)/2, float64(g.Height-1)/2)
		return s
	}
	s.Centroid = geometry.NewPoint2D(stat.Mean(xs, values), stat.Mean(ys, values))
	return s
}
