package flatten

import (
	"math"

	"alprofile/internal/extruder/models"

	"gonum.org/v1/gonum/spatial/r2"
)

// ============================================================
// Curves → polylines
// ============================================================

const bulgeEpsilon = 1e-9

// steps число отрезков для дуги радиуса radius с углом span (рад).
// Полный оборот: clamp(ceil(2πr / chord), ArcSegments, MaxArcSegments),
// дуги пропорционально, но не меньше MinArcSegments.
func (r *run) steps(radius, span, scale float64) int {
	est := math.Ceil(2 * math.Pi * radius * math.Abs(scale) / r.opts.ChordLength)
	full := r.opts.MaxArcSegments
	if est < float64(full) {
		full = max(int(est), r.opts.ArcSegments)
	}

	n := int(math.Ceil(float64(full) * math.Abs(span) / (2 * math.Pi)))
	return max(n, r.opts.MinArcSegments)
}

// arcPoints выборка окружности от угла a0 на span радиан (знак = направление).
// Для полного оборота последняя точка в точности совпадает с первой.
func (r *run) arcPoints(center models.Point, radius, a0, span, scale float64) []models.Point {
	n := r.steps(radius, span, scale)
	c := center.Vec()
	full := math.Abs(math.Abs(span)-2*math.Pi) < 1e-12

	pts := make([]models.Point, 0, n+1)
	for i := 0; i <= n; i++ {
		if full && i == n {
			pts = append(pts, pts[0])
			break
		}
		t := a0 + span*float64(i)/float64(n)
		pts = append(pts, models.FromVec(r2.Add(c, r2.Vec{X: radius * math.Cos(t), Y: radius * math.Sin(t)})))
	}
	return pts
}

// arc дуги DXF идут против часовой от StartAngle к EndAngle; равные углы
// означают полный оборот.
func (r *run) arc(a models.Arc, tr transform) {
	if !finite(a.Center) || !(a.Radius > 0) || math.IsInf(a.Radius, 0) {
		r.skip(a, "bad radius %v", a.Radius)
		return
	}
	if !finiteValues(a.StartAngle, a.EndAngle) {
		r.skip(a, "non-finite coordinates")
		return
	}

	deg := math.Mod(a.EndAngle-a.StartAngle, 360)
	if deg < 0 {
		deg += 360
	}
	span := deg * math.Pi / 180
	if deg == 0 {
		span = 2 * math.Pi
	}

	r.chain(tr, r.arcPoints(a.Center, a.Radius, a.StartAngle*math.Pi/180, span, tr.scale))
}

// BulgeArc центр, радиус, начальный угол и охват дуги, заданной хордой p1→p2
// и bulge = tan(θ/4). ok=false для почти нулевого bulge или вырожденной хорды.
func BulgeArc(p1, p2 models.Point, bulge float64) (center models.Point, radius, a0, sweep float64, ok bool) {
	chord := r2.Sub(p2.Vec(), p1.Vec())
	c := r2.Norm(chord)
	if math.Abs(bulge) < bulgeEpsilon || c < 1e-12 {
		return models.Point{}, 0, 0, 0, false
	}

	sweep = 4 * math.Atan(bulge)
	// центр на серединном перпендикуляре к хорде, смещение (c/2)·(1-b²)/(2b) влево
	mid := r2.Scale(0.5, r2.Add(p1.Vec(), p2.Vec()))
	left := r2.Vec{X: -chord.Y / c, Y: chord.X / c}
	h := (c / 2) * (1 - bulge*bulge) / (2 * bulge)
	cv := r2.Add(mid, r2.Scale(h, left))

	center = models.FromVec(cv)
	radius = r2.Norm(r2.Sub(p1.Vec(), cv))
	a0 = math.Atan2(p1.Y-cv.Y, p1.X-cv.X)
	return center, radius, a0, sweep, true
}

func (r *run) polyline(p models.Polyline, tr transform) {
	n := len(p.Vertices)
	if n < 2 {
		r.skip(p, "polyline with %d vertices", n)
		return
	}
	for _, v := range p.Vertices {
		if !finite(v.Point) || !finiteValues(v.Bulge) {
			r.skip(p, "non-finite coordinates")
			return
		}
	}

	last := n - 1
	if p.Closed {
		last = n
	}
	for i := 0; i < last; i++ {
		v1 := p.Vertices[i]
		v2 := p.Vertices[(i+1)%n]
		r.bulgeSegment(tr, v1.Point, v2.Point, v1.Bulge)
	}
}

// bulgeSegment прямой отрезок или дуга по bulge; конечная точка выставляется
// точно в p2, чтобы не терять связность из-за округления.
func (r *run) bulgeSegment(tr transform, p1, p2 models.Point, bulge float64) {
	center, radius, a0, sweep, ok := BulgeArc(p1, p2, bulge)
	if !ok {
		r.add(tr, p1, p2)
		return
	}

	pts := r.arcPoints(center, radius, a0, sweep, tr.scale)
	pts[0] = p1
	pts[len(pts)-1] = p2
	r.chain(tr, pts)
}

func (r *run) ellipse(e models.Ellipse, tr transform) {
	major := e.MajorAxis.Vec()
	a := r2.Norm(major)
	if !finite(e.Center, e.MajorAxis) || a == 0 || !(e.Ratio > 0) {
		r.skip(e, "degenerate ellipse")
		return
	}
	if !finiteValues(e.Ratio, e.StartParam, e.EndParam) {
		r.skip(e, "non-finite coordinates")
		return
	}
	minor := r2.Scale(e.Ratio, r2.Vec{X: -major.Y, Y: major.X})

	span := e.EndParam - e.StartParam
	for span <= 0 {
		span += 2 * math.Pi
	}
	span = math.Min(span, 2*math.Pi)
	full := math.Abs(span-2*math.Pi) < 1e-9

	n := r.steps(a, span, tr.scale)
	c := e.Center.Vec()
	pts := make([]models.Point, 0, n+1)
	for i := 0; i <= n; i++ {
		if full && i == n {
			pts = append(pts, pts[0])
			break
		}
		t := e.StartParam + span*float64(i)/float64(n)
		p := r2.Add(c, r2.Add(r2.Scale(math.Cos(t), major), r2.Scale(math.Sin(t), minor)))
		pts = append(pts, models.FromVec(p))
	}
	r.chain(tr, pts)
}

// ============================================================
// Splines
// ============================================================

func (r *run) spline(s models.Spline, tr transform) {
	if !finite(s.FitPoints...) || !finite(s.ControlPoints...) || !finiteValues(s.Knots...) || !finiteValues(s.Weights...) {
		r.skip(s, "non-finite coordinates")
		return
	}
	if pts, ok := r.sampleNURBS(s); ok {
		r.chain(tr, pts)
		return
	}

	if len(s.FitPoints) >= 2 {
		pts := s.FitPoints
		if s.Closed && !pts[0].Near(pts[len(pts)-1], 0) {
			pts = append(append([]models.Point(nil), pts...), pts[0])
		}
		r.chain(tr, pts)
		return
	}

	r.skip(s, "spline without usable fit points or knot vector")
}

// sampleNURBS выборка по узлам и управляющим точкам (de Boor в однородных координатах).
func (r *run) sampleNURBS(s models.Spline) ([]models.Point, bool) {
	p := s.Degree
	n := len(s.ControlPoints)
	if p < 1 || n < p+1 || len(s.Knots) != n+p+1 {
		return nil, false
	}

	rational := len(s.Weights) == n
	ctrl := make([][3]float64, n)
	for i, cp := range s.ControlPoints {
		w := 1.0
		if rational && s.Weights[i] > 0 {
			w = s.Weights[i]
		}
		ctrl[i] = [3]float64{cp.X * w, cp.Y * w, w}
	}

	u0, u1 := s.Knots[p], s.Knots[n]
	if !(u1 > u0) {
		return nil, false
	}

	steps := max(r.opts.SplineSteps, 8*len(s.FitPoints), 4*n)
	pts := make([]models.Point, 0, steps+1)
	for i := 0; i <= steps; i++ {
		u := u0 + (u1-u0)*float64(i)/float64(steps)
		h := deBoor(p, u, s.Knots, ctrl)
		if h[2] == 0 {
			return nil, false
		}
		pt := models.Point{X: h[0] / h[2], Y: h[1] / h[2]}
		if !finite(pt) {
			return nil, false
		}
		pts = append(pts, pt)
	}
	return pts, true
}

func deBoor(p int, u float64, t []float64, c [][3]float64) [3]float64 {
	n := len(c)
	k := p
	for k < n-1 && t[k+1] <= u {
		k++
	}

	d := make([][3]float64, p+1)
	for j := 0; j <= p; j++ {
		d[j] = c[j+k-p]
	}
	for lvl := 1; lvl <= p; lvl++ {
		for j := p; j >= lvl; j-- {
			denom := t[j+1+k-lvl] - t[j+k-p]
			alpha := 0.0
			if denom != 0 {
				alpha = (u - t[j+k-p]) / denom
			}
			for m := 0; m < 3; m++ {
				d[j][m] = (1-alpha)*d[j-1][m] + alpha*d[j][m]
			}
		}
	}
	return d[p]
}
