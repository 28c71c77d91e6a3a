package game

import (
	"math"
	"strconv"
)

// Coordinate is a WGS84 latitude/longitude pair.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Key identifies a coordinate at CoordinatePrecision decimal places. Two pins
// with the same key are considered to be at the same spot.
func (c Coordinate) Key() string {
	return strconv.FormatFloat(round(c.Lat), 'f', CoordinatePrecision, 64) + "," +
		strconv.FormatFloat(round(c.Lng), 'f', CoordinatePrecision, 64)
}

func round(v float64) float64 {
	scale := math.Pow10(CoordinatePrecision)
	return math.Round(v*scale) / scale
}

// Bounds is an axis-aligned lat/lng rectangle.
type Bounds struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// Polygon is a closed ring of vertices; the last vertex connects back to the first.
type Polygon []Coordinate

// Bounds returns the bounding rectangle of the polygon.
func (p Polygon) Bounds() Bounds {
	if len(p) == 0 {
		return Bounds{}
	}
	b := Bounds{MinLat: p[0].Lat, MaxLat: p[0].Lat, MinLng: p[0].Lng, MaxLng: p[0].Lng}
	for _, v := range p[1:] {
		b.MinLat = math.Min(b.MinLat, v.Lat)
		b.MaxLat = math.Max(b.MaxLat, v.Lat)
		b.MinLng = math.Min(b.MinLng, v.Lng)
		b.MaxLng = math.Max(b.MaxLng, v.Lng)
	}
	return b
}

// horizontalEpsilon is the latitude span below which an edge counts as horizontal.
const horizontalEpsilon = 1e-12

// Contains tests membership with the even-odd rule, casting a ray towards
// increasing longitude. Horizontal edges never cross the ray and are skipped.
func (p Polygon) Contains(c Coordinate) bool {
	inside := false
	n := len(p)
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := p[i], p[j]
		dLat := b.Lat - a.Lat
		if math.Abs(dLat) < horizontalEpsilon {
			continue
		}
		if (a.Lat > c.Lat) == (b.Lat > c.Lat) {
			continue
		}
		crossLng := a.Lng + (c.Lat-a.Lat)*(b.Lng-a.Lng)/dLat
		if c.Lng < crossLng {
			inside = !inside
		}
	}
	return inside
}

// DefaultArea is the playable area: the ring of Yamanote line stations in Tokyo.
var DefaultArea = Polygon{
	{Lat: 35.681236, Lng: 139.767125}, // Tokyo
	{Lat: 35.691690, Lng: 139.770883}, // Kanda
	{Lat: 35.698353, Lng: 139.773114}, // Akihabara
	{Lat: 35.713768, Lng: 139.777254}, // Ueno
	{Lat: 35.728157, Lng: 139.770641}, // Nippori
	{Lat: 35.738062, Lng: 139.760860}, // Tabata
	{Lat: 35.736489, Lng: 139.746875}, // Komagome
	{Lat: 35.733492, Lng: 139.739345}, // Sugamo
	{Lat: 35.731717, Lng: 139.728599}, // Otsuka
	{Lat: 35.729503, Lng: 139.710900}, // Ikebukuro
	{Lat: 35.721204, Lng: 139.706587}, // Mejiro
	{Lat: 35.712677, Lng: 139.703715}, // Takadanobaba
	{Lat: 35.701306, Lng: 139.700044}, // Shin-Okubo
	{Lat: 35.689592, Lng: 139.700413}, // Shinjuku
	{Lat: 35.683061, Lng: 139.702042}, // Yoyogi
	{Lat: 35.670168, Lng: 139.702687}, // Harajuku
	{Lat: 35.658034, Lng: 139.701636}, // Shibuya
	{Lat: 35.646690, Lng: 139.710106}, // Ebisu
	{Lat: 35.633998, Lng: 139.715828}, // Meguro
	{Lat: 35.626446, Lng: 139.723444}, // Gotanda
	{Lat: 35.619700, Lng: 139.728553}, // Osaki
	{Lat: 35.628471, Lng: 139.738760}, // Shinagawa
	{Lat: 35.635507, Lng: 139.740690}, // Takanawa Gateway
	{Lat: 35.645736, Lng: 139.747575}, // Tamachi
	{Lat: 35.655646, Lng: 139.756749}, // Hamamatsucho
	{Lat: 35.666195, Lng: 139.758587}, // Shimbashi
	{Lat: 35.675069, Lng: 139.763328}, // Yurakucho
}

// DefaultFallbackCenter lies well inside DefaultArea, near the Imperial Palace.
var DefaultFallbackCenter = Coordinate{Lat: 35.685000, Lng: 139.740000}
