package model

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"github.com/twpayne/go-geom/encoding/geojson"
)

// SRID is the spatial reference used for every stored point (WGS 84).
const SRID = 4326

// Location is a WGS 84 point. It serializes as a GeoJSON Point whose
// coordinates are ordered [longitude, latitude].
type Location struct {
	Lng float64
	Lat float64
}

// NewLocation builds a Location from a latitude/longitude pair.
func NewLocation(lat, lng float64) Location {
	return Location{Lng: lng, Lat: lat}
}

// IsZero reports whether the location is the [0,0] placeholder.
func (l Location) IsZero() bool {
	return l.Lng == 0 && l.Lat == 0
}

// Known reports whether both coordinates were supplied by a provider.
func (l Location) Known() bool {
	return l.Lng != 0 && l.Lat != 0
}

// Point returns the location as a go-geom point with SRID 4326.
func (l Location) Point() *geom.Point {
	return geom.NewPointFlat(geom.XY, []float64{l.Lng, l.Lat}).SetSRID(SRID)
}

// MarshalJSON encodes the location as {"type":"Point","coordinates":[lng,lat]}.
func (l Location) MarshalJSON() ([]byte, error) {
	data, err := geojson.Marshal(l.Point())
	if err != nil {
		return nil, eris.Wrap(err, "location: marshal geojson")
	}
	return data, nil
}

// UnmarshalJSON decodes a GeoJSON Point. A JSON null leaves the zero value.
func (l *Location) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*l = Location{}
		return nil
	}
	var g geom.T
	if err := geojson.Unmarshal(data, &g); err != nil {
		return eris.Wrap(err, "location: unmarshal geojson")
	}
	return l.fromGeom(g)
}

// EWKB encodes the location for PostGIS geometry columns.
func (l Location) EWKB() ([]byte, error) {
	data, err := ewkb.Marshal(l.Point(), ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "location: marshal ewkb")
	}
	return data, nil
}

// LocationFromEWKB decodes a PostGIS point read with ST_AsEWKB.
func LocationFromEWKB(data []byte) (Location, error) {
	if len(data) == 0 {
		return Location{}, nil
	}
	g, err := ewkb.Unmarshal(data)
	if err != nil {
		return Location{}, eris.Wrap(err, "location: unmarshal ewkb")
	}
	return locationFromGeom(g)
}

func (l *Location) fromGeom(g geom.T) error {
	loc, err := locationFromGeom(g)
	if err != nil {
		return err
	}
	*l = loc
	return nil
}

func locationFromGeom(g geom.T) (Location, error) {
	p, ok := g.(*geom.Point)
	if !ok {
		return Location{}, eris.Errorf("location: expected Point, got %T", g)
	}
	if p.Empty() {
		return Location{}, nil
	}
	return Location{Lng: p.X(), Lat: p.Y()}, nil
}
