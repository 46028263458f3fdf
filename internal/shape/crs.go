package shape

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/wroge/wgs84"
)

// ErrUnsupportedCRS is returned for projections that cannot be converted to
// WGS84 lon/lat.
var ErrUnsupportedCRS = eris.New("shape: unsupported coordinate reference system")

// CRSKind enumerates the coordinate systems Read can normalize.
type CRSKind int

// Supported coordinate systems.
const (
	Geographic CRSKind = iota
	WebMercator
	UTM
	// Projected is any other system in the EPSG registry of wgs84.
	Projected
)

// CRS describes the coordinate system of a layer.
type CRS struct {
	Kind  CRSKind
	Zone  int  // UTM zone, 1..60
	South bool // UTM southern hemisphere
	EPSG  int  // 0 for Geographic
}

const epsgWGS84 = 4326

var (
	utmZone   = regexp.MustCompile(`UTM[_ ]ZONE[_ ]?(\d{1,2})\s*([NS])?`)
	authority = regexp.MustCompile(`AUTHORITY\[\s*"EPSG"\s*,\s*"?(\d+)"?\s*\]`)
	registry  = wgs84.EPSG()
)

// DetectCRS classifies an ESRI/OGC WKT projection string. An EPSG
// authority on the outermost PROJCS wins over name matching.
func DetectCRS(wkt string) (CRS, error) {
	s := strings.ToUpper(strings.TrimSpace(wkt))
	if s == "" || strings.HasPrefix(s, "GEOGCS") || strings.HasPrefix(s, "GEOGCRS") {
		return CRS{Kind: Geographic}, nil
	}

	if m := authority.FindAllStringSubmatch(s, -1); len(m) > 0 {
		code, _ := strconv.Atoi(m[len(m)-1][1])
		return fromEPSG(code)
	}

	for _, marker := range []string{"AUXILIARY_SPHERE", "PSEUDO-MERCATOR", "PSEUDO_MERCATOR", "WEB_MERCATOR", "POPULAR VISUALISATION"} {
		if strings.Contains(s, marker) {
			return fromEPSG(3857)
		}
	}

	if m := utmZone.FindStringSubmatch(s); m != nil {
		zone, err := strconv.Atoi(m[1])
		if err != nil || zone < 1 || zone > 60 {
			return CRS{}, eris.Wrapf(ErrUnsupportedCRS, "invalid UTM zone %q", m[1])
		}
		if m[2] == "S" || strings.Contains(s, `"FALSE_NORTHING",10000000`) {
			return fromEPSG(32700 + zone)
		}
		return fromEPSG(32600 + zone)
	}

	head := s
	if len(head) > 60 {
		head = head[:60]
	}
	return CRS{}, eris.Wrapf(ErrUnsupportedCRS, "%s", head)
}

func fromEPSG(code int) (CRS, error) {
	switch {
	case code == epsgWGS84:
		return CRS{Kind: Geographic}, nil
	case code == 3857 || code == 900913:
		return CRS{Kind: WebMercator, EPSG: 3857}, nil
	case code > 32600 && code <= 32660:
		return CRS{Kind: UTM, Zone: code - 32600, EPSG: code}, nil
	case code > 32700 && code <= 32760:
		return CRS{Kind: UTM, Zone: code - 32700, South: true, EPSG: code}, nil
	}
	if !registered(code) {
		return CRS{}, eris.Wrapf(ErrUnsupportedCRS, "EPSG:%d", code)
	}
	return CRS{Kind: Projected, EPSG: code}, nil
}

// Reproject converts mp in place to WGS84 lon/lat.
func (c CRS) Reproject(mp *geom.MultiPolygon) error {
	if c.Kind == Geographic {
		return nil
	}
	if !registered(c.EPSG) {
		return eris.Wrapf(ErrUnsupportedCRS, "EPSG:%d", c.EPSG)
	}
	transform := registry.Transform(c.EPSG, epsgWGS84)

	flat := mp.FlatCoords()
	stride := mp.Stride()
	for i := 0; i+1 < len(flat); i += stride {
		flat[i], flat[i+1], _ = transform(flat[i], flat[i+1], 0)
	}
	return nil
}

func registered(code int) bool {
	crs, err := registry.SafeCode(code)
	return err == nil && crs != nil
}
