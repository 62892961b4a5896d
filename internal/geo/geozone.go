package geo

// Zone is a circular geozone.
type Zone struct {
	ID        string
	AccountID string
	Center    GeoPoint
	RadiusM   float64
}

// Contains reports whether pt lies inside the zone.
func (z Zone) Contains(pt GeoPoint) bool {
	if !pt.IsValid() || !z.Center.IsValid() || z.RadiusM <= 0 {
		return false
	}
	return z.Center.MetersTo(pt) <= z.RadiusM
}

// ZoneIndex answers point-in-zone queries per account. Zones keep their
// configured order, so an overlapping point resolves to the first match.
type ZoneIndex struct {
	byAccount map[string][]Zone
}

func NewZoneIndex(zones []Zone) *ZoneIndex {
	idx := &ZoneIndex{byAccount: make(map[string][]Zone)}
	for _, z := range zones {
		idx.byAccount[z.AccountID] = append(idx.byAccount[z.AccountID], z)
	}
	return idx
}

// ZoneFor returns the ID of the first zone of the account containing pt, or
// an empty string.
func (idx *ZoneIndex) ZoneFor(accountID string, pt GeoPoint) string {
	for _, z := range idx.byAccount[accountID] {
		if z.Contains(pt) {
			return z.ID
		}
	}
	return ""
}
