package catalog

import (
	"cmp"
	"slices"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/iwmi/leaf-dss/internal/join"
	"github.com/iwmi/leaf-dss/internal/unit"
)

// ErrUnknownEntity is returned when a lookup matches no unit.
var ErrUnknownEntity = eris.New("catalog: unknown entity")

// District is one district with its block count and GP availability.
type District struct {
	Name       string `json:"name"`
	BlockCount int    `json:"block_count"`
	HasGPData  bool   `json:"has_gp_data"`
	GPCount    *int   `json:"gp_count,omitempty"`
}

// Districts lists the districts of the block collection, districts with GP
// data first, then by name. gps is nil when GP data is unavailable.
func Districts(blocks unit.Collection, gps *unit.Collection, gpDistrict string) []District {
	byName := make(map[string]*District)
	var order []string
	for _, u := range blocks.Units {
		name := unit.Text(u.Get(blocks.Keys.Region))
		if name == "" {
			continue
		}
		d, ok := byName[name]
		if !ok {
			d = &District{Name: name}
			byName[name] = d
			order = append(order, name)
		}
		d.BlockCount++
	}
	if d, ok := byName[gpDistrict]; ok && gps != nil {
		n := gps.Len()
		d.HasGPData = true
		d.GPCount = &n
	}

	out := make([]District, 0, len(order))
	for _, name := range order {
		out = append(out, *byName[name])
	}
	slices.SortStableFunc(out, func(a, b District) int { return byGPThenName(a.HasGPData, b.HasGPData, a.Name, b.Name) })
	return out
}

func byGPThenName(aGP, bGP bool, a, b string) int {
	if aGP != bGP {
		if aGP {
			return -1
		}
		return 1
	}
	return cmp.Compare(a, b)
}

// GPRef names a GP inside the location hierarchy.
type GPRef struct {
	Name string  `json:"name"`
	Code *string `json:"code"`
}

// BlockNode is a block with its GPs.
type BlockNode struct {
	Name string  `json:"name"`
	GPs  []GPRef `json:"gps"`
}

// DistrictNode is a district with its blocks.
type DistrictNode struct {
	Name      string      `json:"name"`
	Blocks    []BlockNode `json:"blocks"`
	HasGPData bool        `json:"has_gp_data"`
}

// FlatBlock is one entry of the flat block list.
type FlatBlock struct {
	District  string `json:"district"`
	BlockName string `json:"block_name"`
}

// Hierarchy is the district → block → GP tree plus a flat block list.
type Hierarchy struct {
	Districts []DistrictNode `json:"districts"`
	Blocks    []FlatBlock    `json:"blocks"`
}

// Locations builds the location hierarchy. GPs are attached under the
// configured GP district, by their parent block name; a GP whose block is
// not among the district's blocks adds a new block node.
func Locations(blocks unit.Collection, gps *unit.Collection, gpDistrict string) Hierarchy {
	byName := make(map[string]*DistrictNode)
	var order []string
	for _, u := range blocks.Units {
		dname := unit.Text(u.Get(blocks.Keys.Region))
		if dname == "" {
			continue
		}
		d, ok := byName[dname]
		if !ok {
			d = &DistrictNode{Name: dname, Blocks: []BlockNode{}}
			byName[dname] = d
			order = append(order, dname)
		}
		bname := unit.Text(u.Get(blocks.Keys.Name))
		if bname == "" || slices.ContainsFunc(d.Blocks, func(b BlockNode) bool { return b.Name == bname }) {
			continue
		}
		d.Blocks = append(d.Blocks, BlockNode{Name: bname, GPs: []GPRef{}})
	}

	if d, ok := byName[gpDistrict]; ok && gps != nil {
		d.HasGPData = true
		for _, u := range gps.Units {
			gname := unit.Text(u.Get(gps.Keys.Name))
			bname := unit.Text(u.Get(gps.Keys.Parent))
			if gname == "" || bname == "" {
				continue
			}
			ref := GPRef{Name: gname, Code: codePtr(u.Get(gps.Keys.Code))}
			idx := slices.IndexFunc(d.Blocks, func(b BlockNode) bool { return b.Name == bname })
			if idx < 0 {
				d.Blocks = append(d.Blocks, BlockNode{Name: bname, GPs: []GPRef{ref}})
				continue
			}
			d.Blocks[idx].GPs = append(d.Blocks[idx].GPs, ref)
		}
	}

	h := Hierarchy{Districts: make([]DistrictNode, 0, len(order)), Blocks: []FlatBlock{}}
	for _, name := range order {
		h.Districts = append(h.Districts, *byName[name])
	}
	slices.SortStableFunc(h.Districts, func(a, b DistrictNode) int { return byGPThenName(a.HasGPData, b.HasGPData, a.Name, b.Name) })
	for _, d := range h.Districts {
		for _, b := range d.Blocks {
			h.Blocks = append(h.Blocks, FlatBlock{District: d.Name, BlockName: b.Name})
		}
	}
	return h
}

// NamedBlock is a block name with its district.
type NamedBlock struct {
	Name     string  `json:"name"`
	District *string `json:"district"`
}

// DistrictBlocks lists the blocks of a district sorted by name. An unknown
// district is ErrUnknownEntity.
func DistrictBlocks(blocks unit.Collection, district string) ([]NamedBlock, error) {
	in := blocks.Filter(func(u unit.Unit) bool { return unit.Text(u.Get(blocks.Keys.Region)) == district })
	if in.Len() == 0 {
		return nil, eris.Wrapf(ErrUnknownEntity, "district %q", district)
	}
	out := []NamedBlock{}
	for _, u := range in.Units {
		if name := unit.Text(u.Get(blocks.Keys.Name)); name != "" {
			out = append(out, NamedBlock{Name: name, District: &district})
		}
	}
	slices.SortStableFunc(out, func(a, b NamedBlock) int { return cmp.Compare(a.Name, b.Name) })
	return out, nil
}

// BlockNames lists every named block with its district, sorted by name.
func BlockNames(blocks unit.Collection) []NamedBlock {
	out := []NamedBlock{}
	for _, u := range blocks.Units {
		name := unit.Text(u.Get(blocks.Keys.Name))
		if name == "" {
			continue
		}
		nb := NamedBlock{Name: name}
		if d := unit.Text(u.Get(blocks.Keys.Region)); d != "" {
			nb.District = &d
		}
		out = append(out, nb)
	}
	slices.SortStableFunc(out, func(a, b NamedBlock) int { return cmp.Compare(a.Name, b.Name) })
	return out
}

// GPLocation is one GP for dropdowns.
type GPLocation struct {
	GPName   string `json:"gp_name"`
	GPCode   string `json:"gp_code"`
	Block    string `json:"block"`
	District string `json:"district"`
}

// GPLocations lists named GPs in collection order.
func GPLocations(gps unit.Collection) []GPLocation {
	out := []GPLocation{}
	for _, u := range gps.Units {
		name := unit.Text(u.Get(gps.Keys.Name))
		if name == "" {
			continue
		}
		out = append(out, GPLocation{
			GPName:   name,
			GPCode:   join.CodeText(u.Get(gps.Keys.Code)),
			Block:    unit.Text(u.Get(gps.Keys.Parent)),
			District: unit.Text(u.Get(gps.Keys.Region)),
		})
	}
	return out
}

// ByBlock groups GP locations by block name.
func ByBlock(locs []GPLocation) map[string][]GPLocation {
	out := make(map[string][]GPLocation)
	for _, l := range locs {
		out[l.Block] = append(out[l.Block], l)
	}
	return out
}

// GPEntry is a GP with its village count.
type GPEntry struct {
	Name         string  `json:"name"`
	Code         *string `json:"code"`
	Block        *string `json:"block,omitempty"`
	District     string  `json:"district,omitempty"`
	VillageCount *int    `json:"village_count"`
}

// GPNames lists every named GP sorted by name.
func GPNames(gps unit.Collection, villageCol string) []GPEntry {
	out := []GPEntry{}
	for _, u := range gps.Units {
		name := unit.Text(u.Get(gps.Keys.Name))
		if name == "" {
			continue
		}
		e := gpEntry(gps, u, villageCol)
		if b := unit.Text(u.Get(gps.Keys.Parent)); b != "" {
			e.Block = &b
		}
		e.District = unit.Text(u.Get(gps.Keys.Region))
		out = append(out, e)
	}
	slices.SortStableFunc(out, func(a, b GPEntry) int { return cmp.Compare(a.Name, b.Name) })
	return out
}

// GPsInBlock lists the GPs whose parent block is block, sorted by name. A
// block without GPs is ErrUnknownEntity.
func GPsInBlock(gps unit.Collection, block, villageCol string) ([]GPEntry, error) {
	in := gps.Filter(func(u unit.Unit) bool { return unit.Text(u.Get(gps.Keys.Parent)) == block })
	if in.Len() == 0 {
		return nil, eris.Wrapf(ErrUnknownEntity, "no gps in block %q", block)
	}
	out := make([]GPEntry, 0, in.Len())
	for _, u := range in.Units {
		e := gpEntry(gps, u, villageCol)
		if e.VillageCount == nil {
			zero := 0
			e.VillageCount = &zero
		}
		out = append(out, e)
	}
	slices.SortStableFunc(out, func(a, b GPEntry) int { return cmp.Compare(a.Name, b.Name) })
	return out, nil
}

func gpEntry(gps unit.Collection, u unit.Unit, villageCol string) GPEntry {
	e := GPEntry{
		Name: unit.Text(u.Get(gps.Keys.Name)),
		Code: codePtr(u.Get(gps.Keys.Code)),
	}
	if n, ok := unit.Float(u.Get(villageCol)); ok {
		v := int(n)
		e.VillageCount = &v
	}
	return e
}

func codePtr(v any) *string {
	s := join.CodeText(v)
	if s == "" {
		return nil
	}
	return &s
}

// FindByCode returns the units whose code equals code. Numeric codes compare
// after normalization, so "12" matches 12 and 12.0.
func FindByCode(coll unit.Collection, code string) (unit.Collection, error) {
	code = strings.TrimSpace(code)
	out := coll.Filter(func(u unit.Unit) bool {
		return code != "" && join.CodeText(u.Get(coll.Keys.Code)) == join.CodeText(code)
	})
	if out.Len() == 0 {
		return out, eris.Wrapf(ErrUnknownEntity, "%s code %q", coll.Kind, code)
	}
	return out, nil
}

// FindByName returns the units whose name equals name exactly.
func FindByName(coll unit.Collection, name string) (unit.Collection, error) {
	out := coll.Filter(func(u unit.Unit) bool {
		return name != "" && unit.Text(u.Get(coll.Keys.Name)) == name
	})
	if out.Len() == 0 {
		return out, eris.Wrapf(ErrUnknownEntity, "%s name %q", coll.Kind, name)
	}
	return out, nil
}

// InParent returns the units whose parent unit name is parent. An empty
// parent returns coll unchanged.
func InParent(coll unit.Collection, parent string) unit.Collection {
	if parent == "" || coll.Keys.Parent == "" {
		return coll
	}
	return coll.Filter(func(u unit.Unit) bool { return unit.Text(u.Get(coll.Keys.Parent)) == parent })
}

// Summary counts units per group column and lists the attribute columns.
type Summary struct {
	Total   int            `json:"total"`
	Groups  map[string]int `json:"groups"`
	Columns []string       `json:"columns"`
}

// Summarize counts coll by groupCol. Units without a group value are not
// counted in Groups.
func Summarize(coll unit.Collection, groupCol string) Summary {
	s := Summary{
		Total:   coll.Len(),
		Groups:  make(map[string]int),
		Columns: slices.Clone(coll.Columns),
	}
	if !coll.HasColumn(groupCol) {
		return s
	}
	for _, u := range coll.Units {
		if g := unit.Text(u.Get(groupCol)); g != "" {
			s.Groups[g]++
		}
	}
	return s
}

// Level describes one administrative level.
type Level struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Available bool     `json:"available"`
	Districts []string `json:"districts,omitempty"`
}

// Levels lists the block and GP levels. gpDistricts is empty when GP data
// is unavailable.
func Levels(gpAvailable bool, gpDistrict string) ([]Level, []string) {
	districts := []string{}
	if gpAvailable {
		districts = append(districts, gpDistrict)
	}
	return []Level{
		{ID: string(unit.KindBlock), Name: "Block", Available: true},
		{ID: string(unit.KindGP), Name: "Gram Panchayat", Available: gpAvailable, Districts: districts},
	}, districts
}
