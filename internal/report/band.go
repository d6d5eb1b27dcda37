package report

import (
	"fmt"
	"io"

	"github.com/couchcryptid/seismic-swarm-etl/internal/catalog"
	"github.com/couchcryptid/seismic-swarm-etl/internal/domain"
)

// Macro region columns appended by Band.
const (
	ColMSMacroRegion = "MS_Macro_Region"
	ColCSMacroRegion = "CS_Macro_Region"
)

// Band copies a pair report from r to w with MS_Macro_Region and
// CS_Macro_Region columns derived from the mainshock and candidate
// latitudes. Unparseable latitudes are labelled Unknown.
func Band(r io.Reader, w io.Writer) (int, error) {
	t, err := catalog.ReadTable(r)
	if err != nil {
		return 0, err
	}
	if !t.Has(ColMSLat) || !t.Has(ColCSLat) {
		return 0, fmt.Errorf("pair report needs %s and %s columns", ColMSLat, ColCSLat)
	}

	t.AddColumn(ColMSMacroRegion)
	t.AddColumn(ColCSMacroRegion)
	for i := range t.Rows {
		t.Set(i, ColMSMacroRegion, domain.MacroRegionOf(t.Get(i, ColMSLat)))
		t.Set(i, ColCSMacroRegion, domain.MacroRegionOf(t.Get(i, ColCSLat)))
	}
	if err := t.Write(w); err != nil {
		return 0, err
	}
	return len(t.Rows), nil
}
