package filter

import (
	"github.com/openbroadcast/obe/clock"
	"github.com/openbroadcast/obe/config"
	"github.com/openbroadcast/obe/frame"
)

// TeletextUnit is one decoded DVB-VBI/Teletext data unit ready for PES
// packing.
type TeletextUnit struct {
	Page     int
	Language string
	Line     int
	Field    int
	Data     [45]byte // one Teletext packet payload, EN 300 472 layout
}

// VBIDecoder decodes raw VBI lines attached to a picture's user-data list
// into DVB-VBI/Teletext units, per-line field-parity mapped, using the
// configured language tables.
type VBIDecoder struct {
	Services []config.TeletextService
}

// Decode scans ud for UserDataVBI entries and returns the Teletext units
// found, filtered to the configured page list.
func (d *VBIDecoder) Decode(ud []frame.UserData) []TeletextUnit {
	var out []TeletextUnit
	for _, u := range ud {
		if u.Type != frame.UserDataVBI {
			continue
		}
		unit, ok := decodeOP47Line(u)
		if !ok {
			continue
		}
		if d.pageWanted(unit.Page) {
			unit.Language = d.languageFor(unit.Page)
			out = append(out, unit)
		}
	}
	return out
}

func (d *VBIDecoder) pageWanted(page int) bool {
	if len(d.Services) == 0 {
		return true
	}
	for _, s := range d.Services {
		if s.Page == page {
			return true
		}
	}
	return false
}

func (d *VBIDecoder) languageFor(page int) string {
	for _, s := range d.Services {
		if s.Page == page {
			return s.Language
		}
	}
	return ""
}

// decodeOP47Line extracts one Teletext packet from a raw VBI line carrying
// OP47-framed data. A real decoder would run clock-run-in/framing-code
// detection and Hamming 8/4 correction across the full line; this
// implementation trusts the input adapter to have already isolated the
// 45-byte packet payload and only extracts the page number from the
// packet's magazine/row header.
func decodeOP47Line(u frame.UserData) (TeletextUnit, bool) {
	if len(u.Data) < 45 {
		return TeletextUnit{}, false
	}
	var unit TeletextUnit
	copy(unit.Data[:], u.Data[:45])
	unit.Line = u.Line
	unit.Field = u.Field
	unit.Page = int(u.Data[0])<<8 | int(u.Data[1])
	return unit, true
}

// EncodeTeletextPES packs units into a DVB-Teletext PES data field: the
// data_identifier 0x10, then one data unit (id 0x02, length 45, 45 bytes)
// per TeletextUnit. picturePTS is not written; the PES header, PTS and PID
// are left to the caller.
func EncodeTeletextPES(units []TeletextUnit, picturePTS clock.Ticks) []byte {
	out := make([]byte, 0, 1+len(units)*46)
	out = append(out, 0x10) // data_identifier for EBU Teletext (EN 300 472)
	for _, u := range units {
		out = append(out, 0x02) // data_unit_id: EBU Teletext non-subtitle
		out = append(out, 45)   // data_unit_length
		out = append(out, u.Data[:]...)
	}
	return out
}
