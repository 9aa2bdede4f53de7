package filter

import "github.com/openbroadcast/obe/frame"

// t.35 SEI constants for CEA-608/708 carriage.
const (
	itu35CountryUSA  = 0xB5
	itu35ProviderATSC = 0x31
)

var userIdentifierGA94 = [4]byte{'G', 'A', '9', '4'}

// ccCountByFramerate maps an approximate frame rate (fps*100, to avoid
// float keys) to the cc_count field of a CEA-708 CDP.
var ccCountByFramerate = map[int]int{
	2397: 25, 2400: 25, 2500: 24, 2997: 20, 3000: 20, 5000: 12, 5994: 10, 6000: 10,
}

// AncillaryEncoder performs ancillary encapsulation: user-data items
// subscribed to by an output stream set are packed into AVC
// user-data-registered ITU-T T.35 SEI payloads.
type AncillaryEncoder struct {
	// Subscribed is the set of UserDataTypes any configured output stream
	// wants encapsulated at USER_DATA_LOCATION_FRAME.
	Subscribed map[frame.UserDataType]bool
}

// Encapsulate returns the subset of in that should ride with the frame,
// with CEA-608/708 entries replaced by their T.35-wrapped SEI payload.
func (e *AncillaryEncoder) Encapsulate(in []frame.UserData, pic frame.Picture) []frame.UserData {
	out := make([]frame.UserData, 0, len(in))
	var barData *frame.UserData
	for i := range in {
		if in[i].Type == frame.UserDataBarData {
			barData = &in[i]
		}
	}
	for _, ud := range in {
		if e.Subscribed != nil && !e.Subscribed[ud.Type] {
			continue
		}
		switch ud.Type {
		case frame.UserDataCEA608:
			out = append(out, frame.UserData{
				Type: frame.UserDataCEA608,
				Data: wrapT35(encodeCDP608(ud.Data, framerateKey(pic), barData)),
			})
		case frame.UserDataCEA708:
			out = append(out, frame.UserData{
				Type: frame.UserDataCEA708,
				Data: wrapT35(encodeCDP708(ud.Data, framerateKey(pic), barData)),
			})
		default:
			out = append(out, ud)
		}
	}
	return out
}

func framerateKey(pic frame.Picture) int {
	if pic.TimebaseDen == 0 {
		return 2500
	}
	return pic.TimebaseDen * 100 / pic.TimebaseNum
}

// wrapT35 wraps payload in the T.35 itu_t_t35 SEI envelope: country code,
// provider code, and the "GA94" user identifier.
func wrapT35(payload []byte) []byte {
	out := make([]byte, 0, 6+len(payload))
	out = append(out, itu35CountryUSA, itu35ProviderATSC)
	out = append(out, userIdentifierGA94[:]...)
	out = append(out, payload...)
	return out
}

// encodeCDP608 builds a minimal CEA-708 CDP fragment carrying CEA-608
// pass-through data (cc_type 0 or 1), which is how 608 captions ride
// inside the 708 ancillary path when no native 708 service is present.
func encodeCDP608(cc []byte, fpsKey int, barData *frame.UserData) []byte {
	count := ccCountByFramerate[fpsKey]
	if count == 0 {
		count = 20
	}
	out := []byte{0x80 | byte(count)&0x1F}
	out = append(out, cc...)
	if barData != nil {
		out = append(out, barData.Data...)
	}
	return out
}

// encodeCDP708 builds a CEA-708 CDP fragment carrying native 708 service
// blocks.
func encodeCDP708(svc []byte, fpsKey int, barData *frame.UserData) []byte {
	count := ccCountByFramerate[fpsKey]
	if count == 0 {
		count = 20
	}
	out := []byte{0xC0 | byte(count)&0x1F}
	out = append(out, svc...)
	if barData != nil {
		out = append(out, barData.Data...)
	}
	return out
}
