package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openbroadcast/obe/frame"
)

func TestEncapsulateWrapsCEA608InT35(t *testing.T) {
	enc := &AncillaryEncoder{Subscribed: map[frame.UserDataType]bool{frame.UserDataCEA608: true}}
	pic := frame.Picture{TimebaseNum: 1, TimebaseDen: 25}

	in := []frame.UserData{{Type: frame.UserDataCEA608, Data: []byte{0xAA, 0xBB}}}
	out := enc.Encapsulate(in, pic)

	require.Len(t, out, 1)
	assert.Equal(t, frame.UserDataCEA608, out[0].Type)
	assert.Equal(t, byte(itu35CountryUSA), out[0].Data[0])
	assert.Equal(t, byte(itu35ProviderATSC), out[0].Data[1])
	assert.Equal(t, []byte("GA94"), out[0].Data[2:6])
}

func TestEncapsulateDropsUnsubscribedTypes(t *testing.T) {
	enc := &AncillaryEncoder{Subscribed: map[frame.UserDataType]bool{frame.UserDataCEA708: true}}
	pic := frame.Picture{TimebaseNum: 1, TimebaseDen: 25}

	in := []frame.UserData{{Type: frame.UserDataCEA608, Data: []byte{0x01}}}
	out := enc.Encapsulate(in, pic)

	assert.Empty(t, out)
}

func TestEncapsulateNilSubscribedPassesEverythingThrough(t *testing.T) {
	enc := &AncillaryEncoder{}
	pic := frame.Picture{TimebaseNum: 1, TimebaseDen: 25}

	in := []frame.UserData{
		{Type: frame.UserDataAFD, Data: []byte{0x01}},
		{Type: frame.UserDataCEA708, Data: []byte{0x02}},
	}
	out := enc.Encapsulate(in, pic)

	require.Len(t, out, 2)
	assert.Equal(t, frame.UserDataAFD, out[0].Type)
	assert.Equal(t, []byte{0x01}, out[0].Data)
}

func TestEncapsulateAppendsBarDataToCEA708Payload(t *testing.T) {
	enc := &AncillaryEncoder{Subscribed: map[frame.UserDataType]bool{
		frame.UserDataCEA708:  true,
		frame.UserDataBarData: true,
	}}
	pic := frame.Picture{TimebaseNum: 1, TimebaseDen: 25}

	in := []frame.UserData{
		{Type: frame.UserDataBarData, Data: []byte{0xFE, 0xED}},
		{Type: frame.UserDataCEA708, Data: []byte{0x10}},
	}
	out := enc.Encapsulate(in, pic)

	var cea708 frame.UserData
	for _, ud := range out {
		if ud.Type == frame.UserDataCEA708 {
			cea708 = ud
		}
	}
	require.NotNil(t, cea708.Data)
	assert.Contains(t, string(cea708.Data), string([]byte{0xFE, 0xED}))
}

func TestFramerateKeyMapsTimebaseToFpsKey(t *testing.T) {
	assert.Equal(t, 2500, framerateKey(frame.Picture{TimebaseNum: 1, TimebaseDen: 25}))
	assert.Equal(t, 2997, framerateKey(frame.Picture{TimebaseNum: 1001, TimebaseDen: 30000}))
	assert.Equal(t, 2500, framerateKey(frame.Picture{}))
}

func TestCCCountByFramerateFallsBackWhenUnmapped(t *testing.T) {
	got := encodeCDP608([]byte{0x01, 0x02}, 9999, nil)
	assert.Equal(t, byte(0x80|20), got[0])
}

func TestEncodeCDP708SetsServiceBlockMarker(t *testing.T) {
	got := encodeCDP708([]byte{0x01}, 2500, nil)
	assert.Equal(t, byte(0xC0|24), got[0])
}
