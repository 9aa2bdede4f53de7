package tslib

import (
	"fmt"
	"sort"

	"github.com/openbroadcast/obe/bitio"
	"github.com/openbroadcast/obe/frame"
)

const (
	syncByte  = 0x47
	patPID    = 0x0000
	pesStreamIDVideo = 0xE0
	pesStreamIDAudio = 0xC0
)

// Reference is a from-scratch, simplified MPEG-TS muxer sufficient to
// drive and test the rest of this pipeline: PAT/PMT generation, PES
// packetization with PTS/DTS, adaptation-field PCR insertion on the PCR
// PID, and per-PID continuity counters. It intentionally does not
// implement every PSI descriptor or stuffing optimization a production TS
// library would.
// ticksPerMS is the 27 MHz clock's tick count per millisecond, used to
// convert PATPeriodMS/PCRPeriodMS into the PCR domain period gates are
// compared against.
const ticksPerMS = 27000

// forceFirst is a PCR-domain timestamp far enough in the past that the
// first frame through WriteFrames always clears a period gate.
const forceFirst = -(int64(1) << 62)

type Reference struct {
	cfg ProgramConfig
	cc  map[uint16]byte // per-PID continuity counter, low 4 bits significant

	lastPCR int64 // 27 MHz, last value written into an adaptation field

	lastPATPCR int64 // 27 MHz tick of the most recent PAT/PMT emission
	lastPCRIns int64 // 27 MHz tick of the most recent adaptation-field PCR insertion
}

// NewReference constructs an unconfigured Reference muxer.
func NewReference() *Reference {
	return &Reference{cc: make(map[uint16]byte)}
}

func (r *Reference) Configure(cfg ProgramConfig) error {
	if cfg.PMTPID == 0 {
		return fmt.Errorf("tslib: PMT PID must be nonzero")
	}
	if cfg.PCRPID == 0 {
		for _, s := range cfg.Streams {
			if s.IsVideo {
				cfg.PCRPID = s.PID
				break
			}
		}
	}
	if cfg.PCRPID == 0 {
		return fmt.Errorf("tslib: no PCR PID and no video stream to default to")
	}
	if cfg.PATPeriodMS <= 0 {
		cfg.PATPeriodMS = 100
	}
	if cfg.PCRPeriodMS <= 0 {
		cfg.PCRPeriodMS = 40
	}
	r.cfg = cfg
	r.cc = make(map[uint16]byte)
	r.lastPATPCR = forceFirst // force a PAT/PMT on the first call
	r.lastPCRIns = forceFirst // force a PCR insertion on the first opportunity
	return nil
}

func (r *Reference) UpdateMuxRate(bps int) error {
	if r.cfg.PMTPID == 0 {
		return fmt.Errorf("tslib: not configured")
	}
	r.cfg.MuxRateBps = bps
	return nil
}

func (r *Reference) nextCC(pid uint16) byte {
	v := r.cc[pid]
	r.cc[pid] = (v + 1) & 0x0F
	return v
}

// WriteFrames mixes PAT/PMT (periodically) and one PES stream per frame
// into a sequence of 188-byte packets, returning the concatenated bytes
// and one PCR value per packet.
func (r *Reference) WriteFrames(frames []Frame) ([]byte, []int64, error) {
	if r.cfg.PMTPID == 0 {
		return nil, nil, fmt.Errorf("tslib: not configured")
	}

	// DTS order, stable: this mirrors the caller's own selection but keeps
	// the library robust to any mux-queue race.
	sorted := make([]Frame, len(frames))
	copy(sorted, frames)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].DTS < sorted[j].DTS })

	var out []byte
	var pcrList []int64

	emit := func(pkt []byte, pcr int64) {
		out = append(out, pkt...)
		pcrList = append(pcrList, pcr)
	}

	patPeriodTicks := int64(r.cfg.PATPeriodMS) * ticksPerMS

	for _, f := range sorted {
		nowPCR := clockDTSToPCR(f.DTS)
		if nowPCR-r.lastPATPCR >= patPeriodTicks {
			emit(r.buildPAT(), r.lastPCR)
			emit(r.buildPMT(), r.lastPCR)
			r.lastPATPCR = nowPCR
		}
		streamCfg, ok := r.streamFor(f.PID)
		if !ok {
			return nil, nil, fmt.Errorf("tslib: frame for unconfigured PID %d", f.PID)
		}
		pkts, pcrs := r.packetizePES(f, streamCfg)
		for i, pkt := range pkts {
			emit(pkt, pcrs[i])
		}
	}
	return out, pcrList, nil
}

// clockDTSToPCR rescales a 90kHz DTS into the 27MHz PCR domain.
func clockDTSToPCR(dts90k int64) int64 { return dts90k * 300 }

func (r *Reference) streamFor(pid uint16) (StreamConfig, bool) {
	for _, s := range r.cfg.Streams {
		if s.PID == pid {
			return s, true
		}
	}
	return StreamConfig{}, false
}

func newTSPacket(pid uint16, cc byte, payloadStart bool, hasAdaptation bool) []byte {
	pkt := make([]byte, frame.TSPacketSize)
	pkt[0] = syncByte
	flags := byte(0)
	if payloadStart {
		flags |= 0x40
	}
	pkt[1] = flags | byte(pid>>8)&0x1F
	pkt[2] = byte(pid)
	afc := byte(0x01) // payload only
	if hasAdaptation {
		afc = 0x03 // adaptation + payload
	}
	pkt[3] = afc<<4 | (cc & 0x0F)
	return pkt
}

func (r *Reference) buildPAT() []byte {
	cc := r.nextCC(patPID)
	pkt := newTSPacket(patPID, cc, true, false)
	sec := make([]byte, 0, 16)
	sec = append(sec, 0x00) // pointer field
	sec = append(sec, 0x00) // table_id
	body := []byte{}
	// program_number -> PMT PID
	body = append(body, byte(r.cfg.ProgramNumber>>8), byte(r.cfg.ProgramNumber))
	body = append(body, 0xE0|byte(r.cfg.PMTPID>>8), byte(r.cfg.PMTPID))
	sectionLen := 5 + len(body) + 4 // version/etc fixed fields + body + CRC
	sec = append(sec, byte(0xB0|((sectionLen>>8)&0x0F)), byte(sectionLen))
	sec = append(sec, 0x00, 0x00) // transport_stream_id
	sec = append(sec, 0xC1)       // version_number/current_next
	sec = append(sec, 0x00, 0x00) // section_number, last_section_number
	sec = append(sec, body...)
	crc := crc32MPEG(sec[1:])
	sec = append(sec, byte(crc>>24), byte(crc>>16), byte(crc>>8), byte(crc))
	copy(pkt[4:], sec)
	return pkt
}

func (r *Reference) buildPMT() []byte {
	cc := r.nextCC(r.cfg.PMTPID)
	pkt := newTSPacket(r.cfg.PMTPID, cc, true, false)
	sec := make([]byte, 0, 64)
	sec = append(sec, 0x00) // pointer field
	sec = append(sec, 0x02) // table_id
	body := []byte{}
	body = append(body, 0xE0|byte(r.cfg.PCRPID>>8), byte(r.cfg.PCRPID))
	body = append(body, 0xF0, 0x00) // program_info_length = 0
	for _, s := range r.cfg.Streams {
		body = append(body, s.StreamType)
		body = append(body, 0xE0|byte(s.PID>>8), byte(s.PID))
		body = append(body, 0xF0, 0x00) // ES_info_length = 0
	}
	sectionLen := 5 + len(body) + 4
	sec = append(sec, byte(0xB0|((sectionLen>>8)&0x0F)), byte(sectionLen))
	sec = append(sec, byte(r.cfg.ProgramNumber>>8), byte(r.cfg.ProgramNumber))
	sec = append(sec, 0xC1)
	sec = append(sec, 0x00, 0x00)
	sec = append(sec, body...)
	crc := crc32MPEG(sec[1:])
	sec = append(sec, byte(crc>>24), byte(crc>>16), byte(crc>>8), byte(crc))
	copy(pkt[4:], sec)
	return pkt
}

// packetizePES wraps f.Data in one PES header and splits it across as many
// 188-byte TS packets as needed, returning the packets alongside the PCR
// sidecar value for each: the value computed by the TS library at mux
// time, monotonically non-decreasing.
func (r *Reference) packetizePES(f Frame, sc StreamConfig) ([][]byte, []int64) {
	streamID := byte(pesStreamIDAudio)
	if sc.IsVideo {
		streamID = pesStreamIDVideo
	}

	pesHeader := []byte{0x00, 0x00, 0x01, streamID}
	var flags byte
	var pesOptional []byte
	hasDTS := f.DTS != f.PTS
	if hasDTS {
		flags = 0xC0
		pesOptional = append(pesOptional, encodePTSDTS(0x3, f.PTS)...)
		pesOptional = append(pesOptional, encodePTSDTS(0x1, f.DTS)...)
	} else {
		flags = 0x80
		pesOptional = encodePTSDTS(0x2, f.PTS)
	}
	pesHeaderLen := byte(len(pesOptional))
	packetLen := len(f.Data) + 3 + len(pesOptional)
	if packetLen > 0xFFFF {
		packetLen = 0 // 0 = unbounded, legal for video PES
	}
	pesHeader = append(pesHeader, byte(packetLen>>8), byte(packetLen))
	pesHeader = append(pesHeader, 0x80, flags, pesHeaderLen)
	pesHeader = append(pesHeader, pesOptional...)
	pesHeader = append(pesHeader, f.Data...)

	pcrPeriodTicks := int64(r.cfg.PCRPeriodMS) * ticksPerMS
	nowPCR := clockDTSToPCR(f.DTS)

	var pkts [][]byte
	var pcrs []int64
	payloadStart := true
	offset := 0
	for offset < len(pesHeader) {
		remain := len(pesHeader) - offset
		avail := frame.TSPacketSize - 4
		hasAdaptation := f.PID == r.cfg.PCRPID && payloadStart && nowPCR-r.lastPCRIns >= pcrPeriodTicks
		if hasAdaptation {
			avail -= 8 // adaptation_field_length(1) + flags(1) + PCR(6)
		}
		n := remain
		stuff := 0
		if n > avail {
			n = avail
		} else if n < avail {
			stuff = avail - n
		}
		cc := r.nextCC(f.PID)
		pkt := newTSPacket(f.PID, cc, payloadStart, hasAdaptation || stuff > 0)
		pos := 4
		if hasAdaptation || stuff > 0 {
			adaptLen := 0
			if hasAdaptation {
				adaptLen = 7 + stuff // flags(1) + PCR(6) + stuffing
			} else {
				adaptLen = stuff - 1 // length byte itself not counted
				if adaptLen < 0 {
					adaptLen = 0
				}
			}
			pkt[pos] = byte(adaptLen)
			pos++
			if hasAdaptation {
				pkt[pos] = 0x10 // PCR_flag
				pos++
				r.lastPCR = nowPCR
				r.lastPCRIns = nowPCR
				writePCRAt(pkt[pos:pos+6], r.lastPCR)
				pos += 6
			} else if adaptLen > 0 {
				pkt[pos] = 0x00 // no adaptation flags set
				pos++
			}
			for end := 5 + adaptLen; pos < end; pos++ {
				pkt[pos] = 0xFF
			}
		}
		copy(pkt[pos:], pesHeader[offset:offset+n])
		offset += n
		payloadStart = false
		pkts = append(pkts, pkt)
		pcrs = append(pcrs, r.lastPCR)
	}
	return pkts, pcrs
}

// encodePTSDTS encodes a 33-bit 90kHz timestamp per the PES header
// bit-layout (4-bit marker || PTS[32:30] || marker_bit || PTS[29:15] ||
// marker_bit || PTS[14:0] || marker_bit).
func encodePTSDTS(marker byte, ts int64) []byte {
	v := uint64(ts) & 0x1FFFFFFFF
	b := make([]byte, 5)
	b[0] = marker<<4 | byte((v>>29)&0x0E) | 0x01
	b[1] = byte(v >> 22)
	b[2] = byte((v>>14)&0xFE) | 0x01
	b[3] = byte(v >> 7)
	b[4] = byte((v<<1)&0xFE) | 0x01
	return b
}

func writePCRAt(b []byte, pcr int64) {
	base := uint64(pcr) / 300
	ext := uint64(pcr) % 300
	bitio.PutUint32BE(b[0:4], uint32(base>>1))
	b[4] = byte(base<<7) | 0x7E | byte(ext>>8)
	b[5] = byte(ext)
}

// crc32MPEG computes the MPEG-2 CRC32 (poly 0x04C11DB7, no reflection)
// used by PSI sections.
func crc32MPEG(data []byte) uint32 {
	const poly = 0x04C11DB7
	crc := uint32(0xFFFFFFFF)
	for _, b := range data {
		crc ^= uint32(b) << 24
		for i := 0; i < 8; i++ {
			if crc&0x80000000 != 0 {
				crc = (crc << 1) ^ poly
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
