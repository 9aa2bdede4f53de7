package output

import (
	"encoding/binary"
)

// PT=96 is the dynamic payload type assigned to ProMPEG COP3 FEC packets.
const cop3PayloadType = 96

const cop3FECHeaderSize = 16

// cop3Matrix accumulates one L (columns) x D (rows) matrix of RTP payloads
// and produces row/column parity per SMPTE 2022-1 (ProMPEG COP3): XOR over
// the payload bytes and the 32-bit RTP timestamp field.
type cop3Matrix struct {
	L, D int

	// packets[row][col] in row-major fill order, matching the block's
	// arrival sequence.
	packets [][]cop3Packet

	snBase uint16
	filled int
}

// cop3Packet is the minimal view of a sent RTP packet the FEC matrix needs.
type cop3Packet struct {
	seq       uint16
	timestamp uint32
	payload   []byte
}

// newCop3Matrix builds an LxD matrix, snBase the first packet's RTP seq.
func newCop3Matrix(l, d int, snBase uint16) *cop3Matrix {
	rows := make([][]cop3Packet, d)
	for i := range rows {
		rows[i] = make([]cop3Packet, l)
	}
	return &cop3Matrix{L: l, D: d, packets: rows, snBase: snBase}
}

// Add places the next packet into the matrix in row-major fill order
// (across a row, then the next row), returning true once the matrix is
// full and ready to emit parity.
func (m *cop3Matrix) Add(seq uint16, timestamp uint32, payload []byte) bool {
	row := m.filled / m.L
	col := m.filled % m.L
	m.packets[row][col] = cop3Packet{seq: seq, timestamp: timestamp, payload: payload}
	m.filled++
	return m.filled >= m.L*m.D
}

// RowParity XORs every packet in row across payload and timestamp,
// producing one row-parity packet with a 16-byte COP3 FEC header.
func (m *cop3Matrix) RowParity(row int) []byte {
	return m.xorHeader(m.packets[row], uint16(row), 1)
}

// ColumnParity XORs every packet in column col across the full D rows.
func (m *cop3Matrix) ColumnParity(col int) []byte {
	colPkts := make([]cop3Packet, m.D)
	for r := 0; r < m.D; r++ {
		colPkts[r] = m.packets[r][col]
	}
	return m.xorHeader(colPkts, uint16(col), 0)
}

// xorHeader builds one FEC packet: a 16-byte SMPTE 2022-1 FEC header
// followed by the XOR of the payload bytes (and implicitly the timestamp,
// folded into the header's TS recovery field) of pkts.
func (m *cop3Matrix) xorHeader(pkts []cop3Packet, index uint16, typeNA byte) []byte {
	maxLen := 0
	for _, p := range pkts {
		if len(p.payload) > maxLen {
			maxLen = len(p.payload)
		}
	}
	recovery := make([]byte, maxLen)
	var tsRecovery uint32
	var lengthRecovery uint16
	for _, p := range pkts {
		tsRecovery ^= p.timestamp
		lengthRecovery ^= uint16(len(p.payload))
		for i, b := range p.payload {
			recovery[i] ^= b
		}
	}

	hdr := make([]byte, cop3FECHeaderSize)
	binary.BigEndian.PutUint16(hdr[0:2], m.snBase) // SNBase lo
	binary.BigEndian.PutUint16(hdr[2:4], lengthRecovery)
	hdr[4] = 0 // E|PT recovery, approximated as 0 (no PT differs across matrix)
	hdr[5] = 0 // mask, row/column FEC uses mask=0 per COP3
	binary.BigEndian.PutUint32(hdr[6:10], tsRecovery)
	hdr[10] = byte(len(pkts)) // N
	hdr[11] = typeNA          // D|typeNA: 0=column, 1=row
	binary.BigEndian.PutUint16(hdr[12:14], index)
	binary.BigEndian.PutUint16(hdr[14:16], 0) // SNBaseExt

	return append(hdr, recovery...)
}

// COP3Output drives one output's row/column FEC sockets, fed one RTP
// packet at a time by the main fan-out worker. blockAligned selects which
// of the two send schedules is used once a matrix completes: block-aligned
// bursts every row packet then every column packet; non-block-aligned
// interleaves row and column sends so parity packets are spaced evenly
// across the block instead of arriving in two bursts.
type COP3Output struct {
	RowSock, ColSock *Socket // base+4 (row), base+2 (column)
	Framer           *RTPFramer

	matrix       *cop3Matrix
	l, d         int
	blockAligned bool
	snBase       uint16
}

// NewCOP3Output builds a COP3 output for an L-column, D-row matrix.
func NewCOP3Output(row, col *Socket, framer *RTPFramer, l, d int, blockAligned bool) *COP3Output {
	return &COP3Output{RowSock: row, ColSock: col, Framer: framer, l: l, d: d, blockAligned: blockAligned}
}

// Feed accepts one outgoing RTP-framed media packet (already sent to the
// primary output by the caller) and folds it into the current FEC matrix,
// emitting row/column parity per the configured send schedule when the
// matrix completes.
func (o *COP3Output) Feed(seq uint16, timestamp uint32, payload []byte) error {
	if o.matrix == nil {
		o.matrix = newCop3Matrix(o.l, o.d, seq)
	}
	full := o.matrix.Add(seq, timestamp, payload)
	if !full {
		return nil
	}

	var err error
	if o.blockAligned {
		err = o.emitBlockAligned(timestamp)
	} else {
		err = o.emitInterleaved(timestamp)
	}

	o.matrix = nil
	return err
}

// emitBlockAligned sends every row parity packet, then every column parity
// packet, once the whole L×D matrix has filled.
func (o *COP3Output) emitBlockAligned(timestamp uint32) error {
	for r := 0; r < o.d; r++ {
		if err := o.sendParity(o.RowSock, o.matrix.RowParity(r), timestamp); err != nil {
			return err
		}
	}
	for c := 0; c < o.l; c++ {
		if err := o.sendParity(o.ColSock, o.matrix.ColumnParity(c), timestamp); err != nil {
			return err
		}
	}
	return nil
}

// emitInterleaved alternates row and column parity sends instead of
// bursting every row packet before any column packet, approximating the
// non-block-aligned schedule's goal of smoother, spread-out parity
// emission (the exact SMPTE 2022-1 diagonal column schedule is not
// reproduced; see DESIGN.md).
func (o *COP3Output) emitInterleaved(timestamp uint32) error {
	steps := o.d
	if o.l > steps {
		steps = o.l
	}
	for i := 0; i < steps; i++ {
		if i < o.d {
			if err := o.sendParity(o.RowSock, o.matrix.RowParity(i), timestamp); err != nil {
				return err
			}
		}
		if i < o.l {
			if err := o.sendParity(o.ColSock, o.matrix.ColumnParity(i), timestamp); err != nil {
				return err
			}
		}
	}
	return nil
}

func (o *COP3Output) sendParity(sock *Socket, parity []byte, timestamp uint32) error {
	pkt, err := o.Framer.frameFEC(parity, timestamp, cop3PayloadType)
	if err != nil {
		return err
	}
	return sock.Send(pkt)
}

// frameFEC builds an RTP packet with a caller-chosen payload type, used for
// FEC streams that carry PT=96 instead of the media PT.
func (f *RTPFramer) frameFEC(payload []byte, timestamp uint32, pt uint8) ([]byte, error) {
	seq := uint16(f.seq.Add(1))
	hdr := make([]byte, 12)
	hdr[0] = 0x80 // version 2
	hdr[1] = pt
	binary.BigEndian.PutUint16(hdr[2:4], seq)
	binary.BigEndian.PutUint32(hdr[4:8], timestamp)
	binary.BigEndian.PutUint32(hdr[8:12], f.ssrc)
	return append(hdr, payload...), nil
}
