// Package config holds the structured descriptors supplied at start —
// stream descriptors, output descriptors, and the program they compose
// into — plus a YAML loader for physically locating that data.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// StreamType enumerates the stream_type field of a stream descriptor.
type StreamType string

const (
	StreamVideo    StreamType = "video"
	StreamAudio    StreamType = "audio"
	StreamSubtitle StreamType = "subtitle"
	StreamMisc     StreamType = "misc"
)

// StreamFormat is the codec tag of a stream descriptor.
type StreamFormat string

const (
	FormatAVC        StreamFormat = "avc"
	FormatMP2        StreamFormat = "mp2"
	FormatAC3        StreamFormat = "ac3"
	FormatAAC        StreamFormat = "aac"
	FormatAACLATM    StreamFormat = "aac_latm"
	FormatS302M      StreamFormat = "s302m"
	FormatDVBVBI     StreamFormat = "dvb_vbi"
	FormatDVBTeletxt StreamFormat = "dvb_teletext"
	FormatEAC3       StreamFormat = "eac3" // no dedicated encoder/filter path; see DESIGN.md
	FormatHEAAC      StreamFormat = "he_aac"
)

// X264Params mirrors the subset of x264-equivalent encoder parameters spec
// §6's codec-library contract says are "passed once at open and optionally
// patched at runtime via update_stream".
type X264Params struct {
	VBVMaxBitrate int  `yaml:"vbv_max_bitrate"`
	VBVBufferSize int  `yaml:"vbv_buffer_size"`
	IBitrate      int  `yaml:"i_bitrate"`
	IKeyintMax    int  `yaml:"i_keyint_max"`
	Lookahead     int  `yaml:"lookahead"`
	BFrames       int  `yaml:"bframes"`
	Threads       int  `yaml:"threads"`
	Profile       string `yaml:"profile"`
	IntraRefresh  bool `yaml:"intra_refresh"`
}

// AACParams configures the AAC path, including the LATM carriage flag.
type AACParams struct {
	Profile     string `yaml:"profile"`
	LATMOutput  bool   `yaml:"latm_output"`
}

// S302MParams configures SMPTE 302M PCM carriage.
type S302MParams struct {
	BitDepth  int `yaml:"bit_depth"`
	PairCount int `yaml:"pair_count"`
}

// MP2Params configures the MP2 audio path.
type MP2Params struct {
	Mode string `yaml:"mode"` // "stereo", "joint_stereo", "dual_channel", "mono"
}

// TeletextService is one VBI/teletext service entry of a stream descriptor.
type TeletextService struct {
	Page     int    `yaml:"page"`
	Language string `yaml:"language"`
}

// StreamDescriptor is the per-output-stream configuration.
type StreamDescriptor struct {
	ID           int             `yaml:"id"`
	Type         StreamType      `yaml:"type"`
	Format       StreamFormat    `yaml:"format"`
	PID          uint16          `yaml:"pid"`
	Language     string          `yaml:"language,omitempty"`
	X264         *X264Params     `yaml:"x264,omitempty"`
	AAC          *AACParams      `yaml:"aac,omitempty"`
	S302M        *S302MParams    `yaml:"s302m,omitempty"`
	MP2          *MP2Params      `yaml:"mp2,omitempty"`
	Teletext     []TeletextService `yaml:"teletext,omitempty"`
	SCTE35Source string          `yaml:"scte35_source,omitempty"` // host:port TCP source
	PCMChannels  []int           `yaml:"pcm_channels,omitempty"`  // SDI pair -> channel mapping
	Passthrough  bool            `yaml:"passthrough,omitempty"`   // S302M/337M passthrough
}

// FECType enumerates an output descriptor's fec_type.
type FECType string

const (
	FECNone               FECType = "none"
	FECCop3BlockAligned    FECType = "cop3_block_aligned"
	FECCop3NonBlockAligned FECType = "cop3_non_block_aligned"
	FECFrameLDPCStaircase  FECType = "fecframe_ldpc_staircase"
)

// OutputKind enumerates an output descriptor's type.
type OutputKind string

const (
	OutputUDP OutputKind = "udp"
	OutputRTP OutputKind = "rtp"
	OutputSRT OutputKind = "srt"
)

// OutputDescriptor is one IP output.
type OutputDescriptor struct {
	ID          int        `yaml:"id"`
	Type        OutputKind `yaml:"type"`
	URI         string     `yaml:"uri"` // udp://HOST:PORT[?ttl=N&tos=N&...]
	FECType     FECType    `yaml:"fec_type"`
	FECColumns  int        `yaml:"fec_columns"`
	FECRows     int        `yaml:"fec_rows"`
	DupDelayMS  int        `yaml:"dup_delay_ms"`
	ARQLatencyMS int       `yaml:"arq_latency_ms"`
}

// Program is the top-level configuration: one program's streams and
// outputs, plus the mux parameters the multiplexer opens the TS library
// with.
type Program struct {
	Name        string             `yaml:"name"`
	PMTPID      uint16             `yaml:"pmt_pid"`
	PCRPID      uint16             `yaml:"pcr_pid"` // 0 => defaults to the video PID
	PATPeriodMS int                `yaml:"pat_period_ms"`
	MuxRateBps  int                `yaml:"mux_rate_bps"`
	Streams     []StreamDescriptor `yaml:"streams"`
	Outputs     []OutputDescriptor `yaml:"outputs"`
}

// Root is the document config.Load parses.
type Root struct {
	Program Program `yaml:"program"`

	// StatusDBPath is the sqlite file backing status.Store; empty disables
	// history persistence.
	StatusDBPath string `yaml:"status_db_path,omitempty"`
	// StatusWSAddr is the listen address for the monitor WebSocket hub;
	// empty disables it.
	StatusWSAddr string `yaml:"status_ws_addr,omitempty"`
	// MetricsAddr is the listen address for the Prometheus /metrics
	// endpoint; empty disables it.
	MetricsAddr string `yaml:"metrics_addr,omitempty"`
}

// Load reads and parses a YAML configuration document from path.
func Load(path string) (*Root, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var root Root
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if root.Program.PCRPID == 0 {
		for _, s := range root.Program.Streams {
			if s.Type == StreamVideo {
				root.Program.PCRPID = s.PID
				break
			}
		}
	}
	return &root, nil
}

// VideoPID returns the PID of the program's video stream, or 0 if none.
func (p Program) VideoPID() uint16 {
	for _, s := range p.Streams {
		if s.Type == StreamVideo {
			return s.PID
		}
	}
	return 0
}
