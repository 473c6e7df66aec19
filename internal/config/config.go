// Package config holds the in-memory configuration tree for tncore:
// per-audio-device and per-channel modem/PTT/link parameters, and the
// connected-mode AX.25 defaults (spec.md §4, §4.9). Parsing a
// configuration file from disk is explicitly out of scope (spec.md §1
// Non-goals); this package only defines the struct tree a loader would
// populate, tagged for gopkg.in/yaml.v3 the way the rest of this corpus
// tags its config structs.
//
// The field names and groupings are adapted from the teacher's
// config.go (struct audio_s / achan_param_s / octrl_s / misc_config_s),
// generalized from direwolf's many radio-specific features down to the
// parameters spec.md actually names.
package config

import "time"

// ModemType selects the physical-layer modulation for a channel
// (spec.md §4.1-§4.4).
type ModemType string

const (
	ModemAFSK  ModemType = "afsk"
	ModemPSK   ModemType = "psk"
	ModemG3RUH ModemType = "g3ruh"
)

// FECMode selects the forward-error-correction wrapper applied around
// HDLC/AX.25 frames (spec.md §4.2/§4.3).
type FECMode string

const (
	FECNone  FECMode = "none"
	FECFX25  FECMode = "fx25"
	FECIL2P  FECMode = "il2p"
)

// PTTMethod names the hardware PTT transport a channel would use. The
// transports themselves are out of scope (spec.md §1); this only
// records which one a future backend should select.
type PTTMethod string

const (
	PTTNone   PTTMethod = "none"
	PTTVOX    PTTMethod = "vox"
	PTTGPIO   PTTMethod = "gpio"
	PTTSerial PTTMethod = "serial"
	PTTCM108  PTTMethod = "cm108"
)

// AudioDevice is one sound-card-like input/output pair, mirroring the
// teacher's adev_param_s.
type AudioDevice struct {
	InputDevice  string `yaml:"input_device"`
	OutputDevice string `yaml:"output_device"`
	SampleRate   int    `yaml:"sample_rate"`
	NumChannels  int    `yaml:"num_channels"` // 1 (mono) or 2 (stereo).
}

// DefaultAudioDevice mirrors the teacher's DEFAULT_ADEVICE/
// DEFAULT_SAMPLES_PER_SEC/DEFAULT_NUM_CHANNELS.
func DefaultAudioDevice() AudioDevice {
	return AudioDevice{
		InputDevice:  "default",
		OutputDevice: "default",
		SampleRate:   44100,
		NumChannels:  1,
	}
}

// XMitTiming bundles the transmit scheduler parameters a channel needs
// (spec.md §4.8), renamed from the teacher's dwait/slottime/persist/
// txdelay/txtail/fulldup fields.
type XMitTiming struct {
	SlotTime   time.Duration `yaml:"slot_time"`
	TXDelay    time.Duration `yaml:"tx_delay"`
	TXTail     time.Duration `yaml:"tx_tail"`
	PersistP   int           `yaml:"persist_p"` // 0-255, p-persistence parameter.
	FullDuplex bool          `yaml:"full_duplex"`
	MaxBurst   int           `yaml:"max_burst"`
}

// DefaultXMitTiming mirrors the teacher's DEFAULT_SLOTTIME/
// DEFAULT_PERSIST/DEFAULT_TXDELAY/DEFAULT_TXTAIL/DEFAULT_FULLDUP.
func DefaultXMitTiming() XMitTiming {
	return XMitTiming{
		SlotTime: 100 * time.Millisecond,
		TXDelay:  300 * time.Millisecond,
		TXTail:   50 * time.Millisecond,
		PersistP: 63,
		MaxBurst: 32,
	}
}

// LinkDefaults bundles the connected-mode (AX.25 v2.2) parameters a
// channel negotiates via XID (spec.md §4.9), adapted from the teacher's
// misc_config_s connected-mode fields (frack/retry/paclen/
// maxframe_basic/maxframe_extended/maxv22).
type LinkDefaults struct {
	AckTimer       time.Duration `yaml:"ack_timer"`       // T1, "frack" in the teacher.
	Retries        int           `yaml:"retries"`         // N2.
	KeepAlive      time.Duration `yaml:"keep_alive"`      // T3.
	PacLen         int           `yaml:"paclen"`           // N1, max I-field bytes.
	WindowBasic    int           `yaml:"window_basic"`     // k for modulo 8.
	WindowExtended int           `yaml:"window_extended"`  // k for modulo 128.
	MaxSABMERetries int          `yaml:"max_sabme_retries"` // Tries before SABM fallback.
}

// DefaultLinkDefaults mirrors AX25_T1V_FRACK_DEFAULT/AX25_N2_RETRY_DEFAULT/
// AX25_N1_PACLEN_DEFAULT/AX25_K_MAXFRAME_BASIC_DEFAULT/
// AX25_K_MAXFRAME_EXTENDED_DEFAULT.
func DefaultLinkDefaults() LinkDefaults {
	return LinkDefaults{
		AckTimer:        3 * time.Second,
		Retries:         10,
		KeepAlive:       180 * time.Second,
		PacLen:          256,
		WindowBasic:     4,
		WindowExtended:  32,
		MaxSABMERetries: 3,
	}
}

// Channel is one radio channel's modem/FEC/PTT/link configuration,
// generalized from the teacher's achan_param_s.
type Channel struct {
	Number      int       `yaml:"number"`
	MyCall      string    `yaml:"my_call"`
	Modem       ModemType `yaml:"modem"`
	FEC         FECMode   `yaml:"fec"`
	Baud        int       `yaml:"baud"`
	MarkFreq    int       `yaml:"mark_freq,omitempty"`
	SpaceFreq   int       `yaml:"space_freq,omitempty"`
	PSKVariant  string    `yaml:"psk_variant,omitempty"`
	PTTMethod   PTTMethod `yaml:"ptt_method"`
	PTTDevice   string    `yaml:"ptt_device,omitempty"`

	Timing XMitTiming   `yaml:"timing"`
	Link   LinkDefaults `yaml:"link"`
}

// DefaultChannel returns channel 0's defaults, mirroring config_init's
// per-achan defaults (MODEM_AFSK, DEFAULT_MARK_FREQ/DEFAULT_SPACE_FREQ/
// DEFAULT_BAUD).
func DefaultChannel(number int) Channel {
	return Channel{
		Number:    number,
		MyCall:    "N0CALL",
		Modem:     ModemAFSK,
		FEC:       FECNone,
		Baud:      1200,
		MarkFreq:  1200,
		SpaceFreq: 2200,
		PTTMethod: PTTNone,
		Timing:    DefaultXMitTiming(),
		Link:      DefaultLinkDefaults(),
	}
}

// PacketLog configures the CSV packet logger (spec.md §7), adapted from
// the teacher's log_daily_names/log_path.
type PacketLog struct {
	Enabled   bool   `yaml:"enabled"`
	Directory string `yaml:"directory"`
	DailyFiles bool  `yaml:"daily_files"`
}

// Config is the top-level, in-memory configuration tree (spec.md §4).
// A loader (out of scope) would populate this from YAML via
// gopkg.in/yaml.v3, the way the rest of this corpus tags config structs.
type Config struct {
	Devices    []AudioDevice `yaml:"devices"`
	Channels   []Channel     `yaml:"channels"`
	PacketLog  PacketLog     `yaml:"packet_log"`
	DebugLevel int           `yaml:"debug_level"`
}

// Default returns a single-channel configuration with the conventional
// defaults config_init applies before any config file is read.
func Default() *Config {
	return &Config{
		Devices:  []AudioDevice{DefaultAudioDevice()},
		Channels: []Channel{DefaultChannel(0)},
		PacketLog: PacketLog{
			Enabled:    true,
			Directory:  ".",
			DailyFiles: true,
		},
	}
}

// Channel looks up a channel by number, returning ok=false if undefined.
func (c *Config) Channel(number int) (Channel, bool) {
	for _, ch := range c.Channels {
		if ch.Number == number {
			return ch, true
		}
	}
	return Channel{}, false
}
