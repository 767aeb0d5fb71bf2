package memory

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"
)

// ErrUnsupportedCartridge is returned for ROM images that cannot be run:
// a bad header checksum, an MBC type outside the supported set, or a
// truncated header.
var ErrUnsupportedCartridge = errors.New("unsupported cartridge")

// ErrNoBattery is returned when persisting external RAM is requested on a
// cartridge without battery backing. Callers are expected to skip persistence.
var ErrNoBattery = errors.New("cartridge has no battery-backed RAM")

const titleLength = 16

const (
	entryPointAddress     = 0x100
	titleAddress          = 0x134
	cartridgeTypeAddress  = 0x147
	romSizeAddress        = 0x148
	ramSizeAddress        = 0x149
	versionNumberAddress  = 0x14C
	headerChecksumAddress = 0x14D
	globalChecksumAddress = 0x14E
	headerEnd             = 0x150
)

const (
	romBankSize = 0x4000
	ramBankSize = 0x2000
)

// Kind is the bank controller variant of a cartridge.
type Kind uint8

const (
	KindNone Kind = iota
	KindMBC1
	KindMBC3
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "ROM"
	case KindMBC1:
		return "MBC1"
	case KindMBC3:
		return "MBC3"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

type cartridgeType struct {
	kind    Kind
	ram     bool
	battery bool
	rtc     bool
}

var supportedTypes = map[uint8]cartridgeType{
	0x00: {kind: KindNone},
	0x08: {kind: KindNone, ram: true},
	0x09: {kind: KindNone, ram: true, battery: true},
	0x01: {kind: KindMBC1},
	0x02: {kind: KindMBC1, ram: true},
	0x03: {kind: KindMBC1, ram: true, battery: true},
	0x0F: {kind: KindMBC3, battery: true, rtc: true},
	0x10: {kind: KindMBC3, ram: true, battery: true, rtc: true},
	0x11: {kind: KindMBC3},
	0x12: {kind: KindMBC3, ram: true},
	0x13: {kind: KindMBC3, ram: true, battery: true},
}

// typeNames is used for error messages on cartridges we refuse to load.
var typeNames = map[uint8]string{
	0x05: "MBC2", 0x06: "MBC2+BATTERY",
	0x0B: "MMM01", 0x0C: "MMM01+RAM", 0x0D: "MMM01+RAM+BATTERY",
	0x19: "MBC5", 0x1A: "MBC5+RAM", 0x1B: "MBC5+RAM+BATTERY",
	0x1C: "MBC5+RUMBLE", 0x1D: "MBC5+RUMBLE+RAM", 0x1E: "MBC5+RUMBLE+RAM+BATTERY",
	0x20: "MBC6", 0x22: "MBC7+SENSOR+RUMBLE+RAM+BATTERY",
	0xFC: "POCKET CAMERA", 0xFD: "BANDAI TAMA5", 0xFE: "HuC3", 0xFF: "HuC1+RAM+BATTERY",
}

// Header is the decoded cartridge header (0x0100-0x014F).
type Header struct {
	Title          string
	Type           uint8
	Kind           Kind
	ROMSize        int
	RAMSize        int
	HasBattery     bool
	HasRTC         bool
	Version        uint8
	HeaderChecksum uint8
	GlobalChecksum uint16
}

// ParseHeader decodes the cartridge header. It reports ErrUnsupportedCartridge
// for images too short to hold a header or for unsupported controller types.
// The header checksum is checked separately by VerifyHeaderChecksum.
func ParseHeader(rom []byte) (Header, error) {
	if len(rom) < headerEnd {
		return Header{}, fmt.Errorf("%w: image is %d bytes, too short for a header", ErrUnsupportedCartridge, len(rom))
	}

	typeByte := rom[cartridgeTypeAddress]
	ct, ok := supportedTypes[typeByte]
	if !ok {
		name, known := typeNames[typeByte]
		if !known {
			name = "unknown"
		}
		return Header{}, fmt.Errorf("%w: cartridge type 0x%02X (%s)", ErrUnsupportedCartridge, typeByte, name)
	}

	romSize, err := decodeROMSize(rom[romSizeAddress])
	if err != nil {
		return Header{}, err
	}
	ramSize, err := decodeRAMSize(rom[ramSizeAddress])
	if err != nil {
		return Header{}, err
	}
	if !ct.ram {
		ramSize = 0
	}

	return Header{
		Title:          cleanGameboyTitle(rom[titleAddress : titleAddress+titleLength]),
		Type:           typeByte,
		Kind:           ct.kind,
		ROMSize:        romSize,
		RAMSize:        ramSize,
		HasBattery:     ct.battery,
		HasRTC:         ct.rtc,
		Version:        rom[versionNumberAddress],
		HeaderChecksum: rom[headerChecksumAddress],
		GlobalChecksum: uint16(rom[globalChecksumAddress])<<8 | uint16(rom[globalChecksumAddress+1]),
	}, nil
}

// HeaderChecksum computes the checksum of header bytes 0x134-0x14C, the same
// way the boot ROM does.
func HeaderChecksum(rom []byte) uint8 {
	var sum uint8
	for a := titleAddress; a < headerChecksumAddress; a++ {
		sum = sum - rom[a] - 1
	}
	return sum
}

// VerifyHeaderChecksum compares the computed checksum with the byte at 0x14D.
func VerifyHeaderChecksum(rom []byte) error {
	if len(rom) < headerEnd {
		return fmt.Errorf("%w: image is %d bytes, too short for a header", ErrUnsupportedCartridge, len(rom))
	}
	if got, want := HeaderChecksum(rom), rom[headerChecksumAddress]; got != want {
		return fmt.Errorf("%w: header checksum mismatch (computed 0x%02X, header says 0x%02X)", ErrUnsupportedCartridge, got, want)
	}
	return nil
}

func decodeROMSize(code uint8) (int, error) {
	if code > 0x08 {
		return 0, fmt.Errorf("%w: ROM size code 0x%02X", ErrUnsupportedCartridge, code)
	}
	return 0x8000 << code, nil
}

func decodeRAMSize(code uint8) (int, error) {
	switch code {
	case 0x00:
		return 0, nil
	case 0x01:
		return 0x800, nil
	case 0x02:
		return 0x2000, nil
	case 0x03:
		return 0x8000, nil
	case 0x04:
		return 0x20000, nil
	case 0x05:
		return 0x10000, nil
	}
	return 0, fmt.Errorf("%w: RAM size code 0x%02X", ErrUnsupportedCartridge, code)
}

// cleanGameboyTitle turns the raw title bytes into printable text. NUL ends
// the title and non-printable characters become '?'.
func cleanGameboyTitle(titleBytes []byte) string {
	runes := make([]rune, 0, len(titleBytes))
	for _, b := range titleBytes {
		if b == 0 {
			break
		}
		r := rune(b)
		if r > unicode.MaxASCII || !unicode.IsPrint(r) {
			r = '?'
		}
		runes = append(runes, r)
	}

	title := strings.TrimSpace(string(runes))
	if title == "" {
		return "(Untitled)"
	}
	return title
}

// CartridgeOption customizes cartridge construction.
type CartridgeOption func(*cartridgeConfig)

type cartridgeConfig struct {
	clock        Clock
	skipChecksum bool
}

// WithClock sets the time source for the MBC3 real time clock.
func WithClock(clock Clock) CartridgeOption {
	return func(c *cartridgeConfig) { c.clock = clock }
}

// WithoutChecksum skips header checksum validation. Used when a boot ROM is
// present, since the boot ROM performs that check itself.
func WithoutChecksum() CartridgeOption {
	return func(c *cartridgeConfig) { c.skipChecksum = true }
}

// Cartridge is a closed variant over the supported bank controllers. Every
// access goes through Read/Write, which switch on the cartridge kind.
type Cartridge struct {
	header   Header
	rom      []byte
	ram      []byte
	romBanks int

	kind Kind
	mbc1 mbc1
	mbc3 mbc3
}

// NewCartridge validates the header of a raw ROM image and builds the
// matching cartridge variant. It never falls back to a default controller.
func NewCartridge(rom []byte, opts ...CartridgeOption) (*Cartridge, error) {
	cfg := cartridgeConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	header, err := ParseHeader(rom)
	if err != nil {
		return nil, err
	}
	if !cfg.skipChecksum {
		if err := VerifyHeaderChecksum(rom); err != nil {
			return nil, err
		}
	}

	// pad the image to whole banks so bank arithmetic never goes out of range
	size := len(rom)
	if rem := size % romBankSize; rem != 0 {
		size += romBankSize - rem
	}
	if size < 2*romBankSize {
		size = 2 * romBankSize
	}
	data := make([]byte, size)
	for i := len(rom); i < size; i++ {
		data[i] = 0xFF
	}
	copy(data, rom)

	if len(rom) != header.ROMSize {
		slog.Warn("ROM size does not match header", "header", header.ROMSize, "actual", len(rom))
	}

	c := &Cartridge{
		header:   header,
		rom:      data,
		ram:      make([]byte, header.RAMSize),
		romBanks: size / romBankSize,
		kind:     header.Kind,
	}

	switch c.kind {
	case KindMBC1:
		c.mbc1 = newMBC1()
	case KindMBC3:
		c.mbc3 = newMBC3(header.HasRTC, cfg.clock)
	}

	slog.Debug("Cartridge loaded",
		"title", header.Title,
		"type", fmt.Sprintf("0x%02X", header.Type),
		"kind", c.kind,
		"rom_size", len(rom),
		"ram_size", header.RAMSize,
		"battery", header.HasBattery)

	return c, nil
}

// Header returns the decoded header.
func (c *Cartridge) Header() Header {
	return c.header
}

// Kind returns the bank controller variant.
func (c *Cartridge) Kind() Kind {
	return c.kind
}

// HasBattery reports whether external RAM (and the RTC) survive power off.
func (c *Cartridge) HasBattery() bool {
	return c.header.HasBattery
}

// Read serves 0000-7FFF and A000-BFFF.
func (c *Cartridge) Read(address uint16) byte {
	switch c.kind {
	case KindMBC1:
		return c.readMBC1(address)
	case KindMBC3:
		return c.readMBC3(address)
	default:
		return c.readNone(address)
	}
}

// Write serves 0000-7FFF (controller registers) and A000-BFFF (RAM). ROM
// contents are never modified.
func (c *Cartridge) Write(address uint16, value byte) {
	switch c.kind {
	case KindMBC1:
		c.writeMBC1(address, value)
	case KindMBC3:
		c.writeMBC3(address, value)
	default:
		c.writeNone(address, value)
	}
}

func (c *Cartridge) romByte(bank int, address uint16) byte {
	bank %= c.romBanks
	return c.rom[bank*romBankSize+int(address&0x3FFF)]
}

// ramIndex maps an A000-BFFF address in the given bank to an offset in
// c.ram, wrapping around small RAM chips.
func (c *Cartridge) ramIndex(bank int, address uint16) int {
	return (bank*ramBankSize + int(address-0xA000)) % len(c.ram)
}

func (c *Cartridge) readNone(address uint16) byte {
	if address < 0x8000 {
		return c.romByte(int(address/romBankSize), address)
	}
	if len(c.ram) == 0 {
		return 0xFF
	}
	return c.ram[c.ramIndex(0, address)]
}

func (c *Cartridge) writeNone(address uint16, value byte) {
	if address < 0x8000 || len(c.ram) == 0 {
		return
	}
	c.ram[c.ramIndex(0, address)] = value
}
