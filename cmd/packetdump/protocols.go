package main

import (
	"fmt"

	"github.com/wippyai/binstruct/nstruct"
)

// Wire declarations for the capture file format and a few link/network
// layer headers, written with the nstruct declaration API. These are the
// tool's own definitions, not part of the library.

// pcap file format, little-endian variant (magic 0xa1b2c3d4 stored LE).
var pcapHeaderLE = nstruct.MustNew(nstruct.StructDef{
	Name: "pcap_hdr",
	Fields: []nstruct.Field{
		nstruct.F(nstruct.Uint32, "magic"),
		nstruct.F(nstruct.Uint16, "version_major"),
		nstruct.F(nstruct.Uint16, "version_minor"),
		nstruct.F(nstruct.Int32, "thiszone"),
		nstruct.F(nstruct.Uint32, "sigfigs"),
		nstruct.F(nstruct.Uint32, "snaplen"),
		nstruct.F(nstruct.Uint32, "network"),
	},
	Padding:      1,
	LittleEndian: true,
})

var pcapHeaderBE = nstruct.MustNew(nstruct.StructDef{
	Name: "pcap_hdr_be",
	Fields: []nstruct.Field{
		nstruct.F(nstruct.Uint32, "magic"),
		nstruct.F(nstruct.Uint16, "version_major"),
		nstruct.F(nstruct.Uint16, "version_minor"),
		nstruct.F(nstruct.Int32, "thiszone"),
		nstruct.F(nstruct.Uint32, "sigfigs"),
		nstruct.F(nstruct.Uint32, "snaplen"),
		nstruct.F(nstruct.Uint32, "network"),
	},
	Padding: 1,
})

var pcapRecordLE = nstruct.MustNew(nstruct.StructDef{
	Name: "pcap_rec",
	Fields: []nstruct.Field{
		nstruct.F(nstruct.Uint32, "ts_sec"),
		nstruct.F(nstruct.Uint32, "ts_usec"),
		nstruct.F(nstruct.Uint32, "incl_len"),
		nstruct.F(nstruct.Uint32, "orig_len"),
	},
	Padding:      1,
	LittleEndian: true,
})

var pcapRecordBE = nstruct.MustNew(nstruct.StructDef{
	Name: "pcap_rec_be",
	Fields: []nstruct.Field{
		nstruct.F(nstruct.Uint32, "ts_sec"),
		nstruct.F(nstruct.Uint32, "ts_usec"),
		nstruct.F(nstruct.Uint32, "incl_len"),
		nstruct.F(nstruct.Uint32, "orig_len"),
	},
	Padding: 1,
})

const (
	pcapMagic        = 0xa1b2c3d4 // magic in file order
	pcapMagicSwapped = 0xd4c3b2a1 // file byte order opposite to the reader's
)

// Address formatting.

var macAddr = nstruct.WithFormatter(nstruct.Array(nstruct.Char, 6), func(v any) (any, error) {
	b, ok := v.([]byte)
	if !ok {
		return v, nil
	}
	for len(b) < 6 {
		b = append(b, 0)
	}
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X", b[0], b[1], b[2], b[3], b[4], b[5]), nil
})

var ipAddr = nstruct.WithFormatter(nstruct.Array(nstruct.Char, 4), func(v any) (any, error) {
	b, ok := v.([]byte)
	if !ok {
		return v, nil
	}
	for len(b) < 4 {
		b = append(b, 0)
	}
	return fmt.Sprintf("%d.%d.%d.%d", b[0], b[1], b[2], b[3]), nil
})

// Ethernet with derived frames selected by ethertype.

var etherType = nstruct.NewEnum("ethertype", nstruct.Uint16, false, map[string]uint64{
	"ETHERTYPE_IP":   0x0800,
	"ETHERTYPE_ARP":  0x0806,
	"ETHERTYPE_VLAN": 0x8100,
	"ETHERTYPE_IPV6": 0x86DD,
})

var ethernetHeader = nstruct.MustNew(nstruct.StructDef{
	Name: "ethernet",
	Fields: []nstruct.Field{
		nstruct.F(macAddr, "dst"),
		nstruct.F(macAddr, "src"),
		nstruct.F(etherType, "ethertype"),
	},
	Padding: 1,
	Classifier: func(v *nstruct.Value) (uint64, error) {
		return v.Uint("ethertype"), nil
	},
})

var arpOp = nstruct.NewEnum("arp_op", nstruct.Uint16, false, map[string]uint64{
	"ARPOP_REQUEST": 1,
	"ARPOP_REPLY":   2,
})

var etherARP = nstruct.MustNew(nstruct.StructDef{
	Name: "ether_arp",
	Fields: []nstruct.Field{
		nstruct.F(nstruct.Uint16, "hwtype"),
		nstruct.F(nstruct.Uint16, "ptype"),
		nstruct.F(nstruct.Uint8, "hwlen"),
		nstruct.F(nstruct.Uint8, "plen"),
		nstruct.F(arpOp, "op"),
		nstruct.F(macAddr, "sha"),
		nstruct.F(ipAddr, "spa"),
		nstruct.F(macAddr, "tha"),
		nstruct.F(ipAddr, "tpa"),
	},
	Base:       ethernetHeader,
	ClassifyBy: []uint64{0x0806},
	Init:       nstruct.PackValue(0x0806, "ethertype"),
})

// IPv4 header, its window driven by the ihl bits.

var ipVerIHL = nstruct.MustBitfield(nstruct.BitfieldDef{
	Name:    "ip_ver_ihl",
	Backing: nstruct.Uint8,
	Fields: []nstruct.BitField{
		nstruct.Bits(4, "version"),
		nstruct.Bits(4, "ihl"),
	},
	Init: func(v *nstruct.Value) error {
		if err := v.Set("version", 4); err != nil {
			return err
		}
		return v.Set("ihl", 5)
	},
})

var ipFragment = nstruct.MustBitfield(nstruct.BitfieldDef{
	Name:    "ip_fragment",
	Backing: nstruct.Uint16,
	Fields: []nstruct.BitField{
		nstruct.Bits(3, "flags"),
		nstruct.Bits(13, "frag_off"),
	},
})

var ipProto = nstruct.NewEnum("ip_proto", nstruct.Uint8, false, map[string]uint64{
	"IPPROTO_ICMP": 1,
	"IPPROTO_TCP":  6,
	"IPPROTO_UDP":  17,
})

var ipHeader = nstruct.MustNew(nstruct.StructDef{
	Name: "ip_header",
	Fields: []nstruct.Field{
		nstruct.F(ipVerIHL, "ver_ihl"),
		nstruct.F(nstruct.Uint8, "dscp"),
		nstruct.F(nstruct.Uint16, "total_len"),
		nstruct.F(nstruct.Uint16, "identification"),
		nstruct.F(ipFragment, "fragment"),
		nstruct.F(nstruct.Uint8, "ttl"),
		nstruct.F(ipProto, "proto"),
		nstruct.F(nstruct.Uint16, "checksum"),
		nstruct.F(ipAddr, "src"),
		nstruct.F(ipAddr, "dst"),
		nstruct.F(nstruct.Raw, "options"),
	},
	Padding: 1,
	Size: func(v *nstruct.Value) (int, error) {
		return int(v.Field("ver_ihl").Uint("ihl")) * 4, nil
	},
	Prepack: func(v *nstruct.Value) error {
		ihl := (20 + len(v.Bytes("options")) + 3) / 4
		return v.Field("ver_ihl").Set("ihl", ihl)
	},
})

var etherIP = nstruct.MustNew(nstruct.StructDef{
	Name: "ether_ip",
	Fields: []nstruct.Field{
		nstruct.F(ipHeader, "ip"),
		nstruct.F(nstruct.Raw, "payload"),
	},
	Base:       ethernetHeader,
	ClassifyBy: []uint64{0x0800},
	Init:       nstruct.PackValue(0x0800, "ethertype"),
})

// TCP header, parsed out of an IP payload when proto is TCP.

var tcpFlags = nstruct.NewEnum("tcp_flags", nstruct.Uint16, true, map[string]uint64{
	"FIN": 0x01,
	"SYN": 0x02,
	"RST": 0x04,
	"PSH": 0x08,
	"ACK": 0x10,
	"URG": 0x20,
})

var tcpOffsetFlags = nstruct.MustBitfield(nstruct.BitfieldDef{
	Name:    "tcp_off_flags",
	Backing: nstruct.Uint16,
	Fields: []nstruct.BitField{
		nstruct.Bits(4, "doff"),
		nstruct.Bits(3, "reserved"),
		nstruct.Bits(9, "flags"),
	},
	Init:   nstruct.PackValue(5, "doff"),
	Extend: map[string]nstruct.Type{"flags": tcpFlags},
})

var tcpHeader = nstruct.MustNew(nstruct.StructDef{
	Name: "tcp_header",
	Fields: []nstruct.Field{
		nstruct.F(nstruct.Uint16, "sport"),
		nstruct.F(nstruct.Uint16, "dport"),
		nstruct.F(nstruct.Uint32, "seq"),
		nstruct.F(nstruct.Uint32, "ack"),
		nstruct.F(tcpOffsetFlags, "off_flags"),
		nstruct.F(nstruct.Uint16, "window"),
		nstruct.F(nstruct.Uint16, "checksum"),
		nstruct.F(nstruct.Uint16, "urgent"),
		nstruct.F(nstruct.Raw, "options"),
	},
	Padding: 1,
	Size: func(v *nstruct.Value) (int, error) {
		return int(v.Field("off_flags").Uint("doff")) * 4, nil
	},
})
