package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/wippyai/binstruct/nstruct"
)

func main() {
	var (
		pcapFile    = flag.String("pcap", "", "Path to a pcap capture file")
		limit       = flag.Int("limit", 0, "Stop after this many packets (0 = all)")
		human       = flag.Bool("human", true, "Apply human-readable formatters")
		pretty      = flag.Bool("pretty", false, "Indent JSON output")
		verbose     = flag.Bool("v", false, "Verbose logging")
		interactive = flag.Bool("i", false, "Interactive mode with TUI")
	)
	flag.Parse()

	if *pcapFile == "" {
		fmt.Fprintln(os.Stderr, "Usage: packetdump -pcap <file.pcap> [-limit n] [-human=false] [-pretty]")
		fmt.Fprintln(os.Stderr, "       packetdump -pcap <file.pcap> -i  (interactive mode)")
		os.Exit(1)
	}

	logger := newLogger(*verbose)
	defer func() { _ = logger.Sync() }()
	nstruct.SetLogger(logger.Named("nstruct"))

	packets, err := readCapture(*pcapFile, *limit, logger)
	if err != nil {
		logger.Error("read capture", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logger.Info("capture loaded", zap.String("file", *pcapFile), zap.Int("packets", len(packets)))

	if *interactive {
		if err := runInteractive(*pcapFile, packets); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	styled := term.IsTerminal(int(os.Stdout.Fd()))
	for i, p := range packets {
		if styled {
			fmt.Println(summaryStyle.Render(fmt.Sprintf("#%d %s", i+1, p.summary)))
		}
		tree, err := nstruct.DumpWith(p.value, nstruct.DumpOptions{
			HumanReadable: *human,
			IncludeType:   true,
			DumpExtra:     true,
			BytesAsString: true,
		})
		if err != nil {
			logger.Warn("dump failed", zap.Int("packet", i+1), zap.Error(err))
			continue
		}
		var out []byte
		if *pretty {
			out, err = json.MarshalIndent(tree, "", "  ")
		} else {
			out, err = json.Marshal(tree)
		}
		if err != nil {
			logger.Warn("encode failed", zap.Int("packet", i+1), zap.Error(err))
			continue
		}
		fmt.Println(string(out))
	}
}

func newLogger(verbose bool) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if verbose {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

var summaryStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("#98FB98"))

// packet is one parsed capture record.
type packet struct {
	value   *nstruct.Value
	tcp     *nstruct.Value
	summary string
}

func readCapture(path string, limit int, logger *zap.Logger) ([]packet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	header, recordTD, err := parseFileHeader(data)
	if err != nil {
		return nil, err
	}
	off := header.Length()
	logger.Debug("pcap header",
		zap.Uint64("version_major", header.Uint("version_major")),
		zap.Uint64("snaplen", header.Uint("snaplen")),
		zap.Uint64("network", header.Uint("network")))

	var packets []packet
	for off < len(data) {
		rec, n, err := recordTD.Parse(data[off:])
		if err != nil {
			return packets, fmt.Errorf("record header at offset %d: %w", off, err)
		}
		off += n
		incl := int(rec.Uint("incl_len"))
		if off+incl > len(data) {
			return packets, fmt.Errorf("truncated record at offset %d", off)
		}
		p, err := decodePacket(data[off : off+incl])
		if err != nil {
			logger.Warn("undecodable packet", zap.Int("offset", off), zap.Error(err))
		} else {
			packets = append(packets, p)
		}
		off += incl
		if limit > 0 && len(packets) >= limit {
			break
		}
	}
	return packets, nil
}

func parseFileHeader(data []byte) (*nstruct.Value, *nstruct.StructType, error) {
	header, _, err := pcapHeaderLE.Parse(data)
	if err != nil {
		return nil, nil, fmt.Errorf("pcap header: %w", err)
	}
	switch header.Uint("magic") {
	case pcapMagic:
		return header, pcapRecordLE, nil
	case pcapMagicSwapped:
		header, _, err = pcapHeaderBE.Parse(data)
		if err != nil {
			return nil, nil, fmt.Errorf("pcap header: %w", err)
		}
		return header, pcapRecordBE, nil
	default:
		return nil, nil, fmt.Errorf("not a pcap file: magic %#x", header.Uint("magic"))
	}
}

func decodePacket(frame []byte) (packet, error) {
	eth, err := ethernetHeader.Create(frame)
	if err != nil {
		return packet{}, err
	}
	p := packet{value: eth, summary: summarize(eth)}

	// a TCP payload gets a second-level decode for the summary line
	if eth.Type() == etherIP && eth.Field("ip").Uint("proto") == 6 {
		if tcp, _, err := tcpHeader.Parse(eth.Bytes("payload")); err == nil {
			p.tcp = tcp
			p.summary += fmt.Sprintf(" tcp %d->%d", tcp.Uint("sport"), tcp.Uint("dport"))
		}
	}
	return p, nil
}

func summarize(eth *nstruct.Value) string {
	switch eth.Type() {
	case etherARP:
		op, _ := arpOp.SymbolName(eth.Uint("op"))
		if op == "" {
			op = fmt.Sprintf("op=%d", eth.Uint("op"))
		}
		return fmt.Sprintf("arp %s %s -> %s", op, formatIP(eth.Bytes("spa")), formatIP(eth.Bytes("tpa")))
	case etherIP:
		ip := eth.Field("ip")
		proto, _ := ipProto.SymbolName(ip.Uint("proto"))
		if proto == "" {
			proto = fmt.Sprintf("proto=%d", ip.Uint("proto"))
		}
		return fmt.Sprintf("ip %s %s -> %s", proto, formatIP(ip.Bytes("src")), formatIP(ip.Bytes("dst")))
	default:
		return fmt.Sprintf("ethertype %#x, %d bytes", eth.Uint("ethertype"), eth.Length())
	}
}

func formatIP(b []byte) string {
	for len(b) < 4 {
		b = append(b, 0)
	}
	return fmt.Sprintf("%d.%d.%d.%d", b[0], b[1], b[2], b[3])
}
