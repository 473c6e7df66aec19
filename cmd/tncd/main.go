// Command tncd is the packet-modem daemon: it wires together the
// channel receive supervisors, the transmit scheduler, the AX.25
// connected-mode data-link sessions, and the CSV packet logger into one
// running process.
//
// Grounded on the teacher's cmd/direwolf/main.go and kissutil.go for
// command-line handling style (github.com/spf13/pflag) -- the actual
// sound-card I/O and PTT hardware backends those commands drive are
// explicitly out of scope here (spec.md §1), so this entry point stops
// at constructing and wiring the in-scope components.
package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"

	"github.com/n0call/tncore/internal/ax25"
	"github.com/n0call/tncore/internal/channel"
	"github.com/n0call/tncore/internal/config"
	"github.com/n0call/tncore/internal/datalink"
	"github.com/n0call/tncore/internal/dlq"
	"github.com/n0call/tncore/internal/dwlog"
	"github.com/n0call/tncore/internal/pktlog"
	"github.com/n0call/tncore/internal/xmit"
)

// noopPTT/noopCarrier stand in for the hardware PTT transport and
// carrier-sense input (spec.md §1 Non-goals: audio device and PTT
// transport backends are not implemented here).
type noopPTT struct{}

func (noopPTT) PTTOn(int) error  { return nil }
func (noopPTT) PTTOff(int) error { return nil }

type noopCarrier struct{}

func (noopCarrier) ChannelBusy(int) bool { return false }

func main() {
	logDir := pflag.StringP("log-dir", "l", "", "Directory for daily CSV packet logs; empty disables logging")
	singleLogFile := pflag.StringP("log-file", "L", "", "Single CSV packet log file (overrides -l)")
	debugLevel := pflag.IntP("debug", "d", 0, "Debug verbosity level")
	help := pflag.BoolP("help", "h", false, "Display help text")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s - AX.25 packet modem daemon.\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if *help {
		pflag.Usage()
		os.Exit(0)
	}

	dwlog.SetLevel(*debugLevel)

	cfg := config.Default()

	var logger *pktlog.Logger
	var err error
	switch {
	case *singleLogFile != "":
		logger, err = pktlog.New(false, *singleLogFile)
	case *logDir != "":
		logger, err = pktlog.New(true, *logDir)
	default:
		logger, err = pktlog.New(cfg.PacketLog.DailyFiles, "")
	}
	if err != nil {
		dwlog.Errf("tncd: failed to set up packet log: %v", err)
		os.Exit(1)
	}
	defer logger.Close()

	queue := dlq.New(0)

	scheduler := xmit.NewScheduler(noopCarrier{}, noopPTT{}, queue)
	supervisors := make(map[int]*channel.Supervisor, len(cfg.Channels))
	myCall := make(map[int]ax25.Address, len(cfg.Channels))

	for _, ch := range cfg.Channels {
		scheduler.ConfigureChannel(ch.Number, xmit.ChannelParams{
			PersistP: ch.Timing.PersistP,
			SlotTime: ch.Timing.SlotTime,
			TXDelay:  ch.Timing.TXDelay,
			TXTail:   ch.Timing.TXTail,
			MaxBurst: ch.Timing.MaxBurst,
		})
		sup := channel.NewSupervisor(ch.Number, queue)
		if ch.Modem == config.ModemAFSK {
			sampleRate := config.DefaultAudioDevice().SampleRate
			sup.AttachDecoder(channel.NewAFSKChannelDecoder(sampleRate, ch.MarkFreq, ch.SpaceFreq, ch.Baud, 0))
		}
		supervisors[ch.Number] = sup
		myCall[ch.Number] = ax25.Address{Call: ch.MyCall, SSID: 0}
		dwlog.Infof("tncd: channel %d configured, mycall=%s, modem=%s, fec=%s", ch.Number, ch.MyCall, ch.Modem, ch.FEC)
	}

	go scheduler.Run()

	dwlog.Infof("tncd: running, %d channel(s), packet log %v", len(cfg.Channels), *logDir != "" || *singleLogFile != "")

	sessions := make(map[string]*datalink.Session)
	runDispatchLoop(queue, sessions, myCall, logger)
}

// sessionKey identifies one connected-mode data-link session by channel
// and peer callsign-SSID, since a single channel may be connected to
// several different stations at once (spec.md §4.9).
func sessionKey(chanNum int, peer ax25.Address) string {
	return strconv.Itoa(chanNum) + "/" + peer.Call + "-" + strconv.Itoa(peer.SSID)
}

// sessionFor returns the data-link session for (channel, peer), creating
// one on first contact with default timers.
func sessionFor(sessions map[string]*datalink.Session, chanNum int, my, peer ax25.Address) *datalink.Session {
	key := sessionKey(chanNum, peer)
	if s, ok := sessions[key]; ok {
		return s
	}
	s := datalink.NewSession(chanNum, my, peer, datalink.DefaultTimers())
	sessions[key] = s
	return s
}

// runDispatchLoop drains the receive dispatch queue, routing each item
// to the data-link session for its (channel, peer) pair and logging
// received frames, per spec.md §5's single-consumer DLQ loop.
func runDispatchLoop(queue *dlq.Queue, sessions map[string]*datalink.Session, myCall map[int]ax25.Address, logger *pktlog.Logger) {
	for {
		queue.WaitWhileEmpty(time.Time{})
		item, ok := queue.Dequeue()
		if !ok {
			continue
		}

		switch item.Kind {
		case dlq.KindReceivedFrame:
			if item.Packet == nil {
				continue
			}
			info := item.Packet.FrameType()
			logger.Write(pktlog.Entry{
				Channel:     item.Channel,
				Time:        time.Now(),
				Source:      item.Packet.AddrWithSSID(1),
				Destination: item.Packet.AddrWithSSID(0),
				Kind:        info.Kind,
				NS:          info.NS,
				NR:          info.NR,
				PF:          info.PF,
				InfoLen:     len(item.Packet.GetInfo()),
			})
			my, known := myCall[item.Channel]
			if known {
				peer := ax25.Address{Call: item.Packet.GetAddr(1), SSID: item.Packet.GetSSID(1)}
				sessionFor(sessions, item.Channel, my, peer).HandleFrame(item.Packet)
			}
			queue.NoteFree()

		case dlq.KindChannelBusy:
			for _, sess := range sessions {
				if sess.Channel == item.Channel {
					sess.ChannelBusy(item.Busy)
				}
			}
		}
	}
}
