// Command s550ctl reads and writes Roland S-550 sampler memory over MIDI.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/transforms"
	"github.com/go-audio/wav"
	"github.com/google/subcommands"
	"github.com/oletizi/s550/internal/cmdutil"
	"github.com/oletizi/s550/s550"
)

var (
	inDevice  = flag.String("dev", "", "MIDI input device")
	outDevice = flag.String("odev", "", "MIDI output device (default: same as input)")
	deviceID  = flag.Int("id", 0, "sampler device ID (0..31)")
	timeout   = flag.Duration("timeout", 0, "handshake timeout (default 2s)")
)

func openClient() (*s550.Client, func(), error) {
	conn, err := cmdutil.Open(&cmdutil.Config{InDevice: *inDevice, OutDevice: *outDevice})
	if err != nil {
		return nil, nil, err
	}
	client, err := s550.NewClient(conn, s550.Config{
		DeviceID: byte(*deviceID),
		Timeout:  *timeout,
	})
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	return client, func() {
		client.Close()
		conn.Close()
	}, nil
}

type cmd struct {
	name, synopsis, usage string
	minArgs               int
	run                   func(*s550.Client, []string) error
}

func (c *cmd) Name() string           { return c.name }
func (c *cmd) Synopsis() string       { return c.synopsis }
func (*cmd) SetFlags(f *flag.FlagSet) {}

func (c *cmd) Usage() string {
	return fmt.Sprintf("%s %s:\n%s\n", c.name, c.usage, c.synopsis)
}

func (c *cmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if len(f.Args()) < c.minArgs {
		log.Printf("usage: %s %s", c.name, c.usage)
		return subcommands.ExitUsageError
	}
	client, closeClient, err := openClient()
	if err != nil {
		log.Print(err)
		return subcommands.ExitFailure
	}
	defer closeClient()
	if err := c.run(client, f.Args()); err != nil {
		log.Print(err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func parseSlot(arg string, max int) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 0 || n >= max {
		return 0, fmt.Errorf("slot %q must be 0..%d", arg, max-1)
	}
	return n, nil
}

func logProgress(what string) func(done, total int) {
	var last int
	return func(done, total int) {
		p := done * 100 / total
		if p-last >= 10 || done == total {
			last = p
			log.Printf("%s: %d%%", what, p)
		}
	}
}

var commands = []subcommands.Command{
	&cmd{
		name:     "list-patches",
		synopsis: "Read and list all patch slots",
		run: func(client *s550.Client, args []string) error {
			patches, err := client.AllPatches(logProgress("reading patches"))
			if err != nil {
				return err
			}
			for i, p := range patches {
				fmt.Printf("%2d  %-12s  %-15s  level %3d\n", i, p.Name, p.KeyMode, p.Level)
			}
			return nil
		},
	},
	&cmd{
		name:     "get-patch",
		synopsis: "Show one patch slot",
		usage:    "<slot>",
		minArgs:  1,
		run: func(client *s550.Client, args []string) error {
			slot, err := parseSlot(args[0], s550.NumPatches)
			if err != nil {
				return err
			}
			p, err := client.Patch(slot)
			if err != nil {
				return err
			}
			fmt.Printf("name:        %s\n", p.Name)
			fmt.Printf("key mode:    %s\n", p.KeyMode)
			fmt.Printf("level:       %d\n", p.Level)
			fmt.Printf("bend range:  %d\n", p.BendRange)
			fmt.Printf("detune:      %+d\n", p.Detune)
			fmt.Printf("octave:      %+d\n", p.OctaveShift)
			fmt.Printf("output:      %d\n", p.OutputAssign)
			return nil
		},
	},
	&cmd{
		name:     "set-patch-name",
		synopsis: "Rename a patch slot",
		usage:    "<slot> <name>",
		minArgs:  2,
		run: func(client *s550.Client, args []string) error {
			slot, err := parseSlot(args[0], s550.NumPatches)
			if err != nil {
				return err
			}
			p, err := client.Patch(slot)
			if err != nil {
				return err
			}
			p.Name = args[1]
			return client.SetPatch(slot, p)
		},
	},
	&cmd{
		name:     "list-tones",
		synopsis: "Read and list all tone slots",
		run: func(client *s550.Client, args []string) error {
			tones, err := client.AllTones(logProgress("reading tones"))
			if err != nil {
				return err
			}
			for i, t := range tones {
				fmt.Printf("%2d  %-8s  wave %06x..%06x\n", i, t.Name, t.WaveStart, t.WaveEnd)
			}
			return nil
		},
	},
	&cmd{
		name:     "get-multi",
		synopsis: "Show the multi-timbral part setup",
		run: func(client *s550.Client, args []string) error {
			m, err := client.Multi()
			if err != nil {
				return err
			}
			for i, part := range m {
				patch := "-"
				if part.Patch != s550.PatchNone {
					patch = strconv.Itoa(part.Patch)
				}
				fmt.Printf("part %c  ch %2d  patch %-3s  out %d  level %3d\n",
					'A'+i, part.Channel+1, patch, part.Output, part.Level)
			}
			return nil
		},
	},
	&cmd{
		name:     "set-part",
		synopsis: "Assign one multi part (rewrites the whole group)",
		usage:    "<part A-H> <channel 1-16> <patch|-> <output> <level>",
		minArgs:  5,
		run: func(client *s550.Client, args []string) error {
			if len(args[0]) != 1 || args[0][0] < 'A' || args[0][0] > 'H' {
				return fmt.Errorf("part %q must be A..H", args[0])
			}
			idx := int(args[0][0] - 'A')
			m, err := client.Multi()
			if err != nil {
				return err
			}
			ch, err := strconv.Atoi(args[1])
			if err != nil || ch < 1 || ch > 16 {
				return fmt.Errorf("channel %q must be 1..16", args[1])
			}
			patch := s550.PatchNone
			if args[2] != "-" {
				if patch, err = parseSlot(args[2], s550.NumPatches); err != nil {
					return err
				}
			}
			out, err := strconv.Atoi(args[3])
			if err != nil {
				return err
			}
			level, err := strconv.Atoi(args[4])
			if err != nil {
				return err
			}
			m[idx] = s550.MultiPart{Channel: ch - 1, Patch: patch, Output: out, Level: level}
			return client.SetMulti(m)
		},
	},
	&cmd{
		name:     "monitor",
		synopsis: "Print front-panel originated parameter changes",
		run: func(client *s550.Client, args []string) error {
			sub := client.Changes().Subscribe(func(ev s550.Change) {
				switch ev.Type {
				case s550.FunctionChange:
					log.Printf("%s change at %s (%d bytes)", ev.Type, ev.Address, len(ev.Data))
				default:
					log.Printf("%s %d changed at %s (%d bytes)", ev.Type, ev.Index, ev.Address, len(ev.Data))
				}
			})
			defer client.Changes().Unsubscribe(sub)

			log.Print("monitoring; interrupt to stop")
			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt)
			<-sig
			return nil
		},
	},
	&cmd{
		name:     "send-wave",
		synopsis: "Load a .wav file into wave memory",
		usage:    "<file> <wave-offset>",
		minArgs:  2,
		run: func(client *s550.Client, args []string) error {
			start, err := strconv.ParseUint(args[1], 0, 24)
			if err != nil {
				return fmt.Errorf("wave offset %q: %v", args[1], err)
			}
			buffer, err := readWAV(args[0])
			if err != nil {
				return err
			}
			if buffer.Format.NumChannels > 1 {
				log.Println("converting to mono")
				buffer = mixToMono(buffer)
			}
			data := s550.PackWave(buffer.Data, buffer.SourceBitDepth)
			log.Printf("sending %d samples (%d bytes)", len(buffer.Data), len(data))
			started := time.Now()
			if err := client.WriteWave(uint32(start), data, logProgress("sending")); err != nil {
				return err
			}
			log.Printf("done in %v", time.Since(started).Round(time.Millisecond))
			return nil
		},
	},
}

func readWAV(file string) (*audio.IntBuffer, error) {
	fd, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer fd.Close()

	decoder := wav.NewDecoder(fd)
	decoder.ReadInfo()
	if decoder.Err() != nil {
		return nil, decoder.Err()
	}
	return decoder.FullPCMBuffer()
}

func mixToMono(inputBuffer *audio.IntBuffer) *audio.IntBuffer {
	bitDepth := inputBuffer.SourceBitDepth
	fb := inputBuffer.AsFloatBuffer()
	transforms.MonoDownmix(fb)
	mono := fb.AsIntBuffer()
	mono.SourceBitDepth = bitDepth
	return mono
}

func main() {
	flag.Parse()
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	for _, cmd := range commands {
		subcommands.Register(cmd, "")
	}
	os.Exit(int(subcommands.Execute(context.Background())))
}
