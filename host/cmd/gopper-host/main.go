package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/shlex"

	"github.com/gopper-project/stepcompress-host/host/mcu"
	"github.com/gopper-project/stepcompress-host/protocol"
	"github.com/gopper-project/stepcompress-host/stepcompress"
)

var (
	device  = flag.String("device", "/dev/ttyACM0", "Serial device path")
	baud    = flag.Int("baud", 250000, "Baud rate (ignored for USB CDC)")
	verbose = flag.Bool("verbose", false, "Enable verbose output")
)

// steppers holds one StepperCompressor per oid, created on first use.
type stepperSet struct {
	transport *mcu.StepcompressTransport
	byOID     map[uint32]*stepcompress.StepperCompressor
}

func newStepperSet(mcuConn *mcu.MCU) *stepperSet {
	return &stepperSet{
		transport: mcu.NewStepcompressTransport(mcuConn),
		byOID:     make(map[uint32]*stepcompress.StepperCompressor),
	}
}

// get returns (creating if needed) the compressor for oid, resolving the
// queue_step / set_next_step_dir command ids from the MCU dictionary the
// first time a given oid is used.
func (s *stepperSet) get(mcuConn *mcu.MCU, oid uint32, maxError uint32) (*stepcompress.StepperCompressor, error) {
	if c, ok := s.byOID[oid]; ok {
		return c, nil
	}
	dict := mcuConn.GetDictionary()
	if dict == nil {
		return nil, fmt.Errorf("dictionary not loaded")
	}
	queueStepID, ok := dict.Commands["queue_step"]
	if !ok {
		return nil, fmt.Errorf("MCU dictionary has no queue_step command")
	}
	setDirID, ok := dict.Commands["set_next_step_dir"]
	if !ok {
		return nil, fmt.Errorf("MCU dictionary has no set_next_step_dir command")
	}
	cfg := stepcompress.Config{
		MaxError:             maxError,
		QueueStepMsgTag:      int32(queueStepID),
		SetNextStepDirMsgTag: int32(setDirID),
	}
	c := stepcompress.NewStepperCompressor(oid, cfg, s.transport, nil)
	s.byOID[oid] = c
	return c, nil
}

func main() {
	flag.Parse()

	fmt.Println("Gopper Host - Klipper Protocol Host Implementation")
	fmt.Println("===================================================\n")

	// Create MCU instance
	mcuConn := mcu.NewMCU()

	// Connect to MCU
	fmt.Printf("Connecting to MCU on %s...\n", *device)
	if err := mcuConn.Connect(*device); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer mcuConn.Close()

	fmt.Println("Connected successfully!")

	// Retrieve dictionary
	if err := mcuConn.RetrieveDictionary(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to retrieve dictionary: %v\n", err)
		os.Exit(1)
	}

	// Print dictionary summary
	mcuConn.PrintDictionary()

	steppers := newStepperSet(mcuConn)

	// Interactive command loop
	fmt.Println("Enter commands (type 'help' for available commands, 'quit' to exit):")
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		line := scanner.Text()
		parts, err := shlex.Split(line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]

		switch cmd {
		case "quit", "exit", "q":
			fmt.Println("Goodbye!")
			return

		case "help", "?":
			printHelp()

		case "dict":
			mcuConn.PrintDictionary()

		case "raw":
			// Print raw dictionary data
			raw := mcuConn.GetDictionaryRaw()
			fmt.Printf("Raw dictionary data (%d bytes):\n%s\n", len(raw), string(raw))

		case "get_uptime":
			if err := sendGetUptime(mcuConn); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}

		case "get_clock":
			if err := sendGetClock(mcuConn); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}

		case "get_config":
			if err := sendGetConfig(mcuConn); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}

		case "stepper_clock":
			if err := cmdStepperClock(steppers, mcuConn, parts); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}

		case "queue_step":
			if err := cmdQueueStep(steppers, mcuConn, parts); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}

		case "commit":
			if err := cmdCommit(steppers, mcuConn, parts); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}

		case "flush":
			if err := cmdFlush(steppers, mcuConn, parts); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}

		default:
			fmt.Printf("Unknown command: %s (type 'help' for available commands)\n", cmd)
		}
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Println("\nAvailable commands:")
	fmt.Println("  help           - Show this help message")
	fmt.Println("  dict           - Print dictionary summary")
	fmt.Println("  raw            - Print raw dictionary data")
	fmt.Println("  get_uptime     - Get MCU uptime")
	fmt.Println("  get_clock      - Get MCU clock")
	fmt.Println("  get_config     - Get MCU configuration")
	fmt.Println("  stepper_clock <oid> <hz>          - set a stepper's clock frequency")
	fmt.Println("  queue_step <oid> <clock> <dir>    - append a raw step event (dir: 0/1)")
	fmt.Println("  commit <oid>                      - run pending steps through the direction filter and queue")
	fmt.Println("  flush <oid> <move_clock>          - compress and send the queued steps")
	fmt.Println("  quit/exit/q    - Exit the program")
	fmt.Println()
}

func sendGetUptime(mcuConn *mcu.MCU) error {
	fmt.Println("Sending get_uptime command...")

	// get_uptime has no arguments, format: ""
	if err := mcuConn.SendCommand("get_uptime", nil); err != nil {
		return fmt.Errorf("failed to send get_uptime: %w", err)
	}

	fmt.Println("Command sent successfully!")
	fmt.Println("(Note: Response handling not yet implemented - check MCU logs)")

	return nil
}

func sendGetClock(mcuConn *mcu.MCU) error {
	fmt.Println("Sending get_clock command...")

	// get_clock has no arguments, format: ""
	if err := mcuConn.SendCommand("get_clock", nil); err != nil {
		return fmt.Errorf("failed to send get_clock: %w", err)
	}

	fmt.Println("Command sent successfully!")
	fmt.Println("Waiting for response...")

	// Wait a bit for response to arrive
	time.Sleep(100 * time.Millisecond)

	// TODO: Implement proper response handling
	fmt.Println("(Note: Response handling not yet implemented - check MCU logs)")

	return nil
}

func sendGetConfig(mcuConn *mcu.MCU) error {
	fmt.Println("Sending get_config command...")

	// get_config has no arguments, format: ""
	if err := mcuConn.SendCommand("get_config", nil); err != nil {
		return fmt.Errorf("failed to send get_config: %w", err)
	}

	fmt.Println("Command sent successfully!")
	fmt.Println("(Note: Response handling not yet implemented - check MCU logs)")

	return nil
}

// DecodeResponse decodes a response message payload
func DecodeResponse(payload []byte) (cmdID uint16, data []byte, err error) {
	// Decode command ID
	cmdIDUint, err := protocol.DecodeVLQUint(&payload)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to decode command ID: %w", err)
	}

	return uint16(cmdIDUint), payload, nil
}

func parseOID(parts []string) (uint32, error) {
	if len(parts) < 2 {
		return 0, fmt.Errorf("missing oid")
	}
	oid, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid oid %q: %w", parts[1], err)
	}
	return uint32(oid), nil
}

func cmdStepperClock(steppers *stepperSet, mcuConn *mcu.MCU, parts []string) error {
	oid, err := parseOID(parts)
	if err != nil {
		return err
	}
	if len(parts) < 3 {
		return fmt.Errorf("usage: stepper_clock <oid> <hz>")
	}
	hz, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return fmt.Errorf("invalid clock frequency %q: %w", parts[2], err)
	}
	c, err := steppers.get(mcuConn, oid, defaultMaxError)
	if err != nil {
		return err
	}
	c.SetTime(hz)
	fmt.Printf("stepper %d clock set to %.0f Hz\n", oid, hz)
	return nil
}

func cmdQueueStep(steppers *stepperSet, mcuConn *mcu.MCU, parts []string) error {
	oid, err := parseOID(parts)
	if err != nil {
		return err
	}
	if len(parts) < 4 {
		return fmt.Errorf("usage: queue_step <oid> <clock> <dir>")
	}
	clock, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid clock %q: %w", parts[2], err)
	}
	dir, err := strconv.ParseUint(parts[3], 10, 1)
	if err != nil {
		return fmt.Errorf("invalid dir %q (must be 0 or 1): %w", parts[3], err)
	}
	c, err := steppers.get(mcuConn, oid, defaultMaxError)
	if err != nil {
		return err
	}
	if err := c.Append(clock, dir != 0); err != nil {
		return err
	}
	fmt.Printf("appended step: oid=%d clock=%d dir=%d\n", oid, clock, dir)
	return nil
}

func cmdCommit(steppers *stepperSet, mcuConn *mcu.MCU, parts []string) error {
	oid, err := parseOID(parts)
	if err != nil {
		return err
	}
	c, err := steppers.get(mcuConn, oid, defaultMaxError)
	if err != nil {
		return err
	}
	msgs, err := c.Commit()
	if err != nil {
		return err
	}
	if err := steppers.transport.SendBatch(msgs); err != nil {
		return fmt.Errorf("sending commit messages: %w", err)
	}
	fmt.Printf("committed %d messages for oid %d\n", len(msgs), oid)
	return nil
}

func cmdFlush(steppers *stepperSet, mcuConn *mcu.MCU, parts []string) error {
	oid, err := parseOID(parts)
	if err != nil {
		return err
	}
	if len(parts) < 3 {
		return fmt.Errorf("usage: flush <oid> <move_clock>")
	}
	moveClock, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid move_clock %q: %w", parts[2], err)
	}
	c, err := steppers.get(mcuConn, oid, defaultMaxError)
	if err != nil {
		return err
	}
	msgs, err := c.Flush(moveClock)
	if err != nil {
		return err
	}
	if err := steppers.transport.SendBatch(msgs); err != nil {
		return fmt.Errorf("sending flush messages: %w", err)
	}
	fmt.Printf("flushed %d messages for oid %d\n", len(msgs), oid)
	return nil
}

const defaultMaxError = 20 // ticks; matches a 20us tolerance at a typical 1MHz stepper clock
