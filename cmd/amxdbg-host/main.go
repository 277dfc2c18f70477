// Command amxdbg-host is a manual/integration harness for the engine: an
// interactive REPL over a serial or TCP link to an AMX remote-debugging
// target. The debugger UI itself (symbol resolution, source mapping) stays
// out of scope here.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"amxremote/protocol"
)

var (
	device = flag.String("device", "", "Serial device path (e.g. /dev/ttyUSB0)")
	host   = flag.String("host", "", "TCP host to connect to instead of a serial device")
	port   = flag.Int("port", 0, "TCP port (used with -host)")
	baud   = flag.Int("baud", 9600, "Serial baud rate")
)

func main() {
	flag.Parse()

	if *device == "" && *host == "" {
		fmt.Fprintln(os.Stderr, "amxdbg-host: one of -device or -host is required")
		os.Exit(1)
	}

	engine := protocol.NewEngine(*protocol.DefaultEngineConfig())

	if *host != "" {
		fmt.Printf("Connecting to %s:%d...\n", *host, *port)
		if err := engine.OpenTCP(*host, *port); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to connect: %v\n", err)
			os.Exit(1)
		}
	} else {
		fmt.Printf("Opening %s at %d baud...\n", *device, *baud)
		if err := engine.OpenSerial(*device, *baud); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to open: %v\n", err)
			os.Exit(1)
		}
	}
	defer engine.Close()

	fmt.Println("Handshake complete.")

	amx := &protocol.AMView{
		Memory: make([]protocol.Cell, 4096),
		Base:   0,
	}

	fmt.Println("Enter commands (type 'help' for available commands, 'quit' to exit):")
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		cmd := fields[0]
		args := fields[1:]

		switch cmd {
		case "quit", "exit", "q":
			fmt.Println("Goodbye!")
			return

		case "help", "?":
			printHelp()

		case "wait":
			runWait(engine, amx)

		case "sync":
			runSync(engine, amx)

		case "readmem":
			runReadMem(engine, amx, args)

		case "writemem":
			runWriteMem(engine, amx, args)

		case "resume":
			if err := engine.Resume(); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				continue
			}
			fmt.Println("Resumed.")

		case "transfer":
			runTransfer(engine, args)

		case "fetch":
			runFetch(engine, args)

		case "list":
			runListFiles(engine)

		case "setbaud":
			runSetBaud(engine, args)

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
	fmt.Println()
	fmt.Println("Available commands:")
	fmt.Println("  wait                    - block until the device hits a breakpoint")
	fmt.Println("  sync                    - read Frm/Stk/Hea registers")
	fmt.Println("  readmem <addr> <n>      - read n cells at virtual address addr (hex)")
	fmt.Println("  writemem <addr> <v...>  - write cells starting at addr (hex)")
	fmt.Println("  resume                  - let the device run to the next break")
	fmt.Println("  transfer <path>         - upload a file to the device")
	fmt.Println("  fetch <name> <out>      - download a file from the device")
	fmt.Println("  list                    - list files on the device")
	fmt.Println("  setbaud <rate>          - request a baud-rate change")
	fmt.Println("  help                    - show this help message")
	fmt.Println("  quit/exit/q             - exit the program")
	fmt.Println()
}

func runWait(engine *protocol.Engine, amx *protocol.AMView) {
	fmt.Println("Waiting for break...")
	ok, err := engine.Wait(nil, amx, engine.FrameRetries())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return
	}
	if ok {
		fmt.Printf("Break hit, Cip = %x\n", amx.Cip)
	}
}

func runSync(engine *protocol.Engine, amx *protocol.AMView) {
	if err := engine.Sync(amx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return
	}
	fmt.Printf("Frm=%x Stk=%x Hea=%x\n", amx.Frm, amx.Stk, amx.Hea)
}

func runReadMem(engine *protocol.Engine, amx *protocol.AMView, args []string) {
	if len(args) != 2 {
		fmt.Println("usage: readmem <addr> <n>")
		return
	}
	vaddr, err1 := strconv.ParseUint(args[0], 16, 64)
	n, err2 := strconv.Atoi(args[1])
	if err1 != nil || err2 != nil || n <= 0 {
		fmt.Println("readmem: bad arguments")
		return
	}
	if err := engine.ReadMem(amx, protocol.Cell(vaddr), n); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return
	}
	addr := protocol.Cell(vaddr)
	for i := 0; i < n; i++ {
		if cell, ok := amx.VirtToPhys(addr); ok {
			fmt.Printf("%x: %x\n", addr, *cell)
		}
		addr += protocol.CellSize
	}
}

func runWriteMem(engine *protocol.Engine, amx *protocol.AMView, args []string) {
	if len(args) < 2 {
		fmt.Println("usage: writemem <addr> <v...>")
		return
	}
	vaddr, err := strconv.ParseUint(args[0], 16, 64)
	if err != nil {
		fmt.Println("writemem: bad address")
		return
	}
	addr := protocol.Cell(vaddr)
	for _, raw := range args[1:] {
		v, err := strconv.ParseUint(raw, 16, 64)
		if err != nil {
			fmt.Printf("writemem: bad value %q\n", raw)
			return
		}
		cell, ok := amx.VirtToPhys(addr)
		if !ok {
			fmt.Printf("writemem: address %x out of range\n", addr)
			return
		}
		*cell = protocol.Cell(v)
		addr += protocol.CellSize
	}
	if err := engine.WriteMem(amx, protocol.Cell(vaddr), len(args)-1); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return
	}
	fmt.Println("Write complete.")
}

func runTransfer(engine *protocol.Engine, args []string) {
	if len(args) != 1 {
		fmt.Println("usage: transfer <path>")
		return
	}
	fmt.Printf("Uploading %s...\n", args[0])
	if err := engine.Transfer(args[0]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return
	}
	fmt.Println("Upload complete.")
}

func runFetch(engine *protocol.Engine, args []string) {
	if len(args) != 2 {
		fmt.Println("usage: fetch <name> <out>")
		return
	}
	data, err := engine.Fetch(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return
	}
	if err := os.WriteFile(args[1], data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to write %s: %v\n", args[1], err)
		return
	}
	fmt.Printf("Fetched %d bytes into %s\n", len(data), args[1])
}

func runListFiles(engine *protocol.Engine) {
	names, err := engine.ListFiles()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return
	}
	if len(names) == 0 {
		fmt.Println("(no files)")
		return
	}
	for _, name := range names {
		fmt.Println(name)
	}
}

func runSetBaud(engine *protocol.Engine, args []string) {
	if len(args) != 1 {
		fmt.Println("usage: setbaud <rate>")
		return
	}
	rate, err := strconv.Atoi(args[0])
	if err != nil {
		fmt.Println("setbaud: bad rate")
		return
	}
	if err := engine.SetBaud(rate); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return
	}
	fmt.Printf("Baud changed to %d.\n", rate)
}
