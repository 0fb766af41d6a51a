package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/Brandhoej/Y86-64-VM/cpu"
	"github.com/Brandhoej/Y86-64-VM/emulator"
)

func main() {
	var compile string
	var binary string
	var save string
	var entry uint64
	var limit int
	var memory uint
	var verbose bool

	flag.StringVar(&compile, "c", "", ".ys file to assemble")
	flag.StringVar(&binary, "b", "", "raw memory image to load")
	flag.StringVar(&save, "s", "", "Save memory image to file, do not execute")
	flag.Uint64Var(&entry, "e", 0, "Entry address")
	flag.IntVar(&limit, "n", 1_000_000, "Tick limit, 0 for none")
	flag.UintVar(&memory, "m", cpu.MEMORY_SIZE, "Memory size in bytes")
	flag.BoolVar(&verbose, "v", false, "Verbose mode")

	flag.Parse()

	if flag.NArg() != 0 {
		log.Fatalf("%v: Unknown arguments: %v", os.Args[0], flag.Args())
	}

	if len(compile) != 0 && len(binary) != 0 {
		log.Fatalf("%v: -c and -b are exclusive", os.Args[0])
	}

	emu := emulator.NewEmulatorSize(memory)
	emu.Verbose = verbose
	emu.Entry = entry

	// Assemble a new instruction stream.
	if len(compile) != 0 {
		inf, err := os.Open(compile)
		if err != nil {
			log.Fatalf("%v: %v", compile, err)
		}
		defer inf.Close()

		asm := emu.Assembler()
		emu.Program, err = asm.Parse(inf)
		if err != nil {
			log.Fatalf("%v: %v", compile, err)
		}
	}

	err := emu.Reset()
	if err != nil {
		log.Fatalf("%v: %v", compile, err)
	}

	if len(binary) != 0 {
		data, err := os.ReadFile(binary)
		if err != nil {
			log.Fatalf("%v: %v", binary, err)
		}
		err = emu.Cpu.Load(0, data)
		if err != nil {
			log.Fatalf("%v: %v", binary, err)
		}
	}

	if len(save) != 0 {
		var image []byte
		if len(binary) != 0 {
			image, err = os.ReadFile(binary)
		} else {
			image = emu.Program.Binary()
		}
		if err == nil {
			err = os.WriteFile(save, image, 0o644)
		}
		if err != nil {
			log.Fatalf("%v: %v", save, err)
		}
		return
	}

	status, err := emu.Run(limit)
	fmt.Print(emu.Cpu.String())
	if err != nil {
		log.Print(err)
	}
	if status != cpu.STAT_HLT {
		os.Exit(1)
	}
}
