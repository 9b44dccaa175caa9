// Copyright (c) 2016 by Thorsten von Eicken, see LICENSE file for details

// ad9361-dump reads a block of AD9361 registers over a directly
// attached SPI bus and prints them as a hex grid. It is a bench bring-up
// aid for boards where the chip's SPI is jumpered to a host instead of
// going through the FPGA.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"github.com/butshuti/bladeRF/ad9361"
)

func panicIf(err error) {
	if err != nil {
		panic(err)
	}
}

// readReg performs one register read transaction: a 16-bit instruction
// word with the write bit clear, then one clock byte for the response.
func readReg(c spi.Conn, addr uint16) (byte, error) {
	instr := addr & ad9361.SpiAddrMask
	w := []byte{byte(instr >> 8), byte(instr), 0}
	r := make([]byte, len(w))
	if err := c.Tx(w, r); err != nil {
		return 0, err
	}
	return r[2], nil
}

func main() {
	dev := flag.String("dev", "", "SPI port name, empty selects the first one")
	start := flag.Int("start", ad9361.RegForceBits, "first register to dump")
	count := flag.Int("count", 0x30, "number of registers to dump")
	flag.Parse()

	_, err := host.Init()
	panicIf(err)

	port, err := spireg.Open(*dev)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot open SPI port %q: %s\n", *dev, err)
		os.Exit(1)
	}
	defer port.Close()

	conn, err := port.Connect(10*physic.MegaHertz, spi.Mode0, 8)
	panicIf(err)

	log.Printf("Dumping 0x%03x..0x%03x", *start, *start+*count-1)
	for addr := *start; addr < *start+*count; addr++ {
		if (addr-*start)%8 == 0 {
			fmt.Printf("\n%03x:", addr)
		}
		v, err := readReg(conn, uint16(addr))
		if err != nil {
			fmt.Printf(" ??")
			continue
		}
		fmt.Printf(" %02x", v)
	}
	fmt.Println()
}
