// scanner is a discovery utility: it scans for BLE peripherals matching any
// registered glasses protocol and prints what it finds, with the classified
// arm side. Useful for checking advertised names before pairing.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/pickline/glasspick"
	_ "github.com/pickline/glasspick/pkg/protocols/all"
)

func main() {
	duration := flag.Duration("duration", 15*time.Second, "how long to scan")
	all := flag.Bool("all", false, "print every named peripheral, not only supported ones")
	flag.Parse()

	log.Printf("Scanning for %s. Turn your glasses on now.", *duration)

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	transport := glasspick.NewBLETransport()
	found := 0
	err := transport.Scan(ctx, func(dev glasspick.FoundDevice) {
		proto, err := glasspick.ProtocolForDevice(dev.Name)
		if err != nil {
			if *all {
				fmt.Printf("  %-30s %s (unsupported)\n", dev.Name, dev.ID)
			}
			return
		}
		found++
		fmt.Printf("* %-30s %s\n", dev.Name, dev.ID)
		fmt.Printf("  model: %s  arm: %s  rssi: %d\n",
			proto.Name(), proto.ArmFromDeviceName(dev.Name), dev.RSSI)
	})
	if err != nil {
		log.Fatalf("scan failed: %v", err)
	}

	if found == 0 {
		log.Println("Scan complete. No supported glasses found.")
	} else {
		log.Printf("Scan complete. Found %d supported peripheral(s).", found)
	}
}
