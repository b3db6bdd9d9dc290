package workload

import (
	"fmt"
	"os"
	"runtime"
	"time"
)

// holdDuration keeps a finished allocation resident long enough for a peak
// sampler polling at ~10ms to observe it.
const holdDuration = 200 * time.Millisecond

// runMemory allocates sizeMiB mebibytes and writes one byte per OS page so
// the kernel commits every page and RSS reflects the full allocation.
func runMemory(sizeMiB int) error {
	numBytes := sizeMiB * 1024 * 1024
	data := make([]byte, numBytes)
	if len(data) != numBytes {
		return fmt.Errorf("allocated %d bytes, wanted %d", len(data), numBytes)
	}

	page := os.Getpagesize()
	for i := 0; i < len(data); i += page {
		data[i] = byte(i>>12) + 1
	}

	time.Sleep(holdDuration)

	checksum := int64(data[0]) + int64(data[len(data)/2]) + int64(data[len(data)-1])
	Sink.Add(checksum)
	runtime.KeepAlive(data)
	return nil
}
