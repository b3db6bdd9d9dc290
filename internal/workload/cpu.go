package workload

import "math/big"

// runCPU computes the n-th Fibonacci number iteratively over big.Int. The
// arbitrary-precision arithmetic keeps the loop body doing real work instead
// of collapsing into a handful of register operations.
func runCPU(iterations int) error {
	a := big.NewInt(0)
	b := big.NewInt(1)
	tmp := new(big.Int)

	for i := 0; i < iterations; i++ {
		tmp.Set(a)
		a.Set(b)
		b.Add(tmp, b)
	}

	Sink.Add(int64(a.BitLen()))
	return nil
}
