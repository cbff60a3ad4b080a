/*package comm is an in-process stand-in for the handful of MPI collectives
that cfdem needs. A Comm has a fixed number of virtual ranks. Every collective
takes one argument per rank (indexed by rank) and returns one result per rank,
so a call is a synchronisation point for all ranks at once.

The counts/displacements conventions are the same as MPI_Alltoallv's:
sendCounts[r][q] elements starting at send[r][sendDisp[r][q]] travel from rank
r to rank q.
*/
package comm

import (
	"fmt"
	"math"
)

// Comm is a communicator over a fixed set of virtual ranks.
type Comm struct {
	size int
}

// New creates a communicator with n ranks.
func New(n int) *Comm {
	if n <= 0 {
		panic(fmt.Sprintf("Internal error: communicator size %d", n))
	}
	return &Comm{n}
}

// Size returns the number of ranks.
func (c *Comm) Size() int { return c.size }

// Displacements returns the exclusive prefix sum of counts, i.e. the offset
// of each rank's block in a packed buffer.
func Displacements(counts []int) []int {
	disp := make([]int, len(counts))
	for i := 1; i < len(counts); i++ {
		disp[i] = disp[i-1] + counts[i-1]
	}
	return disp
}

func (c *Comm) checkCounts(sendCounts, sendDisp [][]int, nSend []int) {
	if len(sendCounts) != c.size || len(sendDisp) != c.size {
		panic(fmt.Sprintf("Internal error: Alltoallv given %d count "+
			"arrays and %d displacement arrays for %d ranks.",
			len(sendCounts), len(sendDisp), c.size))
	}
	for r := range sendCounts {
		if len(sendCounts[r]) != c.size || len(sendDisp[r]) != c.size {
			panic(fmt.Sprintf("Internal error: rank %d has %d counts and %d "+
				"displacements, but the communicator has %d ranks.", r,
				len(sendCounts[r]), len(sendDisp[r]), c.size))
		}
		for q := range sendCounts[r] {
			end := sendDisp[r][q] + sendCounts[r][q]
			if sendCounts[r][q] < 0 || end > nSend[r] {
				panic(fmt.Sprintf("Internal error: rank %d sends [%d, %d) "+
					"to rank %d, but its buffer has length %d.", r,
					sendDisp[r][q], end, q, nSend[r]))
			}
		}
	}
}

// recvLayout transposes the send counts into receive counts and
// displacements.
func (c *Comm) recvLayout(sendCounts [][]int) (recvCounts, recvDisp [][]int) {
	recvCounts = make([][]int, c.size)
	recvDisp = make([][]int, c.size)
	for q := 0; q < c.size; q++ {
		recvCounts[q] = make([]int, c.size)
		for r := 0; r < c.size; r++ {
			recvCounts[q][r] = sendCounts[r][q]
		}
		recvDisp[q] = Displacements(recvCounts[q])
	}
	return recvCounts, recvDisp
}

// Alltoallv_float64 exchanges variable-length blocks of float64s between all
// ranks. recv[q] holds the blocks sent to q, ordered by source rank.
func (c *Comm) Alltoallv_float64(
	send [][]float64, sendCounts, sendDisp [][]int,
) (recv [][]float64, recvCounts, recvDisp [][]int) {
	nSend := make([]int, len(send))
	for r := range send {
		nSend[r] = len(send[r])
	}
	c.checkCounts(sendCounts, sendDisp, nSend)
	recvCounts, recvDisp = c.recvLayout(sendCounts)

	recv = make([][]float64, c.size)
	for q := 0; q < c.size; q++ {
		n := 0
		for _, k := range recvCounts[q] {
			n += k
		}
		recv[q] = make([]float64, n)
		for r := 0; r < c.size; r++ {
			src := send[r][sendDisp[r][q] : sendDisp[r][q]+sendCounts[r][q]]
			copy(recv[q][recvDisp[q][r]:], src)
		}
	}

	return recv, recvCounts, recvDisp
}

// Alltoallv_int64 is identical to Alltoallv_float64, but for int64s.
func (c *Comm) Alltoallv_int64(
	send [][]int64, sendCounts, sendDisp [][]int,
) (recv [][]int64, recvCounts, recvDisp [][]int) {
	nSend := make([]int, len(send))
	for r := range send {
		nSend[r] = len(send[r])
	}
	c.checkCounts(sendCounts, sendDisp, nSend)
	recvCounts, recvDisp = c.recvLayout(sendCounts)

	recv = make([][]int64, c.size)
	for q := 0; q < c.size; q++ {
		n := 0
		for _, k := range recvCounts[q] {
			n += k
		}
		recv[q] = make([]int64, n)
		for r := 0; r < c.size; r++ {
			src := send[r][sendDisp[r][q] : sendDisp[r][q]+sendCounts[r][q]]
			copy(recv[q][recvDisp[q][r]:], src)
		}
	}

	return recv, recvCounts, recvDisp
}

func (c *Comm) checkPerRank(n int) {
	if n != c.size {
		panic(fmt.Sprintf("Internal error: collective given %d values for "+
			"%d ranks.", n, c.size))
	}
}

// Allreduce_max returns the maximum of one value per rank. NaNs propagate.
func (c *Comm) Allreduce_max(x []float64) float64 {
	c.checkPerRank(len(x))
	max := math.Inf(-1)
	for _, v := range x {
		if v != v {
			return v
		}
		if v > max {
			max = v
		}
	}
	return max
}

// Allreduce_min returns the minimum of one value per rank. NaNs propagate.
func (c *Comm) Allreduce_min(x []float64) float64 {
	c.checkPerRank(len(x))
	min := math.Inf(+1)
	for _, v := range x {
		if v != v {
			return v
		}
		if v < min {
			min = v
		}
	}
	return min
}

// Allreduce_sum returns the sum of one value per rank. Values are added in
// rank order, so the result doesn't depend on scheduling.
func (c *Comm) Allreduce_sum(x []float64) float64 {
	c.checkPerRank(len(x))
	sum := 0.0
	for _, v := range x {
		sum += v
	}
	return sum
}

// Allreduce_sum_int64 returns the sum of one integer per rank.
func (c *Comm) Allreduce_sum_int64(x []int64) int64 {
	c.checkPerRank(len(x))
	sum := int64(0)
	for _, v := range x {
		sum += v
	}
	return sum
}

// Gather_float64 concatenates the blocks of every rank in rank order onto
// the root.
func (c *Comm) Gather_float64(send [][]float64) []float64 {
	c.checkPerRank(len(send))
	n := 0
	for r := range send {
		n += len(send[r])
	}
	out := make([]float64, 0, n)
	for r := range send {
		out = append(out, send[r]...)
	}
	return out
}

// Bcast_float64 returns a copy of buffer for every rank.
func (c *Comm) Bcast_float64(buffer []float64) [][]float64 {
	out := make([][]float64, c.size)
	for r := range out {
		out[r] = append([]float64(nil), buffer...)
	}
	return out
}
