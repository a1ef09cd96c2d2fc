package simulation

// scriptSource replays a fixed pick sequence, repeating the final pick once
// the sequence is exhausted. It backs scripted scenarios where activation
// order decides the outcome.
type scriptSource struct {
	picks []int
	pos   int
}

func (s *scriptSource) Intn(n int) int {
	if len(s.picks) == 0 {
		return 0
	}
	i := s.pos
	if i >= len(s.picks) {
		i = len(s.picks) - 1
	} else {
		s.pos++
	}
	return s.picks[i] % n
}

// Seeds returns count sequential seeds starting at first. Multi-seed
// experiments use it to sweep deterministic variations of one scenario.
func Seeds(first int64, count int) []int64 {
	out := make([]int64, count)
	for i := range out {
		out[i] = first + int64(i)
	}
	return out
}
