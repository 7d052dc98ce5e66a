package sync

// ReportChunkSize is the per-message budget for sync reports, kept under the
// platform's 2000-character message limit.
const ReportChunkSize = 1800

// Chunk packs a header plus action lines into message payloads none of which
// exceeds max characters. Packing is greedy in append order and lines are
// never split; the header rides in the first payload. A line longer than max
// is emitted as its own oversized payload rather than dropped.
func Chunk(header string, lines []string, max int) []string {
	var payloads []string
	buf := header
	for _, line := range lines {
		if buf != "" && len(buf)+1+len(line) > max {
			payloads = append(payloads, buf)
			buf = ""
		}
		if buf == "" {
			buf = line
		} else {
			buf += "\n" + line
		}
	}
	if buf != "" {
		payloads = append(payloads, buf)
	}
	return payloads
}
