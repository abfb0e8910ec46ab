package extraction

// Size bands for the quality heuristic. Byte size is a crude but free proxy
// for resolution: heavily compressed phone uploads land under a few tens of
// kilobytes and rarely survive extraction intact.
const (
	tinyImageBytes  = 10 << 10
	smallImageBytes = 50 << 10
	midImageBytes   = 200 << 10
)

// Quality scores an image's suitability for extraction from its byte size,
// 0-100. The score is informational: it rides along on the output record for
// downstream analytics and never gates which extractors run.
func Quality(size int64) int {
	switch {
	case size < tinyImageBytes:
		return 15
	case size < smallImageBytes:
		return 40
	case size < midImageBytes:
		return 65
	default:
		return 90
	}
}
