package netmon

import "time"

// Quality buckets the usable bandwidth/latency of the current connection.
type Quality string

const (
	QualityExcellent Quality = "excellent"
	QualityGood      Quality = "good"
	QualityFair      Quality = "fair"
	QualityPoor      Quality = "poor"
	QualityUnknown   Quality = "unknown"
)

// Status is a point-in-time connectivity snapshot. LastOnline and
// LastOffline are stamped exactly on observed transitions.
type Status struct {
	IsOnline       bool
	ConnectionType string
	EffectiveType  string
	DownlinkMbps   float64
	RTT            time.Duration
	SaveData       bool
	LastOnline     *time.Time
	LastOffline    *time.Time
}

// Classification thresholds. A 4g-grade link under 100ms with >10 Mbps is
// excellent; the rest degrade by round-trip time.
const (
	excellentRTT      = 100 * time.Millisecond
	goodRTT           = 300 * time.Millisecond
	fairRTT           = 1000 * time.Millisecond
	excellentDownlink = 10.0
)

func classify(online bool, effectiveType string, rtt time.Duration, downlink float64) Quality {
	if !online || rtt <= 0 {
		return QualityUnknown
	}
	switch {
	case rtt < excellentRTT && effectiveType == "4g" && downlink > excellentDownlink:
		return QualityExcellent
	case rtt < goodRTT:
		return QualityGood
	case rtt < fairRTT:
		return QualityFair
	default:
		return QualityPoor
	}
}

// effectiveTypeFor maps a measured round-trip time onto the coarse
// effective connection type buckets browsers report.
func effectiveTypeFor(rtt time.Duration) string {
	switch {
	case rtt <= 0:
		return "unknown"
	case rtt < 150*time.Millisecond:
		return "4g"
	case rtt < 550*time.Millisecond:
		return "3g"
	case rtt < 1400*time.Millisecond:
		return "2g"
	default:
		return "slow-2g"
	}
}

// nominalDownlink returns a bandwidth estimate for an effective type. The
// probe measures latency only, so downlink is the nominal midpoint of the
// bucket, not a measurement.
func nominalDownlink(effectiveType string) float64 {
	switch effectiveType {
	case "4g":
		return 12
	case "3g":
		return 1.5
	case "2g":
		return 0.25
	case "slow-2g":
		return 0.05
	default:
		return 0
	}
}
