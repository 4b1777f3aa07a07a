package risk

import (
	"fmt"
	"strings"

	"github.com/fractalauth/fractalauth/internal/credential"
)

// Additive point values for the contextual signals. Unlike the behavioral
// engine these are not weighted; the sum is simply capped at 100.
const (
	pointsUnusualHour    = 20
	pointsManyFailures   = 35
	pointsSomeFailures   = 15
	pointsAgentChanged   = 20
	pointsAgentUnknown   = 5
	pointsOriginChanged  = 15
	pointsSubnetChanged  = 10
	manyFailuresMin      = 3
	normalHourStart      = 5
	normalHourEndExcl    = 23
	maxContextualPercent = 100
)

// ScoreContext evaluates login hour, prior failures, device fingerprint,
// network origin, and coarse origin locality against the stored record. The
// record is read-only here; the caller owns all writes.
func ScoreContext(rec credential.Record, origin, agent string, hour int) (int, []LogEntry) {
	var (
		logs  []LogEntry
		total int
	)

	add := func(points int, level Level, msg string) {
		total += points
		logs = append(logs, LogEntry{Level: level, Message: msg})
	}

	if hour < normalHourStart || hour >= normalHourEndExcl {
		add(pointsUnusualHour, LevelWarn, fmt.Sprintf("Login at unusual hour: %02d:xx", hour))
	} else {
		add(0, LevelOK, fmt.Sprintf("Login hour %02d:xx within normal range", hour))
	}

	switch failed := rec.FailedAttempts; {
	case failed >= manyFailuresMin:
		add(pointsManyFailures, LevelRisk, fmt.Sprintf("%d previous failed login attempts", failed))
	case failed >= 1:
		add(pointsSomeFailures, LevelWarn, fmt.Sprintf("%d previous failed attempt(s)", failed))
	default:
		add(0, LevelOK, "No prior failed attempts")
	}

	switch {
	case rec.RegisteredAgent != "" && agent != "" && rec.RegisteredAgent != agent:
		add(pointsAgentChanged, LevelWarn, "Device/browser fingerprint changed")
	case rec.RegisteredAgent == "":
		add(pointsAgentUnknown, LevelInfo, "No prior device fingerprint on record")
	default:
		add(0, LevelOK, "Device fingerprint consistent")
	}

	if rec.RegisteredOrigin != "" && origin != "" && rec.RegisteredOrigin != origin {
		add(pointsOriginChanged, LevelWarn, fmt.Sprintf("Network origin changed: %s -> %s", rec.RegisteredOrigin, origin))
	} else {
		add(0, LevelOK, fmt.Sprintf("Network origin consistent (%s)", origin))
	}

	if rec.RegisteredOrigin != "" && origin != "" {
		if subnetPrefix(rec.RegisteredOrigin) != subnetPrefix(origin) {
			add(pointsSubnetChanged, LevelWarn, "Geographic region anomaly detected")
		} else {
			add(0, LevelOK, "Geographic region consistent")
		}
	}

	if total > maxContextualPercent {
		total = maxContextualPercent
	}
	return total, logs
}

// subnetPrefix strips the last dotted segment of a dotted-quad origin. It is a
// coarse locality proxy, not a geolocation lookup; non dotted-quad origins
// compare whole.
func subnetPrefix(origin string) string {
	idx := strings.LastIndex(origin, ".")
	if idx < 0 {
		return origin
	}
	return origin[:idx]
}
