package metrics

import "netbench/internal/clock"

func defaultNowNS() uint64 { return clock.NowNS() }
