package queue

import "netbench/internal/clock"

func nowNS() uint64 { return clock.NowNS() }
