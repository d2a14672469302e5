package keyword

var (
	PassTotal      = "traffic_guard_pass_total"
	BlockTotal     = "traffic_guard_block_total"
	BreakerState   = "traffic_guard_breaker_state"
	ResponseTimeMs = "traffic_guard_response_time_ms"
)
