package snapshot

// The interchange format stores timestamps as microseconds since the
// Windows FILETIME epoch (1601-01-01). Internally everything is epoch
// milliseconds.
const epochOffsetMillis = 11_644_473_600_000

// ToChromeTime converts epoch milliseconds to interchange ticks.
func ToChromeTime(millis int64) int64 {
	return (millis + epochOffsetMillis) * 1_000
}

// FromChromeTime converts interchange ticks back to epoch milliseconds.
func FromChromeTime(ticks int64) int64 {
	return ticks/1_000 - epochOffsetMillis
}
