package configs

import (
	"strconv"
	"time"
)

func parseInt(v string) (int, bool) {
	n, err := strconv.Atoi(v)
	return n, err == nil
}

func parseMicros(v string) (time.Duration, bool) {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return time.Duration(n) * time.Microsecond, true
}
